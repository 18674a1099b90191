package classifier

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"announcement-radar/internal/domain"
)

const (
	defaultConfidence = 0.5
	excerptLen        = 200
)

// jsonObject locates the outermost curly-brace block in a free-text reply.
var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// replyToken is one entry of the reply's tokens array.
type replyToken struct {
	Name   string `validate:"max=64"`
	Symbol string `validate:"required,max=32,nospace"`
}

// replyCategory is one entry of the reply's categories array.
type replyCategory struct {
	Label string `validate:"required,max=64"`
}

// newReplyValidator returns the validator that gates reply entries.
func newReplyValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("nospace", func(fl validator.FieldLevel) bool {
		return !strings.ContainsFunc(fl.Field().String(), unicode.IsSpace)
	})
	return v
}

// parseReply decodes a model reply into a Classification. Entries failing
// validation are dropped; a reply without a JSON object is an error.
func parseReply(v *validator.Validate, reply, exchange string) (*domain.Classification, error) {
	raw := jsonObject.FindString(reply)
	if raw == "" {
		return nil, &ParseError{Reason: "no json object in reply", Excerpt: excerpt(reply)}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, &ParseError{Reason: "invalid json: " + err.Error(), Excerpt: excerpt(raw)}
	}

	result := &domain.Classification{
		Categories: decodeCategories(v, fields["categories"]),
		Confidence: decodeConfidence(fields["confidence"]),
		Tokens:     decodeTokens(v, fields["tokens"]),
		Exchange:   exchange,
	}
	if a, ok := decodeString(fields["analysis"]); ok {
		result.Analysis = a
	}
	return result, nil
}

// decodeCategories keeps string entries that pass validation. A missing or
// non-array value yields the uncategorized fallback; an empty array stays empty.
func decodeCategories(v *validator.Validate, raw json.RawMessage) []string {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil || items == nil {
		return []string{string(domain.CategoryUncategorized)}
	}

	categories := make([]string, 0, len(items))
	for _, item := range items {
		s, _ := decodeString(item)
		c := replyCategory{Label: strings.TrimSpace(s)}
		if v.Struct(c) != nil {
			continue
		}
		categories = append(categories, c.Label)
	}
	return categories
}

// decodeConfidence clamps numeric values to [0,1]; anything else is 0.5.
func decodeConfidence(raw json.RawMessage) float64 {
	var c float64
	if len(raw) == 0 || json.Unmarshal(raw, &c) != nil {
		return defaultConfidence
	}
	return min(max(c, 0), 1)
}

// decodeTokens keeps object entries that pass validation. Name may be null.
func decodeTokens(v *validator.Validate, raw json.RawMessage) []domain.TokenCandidate {
	tokens := []domain.TokenCandidate{}

	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return tokens
	}

	for _, item := range items {
		var obj map[string]json.RawMessage
		if json.Unmarshal(item, &obj) != nil {
			continue
		}
		symbol, _ := decodeString(obj["symbol"])
		name, _ := decodeString(obj["name"])
		t := replyToken{Name: strings.TrimSpace(name), Symbol: strings.TrimSpace(symbol)}
		if v.Struct(t) != nil {
			continue
		}
		tokens = append(tokens, domain.TokenCandidate{Name: t.Name, Symbol: t.Symbol})
	}
	return tokens
}

func decodeString(raw json.RawMessage) (string, bool) {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return "", false
	}
	return s, true
}

// excerpt cuts s to excerptLen bytes on a rune boundary.
func excerpt(s string) string {
	if len(s) <= excerptLen {
		return s
	}
	n := excerptLen
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
