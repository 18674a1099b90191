package extraction

import (
	"regexp"
	"strings"

	"announcement-radar/internal/domain"
)

var (
	// Specific patterns, tried in order. First match wins.
	specificPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:Will\s+List|Listing\].+?Will\s+List)\s+([^(]+?)\s*\(([A-Z0-9]+)\)`),
		regexp.MustCompile(`(?i:pre-market\s+trading):?\s+([^(]+?)\s*\(([A-Z0-9]+)\)`),
	}

	// Generic "Name (SYMBOL)" pattern, applied repeatedly.
	genericPattern = regexp.MustCompile(`([A-Za-z0-9\s.\-&']+?)\s*\(([A-Z0-9]+)\)`)

	// Innovation Zone boilerplate and launch teasers are cut with everything after them.
	nameSuffixes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s+in\s+the\s+Innovation\s+Zone.*$`),
		regexp.MustCompile(`(?i)\s+is\s+set\s+to\s+launch\s+soon.*$`),
	}

	namePrefixes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^Bitget\s+`),
		regexp.MustCompile(`(?i)^listing\s+`),
		regexp.MustCompile(`(?i)^add\s+`),
		regexp.MustCompile(`(?i)^support\s+`),
		regexp.MustCompile(`(?i)^new\s+`),
	}
)

var stopwordSymbols = map[string]struct{}{
	"IN":   {},
	"THE":  {},
	"AND":  {},
	"FOR":  {},
	"ZONE": {},
}

// RegexExtractor extracts token candidates with title patterns.
type RegexExtractor struct{}

// NewRegexExtractor creates a new RegexExtractor.
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

var _ Extractor = (*RegexExtractor)(nil)

// Extract applies the specific patterns first and the generic pattern only when
// none of them matched.
func (e *RegexExtractor) Extract(title string) []domain.TokenCandidate {
	result := []domain.TokenCandidate{}
	title = strings.TrimSpace(title)
	if title == "" {
		return result
	}

	for _, re := range specificPatterns {
		m := re.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		if c, ok := candidate(m[1], m[2], false); ok {
			result = append(result, c)
		}
		return result
	}

	seen := make(map[string]struct{})
	for _, m := range genericPattern.FindAllStringSubmatch(title, -1) {
		c, ok := candidate(m[1], m[2], true)
		if !ok {
			continue
		}
		if _, dup := seen[c.Symbol]; dup {
			continue
		}
		seen[c.Symbol] = struct{}{}
		result = append(result, c)
	}
	return result
}

func candidate(rawName, rawSymbol string, generic bool) (domain.TokenCandidate, bool) {
	symbol := strings.TrimSpace(rawSymbol)
	if generic && !acceptGenericSymbol(symbol) {
		return domain.TokenCandidate{}, false
	}
	if symbol == "" {
		return domain.TokenCandidate{}, false
	}
	return domain.TokenCandidate{Name: cleanName(rawName), Symbol: symbol}, true
}

func acceptGenericSymbol(symbol string) bool {
	if len(symbol) <= 1 || strings.ContainsAny(symbol, " \t\r\n") {
		return false
	}
	_, stop := stopwordSymbols[symbol]
	return !stop
}

// cleanName strips boilerplate around a captured project name.
func cleanName(name string) string {
	name = strings.TrimSpace(name)
	for _, re := range nameSuffixes {
		name = re.ReplaceAllString(name, "")
	}
	for _, re := range namePrefixes {
		name = strings.TrimSpace(re.ReplaceAllString(name, ""))
	}
	return strings.TrimRight(strings.TrimSpace(name), ".,:;!-&' ")
}
