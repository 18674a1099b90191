// Package normalization fans a raw announcement out into one record per category.
package normalization

import (
	"context"
	"strings"

	"announcement-radar/internal/classifier"
	"announcement-radar/internal/domain"
	"announcement-radar/internal/extraction"
)

// Analyzer classifies a title with an exchange taxonomy prompt.
type Analyzer interface {
	Analyze(ctx context.Context, title, exchange, prompt string) (*domain.Classification, error)
}

// legacyUncategorized is the label some prompts still produce for uncategorized.
const legacyUncategorized = "未分类"

// Normalizer combines classifier output and extracted tokens.
type Normalizer struct {
	analyzer   Analyzer
	extractor  extraction.Extractor
	prompts    classifier.Prompts
	strategies map[string]extraction.Strategy
}

// NewNormalizer creates a Normalizer. Exchanges missing from strategies use StrategyAI.
func NewNormalizer(
	analyzer Analyzer,
	extractor extraction.Extractor,
	prompts classifier.Prompts,
	strategies map[string]extraction.Strategy,
) *Normalizer {
	s := make(map[string]extraction.Strategy, len(strategies))
	for exchange, strategy := range strategies {
		s[strings.ToLower(exchange)] = strategy
	}
	return &Normalizer{
		analyzer:   analyzer,
		extractor:  extractor,
		prompts:    prompts,
		strategies: s,
	}
}

// Strategy returns the token strategy configured for an exchange.
func (n *Normalizer) Strategy(exchange string) extraction.Strategy {
	if s, ok := n.strategies[strings.ToLower(exchange)]; ok {
		return s
	}
	return extraction.StrategyAI
}

// Normalize classifies raw and returns one record per category together with
// the classification. Classifier errors are returned unchanged; callers decide
// between Fallback and aborting.
func (n *Normalizer) Normalize(ctx context.Context, raw *domain.RawAnnouncement) ([]*domain.NormalizedAnnouncement, *domain.Classification, error) {
	result, err := n.analyzer.Analyze(ctx, raw.Title, raw.Exchange, n.prompts.For(raw.Exchange))
	if err != nil {
		return nil, nil, err
	}

	tokens := n.selectTokens(raw, result.Tokens)

	description := strings.TrimSpace(raw.RawType)
	if description == "" {
		description = result.Analysis
	}

	return FanOut(raw, result.Categories, tokens, description), result, nil
}

func (n *Normalizer) selectTokens(raw *domain.RawAnnouncement, aiTokens []domain.TokenCandidate) []domain.TokenCandidate {
	if n.Strategy(raw.Exchange) == extraction.StrategyRegex && n.extractor != nil {
		if tokens := n.extractor.Extract(raw.Title); len(tokens) > 0 {
			return tokens
		}
	}
	return aiTokens
}

// Fallback returns the forced uncategorized record used when classification failed.
func (n *Normalizer) Fallback(raw *domain.RawAnnouncement) *domain.NormalizedAnnouncement {
	return record(raw, domain.CategoryUncategorized, nil, strings.TrimSpace(raw.RawType))
}

// FanOut emits one record per distinct category, all sharing tokens.
// Zero categories yield a single uncategorized record without tokens.
func FanOut(raw *domain.RawAnnouncement, categories []string, tokens []domain.TokenCandidate, description string) []*domain.NormalizedAnnouncement {
	var result []*domain.NormalizedAnnouncement
	seen := make(map[domain.Category]struct{}, len(categories))

	for _, c := range categories {
		category := toCategory(c)
		if category == "" {
			continue
		}
		if _, dup := seen[category]; dup {
			continue
		}
		seen[category] = struct{}{}
		result = append(result, record(raw, category, tokens, description))
	}

	if len(result) == 0 {
		return []*domain.NormalizedAnnouncement{
			record(raw, domain.CategoryUncategorized, nil, description),
		}
	}
	return result
}

func toCategory(label string) domain.Category {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == legacyUncategorized {
		return domain.CategoryUncategorized
	}
	return domain.Category(label)
}

func record(raw *domain.RawAnnouncement, category domain.Category, tokens []domain.TokenCandidate, description string) *domain.NormalizedAnnouncement {
	shared := make([]domain.TokenCandidate, 0, len(tokens))
	for _, t := range tokens {
		if !t.IsEmpty() {
			shared = append(shared, t)
		}
	}
	return &domain.NormalizedAnnouncement{
		Exchange:    raw.Exchange,
		Title:       raw.Title,
		Description: description,
		Type:        category,
		URL:         raw.URL,
		PublishTime: raw.PublishTime,
		Tokens:      shared,
	}
}
