// Package extraction maps announcement titles to token candidates.
package extraction

import (
	"fmt"
	"strings"

	"announcement-radar/internal/domain"
)

// Extractor produces token candidates from a title. Implementations never fail;
// a title without tokens yields an empty slice.
type Extractor interface {
	Extract(title string) []domain.TokenCandidate
}

// Strategy selects where an exchange's token candidates come from.
type Strategy string

const (
	// StrategyAI trusts the tokens returned by the classifier.
	StrategyAI Strategy = "ai"
	// StrategyRegex runs the regex extractor and falls back to AI tokens.
	StrategyRegex Strategy = "regex"
)

// ParseStrategy parses a configured strategy name. Empty means StrategyAI.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyAI:
		return StrategyAI, nil
	case StrategyRegex:
		return StrategyRegex, nil
	default:
		return "", fmt.Errorf("unknown extraction strategy %q", s)
	}
}
