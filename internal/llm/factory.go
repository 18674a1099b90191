package llm

import (
	"context"
	"fmt"
	"strings"
)

// New builds the Completer named by cfg.Provider. Empty means openai.
func New(ctx context.Context, cfg Config) (Completer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI, "deepseek":
		c, err := NewOpenAIClient(cfg.APIKey,
			WithBaseURL(cfg.BaseURL),
			WithModel(cfg.Model),
			WithTimeout(cfg.Timeout),
		)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderClaude, "anthropic":
		c, err := NewClaudeClient(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderGemini:
		c, err := NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
