// Package llm wraps chat-completion providers behind a single-call interface.
package llm

import (
	"context"
	"errors"
	"time"
)

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 30 * time.Second

// ErrMissingAPIKey is returned by constructors when no credential is configured.
var ErrMissingAPIKey = errors.New("llm: missing api key")

// ErrEmptyResponse is returned when the provider answered without text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Completer issues one chat completion with a system and a user message and
// returns the reply text. Implementations do not retry.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Provider() string
}

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

// Config selects and configures a provider.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}
