// Package classifier turns announcement titles into validated classifications
// using a chat-completion model.
package classifier

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"announcement-radar/internal/domain"
	"announcement-radar/internal/llm"
	"announcement-radar/internal/logger"
)

// Default retry policy: one initial attempt plus two retries, fixed delay.
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 2 * time.Second
)

// SystemPrompt is sent as the system role of every request.
const SystemPrompt = "You are an announcement classification expert for cryptocurrency exchanges. " +
	"Reply with a single JSON object and nothing else."

// Classifier classifies titles with a Completer and retries failed attempts.
type Classifier struct {
	completer   llm.Completer
	validate    *validator.Validate
	log         logger.Logger
	maxAttempts int
	retryDelay  time.Duration
	wait        func(ctx context.Context, d time.Duration) error
}

// Option configures Classifier.
type Option func(*Classifier)

// WithMaxAttempts sets the total number of attempts.
func WithMaxAttempts(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the fixed delay between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Classifier) {
		c.retryDelay = d
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Classifier) {
		c.log = l
	}
}

// New creates a Classifier. A nil completer is reported by Analyze as a
// missing credential.
func New(completer llm.Completer, opts ...Option) *Classifier {
	c := &Classifier{
		completer:   completer,
		validate:    newReplyValidator(),
		log:         logger.NewNop(),
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		wait:        sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze classifies one title using the exchange taxonomy prompt.
func (c *Classifier) Analyze(ctx context.Context, title, exchange, prompt string) (*domain.Classification, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, configurationError(ErrMissingPrompt)
	}
	if c.completer == nil {
		return nil, configurationError(ErrMissingCredential)
	}

	user := prompt + "\n\nAnnouncement title: " + title

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.wait(ctx, c.retryDelay); err != nil {
				return nil, &ClassificationError{Attempts: attempt - 1, Err: err}
			}
		}

		result, err := c.attempt(ctx, user, exchange)
		if err == nil {
			result.Attempts = attempt
			return result, nil
		}
		if errors.Is(err, llm.ErrMissingAPIKey) {
			return nil, configurationError(ErrMissingCredential)
		}

		lastErr = err
		c.log.Warn("classification attempt failed",
			logger.String("exchange", exchange),
			logger.String("title", title),
			logger.Int("attempt", attempt),
			logger.Error(err),
		)
	}

	return nil, &ClassificationError{Attempts: c.maxAttempts, Err: lastErr}
}

func (c *Classifier) attempt(ctx context.Context, user, exchange string) (*domain.Classification, error) {
	reply, err := c.completer.Complete(ctx, SystemPrompt, user)
	if err != nil {
		return nil, err
	}
	return parseReply(c.validate, reply, exchange)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
