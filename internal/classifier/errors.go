package classifier

import (
	"errors"
	"fmt"
)

// ErrConfiguration marks failures caused by missing setup. They are never retried.
var ErrConfiguration = errors.New("classifier configuration error")

var (
	ErrMissingPrompt     = errors.New("missing classification prompt")
	ErrMissingCredential = errors.New("missing ai credential")
)

func configurationError(err error) error {
	return fmt.Errorf("%w: %w", ErrConfiguration, err)
}

// ParseError reports a reply that did not contain a valid classification object.
type ParseError struct {
	Reason  string
	Excerpt string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse classification: %s (reply: %q)", e.Reason, e.Excerpt)
}

// ClassificationError is returned after every attempt failed. Err is the last failure.
type ClassificationError struct {
	Attempts int
	Err      error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}
