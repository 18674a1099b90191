package config

import "errors"

// Configuration errors
var (
	// ErrConfigLoadFailed is returned when the configuration file cannot be read.
	ErrConfigLoadFailed = errors.New("failed to load configuration")

	// ErrConfigValidationFailed is returned when configuration validation fails.
	ErrConfigValidationFailed = errors.New("configuration validation failed")
)
