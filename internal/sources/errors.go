package sources

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSource is matched by ConfigError for lookups of unconfigured ids.
	ErrUnknownSource = errors.New("unknown source")
	// ErrInvalidSource is matched by ConfigError for malformed source entries.
	ErrInvalidSource = errors.New("invalid source configuration")
	// ErrNoSources is returned when a sources file defines nothing.
	ErrNoSources = errors.New("no sources found in configuration")

	errEmptyURL = errors.New("empty url")
)

// ConfigError is a configuration failure. It is fatal to the triggering
// request, never to the process.
type ConfigError struct {
	SourceID string
	Field    string
	Err      error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("source %q: %s: %v", e.SourceID, e.Field, e.Err)
	}
	return fmt.Sprintf("source %q: %v", e.SourceID, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
