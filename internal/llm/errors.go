package llm

import (
	"errors"
	"fmt"
)

var (
	ErrNoAPIKey     = errors.New("no API key configured")
	ErrRateLimited  = errors.New("rate limited")
	ErrEmptyContent = errors.New("empty completion")
)

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider   string
	Model      string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("%s/%s: %v", e.Provider, e.Model, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
