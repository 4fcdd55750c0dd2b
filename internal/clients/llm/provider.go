// Package llm talks to OpenAI-compatible chat completion endpoints used to
// generate analysis artifacts.
package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrProviderTimeout is returned when a generation call exceeds its deadline.
	ErrProviderTimeout = errors.New("provider timed out")
	// ErrNotConfigured is returned by a provider without an API key.
	ErrNotConfigured = errors.New("provider not configured")
	// ErrEmptyCompletion is returned when the response carries no content.
	ErrEmptyCompletion = errors.New("empty completion")
)

// Request is a single-turn generation request.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	WebSearch   bool
}

// Provider generates text for a prompt.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// ProviderError wraps any failure of a named provider.
type ProviderError struct {
	Provider string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
