package artifact

import (
	"errors"
	"fmt"
)

var (
	// ErrNoJSON is returned when a generation result contains no JSON object.
	ErrNoJSON = errors.New("no JSON object in generation result")
	// ErrNoProvider is returned when a producer has no generation provider.
	ErrNoProvider = errors.New("no generation provider configured")
)

// ParseError is a generation result that could not be parsed or validated.
type ParseError struct {
	Provider string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s result: %v", e.Provider, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// PersistenceError is a failed relational write of a produced payload.
// It never prevents the payload from being cached.
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist %s: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
