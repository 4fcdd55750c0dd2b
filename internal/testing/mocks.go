package testing

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/aristath/aurum/internal/clients/llm"
	"github.com/stretchr/testify/mock"
)

// MockProvider is a testify mock of llm.Provider.
type MockProvider struct {
	mock.Mock
	name  string
	delay time.Duration
	calls atomic.Int32
}

// NewMockProvider creates a named mock provider.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

// WithDelay makes every Complete call block for d (or until ctx is done).
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.delay = d
	return m
}

func (m *MockProvider) Name() string { return m.name }

func (m *MockProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// Calls returns how many times Complete was invoked.
func (m *MockProvider) Calls() int {
	return int(m.calls.Load())
}
