package server

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Reserve(t *testing.T) {
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	rl := newRateLimiter(60, zerolog.Nop())
	rl.now = func() time.Time { return now }

	for i := 0; i < 60; i++ {
		ok, _ := rl.reserve("10.0.0.1")
		assert.True(t, ok, "request %d", i)
	}

	ok, wait := rl.reserve("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	// A rejected request does not consume the next token
	now = now.Add(time.Second)
	ok, _ = rl.reserve("10.0.0.1")
	assert.True(t, ok)
	ok, _ = rl.reserve("10.0.0.1")
	assert.False(t, ok)

	ok, _ = rl.reserve("10.0.0.2")
	assert.True(t, ok)
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	rl := newRateLimiter(60, zerolog.Nop())
	rl.now = func() time.Time { return now }

	rl.reserve("10.0.0.1")
	rl.reserve("10.0.0.2")
	assert.Equal(t, 2, rl.tracked())

	now = now.Add(2 * time.Minute)
	rl.reserve("10.0.0.2")
	assert.Equal(t, 2, rl.tracked())

	now = now.Add(2 * time.Minute)
	rl.reserve("10.0.0.3")
	assert.Equal(t, 2, rl.tracked())
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "192.0.2.1", clientIP("192.0.2.1:1234"))
	assert.Equal(t, "2001:db8::1", clientIP("[2001:db8::1]:443"))
	assert.Equal(t, "198.51.100.4", clientIP("198.51.100.4"))
	assert.Equal(t, "unknown", clientIP(""))
}
