package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(now *time.Time) *Limiter {
	l := &Limiter{
		windows: make(map[string]*window),
		nowFn:   func() time.Time { return *now },
		done:    make(chan struct{}),
	}
	return l
}

func TestAllow_DeniesAtLimit(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("u1", "sync", 5, time.Minute), "call %d", i+1)
	}
	// The (N+1)-th call inside the window is refused.
	assert.False(t, l.Allow("u1", "sync", 5, time.Minute))
	// And stays refused: denied calls must not extend the window count.
	assert.False(t, l.Allow("u1", "sync", 5, time.Minute))
}

func TestAllow_FreshWindowAfterReset(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)

	for i := 0; i < 3; i++ {
		l.Allow("u1", "sync", 3, time.Minute)
	}
	assert.False(t, l.Allow("u1", "sync", 3, time.Minute))

	now = now.Add(time.Minute + time.Second)
	assert.True(t, l.Allow("u1", "sync", 3, time.Minute))
}

func TestAllow_KeysAreIsolated(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)

	assert.True(t, l.Allow("u1", "sync", 1, time.Minute))
	assert.False(t, l.Allow("u1", "sync", 1, time.Minute))
	// Different action and different user each get their own window.
	assert.True(t, l.Allow("u1", "trade_write", 1, time.Minute))
	assert.True(t, l.Allow("u2", "sync", 1, time.Minute))
}

func TestSweep_DropsExpiredWindows(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)

	l.Allow("u1", "sync", 5, time.Minute)
	l.Allow("u2", "sync", 5, time.Hour)
	assert.Len(t, l.windows, 2)

	now = now.Add(2 * time.Minute)
	l.sweep()
	assert.Len(t, l.windows, 1)
	_, kept := l.windows["u2:sync"]
	assert.True(t, kept)
}

func TestAllowDefault_UsesDefaultPolicy(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)

	for i := 0; i < DefaultMaxRequests; i++ {
		assert.True(t, l.AllowDefault("u1", "sync"))
	}
	assert.False(t, l.AllowDefault("u1", "sync"))
}
