// Package ratelimit implements the fixed-window request counter used by
// write paths (trade submission, sync triggers). Refusal is a boolean,
// not an error: callers must check the result before proceeding.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultMaxRequests / DefaultWindow is the policy applied when a
	// call site does not override it: 50 requests per minute.
	DefaultMaxRequests = 50
	DefaultWindow      = time.Minute

	sweepInterval = 5 * time.Minute
)

type window struct {
	count   int
	resetAt time.Time
}

// Limiter owns the window table. It is an explicit instance with
// construction and teardown, not ambient package state; one instance is
// shared process-wide and keyed by user+action so per-user isolation
// holds.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	nowFn   func() time.Time
	done    chan struct{}
	once    sync.Once
}

func New() *Limiter {
	l := &Limiter{
		windows: make(map[string]*window),
		nowFn:   time.Now,
		done:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow reports whether userID may perform action now. A fresh or
// expired window restarts at count=1; at or above max the call is
// denied without incrementing, so a burst cannot extend its own ban.
func (l *Limiter) Allow(userID, action string, max int, windowSize time.Duration) bool {
	if max <= 0 {
		max = DefaultMaxRequests
	}
	if windowSize <= 0 {
		windowSize = DefaultWindow
	}
	key := userID + ":" + action
	now := l.nowFn()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(windowSize)}
		return true
	}
	if w.count < max {
		w.count++
		return true
	}
	return false
}

// AllowDefault applies the default policy.
func (l *Limiter) AllowDefault(userID, action string) bool {
	return l.Allow(userID, action, DefaultMaxRequests, DefaultWindow)
}

// Close stops the background sweep. Safe to call more than once.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.done) })
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep drops expired windows to bound memory.
func (l *Limiter) sweep() {
	now := l.nowFn()
	l.mu.Lock()
	for key, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, key)
		}
	}
	l.mu.Unlock()
}
