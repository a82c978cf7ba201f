package ratelimit

import (
	"sync"
	"time"
)

// Config configures a Limiter.
type Config struct {
	// Limit is the maximum number of admitted requests per key within
	// one window.
	// Default: 100
	Limit int

	// Window is the length of the trailing window.
	// Default: 1 minute
	Window time.Duration

	// Now supplies the current time. Used by tests to simulate time.
	// Default: time.Now
	Now func() time.Time
}

// Info describes the state of one key's window at a point in time.
type Info struct {
	// Limit is the configured per-window budget.
	Limit int

	// Window is the configured window length.
	Window time.Duration

	// Remaining is how many more requests the key can admit right now.
	Remaining int

	// Reset is when the oldest surviving admission ages out of the
	// window. Equal to now when the key has no admissions.
	Reset time.Time
}

// Limiter is a per-key sliding-window admission counter.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Independence: each key's window is independent; there is no global
//   budget shared across keys.
type Limiter struct {
	mu      sync.Mutex
	records map[string][]time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
}

// New creates a Limiter with the given configuration.
func New(cfg Config) *Limiter {
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Limiter{
		records: make(map[string][]time.Time),
		limit:   cfg.Limit,
		window:  cfg.Window,
		now:     cfg.Now,
	}
}

// Admit decides whether a request for key may proceed. The decision is
// derived from current state at the moment of the call: timestamps older
// than the window are pruned first, then the request is admitted iff the
// surviving count is strictly below the limit. Admission appends the
// current timestamp; rejection records nothing.
func (l *Limiter) Admit(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stamps := l.pruneLocked(key, now)

	if len(stamps) >= l.limit {
		return false
	}

	l.records[key] = append(stamps, now)
	return true
}

// Info reports the current window state for key without consuming budget.
func (l *Limiter) Info(key string) Info {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stamps := l.pruneLocked(key, now)

	remaining := l.limit - len(stamps)
	if remaining < 0 {
		remaining = 0
	}

	reset := now
	if len(stamps) > 0 {
		reset = stamps[0].Add(l.window)
	}

	return Info{
		Limit:     l.limit,
		Window:    l.window,
		Remaining: remaining,
		Reset:     reset,
	}
}

// Reset clears all records for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, key)
}

// Len returns the number of keys with live records.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// pruneLocked drops timestamps older than the window and returns the
// survivors. Records that empty out are removed from the map entirely.
func (l *Limiter) pruneLocked(key string, now time.Time) []time.Time {
	stamps, ok := l.records[key]
	if !ok {
		return nil
	}

	cutoff := now.Add(-l.window)
	firstLive := len(stamps)
	for i, ts := range stamps {
		if ts.After(cutoff) {
			firstLive = i
			break
		}
	}

	if firstLive == len(stamps) {
		delete(l.records, key)
		return nil
	}
	if firstLive > 0 {
		stamps = stamps[firstLive:]
		l.records[key] = stamps
	}
	return stamps
}
