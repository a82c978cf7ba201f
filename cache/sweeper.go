package cache

import (
	"sync"
	"time"
)

// Sweeper periodically removes expired entries from a RequestCache.
// It exists only to bound memory held by stale entries; the cache is
// correct without it because expiry is enforced lazily on read.
type Sweeper struct {
	cache    *RequestCache
	interval time.Duration

	mu     sync.Mutex
	ticker *time.Ticker
	done   chan struct{}
}

// NewSweeper creates a sweeper for the given cache. It does not start
// sweeping until Start is called.
func NewSweeper(c *RequestCache, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{cache: c, interval: interval}
}

// Start begins periodic sweeping. Calling Start on a running sweeper
// is a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.interval)
	s.done = make(chan struct{})

	go s.run(s.ticker, s.done)
}

// Stop halts periodic sweeping and waits for the sweep goroutine to
// observe the stop. Idempotent.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}

	s.ticker.Stop()
	close(s.done)
	s.ticker = nil
	s.done = nil
}

func (s *Sweeper) run(ticker *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.cache.sweep()
		}
	}
}
