package poll

import (
	"sync"
	"time"
)

// ticker is a Source backed by time.Ticker. A tick that arrives while the
// consumer is still busy is dropped by time.Ticker itself, so slow consumers
// never build a backlog.
type ticker struct {
	interval time.Duration
	mu       sync.Mutex
	t        *time.Ticker
}

// NewTicker creates a Source firing every cfg.Interval. The first tick fires
// one interval after Start.
func NewTicker(cfg Config) Source {
	if cfg.Interval <= 0 {
		cfg = DefaultConfig()
	}
	return &ticker{interval: cfg.Interval}
}

func (s *ticker) Start() <-chan time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.t == nil {
		s.t = time.NewTicker(s.interval)
	}
	return s.t.C
}

func (s *ticker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.t != nil {
		s.t.Stop()
	}
}
