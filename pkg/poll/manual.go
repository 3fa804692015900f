package poll

import (
	"sync"
	"time"
)

// Manual is a Source driven by the caller. Tick blocks until the consumer
// receives the tick, which makes loop tests deterministic.
type Manual struct {
	ch   chan time.Time
	once sync.Once
}

// NewManual creates a Manual source.
func NewManual() *Manual {
	return &Manual{ch: make(chan time.Time)}
}

func (m *Manual) Start() <-chan time.Time {
	return m.ch
}

// Stop is a no-op; use Fail to close the channel.
func (m *Manual) Stop() {}

// Tick delivers one tick and waits for it to be received.
func (m *Manual) Tick() {
	m.ch <- time.Now()
}

// Fail closes the tick channel, simulating a broken source.
func (m *Manual) Fail() {
	m.once.Do(func() { close(m.ch) })
}
