package poll

import (
	"time"
)

// Source delivers ticks to the watch loop.
type Source interface {
	// Start begins delivering ticks on the returned channel. A closed channel
	// means the source itself failed; the loop treats that as fatal.
	Start() <-chan time.Time
	// Stop releases the source. Ticks are not delivered after Stop returns.
	Stop()
}
