package watcher

import (
	"time"

	"github.com/Alwanly/resource-watcher/internal/models"
	"github.com/Alwanly/resource-watcher/pkg/metrics"
)

// state is written only by the loop goroutine, under Watcher.mu.
type state struct {
	commandRunning bool
	refreshing     bool
	fetching       bool
	token          string

	ticks          uint64
	skippedTicks   uint64
	fetches        uint64
	changes        uint64
	lastStatusCode int
	lastSuccessAt  *time.Time
	lastChangeAt   *time.Time
	runID          string
}

// gate returns the reason a tick must be skipped, or "" if it may poll.
func (s *state) gate() string {
	switch {
	case s.commandRunning:
		return metrics.TickSkippedCommand
	case s.refreshing:
		return metrics.TickSkippedRefreshing
	case s.fetching:
		return metrics.TickSkippedFetching
	}
	return ""
}

func (s *state) snapshot(uri string) models.WatchStatus {
	st := models.WatchStatus{
		URI:            uri,
		State:          models.StateIdle,
		CommandRunning: s.commandRunning,
		AuthRefreshing: s.refreshing,
		HasToken:       s.token != "",
		Ticks:          s.ticks,
		SkippedTicks:   s.skippedTicks,
		Fetches:        s.fetches,
		Changes:        s.changes,
		LastStatusCode: s.lastStatusCode,
		LastSuccessAt:  copyTime(s.lastSuccessAt),
		LastChangeAt:   copyTime(s.lastChangeAt),
		CurrentRunID:   s.runID,
	}
	switch {
	case s.commandRunning:
		st.State = models.StateCommandRunning
	case s.refreshing:
		st.State = models.StateAuthRefreshing
	}
	return st
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
