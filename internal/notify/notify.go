// Package notify publishes command run events to subscribers of a redis channel.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Alwanly/resource-watcher/internal/models"
	"github.com/Alwanly/resource-watcher/pkg/logger"
	"github.com/Alwanly/resource-watcher/pkg/pubsub"
)

const (
	EventRunStarted  = "run_started"
	EventRunFinished = "run_finished"
)

// Event is the JSON message published for every run transition.
type Event struct {
	Type       string     `json:"type"`
	RunID      string     `json:"run_id"`
	URI        string     `json:"uri"`
	Command    string     `json:"command"`
	BodyBytes  int        `json:"body_bytes"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	ExitCode   *int       `json:"exit_code,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Notifier is a run hook. Publish failures are logged and never reach the loop.
type Notifier struct {
	pub     pubsub.Publisher
	channel string
	logger  *logger.CanonicalLogger
}

func NewNotifier(pub pubsub.Publisher, channel string, log *logger.CanonicalLogger) *Notifier {
	return &Notifier{pub: pub, channel: channel, logger: log}
}

func (n *Notifier) RunStarted(ctx context.Context, run models.Run) {
	n.publish(ctx, EventRunStarted, run)
}

func (n *Notifier) RunFinished(ctx context.Context, run models.Run) {
	n.publish(ctx, EventRunFinished, run)
}

func (n *Notifier) publish(ctx context.Context, kind string, run models.Run) {
	msg, err := json.Marshal(Event{
		Type:       kind,
		RunID:      run.ID,
		URI:        run.URI,
		Command:    run.Command,
		BodyBytes:  run.BodyBytes,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		ExitCode:   run.ExitCode,
		Error:      run.Error,
	})
	if err != nil {
		n.logger.Error("failed to encode run event", logger.String(logger.FieldRunID, run.ID), logger.Err(err))
		return
	}

	if err := n.pub.Publish(ctx, n.channel, string(msg)); err != nil {
		n.logger.Warn("failed to publish run event",
			logger.String(logger.FieldRunID, run.ID),
			logger.String("event", kind),
			logger.Err(err),
		)
		return
	}
	n.logger.Debug("run event published", logger.String(logger.FieldRunID, run.ID), logger.String("event", kind))
}
