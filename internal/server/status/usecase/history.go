package usecase

import (
	"context"

	"github.com/Alwanly/resource-watcher/internal/models"
	"github.com/Alwanly/resource-watcher/internal/server/status/repository"
	"github.com/Alwanly/resource-watcher/pkg/logger"
)

// HistoryHook writes every command run to the repository. Write failures
// are logged; history never blocks a run.
type HistoryHook struct {
	repo   repository.IRepository
	logger *logger.CanonicalLogger
}

func NewHistoryHook(repo repository.IRepository, log *logger.CanonicalLogger) *HistoryHook {
	return &HistoryHook{repo: repo, logger: log}
}

func (h *HistoryHook) RunStarted(ctx context.Context, run models.Run) {
	if err := h.repo.CreateRun(ctx, &run); err != nil {
		h.logger.WithRunID(run.ID).Warn("failed to record run start", logger.Err(err))
	}
}

func (h *HistoryHook) RunFinished(ctx context.Context, run models.Run) {
	if err := h.repo.FinishRun(ctx, &run); err != nil {
		h.logger.WithRunID(run.ID).Warn("failed to record run result", logger.Err(err))
	}
}
