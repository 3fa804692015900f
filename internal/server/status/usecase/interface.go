package usecase

import (
	"context"

	"github.com/Alwanly/resource-watcher/internal/models"
	"github.com/Alwanly/resource-watcher/pkg/wrapper"
)

// StatusSource exposes the live loop state.
type StatusSource interface {
	Snapshot() models.WatchStatus
}

type UseCaseInterface interface {
	GetHealthStatus(ctx context.Context) wrapper.JSONResult
	GetStatus(ctx context.Context) wrapper.JSONResult
	ListRuns(ctx context.Context, limit int) wrapper.JSONResult
}
