package repository

import (
	"context"

	"github.com/Alwanly/resource-watcher/internal/models"
)

// IRepository stores the command run history.
type IRepository interface {
	CreateRun(ctx context.Context, run *models.Run) error
	FinishRun(ctx context.Context, run *models.Run) error
	ListRuns(ctx context.Context, limit int) ([]models.Run, error)
}
