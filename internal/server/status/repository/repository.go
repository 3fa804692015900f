package repository

import (
	"context"
	"fmt"

	"github.com/Alwanly/resource-watcher/internal/models"
	"gorm.io/gorm"
)

type Repository struct {
	DB *gorm.DB
}

func NewRepository(db *gorm.DB) IRepository {
	return &Repository{DB: db}
}

// CreateRun inserts a run when its command starts.
func (r *Repository) CreateRun(ctx context.Context, run *models.Run) error {
	if err := r.DB.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a run. A run that was never created is
// inserted, so a failed start write does not lose the result.
func (r *Repository) FinishRun(ctx context.Context, run *models.Run) error {
	if err := r.DB.WithContext(ctx).Omit("created_at").Save(run).Error; err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	var runs []models.Run
	err := r.DB.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}
