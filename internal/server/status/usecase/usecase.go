package usecase

import (
	"context"
	"net/http"

	"github.com/Alwanly/resource-watcher/internal/server/status/dto"
	"github.com/Alwanly/resource-watcher/internal/server/status/repository"
	"github.com/Alwanly/resource-watcher/pkg/logger"
	"github.com/Alwanly/resource-watcher/pkg/wrapper"
	"go.uber.org/zap"
)

type UseCase struct {
	repo   repository.IRepository
	source StatusSource
}

// NewUseCase creates the status use case. repo may be nil when run history
// is disabled.
func NewUseCase(repo repository.IRepository, source StatusSource) UseCaseInterface {
	return &UseCase{
		repo:   repo,
		source: source,
	}
}

func (uc *UseCase) GetHealthStatus(ctx context.Context) wrapper.JSONResult {
	snap := uc.source.Snapshot()
	return wrapper.ResponseSuccess(http.StatusOK, dto.HealthCheckResponse{
		Status:  "healthy",
		Service: "resource-watcher",
		URI:     snap.URI,
	})
}

func (uc *UseCase) GetStatus(ctx context.Context) wrapper.JSONResult {
	snap := uc.source.Snapshot()
	logger.AddToContext(ctx, zap.String("state", snap.State))
	return wrapper.ResponseSuccess(http.StatusOK, snap)
}

func (uc *UseCase) ListRuns(ctx context.Context, limit int) wrapper.JSONResult {
	if uc.repo == nil {
		logger.AddToContext(ctx, zap.Bool(logger.FieldSuccess, false))
		return wrapper.ResponseFailed(http.StatusNotFound, "run history is disabled", nil)
	}

	if limit <= 0 {
		limit = dto.DefaultRunsLimit
	}

	runs, err := uc.repo.ListRuns(ctx, limit)
	if err != nil {
		logger.AddToContext(ctx, zap.Error(err), zap.Bool(logger.FieldSuccess, false))
		return wrapper.ResponseFailed(http.StatusInternalServerError, "failed to list runs", nil)
	}

	res := dto.ListRunsResponse{Runs: make([]dto.RunResponse, 0, len(runs))}
	for i := range runs {
		run := &runs[i]
		res.Runs = append(res.Runs, dto.RunResponse{
			ID:         run.ID,
			Command:    run.Command,
			BodyBytes:  run.BodyBytes,
			StartedAt:  run.StartedAt,
			FinishedAt: run.FinishedAt,
			ExitCode:   run.ExitCode,
			Error:      run.Error,
			Succeeded:  run.Succeeded(),
		})
	}
	res.Count = len(res.Runs)

	logger.AddToContext(ctx, zap.Bool(logger.FieldSuccess, true), zap.Int("count", res.Count))
	return wrapper.ResponseSuccess(http.StatusOK, res)
}
