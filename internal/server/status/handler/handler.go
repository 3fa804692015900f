package handler

import (
	"github.com/Alwanly/resource-watcher/internal/server/status/dto"
	"github.com/Alwanly/resource-watcher/internal/server/status/repository"
	"github.com/Alwanly/resource-watcher/internal/server/status/usecase"
	"github.com/Alwanly/resource-watcher/pkg/deps"
	"github.com/Alwanly/resource-watcher/pkg/logger"
	"github.com/Alwanly/resource-watcher/pkg/validator"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	swagger "github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handler struct {
	Logger  *logger.CanonicalLogger
	UseCase usecase.UseCaseInterface
}

// NewHandler registers the status routes on d.Fiber. Run history is served
// only when d.Database is set.
func NewHandler(d deps.App, source usecase.StatusSource) *Handler {
	var repo repository.IRepository
	if d.Database != nil {
		repo = repository.NewRepository(d.Database)
	}

	h := &Handler{
		Logger:  d.Logger,
		UseCase: usecase.NewUseCase(repo, source),
	}

	// Health check endpoint (no auth required)
	d.Fiber.Get("/health", h.healthCheck)

	// Basic auth protected endpoints; open when no credentials are configured
	auth := d.Middleware.BasicAuth()
	d.Fiber.Get("/status", auth, h.status)
	d.Fiber.Get("/runs", auth, h.listRuns)
	if d.Gatherer != nil {
		d.Fiber.Get("/metrics", auth, adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	d.Fiber.Get("/swagger/*", auth, swagger.HandlerDefault)

	return h
}

// healthCheck godoc
// @Summary      Health check
// @Description  Reports that the watcher process is up
// @Tags         health
// @Produce      json
// @Success      200 {object} dto.HealthCheckResponse
// @Router       /health [get]
func (h *Handler) healthCheck(c *fiber.Ctx) error {
	res := h.UseCase.GetHealthStatus(c.UserContext())
	return c.Status(res.Code).JSON(res.Data)
}

// status godoc
// @Summary      Watch loop status
// @Description  Point-in-time snapshot of the gate flags and loop counters
// @Tags         status
// @Produce      json
// @Success      200 {object} models.WatchStatus
// @Failure      401 {object} wrapper.JSONResult "Invalid credentials"
// @Router       /status [get]
// @Security     BasicAuth
func (h *Handler) status(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String("operation", "get_status"))

	res := h.UseCase.GetStatus(c.UserContext())
	return c.Status(res.Code).JSON(res.Data)
}

// listRuns godoc
// @Summary      Command run history
// @Description  Most recent command runs first
// @Tags         runs
// @Produce      json
// @Param        limit query int false "Maximum number of runs (1-500)" default(20)
// @Success      200 {object} dto.ListRunsResponse
// @Failure      400 {object} map[string]string "Invalid query"
// @Failure      404 {object} wrapper.JSONResult "Run history is disabled"
// @Failure      500 {object} wrapper.JSONResult "Internal server error"
// @Router       /runs [get]
// @Security     BasicAuth
func (h *Handler) listRuns(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String("operation", "list_runs"))

	req := new(dto.ListRunsRequest)
	if err := c.QueryParser(req); err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid query"})
	}

	if err := validator.ValidateStruct(req); err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(validator.TranslateError(err))
	}

	res := h.UseCase.ListRuns(c.UserContext(), req.Limit)
	if !res.Success {
		return c.Status(res.Code).JSON(res)
	}
	return c.Status(res.Code).JSON(res.Data)
}
