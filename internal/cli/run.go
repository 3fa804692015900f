package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	_ "github.com/Alwanly/resource-watcher/docs/status"
	"github.com/Alwanly/resource-watcher/internal/config"
	"github.com/Alwanly/resource-watcher/internal/notify"
	"github.com/Alwanly/resource-watcher/internal/server/status/handler"
	"github.com/Alwanly/resource-watcher/internal/server/status/repository"
	"github.com/Alwanly/resource-watcher/internal/server/status/usecase"
	"github.com/Alwanly/resource-watcher/internal/watcher"
	authentication "github.com/Alwanly/resource-watcher/pkg/auth"
	"github.com/Alwanly/resource-watcher/pkg/database"
	"github.com/Alwanly/resource-watcher/pkg/deps"
	"github.com/Alwanly/resource-watcher/pkg/lock"
	"github.com/Alwanly/resource-watcher/pkg/logger"
	"github.com/Alwanly/resource-watcher/pkg/metrics"
	"github.com/Alwanly/resource-watcher/pkg/middleware"
	"github.com/Alwanly/resource-watcher/pkg/pubsub"
)

// run wires the watcher and its optional surfaces and blocks until ctx is
// cancelled or the watch loop fails.
func run(ctx context.Context, cfg *config.WatchConfig, stdout, stderr io.Writer) error {
	log, err := logger.NewLogger("watcher", cfg.LogFormat, cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	if cfg.LockFile != "" {
		l, err := lock.Acquire(cfg.LockFile)
		if err != nil {
			return err
		}
		defer func() {
			if err := l.Release(); err != nil {
				log.WithError(err).Warn("failed to release lock file")
			}
		}()
		log.Debug("lock acquired", logger.String("path", l.Path()))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec, err := metrics.NewPrometheusRecorder(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	opts := []watcher.Option{
		watcher.WithMetrics(rec),
		watcher.WithOutput(stdout, stderr),
	}

	var db *gorm.DB
	if cfg.HistoryDB != "" {
		db, err = database.NewSQLiteDB(cfg.HistoryDB, cfg.Verbose)
		if err != nil {
			return err
		}
		defer func() {
			if err := database.Close(db); err != nil {
				log.WithError(err).Error("failed to close database")
			}
		}()
		if err := database.RunMigrations(db); err != nil {
			return err
		}
		opts = append(opts, watcher.WithRunHook(usecase.NewHistoryHook(repository.NewRepository(db), log.Component("history"))))
		log.Info("run history enabled", logger.String("path", cfg.HistoryDB))
	}

	if cfg.Redis != nil {
		pub, err := pubsub.NewRedisPublisher(ctx, pubsub.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log)
		if err != nil {
			log.WithError(err).Error("failed to initialize redis, continuing without change notifications")
		} else {
			defer pub.Close()
			opts = append(opts, watcher.WithRunHook(notify.NewNotifier(pub, cfg.NotifyChannel, log.Component("notify"))))
			log.Info("change notifications enabled", logger.String("channel", cfg.NotifyChannel))
		}
	} else {
		log.Debug("no redis configuration provided; change notifications disabled")
	}

	w, err := watcher.New(cfg, log, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// The loop ending for any reason stops the status server too.
		defer cancel()
		return w.Run(gCtx)
	})

	if cfg.StatusAddr != "" {
		if err := serveStatus(gCtx, g, cfg, log, db, reg, w); err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
	}

	err = g.Wait()
	var perr *watcher.PipelineError
	if errors.As(err, &perr) {
		log.Error("watch pipeline failed", logger.Err(err))
	}
	return err
}

func serveStatus(ctx context.Context, g *errgroup.Group, cfg *config.WatchConfig, log *logger.CanonicalLogger, db *gorm.DB, reg *prometheus.Registry, w *watcher.Watcher) error {
	ln, err := net.Listen("tcp", cfg.StatusAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.StatusAddr, err)
	}

	app := fiber.New(fiber.Config{
		AppName:               "Resource Watcher",
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(log),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.CanonicalLoggerMiddleware(log.Component("status")))

	var basic *authentication.BasicAuthTConfig
	if cfg.StatusUsername != "" {
		basic = &authentication.BasicAuthTConfig{Username: cfg.StatusUsername, Password: cfg.StatusPassword}
	}

	handler.NewHandler(deps.App{
		Fiber:      app,
		Logger:     log,
		Database:   db,
		Middleware: middleware.NewAuthMiddleware(middleware.SetBasicAuth(basic)),
		Gatherer:   reg,
	}, w)

	g.Go(func() error {
		log.Info("status API is running", logger.String("address", ln.Addr().String()))
		if err := app.Listener(ln); err != nil && ctx.Err() == nil {
			return fmt.Errorf("status API: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		if err := app.Shutdown(); err != nil {
			log.WithError(err).Error("failed to shutdown fiber app")
			return err
		}
		_ = ln.Close()
		return nil
	})
	return nil
}
