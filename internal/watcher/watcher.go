package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/Alwanly/resource-watcher/internal/authenticator"
	"github.com/Alwanly/resource-watcher/internal/command"
	"github.com/Alwanly/resource-watcher/internal/config"
	"github.com/Alwanly/resource-watcher/internal/fetcher"
	"github.com/Alwanly/resource-watcher/internal/models"
	"github.com/Alwanly/resource-watcher/pkg/logger"
	"github.com/Alwanly/resource-watcher/pkg/metrics"
	"github.com/Alwanly/resource-watcher/pkg/poll"
	"github.com/google/uuid"
)

const hookTimeout = 5 * time.Second

// Watcher polls one resource and runs the configured command whenever its
// content changes.
type Watcher struct {
	cfg      *config.WatchConfig
	template *command.Template
	detector *Detector

	fetcher  IFetcher
	auth     IAuthenticator
	executor IExecutor
	source   poll.Source
	metrics  metrics.Recorder
	hooks    []IRunHook
	stdout   io.Writer
	stderr   io.Writer
	logger   *logger.CanonicalLogger

	mu sync.RWMutex
	st state
}

type authResult struct {
	token string
	ok    bool
	err   error
}

type runResult struct {
	run      models.Run
	duration time.Duration
	exitCode int
	err      error
}

// New validates the command template and builds a Watcher. Collaborators
// not supplied through opts get their production defaults.
func New(cfg *config.WatchConfig, log *logger.CanonicalLogger, opts ...Option) (*Watcher, error) {
	tpl, err := command.NewTemplate(cfg.Command, cfg.IsScript, cfg.ScriptRunner)
	if err != nil {
		return nil, err
	}

	log = log.WithURI(cfg.URI)
	w := &Watcher{
		cfg:      cfg,
		template: tpl,
		detector: NewDetector(cfg.InitTrigger),
		metrics:  metrics.Nop{},
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		logger:   log,
		st:       state{token: cfg.AccessToken},
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.fetcher == nil {
		w.fetcher = fetcher.NewFetcher(cfg, log.Component("fetcher"))
	}
	if w.auth == nil && cfg.Login != nil {
		client := &http.Client{Timeout: cfg.RequestTimeout()}
		w.auth = authenticator.NewAuthenticator(client, cfg.AuthRetryDelay(), log.Component("authenticator"))
	}
	if w.executor == nil {
		w.executor = command.NewLocalExecutor()
	}
	if w.source == nil {
		w.source = poll.NewTicker(poll.Config{Interval: cfg.Interval()})
	}
	return w, nil
}

// Snapshot returns a copy of the loop state.
func (w *Watcher) Snapshot() models.WatchStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.st.snapshot(w.cfg.URI)
}

// Run drives the loop until ctx is cancelled, which returns nil, or until the
// pipeline itself breaks, which returns a *PipelineError. In-flight fetches,
// logins and commands are cancelled and awaited before Run returns.
func (w *Watcher) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		w.source.Stop()
		wg.Wait()
	}()
	defer func() {
		if r := recover(); r != nil {
			err = &PipelineError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	fetchDone := make(chan fetcher.Result, 1)
	authDone := make(chan authResult, 1)
	exitDone := make(chan runResult, 1)
	fatal := make(chan error, 1)

	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					select {
					case fatal <- fmt.Errorf("panic: %v", r):
					default:
					}
				}
			}()
			fn()
		}()
	}

	ticks := w.source.Start()
	w.logger.Info("listening for changes", logger.Duration("interval", w.cfg.Interval()))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watch stopped")
			return nil

		case perr := <-fatal:
			return &PipelineError{Err: perr}

		case _, ok := <-ticks:
			if !ok {
				return &PipelineError{Err: errTickSourceClosed}
			}
			if creds, eligible := w.onTick(); eligible {
				spawn(func() { fetchDone <- w.fetcher.Fetch(ctx, creds) })
			}

		case res := <-fetchDone:
			w.onFetch(ctx, res, spawn, authDone, exitDone)

		case res := <-authDone:
			w.onAuth(res)

		case res := <-exitDone:
			w.onExit(res)
		}
	}
}

func (w *Watcher) onTick() (fetcher.Credentials, bool) {
	w.mu.Lock()
	w.st.ticks++
	reason := w.st.gate()
	if reason != "" {
		w.st.skippedTicks++
		w.mu.Unlock()
		w.metrics.ObserveTick(reason)
		w.logger.Debug("tick skipped", logger.String(logger.FieldTickSkip, reason))
		return fetcher.Credentials{}, false
	}
	w.st.fetching = true
	creds := fetcher.Credentials{Token: w.st.token, Basic: w.cfg.BasicAuth}
	w.mu.Unlock()

	w.metrics.ObserveTick(metrics.TickPolled)
	return creds, true
}

func (w *Watcher) onFetch(ctx context.Context, res fetcher.Result, spawn func(func()), authDone chan<- authResult, exitDone chan<- runResult) {
	now := time.Now()
	w.mu.Lock()
	w.st.fetching = false
	w.st.fetches++
	if res.StatusCode > 0 {
		w.st.lastStatusCode = res.StatusCode
	}
	if res.Outcome == fetcher.OutcomeSuccess {
		w.st.lastSuccessAt = &now
	}
	w.mu.Unlock()
	w.metrics.ObserveFetch(res.Outcome.String(), res.StatusCode)

	switch res.Outcome {
	case fetcher.OutcomeTransportError:
		w.logger.Debug("fetch failed", logger.Err(res.Err))

	case fetcher.OutcomeHTTPFailure:
		w.logger.Debug("fetch returned non-success status", logger.Int(logger.FieldStatus, res.StatusCode))

	case fetcher.OutcomeAuthRequired:
		w.onAuthRequired(ctx, res.StatusCode, spawn, authDone)

	case fetcher.OutcomeSuccess:
		w.onBody(ctx, res.Body, spawn, exitDone)
	}
}

func (w *Watcher) onAuthRequired(ctx context.Context, status int, spawn func(func()), authDone chan<- authResult) {
	if w.cfg.Login == nil || w.auth == nil {
		w.logger.Warn("invalid or insufficient credentials", logger.Int(logger.FieldStatus, status))
		return
	}

	w.mu.Lock()
	if w.st.refreshing {
		w.mu.Unlock()
		w.logger.Debug("token refresh already in flight", logger.Int(logger.FieldStatus, status))
		return
	}
	w.st.refreshing = true
	w.mu.Unlock()

	w.logger.Warn("authentication required, requesting a new token", logger.Int(logger.FieldStatus, status))
	login := *w.cfg.Login
	spawn(func() {
		token, ok, err := w.auth.ResolveToken(ctx, login)
		authDone <- authResult{token: token, ok: ok, err: err}
	})
}

func (w *Watcher) onAuth(res authResult) {
	w.mu.Lock()
	w.st.refreshing = false
	if res.err == nil {
		// A failed login leaves no usable token; fall back to basic credentials.
		w.st.token = res.token
	}
	w.mu.Unlock()

	switch {
	case errors.Is(res.err, context.Canceled):
		w.metrics.ObserveTokenRefresh("cancelled")
		w.logger.Debug("token refresh aborted", logger.Err(res.err))
	case res.err != nil:
		w.metrics.ObserveTokenRefresh("failed")
		w.logger.Warn("token refresh failed", logger.Err(res.err))
	case !res.ok:
		w.metrics.ObserveTokenRefresh("empty")
		w.logger.Warn("login did not return a token")
	default:
		w.metrics.ObserveTokenRefresh("success")
		w.logger.Info("bearer token refreshed")
	}
}

func (w *Watcher) onBody(ctx context.Context, body string, spawn func(func()), exitDone chan<- runResult) {
	if !w.detector.Observe(body) {
		w.logger.Debug("no change detected")
		return
	}

	now := time.Now()
	cmd := w.template.Render(body)
	run := models.Run{
		ID:        uuid.NewString(),
		URI:       w.cfg.URI,
		Command:   cmd,
		BodyBytes: len(body),
		StartedAt: now,
	}

	w.mu.Lock()
	w.st.commandRunning = true
	w.st.changes++
	w.st.lastChangeAt = &now
	w.st.runID = run.ID
	w.mu.Unlock()
	w.metrics.ObserveChange()

	w.logger.Info("change detected, launching command",
		logger.String(logger.FieldRunID, run.ID),
		logger.String(logger.FieldCommand, cmd),
	)

	opts := command.Options{
		Dir:    w.cfg.WorkingDirectory,
		Stdout: w.stdout,
		Stderr: w.stderr,
	}
	if entry, ok := command.ResponseEnvEntry(body); ok {
		opts.Env = []string{entry}
	} else {
		w.logger.Debug("response body not exported to the command environment",
			logger.String(logger.FieldRunID, run.ID),
			logger.Int("body_bytes", len(body)),
		)
	}
	spawn(func() {
		exitDone <- w.execute(ctx, run, opts)
	})
}

// execute runs on its own goroutine and returns once the command has exited.
func (w *Watcher) execute(ctx context.Context, run models.Run, opts command.Options) runResult {
	hookCtx := context.WithoutCancel(ctx)
	w.notify(hookCtx, run, IRunHook.RunStarted)

	start := time.Now()
	res := runResult{run: run, exitCode: -1}

	handle, err := w.executor.Start(ctx, run.Command, opts)
	if err != nil {
		res.err = err
	} else {
		res.exitCode, res.err = handle.Wait()
	}
	res.duration = time.Since(start)

	finished := time.Now()
	res.run.FinishedAt = &finished
	if res.err != nil {
		res.run.Error = res.err.Error()
	} else {
		code := res.exitCode
		res.run.ExitCode = &code
	}
	w.notify(hookCtx, res.run, IRunHook.RunFinished)
	return res
}

func (w *Watcher) notify(ctx context.Context, run models.Run, fn func(IRunHook, context.Context, models.Run)) {
	if len(w.hooks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, hookTimeout)
	defer cancel()
	for _, h := range w.hooks {
		fn(h, ctx, run)
	}
}

func (w *Watcher) onExit(res runResult) {
	w.mu.Lock()
	w.st.commandRunning = false
	w.st.runID = ""
	w.mu.Unlock()

	success := res.err == nil && res.exitCode == 0
	w.metrics.ObserveCommand(success, res.duration)

	log := w.logger.WithRunID(res.run.ID)
	switch {
	case res.err != nil:
		log.Error("command failed", logger.Err(res.err))
	case res.exitCode != 0:
		log.Warn("command exited with non-zero status",
			logger.Int(logger.FieldExitCode, res.exitCode),
			logger.Duration("duration", res.duration),
		)
	default:
		log.Info("command finished", logger.Duration("duration", res.duration))
	}
}
