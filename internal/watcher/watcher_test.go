package watcher

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Alwanly/resource-watcher/internal/command"
	"github.com/Alwanly/resource-watcher/internal/config"
	"github.com/Alwanly/resource-watcher/internal/fetcher"
	"github.com/Alwanly/resource-watcher/internal/models"
	"github.com/Alwanly/resource-watcher/pkg/logger"
	"github.com/Alwanly/resource-watcher/pkg/poll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	waitFor  = 2 * time.Second
	tickStep = 5 * time.Millisecond
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []fetcher.Credentials
	results []fetcher.Result
	panics  bool
}

// Fetch returns results in order and repeats the last one.
func (f *fakeFetcher) Fetch(_ context.Context, creds fetcher.Credentials) fetcher.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("fetcher exploded")
	}
	f.calls = append(f.calls, creds)
	idx := len(f.calls) - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	return f.results[idx]
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) call(i int) fetcher.Credentials {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func ok(body string) fetcher.Result {
	return fetcher.Result{Outcome: fetcher.OutcomeSuccess, StatusCode: http.StatusOK, Body: body}
}

type fakeHandle struct {
	ctx     context.Context
	release <-chan struct{}
}

func (h *fakeHandle) Wait() (int, error) {
	select {
	case <-h.release:
		return 0, nil
	case <-h.ctx.Done():
		return -1, nil
	}
}

func (h *fakeHandle) Pid() int { return 1 }

type fakeExecutor struct {
	mu       sync.Mutex
	commands []string
	opts     []command.Options
	release  chan struct{}
	startErr error
}

// newExecutor returns an executor whose commands exit immediately unless
// blocking is set, in which case they exit when release is closed.
func newExecutor(blocking bool) *fakeExecutor {
	e := &fakeExecutor{release: make(chan struct{})}
	if !blocking {
		close(e.release)
	}
	return e
}

func (e *fakeExecutor) Start(ctx context.Context, cmd string, opts command.Options) (command.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, cmd)
	e.opts = append(e.opts, opts)
	if e.startErr != nil {
		return nil, e.startErr
	}
	return &fakeHandle{ctx: ctx, release: e.release}, nil
}

func (e *fakeExecutor) started() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.commands...)
}

type fakeAuth struct {
	calls   int32
	token   string
	release chan struct{}
}

func (a *fakeAuth) ResolveToken(ctx context.Context, _ config.LoginDescriptor) (string, bool, error) {
	atomic.AddInt32(&a.calls, 1)
	if a.release != nil {
		select {
		case <-a.release:
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
	return a.token, a.token != "", nil
}

type recordingHook struct {
	mu       sync.Mutex
	started  []models.Run
	finished []models.Run
}

func (h *recordingHook) RunStarted(_ context.Context, run models.Run) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = append(h.started, run)
}

func (h *recordingHook) RunFinished(_ context.Context, run models.Run) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finished = append(h.finished, run)
}

func (h *recordingHook) runs() ([]models.Run, []models.Run) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.Run(nil), h.started...), append([]models.Run(nil), h.finished...)
}

type harness struct {
	w      *Watcher
	src    *poll.Manual
	cancel context.CancelFunc
	done   chan error
}

func baseConfig() *config.WatchConfig {
	return &config.WatchConfig{
		URI:     "http://resource.test/data",
		DelayMs: 100,
		Command: "echo ${response}",
	}
}

func start(t *testing.T, cfg *config.WatchConfig, log *logger.CanonicalLogger, opts ...Option) *harness {
	t.Helper()
	if log == nil {
		log = logger.NewNop()
	}
	src := poll.NewManual()
	w, err := New(cfg, log, append(opts, WithSource(src))...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{w: w, src: src, cancel: cancel, done: make(chan error, 1)}
	go func() { h.done <- w.Run(ctx) }()
	t.Cleanup(cancel)
	return h
}

func (h *harness) stop(t *testing.T) error {
	t.Helper()
	h.cancel()
	return h.wait(t)
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
		return nil
	}
}

// tickAndWait ticks and waits until the loop has classified the fetch.
func (h *harness) tickAndWait(t *testing.T) {
	t.Helper()
	before := h.w.Snapshot().Fetches
	h.src.Tick()
	require.Eventually(t, func() bool { return h.w.Snapshot().Fetches == before+1 }, waitFor, tickStep)
}

func TestNew_InvalidTemplate(t *testing.T) {
	cfg := baseConfig()
	cfg.Command = "echo ${response"

	_, err := New(cfg, logger.NewNop())
	assert.ErrorIs(t, err, command.ErrInvalidTemplate)
}

func TestRun_NoCommandWhileCommandRunning(t *testing.T) {
	cfg := baseConfig()
	cfg.InitTrigger = true
	f := &fakeFetcher{results: []fetcher.Result{ok("A")}}
	exec := newExecutor(true)
	h := start(t, cfg, nil, WithFetcher(f), WithExecutor(exec))

	h.tickAndWait(t)
	require.Eventually(t, func() bool { return h.w.Snapshot().CommandRunning }, waitFor, tickStep)
	assert.Equal(t, models.StateCommandRunning, h.w.Snapshot().State)

	for i := 0; i < 3; i++ {
		h.src.Tick()
	}
	require.Eventually(t, func() bool { return h.w.Snapshot().SkippedTicks == 3 }, waitFor, tickStep)
	assert.Equal(t, 1, f.count(), "no fetch may run while the command is running")

	close(exec.release)
	require.Eventually(t, func() bool { return !h.w.Snapshot().CommandRunning }, waitFor, tickStep)

	h.tickAndWait(t)
	assert.Equal(t, 2, f.count())
	assert.Equal(t, []string{"echo A"}, exec.started(), "unchanged body must not rerun the command")
	assert.NoError(t, h.stop(t))
}

func TestRun_RunsCommandOnChange(t *testing.T) {
	cfg := baseConfig()
	cfg.WorkingDirectory = t.TempDir()
	f := &fakeFetcher{results: []fetcher.Result{ok("A"), ok("A"), ok("B")}}
	exec := newExecutor(false)
	hook := &recordingHook{}
	h := start(t, cfg, nil, WithFetcher(f), WithExecutor(exec), WithRunHook(hook))

	h.tickAndWait(t)
	h.tickAndWait(t)
	assert.Empty(t, exec.started())

	h.tickAndWait(t)
	require.Eventually(t, func() bool {
		_, finished := hook.runs()
		return len(finished) == 1
	}, waitFor, tickStep)

	assert.Equal(t, []string{"echo B"}, exec.started())
	exec.mu.Lock()
	opts := exec.opts[0]
	exec.mu.Unlock()
	assert.Equal(t, cfg.WorkingDirectory, opts.Dir)
	assert.Contains(t, opts.Env, command.ResponseEnv+"=B")

	started, finished := hook.runs()
	require.Len(t, started, 1)
	assert.Equal(t, started[0].ID, finished[0].ID)
	assert.Equal(t, "echo B", finished[0].Command)
	require.NotNil(t, finished[0].ExitCode)
	assert.Equal(t, 0, *finished[0].ExitCode)
	assert.NotNil(t, finished[0].FinishedAt)

	require.Eventually(t, func() bool { return !h.w.Snapshot().CommandRunning }, waitFor, tickStep)
	snap := h.w.Snapshot()
	assert.Equal(t, uint64(1), snap.Changes)
	assert.NotNil(t, snap.LastChangeAt)
	assert.NoError(t, h.stop(t))
}

func TestRun_CommandRunsWhenBodyCannotBeExported(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell tests assume sh")
	}
	tests := []struct {
		name string
		body string
	}{
		{name: "body over the environment limit", body: strings.Repeat("x", 200<<10)},
		{name: "body with NUL byte", body: "a\x00b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			cfg := baseConfig()
			cfg.Command = "true"
			cfg.InitTrigger = true
			f := &fakeFetcher{results: []fetcher.Result{ok(tt.body)}}
			hook := &recordingHook{}
			h := start(t, cfg, logger.New(zap.New(core)),
				WithFetcher(f), WithExecutor(command.NewLocalExecutor()), WithRunHook(hook))

			h.tickAndWait(t)
			require.Eventually(t, func() bool {
				_, finished := hook.runs()
				return len(finished) == 1
			}, waitFor, tickStep)

			_, finished := hook.runs()
			assert.Empty(t, finished[0].Error)
			assert.True(t, finished[0].Succeeded())
			assert.Equal(t, 1, logs.FilterMessage("response body not exported to the command environment").Len())
			assert.NoError(t, h.stop(t))
		})
	}
}

func TestRun_SpawnErrorClearsBusy(t *testing.T) {
	cfg := baseConfig()
	cfg.InitTrigger = true
	f := &fakeFetcher{results: []fetcher.Result{ok("A"), ok("B")}}
	exec := newExecutor(false)
	exec.startErr = errors.New("no shell")
	hook := &recordingHook{}
	h := start(t, cfg, nil, WithFetcher(f), WithExecutor(exec), WithRunHook(hook))

	h.tickAndWait(t)
	require.Eventually(t, func() bool {
		_, finished := hook.runs()
		return len(finished) == 1
	}, waitFor, tickStep)
	require.Eventually(t, func() bool { return !h.w.Snapshot().CommandRunning }, waitFor, tickStep)

	_, finished := hook.runs()
	assert.Equal(t, "no shell", finished[0].Error)
	assert.Nil(t, finished[0].ExitCode)

	h.tickAndWait(t)
	require.Eventually(t, func() bool { return len(exec.started()) == 2 }, waitFor, tickStep)
	assert.NoError(t, h.stop(t))
}

func TestRun_AuthRequiredRefreshesToken(t *testing.T) {
	cfg := baseConfig()
	cfg.Login = &config.LoginDescriptor{URL: "http://login.test", Username: "u", Password: "p"}
	cfg.BasicAuth = &config.BasicAuth{Username: "u", Password: "p"}
	f := &fakeFetcher{results: []fetcher.Result{
		{Outcome: fetcher.OutcomeAuthRequired, StatusCode: http.StatusUnauthorized},
		ok("A"),
	}}
	auth := &fakeAuth{token: "fresh-token", release: make(chan struct{})}
	h := start(t, cfg, nil, WithFetcher(f), WithAuthenticator(auth), WithExecutor(newExecutor(false)))

	h.tickAndWait(t)
	require.Eventually(t, func() bool { return h.w.Snapshot().AuthRefreshing }, waitFor, tickStep)
	assert.Equal(t, models.StateAuthRefreshing, h.w.Snapshot().State)

	h.src.Tick()
	require.Eventually(t, func() bool { return h.w.Snapshot().SkippedTicks == 1 }, waitFor, tickStep)
	assert.Equal(t, 1, f.count(), "no fetch may run while the token is refreshing")

	close(auth.release)
	require.Eventually(t, func() bool {
		s := h.w.Snapshot()
		return s.HasToken && !s.AuthRefreshing
	}, waitFor, tickStep)

	h.tickAndWait(t)
	assert.Equal(t, "", f.call(0).Token)
	assert.Equal(t, cfg.BasicAuth, f.call(0).Basic)
	assert.Equal(t, "fresh-token", f.call(1).Token)
	assert.Equal(t, int32(1), atomic.LoadInt32(&auth.calls))
	assert.NoError(t, h.stop(t))
}

func TestRun_StaticTokenIsSent(t *testing.T) {
	cfg := baseConfig()
	cfg.AccessToken = "static"
	f := &fakeFetcher{results: []fetcher.Result{ok("A")}}
	h := start(t, cfg, nil, WithFetcher(f), WithExecutor(newExecutor(false)))

	h.tickAndWait(t)
	assert.Equal(t, "static", f.call(0).Token)
	assert.True(t, h.w.Snapshot().HasToken)
	assert.NoError(t, h.stop(t))
}

func TestRun_AuthRequiredWithoutLoginWarns(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := baseConfig()
	f := &fakeFetcher{results: []fetcher.Result{{Outcome: fetcher.OutcomeAuthRequired, StatusCode: http.StatusForbidden}}}
	h := start(t, cfg, logger.New(zap.New(core)), WithFetcher(f), WithExecutor(newExecutor(false)))

	h.tickAndWait(t)
	h.tickAndWait(t)

	assert.Equal(t, 2, logs.FilterMessage("invalid or insufficient credentials").Len())
	s := h.w.Snapshot()
	assert.False(t, s.AuthRefreshing)
	assert.Equal(t, http.StatusForbidden, s.LastStatusCode)
	assert.NoError(t, h.stop(t))
}

func TestRun_EmptyLoginResultClearsToken(t *testing.T) {
	cfg := baseConfig()
	cfg.AccessToken = "expired"
	cfg.Login = &config.LoginDescriptor{URL: "http://login.test", Username: "u"}
	f := &fakeFetcher{results: []fetcher.Result{{Outcome: fetcher.OutcomeAuthRequired, StatusCode: http.StatusUnauthorized}}}
	auth := &fakeAuth{}
	h := start(t, cfg, nil, WithFetcher(f), WithAuthenticator(auth), WithExecutor(newExecutor(false)))

	h.tickAndWait(t)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&auth.calls) == 1 && !h.w.Snapshot().AuthRefreshing }, waitFor, tickStep)
	assert.False(t, h.w.Snapshot().HasToken)
	assert.NoError(t, h.stop(t))
}

func TestRun_NonSuccessPollsAtInterval(t *testing.T) {
	cfg := baseConfig()
	cfg.DelayMs = 300
	cfg.InitTrigger = true
	f := &fakeFetcher{results: []fetcher.Result{{Outcome: fetcher.OutcomeHTTPFailure, StatusCode: http.StatusInternalServerError}}}
	exec := newExecutor(false)

	w, err := New(cfg, logger.NewNop(), WithFetcher(f), WithExecutor(exec))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Run(ctx))

	assert.InDelta(t, 3, f.count(), 1)
	assert.Empty(t, exec.started())
}

func TestRun_TransportErrorsKeepLoopAlive(t *testing.T) {
	f := &fakeFetcher{results: []fetcher.Result{{Outcome: fetcher.OutcomeTransportError, Err: errors.New("dial tcp: refused")}}}
	h := start(t, baseConfig(), nil, WithFetcher(f), WithExecutor(newExecutor(false)))

	for i := 0; i < 5; i++ {
		h.tickAndWait(t)
	}
	select {
	case err := <-h.done:
		t.Fatalf("loop stopped unexpectedly: %v", err)
	default:
	}

	h.src.Fail()
	err := h.wait(t)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFatalPipeline)
	var perr *PipelineError
	assert.ErrorAs(t, err, &perr)
}

func TestRun_PanicIsFatal(t *testing.T) {
	f := &fakeFetcher{panics: true}
	h := start(t, baseConfig(), nil, WithFetcher(f), WithExecutor(newExecutor(false)))

	h.src.Tick()
	err := h.wait(t)
	assert.ErrorIs(t, err, ErrFatalPipeline)
	assert.Contains(t, err.Error(), "fetcher exploded")
}

func TestRun_CancelStopsRunningCommand(t *testing.T) {
	cfg := baseConfig()
	cfg.InitTrigger = true
	f := &fakeFetcher{results: []fetcher.Result{ok("A")}}
	hook := &recordingHook{}
	h := start(t, cfg, nil, WithFetcher(f), WithExecutor(newExecutor(true)), WithRunHook(hook))

	h.tickAndWait(t)
	require.Eventually(t, func() bool { return h.w.Snapshot().CommandRunning }, waitFor, tickStep)

	assert.NoError(t, h.stop(t))
	_, finished := hook.runs()
	require.Len(t, finished, 1)
	assert.Equal(t, -1, *finished[0].ExitCode)
}

func TestRun_CancelAbortsTokenRefresh(t *testing.T) {
	cfg := baseConfig()
	cfg.Login = &config.LoginDescriptor{URL: "http://login.test", Username: "u"}
	f := &fakeFetcher{results: []fetcher.Result{{Outcome: fetcher.OutcomeAuthRequired, StatusCode: http.StatusUnauthorized}}}
	auth := &fakeAuth{token: "never", release: make(chan struct{})}
	h := start(t, cfg, nil, WithFetcher(f), WithAuthenticator(auth), WithExecutor(newExecutor(false)))

	h.tickAndWait(t)
	require.Eventually(t, func() bool { return h.w.Snapshot().AuthRefreshing }, waitFor, tickStep)

	assert.NoError(t, h.stop(t))
}
