package watcher

import (
	"io"

	"github.com/Alwanly/resource-watcher/pkg/metrics"
	"github.com/Alwanly/resource-watcher/pkg/poll"
)

// Option configures a Watcher.
type Option func(*Watcher)

func WithFetcher(f IFetcher) Option {
	return func(w *Watcher) { w.fetcher = f }
}

func WithAuthenticator(a IAuthenticator) Option {
	return func(w *Watcher) { w.auth = a }
}

func WithExecutor(e IExecutor) Option {
	return func(w *Watcher) { w.executor = e }
}

// WithSource replaces the interval ticker.
func WithSource(s poll.Source) Option {
	return func(w *Watcher) { w.source = s }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(w *Watcher) { w.metrics = r }
}

// WithRunHook adds a hook; hooks run in registration order.
func WithRunHook(h IRunHook) Option {
	return func(w *Watcher) { w.hooks = append(w.hooks, h) }
}

// WithOutput sets where the command's output streams go.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(w *Watcher) {
		w.stdout = stdout
		w.stderr = stderr
	}
}
