// Package metrics provides Prometheus-based metrics recording for the watch loop.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Tick results.
const (
	TickPolled            = "polled"
	TickSkippedCommand    = "skipped_command_running"
	TickSkippedRefreshing = "skipped_auth_refreshing"
	TickSkippedFetching   = "skipped_fetch_in_flight"
)

// Recorder receives loop events. Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveTick(result string)
	ObserveFetch(outcome string, statusCode int)
	ObserveChange()
	ObserveCommand(success bool, duration time.Duration)
	ObserveTokenRefresh(result string)
}

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	ticksTotal      *prometheus.CounterVec
	fetchesTotal    *prometheus.CounterVec
	changesTotal    prometheus.Counter
	commandsTotal   *prometheus.CounterVec
	commandDuration prometheus.Histogram
	refreshesTotal  *prometheus.CounterVec
	lastSuccess     prometheus.Gauge
}

// NewPrometheusRecorder creates a recorder and registers its collectors with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	p := &PrometheusRecorder{
		ticksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watcher_ticks_total",
				Help: "Total number of poll ticks by result",
			},
			[]string{"result"},
		),
		fetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watcher_fetches_total",
				Help: "Total number of resource fetches by outcome",
			},
			[]string{"outcome", "status_code"},
		),
		changesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watcher_changes_total",
			Help: "Total number of detected content changes",
		}),
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watcher_command_runs_total",
				Help: "Total number of command runs by status",
			},
			[]string{"status"},
		),
		commandDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "watcher_command_duration_seconds",
			Help:    "Duration of command runs in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		refreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watcher_token_refreshes_total",
				Help: "Total number of bearer token refreshes by result",
			},
			[]string{"result"},
		),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "watcher_last_success_timestamp_seconds",
			Help: "The last successful fetch in unix seconds",
		}),
	}

	collectors := []prometheus.Collector{
		p.ticksTotal, p.fetchesTotal, p.changesTotal, p.commandsTotal,
		p.commandDuration, p.refreshesTotal, p.lastSuccess,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *PrometheusRecorder) ObserveTick(result string) {
	p.ticksTotal.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) ObserveFetch(outcome string, statusCode int) {
	code := "none"
	if statusCode > 0 {
		code = statusLabel(statusCode)
	}
	p.fetchesTotal.WithLabelValues(outcome, code).Inc()
	if outcome == "success" {
		p.lastSuccess.SetToCurrentTime()
	}
}

func (p *PrometheusRecorder) ObserveChange() {
	p.changesTotal.Inc()
}

func (p *PrometheusRecorder) ObserveCommand(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.commandsTotal.WithLabelValues(status).Inc()
	p.commandDuration.Observe(duration.Seconds())
}

func (p *PrometheusRecorder) ObserveTokenRefresh(result string) {
	p.refreshesTotal.WithLabelValues(result).Inc()
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	}
	return "1xx"
}

// Nop discards all observations.
type Nop struct{}

func (Nop) ObserveTick(string)                 {}
func (Nop) ObserveFetch(string, int)           {}
func (Nop) ObserveChange()                     {}
func (Nop) ObserveCommand(bool, time.Duration) {}
func (Nop) ObserveTokenRefresh(string)         {}
