package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookd_events_total",
			Help: "Total number of bus events received",
		},
		[]string{"type"},
	)

	eventsUnmatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hookd_events_unmatched_total",
			Help: "Number of bus events with no registered hook",
		},
	)

	hookExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookd_hook_executions_total",
			Help: "Total number of hook executions",
		},
		[]string{"type", "status"},
	)

	hookDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hookd_hook_duration_seconds",
			Help:    "Hook command execution time in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
		},
		[]string{"type"},
	)

	reportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookd_reports_total",
			Help: "Total number of result reports sent to the authority",
		},
		[]string{"status"},
	)

	registryHooks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hookd_registry_hooks",
			Help: "Number of hooks currently loaded",
		},
	)

	registryReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookd_registry_reloads_total",
			Help: "Total number of registry reloads",
		},
		[]string{"status"},
	)

	workersBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hookd_workers_busy",
			Help: "Number of workers currently running a hook",
		},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hookd_queue_depth",
			Help: "Number of work items waiting for a worker",
		},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordEvent(hookType string) {
	eventsTotal.WithLabelValues(hookType).Inc()
}

func RecordUnmatched() {
	eventsUnmatched.Inc()
}

func RecordExecution(hookType string, exitCode int, duration time.Duration) {
	status := "success"
	if exitCode != 0 {
		status = "failure"
	}
	hookExecutions.WithLabelValues(hookType, status).Inc()
	hookDuration.WithLabelValues(hookType).Observe(duration.Seconds())
}

func RecordReport(status string) {
	reportsTotal.WithLabelValues(status).Inc()
}

func SetRegistryHooks(n int) {
	registryHooks.Set(float64(n))
}

func RecordReload(err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	registryReloads.WithLabelValues(status).Inc()
}

func UpdateEngineStats(busy, queued int) {
	workersBusy.Set(float64(busy))
	queueDepth.Set(float64(queued))
}
