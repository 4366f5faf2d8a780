package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Manager metrics
	TasksScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "monico_tasks_scheduled_total",
			Help: "Total number of tasks enqueued by the manager",
		},
	)

	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "monico_scheduling_latency_seconds",
			Help:    "Duration of one manager scheduling pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Worker metrics
	TasksLocked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "monico_tasks_locked_total",
			Help: "Total number of tasks leased by workers",
		},
	)

	TasksAbandoned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "monico_tasks_abandoned_total",
			Help: "Total number of stale tasks abandoned without probing",
		},
	)

	ProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monico_probes_total",
			Help: "Total number of probes recorded by outcome",
		},
		[]string{"outcome"},
	)

	ProbeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "monico_probe_duration_seconds",
			Help:    "HTTP probe duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Probe outcome label values.
const (
	OutcomeSuccess         = "success"
	OutcomeTimeout         = "timeout"
	OutcomeConnectionError = "connection_error"
)

func init() {
	prometheus.MustRegister(TasksScheduled)
	prometheus.MustRegister(SchedulingLatency)
	prometheus.MustRegister(TasksLocked)
	prometheus.MustRegister(TasksAbandoned)
	prometheus.MustRegister(ProbesTotal)
	prometheus.MustRegister(ProbeDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
