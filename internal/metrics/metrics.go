package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeNoVideo = "no_video"
	OutcomeFailure = "failure"
)

// Registry holds the generation metrics on a private Prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	JobsTotal      *prometheus.CounterVec
	JobDuration    *prometheus.HistogramVec
	JobsInFlight   prometheus.Gauge
	ArtifactBytes  prometheus.Histogram
	WebhooksTotal  *prometheus.CounterVec
	EngineProgress prometheus.Gauge
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}

	r.JobsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "videogen_jobs_total",
			Help: "Total number of generation jobs by variant and outcome",
		},
		[]string{"variant", "outcome"},
	)
	r.JobDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "videogen_job_duration_seconds",
			Help:    "Generation job latency in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400},
		},
		[]string{"variant"},
	)
	r.JobsInFlight = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "videogen_jobs_in_flight",
			Help: "Current number of generation jobs being processed",
		},
	)
	r.ArtifactBytes = promauto.With(reg).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "videogen_artifact_size_bytes",
			Help:    "Size of produced video artifacts in bytes",
			Buckets: prometheus.ExponentialBuckets(64<<10, 4, 8),
		},
	)
	r.WebhooksTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "videogen_webhooks_total",
			Help: "Total number of webhook deliveries by status",
		},
		[]string{"status"},
	)
	r.EngineProgress = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "videogen_engine_progress_percent",
			Help: "Sampling progress of the running generation",
		},
	)
	return r
}

// RecordJob records a finished generation job.
func (r *Registry) RecordJob(variant, outcome string, duration time.Duration) {
	r.JobsTotal.WithLabelValues(variant, outcome).Inc()
	r.JobDuration.WithLabelValues(variant).Observe(duration.Seconds())
}

// TrackInFlight increments the in-flight gauge and returns a func that
// decrements it.
func (r *Registry) TrackInFlight() func() {
	r.JobsInFlight.Inc()
	return r.JobsInFlight.Dec
}

func (r *Registry) RecordArtifact(size int) {
	r.ArtifactBytes.Observe(float64(size))
}

func (r *Registry) RecordWebhook(status string) {
	r.WebhooksTotal.WithLabelValues(status).Inc()
}

func (r *Registry) SetProgress(percent float64) {
	r.EngineProgress.Set(percent)
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
