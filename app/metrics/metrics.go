package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mlipovsky/lettermill/app/ingest"
)

var (
	ingestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lettermill_ingest_runs_total",
			Help: "Total number of ingest runs",
		},
		[]string{"status"},
	)

	ingestMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lettermill_ingest_messages_total",
			Help: "Total number of messages seen by ingest runs",
		},
		[]string{"outcome"}, // outcome: found, new, skipped
	)

	ingestRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lettermill_ingest_run_duration_seconds",
			Help:    "Ingest run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~100s
		},
	)

	webhookMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lettermill_webhook_messages_total",
			Help: "Total number of messages received on the webhook path",
		},
		[]string{"status"}, // status: accepted, rejected, error
	)

	draftsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lettermill_drafts_generated_total",
			Help: "Total number of generated drafts",
		},
		[]string{"format"},
	)
)

// Recorder adapts the registered collectors to the observer interfaces the
// task layer expects.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) ObserveIngestRun(result ingest.Result) {
	status := "success"
	switch {
	case len(result.Errors) == 0:
	case result.Found == 0:
		status = "error"
	default:
		status = "partial"
	}

	ingestRuns.WithLabelValues(status).Inc()
	ingestMessages.WithLabelValues("found").Add(float64(result.Found))
	ingestMessages.WithLabelValues("new").Add(float64(result.New))
	ingestMessages.WithLabelValues("skipped").Add(float64(result.Skipped))
	ingestRunDuration.Observe(result.Duration.Seconds())
}

func (r *Recorder) ObserveWebhookMessage(status string) {
	webhookMessages.WithLabelValues(status).Inc()
}

func (r *Recorder) ObserveDraftGenerated(format string) {
	draftsGenerated.WithLabelValues(format).Inc()
}
