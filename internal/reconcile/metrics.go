package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal counts attachment operations by phase and outcome.
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "izakaya_reconcile_operations_total",
		Help: "Attachment operations attempted by the reconciler",
	}, []string{"phase", "outcome"})

	// failuresTotal counts reported item failures by phase and kind.
	failuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "izakaya_reconcile_failures_total",
		Help: "Attachment item failures reported by the reconciler",
	}, []string{"phase", "kind"})

	reconcileDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "izakaya_reconcile_duration_seconds",
		Help:    "Duration of one reconciliation call in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	}, []string{"operation"})

	blobDeleteBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "izakaya_blob_delete_batch_size",
		Help:    "Number of keys sent per batched blob delete",
		Buckets: prometheus.ExponentialBuckets(1, 4, 6),
	})

	sweepOrphansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "izakaya_sweep_orphans_total",
		Help: "Orphaned blobs found by the sweeper, by outcome",
	}, []string{"outcome"})
)

func observeOutcome(phase Phase, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(classify(err))
	}
	operationsTotal.WithLabelValues(string(phase), outcome).Inc()
}
