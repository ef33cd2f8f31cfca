package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loonielabs/kpi-sentinel/internal/models"
)

const (
	// OutcomeSuccess labels runs that published a snapshot.
	OutcomeSuccess = "success"
	// OutcomeError labels runs that aborted before publishing.
	OutcomeError = "error"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kpi_sentinel",
			Name:      "runs_total",
			Help:      "Total number of evaluation runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "kpi_sentinel",
			Name:      "run_seconds",
			Help:      "Evaluation run duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	statusTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kpi_sentinel",
			Name:      "serving_rows_total",
			Help:      "Serving rows produced, partitioned by status.",
		},
		[]string{"status"},
	)

	metricsSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kpi_sentinel",
			Name:      "metrics_skipped_total",
			Help:      "Metrics skipped by per-metric evaluation failures.",
		},
	)

	factsIngestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kpi_sentinel",
			Name:      "facts_ingested_total",
			Help:      "Facts accepted into the history store.",
		},
	)

	factsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kpi_sentinel",
			Name:      "facts_dropped_total",
			Help:      "Feed rows dropped as data-quality gaps.",
		},
	)
)

// Register attaches kpi-sentinel collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		runsTotal,
		runDurationSeconds,
		statusTotal,
		metricsSkippedTotal,
		factsIngestedTotal,
		factsDroppedTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records a run duration and outcome label.
func ObserveRun(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	runsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	runDurationSeconds.Observe(duration.Seconds())
}

// ObserveStatus counts one produced serving row.
func ObserveStatus(status models.Status) {
	statusTotal.WithLabelValues(string(status)).Inc()
}

// ObserveMetricSkipped counts a metric dropped from the run.
func ObserveMetricSkipped() {
	metricsSkippedTotal.Inc()
}

// ObserveIngest records accepted and dropped feed rows.
func ObserveIngest(accepted, dropped int) {
	factsIngestedTotal.Add(float64(accepted))
	factsDroppedTotal.Add(float64(dropped))
}
