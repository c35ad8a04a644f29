package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/audithound/saptrail/internal/core/domain"
)

var (
	RowsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saptrail_rows_ingested_total",
		Help: "Total input rows read, labelled by source (SM20, CDHDR, CDPOS).",
	}, []string{"source"})

	RowsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saptrail_rows_dropped_total",
		Help: "Total rows dropped during normalization, labelled by source.",
	}, []string{"source"})

	EventsCorrelated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saptrail_events_correlated_total",
		Help: "Total change records matched to an access-log event.",
	})

	EventsUnmatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saptrail_events_unmatched_total",
		Help: "Total residual records after correlation, labelled by side.",
	}, []string{"side"})

	RecordsClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saptrail_records_classified_total",
		Help: "Total records assessed, labelled by risk level.",
	}, []string{"risk_level"})

	DegradedRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saptrail_degraded_runs_total",
		Help: "Total runs where correlation fell back to the equality join.",
	})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "saptrail_run_duration_seconds",
		Help:    "End-to-end analysis run duration in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})
)

// ObserveRun records the per-run counters after an analysis completes.
func ObserveRun(run domain.Run) {
	stats := run.Stats

	RowsIngested.WithLabelValues("SM20").Add(float64(stats.AccessRows))
	RowsIngested.WithLabelValues("CDHDR").Add(float64(stats.HeaderRows))
	RowsIngested.WithLabelValues("CDPOS").Add(float64(stats.ItemRows))
	RowsDropped.WithLabelValues("SM20").Add(float64(stats.AccessDropped))
	RowsDropped.WithLabelValues("CDHDR").Add(float64(stats.HeaderDropped))

	EventsCorrelated.Add(float64(stats.Matched))
	EventsUnmatched.WithLabelValues("changes").Add(float64(stats.UnmatchedChanges))
	EventsUnmatched.WithLabelValues("access").Add(float64(stats.UnmatchedAccess))

	RecordsClassified.WithLabelValues(string(domain.RiskHigh)).Add(float64(stats.HighRisk))
	RecordsClassified.WithLabelValues(string(domain.RiskMedium)).Add(float64(stats.MediumRisk))
	RecordsClassified.WithLabelValues(string(domain.RiskLow)).Add(float64(stats.LowRisk))
	RecordsClassified.WithLabelValues(string(domain.RiskUnknown)).Add(float64(stats.UnknownRisk))

	if run.Approximate {
		DegradedRuns.Inc()
	}
	RunDuration.Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
}
