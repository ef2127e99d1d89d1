package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the monitor's prometheus instruments
type Metrics struct {
	// Scans by trigger and outcome (ok, partial, failed)
	ScansTotal *prometheus.CounterVec

	ScanDuration prometheus.Histogram

	// Latest persisted score per table and metric
	QualityScore *prometheus.GaugeVec

	IssuesCreated *prometheus.CounterVec

	// Timer ticks dropped because a scan was in flight
	TicksSkipped prometheus.Counter

	// Alert deliveries by outcome (sent, failed)
	AlertsTotal *prometheus.CounterVec

	InFlight prometheus.Gauge
}

// NewMetrics registers the instruments on reg.
// A nil reg gets a private registry that is never exported.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		ScansTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "quality_monitor_scans_total",
			Help: "Total number of quality scans by trigger and outcome.",
		}, []string{"trigger", "outcome"}),

		ScanDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "quality_monitor_scan_duration_seconds",
			Help:    "Histogram of full scan durations.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),

		QualityScore: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "quality_monitor_score",
			Help: "Most recent persisted quality score (0-100).",
		}, []string{"table", "metric"}),

		IssuesCreated: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "quality_monitor_issues_created_total",
			Help: "Newly opened quality issues per table.",
		}, []string{"table"}),

		TicksSkipped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "quality_monitor_ticks_skipped_total",
			Help: "Scheduled checks skipped because a scan was already in flight.",
		}),

		AlertsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "quality_monitor_alerts_total",
			Help: "Alert deliveries by outcome.",
		}, []string{"outcome"}),

		InFlight: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "quality_monitor_scan_in_flight",
			Help: "1 while a scan is running.",
		}),
	}
}
