package contracts

import (
	"fmt"
	"time"
)

// MetricName identifies a scored quality dimension
type MetricName string

const (
	MetricCompleteness MetricName = "completeness"
	MetricAccuracy     MetricName = "accuracy"
	MetricConsistency  MetricName = "consistency"
	MetricFreshness    MetricName = "freshness"
	MetricOverall      MetricName = "overall_quality_score"
)

// OverallTable is the pseudo table that carries the per-scan overall score
const OverallTable = "system_overall"

// CoreMetrics are the dimensions every monitored table is scored on
var CoreMetrics = []MetricName{MetricCompleteness, MetricAccuracy, MetricConsistency}

// Valid reports whether m is a known metric
func (m MetricName) Valid() bool {
	switch m {
	case MetricCompleteness, MetricAccuracy, MetricConsistency, MetricFreshness, MetricOverall:
		return true
	}
	return false
}

// Alertable reports whether a breach of m is sent to the alert sink.
// Freshness and the overall score are informational only.
func (m MetricName) Alertable() bool {
	switch m {
	case MetricCompleteness, MetricAccuracy, MetricConsistency:
		return true
	}
	return false
}

// ParseMetricName converts a string into a MetricName
func ParseMetricName(s string) (MetricName, error) {
	m := MetricName(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown metric %q", s)
	}
	return m, nil
}

// QualityMetric is a single scored observation. Immutable once written.
// ⭐ SSOT: 품질 점수 기록 형식은 여기서만
type QualityMetric struct {
	TableName    string     `json:"table_name"`
	MetricName   MetricName `json:"metric_name"`
	MetricValue  float64    `json:"metric_value"` // 0 ~ 100
	CalculatedAt time.Time  `json:"calculated_at"`
	TotalRecords int        `json:"total_records"`
	ValidRecords int        `json:"valid_records"`
	PeriodStart  time.Time  `json:"period_start"`
	PeriodEnd    time.Time  `json:"period_end"`
}

// Status returns the band the metric value falls in
func (m QualityMetric) Status() string {
	return StatusBand(m.MetricValue)
}

// StatusBand converts a score into a dashboard band
func StatusBand(score float64) string {
	switch {
	case score >= 95.0:
		return "excellent"
	case score >= 85.0:
		return "good"
	case score >= 70.0:
		return "warning"
	default:
		return "poor"
	}
}

// TrendDirection describes how a metric moved over a window
type TrendDirection string

const (
	TrendImproving TrendDirection = "IMPROVING"
	TrendDeclining TrendDirection = "DECLINING"
	TrendStable    TrendDirection = "STABLE"
)

// Trend summarises a metric over a period
type Trend struct {
	TableName  string         `json:"table_name"`
	MetricName MetricName     `json:"metric_name"`
	Since      time.Time      `json:"since"`
	Count      int            `json:"count"`
	Avg        float64        `json:"avg"`
	Min        float64        `json:"min"`
	Max        float64        `json:"max"`
	Direction  TrendDirection `json:"direction"`
}

// ScanResult is what the scanner produces for one table
type ScanResult struct {
	TableName   string          `json:"table_name"`
	Scores      []QualityMetric `json:"scores"`
	Issues      []QualityIssue  `json:"issues"`
	RecordCount int             `json:"record_count"`
	NoData      bool            `json:"no_data"`
}

// Score returns the value of the named metric in the result
func (r *ScanResult) Score(name MetricName) (float64, bool) {
	for _, s := range r.Scores {
		if s.MetricName == name {
			return s.MetricValue, true
		}
	}
	return 0, false
}

// Breach is the payload handed to an alert sink
type Breach struct {
	TableName  string     `json:"table_name"`
	MetricName MetricName `json:"metric_name"`
	Score      float64    `json:"score"`
	Threshold  float64    `json:"threshold"`
	Timestamp  time.Time  `json:"timestamp"`
}

// String renders the breach for logs and notification bodies
func (b Breach) String() string {
	return fmt.Sprintf("%s.%s dropped to %.1f%% (threshold %.1f%%)", b.TableName, b.MetricName, b.Score, b.Threshold)
}
