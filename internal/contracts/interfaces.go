package contracts

import (
	"context"
	"time"
)

// RecordSource is the read-only query port over monitored tables
// ⭐ SSOT: 모니터링 대상 테이블 조회 인터페이스
type RecordSource interface {
	// Records returns every row of table whose timestamp falls in window
	Records(ctx context.Context, table string, window Window) ([]Record, error)

	// LatestIngest returns the newest ingest time of table; ok is false for an empty table
	LatestIngest(ctx context.Context, table string) (t time.Time, ok bool, err error)
}

// MetricStore is the append-only log of computed scores
// ⭐ SSOT: 품질 점수 저장소 인터페이스
type MetricStore interface {
	Append(ctx context.Context, m QualityMetric) error

	// Latest returns nil, nil when nothing was recorded for the pair
	Latest(ctx context.Context, table string, metric MetricName) (*QualityMetric, error)

	// LatestAll returns the latest row per (table, metric); empty table means all tables
	LatestAll(ctx context.Context, table string) ([]QualityMetric, error)

	// History is ordered by calculated_at ascending
	History(ctx context.Context, table string, metric MetricName, since time.Time) ([]QualityMetric, error)

	Trend(ctx context.Context, table string, metric MetricName, window time.Duration) (*Trend, error)
}

// IssueStore holds detected issues and their lifecycle
// ⭐ SSOT: 품질 이슈 저장소 인터페이스
type IssueStore interface {
	// Upsert inserts unless an OPEN issue with the same key exists.
	// created is false when the existing OPEN row was kept.
	Upsert(ctx context.Context, issue QualityIssue) (stored QualityIssue, created bool, err error)

	Get(ctx context.Context, id string) (*QualityIssue, error)

	// List is ordered by detected_at descending
	List(ctx context.Context, filter IssueFilter) ([]QualityIssue, error)

	OpenIssues(ctx context.Context, table string, issueType IssueType) ([]QualityIssue, error)

	Resolve(ctx context.Context, id string, notes string) (*QualityIssue, error)
	Ignore(ctx context.Context, id string) (*QualityIssue, error)

	Summary(ctx context.Context) (*IssueSummary, error)
}

// AlertSink delivers threshold breaches
// ⭐ SSOT: 알림 전달 인터페이스
type AlertSink interface {
	Notify(ctx context.Context, breach Breach) error
}
