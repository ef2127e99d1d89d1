package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
)

// MetricRepository persists quality metrics to data_quality_metrics
// ⭐ SSOT: 품질 점수 저장/조회 (append-only)
type MetricRepository struct {
	pool *pgxpool.Pool
}

// NewMetricRepository creates a new metric repository
func NewMetricRepository(pool *pgxpool.Pool) *MetricRepository {
	return &MetricRepository{pool: pool}
}

const metricColumns = `
	table_name, metric_name, metric_value, calculated_at,
	total_records, valid_records, calculation_period_start, calculation_period_end
`

// Append inserts a metric row. Rows are never updated.
func (r *MetricRepository) Append(ctx context.Context, m contracts.QualityMetric) error {
	query := `INSERT INTO data_quality_metrics (` + metricColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		m.TableName,
		string(m.MetricName),
		m.MetricValue,
		m.CalculatedAt,
		m.TotalRecords,
		m.ValidRecords,
		m.PeriodStart,
		m.PeriodEnd,
	)
	if err != nil {
		return fmt.Errorf("append metric %s.%s: %w: %w", m.TableName, m.MetricName, contracts.ErrStoreWrite, err)
	}
	return nil
}

// Latest returns the newest row for the pair, or nil when none exists
func (r *MetricRepository) Latest(ctx context.Context, table string, metric contracts.MetricName) (*contracts.QualityMetric, error) {
	query := `SELECT ` + metricColumns + `
		FROM data_quality_metrics
		WHERE table_name = $1 AND metric_name = $2
		ORDER BY calculated_at DESC, id DESC
		LIMIT 1`

	m, err := scanMetric(r.pool.QueryRow(ctx, query, table, string(metric)))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest metric %s.%s: %w", table, metric, err)
	}
	return &m, nil
}

// LatestAll returns the newest row per (table, metric); empty table means every table
func (r *MetricRepository) LatestAll(ctx context.Context, table string) ([]contracts.QualityMetric, error) {
	query := `SELECT DISTINCT ON (table_name, metric_name) ` + metricColumns + `
		FROM data_quality_metrics
		WHERE ($1 = '' OR table_name = $1)
		ORDER BY table_name, metric_name, calculated_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("query latest metrics: %w", err)
	}
	defer rows.Close()

	return collectMetrics(rows)
}

// History returns rows since the given time, oldest first
func (r *MetricRepository) History(ctx context.Context, table string, metric contracts.MetricName, since time.Time) ([]contracts.QualityMetric, error) {
	query := `SELECT ` + metricColumns + `
		FROM data_quality_metrics
		WHERE table_name = $1 AND metric_name = $2 AND calculated_at >= $3
		ORDER BY calculated_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, table, string(metric), since)
	if err != nil {
		return nil, fmt.Errorf("query metric history %s.%s: %w", table, metric, err)
	}
	defer rows.Close()

	return collectMetrics(rows)
}

// Trend aggregates the trailing window
func (r *MetricRepository) Trend(ctx context.Context, table string, metric contracts.MetricName, window time.Duration) (*contracts.Trend, error) {
	since := time.Now().Add(-window)
	history, err := r.History(ctx, table, metric, since)
	if err != nil {
		return nil, err
	}
	return ComputeTrend(table, metric, since, history), nil
}

func collectMetrics(rows pgx.Rows) ([]contracts.QualityMetric, error) {
	out := make([]contracts.QualityMetric, 0)
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metric row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric rows: %w", err)
	}
	return out, nil
}

func scanMetric(row pgx.Row) (contracts.QualityMetric, error) {
	var m contracts.QualityMetric
	var name string
	err := row.Scan(
		&m.TableName,
		&name,
		&m.MetricValue,
		&m.CalculatedAt,
		&m.TotalRecords,
		&m.ValidRecords,
		&m.PeriodStart,
		&m.PeriodEnd,
	)
	m.MetricName = contracts.MetricName(name)
	return m, err
}
