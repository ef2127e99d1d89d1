package energy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
)

// tableSpec maps a monitored table onto the generic record shape
type tableSpec struct {
	name        string
	categoryCol string // empty when the table has no category
	fields      []string
}

var tables = map[string]tableSpec{
	"energy_consumption": {
		name:        "energy_consumption",
		categoryCol: "energy_type",
		fields:      []string{"consumption_mwh"},
	},
	"weather_data": {
		name:   "weather_data",
		fields: []string{"temperature", "humidity", "wind_speed", "pressure"},
	},
}

// Tables lists the tables this repository can read
func Tables() []string {
	return []string{"energy_consumption", "weather_data"}
}

// Repository is the read-only query port over ingested data
// ⭐ SSOT: 모니터링 대상 테이블 읽기 (쓰기 없음)
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new energy repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func lookup(table string) (tableSpec, error) {
	tbl, ok := tables[table]
	if !ok {
		return tableSpec{}, fmt.Errorf("unknown table %q: %w", table, contracts.ErrQueryFailure)
	}
	return tbl, nil
}

// Records returns rows of table whose timestamp falls in window
func (r *Repository) Records(ctx context.Context, table string, window contracts.Window) ([]contracts.Record, error) {
	tbl, err := lookup(table)
	if err != nil {
		return nil, err
	}

	category := "''"
	if tbl.categoryCol != "" {
		category = "COALESCE(" + tbl.categoryCol + ", '')"
	}

	query := fmt.Sprintf(`
		SELECT id, region, timestamp, %s, %s
		FROM %s
		WHERE timestamp >= $1 AND ($2::timestamptz IS NULL OR timestamp < $2)
		ORDER BY timestamp, id
	`, category, strings.Join(tbl.fields, ", "), tbl.name)

	var to *time.Time
	if !window.To.IsZero() {
		to = &window.To
	}

	rows, err := r.pool.Query(ctx, query, window.From, to)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w: %w", table, contracts.ErrQueryFailure, err)
	}
	defer rows.Close()

	records := make([]contracts.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows, tbl)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w: %w", table, contracts.ErrQueryFailure, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w: %w", table, contracts.ErrQueryFailure, err)
	}

	return records, nil
}

// LatestIngest returns the newest timestamp of table
func (r *Repository) LatestIngest(ctx context.Context, table string) (time.Time, bool, error) {
	tbl, err := lookup(table)
	if err != nil {
		return time.Time{}, false, err
	}

	var latest *time.Time
	query := fmt.Sprintf(`SELECT MAX(timestamp) FROM %s`, tbl.name)
	if err := r.pool.QueryRow(ctx, query).Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("latest ingest %s: %w: %w", table, contracts.ErrQueryFailure, err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return *latest, true, nil
}

func scanRecord(rows pgx.Rows, tbl tableSpec) (contracts.Record, error) {
	var rec contracts.Record
	values := make([]*float64, len(tbl.fields))

	dest := []interface{}{&rec.ID, &rec.Region, &rec.Timestamp, &rec.Category}
	for i := range values {
		dest = append(dest, &values[i])
	}

	if err := rows.Scan(dest...); err != nil {
		return contracts.Record{}, err
	}

	rec.Fields = make(map[string]*float64, len(tbl.fields))
	for i, f := range tbl.fields {
		rec.Fields[f] = values[i]
	}
	return rec, nil
}
