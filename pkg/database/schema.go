package database

import (
	"context"
	"fmt"
)

// qualitySchema creates the tables owned by the quality engine.
// uq_quality_issues_open keeps at most one OPEN row per (table, type, fingerprint).
var qualitySchema = []string{
	`CREATE TABLE IF NOT EXISTS data_quality_metrics (
		id                       BIGSERIAL PRIMARY KEY,
		table_name               TEXT             NOT NULL,
		metric_name              TEXT             NOT NULL,
		metric_value             DOUBLE PRECISION NOT NULL CHECK (metric_value >= 0 AND metric_value <= 100),
		calculated_at            TIMESTAMPTZ      NOT NULL,
		total_records            INTEGER          NOT NULL DEFAULT 0,
		valid_records            INTEGER          NOT NULL DEFAULT 0,
		calculation_period_start TIMESTAMPTZ,
		calculation_period_end   TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quality_metrics_latest
		ON data_quality_metrics (table_name, metric_name, calculated_at DESC)`,
	`CREATE TABLE IF NOT EXISTS data_quality_issues (
		id                TEXT        PRIMARY KEY,
		table_name        TEXT        NOT NULL,
		record_id         BIGINT,
		issue_type        TEXT        NOT NULL,
		severity          TEXT        NOT NULL CHECK (severity IN ('CRITICAL', 'HIGH', 'MEDIUM', 'LOW')),
		issue_description TEXT        NOT NULL DEFAULT '',
		fingerprint       TEXT        NOT NULL,
		status            TEXT        NOT NULL DEFAULT 'OPEN' CHECK (status IN ('OPEN', 'RESOLVED', 'IGNORED')),
		detected_at       TIMESTAMPTZ NOT NULL,
		resolved_at       TIMESTAMPTZ,
		resolution_notes  TEXT        NOT NULL DEFAULT ''
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_quality_issues_open
		ON data_quality_issues (table_name, issue_type, fingerprint)
		WHERE status = 'OPEN'`,
	`CREATE INDEX IF NOT EXISTS idx_quality_issues_detected
		ON data_quality_issues (detected_at DESC)`,
}

// monitoredSchema bootstraps the ingested tables for local setups.
// Ingestion owns them in production; IF NOT EXISTS leaves existing tables alone.
var monitoredSchema = []string{
	`CREATE TABLE IF NOT EXISTS energy_consumption (
		id              BIGSERIAL PRIMARY KEY,
		region          TEXT        NOT NULL,
		timestamp       TIMESTAMPTZ NOT NULL,
		consumption_mwh DOUBLE PRECISION,
		energy_type     TEXT        NOT NULL DEFAULT '',
		data_source     TEXT        NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_energy_consumption_ts ON energy_consumption (timestamp)`,
	`CREATE TABLE IF NOT EXISTS weather_data (
		id          BIGSERIAL PRIMARY KEY,
		region      TEXT        NOT NULL,
		timestamp   TIMESTAMPTZ NOT NULL,
		temperature DOUBLE PRECISION,
		humidity    DOUBLE PRECISION,
		wind_speed  DOUBLE PRECISION,
		pressure    DOUBLE PRECISION,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_weather_data_ts ON weather_data (timestamp)`,
}

// Migrate applies the schema in one transaction.
// withMonitored also creates the ingested tables.
func (db *DB) Migrate(ctx context.Context, withMonitored bool) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range SchemaStatements(withMonitored) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// SchemaStatements returns the DDL Migrate would run
func SchemaStatements(withMonitored bool) []string {
	stmts := make([]string, 0, len(qualitySchema)+len(monitoredSchema))
	if withMonitored {
		stmts = append(stmts, monitoredSchema...)
	}
	return append(stmts, qualitySchema...)
}
