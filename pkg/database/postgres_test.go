package database

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/config"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	// Skip if DATABASE_URL is not set
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err, "load config")

	db, err := New(cfg)
	require.NoError(t, err, "create database")
	t.Cleanup(db.Close)
	return db
}

func TestNew(t *testing.T) {
	db := newTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, db.Ping(ctx))
}

func TestHealthCheck(t *testing.T) {
	db := newTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := db.HealthCheck(ctx)
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Greater(t, status.Stats.MaxConns, int32(0))
}

func TestMigrate(t *testing.T) {
	db := newTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// idempotent
	require.NoError(t, db.Migrate(ctx, true))
	require.NoError(t, db.Migrate(ctx, true))
}

func TestNewWithInvalidURL(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			URL:             "invalid://url",
			MaxConns:        25,
			MinConns:        5,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
	}

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestSchemaStatements(t *testing.T) {
	quality := SchemaStatements(false)
	all := SchemaStatements(true)

	assert.Len(t, all, len(quality)+len(monitoredSchema))

	joined := strings.Join(quality, "\n")
	assert.Contains(t, joined, "data_quality_metrics")
	assert.Contains(t, joined, "data_quality_issues")
	assert.Contains(t, joined, "WHERE status = 'OPEN'")
	assert.NotContains(t, joined, "CREATE TABLE IF NOT EXISTS energy_consumption")

	assert.Contains(t, all[0], "energy_consumption")
}

func TestCloseTwice(t *testing.T) {
	db := newTestDB(t)

	// Double close should not panic
	db.Close()
	db.Close()
}
