package quality

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
)

func metricAt(table string, name contracts.MetricName, v float64, at time.Time) contracts.QualityMetric {
	return contracts.QualityMetric{TableName: table, MetricName: name, MetricValue: v, CalculatedAt: at}
}

func newIssue(fingerprint string, sev contracts.Severity, at time.Time) contracts.QualityIssue {
	return contracts.QualityIssue{
		TableName:   TableEnergyConsumption,
		IssueType:   contracts.IssueNullValue,
		Severity:    sev,
		Fingerprint: fingerprint,
		Description: "Null consumption_mwh",
		DetectedAt:  at,
	}
}

func TestMemoryMetricStore_LatestAndHistory(t *testing.T) {
	store := NewMemoryMetricStore()
	ctx := context.Background()
	t0 := scanNow

	latest, err := store.Latest(ctx, TableWeatherData, contracts.MetricAccuracy)
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, store.Append(ctx, metricAt(TableWeatherData, contracts.MetricAccuracy, 80, t0)))
	require.NoError(t, store.Append(ctx, metricAt(TableWeatherData, contracts.MetricAccuracy, 65, t0.Add(2*time.Hour))))
	require.NoError(t, store.Append(ctx, metricAt(TableWeatherData, contracts.MetricAccuracy, 70, t0.Add(time.Hour))))
	require.NoError(t, store.Append(ctx, metricAt(TableEnergyConsumption, contracts.MetricAccuracy, 99, t0)))

	latest, err = store.Latest(ctx, TableWeatherData, contracts.MetricAccuracy)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 65.0, latest.MetricValue)

	history, err := store.History(ctx, TableWeatherData, contracts.MetricAccuracy, t0.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 70.0, history[0].MetricValue)
	assert.Equal(t, 65.0, history[1].MetricValue)

	all, err := store.LatestAll(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, TableEnergyConsumption, all[0].TableName)
	assert.Equal(t, 65.0, all[1].MetricValue)

	only, err := store.LatestAll(ctx, TableEnergyConsumption)
	require.NoError(t, err)
	assert.Len(t, only, 1)
}

func TestMemoryMetricStore_RejectsUnknownMetric(t *testing.T) {
	err := NewMemoryMetricStore().Append(context.Background(), metricAt("x", "bogus", 1, scanNow))
	assert.True(t, errors.Is(err, contracts.ErrStoreWrite))
}

func TestMemoryMetricStore_Trend(t *testing.T) {
	store := NewMemoryMetricStore()
	store.now = func() time.Time { return scanNow }
	ctx := context.Background()

	for i, v := range []float64{60, 62, 80, 84} {
		at := scanNow.Add(-time.Duration(4-i) * time.Hour)
		require.NoError(t, store.Append(ctx, metricAt(TableWeatherData, contracts.MetricCompleteness, v, at)))
	}
	// outside the window
	require.NoError(t, store.Append(ctx, metricAt(TableWeatherData, contracts.MetricCompleteness, 10, scanNow.Add(-48*time.Hour))))

	trend, err := store.Trend(ctx, TableWeatherData, contracts.MetricCompleteness, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 4, trend.Count)
	assert.Equal(t, 71.5, trend.Avg)
	assert.Equal(t, 60.0, trend.Min)
	assert.Equal(t, 84.0, trend.Max)
	assert.Equal(t, contracts.TrendImproving, trend.Direction)
}

func TestMemoryMetricStore_ConcurrentReadWrite(t *testing.T) {
	store := NewMemoryMetricStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = store.Append(ctx, metricAt(TableWeatherData, contracts.MetricAccuracy, float64(i%100), scanNow.Add(time.Duration(i)*time.Second)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if m, _ := store.Latest(ctx, TableWeatherData, contracts.MetricAccuracy); m != nil {
				assert.Equal(t, TableWeatherData, m.TableName)
			}
		}
	}()
	wg.Wait()

	latest, err := store.Latest(ctx, TableWeatherData, contracts.MetricAccuracy)
	require.NoError(t, err)
	assert.Equal(t, 99.0, latest.MetricValue)
}

func TestMemoryIssueStore_UpsertDeduplicatesOpen(t *testing.T) {
	store := NewMemoryIssueStore()
	ctx := context.Background()

	first, created, err := store.Upsert(ctx, newIssue("CA|t1|consumption_mwh", contracts.SeverityHigh, scanNow))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, contracts.StatusOpen, first.Status)

	again, created, err := store.Upsert(ctx, newIssue("CA|t1|consumption_mwh", contracts.SeverityHigh, scanNow.Add(time.Hour)))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, scanNow, again.DetectedAt, "detected_at is preserved")

	open, err := store.List(ctx, contracts.IssueFilter{Status: contracts.StatusOpen})
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestMemoryIssueStore_UpsertEscalatesSeverity(t *testing.T) {
	store := NewMemoryIssueStore()
	ctx := context.Background()

	first, _, err := store.Upsert(ctx, newIssue("k", contracts.SeverityMedium, scanNow))
	require.NoError(t, err)

	escalated, created, err := store.Upsert(ctx, newIssue("k", contracts.SeverityCritical, scanNow.Add(time.Hour)))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, escalated.ID)
	assert.Equal(t, contracts.SeverityCritical, escalated.Severity)

	// never downgraded
	same, _, err := store.Upsert(ctx, newIssue("k", contracts.SeverityLow, scanNow.Add(2*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, contracts.SeverityCritical, same.Severity)
}

func TestMemoryIssueStore_ResolveLifecycle(t *testing.T) {
	store := NewMemoryIssueStore()
	resolvedAt := scanNow.Add(3 * time.Hour)
	store.now = func() time.Time { return resolvedAt }
	ctx := context.Background()

	issue, _, err := store.Upsert(ctx, newIssue("k", contracts.SeverityHigh, scanNow))
	require.NoError(t, err)

	resolved, err := store.Resolve(ctx, issue.ID, "backfilled from source")
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, resolvedAt, *resolved.ResolvedAt)
	assert.Equal(t, "backfilled from source", resolved.ResolutionNotes)

	_, err = store.Resolve(ctx, issue.ID, "again")
	assert.True(t, errors.Is(err, contracts.ErrInvalidStateTransition))
	_, err = store.Ignore(ctx, issue.ID)
	assert.True(t, errors.Is(err, contracts.ErrInvalidStateTransition))

	current, err := store.Get(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusResolved, current.Status)
	assert.Equal(t, "backfilled from source", current.ResolutionNotes)

	// a fresh occurrence opens a new issue
	reopened, created, err := store.Upsert(ctx, newIssue("k", contracts.SeverityHigh, scanNow.Add(4*time.Hour)))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, issue.ID, reopened.ID)
}

func TestMemoryIssueStore_IgnoreAndNotFound(t *testing.T) {
	store := NewMemoryIssueStore()
	ctx := context.Background()

	issue, _, err := store.Upsert(ctx, newIssue("k", contracts.SeverityLow, scanNow))
	require.NoError(t, err)

	ignored, err := store.Ignore(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusIgnored, ignored.Status)

	_, err = store.Resolve(ctx, "missing", "")
	assert.True(t, errors.Is(err, contracts.ErrIssueNotFound))
	_, err = store.Get(ctx, "missing")
	assert.True(t, errors.Is(err, contracts.ErrIssueNotFound))
}

func TestMemoryIssueStore_ListFilterAndPaging(t *testing.T) {
	store := NewMemoryIssueStore()
	ctx := context.Background()

	for i, sev := range []contracts.Severity{contracts.SeverityHigh, contracts.SeverityLow, contracts.SeverityHigh, contracts.SeverityMedium} {
		issue := newIssue(string(rune('a'+i)), sev, scanNow.Add(time.Duration(i)*time.Minute))
		_, _, err := store.Upsert(ctx, issue)
		require.NoError(t, err)
	}
	weather := newIssue("w", contracts.SeverityHigh, scanNow.Add(10*time.Minute))
	weather.TableName = TableWeatherData
	_, _, err := store.Upsert(ctx, weather)
	require.NoError(t, err)

	all, err := store.List(ctx, contracts.IssueFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "w", all[0].Fingerprint, "newest first")

	high, err := store.List(ctx, contracts.IssueFilter{TableName: TableEnergyConsumption, Severity: contracts.SeverityHigh})
	require.NoError(t, err)
	require.Len(t, high, 2)
	assert.Equal(t, "c", high[0].Fingerprint)

	page, err := store.List(ctx, contracts.IssueFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].Fingerprint)
	assert.Equal(t, "b", page[1].Fingerprint)

	empty, err := store.List(ctx, contracts.IssueFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)

	summary, err := store.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.ByStatus[contracts.StatusOpen])
	assert.Equal(t, 3, summary.OpenBySeverity[contracts.SeverityHigh])
	assert.Equal(t, 4, summary.OpenByTable[TableEnergyConsumption])

	open, err := store.OpenIssues(ctx, TableWeatherData, contracts.IssueNullValue)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}
