package quality

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/energy"
)

var scanNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func rulesFor(t *testing.T, table string) TableRules {
	t.Helper()
	for _, r := range DefaultRules() {
		if r.Table == table {
			return r
		}
	}
	t.Fatalf("no default rules for %s", table)
	return TableRules{}
}

func energyRecord(id int, region string, ts time.Time, mwh *float64) contracts.Record {
	return contracts.Record{
		ID:        int64(id),
		Region:    region,
		Category:  "solar",
		Timestamp: ts,
		Fields:    map[string]*float64{"consumption_mwh": mwh},
	}
}

func weatherRecord(id int, ts time.Time, fields map[string]*float64) contracts.Record {
	return contracts.Record{ID: int64(id), Region: "TX", Timestamp: ts, Fields: fields}
}

// cleanEnergy returns n valid records with distinct natural keys
func cleanEnergy(n int) []contracts.Record {
	records := make([]contracts.Record, 0, n)
	for i := 0; i < n; i++ {
		ts := scanNow.Add(-time.Duration(i+1) * time.Hour)
		records = append(records, energyRecord(i+1, fmt.Sprintf("R%d", i%5), ts, energy.Float(500)))
	}
	return records
}

func score(t *testing.T, r *contracts.ScanResult, name contracts.MetricName) float64 {
	t.Helper()
	v, ok := r.Score(name)
	require.True(t, ok, "missing %s", name)
	return v
}

func countByType(issues []contracts.QualityIssue) map[contracts.IssueType]int {
	out := make(map[contracts.IssueType]int)
	for _, i := range issues {
		out[i.IssueType]++
	}
	return out
}

func TestEvaluate_MixedEnergyScenario(t *testing.T) {
	records := cleanEnergy(100)

	// 5 null consumption
	for i := 0; i < 5; i++ {
		records[i].Fields["consumption_mwh"] = nil
	}
	// 3 negative consumption
	for i := 5; i < 8; i++ {
		records[i].Fields["consumption_mwh"] = energy.Float(-10)
	}
	// 2 exact-duplicate pairs
	records[98].Region, records[98].Timestamp = records[20].Region, records[20].Timestamp
	records[99].Region, records[99].Timestamp = records[21].Region, records[21].Timestamp

	result := Evaluate(rulesFor(t, TableEnergyConsumption), records, scanNow, nil)

	assert.Equal(t, 100, result.RecordCount)
	assert.False(t, result.NoData)
	assert.Equal(t, 95.0, score(t, result, contracts.MetricCompleteness))
	assert.Equal(t, 92.0, score(t, result, contracts.MetricAccuracy))
	assert.Equal(t, 98.0, score(t, result, contracts.MetricConsistency))

	require.Len(t, result.Issues, 10)
	counts := countByType(result.Issues)
	assert.Equal(t, 5, counts[contracts.IssueNullValue])
	assert.Equal(t, 3, counts[contracts.IssueNegativeValue])
	assert.Equal(t, 2, counts[contracts.IssueDuplicateRecord])

	for _, issue := range result.Issues {
		assert.Equal(t, TableEnergyConsumption, issue.TableName)
		assert.Equal(t, contracts.StatusOpen, issue.Status)
		assert.Equal(t, scanNow, issue.DetectedAt)
		assert.NotEmpty(t, issue.Fingerprint)
		switch issue.IssueType {
		case contracts.IssueDuplicateRecord:
			assert.Nil(t, issue.RecordID)
			assert.Equal(t, contracts.SeverityMedium, issue.Severity)
		default:
			assert.NotNil(t, issue.RecordID)
			assert.Equal(t, contracts.SeverityHigh, issue.Severity)
		}
	}
}

func TestEvaluate_CleanDataScoresPerfect(t *testing.T) {
	result := Evaluate(rulesFor(t, TableEnergyConsumption), cleanEnergy(40), scanNow, nil)

	for _, name := range contracts.CoreMetrics {
		assert.Equal(t, 100.0, score(t, result, name), name)
	}
	assert.Empty(t, result.Issues)
}

func TestEvaluate_NoData(t *testing.T) {
	result := Evaluate(rulesFor(t, TableWeatherData), nil, scanNow, nil)

	assert.True(t, result.NoData)
	assert.Zero(t, result.RecordCount)
	assert.Empty(t, result.Issues)
	require.Len(t, result.Scores, 3)
	for _, s := range result.Scores {
		assert.Equal(t, 100.0, s.MetricValue)
		assert.Zero(t, s.TotalRecords)
	}
}

func TestEvaluate_ScoresStayInBounds(t *testing.T) {
	// every record broken in every way
	records := make([]contracts.Record, 0)
	for i := 0; i < 6; i++ {
		records = append(records, energyRecord(i+1, "CA", scanNow.Add(time.Hour), nil))
	}

	result := Evaluate(rulesFor(t, TableEnergyConsumption), records, scanNow, nil)

	for _, s := range result.Scores {
		assert.GreaterOrEqual(t, s.MetricValue, 0.0)
		assert.LessOrEqual(t, s.MetricValue, 100.0)
	}
	assert.Equal(t, 0.0, score(t, result, contracts.MetricCompleteness))
	assert.Equal(t, 0.0, score(t, result, contracts.MetricAccuracy))
	assert.Equal(t, 16.7, score(t, result, contracts.MetricConsistency))
}

func TestEvaluate_DuplicateSeverity(t *testing.T) {
	ts := scanNow.Add(-2 * time.Hour)
	records := append(cleanEnergy(10),
		energyRecord(101, "NY", ts, energy.Float(10)),
		energyRecord(102, "NY", ts, energy.Float(10)),
		energyRecord(103, "NY", ts, energy.Float(11)),
	)
	rules := rulesFor(t, TableEnergyConsumption)

	result := Evaluate(rules, records, scanNow, nil)
	require.Len(t, result.Issues, 1)
	dup := result.Issues[0]
	assert.Equal(t, contracts.IssueDuplicateRecord, dup.IssueType)
	assert.Equal(t, contracts.SeverityHigh, dup.Severity)
	assert.Equal(t, 84.6, score(t, result, contracts.MetricConsistency))

	// still OPEN from the previous scan → CRITICAL
	prior := []contracts.QualityIssue{dup}
	escalated := Evaluate(rules, records, scanNow.Add(time.Hour), prior)
	require.Len(t, escalated.Issues, 1)
	assert.Equal(t, contracts.SeverityCritical, escalated.Issues[0].Severity)
	assert.Equal(t, dup.Fingerprint, escalated.Issues[0].Fingerprint)

	// resolved prior issues do not escalate
	dup.Status = contracts.StatusResolved
	again := Evaluate(rules, records, scanNow.Add(time.Hour), []contracts.QualityIssue{dup})
	assert.Equal(t, contracts.SeverityHigh, again.Issues[0].Severity)
}

func TestEvaluate_WeatherRanges(t *testing.T) {
	ts := scanNow.Add(-time.Hour)
	records := []contracts.Record{
		weatherRecord(1, ts, map[string]*float64{"temperature": energy.Float(70), "humidity": energy.Float(40), "pressure": energy.Float(1013)}),
		weatherRecord(2, ts.Add(-time.Hour), map[string]*float64{"temperature": energy.Float(70), "humidity": energy.Float(120), "pressure": energy.Float(1013)}),
		weatherRecord(3, ts.Add(-2*time.Hour), map[string]*float64{"temperature": energy.Float(70), "pressure": energy.Float(0)}),
		weatherRecord(4, ts.Add(-3*time.Hour), map[string]*float64{"temperature": energy.Float(70), "pressure": energy.Float(-5)}),
		weatherRecord(5, ts.Add(-4*time.Hour), map[string]*float64{"temperature": energy.Float(200)}),
		weatherRecord(6, ts.Add(-5*time.Hour), map[string]*float64{"temperature": nil, "humidity": energy.Float(50)}),
	}

	result := Evaluate(rulesFor(t, TableWeatherData), records, scanNow, nil)

	// only record 1 is fully accurate
	assert.Equal(t, 16.7, score(t, result, contracts.MetricAccuracy))
	assert.Equal(t, 83.3, score(t, result, contracts.MetricCompleteness))
	assert.Equal(t, 100.0, score(t, result, contracts.MetricConsistency))

	byRecord := make(map[int64]contracts.QualityIssue)
	for _, i := range result.Issues {
		require.NotNil(t, i.RecordID)
		byRecord[*i.RecordID] = i
	}
	require.Len(t, byRecord, 5)

	assert.Equal(t, contracts.IssueOutOfRange, byRecord[2].IssueType)
	assert.Equal(t, contracts.SeverityMedium, byRecord[2].Severity)
	assert.Equal(t, contracts.IssueOutOfRange, byRecord[3].IssueType)
	assert.Equal(t, contracts.IssueNegativeValue, byRecord[4].IssueType)
	assert.Equal(t, contracts.IssueOutOfRange, byRecord[5].IssueType)
	assert.Equal(t, contracts.SeverityHigh, byRecord[5].Severity)
	assert.Equal(t, contracts.IssueNullValue, byRecord[6].IssueType)
	assert.Equal(t, contracts.SeverityHigh, byRecord[6].Severity)
}

func TestEvaluate_FutureTimestampAndOutlier(t *testing.T) {
	records := append(cleanEnergy(8),
		energyRecord(50, "CA", scanNow.Add(2*time.Hour), energy.Float(100)),
		energyRecord(51, "CA", scanNow.Add(-30*time.Minute), energy.Float(250_000)),
	)

	result := Evaluate(rulesFor(t, TableEnergyConsumption), records, scanNow, nil)

	counts := countByType(result.Issues)
	assert.Equal(t, 1, counts[contracts.IssueFutureTimestamp])
	assert.Equal(t, 1, counts[contracts.IssuePotentialOutlier])
	// outliers stay accurate, future rows do not
	assert.Equal(t, 90.0, score(t, result, contracts.MetricAccuracy))

	for _, i := range result.Issues {
		switch i.IssueType {
		case contracts.IssueFutureTimestamp:
			assert.Equal(t, contracts.SeverityHigh, i.Severity)
		case contracts.IssuePotentialOutlier:
			assert.Equal(t, contracts.SeverityLow, i.Severity)
		}
	}
}

func TestEvaluate_NaNIsOutOfRange(t *testing.T) {
	records := append(cleanEnergy(9),
		energyRecord(60, "CA", scanNow.Add(-90*time.Minute), energy.Float(math.NaN())),
	)

	result := Evaluate(rulesFor(t, TableEnergyConsumption), records, scanNow, nil)

	assert.Equal(t, 100.0, score(t, result, contracts.MetricCompleteness))
	assert.Equal(t, 90.0, score(t, result, contracts.MetricAccuracy))

	require.Len(t, result.Issues, 1)
	issue := result.Issues[0]
	assert.Equal(t, contracts.IssueOutOfRange, issue.IssueType)
	assert.Equal(t, contracts.SeverityHigh, issue.Severity)
	require.NotNil(t, issue.RecordID)
	assert.Equal(t, int64(60), *issue.RecordID)
}

func TestEvaluate_FingerprintsAreStable(t *testing.T) {
	records := cleanEnergy(20)
	records[3].Fields["consumption_mwh"] = nil
	records[4].Fields["consumption_mwh"] = energy.Float(-1)
	rules := rulesFor(t, TableEnergyConsumption)

	first := Evaluate(rules, records, scanNow, nil)
	second := Evaluate(rules, records, scanNow.Add(time.Hour), nil)

	require.Equal(t, len(first.Issues), len(second.Issues))
	for i := range first.Issues {
		assert.Equal(t, first.Issues[i].Key(), second.Issues[i].Key())
	}
}

func TestScanner_Scan(t *testing.T) {
	src := energy.NewMemorySource()
	src.Add(TableEnergyConsumption, cleanEnergy(5)...)
	src.Add(TableEnergyConsumption, energyRecord(0, "CA", scanNow.Add(-60*24*time.Hour), nil)) // outside window

	result, err := NewScanner(src).Scan(context.Background(), rulesFor(t, TableEnergyConsumption), scanNow, nil)
	require.NoError(t, err)

	assert.Equal(t, 5, result.RecordCount)
	assert.Equal(t, 100.0, score(t, result, contracts.MetricCompleteness))
	// newest record is 1h old
	assert.Equal(t, 98.0, score(t, result, contracts.MetricFreshness))
}

func TestScanner_QueryFailure(t *testing.T) {
	src := energy.NewMemorySource()
	src.FailWith(TableWeatherData, errors.New("connection refused"))

	_, err := NewScanner(src).Scan(context.Background(), rulesFor(t, TableWeatherData), scanNow, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrQueryFailure))
}

func TestFreshness(t *testing.T) {
	assert.Equal(t, 100.0, Freshness(scanNow, scanNow))
	assert.Equal(t, 90.0, Freshness(scanNow.Add(-5*time.Hour), scanNow))
	assert.Equal(t, 0.0, Freshness(scanNow.Add(-72*time.Hour), scanNow))
	assert.Equal(t, 100.0, Freshness(scanNow.Add(time.Hour), scanNow))
}

func TestOverallScore(t *testing.T) {
	_, ok := OverallScore(nil)
	assert.False(t, ok)

	v, ok := OverallScore([]float64{95, 92, 98})
	assert.True(t, ok)
	assert.Equal(t, 95.0, v)
}
