package quality

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
)

// Scanner scores one monitored table per call. It holds no state between scans.
type Scanner struct {
	source contracts.RecordSource
}

// NewScanner creates a scanner reading through source
func NewScanner(source contracts.RecordSource) *Scanner {
	return &Scanner{source: source}
}

// Scan reads the table window and evaluates it.
// prior carries OPEN issues from earlier scans and is only used for escalation.
// ⭐ SSOT: 테이블 품질 스캔
func (s *Scanner) Scan(ctx context.Context, rules TableRules, now time.Time, prior []contracts.QualityIssue) (*contracts.ScanResult, error) {
	window := contracts.TrailingWindow(now, rules.Window)

	records, err := s.source.Records(ctx, rules.Table, window)
	if err != nil {
		return nil, queryFailure(rules.Table, err)
	}

	result := Evaluate(rules, records, now, prior)

	if rules.TrackFreshness {
		latest, ok, err := s.source.LatestIngest(ctx, rules.Table)
		if err != nil {
			return nil, queryFailure(rules.Table, err)
		}
		if ok {
			result.Scores = append(result.Scores, newMetric(rules, contracts.MetricFreshness, Freshness(latest, now), now, len(records), len(records)))
		}
	}

	return result, nil
}

func queryFailure(table string, err error) error {
	if errors.Is(err, contracts.ErrQueryFailure) {
		return fmt.Errorf("scan %s: %w", table, err)
	}
	return fmt.Errorf("scan %s: %w: %w", table, contracts.ErrQueryFailure, err)
}

// Evaluate computes scores and issues for records already read from the window
func Evaluate(rules TableRules, records []contracts.Record, now time.Time, prior []contracts.QualityIssue) *contracts.ScanResult {
	result := &contracts.ScanResult{
		TableName:   rules.Table,
		RecordCount: len(records),
	}

	total := len(records)
	if total == 0 {
		result.NoData = true
		for _, name := range contracts.CoreMetrics {
			result.Scores = append(result.Scores, newMetric(rules, name, 100.0, now, 0, 0))
		}
		return result
	}

	e := &evaluation{rules: rules, now: now, table: rules.Table}

	// 1. completeness
	populated, complete := e.completeness(records)
	completeness := 100.0
	if n := len(rules.RequiredFields); n > 0 {
		completeness = 100.0 * float64(populated) / float64(total*n)
	}

	// 2. accuracy
	accurate := e.accuracy(records)
	accuracy := 100.0 * float64(accurate) / float64(total)

	// 3. consistency
	duplicates := e.consistency(records, openDuplicates(prior))
	consistency := 100.0 * float64(total-duplicates) / float64(total)

	result.Scores = []contracts.QualityMetric{
		newMetric(rules, contracts.MetricCompleteness, completeness, now, total, complete),
		newMetric(rules, contracts.MetricAccuracy, accuracy, now, total, accurate),
		newMetric(rules, contracts.MetricConsistency, consistency, now, total, total-duplicates),
	}
	result.Issues = e.issues
	return result
}

// Freshness decays 2 points per hour since the newest ingest
func Freshness(latest, now time.Time) float64 {
	hours := now.Sub(latest).Hours()
	if hours < 0 {
		hours = 0
	}
	return normalizeScore(100.0 - 2.0*hours)
}

// OverallScore is the mean of the given scores; ok is false when there are none
func OverallScore(scores []float64) (float64, bool) {
	if len(scores) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return normalizeScore(sum / float64(len(scores))), true
}

// normalizeScore clamps to [0, 100] and rounds to one decimal
func normalizeScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return math.Round(v*10) / 10
}

func newMetric(rules TableRules, name contracts.MetricName, value float64, now time.Time, total, valid int) contracts.QualityMetric {
	return contracts.QualityMetric{
		TableName:    rules.Table,
		MetricName:   name,
		MetricValue:  normalizeScore(value),
		CalculatedAt: now,
		TotalRecords: total,
		ValidRecords: valid,
		PeriodStart:  now.Add(-rules.Window),
		PeriodEnd:    now,
	}
}

type evaluation struct {
	rules  TableRules
	now    time.Time
	table  string
	issues []contracts.QualityIssue
}

// completeness returns populated required-field count and fully populated record count
func (e *evaluation) completeness(records []contracts.Record) (populated, complete int) {
	for _, rec := range records {
		ok := true
		for _, f := range e.rules.RequiredFields {
			if _, has := rec.Value(f.Field); has {
				populated++
				continue
			}
			ok = false
			e.add(rec, contracts.IssueNullValue, severityFor(f.Primary),
				rec.NaturalKey()+"|"+f.Field,
				fmt.Sprintf("Null %s for region %s at %s", f.Field, rec.Region, formatTime(rec.Timestamp)))
		}
		if ok {
			complete++
		}
	}
	return populated, complete
}

// accuracy returns the number of records satisfying every range rule and not dated in the future
func (e *evaluation) accuracy(records []contracts.Record) int {
	accurate := 0
	for _, rec := range records {
		ok := true

		if rec.Timestamp.After(e.now) {
			ok = false
			e.add(rec, contracts.IssueFutureTimestamp, contracts.SeverityHigh,
				rec.NaturalKey(),
				fmt.Sprintf("Future timestamp %s for region %s", formatTime(rec.Timestamp), rec.Region))
		}

		for _, r := range e.rules.RangeRules {
			v, has := rec.Value(r.Field)
			if !has {
				if e.rules.IsRequired(r.Field) {
					ok = false
				}
				continue
			}
			if r.Contains(v) {
				continue
			}
			ok = false
			issueType := contracts.IssueOutOfRange
			if v < 0 && r.Min != nil && *r.Min >= 0 {
				issueType = contracts.IssueNegativeValue
			}
			e.add(rec, issueType, severityFor(r.Primary),
				rec.NaturalKey()+"|"+r.Field+"|"+formatValue(v),
				fmt.Sprintf("%s value %s out of range %s for region %s at %s",
					r.Field, formatValue(v), describeRange(r), rec.Region, formatTime(rec.Timestamp)))
		}

		for _, o := range e.rules.OutlierRules {
			v, has := rec.Value(o.Field)
			if !has || math.IsNaN(v) || v <= o.Above || !e.inRange(o.Field, v) {
				continue
			}
			e.add(rec, contracts.IssuePotentialOutlier, contracts.SeverityLow,
				rec.NaturalKey()+"|"+o.Field+"|"+formatValue(v),
				fmt.Sprintf("Unusually high %s %s for region %s at %s",
					o.Field, formatValue(v), rec.Region, formatTime(rec.Timestamp)))
		}

		if ok {
			accurate++
		}
	}
	return accurate
}

func (e *evaluation) inRange(field string, v float64) bool {
	for _, r := range e.rules.RangeRules {
		if r.Field == field && !r.Contains(v) {
			return false
		}
	}
	return true
}

// consistency returns the duplicate count and emits one issue per duplicate group
func (e *evaluation) consistency(records []contracts.Record, persisted map[string]bool) int {
	groups := make(map[string][]contracts.Record)
	order := make([]string, 0)
	for _, rec := range records {
		key := rec.NaturalKey()
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
	}

	duplicates := 0
	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		duplicates += len(group) - 1

		severity := contracts.SeverityMedium
		if len(group) >= 3 {
			severity = contracts.SeverityHigh
		}
		if persisted[key] {
			severity = contracts.SeverityCritical
		}

		first := group[0]
		e.issues = append(e.issues, contracts.QualityIssue{
			TableName:   e.table,
			IssueType:   contracts.IssueDuplicateRecord,
			Severity:    severity,
			Fingerprint: key,
			Description: fmt.Sprintf("%d records share region %s, timestamp %s, category %q",
				len(group), first.Region, formatTime(first.Timestamp), first.Category),
			Status:     contracts.StatusOpen,
			DetectedAt: e.now,
		})
	}
	return duplicates
}

func (e *evaluation) add(rec contracts.Record, t contracts.IssueType, sev contracts.Severity, fingerprint, desc string) {
	id := rec.ID
	e.issues = append(e.issues, contracts.QualityIssue{
		TableName:   e.table,
		RecordID:    &id,
		IssueType:   t,
		Severity:    sev,
		Fingerprint: fingerprint,
		Description: desc,
		Status:      contracts.StatusOpen,
		DetectedAt:  e.now,
	})
}

// openDuplicates indexes OPEN duplicate fingerprints from earlier scans
func openDuplicates(prior []contracts.QualityIssue) map[string]bool {
	out := make(map[string]bool)
	for _, i := range prior {
		if i.IssueType == contracts.IssueDuplicateRecord && i.Status == contracts.StatusOpen {
			out[i.Fingerprint] = true
		}
	}
	return out
}

func severityFor(primary bool) contracts.Severity {
	if primary {
		return contracts.SeverityHigh
	}
	return contracts.SeverityMedium
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func describeRange(r RangeRule) string {
	lo, hi := "-inf", "+inf"
	open := "["
	if r.Min != nil {
		lo = formatValue(*r.Min)
		if r.ExclusiveMin {
			open = "("
		}
	}
	if r.Max != nil {
		hi = formatValue(*r.Max)
	}
	return open + lo + ", " + hi + "]"
}
