package monitor

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/quality"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/logger"
)

// scan runs every table through the scanner, persists per table, then scores and alerts
func (m *Monitor) scan(ctx context.Context, h *ScanHandle, threshold float64) *RunReport {
	log := m.logger.WithScan(h.ID, string(h.Trigger))
	log.WithField("tables", len(m.rules)).Info("Quality scan started")

	report := &RunReport{
		ID:        h.ID,
		Trigger:   h.Trigger,
		StartedAt: h.StartedAt,
		Threshold: threshold,
		Tables:    make([]TableReport, len(m.rules)),
	}

	// table errors live in the reports, so the group never cancels
	var g errgroup.Group
	g.SetLimit(m.workers)
	for i, rules := range m.rules {
		i, rules := i, rules
		g.Go(func() error {
			report.Tables[i] = m.scanTable(ctx, rules, log.WithTable(rules.Table))
			return nil
		})
	}
	_ = g.Wait()

	m.recordOverall(ctx, report, log)
	report.Alerts = m.alert(ctx, report, log)
	report.FinishedAt = m.clock.Now()

	m.stats.ScansTotal.WithLabelValues(string(report.Trigger), report.Outcome()).Inc()
	m.stats.ScanDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())

	fields := map[string]interface{}{
		"outcome":       report.Outcome(),
		"failed_tables": report.Failed(),
		"alerts":        report.Alerts,
		"duration":      report.FinishedAt.Sub(report.StartedAt).String(),
	}
	if report.OverallScore != nil {
		fields["overall_score"] = *report.OverallScore
	}
	log.WithFields(fields).Info("Quality scan completed")

	return report
}

// scanTable scans and commits one table. Writes stop at the first store failure;
// rows already written stay.
func (m *Monitor) scanTable(ctx context.Context, rules quality.TableRules, log *logger.Logger) TableReport {
	tr := TableReport{Table: rules.Table, Scores: []contracts.QualityMetric{}}

	prior, err := m.issues.OpenIssues(ctx, rules.Table, contracts.IssueDuplicateRecord)
	if err != nil {
		log.WithError(err).Warn("Could not read open duplicate issues; escalation skipped")
		prior = nil
	}

	result, err := m.scanner.Scan(ctx, rules, m.clock.Now(), prior)
	if err != nil {
		log.WithError(err).Error("Table scan failed")
		tr.fail(err)
		return tr
	}
	tr.RecordCount = result.RecordCount
	tr.NoData = result.NoData
	tr.IssuesDetected = len(result.Issues)

	for _, metric := range result.Scores {
		if err := m.metrics.Append(ctx, metric); err != nil {
			err = storeWrite(fmt.Sprintf("append %s.%s", metric.TableName, metric.MetricName), err)
			log.WithError(err).Error("Metric write failed")
			tr.fail(err)
			return tr
		}
		tr.Scores = append(tr.Scores, metric)
		m.stats.QualityScore.WithLabelValues(metric.TableName, string(metric.MetricName)).Set(metric.MetricValue)
	}

	for _, issue := range result.Issues {
		_, created, err := m.issues.Upsert(ctx, issue)
		if err != nil {
			err = storeWrite(fmt.Sprintf("upsert %s issue %s", issue.IssueType, issue.Fingerprint), err)
			log.WithError(err).Error("Issue write failed")
			tr.fail(err)
			return tr
		}
		if created {
			tr.IssuesCreated++
		}
	}
	if tr.IssuesCreated > 0 {
		m.stats.IssuesCreated.WithLabelValues(rules.Table).Add(float64(tr.IssuesCreated))
	}

	log.WithFields(map[string]interface{}{
		"records":         tr.RecordCount,
		"issues_detected": tr.IssuesDetected,
		"issues_created":  tr.IssuesCreated,
	}).Debug("Table scan committed")
	return tr
}

// recordOverall appends the mean of every persisted table score
func (m *Monitor) recordOverall(ctx context.Context, report *RunReport, log *logger.Logger) {
	var scores []float64
	total := 0
	for _, t := range report.Tables {
		total += t.RecordCount
		for _, s := range t.Scores {
			scores = append(scores, s.MetricValue)
		}
	}

	overall, ok := quality.OverallScore(scores)
	if !ok {
		return
	}

	metric := contracts.QualityMetric{
		TableName:    contracts.OverallTable,
		MetricName:   contracts.MetricOverall,
		MetricValue:  overall,
		CalculatedAt: m.clock.Now(),
		TotalRecords: total,
	}
	if err := m.metrics.Append(ctx, metric); err != nil {
		err = storeWrite("append overall score", err)
		log.WithError(err).Error("Overall score write failed")
		report.Error = err.Error()
		return
	}

	report.OverallScore = &overall
	m.stats.QualityScore.WithLabelValues(contracts.OverallTable, string(contracts.MetricOverall)).Set(overall)
}

// alert notifies the sink of every persisted alertable score below threshold.
// Delivery failures are logged and counted only.
func (m *Monitor) alert(ctx context.Context, report *RunReport, log *logger.Logger) int {
	sent := 0
	for _, t := range report.Tables {
		for _, s := range t.Scores {
			if !s.MetricName.Alertable() || s.MetricValue >= report.Threshold {
				continue
			}

			breach := contracts.Breach{
				TableName:  s.TableName,
				MetricName: s.MetricName,
				Score:      s.MetricValue,
				Threshold:  report.Threshold,
				Timestamp:  s.CalculatedAt,
			}
			sent++

			if err := m.sink.Notify(ctx, breach); err != nil {
				if !errors.Is(err, contracts.ErrAlertDelivery) {
					err = fmt.Errorf("%w: %w", contracts.ErrAlertDelivery, err)
				}
				m.stats.AlertsTotal.WithLabelValues("failed").Inc()
				log.WithError(err).WithFields(map[string]interface{}{
					"table":  breach.TableName,
					"metric": breach.MetricName,
				}).Warn("Alert delivery failed")
				continue
			}
			m.stats.AlertsTotal.WithLabelValues("sent").Inc()
		}
	}
	return sent
}

func storeWrite(op string, err error) error {
	if errors.Is(err, contracts.ErrStoreWrite) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, contracts.ErrStoreWrite, err)
}
