package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
)

// Trigger says what started a scan
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// TableReport is the outcome of scanning one monitored table.
// Scores holds only what was persisted.
type TableReport struct {
	Table          string                    `json:"table_name"`
	Scores         []contracts.QualityMetric `json:"scores"`
	IssuesDetected int                       `json:"issues_detected"`
	IssuesCreated  int                       `json:"issues_created"`
	RecordCount    int                       `json:"record_count"`
	NoData         bool                      `json:"no_data"`
	Err            error                     `json:"-"`
	Error          string                    `json:"error,omitempty"`
}

func (t *TableReport) fail(err error) {
	t.Err = err
	t.Error = err.Error()
}

// RunReport summarises one scan across every monitored table
type RunReport struct {
	ID           string        `json:"scan_id"`
	Trigger      Trigger       `json:"trigger"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	Threshold    float64       `json:"alert_threshold"`
	Tables       []TableReport `json:"tables"`
	OverallScore *float64      `json:"overall_score,omitempty"`
	Alerts       int           `json:"alerts"`
	Error        string        `json:"error,omitempty"`
}

// Failed counts tables whose scan or writes failed
func (r *RunReport) Failed() int {
	n := 0
	for _, t := range r.Tables {
		if t.Err != nil {
			n++
		}
	}
	return n
}

// Outcome is ok, partial or failed
func (r *RunReport) Outcome() string {
	failed := r.Failed()
	switch {
	case failed == 0 && r.Error == "":
		return "ok"
	case failed == len(r.Tables):
		return "failed"
	default:
		return "partial"
	}
}

// Table returns the report of one table
func (r *RunReport) Table(name string) (*TableReport, bool) {
	for i := range r.Tables {
		if r.Tables[i].Table == name {
			return &r.Tables[i], true
		}
	}
	return nil, false
}

// ScanHandle refers to a scan that may still be running.
// Every caller that joins the same scan gets the same handle.
type ScanHandle struct {
	ID        string
	Trigger   Trigger
	StartedAt time.Time

	done   chan struct{}
	report *RunReport
}

func newScanHandle(trigger Trigger, startedAt time.Time) *ScanHandle {
	return &ScanHandle{
		ID:        uuid.New().String(),
		Trigger:   trigger,
		StartedAt: startedAt,
		done:      make(chan struct{}),
	}
}

// Done is closed when the scan has finished
func (h *ScanHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the scan finishes or ctx ends
func (h *ScanHandle) Wait(ctx context.Context) (*RunReport, error) {
	select {
	case <-h.done:
		return h.report, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the report without blocking; ok is false while the scan runs
func (h *ScanHandle) Result() (*RunReport, bool) {
	select {
	case <-h.done:
		return h.report, true
	default:
		return nil, false
	}
}

func (h *ScanHandle) finish(report *RunReport) {
	h.report = report
	close(h.done)
}
