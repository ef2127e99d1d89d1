// Package monitor runs periodic quality scans and guarantees at most one scan in flight per process.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/alert"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/quality"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/scheduler"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/logger"
)

// Deps are the collaborators a Monitor is built from
type Deps struct {
	Source  contracts.RecordSource
	Rules   []quality.TableRules
	Metrics contracts.MetricStore
	Issues  contracts.IssueStore

	// Sink defaults to a log-only sink
	Sink contracts.AlertSink

	// Clock defaults to the wall clock
	Clock Clock

	// Registerer may be nil; instruments are then kept private
	Registerer prometheus.Registerer

	Logger *logger.Logger
}

// Status is a read-only snapshot of the monitor state
type Status struct {
	Running              bool          `json:"running"`
	InFlight             bool          `json:"in_flight"`
	CurrentScanID        string        `json:"current_scan_id,omitempty"`
	CheckInterval        time.Duration `json:"-"`
	CheckIntervalMinutes float64       `json:"check_interval_minutes"`
	AlertThreshold       float64       `json:"alert_threshold"`
	LastRunAt            *time.Time    `json:"last_run_at"`
	NextRunAt            *time.Time    `json:"next_run_at"`
	LastOverallScore     *float64      `json:"last_overall_score,omitempty"`
	MonitoredTables      []string      `json:"monitored_tables"`
}

// Monitor owns the periodic check timer and the in-flight scan.
// ⭐ SSOT: 스캔 동시 실행 제어는 여기서만
type Monitor struct {
	scanner *quality.Scanner
	rules   []quality.TableRules
	metrics contracts.MetricStore
	issues  contracts.IssueStore
	sink    contracts.AlertSink
	clock   Clock
	sched   *scheduler.Scheduler
	stats   *Metrics
	logger  *logger.Logger

	shutdownTimeout time.Duration
	scanTimeout     time.Duration
	workers         int

	mu         sync.Mutex
	running    bool
	interval   time.Duration
	threshold  float64
	current    *ScanHandle
	lastRunAt  *time.Time
	lastReport *RunReport
	listeners  []func(*RunReport)
}

// New builds a stopped monitor
func New(cfg Config, deps Deps) (*Monitor, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid monitor config: %w", err)
	}
	if deps.Source == nil || deps.Metrics == nil || deps.Issues == nil {
		return nil, errors.New("monitor requires a record source, a metric store and an issue store")
	}
	if err := quality.ValidateRules(deps.Rules); err != nil {
		return nil, fmt.Errorf("invalid table rules: %w", err)
	}

	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithField("component", "monitor")

	sink := deps.Sink
	if sink == nil {
		sink = alert.NewLogSink(log)
	}
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	return &Monitor{
		scanner:         quality.NewScanner(deps.Source),
		rules:           deps.Rules,
		metrics:         deps.Metrics,
		issues:          deps.Issues,
		sink:            sink,
		clock:           clock,
		sched:           scheduler.New(log).WithRetries(0, 0),
		stats:           NewMetrics(deps.Registerer),
		logger:          log,
		shutdownTimeout: cfg.ShutdownTimeout,
		scanTimeout:     cfg.ScanTimeout,
		workers:         cfg.ScanWorkers,
		interval:        cfg.CheckInterval,
		threshold:       cfg.AlertThreshold,
	}, nil
}

// Start arms the periodic timer. Starting a running monitor is a no-op.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	if err := m.sched.AddJob(m.checkJob()); err != nil {
		return fmt.Errorf("arm check timer: %w", err)
	}
	m.sched.Start()
	m.running = true

	m.logger.WithFields(map[string]interface{}{
		"check_interval":  m.interval.String(),
		"alert_threshold": m.threshold,
	}).Info("Quality monitor started")
	return nil
}

// Stop cancels the timer and waits for an in-flight scan to finish.
// The scan is never aborted; if it outlives the shutdown timeout ErrShutdownTimeout is returned
// and the scan completes in the background.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.running = false
		if m.sched.HasJob(checkJobName) {
			if err := m.sched.RemoveJob(checkJobName); err != nil {
				m.logger.WithError(err).Warn("Failed to remove check job")
			}
		}
		m.sched.Stop()
		m.logger.Info("Quality monitor stopped")
	}
	inFlight := m.current
	m.mu.Unlock()

	if inFlight == nil {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, m.shutdownTimeout)
	defer cancel()
	if _, err := inFlight.Wait(waitCtx); err != nil {
		m.logger.WithField("scan_id", inFlight.ID).Warn("In-flight scan still running after shutdown timeout")
		return fmt.Errorf("stop monitor (scan %s): %w: %w", inFlight.ID, contracts.ErrShutdownTimeout, err)
	}
	return nil
}

// ImmediateCheck starts a scan unless one is in flight, in which case the running scan is returned.
// started reports whether this call began a new scan.
func (m *Monitor) ImmediateCheck() (handle *ScanHandle, started bool) {
	return m.begin(TriggerManual)
}

// Status returns a snapshot without touching state
func (m *Monitor) Status() Status {
	m.mu.Lock()
	status := Status{
		Running:              m.running,
		InFlight:             m.current != nil,
		CheckInterval:        m.interval,
		CheckIntervalMinutes: m.interval.Minutes(),
		AlertThreshold:       m.threshold,
		MonitoredTables:      m.tableNames(),
	}
	if m.current != nil {
		status.CurrentScanID = m.current.ID
	}
	if m.lastRunAt != nil {
		t := *m.lastRunAt
		status.LastRunAt = &t
	}
	if m.lastReport != nil && m.lastReport.OverallScore != nil {
		v := *m.lastReport.OverallScore
		status.LastOverallScore = &v
	}
	running := m.running
	m.mu.Unlock()

	if running {
		if next, ok := m.sched.NextRun(checkJobName); ok {
			status.NextRunAt = &next
		}
	}
	return status
}

// LastReport returns the report of the most recently finished scan
func (m *Monitor) LastReport() *RunReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReport
}

// SetCheckInterval changes the timer period. A running timer is re-armed; an in-flight scan is untouched.
func (m *Monitor) SetCheckInterval(d time.Duration) error {
	if err := validateInterval(d); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.interval = d
	if m.running {
		if m.sched.HasJob(checkJobName) {
			if err := m.sched.RemoveJob(checkJobName); err != nil {
				return fmt.Errorf("re-arm check timer: %w", err)
			}
		}
		if err := m.sched.AddJob(m.checkJob()); err != nil {
			m.running = false
			return fmt.Errorf("re-arm check timer: %w", err)
		}
	}

	m.logger.WithField("check_interval", d.String()).Info("Check interval updated")
	return nil
}

// SetAlertThreshold changes the alert threshold; scans already in flight keep the old one
func (m *Monitor) SetAlertThreshold(v float64) error {
	if err := validateThreshold(v); err != nil {
		return err
	}

	m.mu.Lock()
	m.threshold = v
	m.mu.Unlock()

	m.logger.WithField("alert_threshold", v).Info("Alert threshold updated")
	return nil
}

// OnReport registers fn to receive every finished scan report
func (m *Monitor) OnReport(fn func(*RunReport)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// JobStats returns the timer's run history
func (m *Monitor) JobStats() map[string]scheduler.JobStats {
	return m.sched.GetJobStats()
}

// Tables returns the monitored table names
func (m *Monitor) Tables() []string {
	return m.tableNames()
}

func (m *Monitor) tableNames() []string {
	names := make([]string, len(m.rules))
	for i, r := range m.rules {
		names[i] = r.Table
	}
	return names
}

// begin is the single check-and-set of the in-flight flag.
// A scheduled tick on a stopped monitor gets a nil handle.
func (m *Monitor) begin(trigger Trigger) (*ScanHandle, bool) {
	m.mu.Lock()
	if trigger == TriggerSchedule && !m.running {
		m.mu.Unlock()
		return nil, false
	}
	if m.current != nil {
		h := m.current
		m.mu.Unlock()
		return h, false
	}
	h := newScanHandle(trigger, m.clock.Now())
	m.current = h
	threshold := m.threshold
	m.mu.Unlock()

	m.stats.InFlight.Set(1)
	go m.run(h, threshold)
	return h, true
}

// run executes the scan on its own context so stopping the monitor never aborts it
func (m *Monitor) run(h *ScanHandle, threshold float64) {
	ctx, cancel := context.WithTimeout(context.Background(), m.scanTimeout)
	defer cancel()

	report := m.scan(ctx, h, threshold)

	m.mu.Lock()
	m.current = nil
	finished := report.FinishedAt
	m.lastRunAt = &finished
	m.lastReport = report
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()

	m.stats.InFlight.Set(0)
	h.finish(report)

	for _, fn := range listeners {
		fn(report)
	}
}
