package monitor

import (
	"context"
	"fmt"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/scheduler"
)

const checkJobName = "quality_check"

// checkJob is the periodic timer entry
type checkJob struct {
	m        *Monitor
	schedule string
}

func (m *Monitor) checkJob() *checkJob {
	return &checkJob{m: m, schedule: scheduler.Every(m.interval)}
}

func (j *checkJob) Name() string     { return checkJobName }
func (j *checkJob) Schedule() string { return j.schedule }

// Run starts a scheduled scan. A tick that finds a scan in flight, or a stopped monitor, is dropped, never queued.
func (j *checkJob) Run(ctx context.Context) error {
	handle, started := j.m.begin(TriggerSchedule)
	if handle == nil {
		j.m.logger.Info("Scheduled check dropped: monitor stopped")
		return nil
	}
	if !started {
		j.m.stats.TicksSkipped.Inc()
		j.m.logger.WithFields(map[string]interface{}{
			"scan_id": handle.ID,
			"trigger": string(handle.Trigger),
		}).Warn("Scheduled check skipped: scan already in flight")
		return nil
	}

	report, err := handle.Wait(ctx)
	if err != nil {
		return err
	}
	if failed := report.Failed(); failed > 0 {
		return fmt.Errorf("scan %s: %d of %d tables failed", report.ID, failed, len(report.Tables))
	}
	return nil
}
