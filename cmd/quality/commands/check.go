package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/alert"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/quality"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one quality scan and print the report",
	Long: `Scans every monitored table once and prints the scores.

With --dry-run the scores and issues are kept in memory and only
logged alerts are raised; nothing is written to the database.

Example:
  go run ./cmd/quality check
  go run ./cmd/quality check --dry-run --threshold 85
  go run ./cmd/quality check --json`,
	RunE: runCheck,
}

var (
	checkDryRun    bool
	checkThreshold float64
	checkJSON      bool
)

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().BoolVar(&checkDryRun, "dry-run", false, "score without persisting or notifying")
	checkCmd.Flags().Float64Var(&checkThreshold, "threshold", 0, "alert threshold override (0-100)")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the report as JSON")
}

func runCheck(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	var sink contracts.AlertSink
	if checkDryRun {
		e.metrics = quality.NewMemoryMetricStore()
		e.issues = quality.NewMemoryIssueStore()
		sink = alert.NewLogSink(e.log)
	} else {
		sink = e.sink()
	}

	mon, err := e.newMonitor(nil, sink)
	if err != nil {
		return fmt.Errorf("create monitor: %w", err)
	}
	if cmd.Flags().Changed("threshold") {
		if err := mon.SetAlertThreshold(checkThreshold); err != nil {
			return err
		}
	}

	handle, _ := mon.ImmediateCheck()
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Monitor.ScanTimeout+time.Minute)
	defer cancel()

	report, err := handle.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for scan %s: %w", handle.ID, err)
	}

	if checkJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		PrintReport(report)
		if checkDryRun {
			PrintInfo("Dry run: nothing was persisted")
		}
	}

	if report.Outcome() == "failed" {
		return fmt.Errorf("scan %s failed", report.ID)
	}
	return nil
}
