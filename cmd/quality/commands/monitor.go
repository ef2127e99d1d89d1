package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/monitor"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the periodic monitor without the API",
	Long: `Runs the monitor as a headless daemon.

Subcommands:
  run   - arm the periodic check and block until Ctrl+C

Example:
  go run ./cmd/quality monitor run
  go run ./cmd/quality monitor run --now`,
}

var monitorRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Arm the periodic check",
	RunE:  runMonitor,
}

var monitorRunNow bool

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.AddCommand(monitorRunCmd)

	monitorRunCmd.Flags().BoolVar(&monitorRunNow, "now", false, "scan once immediately on start")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Energy Data Quality Monitor ===")

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	mon, err := e.newMonitor(nil, e.sink())
	if err != nil {
		return fmt.Errorf("create monitor: %w", err)
	}
	mon.OnReport(PrintReport)

	if err := mon.Start(); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}
	if monitorRunNow {
		mon.ImmediateCheck()
	}

	status := mon.Status()
	fmt.Printf("Interval: %v | Threshold: %.1f | Tables: %v\n", status.CheckInterval, status.AlertThreshold, status.MonitoredTables)
	if status.NextRunAt != nil {
		fmt.Printf("Next run: %s\n", status.NextRunAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Press Ctrl+C to stop\n\n")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	e.log.Info("Stopping monitor...")
	if err := mon.Stop(context.Background()); err != nil {
		return fmt.Errorf("stop monitor: %w", err)
	}

	if r := mon.LastReport(); r != nil {
		PrintKeyValue("Last scan", lastScanLine(r), 10)
	}
	fmt.Println("\n✅ Monitor stopped")
	return nil
}

func lastScanLine(r *monitor.RunReport) string {
	return fmt.Sprintf("%s (%s, %s)", r.ID, r.Outcome(), r.FinishedAt.Format("15:04:05"))
}
