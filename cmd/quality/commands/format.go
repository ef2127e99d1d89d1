package commands

import (
	"fmt"
	"strings"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/monitor"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintReport prints a scan report as a score table
func PrintReport(r *monitor.RunReport) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  Quality Scan (%s)\n", r.Trigger)
	PrintSeparator()
	PrintKeyValue("Scan ID", r.ID, 9)
	PrintKeyValue("Started", r.StartedAt.Local().Format("2006-01-02 15:04:05"), 9)
	PrintKeyValue("Duration", r.FinishedAt.Sub(r.StartedAt).String(), 9)
	PrintKeyValue("Threshold", fmt.Sprintf("%.1f", r.Threshold), 9)
	PrintSeparator()

	widths := []int{20, 24, 7, 9}
	PrintTableHeader([]string{"TABLE", "METRIC", "SCORE", "STATUS"}, widths)
	for _, t := range r.Tables {
		for _, s := range t.Scores {
			PrintTableRow([]string{
				t.Table,
				string(s.MetricName),
				fmt.Sprintf("%.1f", s.MetricValue),
				s.Status(),
			}, widths)
		}
	}
	fmt.Println()

	for _, t := range r.Tables {
		line := fmt.Sprintf("%s: %d records, %d issues (%d new)", t.Table, t.RecordCount, t.IssuesDetected, t.IssuesCreated)
		if t.NoData {
			line += ", no data in window"
		}
		if t.Error != "" {
			PrintError(t.Table + ": " + t.Error)
			continue
		}
		PrintSuccess(line)
	}

	if r.OverallScore != nil {
		PrintKeyValue("Overall", fmt.Sprintf("%.1f (%s)", *r.OverallScore, contracts.StatusBand(*r.OverallScore)), 9)
	}
	PrintKeyValue("Alerts", fmt.Sprintf("%d", r.Alerts), 9)
	PrintKeyValue("Outcome", r.Outcome(), 9)
	if r.Error != "" {
		PrintWarning(r.Error)
	}
	PrintDoubleSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}
