package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
)

// issuesCmd represents the issues command
var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List and triage quality issues",
	Long: `Lists recorded issues and moves OPEN issues to RESOLVED or IGNORED.

Subcommands:
  list     - filtered listing, newest first
  resolve  - mark an OPEN issue resolved
  ignore   - mark an OPEN issue ignored

Example:
  go run ./cmd/quality issues list --table weather_data --severity high
  go run ./cmd/quality issues resolve <id> --notes "backfilled"
  go run ./cmd/quality issues ignore <id>`,
}

var (
	issuesListCmd = &cobra.Command{
		Use:   "list",
		Short: "List issues",
		RunE:  listIssues,
	}

	issuesResolveCmd = &cobra.Command{
		Use:   "resolve [issue_id]",
		Short: "Resolve an OPEN issue",
		Args:  cobra.ExactArgs(1),
		RunE:  resolveIssue,
	}

	issuesIgnoreCmd = &cobra.Command{
		Use:   "ignore [issue_id]",
		Short: "Ignore an OPEN issue",
		Args:  cobra.ExactArgs(1),
		RunE:  ignoreIssue,
	}
)

var (
	issuesTable    string
	issuesSeverity string
	issuesStatus   string
	issuesLimit    int
	issuesNotes    string
)

func init() {
	rootCmd.AddCommand(issuesCmd)
	issuesCmd.AddCommand(issuesListCmd)
	issuesCmd.AddCommand(issuesResolveCmd)
	issuesCmd.AddCommand(issuesIgnoreCmd)

	issuesListCmd.Flags().StringVar(&issuesTable, "table", "", "filter by table")
	issuesListCmd.Flags().StringVar(&issuesSeverity, "severity", "", "filter by severity (low|medium|high|critical)")
	issuesListCmd.Flags().StringVar(&issuesStatus, "status", "", "filter by status (OPEN|RESOLVED|IGNORED)")
	issuesListCmd.Flags().IntVar(&issuesLimit, "limit", contracts.DefaultIssueLimit, "maximum rows")

	issuesResolveCmd.Flags().StringVar(&issuesNotes, "notes", "", "resolution notes")
}

func issueFilter() (contracts.IssueFilter, error) {
	filter := contracts.IssueFilter{TableName: issuesTable, Limit: issuesLimit}
	if issuesSeverity != "" {
		sev, err := contracts.ParseSeverity(issuesSeverity)
		if err != nil {
			return filter, err
		}
		filter.Severity = sev
	}
	if issuesStatus != "" {
		status, err := contracts.ParseIssueStatus(issuesStatus)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	return filter, nil
}

func listIssues(cmd *cobra.Command, args []string) error {
	filter, err := issueFilter()
	if err != nil {
		return err
	}

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	issues, err := e.issues.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("list issues: %w", err)
	}
	if len(issues) == 0 {
		PrintInfo("No issues found")
		return nil
	}

	widths := []int{36, 18, 20, 8, 8, 16}
	PrintTableHeader([]string{"ID", "TABLE", "TYPE", "SEVERITY", "STATUS", "DETECTED"}, widths)
	for _, i := range issues {
		PrintTableRow([]string{
			i.ID,
			i.TableName,
			string(i.IssueType),
			string(i.Severity),
			string(i.Status),
			i.DetectedAt.Local().Format("2006-01-02 15:04"),
		}, widths)
	}
	fmt.Println()
	PrintKeyValue("Count", strconv.Itoa(len(issues)), 6)
	return nil
}

func resolveIssue(cmd *cobra.Command, args []string) error {
	return transitionIssue(args[0], func(ctx context.Context, issues contracts.IssueStore) (*contracts.QualityIssue, error) {
		return issues.Resolve(ctx, args[0], issuesNotes)
	})
}

func ignoreIssue(cmd *cobra.Command, args []string) error {
	return transitionIssue(args[0], func(ctx context.Context, issues contracts.IssueStore) (*contracts.QualityIssue, error) {
		return issues.Ignore(ctx, args[0])
	})
}

func transitionIssue(id string, fn func(context.Context, contracts.IssueStore) (*contracts.QualityIssue, error)) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	issue, err := fn(ctx, e.issues)
	if err != nil {
		PrintError(fmt.Sprintf("Issue %s: %v", id, err))
		return err
	}

	PrintSuccess(fmt.Sprintf("Issue %s is now %s", issue.ID, issue.Status))
	PrintKeyValue("Table", issue.TableName, 11)
	PrintKeyValue("Description", issue.Description, 11)
	return nil
}
