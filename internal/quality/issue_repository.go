package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
)

// IssueRepository persists quality issues to data_quality_issues.
// OPEN uniqueness is enforced by the partial index uq_quality_issues_open.
// ⭐ SSOT: 품질 이슈 저장/조회/상태전이
type IssueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository creates a new issue repository
func NewIssueRepository(pool *pgxpool.Pool) *IssueRepository {
	return &IssueRepository{pool: pool}
}

const issueColumns = `
	id, table_name, record_id, issue_type, severity, issue_description,
	fingerprint, status, detected_at, resolved_at, resolution_notes
`

// Upsert inserts the issue unless an OPEN one with the same key exists.
// The existing row keeps its detected_at; only its severity may be raised.
func (r *IssueRepository) Upsert(ctx context.Context, issue contracts.QualityIssue) (contracts.QualityIssue, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return contracts.QualityIssue{}, false, fmt.Errorf("begin transaction: %w: %w", contracts.ErrStoreWrite, err)
	}
	defer tx.Rollback(ctx)

	if issue.DetectedAt.IsZero() {
		issue.DetectedAt = time.Now()
	}

	insert := `INSERT INTO data_quality_issues (` + issueColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'OPEN', $8, NULL, '')
		ON CONFLICT (table_name, issue_type, fingerprint) WHERE status = 'OPEN' DO NOTHING
		RETURNING ` + issueColumns

	stored, err := scanIssue(tx.QueryRow(ctx, insert,
		uuid.New().String(),
		issue.TableName,
		issue.RecordID,
		string(issue.IssueType),
		string(issue.Severity),
		issue.Description,
		issue.Fingerprint,
		issue.DetectedAt,
	))

	created := true
	switch {
	case err == pgx.ErrNoRows:
		created = false
		stored, err = r.escalate(ctx, tx, issue)
		if err != nil {
			return contracts.QualityIssue{}, false, err
		}
	case err != nil:
		return contracts.QualityIssue{}, false, fmt.Errorf("insert issue %s: %w: %w", issue.Key(), contracts.ErrStoreWrite, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return contracts.QualityIssue{}, false, fmt.Errorf("commit transaction: %w: %w", contracts.ErrStoreWrite, err)
	}
	return stored, created, nil
}

// escalate loads the existing OPEN row and raises its severity when the new detection ranks higher
func (r *IssueRepository) escalate(ctx context.Context, tx pgx.Tx, issue contracts.QualityIssue) (contracts.QualityIssue, error) {
	query := `SELECT ` + issueColumns + `
		FROM data_quality_issues
		WHERE table_name = $1 AND issue_type = $2 AND fingerprint = $3 AND status = 'OPEN'
		FOR UPDATE`

	existing, err := scanIssue(tx.QueryRow(ctx, query, issue.TableName, string(issue.IssueType), issue.Fingerprint))
	if err != nil {
		return contracts.QualityIssue{}, fmt.Errorf("load open issue %s: %w: %w", issue.Key(), contracts.ErrStoreWrite, err)
	}

	if issue.Severity.Rank() <= existing.Severity.Rank() {
		return existing, nil
	}

	_, err = tx.Exec(ctx, `UPDATE data_quality_issues SET severity = $2 WHERE id = $1`, existing.ID, string(issue.Severity))
	if err != nil {
		return contracts.QualityIssue{}, fmt.Errorf("escalate issue %s: %w: %w", existing.ID, contracts.ErrStoreWrite, err)
	}
	existing.Severity = issue.Severity
	return existing, nil
}

// Get returns one issue
func (r *IssueRepository) Get(ctx context.Context, id string) (*contracts.QualityIssue, error) {
	query := `SELECT ` + issueColumns + ` FROM data_quality_issues WHERE id = $1`

	issue, err := scanIssue(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("get issue %s: %w", id, contracts.ErrIssueNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue %s: %w", id, err)
	}
	return &issue, nil
}

// List returns filtered issues, newest first
func (r *IssueRepository) List(ctx context.Context, filter contracts.IssueFilter) ([]contracts.QualityIssue, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = contracts.DefaultIssueLimit
	}

	query := `SELECT ` + issueColumns + `
		FROM data_quality_issues
		WHERE ($1 = '' OR table_name = $1)
		  AND ($2 = '' OR severity = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY detected_at DESC, id ASC
		LIMIT $4 OFFSET $5`

	rows, err := r.pool.Query(ctx, query,
		filter.TableName,
		string(filter.Severity),
		string(filter.Status),
		limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query issues: %w", err)
	}
	defer rows.Close()

	return collectIssues(rows)
}

// OpenIssues returns OPEN issues of a table and type
func (r *IssueRepository) OpenIssues(ctx context.Context, table string, issueType contracts.IssueType) ([]contracts.QualityIssue, error) {
	query := `SELECT ` + issueColumns + `
		FROM data_quality_issues
		WHERE table_name = $1 AND issue_type = $2 AND status = 'OPEN'`

	rows, err := r.pool.Query(ctx, query, table, string(issueType))
	if err != nil {
		return nil, fmt.Errorf("query open issues: %w", err)
	}
	defer rows.Close()

	return collectIssues(rows)
}

// Resolve transitions OPEN → RESOLVED
func (r *IssueRepository) Resolve(ctx context.Context, id string, notes string) (*contracts.QualityIssue, error) {
	return r.transition(ctx, id, contracts.StatusResolved, notes)
}

// Ignore transitions OPEN → IGNORED
func (r *IssueRepository) Ignore(ctx context.Context, id string) (*contracts.QualityIssue, error) {
	return r.transition(ctx, id, contracts.StatusIgnored, "")
}

func (r *IssueRepository) transition(ctx context.Context, id string, to contracts.IssueStatus, notes string) (*contracts.QualityIssue, error) {
	query := `UPDATE data_quality_issues
		SET status = $2, resolved_at = $3, resolution_notes = $4
		WHERE id = $1 AND status = 'OPEN'
		RETURNING ` + issueColumns

	issue, err := scanIssue(r.pool.QueryRow(ctx, query, id, string(to), time.Now(), notes))
	if err == nil {
		return &issue, nil
	}
	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("%s issue %s: %w: %w", to, id, contracts.ErrStoreWrite, err)
	}

	// no OPEN row matched: tell unknown ids apart from terminal ones
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%s issue %s (status %s): %w", to, id, current.Status, contracts.ErrInvalidStateTransition)
}

// Summary counts issues by status and open severity
func (r *IssueRepository) Summary(ctx context.Context) (*contracts.IssueSummary, error) {
	query := `SELECT table_name, severity, status, COUNT(*)
		FROM data_quality_issues
		GROUP BY table_name, severity, status`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query issue summary: %w", err)
	}
	defer rows.Close()

	summary := contracts.NewIssueSummary()
	for rows.Next() {
		var table, severity, status string
		var count int
		if err := rows.Scan(&table, &severity, &status, &count); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		st := contracts.IssueStatus(status)
		summary.ByStatus[st] += count
		if st == contracts.StatusOpen {
			summary.OpenBySeverity[contracts.Severity(severity)] += count
			summary.OpenByTable[table] += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary rows: %w", err)
	}
	return summary, nil
}

func collectIssues(rows pgx.Rows) ([]contracts.QualityIssue, error) {
	out := make([]contracts.QualityIssue, 0)
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue row: %w", err)
		}
		out = append(out, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issue rows: %w", err)
	}
	return out, nil
}

func scanIssue(row pgx.Row) (contracts.QualityIssue, error) {
	var issue contracts.QualityIssue
	var issueType, severity, status string
	err := row.Scan(
		&issue.ID,
		&issue.TableName,
		&issue.RecordID,
		&issueType,
		&severity,
		&issue.Description,
		&issue.Fingerprint,
		&status,
		&issue.DetectedAt,
		&issue.ResolvedAt,
		&issue.ResolutionNotes,
	)
	issue.IssueType = contracts.IssueType(issueType)
	issue.Severity = contracts.Severity(severity)
	issue.Status = contracts.IssueStatus(status)
	return issue, err
}
