package quality

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
)

// MemoryMetricStore keeps the metric log in process memory.
// Used by tests and by `check --dry-run`.
type MemoryMetricStore struct {
	mu      sync.RWMutex
	metrics []contracts.QualityMetric
	now     func() time.Time
}

// NewMemoryMetricStore creates an empty in-memory metric store
func NewMemoryMetricStore() *MemoryMetricStore {
	return &MemoryMetricStore{now: time.Now}
}

// Append records a metric
func (s *MemoryMetricStore) Append(ctx context.Context, m contracts.QualityMetric) error {
	if !m.MetricName.Valid() {
		return fmt.Errorf("append metric: %w: unknown metric %q", contracts.ErrStoreWrite, m.MetricName)
	}
	s.mu.Lock()
	s.metrics = append(s.metrics, m)
	s.mu.Unlock()
	return nil
}

// Latest returns the row with the greatest calculated_at for the pair
func (s *MemoryMetricStore) Latest(ctx context.Context, table string, metric contracts.MetricName) (*contracts.QualityMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *contracts.QualityMetric
	for i := range s.metrics {
		m := s.metrics[i]
		if m.TableName != table || m.MetricName != metric {
			continue
		}
		if latest == nil || !m.CalculatedAt.Before(latest.CalculatedAt) {
			cp := m
			latest = &cp
		}
	}
	return latest, nil
}

// LatestAll returns the latest row per (table, metric)
func (s *MemoryMetricStore) LatestAll(ctx context.Context, table string) ([]contracts.QualityMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		table  string
		metric contracts.MetricName
	}
	latest := make(map[key]contracts.QualityMetric)
	for _, m := range s.metrics {
		if table != "" && m.TableName != table {
			continue
		}
		k := key{m.TableName, m.MetricName}
		if cur, ok := latest[k]; !ok || !m.CalculatedAt.Before(cur.CalculatedAt) {
			latest[k] = m
		}
	}

	out := make([]contracts.QualityMetric, 0, len(latest))
	for _, m := range latest {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TableName != out[j].TableName {
			return out[i].TableName < out[j].TableName
		}
		return out[i].MetricName < out[j].MetricName
	})
	return out, nil
}

// History returns rows since the given time, oldest first
func (s *MemoryMetricStore) History(ctx context.Context, table string, metric contracts.MetricName, since time.Time) ([]contracts.QualityMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contracts.QualityMetric, 0)
	for _, m := range s.metrics {
		if m.TableName == table && m.MetricName == metric && !m.CalculatedAt.Before(since) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CalculatedAt.Before(out[j].CalculatedAt)
	})
	return out, nil
}

// Trend summarises the trailing window
func (s *MemoryMetricStore) Trend(ctx context.Context, table string, metric contracts.MetricName, window time.Duration) (*contracts.Trend, error) {
	since := s.now().Add(-window)
	history, err := s.History(ctx, table, metric, since)
	if err != nil {
		return nil, err
	}
	return ComputeTrend(table, metric, since, history), nil
}

// MemoryIssueStore keeps issues in process memory
type MemoryIssueStore struct {
	mu     sync.RWMutex
	issues map[string]*contracts.QualityIssue
	open   map[string]string // uniqueness key → id of the OPEN issue
	now    func() time.Time
}

// NewMemoryIssueStore creates an empty in-memory issue store
func NewMemoryIssueStore() *MemoryIssueStore {
	return &MemoryIssueStore{
		issues: make(map[string]*contracts.QualityIssue),
		open:   make(map[string]string),
		now:    time.Now,
	}
}

// Upsert inserts unless an OPEN issue with the same key exists
func (s *MemoryIssueStore) Upsert(ctx context.Context, issue contracts.QualityIssue) (contracts.QualityIssue, bool, error) {
	if !issue.IssueType.Valid() || !issue.Severity.Valid() {
		return contracts.QualityIssue{}, false, fmt.Errorf("upsert issue: %w: invalid type or severity", contracts.ErrStoreWrite)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := issue.Key()
	if id, ok := s.open[key]; ok {
		existing := s.issues[id]
		if issue.Severity.Rank() > existing.Severity.Rank() {
			existing.Severity = issue.Severity
		}
		return *existing, false, nil
	}

	stored := issue
	stored.ID = uuid.New().String()
	stored.Status = contracts.StatusOpen
	stored.ResolvedAt = nil
	stored.ResolutionNotes = ""
	if stored.DetectedAt.IsZero() {
		stored.DetectedAt = s.now()
	}

	s.issues[stored.ID] = &stored
	s.open[key] = stored.ID
	return stored, true, nil
}

// Get returns one issue
func (s *MemoryIssueStore) Get(ctx context.Context, id string) (*contracts.QualityIssue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issue, ok := s.issues[id]
	if !ok {
		return nil, fmt.Errorf("get issue %s: %w", id, contracts.ErrIssueNotFound)
	}
	cp := *issue
	return &cp, nil
}

// List returns filtered issues, newest first
func (s *MemoryIssueStore) List(ctx context.Context, filter contracts.IssueFilter) ([]contracts.QualityIssue, error) {
	s.mu.RLock()
	matched := make([]contracts.QualityIssue, 0)
	for _, issue := range s.issues {
		if filter.Matches(*issue) {
			matched = append(matched, *issue)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].DetectedAt.Equal(matched[j].DetectedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].DetectedAt.After(matched[j].DetectedAt)
	})

	return paginate(matched, filter), nil
}

func paginate(issues []contracts.QualityIssue, filter contracts.IssueFilter) []contracts.QualityIssue {
	limit := filter.Limit
	if limit <= 0 {
		limit = contracts.DefaultIssueLimit
	}
	if filter.Offset >= len(issues) {
		return []contracts.QualityIssue{}
	}
	issues = issues[filter.Offset:]
	if len(issues) > limit {
		issues = issues[:limit]
	}
	return issues
}

// OpenIssues returns OPEN issues of a table and type
func (s *MemoryIssueStore) OpenIssues(ctx context.Context, table string, issueType contracts.IssueType) ([]contracts.QualityIssue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contracts.QualityIssue, 0)
	for _, id := range s.open {
		issue := s.issues[id]
		if issue.TableName == table && issue.IssueType == issueType {
			out = append(out, *issue)
		}
	}
	return out, nil
}

// Resolve transitions OPEN → RESOLVED
func (s *MemoryIssueStore) Resolve(ctx context.Context, id string, notes string) (*contracts.QualityIssue, error) {
	return s.transition(id, contracts.StatusResolved, notes)
}

// Ignore transitions OPEN → IGNORED
func (s *MemoryIssueStore) Ignore(ctx context.Context, id string) (*contracts.QualityIssue, error) {
	return s.transition(id, contracts.StatusIgnored, "")
}

func (s *MemoryIssueStore) transition(id string, to contracts.IssueStatus, notes string) (*contracts.QualityIssue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[id]
	if !ok {
		return nil, fmt.Errorf("%s issue %s: %w", to, id, contracts.ErrIssueNotFound)
	}
	if issue.Status != contracts.StatusOpen {
		return nil, fmt.Errorf("%s issue %s (status %s): %w", to, id, issue.Status, contracts.ErrInvalidStateTransition)
	}

	now := s.now()
	issue.Status = to
	issue.ResolvedAt = &now
	issue.ResolutionNotes = notes
	delete(s.open, issue.Key())

	cp := *issue
	return &cp, nil
}

// Summary counts issues by status and open severity
func (s *MemoryIssueStore) Summary(ctx context.Context) (*contracts.IssueSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := contracts.NewIssueSummary()
	for _, issue := range s.issues {
		summary.Add(*issue)
	}
	return summary, nil
}
