package contracts

import (
	"fmt"
	"strings"
	"time"
)

// IssueType tags a concrete data-quality problem
type IssueType string

const (
	IssueNullValue        IssueType = "null_value"
	IssueNegativeValue    IssueType = "negative_value"
	IssueOutOfRange       IssueType = "out_of_range"
	IssueFutureTimestamp  IssueType = "future_timestamp"
	IssueDuplicateRecord  IssueType = "duplicate_record"
	IssuePotentialOutlier IssueType = "potential_outlier"
)

// Valid reports whether t is a known issue type
func (t IssueType) Valid() bool {
	switch t {
	case IssueNullValue, IssueNegativeValue, IssueOutOfRange,
		IssueFutureTimestamp, IssueDuplicateRecord, IssuePotentialOutlier:
		return true
	}
	return false
}

// Severity orders issues CRITICAL > HIGH > MEDIUM > LOW
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Rank returns a comparable weight; unknown severities rank 0
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Valid reports whether s is a known severity
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// ParseSeverity accepts any letter case
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(s))
	if !sev.Valid() {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// IssueStatus is the lifecycle state of an issue: OPEN → RESOLVED | IGNORED
type IssueStatus string

const (
	StatusOpen     IssueStatus = "OPEN"
	StatusResolved IssueStatus = "RESOLVED"
	StatusIgnored  IssueStatus = "IGNORED"
)

// Valid reports whether s is a known status
func (s IssueStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusResolved, StatusIgnored:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed
func (s IssueStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusIgnored
}

// ParseIssueStatus accepts any letter case
func ParseIssueStatus(s string) (IssueStatus, error) {
	st := IssueStatus(strings.ToUpper(s))
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// QualityIssue is a detected concrete problem
// ⭐ SSOT: 품질 이슈 형식은 여기서만
type QualityIssue struct {
	ID              string      `json:"id"`
	TableName       string      `json:"table_name"`
	RecordID        *int64      `json:"record_id,omitempty"` // nil for aggregate issues
	IssueType       IssueType   `json:"issue_type"`
	Severity        Severity    `json:"severity"`
	Description     string      `json:"issue_description"`
	Fingerprint     string      `json:"fingerprint"`
	Status          IssueStatus `json:"status"`
	DetectedAt      time.Time   `json:"detected_at"`
	ResolvedAt      *time.Time  `json:"resolved_at,omitempty"`
	ResolutionNotes string      `json:"resolution_notes,omitempty"`
}

// Key is the uniqueness key among OPEN issues
func (i QualityIssue) Key() string {
	return i.TableName + "/" + string(i.IssueType) + "/" + i.Fingerprint
}

// IssueFilter narrows an issue listing; zero values mean "any"
type IssueFilter struct {
	TableName string
	Severity  Severity
	Status    IssueStatus
	Limit     int
	Offset    int
}

// DefaultIssueLimit applies when a filter carries no limit
const DefaultIssueLimit = 100

// Matches reports whether the issue passes the filter predicates (limit/offset excluded)
func (f IssueFilter) Matches(i QualityIssue) bool {
	if f.TableName != "" && i.TableName != f.TableName {
		return false
	}
	if f.Severity != "" && i.Severity != f.Severity {
		return false
	}
	if f.Status != "" && i.Status != f.Status {
		return false
	}
	return true
}

// IssueSummary counts issues by status and, for OPEN issues, by severity
type IssueSummary struct {
	ByStatus       map[IssueStatus]int `json:"by_status"`
	OpenBySeverity map[Severity]int    `json:"open_by_severity"`
	OpenByTable    map[string]int      `json:"open_by_table"`
}

// NewIssueSummary returns an empty summary with initialised maps
func NewIssueSummary() *IssueSummary {
	return &IssueSummary{
		ByStatus:       make(map[IssueStatus]int),
		OpenBySeverity: make(map[Severity]int),
		OpenByTable:    make(map[string]int),
	}
}

// Add counts one issue
func (s *IssueSummary) Add(i QualityIssue) {
	s.ByStatus[i.Status]++
	if i.Status == StatusOpen {
		s.OpenBySeverity[i.Severity]++
		s.OpenByTable[i.TableName]++
	}
}
