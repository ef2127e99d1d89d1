package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/logger"
)

const (
	defaultHistoryWindow = 7 * 24 * time.Hour
	defaultTrendDays     = 7
	maxTrendDays         = 365
	defaultRecentIssues  = 10
	maxRecentIssues      = 100
)

// QualityHandler serves scores and issues
// ⭐ SSOT: 품질 조회/이슈 API 핸들러는 이 구조체에서만
type QualityHandler struct {
	metrics contracts.MetricStore
	issues  contracts.IssueStore
	logger  *logger.Logger
	now     func() time.Time
}

// NewQualityHandler creates a new quality handler
func NewQualityHandler(metrics contracts.MetricStore, issues contracts.IssueStore, log *logger.Logger) *QualityHandler {
	return &QualityHandler{
		metrics: metrics,
		issues:  issues,
		logger:  log,
		now:     time.Now,
	}
}

// MetricView is a stored score with its dashboard band
type MetricView struct {
	contracts.QualityMetric
	Status string `json:"status"`
}

func viewMetrics(metrics []contracts.QualityMetric) []MetricView {
	views := make([]MetricView, len(metrics))
	for i, m := range metrics {
		views[i] = MetricView{QualityMetric: m, Status: m.Status()}
	}
	return views
}

// GetMetrics returns the latest score per table and metric
// GET /api/v1/quality/metrics?table=
func (h *QualityHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")

	metrics, err := h.metrics.LatestAll(r.Context(), table)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load latest metrics")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"metrics": viewMetrics(metrics),
		"count":   len(metrics),
	})
}

// GetHistory returns a metric's history, oldest first
// GET /api/v1/quality/metrics/{table}/{metric}/history?since=|hours=
func (h *QualityHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	table, metric, ok := h.metricPath(w, r)
	if !ok {
		return
	}

	since, err := querySince(r, h.now(), defaultHistoryWindow)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := h.metrics.History(r.Context(), table, metric, since)
	if err != nil {
		h.logger.WithError(err).WithTable(table).Error("Failed to load metric history")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve metric history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"table_name":  table,
		"metric_name": metric,
		"since":       since,
		"history":     viewMetrics(history),
	})
}

// GetTrend returns avg/min/max and direction over the last N days
// GET /api/v1/quality/metrics/{table}/{metric}/trend?days=7
func (h *QualityHandler) GetTrend(w http.ResponseWriter, r *http.Request) {
	table, metric, ok := h.metricPath(w, r)
	if !ok {
		return
	}

	days, err := queryInt(r, "days", defaultTrendDays)
	if err != nil || days == 0 || days > maxTrendDays {
		respondError(w, http.StatusBadRequest, "Invalid 'days' (expected 1-365)")
		return
	}

	trend, err := h.metrics.Trend(r.Context(), table, metric, time.Duration(days)*24*time.Hour)
	if err != nil {
		h.logger.WithError(err).WithTable(table).Error("Failed to compute trend")
		respondError(w, http.StatusInternalServerError, "Failed to compute trend")
		return
	}

	respondJSON(w, http.StatusOK, trend)
}

func (h *QualityHandler) metricPath(w http.ResponseWriter, r *http.Request) (string, contracts.MetricName, bool) {
	vars := mux.Vars(r)
	metric, err := contracts.ParseMetricName(vars["metric"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	return vars["table"], metric, true
}

// ListIssues returns filtered issues, newest first
// GET /api/v1/quality/issues?table=&severity=&status=&limit=&offset=
func (h *QualityHandler) ListIssues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := contracts.IssueFilter{TableName: q.Get("table")}

	if raw := q.Get("severity"); raw != "" {
		sev, err := contracts.ParseSeverity(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Severity = sev
	}
	if raw := q.Get("status"); raw != "" {
		status, err := contracts.ParseIssueStatus(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = status
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit", contracts.DefaultIssueLimit); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	issues, err := h.issues.List(r.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list issues")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve issues")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"issues": issues,
		"count":  len(issues),
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// GetIssue returns one issue
// GET /api/v1/quality/issues/{id}
func (h *QualityHandler) GetIssue(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	issue, err := h.issues.Get(r.Context(), id)
	if err != nil {
		h.respondIssueError(w, id, err)
		return
	}
	respondJSON(w, http.StatusOK, issue)
}

// ResolveRequest carries optional resolution notes
type ResolveRequest struct {
	ResolutionNotes string `json:"resolution_notes"`
}

// ResolveIssue transitions an OPEN issue to RESOLVED
// PUT /api/v1/quality/issues/{id}/resolve
func (h *QualityHandler) ResolveIssue(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	issue, err := h.issues.Resolve(r.Context(), id, req.ResolutionNotes)
	if err != nil {
		h.respondIssueError(w, id, err)
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"issue_id": id,
		"table":    issue.TableName,
	}).Info("Issue resolved")
	respondJSON(w, http.StatusOK, issue)
}

// IgnoreIssue transitions an OPEN issue to IGNORED
// PUT /api/v1/quality/issues/{id}/ignore
func (h *QualityHandler) IgnoreIssue(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	issue, err := h.issues.Ignore(r.Context(), id)
	if err != nil {
		h.respondIssueError(w, id, err)
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"issue_id": id,
		"table":    issue.TableName,
	}).Info("Issue ignored")
	respondJSON(w, http.StatusOK, issue)
}

func (h *QualityHandler) respondIssueError(w http.ResponseWriter, id string, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusNotFound:
		respondError(w, status, "Issue not found")
	case http.StatusConflict:
		respondError(w, status, "Issue is not OPEN")
	default:
		h.logger.WithError(err).WithField("issue_id", id).Error("Issue operation failed")
		respondError(w, status, "Failed to update issue")
	}
}

// GetSummary returns issue counts and the latest scores with bands
// GET /api/v1/quality/summary
func (h *QualityHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.issues.Summary(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to summarise issues")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve summary")
		return
	}

	latest, err := h.metrics.LatestAll(ctx, "")
	if err != nil {
		h.logger.WithError(err).Error("Failed to load latest metrics")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve summary")
		return
	}

	tables, overall := groupLatest(latest)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"issues":  summary,
		"tables":  tables,
		"overall": overall,
	})
}

// TableView is one table's latest scores and the band of its weakest core dimension
type TableView struct {
	Metrics map[contracts.MetricName]MetricView `json:"metrics"`
	Status  string                              `json:"status"`
}

// GetDashboard returns everything the dashboard renders in one read
// GET /api/v1/quality/dashboard?recent=
func (h *QualityHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recent, err := queryInt(r, "recent", defaultRecentIssues)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if recent > maxRecentIssues {
		recent = maxRecentIssues
	}

	summary, err := h.issues.Summary(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to summarise issues")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve dashboard")
		return
	}

	latest, err := h.metrics.LatestAll(ctx, "")
	if err != nil {
		h.logger.WithError(err).Error("Failed to load latest metrics")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve dashboard")
		return
	}

	open := []contracts.QualityIssue{}
	if recent > 0 {
		open, err = h.issues.List(ctx, contracts.IssueFilter{Status: contracts.StatusOpen, Limit: recent})
		if err != nil {
			h.logger.WithError(err).Error("Failed to list recent issues")
			respondError(w, http.StatusInternalServerError, "Failed to retrieve dashboard")
			return
		}
	}

	grouped, overall := groupLatest(latest)
	tables := make(map[string]TableView, len(grouped))
	for name, metrics := range grouped {
		tables[name] = TableView{Metrics: metrics, Status: weakestBand(metrics)}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"generated_at":  h.now().UTC(),
		"overall":       overall,
		"tables":        tables,
		"issues":        summary,
		"recent_issues": open,
	})
}

// groupLatest splits the latest rows per table; the overall row is returned apart
func groupLatest(latest []contracts.QualityMetric) (map[string]map[contracts.MetricName]MetricView, *MetricView) {
	tables := make(map[string]map[contracts.MetricName]MetricView)
	var overall *MetricView
	for _, v := range viewMetrics(latest) {
		if v.TableName == contracts.OverallTable {
			cp := v
			overall = &cp
			continue
		}
		if tables[v.TableName] == nil {
			tables[v.TableName] = make(map[contracts.MetricName]MetricView)
		}
		tables[v.TableName][v.MetricName] = v
	}
	return tables, overall
}

func weakestBand(metrics map[contracts.MetricName]MetricView) string {
	lowest := -1.0
	for _, name := range contracts.CoreMetrics {
		if v, ok := metrics[name]; ok && (lowest < 0 || v.MetricValue < lowest) {
			lowest = v.MetricValue
		}
	}
	if lowest < 0 {
		return "unknown"
	}
	return contracts.StatusBand(lowest)
}
