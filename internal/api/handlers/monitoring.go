package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/monitor"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/scheduler"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/logger"
)

// Monitor is the scheduler surface the API drives
type Monitor interface {
	Start() error
	Stop(ctx context.Context) error
	ImmediateCheck() (*monitor.ScanHandle, bool)
	Status() monitor.Status
	LastReport() *monitor.RunReport
	SetCheckInterval(d time.Duration) error
	SetAlertThreshold(v float64) error
	JobStats() map[string]scheduler.JobStats
}

// MonitorHandler exposes scheduler control
// ⭐ SSOT: 모니터 제어 API 핸들러는 이 구조체에서만
type MonitorHandler struct {
	monitor Monitor
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewMonitorHandler creates a handler. perMinute <= 0 disables the run-check throttle.
func NewMonitorHandler(m Monitor, perMinute int, log *logger.Logger) *MonitorHandler {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	return &MonitorHandler{monitor: m, limiter: limiter, logger: log}
}

// CheckAck acknowledges a check request
type CheckAck struct {
	Status    string    `json:"status"` // accepted | in_progress
	ScanID    string    `json:"scan_id"`
	Trigger   string    `json:"trigger"`
	StartedAt time.Time `json:"started_at"`
}

// RunCheck triggers a scan and returns at once; a scan already in flight is joined
// POST /api/v1/quality/run-check
// POST /api/v1/quality/monitoring/immediate-check
func (h *MonitorHandler) RunCheck(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		respondError(w, http.StatusTooManyRequests, "Too many check requests, try again later")
		return
	}

	handle, started := h.monitor.ImmediateCheck()
	ack := CheckAck{
		Status:    "accepted",
		ScanID:    handle.ID,
		Trigger:   string(handle.Trigger),
		StartedAt: handle.StartedAt,
	}
	if !started {
		ack.Status = "in_progress"
	}

	h.logger.WithFields(map[string]interface{}{
		"scan_id": handle.ID,
		"started": started,
	}).Info("Quality check requested")
	respondJSON(w, http.StatusAccepted, ack)
}

// GetStatus returns the scheduler state and the last report
// GET /api/v1/quality/monitoring/status
func (h *MonitorHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      h.monitor.Status(),
		"last_report": h.monitor.LastReport(),
		"jobs":        h.monitor.JobStats(),
	})
}

// Start arms the periodic timer
// POST /api/v1/quality/monitoring/start
func (h *MonitorHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.Start(); err != nil {
		h.logger.WithError(err).Error("Failed to start monitor")
		respondError(w, http.StatusInternalServerError, "Failed to start monitoring")
		return
	}
	respondJSON(w, http.StatusOK, h.monitor.Status())
}

// Stop cancels the timer and waits for an in-flight scan
// POST /api/v1/quality/monitoring/stop
func (h *MonitorHandler) Stop(w http.ResponseWriter, r *http.Request) {
	err := h.monitor.Stop(r.Context())
	if errors.Is(err, contracts.ErrShutdownTimeout) {
		// stopped, but the last scan is still finishing
		respondJSON(w, http.StatusAccepted, map[string]interface{}{
			"status":  h.monitor.Status(),
			"warning": err.Error(),
		})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to stop monitor")
		respondError(w, http.StatusInternalServerError, "Failed to stop monitoring")
		return
	}
	respondJSON(w, http.StatusOK, h.monitor.Status())
}

// ConfigRequest updates scheduler settings; omitted fields are unchanged
type ConfigRequest struct {
	CheckIntervalMinutes *float64 `json:"check_interval_minutes"`
	AlertThreshold       *float64 `json:"alert_threshold"`
}

// UpdateConfig changes interval and threshold for future scheduling decisions
// PUT /api/v1/quality/monitoring/config
func (h *MonitorHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CheckIntervalMinutes == nil && req.AlertThreshold == nil {
		respondError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	if req.AlertThreshold != nil {
		if err := h.monitor.SetAlertThreshold(*req.AlertThreshold); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.CheckIntervalMinutes != nil {
		d := time.Duration(*req.CheckIntervalMinutes * float64(time.Minute))
		if err := h.monitor.SetCheckInterval(d); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	respondJSON(w, http.StatusOK, h.monitor.Status())
}
