package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/api/handlers"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/energy"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/monitor"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/quality"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/logger"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type testAPI struct {
	server  *httptest.Server
	monitor *monitor.Monitor
	issues  *quality.MemoryIssueStore
}

func newTestAPI(t *testing.T, runChecksPerMinute int) *testAPI {
	t.Helper()

	now := time.Now().UTC()
	src := energy.NewMemorySource()
	for i := 0; i < 10; i++ {
		mwh := energy.Float(500)
		if i < 2 {
			mwh = nil
		}
		src.Add(quality.TableEnergyConsumption, contracts.Record{
			Region:    "CA",
			Category:  "solar",
			Timestamp: now.Add(-time.Duration(i+1) * time.Hour),
			Fields:    map[string]*float64{"consumption_mwh": mwh},
		})
	}

	metrics := quality.NewMemoryMetricStore()
	issues := quality.NewMemoryIssueStore()
	reg := prometheus.NewRegistry()
	log := logger.Nop()

	m, err := monitor.New(monitor.DefaultConfig(), monitor.Deps{
		Source:     src,
		Rules:      quality.DefaultRules(),
		Metrics:    metrics,
		Issues:     issues,
		Registerer: reg,
		Logger:     log,
	})
	require.NoError(t, err)

	router := NewRouter(Routes{
		Quality: handlers.NewQualityHandler(metrics, issues, log),
		Monitor: handlers.NewMonitorHandler(m, runChecksPerMinute, log),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, log)

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		_ = m.Stop(context.Background())
	})
	return &testAPI{server: server, monitor: m, issues: issues}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	_ = json.Unmarshal(raw, &decoded)
	return resp, decoded
}

// runCheck triggers a scan over HTTP and waits for it to finish
func (a *testAPI) runCheck(t *testing.T) {
	t.Helper()
	resp, body := a.do(t, http.MethodPost, "/api/v1/quality/run-check", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NotEmpty(t, body["scan_id"])

	require.Eventually(t, func() bool {
		r := a.monitor.LastReport()
		return r != nil && r.ID == body["scan_id"]
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t, 0)
	resp, body := a.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	down := httptest.NewServer(NewRouter(Routes{
		Quality: handlers.NewQualityHandler(quality.NewMemoryMetricStore(), quality.NewMemoryIssueStore(), logger.Nop()),
		Monitor: handlers.NewMonitorHandler(a.monitor, 0, logger.Nop()),
		DB:      pingerFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	}, logger.Nop()))
	defer down.Close()

	res, err := http.Get(down.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestRunCheckAndReadScores(t *testing.T) {
	a := newTestAPI(t, 0)
	a.runCheck(t)

	resp, body := a.do(t, http.MethodGet, "/api/v1/quality/metrics?table=energy_consumption", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	metrics := body["metrics"].([]interface{})
	require.NotEmpty(t, metrics)

	byName := map[string]map[string]interface{}{}
	for _, m := range metrics {
		row := m.(map[string]interface{})
		byName[row["metric_name"].(string)] = row
	}
	require.Contains(t, byName, "completeness")
	assert.Equal(t, 80.0, byName["completeness"]["metric_value"])
	assert.Equal(t, "warning", byName["completeness"]["status"])

	resp, body = a.do(t, http.MethodGet, "/api/v1/quality/metrics/energy_consumption/completeness/history?hours=24", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["history"], 1)

	resp, body = a.do(t, http.MethodGet, "/api/v1/quality/metrics/energy_consumption/completeness/trend?days=7", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 80.0, body["avg"])
	assert.Equal(t, "STABLE", body["direction"])

	resp, body = a.do(t, http.MethodGet, "/api/v1/quality/summary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, body["overall"])
	assert.Contains(t, body["tables"], "energy_consumption")
}

func TestDashboard(t *testing.T) {
	a := newTestAPI(t, 0)

	resp, body := a.do(t, http.MethodGet, "/api/v1/quality/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, body["overall"])
	assert.Empty(t, body["tables"])

	a.runCheck(t)

	resp, body = a.do(t, http.MethodGet, "/api/v1/quality/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, body["overall"])
	assert.NotEmpty(t, body["generated_at"])

	tables := body["tables"].(map[string]interface{})
	require.Contains(t, tables, "energy_consumption")
	energyView := tables["energy_consumption"].(map[string]interface{})
	assert.NotEmpty(t, energyView["status"])
	completeness := energyView["metrics"].(map[string]interface{})["completeness"].(map[string]interface{})
	assert.Equal(t, 80.0, completeness["metric_value"])
	assert.Equal(t, "warning", completeness["status"])

	assert.Len(t, body["recent_issues"], 2)
	summary := body["issues"].(map[string]interface{})
	assert.Equal(t, 2.0, summary["open_by_table"].(map[string]interface{})["energy_consumption"])

	resp, body = a.do(t, http.MethodGet, "/api/v1/quality/dashboard?recent=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["recent_issues"], 1)

	resp, _ = a.do(t, http.MethodGet, "/api/v1/quality/dashboard?recent=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricParamValidation(t *testing.T) {
	a := newTestAPI(t, 0)

	resp, _ := a.do(t, http.MethodGet, "/api/v1/quality/metrics/energy_consumption/bogus/history", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, http.MethodGet, "/api/v1/quality/metrics/energy_consumption/accuracy/trend?days=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, http.MethodGet, "/api/v1/quality/metrics/energy_consumption/accuracy/history?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIssueLifecycle(t *testing.T) {
	a := newTestAPI(t, 0)
	a.runCheck(t)

	resp, body := a.do(t, http.MethodGet, "/api/v1/quality/issues?table=energy_consumption&severity=high&status=OPEN", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	issues := body["issues"].([]interface{})
	require.Len(t, issues, 2)
	id := issues[0].(map[string]interface{})["id"].(string)

	resp, body = a.do(t, http.MethodPut, "/api/v1/quality/issues/"+id+"/resolve", handlers.ResolveRequest{ResolutionNotes: "backfilled"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "RESOLVED", body["status"])
	assert.Equal(t, "backfilled", body["resolution_notes"])
	assert.NotNil(t, body["resolved_at"])

	resp, _ = a.do(t, http.MethodPut, "/api/v1/quality/issues/"+id+"/resolve", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = a.do(t, http.MethodGet, "/api/v1/quality/issues/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "RESOLVED", body["status"])

	other := issues[1].(map[string]interface{})["id"].(string)
	resp, body = a.do(t, http.MethodPut, "/api/v1/quality/issues/"+other+"/ignore", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "IGNORED", body["status"])

	resp, _ = a.do(t, http.MethodPut, "/api/v1/quality/issues/nope/resolve", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = a.do(t, http.MethodGet, "/api/v1/quality/issues?severity=urgent", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, http.MethodGet, "/api/v1/quality/issues?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = a.do(t, http.MethodGet, "/api/v1/quality/issues?status=OPEN", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0.0, body["count"])
}

func TestMonitoringControl(t *testing.T) {
	a := newTestAPI(t, 0)

	resp, body := a.do(t, http.MethodPost, "/api/v1/quality/monitoring/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["running"])

	resp, body = a.do(t, http.MethodPut, "/api/v1/quality/monitoring/config", handlers.ConfigRequest{
		CheckIntervalMinutes: floatPtr(30),
		AlertThreshold:       floatPtr(80),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 30.0, body["check_interval_minutes"])
	assert.Equal(t, 80.0, body["alert_threshold"])

	resp, _ = a.do(t, http.MethodPut, "/api/v1/quality/monitoring/config", handlers.ConfigRequest{AlertThreshold: floatPtr(150)})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPut, "/api/v1/quality/monitoring/config", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = a.do(t, http.MethodGet, "/api/v1/quality/monitoring/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := body["status"].(map[string]interface{})
	assert.Equal(t, true, status["running"])
	assert.NotNil(t, status["next_run_at"])

	resp, body = a.do(t, http.MethodPost, "/api/v1/quality/monitoring/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["running"])
}

func TestRunCheckThrottled(t *testing.T) {
	a := newTestAPI(t, 1)
	a.runCheck(t)

	resp, _ := a.do(t, http.MethodPost, "/api/v1/quality/monitoring/immediate-check", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestPrometheusEndpoint(t *testing.T) {
	a := newTestAPI(t, 0)
	a.runCheck(t)

	res, err := http.Get(a.server.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(raw), "quality_monitor_scans_total")
	assert.Contains(t, string(raw), `quality_monitor_score{metric="completeness",table="energy_consumption"} 80`)
}

func floatPtr(v float64) *float64 { return &v }
