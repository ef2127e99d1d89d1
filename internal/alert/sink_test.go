package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/httputil"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/logger"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/redis"
)

var testBreach = contracts.Breach{
	TableName:  "weather_data",
	MetricName: contracts.MetricAccuracy,
	Score:      65.0,
	Threshold:  70.0,
	Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
}

type recordingHub struct {
	mu       sync.Mutex
	messages []string
	data     []interface{}
}

func (h *recordingHub) Broadcast(msgType string, data interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msgType)
	h.data = append(h.data, data)
}

type failingSink struct{ err error }

func (s failingSink) Notify(ctx context.Context, breach contracts.Breach) error { return s.err }

func testClient() *httputil.Client {
	return httputil.NewWithTimeout(nil, logger.Nop(), 2*time.Second).DisableRetry()
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(logger.NewWithWriter(&buf, "info"))

	require.NoError(t, sink.Notify(context.Background(), testBreach))
	assert.Contains(t, buf.String(), `"table":"weather_data"`)
	assert.Contains(t, buf.String(), `"band":"poor"`)
	assert.Contains(t, buf.String(), "weather_data.accuracy dropped to 65.0%")
}

func TestBroadcastSink(t *testing.T) {
	hub := &recordingHub{}
	require.NoError(t, NewBroadcastSink(hub).Notify(context.Background(), testBreach))
	assert.Equal(t, []string{MessageAlert}, hub.messages)
	assert.Equal(t, testBreach, hub.data[0])

	err := NewBroadcastSink(nil).Notify(context.Background(), testBreach)
	assert.True(t, errors.Is(err, contracts.ErrAlertDelivery))
}

func TestMultiSink_TriesEverySink(t *testing.T) {
	hub := &recordingHub{}
	boom := errors.New("boom")
	multi := NewMultiSink(failingSink{err: boom}, nil, NewBroadcastSink(hub))
	assert.Equal(t, 2, multi.Len())

	err := multi.Notify(context.Background(), testBreach)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, hub.messages, 1, "later sinks still run after a failure")

	assert.NoError(t, NewMultiSink().Notify(context.Background(), testBreach))
}

func TestWebhookSink_PostsPayload(t *testing.T) {
	var got WebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, testClient(), nil, 0, logger.Nop())
	require.NoError(t, sink.Notify(context.Background(), testBreach))

	assert.Equal(t, "weather_data", got.TableName)
	assert.Equal(t, contracts.MetricAccuracy, got.MetricName)
	assert.Equal(t, 65.0, got.Score)
	assert.Equal(t, 70.0, got.Threshold)
	assert.Equal(t, "poor", got.Status)
	assert.NotEmpty(t, got.Message)
}

func TestWebhookSink_FailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, testClient(), nil, 0, logger.Nop())
	err := sink.Notify(context.Background(), testBreach)
	assert.True(t, errors.Is(err, contracts.ErrAlertDelivery))
}

func TestWebhookSink_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, testClient(), nil, 0, logger.Nop())
	for i := 0; i < breakerFailures; i++ {
		assert.Error(t, sink.Notify(context.Background(), testBreach))
	}
	assert.Equal(t, gobreaker.StateOpen, sink.State())

	err := sink.Notify(context.Background(), testBreach)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.True(t, errors.Is(err, contracts.ErrAlertDelivery))
	assert.Equal(t, int32(breakerFailures), hits.Load(), "open breaker short-circuits delivery")
}

func TestWebhookSink_DisabledCooldownNeverSuppresses(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	limiter := redis.NewRateLimiter(redis.Disabled(), "test")
	sink := NewWebhookSink(server.URL, testClient(), limiter, time.Hour, logger.Nop())

	require.NoError(t, sink.Notify(context.Background(), testBreach))
	require.NoError(t, sink.Notify(context.Background(), testBreach))
	assert.Equal(t, int32(2), hits.Load())
}
