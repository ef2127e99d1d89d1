package alert

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/httputil"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/logger"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/redis"
)

// breakerFailures is the number of consecutive delivery failures tolerated before the breaker opens
const breakerFailures = 5

// WebhookSink POSTs breaches as JSON to an external endpoint.
// Delivery goes through a circuit breaker; a per-(table, metric) cooldown suppresses repeats.
type WebhookSink struct {
	url      string
	client   *httputil.Client
	cb       *gobreaker.CircuitBreaker
	limiter  *redis.RateLimiter
	cooldown time.Duration
	logger   *logger.Logger
}

// WebhookPayload is the JSON body sent to the webhook
type WebhookPayload struct {
	contracts.Breach
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewWebhookSink creates a webhook sink.
// limiter may be nil or backed by a disabled client; cooldown <= 0 disables suppression.
func NewWebhookSink(url string, client *httputil.Client, limiter *redis.RateLimiter, cooldown time.Duration, log *logger.Logger) *WebhookSink {
	sinkLog := log.WithField("sink", "webhook")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "alert-webhook",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			sinkLog.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Alert webhook breaker state changed")
		},
	})

	return &WebhookSink{
		url:      url,
		client:   client,
		cb:       cb,
		limiter:  limiter,
		cooldown: cooldown,
		logger:   sinkLog,
	}
}

// State returns the breaker state
func (s *WebhookSink) State() gobreaker.State {
	return s.cb.State()
}

// Notify sends the breach unless the same pair alerted within the cooldown
func (s *WebhookSink) Notify(ctx context.Context, breach contracts.Breach) error {
	if s.suppressed(ctx, breach) {
		s.logger.WithFields(map[string]interface{}{
			"table":  breach.TableName,
			"metric": breach.MetricName,
		}).Debug("Alert suppressed by cooldown")
		return nil
	}

	payload := WebhookPayload{
		Breach:  breach,
		Status:  contracts.StatusBand(breach.Score),
		Message: breach.String(),
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		resp, err := s.client.PostJSON(ctx, s.url, payload)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("webhook %s.%s: %w: %w", breach.TableName, breach.MetricName, contracts.ErrAlertDelivery, err)
	}
	return nil
}

func (s *WebhookSink) suppressed(ctx context.Context, breach contracts.Breach) bool {
	if s.limiter == nil || s.cooldown <= 0 {
		return false
	}

	key := redis.AlertKey(breach.TableName, string(breach.MetricName))
	allowed, _, err := s.limiter.Allow(ctx, redis.AlertRateLimit(key, s.cooldown))
	if err != nil {
		// cache trouble never blocks an alert
		s.logger.WithError(err).WithField("key", key).Warn("Alert cooldown check failed")
		return false
	}
	return !allowed
}
