// Package alert delivers quality threshold breaches.
package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/logger"
)

// MessageAlert is the websocket message type used for breaches
const MessageAlert = "quality_alert"

// LogSink writes breaches to the structured log
type LogSink struct {
	logger *logger.Logger
}

// NewLogSink creates a log-only sink
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{logger: log}
}

// Notify logs the breach at warn level
func (s *LogSink) Notify(ctx context.Context, breach contracts.Breach) error {
	s.logger.WithFields(map[string]interface{}{
		"table":     breach.TableName,
		"metric":    breach.MetricName,
		"score":     breach.Score,
		"threshold": breach.Threshold,
		"band":      contracts.StatusBand(breach.Score),
	}).Warn("Quality alert: " + breach.String())
	return nil
}

// Broadcaster pushes a typed message to connected clients
type Broadcaster interface {
	Broadcast(msgType string, data interface{})
}

// BroadcastSink forwards breaches to live dashboard clients
type BroadcastSink struct {
	hub Broadcaster
}

// NewBroadcastSink creates a sink over hub
func NewBroadcastSink(hub Broadcaster) *BroadcastSink {
	return &BroadcastSink{hub: hub}
}

// Notify broadcasts the breach; delivery to individual clients is best effort
func (s *BroadcastSink) Notify(ctx context.Context, breach contracts.Breach) error {
	if s.hub == nil {
		return fmt.Errorf("broadcast %s.%s: %w: no hub", breach.TableName, breach.MetricName, contracts.ErrAlertDelivery)
	}
	s.hub.Broadcast(MessageAlert, breach)
	return nil
}

// MultiSink fans a breach out to every sink.
// Every sink is tried; failures are joined.
type MultiSink struct {
	sinks []contracts.AlertSink
}

// NewMultiSink creates a fan-out sink, skipping nil entries
func NewMultiSink(sinks ...contracts.AlertSink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len returns the number of wrapped sinks
func (m *MultiSink) Len() int {
	return len(m.sinks)
}

// Notify delivers to all sinks
func (m *MultiSink) Notify(ctx context.Context, breach contracts.Breach) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Notify(ctx, breach); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
