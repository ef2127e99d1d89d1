package quality

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/logger"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/redis"
)

// MetricCache is the subset of *redis.Cache the metric store needs
type MetricCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CachedMetricStore puts a Redis read-through cache in front of the latest-score reads.
// The wrapped store stays authoritative; cache errors fall back to it.
type CachedMetricStore struct {
	contracts.MetricStore
	cache  MetricCache
	ttl    time.Duration
	logger *logger.Logger

	// bumped by every Append; a read that saw it move drops what it just cached
	writes atomic.Uint64
}

// NewCachedMetricStore wraps store with cache
func NewCachedMetricStore(store contracts.MetricStore, cache MetricCache, ttl time.Duration, log *logger.Logger) *CachedMetricStore {
	if ttl <= 0 {
		ttl = redis.TTLMedium
	}
	return &CachedMetricStore{MetricStore: store, cache: cache, ttl: ttl, logger: log}
}

// Append writes through and drops the affected cache keys
func (s *CachedMetricStore) Append(ctx context.Context, m contracts.QualityMetric) error {
	if err := s.MetricStore.Append(ctx, m); err != nil {
		return err
	}
	s.writes.Add(1)

	for _, key := range []string{
		redis.LatestMetricKey(m.TableName, string(m.MetricName)),
		redis.LatestMetricsKey(m.TableName),
		redis.LatestMetricsKey(""),
	} {
		s.invalidate(ctx, key)
	}
	return nil
}

// Latest serves from cache when present
func (s *CachedMetricStore) Latest(ctx context.Context, table string, metric contracts.MetricName) (*contracts.QualityMetric, error) {
	key := redis.LatestMetricKey(table, string(metric))

	var cached contracts.QualityMetric
	if found, err := s.cache.Get(ctx, key, &cached); err == nil && found {
		return &cached, nil
	}

	seen := s.writes.Load()
	m, err := s.MetricStore.Latest(ctx, table, metric)
	if err != nil || m == nil {
		return m, err
	}
	s.fill(ctx, key, m, seen)
	return m, nil
}

// LatestAll serves the dashboard projection from cache when present
func (s *CachedMetricStore) LatestAll(ctx context.Context, table string) ([]contracts.QualityMetric, error) {
	key := redis.LatestMetricsKey(table)

	var cached []contracts.QualityMetric
	if found, err := s.cache.Get(ctx, key, &cached); err == nil && found {
		return cached, nil
	}

	seen := s.writes.Load()
	metrics, err := s.MetricStore.LatestAll(ctx, table)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, key, metrics, seen)
	return metrics, nil
}

// fill caches a value read while the write counter was at seen.
// An Append that landed in between may have invalidated before the Set, so the key is dropped again.
func (s *CachedMetricStore) fill(ctx context.Context, key string, value interface{}, seen uint64) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.WithError(err).WithField("key", key).Debug("Failed to cache latest metrics")
		return
	}
	if s.writes.Load() != seen {
		s.invalidate(ctx, key)
	}
}

func (s *CachedMetricStore) invalidate(ctx context.Context, key string) {
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Failed to invalidate metric cache")
	}
}
