package commands

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/alert"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/energy"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/monitor"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/quality"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/config"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/database"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/httputil"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/logger"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/redis"
)

// engine holds the wiring every command shares
type engine struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	redis *redis.Client

	source  contracts.RecordSource
	metrics contracts.MetricStore
	issues  contracts.IssueStore
	rules   []quality.TableRules
}

// newEngine loads config and connects the stores.
// Redis is optional: a failed connection falls back to uncached reads.
func newEngine() (*engine, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if rulesFile != "" {
		cfg.Monitor.RulesFile = rulesFile
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Rules
	rules := quality.DefaultRules()
	if cfg.Monitor.RulesFile != "" {
		if rules, err = quality.LoadRules(cfg.Monitor.RulesFile); err != nil {
			return nil, err
		}
		log.WithField("rules_file", cfg.Monitor.RulesFile).Info("Loaded quality rules")
	}

	// 4. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 5. Redis
	rdb, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		rdb = redis.Disabled()
	}

	var metrics contracts.MetricStore = quality.NewMetricRepository(db.Pool)
	if rdb.Enabled() {
		metrics = quality.NewCachedMetricStore(metrics, redis.NewCache(rdb, "quality"), cfg.Redis.CacheTTL, log)
	}

	return &engine{
		cfg:     cfg,
		log:     log,
		db:      db,
		redis:   rdb,
		source:  energy.NewRepository(db.Pool),
		metrics: metrics,
		issues:  quality.NewIssueRepository(db.Pool),
		rules:   rules,
	}, nil
}

// Close releases the connections
func (e *engine) Close() {
	if err := e.redis.Close(); err != nil {
		e.log.WithError(err).Warn("Failed to close redis")
	}
	e.db.Close()
}

// sink fans breaches out to the log, the webhook when configured, and extra
func (e *engine) sink(extra ...contracts.AlertSink) contracts.AlertSink {
	sinks := []contracts.AlertSink{alert.NewLogSink(e.log)}

	if url := e.cfg.Alert.WebhookURL; url != "" {
		client := httputil.NewWithTimeout(e.cfg, e.log, e.cfg.Alert.WebhookTimeout)
		limiter := redis.NewRateLimiter(e.redis, "quality")
		sinks = append(sinks, alert.NewWebhookSink(url, client, limiter, e.cfg.Alert.Cooldown, e.log))
	}

	return alert.NewMultiSink(append(sinks, extra...)...)
}

// newMonitor builds a monitor over the engine stores
func (e *engine) newMonitor(reg prometheus.Registerer, sink contracts.AlertSink) (*monitor.Monitor, error) {
	return monitor.New(monitor.ConfigFrom(e.cfg), monitor.Deps{
		Source:     e.source,
		Rules:      e.rules,
		Metrics:    e.metrics,
		Issues:     e.issues,
		Sink:       sink,
		Registerer: reg,
		Logger:     e.log,
	})
}
