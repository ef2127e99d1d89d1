package monitor

import (
	"fmt"
	"time"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/config"
)

// Defaults for a monitor built without explicit settings
const (
	DefaultCheckInterval   = 60 * time.Minute
	DefaultAlertThreshold  = 70.0
	DefaultShutdownTimeout = 30 * time.Second
	DefaultScanTimeout     = 5 * time.Minute
	DefaultScanWorkers     = 2

	// MinCheckInterval keeps the cron timer from firing faster than a scan can reasonably finish
	MinCheckInterval = time.Minute
)

// Config holds the tunable monitor settings
type Config struct {
	CheckInterval   time.Duration
	AlertThreshold  float64
	ShutdownTimeout time.Duration
	ScanTimeout     time.Duration
	ScanWorkers     int
}

// DefaultConfig returns the out-of-the-box settings
func DefaultConfig() Config {
	return Config{
		CheckInterval:   DefaultCheckInterval,
		AlertThreshold:  DefaultAlertThreshold,
		ShutdownTimeout: DefaultShutdownTimeout,
		ScanTimeout:     DefaultScanTimeout,
		ScanWorkers:     DefaultScanWorkers,
	}
}

// ConfigFrom maps the process configuration onto monitor settings
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		CheckInterval:   cfg.Monitor.CheckInterval,
		AlertThreshold:  cfg.Monitor.AlertThreshold,
		ShutdownTimeout: cfg.Monitor.ShutdownTimeout,
		ScanTimeout:     cfg.Monitor.ScanTimeout,
		ScanWorkers:     cfg.Monitor.ScanWorkers,
	}
}

// withDefaults fills zero values.
// A zero AlertThreshold takes the default; SetAlertThreshold(0) silences alerts at runtime.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CheckInterval == 0 {
		c.CheckInterval = d.CheckInterval
	}
	if c.AlertThreshold == 0 {
		c.AlertThreshold = d.AlertThreshold
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = d.ScanTimeout
	}
	if c.ScanWorkers <= 0 {
		c.ScanWorkers = d.ScanWorkers
	}
	return c
}

func (c Config) validate() error {
	if err := validateInterval(c.CheckInterval); err != nil {
		return err
	}
	return validateThreshold(c.AlertThreshold)
}

func validateInterval(d time.Duration) error {
	if d < MinCheckInterval {
		return fmt.Errorf("check interval %s is below the %s minimum", d, MinCheckInterval)
	}
	return nil
}

func validateThreshold(v float64) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("alert threshold %.1f is outside [0, 100]", v)
	}
	return nil
}
