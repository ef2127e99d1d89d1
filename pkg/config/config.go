package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Quality monitor
	Monitor MonitorConfig

	// Alert delivery
	Alert AlertConfig

	// API
	API APIConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	CacheTTL time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// MonitorConfig holds the quality monitor settings
type MonitorConfig struct {
	CheckInterval   time.Duration // 정기 점검 주기
	AlertThreshold  float64       // 이 점수 미만이면 알림
	ShutdownTimeout time.Duration // stop 시 진행 중인 스캔 대기 한도
	ScanTimeout     time.Duration // 스캔 1회 제한 시간
	ScanWorkers     int           // 동시에 스캔하는 테이블 수
	RulesFile       string        // 비어있으면 기본 규칙
	AutoStart       bool
}

// AlertConfig holds alert sink settings
type AlertConfig struct {
	WebhookURL     string
	WebhookTimeout time.Duration
	Cooldown       time.Duration // 같은 (table, metric) 알림 최소 간격
}

// APIConfig holds HTTP API settings
type APIConfig struct {
	RunCheckPerMinute int // run-check 허용 횟수 (분당)
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8000"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "energy_pipeline"),
			User:            getEnv("DB_USER", "energy"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			CacheTTL: getEnvAsDuration("REDIS_CACHE_TTL", "10m"),
		},

		// Quality monitor
		Monitor: MonitorConfig{
			CheckInterval:   getEnvAsDuration("MONITOR_CHECK_INTERVAL", "60m"),
			AlertThreshold:  getEnvAsFloat("MONITOR_ALERT_THRESHOLD", 70.0),
			ShutdownTimeout: getEnvAsDuration("MONITOR_SHUTDOWN_TIMEOUT", "30s"),
			ScanTimeout:     getEnvAsDuration("MONITOR_SCAN_TIMEOUT", "5m"),
			ScanWorkers:     getEnvAsInt("SCAN_WORKERS", 2),
			RulesFile:       getEnv("RULES_FILE", ""),
			AutoStart:       getEnvAsBool("MONITOR_AUTO_START", true),
		},

		// Alert delivery
		Alert: AlertConfig{
			WebhookURL:     getEnv("ALERT_WEBHOOK_URL", ""),
			WebhookTimeout: getEnvAsDuration("ALERT_WEBHOOK_TIMEOUT", "10s"),
			Cooldown:       getEnvAsDuration("ALERT_COOLDOWN", "15m"),
		},

		// API
		API: APIConfig{
			RunCheckPerMinute: getEnvAsInt("API_RUN_CHECK_PER_MINUTE", 6),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Monitor.CheckInterval < time.Minute {
		return fmt.Errorf("MONITOR_CHECK_INTERVAL must be at least 1m")
	}

	if c.Monitor.AlertThreshold < 0 || c.Monitor.AlertThreshold > 100 {
		return fmt.Errorf("MONITOR_ALERT_THRESHOLD must be within [0, 100]")
	}

	if c.Monitor.ScanWorkers < 1 {
		return fmt.Errorf("SCAN_WORKERS must be positive")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
