package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

const (
	defaultListenAddr     = ":8080"
	defaultDBPath         = "algolens.db"
	defaultRedisAddr      = "127.0.0.1:6379"
	defaultCorrelationTTL = 30 * time.Minute
	defaultExecTimeout    = 30 * time.Second
	defaultStepDelay      = 10 * time.Millisecond

	envListenAddr     = "ALGOLENS_LISTEN_ADDR"
	envDBPath         = "ALGOLENS_DB_PATH"
	envRedisAddr      = "ALGOLENS_REDIS_ADDR"
	envLogLevel       = "ALGOLENS_LOG_LEVEL"
	envCorrelationTTL = "ALGOLENS_CORRELATION_TTL"
	envExecTimeout    = "ALGOLENS_EXEC_TIMEOUT"
	envStepDelay      = "ALGOLENS_STEP_DELAY"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	RedisAddr  string
	LogLevel   slog.Level

	// CorrelationTTL bounds how long a public execution id stays resolvable.
	// It is independent of job lifetime: a long run can outlive its id.
	CorrelationTTL time.Duration
	// ExecTimeout is the execution budget applied to jobs that do not carry
	// their own.
	ExecTimeout time.Duration
	// StepDelay paces step publication so animated consumers can keep up.
	// Zero disables pacing.
	StepDelay time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:     defaultListenAddr,
		DBPath:         defaultDBPath,
		RedisAddr:      defaultRedisAddr,
		LogLevel:       slog.LevelInfo,
		CorrelationTTL: defaultCorrelationTTL,
		ExecTimeout:    defaultExecTimeout,
		StepDelay:      defaultStepDelay,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envRedisAddr); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envCorrelationTTL); v != "" {
		cfg.CorrelationTTL = parseDuration(v, defaultCorrelationTTL)
	}
	if v := os.Getenv(envExecTimeout); v != "" {
		cfg.ExecTimeout = parseDuration(v, defaultExecTimeout)
	}
	if v := os.Getenv(envStepDelay); v != "" {
		cfg.StepDelay = parseDuration(v, defaultStepDelay)
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseDuration parses a Go duration string, falling back to def on any
// malformed or negative value.
func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
