// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and SUMCHECK_ env vars over those defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/okian/sumcheck/internal/domain/scoring"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file. ":memory:" keeps history in memory.
	DBPath string `koanf:"db_path"`

	// QueueSize bounds the write-behind queue of scored analyses.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of persistence workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many submission ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxHistoryLimit caps GET /users/{id}/analyses?limit.
	MaxHistoryLimit int `koanf:"max_history_limit"`

	// Trial scorer calibration.
	BaselineReplyHours    float64 `koanf:"baseline_reply_hours"`
	AssumedInitiative     float64 `koanf:"assumed_initiative"`
	AssumedProgressSignal float64 `koanf:"assumed_progress_signal"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		DBPath:                "sumcheck.db",
		QueueSize:             10_000,
		WorkerCount:           runtime.NumCPU(),
		DedupeSize:            50_000,
		MaxHistoryLimit:       100,
		BaselineReplyHours:    scoring.DefaultBaselineReplyHours,
		AssumedInitiative:     scoring.DefaultInitiative,
		AssumedProgressSignal: scoring.DefaultProgressSignal,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.DBPath) == "":
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.MaxHistoryLimit <= 0:
		return fmt.Errorf("%w: max_history_limit must be positive, got %d", ErrInvalidConfig, c.MaxHistoryLimit)
	case c.BaselineReplyHours < 0:
		return fmt.Errorf("%w: baseline_reply_hours must not be negative", ErrInvalidConfig)
	case !unitInterval(c.AssumedInitiative):
		return fmt.Errorf("%w: assumed_initiative must be within [0,1]", ErrInvalidConfig)
	case !unitInterval(c.AssumedProgressSignal):
		return fmt.Errorf("%w: assumed_progress_signal must be within [0,1]", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// TrialOptions turns the calibration settings into scorer options.
func (c *Config) TrialOptions() []scoring.Option {
	return []scoring.Option{
		scoring.WithBaselineReplyHours(c.BaselineReplyHours),
		scoring.WithInitiative(c.AssumedInitiative),
		scoring.WithProgressSignal(c.AssumedProgressSignal),
	}
}

func unitInterval(v float64) bool { return v >= 0 && v <= 1 }
