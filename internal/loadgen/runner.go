package loadgen

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/sumcheck/pkg/logger"
)

const (
	defaultSettleTimeout = 30 * time.Second
	percentMultiplier    = 100
)

// Run executes a complete load run: health check, generation, submission
// and verification. The returned stats are filled even when err is not nil.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	if err := cfg.validate(); err != nil {
		return stats, err
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = defaultSettleTimeout
	}

	log := logger.Get().Named("loadgen")
	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("perUser", cfg.PerUser),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
		logger.Bool("verbose", cfg.Verbose))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	jobs := generateJobs(cfg)
	stats.Generated = len(jobs)

	acc := submitJobs(ctx, cfg, client, jobs, stats)

	err := verifyUsers(ctx, cfg, client, acc, stats)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logFinalStats(ctx, stats)

	if err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	status, err := client.Get(ctx, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != 200 {
		return fmt.Errorf("unexpected status %d", status)
	}
	return nil
}

func logFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, perSecond float64
	if stats.Submitted > 0 {
		acceptRate = float64(stats.Accepted) / float64(stats.Submitted) * percentMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Named("loadgen").Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("backpressure", stats.Backpressed),
		logger.Int("failed", stats.Failed),
		logger.Int("usersVerified", stats.Verified),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("submissionsPerSecond", perSecond))
}
