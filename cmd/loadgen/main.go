// Command loadgen submits generated questionnaires to a running sumcheck
// service and verifies the per-user statistics it reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/sumcheck/internal/loadgen"
	"github.com/okian/sumcheck/pkg/logger"
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		users     = flag.Int("users", 50, "Number of distinct users")
		perUser   = flag.Int("per-user", 20, "Submissions per user")
		workers   = flag.Int("workers", 10, "Number of concurrent submitters")
		timeout   = flag.Duration("timeout", 30*time.Second, "HTTP request timeout")
		settle    = flag.Duration("settle", 30*time.Second, "Maximum wait for persistence")
		dupEvery  = flag.Int("dup-every", 10, "Resend every Nth submission (0 disables)")
		seed      = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Generator seed")
		logFile   = flag.String("log-file", "", "Also write logs to this file")
		logFormat = flag.String("log-format", "text", "Log format: text or json")
		verbose   = flag.Bool("verbose", false, "Log progress while submitting")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var out io.Writer = os.Stdout
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		out = io.MultiWriter(os.Stdout, f)
	}
	if err := logger.Init(logger.WithFormat(*logFormat), logger.WithOutput(out)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	cfg := &loadgen.Config{
		BaseURL:        *baseURL,
		Users:          *users,
		PerUser:        *perUser,
		Workers:        *workers,
		Timeout:        *timeout,
		DuplicateEvery: *dupEvery,
		Seed:           *seed,
		SettleTimeout:  *settle,
		Verbose:        *verbose,
	}
	if _, err := loadgen.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}
