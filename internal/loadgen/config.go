// Package loadgen drives a running sumcheck service with generated
// questionnaires and checks that what it stored matches local scoring.
package loadgen

import (
	"errors"
	"time"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL string        // Base URL of the service
	Users   int           // Number of distinct users
	PerUser int           // Submissions per user
	Workers int           // Concurrent submitters
	Timeout time.Duration // HTTP request timeout
	// Every Nth submission is sent twice with the same submission_id.
	// Zero disables resubmission.
	DuplicateEvery int
	// Seed makes the generated questionnaires reproducible.
	Seed uint64
	// SettleTimeout bounds the wait for write-behind persistence.
	SettleTimeout time.Duration
	Verbose       bool
}

// ErrInvalidConfig is returned for unusable run settings.
var ErrInvalidConfig = errors.New("invalid load config")

func (c *Config) validate() error {
	switch {
	case c.BaseURL == "":
		return errors.Join(ErrInvalidConfig, errors.New("base url is required"))
	case c.Users < 1 || c.PerUser < 1:
		return errors.Join(ErrInvalidConfig, errors.New("users and per-user must be positive"))
	case c.Workers < 1:
		return errors.Join(ErrInvalidConfig, errors.New("workers must be positive"))
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	Generated   int
	Submitted   int
	Accepted    int
	Duplicate   int
	Backpressed int
	Failed      int
	Verified    int
	Mismatched  int
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}
