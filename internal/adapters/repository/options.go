package repository

import "time"

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithMetricsUpdateInterval sets the interval for background record-count updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *SQLiteStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithBusyTimeout sets how long a connection waits on a locked database.
func WithBusyTimeout(timeout time.Duration) Option {
	return func(s *SQLiteStore) {
		if timeout > 0 {
			s.busyTimeout = timeout
		}
	}
}
