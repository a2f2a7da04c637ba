// Package repository persists scored analyses and the counterparts they are about.
package repository

import (
	"context"

	"github.com/okian/sumcheck/internal/domain/model"
)

// Store provides read/write access to analysis history.
type Store interface {
	// SaveAnalysis stores a scored analysis and upserts its counterpart.
	// Saving an id that already exists is a no-op.
	SaveAnalysis(ctx context.Context, a model.Analysis) error

	// Analysis returns one analysis or ErrNotFound.
	Analysis(ctx context.Context, id string) (model.Analysis, error)

	// DeleteAnalysis removes one analysis or returns ErrNotFound.
	DeleteAnalysis(ctx context.Context, id string) error

	// ListByUser returns up to limit analyses of a user, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Analysis, error)

	// ListByCounterpart returns every analysis about a counterpart, oldest first.
	ListByCounterpart(ctx context.Context, counterpartID string) ([]model.Analysis, error)

	// Counterparts returns a user's counterparts, oldest first, with their
	// analysis count and latest score.
	Counterparts(ctx context.Context, userID string) ([]model.Counterpart, error)

	// UserStats returns the analysis count and rounded average score of a user.
	UserStats(ctx context.Context, userID string) (model.UserStats, error)

	// Count returns the number of stored analyses.
	Count(ctx context.Context) (int, error)

	Close() error
}
