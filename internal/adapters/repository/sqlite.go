package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/okian/sumcheck/internal/domain/model"
	"github.com/okian/sumcheck/pkg/metrics"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const component = "repository"

// SQLiteStore is a Store backed by a single SQLite database file.
//
// All access goes through one connection so per-connection pragmas hold for
// every statement and a ":memory:" database is not split across the pool.
type SQLiteStore struct {
	db *sql.DB

	busyTimeout           time.Duration
	metricsUpdateInterval time.Duration

	stopChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSQLiteStore opens (creating if needed) the database at path and
// migrates its schema.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		busyTimeout:           5 * time.Second,
		metricsUpdateInterval: 10 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("repository: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	s.db = db

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout.Milliseconds()),
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("repository: pragma %q: %w", p, err)
		}
	}

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: migration: %w", err)
	}

	s.startMetricsUpdater(ctx)
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS counterparts (
			id         TEXT    PRIMARY KEY,
			user_id    TEXT    NOT NULL,
			nickname   TEXT    NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_cp_user ON counterparts(user_id, created_at);

		CREATE TABLE IF NOT EXISTS analyses (
			id             TEXT    PRIMARY KEY,
			submission_id  TEXT    NOT NULL DEFAULT '',
			user_id        TEXT    NOT NULL,
			counterpart_id TEXT    NOT NULL,
			score          INTEGER NOT NULL,
			stage          TEXT    NOT NULL,
			summary        TEXT    NOT NULL,
			questionnaire  TEXT    NOT NULL,
			created_at     INTEGER NOT NULL,
			FOREIGN KEY (counterpart_id) REFERENCES counterparts(id)
		);

		CREATE INDEX IF NOT EXISTS idx_an_user        ON analyses(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_an_counterpart ON analyses(counterpart_id, created_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// startMetricsUpdater refreshes the stored-records gauge until Close.
func (s *SQLiteStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				if n, err := s.Count(ctx); err == nil {
					metrics.UpdateRepositoryRecordsTotal(n)
				}
			}
		}
	}()
}

// Close stops the background updater and closes the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func observeWrite(start time.Time) {
	metrics.RecordRepositoryWriteLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func observeQuery(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

// SaveAnalysis implements Store.SaveAnalysis in one transaction.
func (s *SQLiteStore) SaveAnalysis(ctx context.Context, a model.Analysis) error {
	defer observeWrite(time.Now())

	q, err := json.Marshal(a.Questionnaire)
	if err != nil {
		return fmt.Errorf("repository: encode questionnaire: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	created := a.CreatedAt.UTC().UnixNano()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO counterparts (id, user_id, nickname, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		a.CounterpartID, a.UserID, a.CounterpartName, created,
	); err != nil {
		metrics.RecordErrorByComponent(component, "write")
		return fmt.Errorf("repository: upsert counterpart: %w", err)
	}

	var owner string
	if err := tx.QueryRowContext(ctx,
		`SELECT user_id FROM counterparts WHERE id = ?`, a.CounterpartID,
	).Scan(&owner); err != nil {
		return fmt.Errorf("repository: read counterpart: %w", err)
	}
	if owner != a.UserID {
		metrics.RecordErrorByComponent(component, "counterpart_owner")
		return fmt.Errorf("%w: %s", ErrCounterpartOwner, a.CounterpartID)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO analyses
		   (id, submission_id, user_id, counterpart_id, score, stage, summary, questionnaire, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		a.ID, a.SubmissionID, a.UserID, a.CounterpartID, a.Score, a.Stage, a.Summary, string(q), created,
	); err != nil {
		metrics.RecordErrorByComponent(component, "write")
		return fmt.Errorf("repository: insert analysis: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("repository: commit: %w", err)
	}
	return nil
}

const analysisColumns = `a.id, a.submission_id, a.user_id, a.counterpart_id, c.nickname,
	a.score, a.stage, a.summary, a.questionnaire, a.created_at`

const analysisFrom = ` FROM analyses a JOIN counterparts c ON c.id = a.counterpart_id `

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner) (model.Analysis, error) {
	var (
		a       model.Analysis
		q       string
		created int64
	)
	if err := row.Scan(&a.ID, &a.SubmissionID, &a.UserID, &a.CounterpartID, &a.CounterpartName,
		&a.Score, &a.Stage, &a.Summary, &q, &created); err != nil {
		return model.Analysis{}, err
	}
	if err := json.Unmarshal([]byte(q), &a.Questionnaire); err != nil {
		return model.Analysis{}, fmt.Errorf("repository: decode questionnaire %s: %w", a.ID, err)
	}
	a.CreatedAt = time.Unix(0, created).UTC()
	return a, nil
}

// Analysis implements Store.Analysis.
func (s *SQLiteStore) Analysis(ctx context.Context, id string) (model.Analysis, error) {
	defer observeQuery(time.Now())

	row := s.db.QueryRowContext(ctx, `SELECT `+analysisColumns+analysisFrom+`WHERE a.id = ?`, id)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordErrorByComponent(component, "not_found")
		return model.Analysis{}, ErrNotFound
	}
	if err != nil {
		return model.Analysis{}, fmt.Errorf("repository: get analysis: %w", err)
	}
	return a, nil
}

// DeleteAnalysis implements Store.DeleteAnalysis. The counterpart row is kept.
func (s *SQLiteStore) DeleteAnalysis(ctx context.Context, id string) error {
	defer observeWrite(time.Now())

	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("repository: delete analysis: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		metrics.RecordErrorByComponent(component, "not_found")
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) listAnalyses(ctx context.Context, query string, args ...any) ([]model.Analysis, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: list analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListByUser implements Store.ListByUser.
func (s *SQLiteStore) ListByUser(ctx context.Context, userID string, limit int) ([]model.Analysis, error) {
	defer observeQuery(time.Now())

	if limit < 1 {
		metrics.RecordErrorByComponent(component, "invalid_limit")
		return nil, ErrInvalidLimit
	}
	return s.listAnalyses(ctx,
		`SELECT `+analysisColumns+analysisFrom+`WHERE a.user_id = ? ORDER BY a.created_at DESC, a.id DESC LIMIT ?`,
		userID, limit)
}

// ListByCounterpart implements Store.ListByCounterpart.
func (s *SQLiteStore) ListByCounterpart(ctx context.Context, counterpartID string) ([]model.Analysis, error) {
	defer observeQuery(time.Now())

	return s.listAnalyses(ctx,
		`SELECT `+analysisColumns+analysisFrom+`WHERE a.counterpart_id = ? ORDER BY a.created_at ASC, a.id ASC`,
		counterpartID)
}

// Counterparts implements Store.Counterparts.
func (s *SQLiteStore) Counterparts(ctx context.Context, userID string) ([]model.Counterpart, error) {
	defer observeQuery(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.user_id, c.nickname, c.created_at,
		       (SELECT COUNT(*) FROM analyses a WHERE a.counterpart_id = c.id),
		       COALESCE((SELECT a.score FROM analyses a WHERE a.counterpart_id = c.id
		                 ORDER BY a.created_at DESC, a.id DESC LIMIT 1), 0)
		FROM counterparts c
		WHERE c.user_id = ?
		ORDER BY c.created_at ASC, c.id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: list counterparts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.Counterpart{}
	for rows.Next() {
		var (
			c       model.Counterpart
			created int64
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Nickname, &created, &c.Analyses, &c.LatestScore); err != nil {
			return nil, fmt.Errorf("repository: scan counterpart: %w", err)
		}
		c.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// UserStats implements Store.UserStats. Style is left for the caller.
func (s *SQLiteStore) UserStats(ctx context.Context, userID string) (model.UserStats, error) {
	defer observeQuery(time.Now())

	var (
		total int
		avg   sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), AVG(score) FROM analyses WHERE user_id = ?`, userID,
	).Scan(&total, &avg)
	if err != nil {
		return model.UserStats{}, fmt.Errorf("repository: user stats: %w", err)
	}

	stats := model.UserStats{UserID: userID, TotalAnalyses: total}
	if avg.Valid {
		stats.AverageScore = int(math.Round(avg.Float64))
	}
	return stats, nil
}

// Count implements Store.Count.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("repository: count: %w", err)
	}
	return n, nil
}

var _ Store = (*SQLiteStore)(nil)
