// Package service wires scoring, deduplication, the write-behind queue and
// the analysis store into the operations served by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/sumcheck/internal/adapters/mq/queue"
	"github.com/okian/sumcheck/internal/adapters/mq/worker"
	"github.com/okian/sumcheck/internal/adapters/repository"
	"github.com/okian/sumcheck/internal/domain/dedupe"
	"github.com/okian/sumcheck/internal/domain/insight"
	"github.com/okian/sumcheck/internal/domain/model"
	"github.com/okian/sumcheck/internal/domain/scoring"
	"github.com/okian/sumcheck/pkg/logger"
	"github.com/okian/sumcheck/pkg/metrics"
)

var (
	// ErrNotStarted is returned by operations that need Start first.
	ErrNotStarted = errors.New("service not started")
	// ErrDuplicate marks a submission id that was already accepted.
	ErrDuplicate = errors.New("duplicate submission")
	// ErrBackpressure means the write-behind queue is full.
	ErrBackpressure = errors.New("analysis queue is full")
)

const (
	defaultDrainTimeout   = 10 * time.Second
	systemMetricsInterval = 5 * time.Second
)

// Submission is one full questionnaire sent for scoring and storage.
type Submission struct {
	// SubmissionID makes retries idempotent. Optional.
	SubmissionID    string                  `json:"submission_id,omitempty"`
	UserID          string                  `json:"user_id"`
	CounterpartName string                  `json:"counterpart_name"`
	Questionnaire   model.FullQuestionnaire `json:"questionnaire"`
}

// Validate checks the identifying fields and the questionnaire.
func (s Submission) Validate() error { //nolint:gocritic // hugeParam: value receiver keeps Submission immutable
	var errs []error
	if strings.TrimSpace(s.UserID) == "" {
		errs = append(errs, fmt.Errorf("%w: user_id is required", model.ErrInvalidInput))
	}
	if strings.TrimSpace(s.CounterpartName) == "" {
		errs = append(errs, fmt.Errorf("%w: counterpart_name is required", model.ErrInvalidInput))
	}
	if err := s.Questionnaire.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Stats is a snapshot of the service for monitoring.
type Stats struct {
	Started       bool  `json:"started"`
	WorkerCount   int   `json:"worker_count"`
	QueueSize     int   `json:"queue_size"`
	QueueLength   int   `json:"queue_length"`
	DedupeSize    int   `json:"dedupe_size"`
	DedupeEntries int64 `json:"dedupe_entries"`
	Persisted     int64 `json:"persisted"`
	PersistFailed int64 `json:"persist_failed"`
	Analyses      int   `json:"analyses"`
}

// Service implements the API dependencies for the scoring system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	trial   *scoring.TrialScorer

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	drain       time.Duration

	// State
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	now     func() time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of persistence workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the write-behind queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many submission ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDrainTimeout bounds how long Stop waits for queued analyses to be saved.
// Workers still busy after that are abandoned.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.drain = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the analysis store. The service closes it on Stop.
// Without it Start opens an in-memory SQLite store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithTrialScorer sets a calibrated trial scorer.
func WithTrialScorer(ts *scoring.TrialScorer) Option {
	return func(s *Service) {
		if ts != nil {
			s.trial = ts
		}
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   10_000,
		dedupeSize:  dedupe.DefaultMaxSize,
		drain:       defaultDrainTimeout,
		trial:       scoring.NewTrialScorer(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting scoring service...")

	if s.store == nil {
		store, err := repository.NewSQLiteStore(ctx, repository.MemoryPath)
		if err != nil {
			return fmt.Errorf("open in-memory store: %w", err)
		}
		s.store = store
		s.logger.Info(ctx, "using in-memory sqlite store")
	}

	deduper, err := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	if err != nil {
		return fmt.Errorf("create deduper: %w", err)
	}
	s.deduper = deduper
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))

	// Workers outlive the caller's context so Stop can drain the queue.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.pool = worker.NewPool(s.workerCount, s.queue, s.store)
	s.pool.Start(runCtx)
	s.startSystemMetrics(runCtx)

	s.started = true
	s.logger.Info(ctx, "scoring service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains pending analyses into the store and shuts everything down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping scoring service...")

	drainCtx, cancel := context.WithTimeout(ctx, s.drain)
	if err := s.pool.Shutdown(drainCtx); err != nil {
		s.logger.Warn(ctx, "queue not fully drained", logger.Error(err), logger.Int("pending", s.queue.Len(ctx)))
		s.cancel()
		s.pool.Stop()
	}
	cancel()

	s.cancel()
	s.wg.Wait()

	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "error closing store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "scoring service stopped")
}

// startSystemMetrics samples runtime statistics until ctx is canceled.
func (s *Service) startSystemMetrics(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(systemMetricsInterval)
		defer ticker.Stop()

		sample := func() {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			metrics.UpdateSystemMemoryUsage(m.Alloc)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
			if m.NumGC > 0 {
				metrics.RecordSystemGCPauseTime(float64(m.PauseNs[(m.NumGC+255)%256]) / 1e6)
			}
		}
		sample()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sample()
			}
		}
	}()
}

// running returns the store or ErrNotStarted.
func (s *Service) running() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// ScoreTrial validates and scores the three-question trial. Nothing is stored.
func (s *Service) ScoreTrial(ctx context.Context, q model.TrialQuestionnaire) (scoring.TrialResult, error) {
	if err := q.Validate(); err != nil {
		metrics.RecordInvalidInput(metrics.VariantTrial)
		return scoring.TrialResult{}, err
	}

	start := time.Now()
	res := s.trial.Score(q.MeetingCount, q.Duration, q.ReplyInterval)
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordAnalysisScored(metrics.VariantTrial, string(res.Stage), res.Score)

	if s.logger != nil {
		s.logger.Debug(ctx, "trial scored",
			logger.Int("score", res.Score), logger.String("stage", string(res.Stage)))
	}
	return res, nil
}

// CounterpartID is the stable id of a user's counterpart nickname.
// Each user id derives its own namespace, so ids never cross users.
func CounterpartID(userID, nickname string) string {
	userNS := uuid.NewSHA1(uuid.NameSpaceOID, []byte(userID))
	return uuid.NewSHA1(userNS, []byte(nickname)).String()
}

// SubmitAnalysis scores a full questionnaire and queues it for storage.
// The returned record is final; it becomes readable once a worker saves it.
func (s *Service) SubmitAnalysis(ctx context.Context, sub Submission) (model.Analysis, error) { //nolint:gocritic // hugeParam: request value
	if _, err := s.running(); err != nil {
		return model.Analysis{}, err
	}
	if err := sub.Validate(); err != nil {
		metrics.RecordInvalidInput(metrics.VariantFull)
		return model.Analysis{}, err
	}

	if sub.SubmissionID != "" && s.deduper.SeenAndRecord(ctx, sub.SubmissionID) {
		metrics.RecordSubmissionDuplicate()
		s.logger.Debug(ctx, "duplicate submission, skipping", logger.String("submissionID", sub.SubmissionID))
		return model.Analysis{}, ErrDuplicate
	}

	q := sub.Questionnaire.Normalized()
	name := strings.TrimSpace(sub.CounterpartName)

	start := time.Now()
	res := scoring.ScoreFull(q)
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)

	a := model.Analysis{
		ID:              uuid.NewString(),
		SubmissionID:    sub.SubmissionID,
		UserID:          sub.UserID,
		CounterpartID:   CounterpartID(sub.UserID, name),
		CounterpartName: name,
		Score:           res.Score,
		Stage:           string(res.Stage),
		Summary:         insight.Summary(name, string(res.Stage), res.Score),
		Questionnaire:   q,
		CreatedAt:       s.now().UTC(),
	}

	if err := s.queue.Enqueue(ctx, a); err != nil {
		if sub.SubmissionID != "" {
			s.deduper.Unrecord(ctx, sub.SubmissionID)
		}
		if errors.Is(err, queue.ErrFull) {
			s.logger.Warn(ctx, "analysis queue full", logger.String("userID", a.UserID))
			return model.Analysis{}, ErrBackpressure
		}
		return model.Analysis{}, fmt.Errorf("enqueue analysis: %w", err)
	}

	metrics.RecordAnalysisScored(metrics.VariantFull, a.Stage, a.Score)
	s.logger.Debug(ctx, "analysis queued",
		logger.String("analysisID", a.ID),
		logger.String("userID", a.UserID),
		logger.Int("score", a.Score),
	)
	return a, nil
}

// Analysis returns one stored analysis.
func (s *Service) Analysis(ctx context.Context, id string) (model.Analysis, error) {
	store, err := s.running()
	if err != nil {
		return model.Analysis{}, err
	}
	return store.Analysis(ctx, id)
}

// DeleteAnalysis removes one stored analysis.
func (s *Service) DeleteAnalysis(ctx context.Context, id string) error {
	store, err := s.running()
	if err != nil {
		return err
	}
	if err := store.DeleteAnalysis(ctx, id); err != nil {
		return err
	}
	metrics.RecordAnalysisDeleted()
	return nil
}

// History returns up to limit analyses of a user, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]model.Analysis, error) {
	store, err := s.running()
	if err != nil {
		return nil, err
	}
	return store.ListByUser(ctx, userID, limit)
}

// UserStats returns a user's analysis count, average score and style.
func (s *Service) UserStats(ctx context.Context, userID string) (model.UserStats, error) {
	store, err := s.running()
	if err != nil {
		return model.UserStats{}, err
	}
	st, err := store.UserStats(ctx, userID)
	if err != nil {
		return model.UserStats{}, err
	}
	st.Style = insight.RelationshipStyle(st.AverageScore, st.TotalAnalyses)
	return st, nil
}

// Counterparts lists a user's counterparts with their latest score.
func (s *Service) Counterparts(ctx context.Context, userID string) ([]model.Counterpart, error) {
	store, err := s.running()
	if err != nil {
		return nil, err
	}
	return store.Counterparts(ctx, userID)
}

// Trend compares the two most recent analyses about a counterpart.
// An unknown counterpart returns repository.ErrNotFound.
func (s *Service) Trend(ctx context.Context, counterpartID string) (insight.Trend, error) {
	store, err := s.running()
	if err != nil {
		return insight.Trend{}, err
	}
	history, err := store.ListByCounterpart(ctx, counterpartID)
	if err != nil {
		return insight.Trend{}, err
	}
	if len(history) == 0 {
		return insight.Trend{}, repository.ErrNotFound
	}
	scores := make([]int, len(history))
	for i := range history {
		scores[i] = history[i].Score
	}
	return insight.CompareTrend(scores), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Started:     s.started,
		WorkerCount: s.workerCount,
		QueueSize:   s.queueSize,
		DedupeSize:  s.dedupeSize,
	}
	if !s.started {
		return st
	}

	st.WorkerCount = s.pool.Size()
	st.QueueSize = s.queue.Capacity()
	st.QueueLength = s.queue.Len(ctx)
	st.DedupeEntries = s.deduper.Size()
	st.Persisted = s.pool.Processed()
	st.PersistFailed = s.pool.Failed()
	if n, err := s.store.Count(ctx); err == nil {
		st.Analyses = n
		metrics.UpdateRepositoryRecordsTotal(n)
	} else {
		s.logger.Warn(ctx, "count analyses failed", logger.Error(err))
	}
	return st
}
