package loadgen

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/sumcheck/internal/domain/model"
	"github.com/okian/sumcheck/pkg/logger"
)

// Submission outcomes.
const (
	outcomeAccepted    = "accepted"
	outcomeDuplicate   = "duplicate"
	outcomeBackpressed = "backpressure"
	outcomeFailed      = "failed"
)

const (
	workerChannelMultiplier = 2
	backpressureRetries     = 5
	backpressureBackoff     = 50 * time.Millisecond
	progressInterval        = time.Second
)

// accepted records, per user, the expected scores of stored submissions.
type accepted struct {
	mu     sync.Mutex
	scores map[string][]int
}

func (a *accepted) add(userID string, score int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scores[userID] = append(a.scores[userID], score)
}

// submitJobs posts every job with a worker pool.
func submitJobs(ctx context.Context, cfg *Config, client *HTTPClient, jobs []job, stats *Stats) *accepted {
	log := logger.Get().Named("loadgen")
	log.Info(ctx, "submitting analyses", logger.Int("count", len(jobs)), logger.Int("workers", cfg.Workers))

	acc := &accepted{scores: make(map[string][]int)}
	var submitted, ok, dup, bp, failed atomic.Int64
	var lastReport atomic.Int64

	jobCh := make(chan job, cfg.Workers*workerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				sends := 1
				if j.resend {
					sends = 2
				}
				for s := 0; s < sends; s++ {
					outcome := submitOne(ctx, client, &j)
					submitted.Add(1)
					switch outcome {
					case outcomeAccepted:
						ok.Add(1)
						acc.add(j.sub.UserID, j.expected)
					case outcomeDuplicate:
						dup.Add(1)
					case outcomeBackpressed:
						bp.Add(1)
					default:
						failed.Add(1)
					}
				}

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if cfg.Verbose && now-last >= int64(progressInterval) && lastReport.CompareAndSwap(last, now) {
					log.Info(ctx, "progress",
						logger.Int("submitted", int(submitted.Load())),
						logger.Int("accepted", int(ok.Load())),
						logger.Int("duplicate", int(dup.Load())))
				}
			}
		}()
	}

	go func() {
		defer close(jobCh)
		for _, j := range jobs {
			select {
			case <-ctx.Done():
				return
			case jobCh <- j:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = int(submitted.Load())
	stats.Accepted = int(ok.Load())
	stats.Duplicate = int(dup.Load())
	stats.Backpressed = int(bp.Load())
	stats.Failed = int(failed.Load())

	log.Info(ctx, "submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("backpressure", stats.Backpressed),
		logger.Int("failed", stats.Failed))
	return acc
}

// submitOne posts a job, retrying while the service reports backpressure.
func submitOne(ctx context.Context, client *HTTPClient, j *job) string {
	delay := backpressureBackoff
	for attempt := 0; ; attempt++ {
		var a model.Analysis
		status, err := client.Post(ctx, "/analyses", j.sub, &a)
		switch {
		case err != nil:
			return outcomeFailed
		case status == 202:
			if a.Score != j.expected {
				logger.Get().Warn(ctx, "server score differs from local score",
					logger.String("submissionID", j.sub.SubmissionID),
					logger.Int("server", a.Score), logger.Int("local", j.expected))
			}
			return outcomeAccepted
		case status == 200:
			return outcomeDuplicate
		case status == 429 && attempt < backpressureRetries:
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return outcomeFailed
			}
			delay *= 2
		case status == 429:
			return outcomeBackpressed
		default:
			return outcomeFailed
		}
	}
}
