package loadgen

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"time"

	"github.com/okian/sumcheck/internal/domain/model"
	"github.com/okian/sumcheck/pkg/logger"
)

const settlePoll = 100 * time.Millisecond

// expectedStats is what /users/{id}/stats must report for scores.
func expectedStats(userID string, scores []int) model.UserStats {
	st := model.UserStats{UserID: userID, TotalAnalyses: len(scores)}
	if len(scores) == 0 {
		return st
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	st.AverageScore = int(math.Round(float64(sum) / float64(len(scores))))
	return st
}

// verifyUsers waits until every user's stats settle and compares them with
// the locally expected count and average.
func verifyUsers(ctx context.Context, cfg *Config, client *HTTPClient, acc *accepted, stats *Stats) error {
	log := logger.Get().Named("loadgen")

	users := make([]string, 0, len(acc.scores))
	for u := range acc.scores {
		users = append(users, u)
	}
	sort.Strings(users)

	deadline := time.Now().Add(cfg.SettleTimeout)
	for _, u := range users {
		want := expectedStats(u, acc.scores[u])
		var got model.UserStats
		for {
			status, err := client.Get(ctx, "/users/"+url.PathEscape(u)+"/stats", &got)
			if err != nil {
				return fmt.Errorf("stats for %s: %w", u, err)
			}
			if status != 200 {
				return fmt.Errorf("stats for %s: status %d", u, status)
			}
			if got.TotalAnalyses >= want.TotalAnalyses || time.Now().After(deadline) {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(settlePoll):
			}
		}

		if got.TotalAnalyses != want.TotalAnalyses || got.AverageScore != want.AverageScore {
			stats.Mismatched++
			log.Warn(ctx, "user stats mismatch",
				logger.String("userID", u),
				logger.Int("wantTotal", want.TotalAnalyses), logger.Int("gotTotal", got.TotalAnalyses),
				logger.Int("wantAverage", want.AverageScore), logger.Int("gotAverage", got.AverageScore))
			continue
		}
		stats.Verified++
	}

	if stats.Mismatched > 0 {
		return fmt.Errorf("%d of %d users did not match", stats.Mismatched, len(users))
	}
	log.Info(ctx, "user stats verified", logger.Int("users", stats.Verified))
	return nil
}
