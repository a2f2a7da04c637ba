package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/sumcheck/internal/adapters/http/api"
	"github.com/okian/sumcheck/internal/adapters/repository"
	service "github.com/okian/sumcheck/internal/app"
	"github.com/okian/sumcheck/internal/domain/insight"
	"github.com/okian/sumcheck/internal/domain/model"
	"github.com/okian/sumcheck/internal/domain/scoring"
	"github.com/okian/sumcheck/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// mockDependencies stores analyses in a map and returns canned errors.
type mockDependencies struct {
	mu        sync.Mutex
	analyses  map[string]model.Analysis
	seen      map[string]bool
	submitErr error
	lastLimit int
}

func newMockDependencies() *mockDependencies {
	return &mockDependencies{
		analyses: make(map[string]model.Analysis),
		seen:     make(map[string]bool),
	}
}

func (m *mockDependencies) ScoreTrial(_ context.Context, q model.TrialQuestionnaire) (scoring.TrialResult, error) {
	if err := q.Validate(); err != nil {
		return scoring.TrialResult{}, err
	}
	return scoring.ScoreTrial(q.MeetingCount, q.Duration, q.ReplyInterval), nil
}

func (m *mockDependencies) SubmitAnalysis(_ context.Context, sub service.Submission) (model.Analysis, error) { //nolint:gocritic // hugeParam: matches interface
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return model.Analysis{}, m.submitErr
	}
	if err := sub.Validate(); err != nil {
		return model.Analysis{}, err
	}
	if sub.SubmissionID != "" {
		if m.seen[sub.SubmissionID] {
			return model.Analysis{}, service.ErrDuplicate
		}
		m.seen[sub.SubmissionID] = true
	}
	res := scoring.ScoreFull(sub.Questionnaire)
	a := model.Analysis{
		ID:              fmt.Sprintf("a-%d", len(m.analyses)+1),
		UserID:          sub.UserID,
		CounterpartName: sub.CounterpartName,
		Score:           res.Score,
		Stage:           string(res.Stage),
	}
	m.analyses[a.ID] = a
	return a, nil
}

func (m *mockDependencies) Analysis(_ context.Context, id string) (model.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.analyses[id]
	if !ok {
		return model.Analysis{}, repository.ErrNotFound
	}
	return a, nil
}

func (m *mockDependencies) DeleteAnalysis(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.analyses[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.analyses, id)
	return nil
}

func (m *mockDependencies) History(_ context.Context, userID string, limit int) ([]model.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	var out []model.Analysis
	for _, a := range m.analyses {
		if a.UserID == userID && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockDependencies) UserStats(_ context.Context, userID string) (model.UserStats, error) {
	return model.UserStats{UserID: userID, TotalAnalyses: 2, AverageScore: 85, Style: insight.StyleRomantic}, nil
}

func (m *mockDependencies) Counterparts(_ context.Context, _ string) ([]model.Counterpart, error) {
	return nil, nil
}

func (m *mockDependencies) Trend(_ context.Context, counterpartID string) (insight.Trend, error) {
	if counterpartID != "cp-1" {
		return insight.Trend{}, repository.ErrNotFound
	}
	return insight.CompareTrend([]int{40, 70}), nil
}

type mockStatsProvider struct{}

func (mockStatsProvider) GetStats(_ context.Context) service.Stats {
	return service.Stats{Started: true, WorkerCount: 2, QueueSize: 10}
}

const validSubmission = `{
  "submission_id": "sub-1",
  "user_id": "user-1",
  "counterpart_name": "Jamie",
  "questionnaire": {
    "partner_status": "single",
    "physical_distance": "same_neighborhood",
    "contact_frequency": "instant",
    "initiative_ratio": "counterpart_mostly",
    "active_time": "night_dawn",
    "meeting_count": 10,
    "meeting_initiative": "mostly_counterpart",
    "meeting_type": "always_one_on_one",
    "date_courses": ["dinner_and_drinks"],
    "behavioral_signals": ["shares_daily_life", "suggests_future_plans", "remembers_details",
      "asks_back", "curious_about_company", "apologizes_for_late_reply"]
  }
}`

func newMux(deps api.Dependencies, maxLimit int) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, mockStatsProvider{}, maxLimit).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
	return body
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(newMockDependencies(), 100)

		Convey("Then health serves prometheus metrics", func() {
			w := do(mux, "GET", "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/plain")
		})

		Convey("Then stats serve the service snapshot", func() {
			w := do(mux, "GET", "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var st service.Stats
			So(json.Unmarshal(w.Body.Bytes(), &st), ShouldBeNil)
			So(st.Started, ShouldBeTrue)
			So(st.WorkerCount, ShouldEqual, 2)
		})

		Convey("Then unknown paths are not found", func() {
			So(do(mux, "GET", "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then wrong methods are rejected", func() {
			So(do(mux, "GET", "/trial", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(do(mux, "PUT", "/analyses/a-1", "{}").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestTrialHandler(t *testing.T) {
	Convey("Given the trial endpoint", t, func() {
		mux := newMux(newMockDependencies(), 100)

		Convey("When posting a valid trial", func() {
			w := do(mux, "POST", "/trial", `{"meeting_count":0,"duration":"3_months_plus","reply_interval":"over_1_day"}`)

			Convey("Then it returns the trial result", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var res scoring.TrialResult
				So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)
				So(res.Score, ShouldEqual, 26)
				So(res.Stage, ShouldEqual, scoring.StageLow)
				So(res.Locked.ConfessionProbability, ShouldEqual, scoring.PlaceholderLocked)
			})
		})

		Convey("When posting an unknown bucket", func() {
			w := do(mux, "POST", "/trial", `{"meeting_count":1,"duration":"forever","reply_interval":"over_1_day"}`)

			Convey("Then it answers invalid_input", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, "invalid_input")
			})
		})

		Convey("When posting malformed JSON", func() {
			w := do(mux, "POST", "/trial", `{"meeting_count":`)

			Convey("Then it answers bad_request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, "bad_request")
			})
		})
	})
}

func TestAnalysisHandler(t *testing.T) {
	Convey("Given the analyses endpoints", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps, 100)

		Convey("When submitting a valid questionnaire", func() {
			w := do(mux, "POST", "/analyses", validSubmission)

			Convey("Then it is accepted with the scored record", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				var a model.Analysis
				So(json.Unmarshal(w.Body.Bytes(), &a), ShouldBeNil)
				So(a.Score, ShouldEqual, 100)
				So(a.Stage, ShouldEqual, string(scoring.StagePreRelationship))

				Convey("And it can be read and deleted", func() {
					So(do(mux, "GET", "/analyses/"+a.ID, "").Code, ShouldEqual, http.StatusOK)
					So(do(mux, "DELETE", "/analyses/"+a.ID, "").Code, ShouldEqual, http.StatusNoContent)
					So(do(mux, "GET", "/analyses/"+a.ID, "").Code, ShouldEqual, http.StatusNotFound)
					So(do(mux, "DELETE", "/analyses/"+a.ID, "").Code, ShouldEqual, http.StatusNotFound)
				})
			})

			Convey("Then the same submission id is a duplicate", func() {
				w2 := do(mux, "POST", "/analyses", validSubmission)
				So(w2.Code, ShouldEqual, http.StatusOK)
				So(w2.Body.String(), ShouldContainSubstring, `"duplicate":true`)
			})
		})

		Convey("When the queue is full", func() {
			deps.submitErr = fmt.Errorf("submit: %w", service.ErrBackpressure)
			w := do(mux, "POST", "/analyses", validSubmission)

			Convey("Then it answers 429 backpressure", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decodeError(w)["code"], ShouldEqual, "backpressure")
			})
		})

		Convey("When the service is not started", func() {
			deps.submitErr = service.ErrNotStarted
			w := do(mux, "POST", "/analyses", validSubmission)

			Convey("Then it answers 503", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When the questionnaire is invalid", func() {
			w := do(mux, "POST", "/analyses", `{"user_id":"user-1","counterpart_name":"Jamie","questionnaire":{"partner_status":"married"}}`)

			Convey("Then it answers invalid_input", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				body := decodeError(w)
				So(body["code"], ShouldEqual, "invalid_input")
				So(body["message"], ShouldContainSubstring, "partner_status")
			})
		})

		Convey("When the store fails", func() {
			deps.submitErr = errors.New("disk on fire")
			w := do(mux, "POST", "/analyses", validSubmission)

			Convey("Then it answers 500", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(decodeError(w)["code"], ShouldEqual, "internal_error")
			})
		})
	})
}

func TestHistoryHandler(t *testing.T) {
	Convey("Given the per-user endpoints with a limit cap of 50", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps, 50)
		So(do(mux, "POST", "/analyses", validSubmission).Code, ShouldEqual, http.StatusAccepted)

		Convey("When listing without a limit", func() {
			w := do(mux, "GET", "/users/user-1/analyses", "")

			Convey("Then the default page size is used", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastLimit, ShouldEqual, 20)
				var list []model.Analysis
				So(json.Unmarshal(w.Body.Bytes(), &list), ShouldBeNil)
				So(list, ShouldHaveLength, 1)
			})
		})

		Convey("When listing another user", func() {
			w := do(mux, "GET", "/users/user-2/analyses?limit=5", "")

			Convey("Then an empty array is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
			})
		})

		Convey("When the limit is invalid", func() {
			So(do(mux, "GET", "/users/user-1/analyses?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, "GET", "/users/user-1/analyses?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)

			w := do(mux, "GET", "/users/user-1/analyses?limit=51", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["code"], ShouldEqual, "limit_exceeded")
		})

		Convey("When reading stats and counterparts", func() {
			ws := do(mux, "GET", "/users/user-1/stats", "")
			wc := do(mux, "GET", "/users/user-1/counterparts", "")

			Convey("Then both answer JSON", func() {
				So(ws.Code, ShouldEqual, http.StatusOK)
				So(ws.Body.String(), ShouldContainSubstring, insight.StyleRomantic)
				So(wc.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(wc.Body.String()), ShouldEqual, "[]")
			})
		})
	})
}

func TestTrendHandler(t *testing.T) {
	Convey("Given the trend endpoint", t, func() {
		mux := newMux(newMockDependencies(), 100)

		Convey("Then a known counterpart has a trend", func() {
			w := do(mux, "GET", "/counterparts/cp-1/trend", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var tr insight.Trend
			So(json.Unmarshal(w.Body.Bytes(), &tr), ShouldBeNil)
			So(tr.Direction, ShouldEqual, insight.Warming)
			So(tr.Delta, ShouldEqual, 30)
		})

		Convey("Then an unknown counterpart is not found", func() {
			So(do(mux, "GET", "/counterparts/cp-9/trend", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given API errors", t, func() {
		cause := errors.New("boom")

		Convey("Then WrapKind matches both kind and cause", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("Then Wrap keeps nil as nil", func() {
			So(api.Wrap("api.op", nil), ShouldBeNil)
			So(api.Wrap("api.op", cause).Error(), ShouldEqual, "api.op: boom")
		})

		Convey("Then NewKind carries only the kind", func() {
			err := api.NewKind("api.op", api.ErrBackpressure)
			So(errors.Is(err, api.ErrBackpressure), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: backpressure")
		})
	})
}

func TestEndToEnd(t *testing.T) {
	Convey("Given the API in front of a real service", t, func() {
		svc := service.New(service.WithWorkerCount(2))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc, svc, 100).Register(context.Background(), mux)

		Convey("When an analysis is submitted", func() {
			w := do(mux, "POST", "/analyses", validSubmission)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			var a model.Analysis
			So(json.Unmarshal(w.Body.Bytes(), &a), ShouldBeNil)

			Convey("Then it becomes readable after the write-behind", func() {
				deadline := time.Now().Add(2 * time.Second)
				code := 0
				for time.Now().Before(deadline) {
					if code = do(mux, "GET", "/analyses/"+a.ID, "").Code; code == http.StatusOK {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				So(code, ShouldEqual, http.StatusOK)

				tw := do(mux, "GET", "/counterparts/"+a.CounterpartID+"/trend", "")
				So(tw.Code, ShouldEqual, http.StatusOK)
				So(tw.Body.String(), ShouldContainSubstring, string(insight.Insufficient))
			})
		})
	})
}
