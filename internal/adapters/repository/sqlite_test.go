package repository_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/sumcheck/internal/adapters/repository"
	"github.com/okian/sumcheck/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func analysis(id, user, counterpartID, name string, score int, at time.Duration) model.Analysis {
	return model.Analysis{
		ID:              id,
		SubmissionID:    "sub-" + id,
		UserID:          user,
		CounterpartID:   counterpartID,
		CounterpartName: name,
		Score:           score,
		Stage:           "sum possible",
		Summary:         "summary " + id,
		Questionnaire: model.FullQuestionnaire{
			PartnerStatus:     model.PartnerSingle,
			PhysicalDistance:  model.DistanceWithinOneHour,
			ContactFrequency:  model.ContactHalfDay,
			InitiativeRatio:   model.InitiativeSimilar,
			ActiveTime:        model.ActiveEvening,
			MeetingCount:      2,
			MeetingInitiative: model.MeetingBySimilar,
			MeetingType:       model.MeetingGroupThenOneOnOne,
			DateCourses:       []model.DateCourse{model.CourseLightMealCafe},
			BehavioralSignals: []model.BehavioralSignal{model.SignalAsksBack},
		},
		CreatedAt: epoch.Add(at),
	}
}

func openStore(t *testing.T, path string) *repository.SQLiteStore {
	t.Helper()
	s, err := repository.NewSQLiteStore(context.Background(), path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_BasicOperations(t *testing.T) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		s := openStore(t, repository.MemoryPath)

		n, err := s.Count(ctx)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 0)

		Convey("When an analysis is saved", func() {
			want := analysis("a1", "u1", "c1", "Jamie", 72, 0)
			So(s.SaveAnalysis(ctx, want), ShouldBeNil)

			Convey("Then it should round-trip unchanged", func() {
				got, err := s.Analysis(ctx, "a1")
				So(err, ShouldBeNil)
				So(got, ShouldResemble, want)
			})

			Convey("Then saving it again should be a no-op", func() {
				dup := want
				dup.Score = 10
				So(s.SaveAnalysis(ctx, dup), ShouldBeNil)
				got, err := s.Analysis(ctx, "a1")
				So(err, ShouldBeNil)
				So(got.Score, ShouldEqual, 72)
				n, _ := s.Count(ctx)
				So(n, ShouldEqual, 1)
			})

			Convey("Then deleting it should make it unknown", func() {
				So(s.DeleteAnalysis(ctx, "a1"), ShouldBeNil)
				_, err := s.Analysis(ctx, "a1")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(errors.Is(s.DeleteAnalysis(ctx, "a1"), repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When an unknown id is requested", func() {
			_, err := s.Analysis(ctx, "missing")

			Convey("Then it should return ErrNotFound", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestSQLiteStore_Listings(t *testing.T) {
	Convey("Given a user with analyses about two counterparts", t, func() {
		ctx := context.Background()
		s := openStore(t, repository.MemoryPath)

		for _, a := range []model.Analysis{
			analysis("a1", "u1", "c1", "Jamie", 40, 0),
			analysis("a2", "u1", "c2", "Robin", 90, time.Hour),
			analysis("a3", "u1", "c1", "Jamie", 55, 2*time.Hour),
			analysis("a4", "u2", "c3", "Sam", 10, 3*time.Hour),
		} {
			So(s.SaveAnalysis(ctx, a), ShouldBeNil)
		}

		Convey("Then the user history should be newest first and limited", func() {
			got, err := s.ListByUser(ctx, "u1", 2)
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 2)
			So(got[0].ID, ShouldEqual, "a3")
			So(got[1].ID, ShouldEqual, "a2")
		})

		Convey("Then a non-positive limit should be rejected", func() {
			_, err := s.ListByUser(ctx, "u1", 0)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
		})

		Convey("Then the counterpart history should be oldest first", func() {
			got, err := s.ListByCounterpart(ctx, "c1")
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 2)
			So(got[0].Score, ShouldEqual, 40)
			So(got[1].Score, ShouldEqual, 55)
		})

		Convey("Then an unknown counterpart should have an empty history", func() {
			got, err := s.ListByCounterpart(ctx, "nobody")
			So(err, ShouldBeNil)
			So(got, ShouldBeEmpty)
		})

		Convey("Then the counterparts should carry count and latest score", func() {
			got, err := s.Counterparts(ctx, "u1")
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 2)
			So(got[0].Nickname, ShouldEqual, "Jamie")
			So(got[0].Analyses, ShouldEqual, 2)
			So(got[0].LatestScore, ShouldEqual, 55)
			So(got[0].CreatedAt, ShouldEqual, epoch)
			So(got[1].Nickname, ShouldEqual, "Robin")
			So(got[1].LatestScore, ShouldEqual, 90)
		})

		Convey("Then the user stats should average and round the scores", func() {
			st, err := s.UserStats(ctx, "u1")
			So(err, ShouldBeNil)
			So(st.TotalAnalyses, ShouldEqual, 3)
			So(st.AverageScore, ShouldEqual, 62) // 185/3 = 61.67
		})

		Convey("Then a user without analyses should have empty stats", func() {
			st, err := s.UserStats(ctx, "u9")
			So(err, ShouldBeNil)
			So(st, ShouldResemble, model.UserStats{UserID: "u9"})
		})
	})
}

func TestSQLiteStore_Persistence(t *testing.T) {
	Convey("Given a store on disk", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "history.db")

		s, err := repository.NewSQLiteStore(ctx, path, repository.WithBusyTimeout(time.Second))
		So(err, ShouldBeNil)
		So(s.SaveAnalysis(ctx, analysis("a1", "u1", "c1", "Jamie", 72, 0)), ShouldBeNil)
		So(s.Close(), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		Convey("When it is reopened", func() {
			reopened := openStore(t, path)

			Convey("Then the analysis should still be there", func() {
				got, err := reopened.Analysis(ctx, "a1")
				So(err, ShouldBeNil)
				So(got.CounterpartName, ShouldEqual, "Jamie")
			})
		})
	})
}

func TestSQLiteStore_ConcurrentAccess(t *testing.T) {
	Convey("Given concurrent writers and readers", t, func() {
		ctx := context.Background()
		s := openStore(t, repository.MemoryPath)

		var wg sync.WaitGroup
		errs := make(chan error, 100)
		for w := 0; w < 5; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 10; i++ {
					id := fmt.Sprintf("a-%d-%d", w, i)
					if err := s.SaveAnalysis(ctx, analysis(id, "u1", "c1", "Jamie", i*10, time.Duration(i)*time.Minute)); err != nil {
						errs <- err
					}
					if _, err := s.ListByUser(ctx, "u1", 5); err != nil {
						errs <- err
					}
				}
			}(w)
		}
		wg.Wait()
		close(errs)

		Convey("Then every write should land without errors", func() {
			for err := range errs {
				So(err, ShouldBeNil)
			}
			n, err := s.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 50)
		})
	})
}

func TestSQLiteStore_CounterpartOwnership(t *testing.T) {
	Convey("Given a counterpart stored for one user", t, func() {
		ctx := context.Background()
		s := openStore(t, repository.MemoryPath)
		So(s.SaveAnalysis(ctx, analysis("a1", "a/b", "cp-shared", "c", 40, 0)), ShouldBeNil)

		Convey("When another user saves against the same counterpart id", func() {
			err := s.SaveAnalysis(ctx, analysis("a2", "a", "cp-shared", "b/c", 60, time.Minute))

			Convey("Then the save is refused and nothing is attached", func() {
				So(errors.Is(err, repository.ErrCounterpartOwner), ShouldBeTrue)

				_, err := s.Analysis(ctx, "a2")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

				cps, err := s.Counterparts(ctx, "a")
				So(err, ShouldBeNil)
				So(cps, ShouldBeEmpty)
			})
		})

		Convey("When the same user saves again", func() {
			err := s.SaveAnalysis(ctx, analysis("a3", "a/b", "cp-shared", "c", 70, time.Minute))

			Convey("Then it joins the existing counterpart", func() {
				So(err, ShouldBeNil)
				cps, err := s.Counterparts(ctx, "a/b")
				So(err, ShouldBeNil)
				So(cps, ShouldHaveLength, 1)
				So(cps[0].Analyses, ShouldEqual, 2)
			})
		})
	})
}
