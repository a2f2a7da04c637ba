package loadgen

import (
	"fmt"
	"math/rand/v2"

	service "github.com/okian/sumcheck/internal/app"
	"github.com/okian/sumcheck/internal/domain/model"
	"github.com/okian/sumcheck/internal/domain/scoring"
)

const maxMeetings = 12

// job is one planned submission and the score it must get.
type job struct {
	sub      service.Submission
	expected int
	resend   bool
}

// counterpartNames are cycled through per user.
var counterpartNames = []string{"Alex", "Jamie", "Robin", "Sam"}

func pick[T any](r *rand.Rand, set []T) T {
	return set[r.IntN(len(set))]
}

// subset returns a random subset of catalog; order and duplicates are left
// to the server to normalize.
func subset[T any](r *rand.Rand, catalog []T) []T {
	var out []T
	for _, v := range catalog {
		if r.IntN(2) == 0 {
			out = append(out, v)
		}
	}
	return out
}

// randomQuestionnaire draws every answer uniformly from its option set.
func randomQuestionnaire(r *rand.Rand) model.FullQuestionnaire {
	return model.FullQuestionnaire{
		PartnerStatus: pick(r, []model.PartnerStatus{
			model.PartnerSingle, model.PartnerAmbiguous, model.PartnerHasPartner,
		}),
		RelationshipContext: pick(r, []model.RelationshipContext{
			"", model.ContextBlindDate, model.ContextWorkOrSchool, model.ContextClubOrGroup,
			model.ContextDatingApp, model.ContextOldFriend,
		}),
		PhysicalDistance: pick(r, []model.PhysicalDistance{
			model.DistanceSameNeighborhood, model.DistanceWithinOneHour, model.DistanceLong, model.DistanceOverseas,
		}),
		ContactFrequency: pick(r, []model.ContactFrequency{
			model.ContactInstant, model.ContactOneTwoHours, model.ContactHalfDay,
			model.ContactOneTwoPerDay, model.ContactFewDays,
		}),
		InitiativeRatio: pick(r, []model.InitiativeRatio{
			model.InitiativeCounterpartMostly, model.InitiativeSimilar, model.InitiativeSelfMostly,
		}),
		ActiveTime:   pick(r, []model.ActiveTime{model.ActiveDaytime, model.ActiveEvening, model.ActiveNightDawn}),
		MeetingCount: r.IntN(maxMeetings + 1),
		MeetingInitiative: pick(r, []model.MeetingInitiative{
			model.MeetingByCounterpart, model.MeetingBySimilar, model.MeetingByMe,
		}),
		MeetingType: pick(r, []model.MeetingType{
			model.MeetingAlwaysOneOnOne, model.MeetingUsuallyGroup, model.MeetingGroupThenOneOnOne,
		}),
		DateCourses:       subset(r, model.DateCourseCatalog()),
		BehavioralSignals: subset(r, model.BehavioralSignalCatalog()),
	}
}

// userID names the i-th generated user within a run.
func userID(seed uint64, i int) string {
	return fmt.Sprintf("load-%d-user-%d", seed, i)
}

// generateJobs plans Users*PerUser submissions with their expected scores.
func generateJobs(cfg *Config) []job {
	r := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	jobs := make([]job, 0, cfg.Users*cfg.PerUser)
	for u := 0; u < cfg.Users; u++ {
		uid := userID(cfg.Seed, u)
		for i := 0; i < cfg.PerUser; i++ {
			q := randomQuestionnaire(r)
			n := len(jobs)
			jobs = append(jobs, job{
				sub: service.Submission{
					SubmissionID:    fmt.Sprintf("%s-sub-%d", uid, i),
					UserID:          uid,
					CounterpartName: counterpartNames[i%len(counterpartNames)],
					Questionnaire:   q,
				},
				expected: scoring.ScoreFull(q).Score,
				resend:   cfg.DuplicateEvery > 0 && (n+1)%cfg.DuplicateEvery == 0,
			})
		}
	}
	return jobs
}
