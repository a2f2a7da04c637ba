// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput marks a questionnaire value outside its closed option set.
var ErrInvalidInput = errors.New("invalid input")

// TrialQuestionnaire is the three-question quick check.
type TrialQuestionnaire struct {
	MeetingCount  int            `json:"meeting_count"`
	Duration      DurationBucket `json:"duration"`
	ReplyInterval ReplyBucket    `json:"reply_interval"`
}

// Validate reports every invalid field joined into one error.
func (q TrialQuestionnaire) Validate() error {
	var errs []error
	if q.MeetingCount < 0 {
		errs = append(errs, fmt.Errorf("%w: meeting_count %d", ErrInvalidInput, q.MeetingCount))
	}
	if !isMember(q.Duration, durationBuckets) {
		errs = append(errs, fmt.Errorf("%w: duration %q", ErrInvalidInput, q.Duration))
	}
	if !isMember(q.ReplyInterval, replyBuckets) {
		errs = append(errs, fmt.Errorf("%w: reply_interval %q", ErrInvalidInput, q.ReplyInterval))
	}
	return errors.Join(errs...)
}

// FullQuestionnaire is the four-step wizard snapshot at submission time.
type FullQuestionnaire struct {
	PartnerStatus       PartnerStatus       `json:"partner_status"`
	RelationshipContext RelationshipContext `json:"relationship_context,omitempty"`
	PhysicalDistance    PhysicalDistance    `json:"physical_distance"`

	ContactFrequency ContactFrequency `json:"contact_frequency"`
	InitiativeRatio  InitiativeRatio  `json:"initiative_ratio"`
	ActiveTime       ActiveTime       `json:"active_time"`

	MeetingCount      int               `json:"meeting_count"`
	MeetingInitiative MeetingInitiative `json:"meeting_initiative"`
	MeetingType       MeetingType       `json:"meeting_type"`
	DateCourses       []DateCourse      `json:"date_courses"`

	BehavioralSignals []BehavioralSignal `json:"behavioral_signals"`
}

// Validate reports every invalid field joined into one error.
// RelationshipContext is optional; an empty value is accepted.
func (q FullQuestionnaire) Validate() error {
	var errs []error
	check := func(ok bool, field string, v any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s %v", ErrInvalidInput, field, v))
		}
	}
	check(isMember(q.PartnerStatus, partnerStatuses), "partner_status", q.PartnerStatus)
	check(q.RelationshipContext == "" || isMember(q.RelationshipContext, relationshipContexts),
		"relationship_context", q.RelationshipContext)
	check(isMember(q.PhysicalDistance, physicalDistances), "physical_distance", q.PhysicalDistance)
	check(isMember(q.ContactFrequency, contactFrequencies), "contact_frequency", q.ContactFrequency)
	check(isMember(q.InitiativeRatio, initiativeRatios), "initiative_ratio", q.InitiativeRatio)
	check(isMember(q.ActiveTime, activeTimes), "active_time", q.ActiveTime)
	check(q.MeetingCount >= 0, "meeting_count", q.MeetingCount)
	check(isMember(q.MeetingInitiative, meetingInitiatives), "meeting_initiative", q.MeetingInitiative)
	check(isMember(q.MeetingType, meetingTypes), "meeting_type", q.MeetingType)
	for _, c := range q.DateCourses {
		check(isMember(c, dateCourses), "date_courses", c)
	}
	for _, s := range q.BehavioralSignals {
		check(isMember(s, behavioralSignals), "behavioral_signals", s)
	}
	return errors.Join(errs...)
}

// Normalized returns a copy whose checklist sets are sorted and duplicate-free.
func (q FullQuestionnaire) Normalized() FullQuestionnaire {
	q.DateCourses = dedupeSorted(q.DateCourses)
	q.BehavioralSignals = dedupeSorted(q.BehavioralSignals)
	return q
}

// HasDateCourse reports whether c was selected.
func (q FullQuestionnaire) HasDateCourse(c DateCourse) bool {
	for _, v := range q.DateCourses {
		if v == c {
			return true
		}
	}
	return false
}

// Analysis is a scored full questionnaire stored against a user and counterpart.
type Analysis struct {
	ID              string            `json:"id"`
	SubmissionID    string            `json:"submission_id,omitempty"`
	UserID          string            `json:"user_id"`
	CounterpartID   string            `json:"counterpart_id"`
	CounterpartName string            `json:"counterpart_name"`
	Score           int               `json:"score"`
	Stage           string            `json:"stage"`
	Summary         string            `json:"summary"`
	Questionnaire   FullQuestionnaire `json:"questionnaire"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Counterpart is the person a user's analyses are about.
type Counterpart struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Nickname  string    `json:"nickname"`
	CreatedAt time.Time `json:"created_at"`

	// Filled by listings.
	Analyses    int `json:"analyses"`
	LatestScore int `json:"latest_score"`
}

// UserStats aggregates a user's analysis history.
type UserStats struct {
	UserID        string `json:"user_id"`
	TotalAnalyses int    `json:"total_analyses"`
	AverageScore  int    `json:"average_score"`
	Style         string `json:"style"`
}
