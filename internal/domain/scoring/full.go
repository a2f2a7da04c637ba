package scoring

import "github.com/okian/sumcheck/internal/domain/model"

// Sub-score caps and bonuses for the full questionnaire.
const (
	meetingCap         = 30
	meetingPoints      = 5
	distanceFactorFar  = 1.5
	oneOnOneBonus      = 5
	responsivenessCap  = 25
	responsivenessMiss = 10
	nightBonus         = 3
	initiativeCap      = 20
	initiativeMiss     = 10
	meetingLeadBonus   = 5
	progressCap        = 25
	signalPoints       = 4
	dinnerBonus        = 3
)

var contactFrequencyPoints = map[model.ContactFrequency]float64{
	model.ContactInstant:      25,
	model.ContactOneTwoHours:  20,
	model.ContactHalfDay:      12,
	model.ContactOneTwoPerDay: 5,
	model.ContactFewDays:      0,
}

var initiativePoints = map[model.InitiativeRatio]float64{
	model.InitiativeCounterpartMostly: 20,
	model.InitiativeSimilar:           15,
	model.InitiativeSelfMostly:        5,
}

var partnerFactor = map[model.PartnerStatus]float64{
	model.PartnerHasPartner: 0.1,
	model.PartnerAmbiguous:  0.7,
	model.PartnerSingle:     1.0,
}

// SubScores holds the four weighted components before the partner multiplier.
type SubScores struct {
	Meeting        float64 `json:"meeting"`
	Responsiveness float64 `json:"responsiveness"`
	Initiative     float64 `json:"initiative"`
	Progress       float64 `json:"progress"`
}

// Total is the sum of the four components.
func (s SubScores) Total() float64 {
	return s.Meeting + s.Responsiveness + s.Initiative + s.Progress
}

// FullResult is the output of the full scorer.
type FullResult struct {
	Score         int       `json:"score"`
	Stage         Stage     `json:"stage"`
	SubScores     SubScores `json:"sub_scores"`
	PartnerFactor float64   `json:"partner_factor"`
	// Weighted is the total after the partner multiplier, before clamping.
	Weighted float64 `json:"weighted"`
}

// ScoreFull scores the full questionnaire. Unknown enum values score as if
// unselected; callers that want a hard failure run Validate first.
func ScoreFull(in model.FullQuestionnaire) FullResult {
	subs := SubScores{
		Meeting:        MeetingSubScore(in.MeetingCount, in.PhysicalDistance, in.MeetingType),
		Responsiveness: ResponsivenessSubScore(in.ContactFrequency, in.ActiveTime),
		Initiative:     InitiativeSubScore(in.InitiativeRatio, in.MeetingInitiative),
		Progress:       ProgressSubScore(len(in.Normalized().BehavioralSignals), in.HasDateCourse(model.CourseDinnerAndDrinks)),
	}

	factor, ok := partnerFactor[in.PartnerStatus]
	if !ok {
		factor = 1.0
	}
	weighted := subs.Total() * factor
	score := roundScore(weighted)

	return FullResult{
		Score:         score,
		Stage:         FullStage(score, in.PartnerStatus),
		SubScores:     subs,
		PartnerFactor: factor,
		Weighted:      weighted,
	}
}

// MeetingSubScore is min(30, count*5*distanceFactor + oneOnOneBonus).
func MeetingSubScore(count int, distance model.PhysicalDistance, meetingType model.MeetingType) float64 {
	factor := 1.0
	if distance == model.DistanceLong || distance == model.DistanceOverseas {
		factor = distanceFactorFar
	}
	bonus := 0.0
	if meetingType == model.MeetingAlwaysOneOnOne {
		bonus = oneOnOneBonus
	}
	return min(meetingCap, float64(max(count, 0))*meetingPoints*factor+bonus)
}

// ResponsivenessSubScore is the contact-frequency lookup plus the night bonus.
// The bonus is applied after the 25 cap.
func ResponsivenessSubScore(freq model.ContactFrequency, active model.ActiveTime) float64 {
	base, ok := contactFrequencyPoints[freq]
	if !ok {
		base = responsivenessMiss
	}
	base = min(responsivenessCap, base)
	if active == model.ActiveNightDawn {
		base += nightBonus
	}
	return base
}

// InitiativeSubScore is the initiative lookup plus the meeting-lead bonus, capped at 20.
func InitiativeSubScore(ratio model.InitiativeRatio, lead model.MeetingInitiative) float64 {
	base, ok := initiativePoints[ratio]
	if !ok {
		base = initiativeMiss
	}
	if lead == model.MeetingByCounterpart {
		base += meetingLeadBonus
	}
	return min(initiativeCap, base)
}

// ProgressSubScore is min(25, signals*4 + dinnerBonus).
func ProgressSubScore(signals int, dinnerAndDrinks bool) float64 {
	bonus := 0.0
	if dinnerAndDrinks {
		bonus = dinnerBonus
	}
	return min(progressCap, float64(max(signals, 0))*signalPoints+bonus)
}

// FullStage classifies a full score. The has_partner override is only
// reachable below the lowest threshold.
func FullStage(score int, partner model.PartnerStatus) Stage {
	if s, ok := classify(score, fullThresholds, StageLowInterest); ok {
		return s
	}
	if partner == model.PartnerHasPartner {
		return StageImpossible
	}
	return StageLowInterest
}
