package scoring

import (
	"math"

	"github.com/okian/sumcheck/internal/domain/model"
)

// Formula weights for the trial score.
const (
	meetingDensityWeight = 30
	replyWeight          = 25
	initiativeWeight     = 20
	progressWeight       = 25

	slowReplyFactor = 1.5
)

// Reply-speed summaries.
const (
	ReplyFaster  = "faster than average"
	ReplySlower  = "slower than average"
	ReplyAverage = "average"
)

// Placeholder values for dimensions the trial never computes.
const (
	PlaceholderTranscript = "requires transcript analysis"
	PlaceholderLocked     = "locked"
)

// LockedInsights are paywalled fields returned with fixed placeholder values.
type LockedInsights struct {
	ConfessionProbability string `json:"confession_probability"`
	ConfessionTiming      string `json:"confession_timing"`
	ContactStrategy       string `json:"contact_strategy"`
	RelationshipFuture    string `json:"relationship_future"`
}

// TrialResult is the output of the trial scorer.
type TrialResult struct {
	Score int   `json:"score"`
	Stage Stage `json:"stage"`
	// RuleStage is the stage the first matching rule suggested. It never
	// reaches Stage; it is kept for diagnostics. Empty when no rule matched.
	RuleStage Stage `json:"rule_stage,omitempty"`

	MeetingDensity float64 `json:"meeting_density"`
	ReplyViolation float64 `json:"reply_violation"`
	DurationWeeks  float64 `json:"duration_weeks"`
	ReplyHours     float64 `json:"reply_hours"`

	ReplySpeedSummary    string         `json:"reply_speed_summary"`
	ConversationBalance  string         `json:"conversation_balance"`
	QuestionRatioSummary string         `json:"question_ratio_summary"`
	Locked               LockedInsights `json:"locked"`
}

// TrialScorer scores the three-question trial with injectable constants.
type TrialScorer struct {
	baselineReplyHours float64
	initiative         float64
	progressSignal     float64
}

// NewTrialScorer creates a trial scorer with configuration options.
func NewTrialScorer(opts ...Option) *TrialScorer {
	s := &TrialScorer{
		baselineReplyHours: DefaultBaselineReplyHours,
		initiative:         DefaultInitiative,
		progressSignal:     DefaultProgressSignal,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var defaultTrialScorer = NewTrialScorer()

// ScoreTrial scores with the default constants.
func ScoreTrial(meetingCount int, duration model.DurationBucket, reply model.ReplyBucket) TrialResult {
	return defaultTrialScorer.Score(meetingCount, duration, reply)
}

type trialRule struct {
	stage Stage
	delta int
	match func(md, d, rv, in, ps float64) bool
}

// trialRules are evaluated in priority order.
var trialRules = []trialRule{
	{StageHighSumProbability, 0, func(md, d, rv, _, _ float64) bool { return md >= 1.0 && d <= 4 && rv <= 1.2 }},
	{StageSituational, -15, func(md, _, rv, _, ps float64) bool { return md >= 1.0 && rv >= 1.8 && ps <= 0.5 }},
	{StagePreRelationship, 10, func(md, _, rv, _, ps float64) bool { return md >= 1.0 && rv <= 1.2 && ps >= 0.8 }},
	{StageOnlineIntimate, 0, func(md, _, rv, in, _ float64) bool { return md <= 0.3 && rv <= 1.2 && in >= 0.6 }},
	{StageLowInterest, -20, func(md, _, rv, in, _ float64) bool { return md <= 0.3 && rv >= 1.8 && in <= 0.3 }},
}

// Score computes the trial result. Negative meeting counts are treated as 0.
func (s *TrialScorer) Score(meetingCount int, duration model.DurationBucket, reply model.ReplyBucket) TrialResult {
	m := float64(max(meetingCount, 0))
	d := DurationBucketToWeeks(duration)
	r := ReplyBucketToHours(reply)
	rb := s.baselineReplyHours

	md := m
	if d > 0 {
		md = m / d
	}
	rv := r
	if rb > 0 {
		rv = r / rb
	}

	// RV == 0 means an instant reply; the inverse term is unbounded and the
	// base saturates at the clamp.
	inverse := math.Inf(1)
	if rv > 0 {
		inverse = 1 / rv
	}

	base := md*meetingDensityWeight + inverse*replyWeight +
		s.initiative*initiativeWeight + s.progressSignal*progressWeight
	score := roundScore(base)

	var ruleStage Stage
	for _, rule := range trialRules {
		if !rule.match(md, d, rv, s.initiative, s.progressSignal) {
			continue
		}
		score = clampInt(score + rule.delta)
		if ruleStage == "" {
			ruleStage = rule.stage
		}
	}

	return TrialResult{
		Score:                score,
		Stage:                TrialStage(score),
		RuleStage:            ruleStage,
		MeetingDensity:       md,
		ReplyViolation:       rv,
		DurationWeeks:        d,
		ReplyHours:           r,
		ReplySpeedSummary:    replySummary(r, rb),
		ConversationBalance:  PlaceholderTranscript,
		QuestionRatioSummary: PlaceholderTranscript,
		Locked: LockedInsights{
			ConfessionProbability: PlaceholderLocked,
			ConfessionTiming:      PlaceholderLocked,
			ContactStrategy:       PlaceholderLocked,
			RelationshipFuture:    PlaceholderLocked,
		},
	}
}

func replySummary(r, rb float64) string {
	switch {
	case r < rb:
		return ReplyFaster
	case r > slowReplyFactor*rb:
		return ReplySlower
	default:
		return ReplyAverage
	}
}
