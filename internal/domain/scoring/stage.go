package scoring

// Stage is a qualitative relationship label derived from a score.
type Stage string

// Trial stages. RuleStage values reuse some of these.
const (
	StagePreRelationship    Stage = "pre-relationship"
	StageSumConfirmed       Stage = "sum confirmed"
	StageSumPossible        Stage = "sum possible"
	StageInterested         Stage = "interested"
	StageLow                Stage = "low"
	StageHighSumProbability Stage = "high sum probability"
	StageSituational        Stage = "ambiguous/situational"
	StageOnlineIntimate     Stage = "online-intimate sum"
	StageLowInterest        Stage = "low interest"
)

// Full-questionnaire stages that have no trial counterpart.
const (
	StageInterestStage Stage = "interest stage"
	StageImpossible    Stage = "impossible (recommend disengaging)"
)

type threshold struct {
	min   int
	stage Stage
}

var trialThresholds = []threshold{
	{80, StagePreRelationship},
	{65, StageSumConfirmed},
	{50, StageSumPossible},
	{35, StageInterested},
}

var fullThresholds = []threshold{
	{90, StagePreRelationship},
	{75, StageSumConfirmed},
	{60, StageSumPossible},
	{40, StageInterestStage},
}

func classify(score int, table []threshold, fallback Stage) (Stage, bool) {
	for _, t := range table {
		if score >= t.min {
			return t.stage, true
		}
	}
	return fallback, false
}

// TrialStage is the final trial classifier. It always overrides rule stages.
func TrialStage(score int) Stage {
	s, _ := classify(score, trialThresholds, StageLow)
	return s
}
