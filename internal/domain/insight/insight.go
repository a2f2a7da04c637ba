// Package insight derives the human-readable text shown next to a score:
// the analysis summary, the trend between consecutive analyses and the
// user's overall relationship style.
package insight

import "fmt"

const positiveThreshold = 70

const (
	positiveNote = "Many positive signals were detected."
	waitNote     = "This relationship needs a little more time to read."
)

// Summary is the one-paragraph public summary stored with an analysis.
func Summary(counterpartName, stage string, score int) string {
	note := waitNote
	if score > positiveThreshold {
		note = positiveNote
	}
	return fmt.Sprintf("Your relationship with %s is currently at the '%s' stage. %s", counterpartName, stage, note)
}

// Direction is the movement between the two most recent scores.
type Direction string

const (
	Warming      Direction = "warming"
	Cooling      Direction = "cooling"
	Steady       Direction = "steady"
	Insufficient Direction = "insufficient"
)

const trendBand = 10

var trendAdvice = map[Direction]string{
	Warming:      "The relationship is getting closer quickly. Keep the current momentum.",
	Cooling:      "Contact frequency or warmth may have dropped recently. Give some space and watch how they respond.",
	Steady:       "Things are stable. Suggest a new plan or date so the relationship does not stall.",
	Insufficient: "Not enough history to compare. Run one more analysis.",
}

// Trend compares the latest analysis with the one before it.
type Trend struct {
	Direction Direction `json:"direction"`
	Delta     int       `json:"delta"`
	Previous  *int      `json:"previous,omitempty"`
	Current   *int      `json:"current,omitempty"`
	Advice    string    `json:"advice"`
}

// CompareTrend looks at the last two entries of history, oldest first.
// A change of more than 10 points either way is a trend.
func CompareTrend(history []int) Trend {
	if len(history) < 2 {
		t := Trend{Direction: Insufficient, Advice: trendAdvice[Insufficient]}
		if len(history) == 1 {
			cur := history[0]
			t.Current = &cur
		}
		return t
	}

	prev, cur := history[len(history)-2], history[len(history)-1]
	delta := cur - prev
	dir := Steady
	switch {
	case delta > trendBand:
		dir = Warming
	case delta < -trendBand:
		dir = Cooling
	}
	return Trend{
		Direction: dir,
		Delta:     delta,
		Previous:  &prev,
		Current:   &cur,
		Advice:    trendAdvice[dir],
	}
}

// Relationship styles by average score.
const (
	StyleNotEnoughData = "not enough data"
	StyleRomantic      = "straight-ahead romantic"
	StyleExplorer      = "active explorer"
	StyleObserver      = "careful observer"
	StyleDefender      = "iron-wall defender"
)

// RelationshipStyle labels a user by the rounded average of their scores.
func RelationshipStyle(avg, total int) string {
	switch {
	case total == 0:
		return StyleNotEnoughData
	case avg >= 80:
		return StyleRomantic
	case avg >= 60:
		return StyleExplorer
	case avg >= 40:
		return StyleObserver
	default:
		return StyleDefender
	}
}
