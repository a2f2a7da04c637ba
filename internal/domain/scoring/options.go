package scoring

// Default calibration constants for the trial scorer. No form field sets them.
const (
	DefaultBaselineReplyHours = 3.0
	DefaultInitiative         = 0.5
	DefaultProgressSignal     = 0.5
)

// Option applies a configuration option to the TrialScorer.
type Option func(*TrialScorer)

// WithBaselineReplyHours sets the assumed baseline reply interval Rb.
// Zero is accepted and makes RV fall back to the raw reply hours.
func WithBaselineReplyHours(hours float64) Option {
	return func(s *TrialScorer) {
		if hours >= 0 {
			s.baselineReplyHours = hours
		}
	}
}

// WithInitiative sets the assumed counterpart initiative share in [0, 1].
func WithInitiative(v float64) Option {
	return func(s *TrialScorer) {
		if v >= 0 && v <= 1 {
			s.initiative = v
		}
	}
}

// WithProgressSignal sets the assumed progress-signal strength in [0, 1].
func WithProgressSignal(v float64) Option {
	return func(s *TrialScorer) {
		if v >= 0 && v <= 1 {
			s.progressSignal = v
		}
	}
}
