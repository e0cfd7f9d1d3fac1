package contracts

// Decision is the Decider's auditable output.
type Decision struct {
	ChosenOptionID       string
	Reasoning            string
	AlternativesConsidered []string // ordered, descending composite score, excludes chosen
	// PolicyScores maps option_id -> composite score in [0,1], one entry per
	// option in the simulation (escalation options score 0). The sub-score
	// breakdown that produced the chosen option's score is named in Reasoning.
	PolicyScores map[string]float64
}

// PolicyWeights weights the five sub-scores the Decider computes per option.
// All fields are >= 0 and normalised to sum to 1 at use time, never hard-coded
// into the scoring function.
type PolicyWeights struct {
	Cost              float64
	Time              float64
	Satisfaction      float64
	UrgencyAlignment  float64
	PolicyCompliance  float64
}

// Normalised returns w scaled so its fields sum to 1. A zero-sum input
// returns an equal split across the five weights.
func (w PolicyWeights) Normalised() PolicyWeights {
	sum := w.Cost + w.Time + w.Satisfaction + w.UrgencyAlignment + w.PolicyCompliance
	if sum <= 0 {
		return PolicyWeights{Cost: 0.2, Time: 0.2, Satisfaction: 0.2, UrgencyAlignment: 0.2, PolicyCompliance: 0.2}
	}
	return PolicyWeights{
		Cost:             w.Cost / sum,
		Time:             w.Time / sum,
		Satisfaction:     w.Satisfaction / sum,
		UrgencyAlignment: w.UrgencyAlignment / sum,
		PolicyCompliance: w.PolicyCompliance / sum,
	}
}

// SubScores are the five per-option [0,1] components the Decider computes
// before applying PolicyWeights.
type SubScores struct {
	CostScore          float64
	TimeScore           float64
	SatisfactionScore   float64
	UrgencyAlignment    float64
	PolicyCompliance    float64
}

// Composite applies w (already normalised) to s.
func (s SubScores) Composite(w PolicyWeights) float64 {
	return w.Cost*s.CostScore +
		w.Time*s.TimeScore +
		w.Satisfaction*s.SatisfactionScore +
		w.UrgencyAlignment*s.UrgencyAlignment +
		w.PolicyCompliance*s.PolicyCompliance
}
