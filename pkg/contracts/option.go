package contracts

// SimulatedOption is one of the Simulator's 3-4 candidate resolutions.
type SimulatedOption struct {
	OptionID                     string
	Action                       string
	Steps                        []string
	EstimatedCost                float64
	EstimatedTimeHours           float64
	ResidentSatisfactionImpact   float64
	Reasoning                    string
	SourceDocIDs                 []string

	// Flagged records whether a citation was stripped or a numeric field was
	// clamped during validation, per spec.md 4.5 ("clamped and flagged").
	Flagged bool
	// Escalation marks the sentinel "route to a human operator" option.
	Escalation bool
}

// EscalationOptionID is the stable id used for the sentinel escalation option.
const EscalationOptionID = "opt_escalate"

// NewEscalationOption builds the sentinel escalation option carrying a
// diagnostic string, per the glossary's "Escalation option" definition:
// always zero cost/time.
func NewEscalationOption(diagnostic string) SimulatedOption {
	return SimulatedOption{
		OptionID:           EscalationOptionID,
		Action:             "Escalate to a human operator",
		Steps:              []string{"Route request to on-call staff for manual handling"},
		EstimatedCost:      0,
		EstimatedTimeHours: 0,
		Reasoning:          diagnostic,
		Escalation:         true,
	}
}

// Simulation is the Simulator's full output: the ordered option list plus
// its own first-pass preference, which the Decider may override.
type Simulation struct {
	Options             []SimulatedOption
	RecommendedOptionID string
	// Status is "ok" or "error" (second LLM failure, per spec.md 4.5).
	Status string
}
