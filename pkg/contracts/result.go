package contracts

// Status values for Result, per spec.md 4.7.
const (
	StatusAnswered  = "answered"
	StatusSubmitted = "submitted"
	StatusError     = "error"
)

// Result is the Orchestrator's unified response to handle_message. Exactly
// one of Answer or Simulation/Decision is populated, depending on Status.
type Result struct {
	Status             string
	Classification      Classification
	Answer             *Answer
	Simulation         *Simulation
	Decision           *Decision
	Message            string
	EscalationRequired bool
}
