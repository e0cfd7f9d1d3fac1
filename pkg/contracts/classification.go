package contracts

// Classification is the Classifier's output: a pure function of the message,
// the rule tables, and (on fallback) the LLM.
type Classification struct {
	Category   Category
	Urgency    Urgency
	Intent     Intent
	Confidence float64

	// RuleHit records whether the deterministic rule layer produced this
	// classification, as opposed to the LLM fallback. Used only for logging
	// and the confidence cap in spec.md 4.4 ("confidence must not exceed 0.95
	// for LLM-only classifications").
	RuleHit bool
}

// MaxLLMConfidence is the ceiling on confidence for classifications not
// produced by a rule-layer hit.
const MaxLLMConfidence = 0.95

// MinRuleConfidence is the floor on confidence for a specific rule-layer hit.
const MinRuleConfidence = 0.8

// DefaultUrgencyConfidenceCap is the ceiling applied when urgency could not
// be determined and defaulted to Medium.
const DefaultUrgencyConfidenceCap = 0.6
