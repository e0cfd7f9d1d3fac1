package classifier

import "github.com/aptmgmt/decisioncore/pkg/contracts"

// rule is one entry in the deterministic rule table: example phrases that,
// when matched against an incoming message with high bleve relevance AND
// accompanied by an explicit danger/urgency cue, classify the message
// immediately without involving the LLM. Kept as data, not hard-coded into
// the matching function, the way pkg/config's policy weight tables are data.
type rule struct {
	Category contracts.Category
	Urgency  contracts.Urgency
	Intent   contracts.Intent
	Examples []string
	// DangerCues are terms whose presence alongside a category-example match
	// elevates the hit to "high specificity" per spec.md 4.4.
	DangerCues []string
}

var ruleTable = []rule{
	{
		Category: contracts.CategoryMaintenance,
		Urgency:  contracts.UrgencyHigh,
		Intent:   contracts.IntentSolveProblem,
		Examples: []string{
			"water leak flooding ceiling ruined carpet",
			"no heat freezing apartment furnace broken",
			"gas smell rotten eggs odor",
			"electrical sparks outlet smoking",
			"burst pipe water everywhere",
		},
		DangerCues: []string{"gas smell", "smoke", "sparks", "flooding", "no heat", "freezing", "fire"},
	},
	{
		Category: contracts.CategoryMaintenance,
		Urgency:  contracts.UrgencyMedium,
		Intent:   contracts.IntentSolveProblem,
		Examples: []string{
			"leaky faucet dripping slowly",
			"dishwasher not draining properly",
			"air conditioning blowing warm air",
			"garbage disposal jammed",
		},
	},
	{
		Category: contracts.CategorySecurity,
		Urgency:  contracts.UrgencyHigh,
		Intent:   contracts.IntentSolveProblem,
		Examples: []string{
			"break in stranger in building intruder",
			"someone is following me threatening",
			"door lock broken cannot secure apartment",
		},
		DangerCues: []string{"intruder", "break in", "threatening", "weapon", "unsafe"},
	},
	{
		Category: contracts.CategoryBilling,
		Urgency:  contracts.UrgencyMedium,
		Intent:   contracts.IntentAnswerQuestion,
		Examples: []string{
			"rent charge looks wrong overcharged",
			"late fee dispute incorrect balance",
			"question about my statement",
		},
	},
	{
		Category: contracts.CategoryDeliveries,
		Urgency:  contracts.UrgencyLow,
		Intent:   contracts.IntentSolveProblem,
		Examples: []string{
			"package missing not received lost delivery",
			"amazon package stolen porch pirate",
		},
	},
	{
		Category: contracts.CategoryAmenities,
		Urgency:  contracts.UrgencyLow,
		Intent:   contracts.IntentAnswerQuestion,
		Examples: []string{
			"pool hours gym access question",
			"how do I reserve the clubhouse",
		},
	},
}
