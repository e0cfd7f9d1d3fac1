// Package decider scores a Simulator's candidate options against a
// per-category/per-urgency weighted policy and chooses one, per spec.md
// §4.6. Entirely deterministic: no LLM or I/O involved.
package decider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aptmgmt/decisioncore/pkg/contracts"
)

// CapLookup supplies the per-category cost cap and per-urgency time cap the
// scoring formulas are normalised against.
type CapLookup interface {
	CostCapFor(category contracts.Category) float64
	TimeCapFor(urgency contracts.Urgency) float64
	WeightsFor(urgency contracts.Urgency) contracts.PolicyWeights
}

// Decider chooses one SimulatedOption and publishes the sub-scores and
// alternatives that justified it.
type Decider struct {
	caps CapLookup
}

// New builds a Decider against caps (typically *config.Config).
func New(caps CapLookup) *Decider {
	return &Decider{caps: caps}
}

// scored pairs an option with its computed sub-scores and composite.
type scored struct {
	option     contracts.SimulatedOption
	subScores  contracts.SubScores
	composite  float64
}

// Choose scores every option in sim against classification's category and
// urgency and returns an auditable Decision. If sim has no options, or only
// the escalation sentinel, the escalation option is selected without error.
func (d *Decider) Choose(classification contracts.Classification, sim contracts.Simulation, retrieval contracts.RetrievalResult) contracts.Decision {
	nonEscalation := make([]contracts.SimulatedOption, 0, len(sim.Options))
	for _, o := range sim.Options {
		if !o.Escalation {
			nonEscalation = append(nonEscalation, o)
		}
	}

	if len(nonEscalation) == 0 {
		return escalationOnlyDecision(sim.Options)
	}

	weights := d.caps.WeightsFor(classification.Urgency).Normalised()
	costCap := d.caps.CostCapFor(classification.Category)
	timeCap := d.caps.TimeCapFor(classification.Urgency)

	ranked := make([]scored, 0, len(nonEscalation))
	for _, o := range nonEscalation {
		sub := subScoresFor(o, classification.Urgency, costCap, timeCap, retrieval)
		ranked = append(ranked, scored{option: o, subScores: sub, composite: sub.Composite(weights)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.composite != b.composite {
			return a.composite > b.composite
		}
		if a.subScores.PolicyCompliance != b.subScores.PolicyCompliance {
			return a.subScores.PolicyCompliance > b.subScores.PolicyCompliance
		}
		if a.option.EstimatedCost != b.option.EstimatedCost {
			return a.option.EstimatedCost < b.option.EstimatedCost
		}
		return a.option.EstimatedTimeHours < b.option.EstimatedTimeHours
	})

	chosen := ranked[0]

	alternatives := make([]string, 0, len(ranked)-1)
	for _, r := range ranked[1:] {
		alternatives = append(alternatives, r.option.OptionID)
	}

	// policy_scores is keyed by every option_id present in the simulation
	// (spec invariant: policy_scores.keys() == set of option_ids), one
	// composite score per key; the sub-score breakdown that drove the
	// chosen option lives in Reasoning instead.
	scores := make(map[string]float64, len(sim.Options))
	for _, r := range ranked {
		scores[r.option.OptionID] = clamp01(r.composite)
	}
	for _, o := range sim.Options {
		if o.Escalation {
			scores[o.OptionID] = 0
		}
	}

	return contracts.Decision{
		ChosenOptionID:         chosen.option.OptionID,
		Reasoning:              reasoningFor(chosen),
		AlternativesConsidered: alternatives,
		PolicyScores:           scores,
	}
}

func subScoresFor(o contracts.SimulatedOption, urgency contracts.Urgency, costCap, timeCap float64, retrieval contracts.RetrievalResult) contracts.SubScores {
	costScore := 1 - minF(o.EstimatedCost/safeDenominator(costCap), 1)
	timeScore := 1 - minF(o.EstimatedTimeHours/safeDenominator(timeCap), 1)
	satisfactionScore := clamp01(o.ResidentSatisfactionImpact)

	var alignment float64
	switch {
	case urgency == contracts.UrgencyLow:
		alignment = 1
	case o.EstimatedTimeHours <= timeCap:
		alignment = 1
	default:
		alignment = clamp01(timeCap / safeDenominator(o.EstimatedTimeHours))
	}

	policyCompliance := policyComplianceFor(o, retrieval)

	return contracts.SubScores{
		CostScore:         costScore,
		TimeScore:         timeScore,
		SatisfactionScore: satisfactionScore,
		UrgencyAlignment:  alignment,
		PolicyCompliance:  policyCompliance,
	}
}

func policyComplianceFor(o contracts.SimulatedOption, retrieval contracts.RetrievalResult) float64 {
	unique := uniqueStrings(o.SourceDocIDs)
	if len(unique) == 0 {
		return 0
	}
	matched := 0
	for _, id := range unique {
		if retrieval.Contains(id) {
			matched++
		}
	}
	return float64(matched) / float64(len(unique))
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func reasoningFor(s scored) string {
	type weighted struct {
		name  string
		value float64
	}
	candidates := []weighted{
		{"cost_score", s.subScores.CostScore},
		{"time_score", s.subScores.TimeScore},
		{"satisfaction_score", s.subScores.SatisfactionScore},
		{"urgency_alignment", s.subScores.UrgencyAlignment},
		{"policy_compliance", s.subScores.PolicyCompliance},
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].value > candidates[j].value })

	names := make([]string, 0, 2)
	for i := 0; i < 2 && i < len(candidates); i++ {
		names = append(names, candidates[i].name)
	}

	return fmt.Sprintf("Chose %q on composite score %.3f, driven by %s.", s.option.OptionID, s.composite, strings.Join(names, " and "))
}

// escalationOnlyDecision handles the all-escalation / empty fallback: no
// error, just select whichever escalation entry is present (or synthesize
// one if the option list was truly empty).
func escalationOnlyDecision(options []contracts.SimulatedOption) contracts.Decision {
	chosenID := contracts.EscalationOptionID
	scores := make(map[string]float64, len(options))
	for _, o := range options {
		scores[o.OptionID] = 0
	}
	if len(options) > 0 {
		chosenID = options[0].OptionID
	} else {
		scores[chosenID] = 0
	}
	return contracts.Decision{
		ChosenOptionID:         chosenID,
		Reasoning:              "No viable non-escalation option was available; routing to human review.",
		AlternativesConsidered: nil,
		PolicyScores:           scores,
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func safeDenominator(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}
