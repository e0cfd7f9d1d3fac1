package decider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aptmgmt/decisioncore/pkg/contracts"
)

type fakeCaps struct {
	costCap float64
	timeCap float64
	weights contracts.PolicyWeights
}

func (f fakeCaps) CostCapFor(contracts.Category) float64        { return f.costCap }
func (f fakeCaps) TimeCapFor(contracts.Urgency) float64         { return f.timeCap }
func (f fakeCaps) WeightsFor(contracts.Urgency) contracts.PolicyWeights { return f.weights }

func evenWeights() contracts.PolicyWeights {
	return contracts.PolicyWeights{Cost: 0.2, Time: 0.2, Satisfaction: 0.2, UrgencyAlignment: 0.2, PolicyCompliance: 0.2}
}

func TestChooseSelectsHighestComposite(t *testing.T) {
	caps := fakeCaps{costCap: 500, timeCap: 24, weights: evenWeights()}
	d := New(caps)

	retrieval := contracts.RetrievalResult{Chunks: []contracts.RetrievedChunk{
		{Chunk: contracts.DocumentChunk{DocID: "policy_a"}},
	}}

	cheap := contracts.SimulatedOption{OptionID: "opt_1", EstimatedCost: 50, EstimatedTimeHours: 2, ResidentSatisfactionImpact: 0.9, SourceDocIDs: []string{"policy_a"}}
	expensive := contracts.SimulatedOption{OptionID: "opt_2", EstimatedCost: 480, EstimatedTimeHours: 20, ResidentSatisfactionImpact: 0.5, SourceDocIDs: []string{"policy_a"}}

	decision := d.Choose(
		contracts.Classification{Category: contracts.CategoryMaintenance, Urgency: contracts.UrgencyMedium},
		contracts.Simulation{Options: []contracts.SimulatedOption{cheap, expensive}},
		retrieval,
	)

	assert.Equal(t, "opt_1", decision.ChosenOptionID)
	assert.Equal(t, []string{"opt_2"}, decision.AlternativesConsidered)
	assert.Contains(t, decision.Reasoning, "opt_1")

	require.Len(t, decision.PolicyScores, 2)
	assert.ElementsMatch(t, []string{"opt_1", "opt_2"}, policyScoreKeys(decision.PolicyScores))
	for _, score := range decision.PolicyScores {
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func policyScoreKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func TestChooseBreaksCompositeTiesByPolicyCompliance(t *testing.T) {
	// Policy compliance carries no weight here, so both options below reach
	// the same composite and the tie-break alone decides.
	weights := contracts.PolicyWeights{Cost: 0.25, Time: 0.25, Satisfaction: 0.25, UrgencyAlignment: 0.25, PolicyCompliance: 0}
	caps := fakeCaps{costCap: 500, timeCap: 24, weights: weights}
	d := New(caps)

	retrieval := contracts.RetrievalResult{Chunks: []contracts.RetrievedChunk{
		{Chunk: contracts.DocumentChunk{DocID: "policy_a"}},
	}}

	// Identical everything except citations: one complies with policy, one doesn't.
	compliant := contracts.SimulatedOption{OptionID: "opt_compliant", EstimatedCost: 100, EstimatedTimeHours: 5, ResidentSatisfactionImpact: 0.7, SourceDocIDs: []string{"policy_a"}}
	noncompliant := contracts.SimulatedOption{OptionID: "opt_noncompliant", EstimatedCost: 100, EstimatedTimeHours: 5, ResidentSatisfactionImpact: 0.7, SourceDocIDs: nil}

	decision := d.Choose(
		contracts.Classification{Category: contracts.CategoryMaintenance, Urgency: contracts.UrgencyMedium},
		contracts.Simulation{Options: []contracts.SimulatedOption{noncompliant, compliant}},
		retrieval,
	)

	assert.Equal(t, "opt_compliant", decision.ChosenOptionID)
}

func TestChooseFallsBackToEscalationWhenOnlyEscalationPresent(t *testing.T) {
	caps := fakeCaps{costCap: 500, timeCap: 24, weights: evenWeights()}
	d := New(caps)

	sim := contracts.Simulation{
		Options:             []contracts.SimulatedOption{contracts.NewEscalationOption("LLM failed twice")},
		RecommendedOptionID: contracts.EscalationOptionID,
		Status:              "error",
	}

	decision := d.Choose(contracts.Classification{Category: contracts.CategoryMaintenance, Urgency: contracts.UrgencyHigh}, sim, contracts.RetrievalResult{})
	assert.Equal(t, contracts.EscalationOptionID, decision.ChosenOptionID)
	assert.Empty(t, decision.AlternativesConsidered)
	assert.Equal(t, []string{contracts.EscalationOptionID}, policyScoreKeys(decision.PolicyScores))
}

func TestChooseFallsBackToEscalationWhenOptionsEmpty(t *testing.T) {
	caps := fakeCaps{costCap: 500, timeCap: 24, weights: evenWeights()}
	d := New(caps)

	decision := d.Choose(contracts.Classification{Category: contracts.CategoryMaintenance, Urgency: contracts.UrgencyHigh}, contracts.Simulation{}, contracts.RetrievalResult{})
	assert.Equal(t, contracts.EscalationOptionID, decision.ChosenOptionID)
	assert.Equal(t, []string{contracts.EscalationOptionID}, policyScoreKeys(decision.PolicyScores))
}

func TestSubScoresClampAndCapCorrectly(t *testing.T) {
	sub := subScoresFor(
		contracts.SimulatedOption{EstimatedCost: 1000, EstimatedTimeHours: 100, ResidentSatisfactionImpact: 2, SourceDocIDs: []string{"policy_a", "policy_missing"}},
		contracts.UrgencyHigh,
		500, // cost cap
		4,   // time cap
		contracts.RetrievalResult{Chunks: []contracts.RetrievedChunk{{Chunk: contracts.DocumentChunk{DocID: "policy_a"}}}},
	)

	assert.Equal(t, 0.0, sub.CostScore, "cost exceeding cap clamps the cost score to 0")
	assert.Equal(t, 0.0, sub.TimeScore, "time exceeding cap clamps the time score to 0")
	assert.Equal(t, 1.0, sub.SatisfactionScore, "satisfaction impact above 1 clamps to 1")
	assert.InDelta(t, 0.5, sub.PolicyCompliance, 1e-9, "one of two unique citations matched retrieval")
	require.Less(t, sub.UrgencyAlignment, 1.0, "time well past the High cap should decay the alignment score")
}

func TestSubScoresUrgencyAlignmentLowIsAlways1(t *testing.T) {
	sub := subScoresFor(
		contracts.SimulatedOption{EstimatedTimeHours: 1000},
		contracts.UrgencyLow,
		500, 72,
		contracts.RetrievalResult{},
	)
	assert.Equal(t, 1.0, sub.UrgencyAlignment)
}
