package classifier

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aptmgmt/decisioncore/pkg/contracts"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider/base"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider/fake"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRuleLayerHighSpecificityHit(t *testing.T) {
	c, err := New(fake.NewClient(base.Config{}), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	cls, err := c.Classify(t.Context(), "there is a gas smell coming from the kitchen stove, please help")
	require.NoError(t, err)
	assert.True(t, cls.RuleHit)
	assert.Equal(t, contracts.CategoryMaintenance, cls.Category)
	assert.Equal(t, contracts.UrgencyHigh, cls.Urgency)
	assert.GreaterOrEqual(t, cls.Confidence, contracts.MinRuleConfidence)
}

func TestClassifyFallsBackToLLMWithoutDangerCue(t *testing.T) {
	client := fake.NewClient(base.Config{})
	client.StructuredResponses = []json.RawMessage{
		mustJSON(t, llmClassification{Category: "Maintenance", Urgency: "Medium", Intent: "solve_problem", Confidence: 0.7}),
	}

	c, err := New(client, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	cls, err := c.Classify(t.Context(), "the dishwasher is draining slowly, could someone take a look")
	require.NoError(t, err)
	assert.False(t, cls.RuleHit)
	assert.Equal(t, contracts.CategoryMaintenance, cls.Category)
	assert.Equal(t, 0.7, cls.Confidence)
}

func TestClassifyRetriesOnceOnInvalidResponse(t *testing.T) {
	client := fake.NewClient(base.Config{})
	client.StructuredResponses = []json.RawMessage{
		json.RawMessage(`not json`),
		mustJSON(t, llmClassification{Category: "Billing", Urgency: "Low", Intent: "answer_question", Confidence: 0.5}),
	}

	c, err := New(client, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	cls, err := c.Classify(t.Context(), "why was I charged an extra fee this month")
	require.NoError(t, err)
	assert.Equal(t, contracts.CategoryBilling, cls.Category)
}

func TestClassifyFailsAfterTwoInvalidResponses(t *testing.T) {
	client := fake.NewClient(base.Config{})
	client.StructuredResponses = []json.RawMessage{
		json.RawMessage(`not json`),
		json.RawMessage(`still not json`),
	}

	c, err := New(client, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.Classify(t.Context(), "why was I charged an extra fee this month")
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrClassification)
}

func TestClassifyCapsLLMConfidenceAt095(t *testing.T) {
	client := fake.NewClient(base.Config{})
	client.StructuredResponses = []json.RawMessage{
		mustJSON(t, llmClassification{Category: "Amenities", Urgency: "Low", Intent: "answer_question", Confidence: 0.99}),
	}

	c, err := New(client, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	cls, err := c.Classify(t.Context(), "when does the pool close on weekends")
	require.NoError(t, err)
	assert.Equal(t, contracts.MaxLLMConfidence, cls.Confidence)
}

func TestAmbiguousCategoryDefaultsToMaintenanceForPhysicalTerms(t *testing.T) {
	assert.Equal(t, contracts.CategoryMaintenance, ambiguousCategoryDefault("the door lock seems loose"))
	assert.Equal(t, contracts.CategoryAmenities, ambiguousCategoryDefault("can I bring a guest to the clubhouse"))
}

func TestUnknownUrgencyDefaultsToMediumCapped(t *testing.T) {
	client := fake.NewClient(base.Config{})
	client.StructuredResponses = []json.RawMessage{
		mustJSON(t, llmClassification{Category: "Amenities", Urgency: "Unknown", Intent: "answer_question", Confidence: 0.9}),
	}

	c, err := New(client, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	cls, err := c.Classify(t.Context(), "is the rooftop lounge open today")
	require.NoError(t, err)
	assert.Equal(t, contracts.UrgencyMedium, cls.Urgency)
	assert.LessOrEqual(t, cls.Confidence, contracts.DefaultUrgencyConfidenceCap)
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
