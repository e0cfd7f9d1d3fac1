package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aptmgmt/decisioncore/pkg/contracts"
	"github.com/aptmgmt/decisioncore/pkg/simulator"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClassifier struct {
	result contracts.Classification
	err    error
}

func (f fakeClassifier) Classify(ctx context.Context, message string) (contracts.Classification, error) {
	return f.result, f.err
}

type fakeRetriever struct {
	retrieveResult contracts.RetrievalResult
	retrieveErr    error
	answer         contracts.Answer
	answerErr      error
}

func (f fakeRetriever) Retrieve(ctx context.Context, queryText string, category contracts.Category, buildingID string, topK int, similarityThreshold float64) (contracts.RetrievalResult, error) {
	return f.retrieveResult, f.retrieveErr
}

func (f fakeRetriever) AnswerQuestion(ctx context.Context, queryText string, category contracts.Category, buildingID string) (contracts.Answer, error) {
	return f.answer, f.answerErr
}

type fakeSimulator struct {
	sim contracts.Simulation
	err error
}

func (f fakeSimulator) GenerateOptions(ctx context.Context, in simulator.Input) (contracts.Simulation, error) {
	return f.sim, f.err
}

type fakeDecider struct {
	decision contracts.Decision
}

func (f fakeDecider) Choose(classification contracts.Classification, sim contracts.Simulation, retrieval contracts.RetrievalResult) contracts.Decision {
	return f.decision
}

func validMessage() contracts.Message {
	return contracts.Message{ResidentID: "RES_1", Text: "My AC is broken and it is very hot outside."}
}

func TestHandleMessageRejectsInvalidInput(t *testing.T) {
	o := New(fakeClassifier{}, fakeRetriever{}, fakeSimulator{}, fakeDecider{}, discardLogger(), 5, 0.5)

	_, err := o.HandleMessage(context.Background(), contracts.Message{ResidentID: "RES_1", Text: "hi"}, "bldg1", contracts.RiskAssessment{})
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)
}

func TestHandleMessageAnswerQuestionPath(t *testing.T) {
	classifier := fakeClassifier{result: contracts.Classification{Category: contracts.CategoryBilling, Urgency: contracts.UrgencyLow, Intent: contracts.IntentAnswerQuestion}}
	retriever := fakeRetriever{answer: contracts.Answer{Text: "Guests may stay up to 14 nights.", Sources: []contracts.Source{{DocID: "POLICY_007"}}, Confidence: 0.8}}
	o := New(classifier, retriever, fakeSimulator{}, fakeDecider{}, discardLogger(), 5, 0.5)

	result, err := o.HandleMessage(context.Background(), validMessage(), "bldg1", contracts.RiskAssessment{})
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusAnswered, result.Status)
	require.NotNil(t, result.Answer)
	assert.Equal(t, 0.8, result.Answer.Confidence)
}

func TestHandleMessageSolveProblemPath(t *testing.T) {
	classifier := fakeClassifier{result: contracts.Classification{Category: contracts.CategoryMaintenance, Urgency: contracts.UrgencyHigh, Intent: contracts.IntentSolveProblem}}
	retriever := fakeRetriever{retrieveResult: contracts.RetrievalResult{Chunks: []contracts.RetrievedChunk{
		{Chunk: contracts.DocumentChunk{DocID: "SLA_001"}, Similarity: 0.9},
	}}}
	sim := fakeSimulator{sim: contracts.Simulation{
		Options:             []contracts.SimulatedOption{{OptionID: "opt_1"}, {OptionID: "opt_2"}, {OptionID: "opt_3"}},
		RecommendedOptionID: "opt_1",
		Status:              "ok",
	}}
	dec := fakeDecider{decision: contracts.Decision{ChosenOptionID: "opt_1", AlternativesConsidered: []string{"opt_2", "opt_3"}}}
	o := New(classifier, retriever, sim, dec, discardLogger(), 5, 0.5)

	result, err := o.HandleMessage(context.Background(), validMessage(), "bldg1", contracts.RiskAssessment{RiskScore: 0.8, RiskLevel: contracts.RiskHigh})
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusSubmitted, result.Status)
	require.NotNil(t, result.Decision)
	assert.Equal(t, "opt_1", result.Decision.ChosenOptionID)
}

func TestHandleMessageClassifierFailureEscalates(t *testing.T) {
	classifier := fakeClassifier{err: errors.New("classifier unreachable")}
	o := New(classifier, fakeRetriever{}, fakeSimulator{}, fakeDecider{}, discardLogger(), 5, 0.5)

	result, err := o.HandleMessage(context.Background(), validMessage(), "bldg1", contracts.RiskAssessment{})
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusError, result.Status)
	assert.True(t, result.EscalationRequired)
	assert.Contains(t, result.Message, "classifier")
}

func TestHandleMessageSimulatorFailureEscalatesAndNamesStage(t *testing.T) {
	classifier := fakeClassifier{result: contracts.Classification{Category: contracts.CategoryMaintenance, Urgency: contracts.UrgencyHigh, Intent: contracts.IntentSolveProblem}}
	sim := fakeSimulator{sim: contracts.Simulation{Status: "error", Options: []contracts.SimulatedOption{contracts.NewEscalationOption("LLM failed twice")}}}
	o := New(classifier, fakeRetriever{}, sim, fakeDecider{}, discardLogger(), 5, 0.5)

	result, err := o.HandleMessage(context.Background(), validMessage(), "bldg1", contracts.RiskAssessment{})
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusError, result.Status)
	assert.True(t, result.EscalationRequired)
	assert.Contains(t, result.Message, "simulator")
}

func TestHandleMessageRetrievalEmptyIsNotAnErrorForSolveProblem(t *testing.T) {
	classifier := fakeClassifier{result: contracts.Classification{Category: contracts.CategoryMaintenance, Urgency: contracts.UrgencyMedium, Intent: contracts.IntentSolveProblem}}
	retriever := fakeRetriever{retrieveErr: contracts.ErrRetrievalEmpty}
	sim := fakeSimulator{sim: contracts.Simulation{
		Options: []contracts.SimulatedOption{{OptionID: "opt_1"}, {OptionID: "opt_2"}, {OptionID: "opt_3"}},
		Status:  "ok",
	}}
	dec := fakeDecider{decision: contracts.Decision{ChosenOptionID: "opt_1"}}
	o := New(classifier, retriever, sim, dec, discardLogger(), 5, 0.5)

	result, err := o.HandleMessage(context.Background(), validMessage(), "bldg1", contracts.RiskAssessment{})
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusSubmitted, result.Status)
}
