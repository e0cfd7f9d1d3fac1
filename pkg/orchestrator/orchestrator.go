// Package orchestrator sequences Classifier -> Retriever -> (Simulator ->
// Decider) and packages the result for the caller, per spec.md §4.7. It
// never panics: every pipeline failure becomes a structured contracts.Result;
// only invalid input is returned as a Go error, surfaced verbatim.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aptmgmt/decisioncore/pkg/contracts"
	"github.com/aptmgmt/decisioncore/pkg/decider"
	"github.com/aptmgmt/decisioncore/pkg/simulator"
)

// classifierClient is the narrow surface the Orchestrator needs from the Classifier.
type classifierClient interface {
	Classify(ctx context.Context, message string) (contracts.Classification, error)
}

// retrieverClient is the narrow surface the Orchestrator needs from the Retriever.
type retrieverClient interface {
	Retrieve(ctx context.Context, queryText string, category contracts.Category, buildingID string, topK int, similarityThreshold float64) (contracts.RetrievalResult, error)
	AnswerQuestion(ctx context.Context, queryText string, category contracts.Category, buildingID string) (contracts.Answer, error)
}

// simulatorClient is the narrow surface the Orchestrator needs from the Simulator.
type simulatorClient interface {
	GenerateOptions(ctx context.Context, in simulator.Input) (contracts.Simulation, error)
}

// deciderClient is the narrow surface the Orchestrator needs from the Decider.
type deciderClient interface {
	Choose(classification contracts.Classification, sim contracts.Simulation, retrieval contracts.RetrievalResult) contracts.Decision
}

// Orchestrator wires the four pipeline stages together.
type Orchestrator struct {
	classifier classifierClient
	retriever  retrieverClient
	simulator  simulatorClient
	decider    deciderClient
	logger     *slog.Logger

	ragTopK               int
	ragSimilarityThreshold float64
}

// New builds an Orchestrator. ragTopK and ragSimilarityThreshold parameterise
// the solve_problem/human_escalation retrieval call.
func New(classifier classifierClient, retriever retrieverClient, sim simulatorClient, dec deciderClient, logger *slog.Logger, ragTopK int, ragSimilarityThreshold float64) *Orchestrator {
	return &Orchestrator{
		classifier:             classifier,
		retriever:              retriever,
		simulator:              sim,
		decider:                dec,
		logger:                 logger,
		ragTopK:                ragTopK,
		ragSimilarityThreshold: ragSimilarityThreshold,
	}
}

// HandleMessage runs the full pipeline. An error return means invalid input,
// surfaced verbatim; every other failure is folded into Result.Status="error".
func (o *Orchestrator) HandleMessage(ctx context.Context, message contracts.Message, buildingID string, risk contracts.RiskAssessment) (contracts.Result, error) {
	if err := message.Validate(); err != nil {
		return contracts.Result{}, err
	}

	classification, err := o.classifier.Classify(ctx, message.Text)
	if err != nil {
		o.logger.Error("orchestrator: classification failed", "error", err)
		return errorResult(classification, "classifier", err), nil
	}

	if classification.Intent == contracts.IntentAnswerQuestion {
		return o.handleAnswerQuestion(ctx, classification, message, buildingID)
	}
	return o.handleSolveProblem(ctx, classification, message, buildingID, risk)
}

func (o *Orchestrator) handleAnswerQuestion(ctx context.Context, classification contracts.Classification, message contracts.Message, buildingID string) (contracts.Result, error) {
	answer, err := o.retriever.AnswerQuestion(ctx, message.Text, classification.Category, buildingID)
	if err != nil {
		o.logger.Error("orchestrator: answer_question failed", "error", err)
		return errorResult(classification, "retriever", err), nil
	}

	return contracts.Result{
		Status:         contracts.StatusAnswered,
		Classification: classification,
		Answer:         &answer,
	}, nil
}

func (o *Orchestrator) handleSolveProblem(ctx context.Context, classification contracts.Classification, message contracts.Message, buildingID string, risk contracts.RiskAssessment) (contracts.Result, error) {
	retrieval, err := o.retriever.Retrieve(ctx, message.Text, classification.Category, buildingID, o.ragTopK, o.ragSimilarityThreshold)
	if err != nil && !errors.Is(err, contracts.ErrRetrievalEmpty) {
		o.logger.Error("orchestrator: retrieval failed", "error", err)
		return errorResult(classification, "retriever", err), nil
	}

	sim, err := o.simulator.GenerateOptions(ctx, simulator.Input{
		Classification: classification,
		Message:        message,
		Risk:           risk,
		Retrieval:      retrieval,
	})
	if err != nil {
		o.logger.Error("orchestrator: simulator failed", "error", err)
		return errorResult(classification, "simulator", err), nil
	}
	if sim.Status == "error" {
		return errorResult(classification, "simulator", fmt.Errorf("%w: option generation failed twice", contracts.ErrLLMFailure)), nil
	}

	decision := o.decider.Choose(classification, sim, retrieval)

	return contracts.Result{
		Status:         contracts.StatusSubmitted,
		Classification: classification,
		Simulation:     &sim,
		Decision:       &decision,
	}, nil
}

func errorResult(classification contracts.Classification, stage string, err error) contracts.Result {
	return contracts.Result{
		Status:             contracts.StatusError,
		Classification:     classification,
		Message:            fmt.Sprintf("%s: %v", stage, err),
		EscalationRequired: true,
	}
}
