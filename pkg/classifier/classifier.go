// Package classifier maps a resident message to a contracts.Classification
// via a two-stage pipeline: a deterministic rule layer, falling back to a
// single structured-output LLM call, per spec.md §4.4.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aptmgmt/decisioncore/pkg/chat"
	"github.com/aptmgmt/decisioncore/pkg/contracts"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider/base"
)

// physicalPropertyTerms are the cues used to break a genuinely ambiguous
// category toward Maintenance rather than Amenities, per spec.md 4.4.
var physicalPropertyTerms = []string{
	"leak", "broken", "not working", "pipe", "heat", "ac", "air condition",
	"electrical", "outlet", "appliance", "door", "window", "lock", "mold",
	"pest", "smell", "noise", "water", "ceiling", "floor",
}

var validCategories = map[contracts.Category]bool{
	contracts.CategoryMaintenance: true,
	contracts.CategoryBilling:     true,
	contracts.CategorySecurity:    true,
	contracts.CategoryDeliveries:  true,
	contracts.CategoryAmenities:   true,
}

var validUrgencies = map[contracts.Urgency]bool{
	contracts.UrgencyHigh:   true,
	contracts.UrgencyMedium: true,
	contracts.UrgencyLow:    true,
}

var validIntents = map[contracts.Intent]bool{
	contracts.IntentSolveProblem:    true,
	contracts.IntentAnswerQuestion:  true,
	contracts.IntentHumanEscalation: true,
}

// Classifier is a pure function of (message, rule tables, LLM): no
// observable side effects beyond the LLM call itself.
type Classifier struct {
	rules  *ruleLayer
	llm    modelprovider.Provider
	logger *slog.Logger
}

// New builds a Classifier, constructing its in-memory rule index.
func New(llm modelprovider.Provider, logger *slog.Logger) (*Classifier, error) {
	rules, err := newRuleLayer()
	if err != nil {
		return nil, err
	}
	return &Classifier{rules: rules, llm: llm, logger: logger}, nil
}

// Close releases the rule layer's index.
func (c *Classifier) Close() error { return c.rules.Close() }

// Classify returns the resident message's Classification: an immediate rule
// hit when one scores high enough, otherwise an LLM structured-output call
// with one retry on an invalid response.
func (c *Classifier) Classify(ctx context.Context, message string) (contracts.Classification, error) {
	if cls, ok := c.rules.classify(message); ok {
		c.logger.Debug("classifier: rule layer hit", "category", cls.Category, "urgency", cls.Urgency)
		return cls, nil
	}

	cls, err := c.classifyViaLLM(ctx, message)
	if err != nil {
		return contracts.Classification{}, err
	}
	return cls, nil
}

var classificationSchema = base.StructuredOutputSchema{
	Name: "classification",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"category":   map[string]any{"type": "string", "enum": []string{"Maintenance", "Billing", "Security", "Deliveries", "Amenities"}},
			"urgency":    map[string]any{"type": "string", "enum": []string{"High", "Medium", "Low"}},
			"intent":     map[string]any{"type": "string", "enum": []string{"solve_problem", "answer_question", "human_escalation"}},
			"confidence": map[string]any{"type": "number"},
		},
		"required":             []string{"category", "urgency", "intent", "confidence"},
		"additionalProperties": false,
	},
}

const classifierSystemPrompt = `You classify resident messages for a property management system.
Return category, urgency, intent and your confidence in that classification.
category must be one of: Maintenance, Billing, Security, Deliveries, Amenities.
urgency must be one of: High, Medium, Low.
intent must be one of: solve_problem, answer_question, human_escalation.`

type llmClassification struct {
	Category   string  `json:"category"`
	Urgency    string  `json:"urgency"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

func (c *Classifier) classifyViaLLM(ctx context.Context, message string) (contracts.Classification, error) {
	messages := []chat.Message{
		chat.System(classifierSystemPrompt),
		chat.User(message),
	}

	raw, err := c.llm.CreateStructuredCompletion(ctx, messages, classificationSchema)
	if err != nil {
		return contracts.Classification{}, fmt.Errorf("%w: %w", contracts.ErrLLMFailure, err)
	}

	cls, ok := parseAndValidate(raw, message)
	if ok {
		return cls, nil
	}

	c.logger.Warn("classifier: invalid LLM response, retrying once")
	retryMessages := append(messages, chat.User("Your previous response was invalid or used an unrecognised value. Respond again using only the allowed values."))
	raw, err = c.llm.CreateStructuredCompletion(ctx, retryMessages, classificationSchema)
	if err != nil {
		return contracts.Classification{}, fmt.Errorf("%w: %w", contracts.ErrLLMFailure, err)
	}

	cls, ok = parseAndValidate(raw, message)
	if !ok {
		return contracts.Classification{}, fmt.Errorf("%w: LLM returned an invalid classification twice", contracts.ErrClassification)
	}
	return cls, nil
}

// parseAndValidate decodes raw and applies spec.md 4.4's tie-break defaults
// for any field the model left invalid or empty, reporting ok=false only
// when the response cannot be decoded at all.
func parseAndValidate(raw json.RawMessage, message string) (contracts.Classification, bool) {
	var parsed llmClassification
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return contracts.Classification{}, false
	}

	category := contracts.Category(parsed.Category)
	if !validCategories[category] {
		category = ambiguousCategoryDefault(message)
	}

	urgency := contracts.Urgency(parsed.Urgency)
	confidence := parsed.Confidence
	if !validUrgencies[urgency] {
		urgency = contracts.UrgencyMedium
		if confidence > contracts.DefaultUrgencyConfidenceCap {
			confidence = contracts.DefaultUrgencyConfidenceCap
		}
	}

	intent := contracts.Intent(parsed.Intent)
	if !validIntents[intent] {
		intent = defaultIntent(message)
	}

	if confidence > contracts.MaxLLMConfidence {
		confidence = contracts.MaxLLMConfidence
	}
	if confidence < 0 {
		confidence = 0
	}

	return contracts.Classification{
		Category:   category,
		Urgency:    urgency,
		Intent:     intent,
		Confidence: confidence,
		RuleHit:    false,
	}, true
}

// ambiguousCategoryDefault implements spec.md 4.4's tie-break: prefer
// Maintenance when a physical-property term appears, otherwise Amenities.
func ambiguousCategoryDefault(message string) contracts.Category {
	lower := strings.ToLower(message)
	for _, term := range physicalPropertyTerms {
		if strings.Contains(lower, term) {
			return contracts.CategoryMaintenance
		}
	}
	return contracts.CategoryAmenities
}

// defaultIntent implements spec.md 4.4's default: solve_problem, unless the
// message is interrogative without a concrete complaint, in which case
// answer_question.
func defaultIntent(message string) contracts.Intent {
	trimmed := strings.TrimSpace(message)
	if strings.HasSuffix(trimmed, "?") && !containsComplaintVerb(trimmed) {
		return contracts.IntentAnswerQuestion
	}
	return contracts.IntentSolveProblem
}

var complaintVerbs = []string{"broken", "leaking", "not working", "stopped working", "won't", "doesn't work", "is out"}

func containsComplaintVerb(message string) bool {
	lower := strings.ToLower(message)
	for _, verb := range complaintVerbs {
		if strings.Contains(lower, verb) {
			return true
		}
	}
	return false
}
