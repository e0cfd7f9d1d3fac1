// Package simulator produces 3-4 candidate resolution options for a
// classified resident message, grounded in retrieved policy chunks and two
// history tools, per spec.md §4.5.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aptmgmt/decisioncore/pkg/chat"
	"github.com/aptmgmt/decisioncore/pkg/contracts"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider/base"
	"github.com/aptmgmt/decisioncore/pkg/reqstore"
)

const (
	minOptions = 3
	maxOptions = 4
)

// Input bundles everything the option-generation prompt needs.
type Input struct {
	Classification contracts.Classification
	Message        contracts.Message
	Risk           contracts.RiskAssessment
	Retrieval      contracts.RetrievalResult
}

// Simulator is a single internal agent: one structured-output call per
// generation, backed by two direct tool calls fanned out in parallel. It
// never hands off to another agent.
type Simulator struct {
	llm              modelprovider.Provider
	store            reqstore.Client
	logger           *slog.Logger
	toolTimeout      time.Duration
	recurrenceWindow time.Duration
}

// New builds a Simulator. toolTimeout bounds each of query_past_solutions
// and check_recurring_issues independently; recurrenceWindow bounds how far
// back check_recurring_issues looks for same-category requests (spec's
// glossary default: 90 days).
func New(llm modelprovider.Provider, store reqstore.Client, logger *slog.Logger, toolTimeout, recurrenceWindow time.Duration) *Simulator {
	return &Simulator{llm: llm, store: store, logger: logger, toolTimeout: toolTimeout, recurrenceWindow: recurrenceWindow}
}

// recurrenceSignal is check_recurring_issues's result shape, per spec.md §4.5.
type recurrenceSignal struct {
	CountLast90Days   int
	LastOccurrence    string
	SameCategoryCount int
}

// GenerateOptions runs the tool fan-out, then prompts the model for options,
// retrying once on a parse/validation failure before falling back to a
// single escalation option with status="error".
func (s *Simulator) GenerateOptions(ctx context.Context, in Input) (contracts.Simulation, error) {
	history, recurrence := s.gatherToolContext(ctx, in.Message.ResidentID, in.Classification.Category)

	prompt := buildPrompt(in, history, recurrence)
	messages := []chat.Message{
		chat.System(optionGenerationSystemPrompt),
		chat.User(prompt),
	}

	options, ok := s.attemptGeneration(ctx, messages, in)
	if !ok {
		s.logger.Warn("simulator: retrying option generation once")
		messages = append(messages, chat.User("Your previous response was invalid JSON or failed validation. Respond again with a JSON object matching the schema exactly."))
		options, ok = s.attemptGeneration(ctx, messages, in)
	}

	if !ok {
		diagnostic := "simulator LLM returned an invalid response twice; routing to human review"
		s.logger.Error("simulator: option generation failed twice", "resident_id", in.Message.ResidentID)
		return contracts.Simulation{
			Options:             []contracts.SimulatedOption{contracts.NewEscalationOption(diagnostic)},
			RecommendedOptionID: contracts.EscalationOptionID,
			Status:              "error",
		}, nil
	}

	options = enforceOptionCount(options)
	recommended := recommend(options)

	return contracts.Simulation{
		Options:             options,
		RecommendedOptionID: recommended,
		Status:              "ok",
	}, nil
}

// attemptGeneration runs one prompted -> parsed_ok -> validated_ok step of
// the generation state machine.
func (s *Simulator) attemptGeneration(ctx context.Context, messages []chat.Message, in Input) ([]contracts.SimulatedOption, bool) {
	raw, err := s.llm.CreateStructuredCompletion(ctx, messages, optionSchema)
	if err != nil {
		s.logger.Warn("simulator: LLM call failed", "error", err)
		return nil, false
	}

	var parsed struct {
		Options []rawOption `json:"options"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		s.logger.Warn("simulator: LLM response did not parse", "error", err)
		return nil, false
	}
	if len(parsed.Options) == 0 {
		return nil, false
	}

	return validateOptions(parsed.Options, in.Retrieval), true
}

func (s *Simulator) gatherToolContext(ctx context.Context, residentID string, category contracts.Category) ([]reqstore.PastRequest, recurrenceSignal) {
	var history []reqstore.PastRequest
	var recurrence recurrenceSignal

	var g errgroup.Group

	g.Go(func() error {
		tctx, cancel := context.WithTimeout(ctx, s.toolTimeout)
		defer cancel()
		h, err := s.store.ListByResident(tctx, residentID)
		if err != nil {
			s.logger.Warn("query_past_solutions unavailable, continuing with empty history", "error", err)
			return nil
		}
		history = h
		return nil
	})

	g.Go(func() error {
		tctx, cancel := context.WithTimeout(ctx, s.toolTimeout)
		defer cancel()
		h, err := s.store.ListByResident(tctx, residentID)
		if err != nil {
			s.logger.Warn("check_recurring_issues unavailable, continuing without signal", "error", err)
			return nil
		}
		recurrence = computeRecurrence(h, category, s.recurrenceWindow, time.Now().UTC())
		return nil
	})

	_ = g.Wait() // both goroutines recover their own errors; Wait never actually returns one

	return history, recurrence
}

// computeRecurrence counts same-category requests created within window of
// now. A request whose CreatedAt doesn't parse as RFC3339 is treated as
// out-of-window rather than guessed at. SameCategoryCount only ever reflects
// in-window requests; CountLast90Days is its spec-named alias (the window is
// configurable, but the field name is fixed by spec.md §4.5's glossary).
func computeRecurrence(history []reqstore.PastRequest, category contracts.Category, window time.Duration, now time.Time) recurrenceSignal {
	var sig recurrenceSignal
	cutoff := now.Add(-window)
	for _, r := range history {
		if r.Category != string(category) {
			continue
		}
		createdAt, err := time.Parse(time.RFC3339, r.CreatedAt)
		if err != nil || createdAt.Before(cutoff) {
			continue
		}
		sig.SameCategoryCount++
		if sig.LastOccurrence == "" || r.CreatedAt > sig.LastOccurrence {
			sig.LastOccurrence = r.CreatedAt
		}
	}
	sig.CountLast90Days = sig.SameCategoryCount
	return sig
}

const optionGenerationSystemPrompt = `You generate 3 to 4 candidate resolutions for a resident's maintenance/billing/security/delivery/amenity request.
Ground every option in the supplied policy excerpts: cite their doc_id in source_doc_ids.
Be concrete in "steps". Cost and time estimates must be non-negative; resident_satisfaction_impact must be in [0,1].
If resident history shows a recurring issue, mention it in "reasoning".`

var optionSchema = base.StructuredOutputSchema{
	Name: "simulated_options",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"options": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"action":                        map[string]any{"type": "string"},
						"steps":                         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"estimated_cost":                map[string]any{"type": "number"},
						"estimated_time_hours":          map[string]any{"type": "number"},
						"resident_satisfaction_impact": map[string]any{"type": "number"},
						"reasoning":                     map[string]any{"type": "string"},
						"source_doc_ids":                map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
					"required": []string{"action", "steps", "estimated_cost", "estimated_time_hours", "resident_satisfaction_impact", "reasoning", "source_doc_ids"},
				},
			},
		},
		"required": []string{"options"},
	},
}

type rawOption struct {
	Action                     string   `json:"action"`
	Steps                      []string `json:"steps"`
	EstimatedCost              float64  `json:"estimated_cost"`
	EstimatedTimeHours         float64  `json:"estimated_time_hours"`
	ResidentSatisfactionImpact float64  `json:"resident_satisfaction_impact"`
	Reasoning                  string   `json:"reasoning"`
	SourceDocIDs               []string `json:"source_doc_ids"`
}

func buildPrompt(in Input, history []reqstore.PastRequest, recurrence recurrenceSignal) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Message: %s\n", in.Message.Text)
	fmt.Fprintf(&b, "Classification: category=%s urgency=%s intent=%s\n", in.Classification.Category, in.Classification.Urgency, in.Classification.Intent)
	fmt.Fprintf(&b, "Risk: score=%.2f level=%s\n", in.Risk.RiskScore, in.Risk.RiskLevel)

	if len(in.Message.Preferences) > 0 {
		b.WriteString("Resident preferences:\n")
		for k, v := range in.Message.Preferences {
			fmt.Fprintf(&b, "  %s: %s\n", k, v)
		}
	}

	b.WriteString("Retrieved policy excerpts:\n")
	if len(in.Retrieval.Chunks) == 0 {
		b.WriteString("  (none retrieved)\n")
	}
	for _, c := range in.Retrieval.Chunks {
		fmt.Fprintf(&b, "  [doc_id=%s] %s\n", c.Chunk.DocID, snippetFor(c.Chunk.BodyText))
	}

	fmt.Fprintf(&b, "Resident history: %d prior requests.\n", len(history))
	fmt.Fprintf(&b, "Recurrence signal: %d occurrences of %s within the recurrence window (last: %s).\n",
		recurrence.SameCategoryCount, in.Classification.Category, valueOrNone(recurrence.LastOccurrence))

	return b.String()
}

func snippetFor(body string) string {
	const max = 200
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	return body[:max] + "…"
}

func valueOrNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// validateOptions assigns stable option ids and enforces spec.md §4.5's
// field-level contract: clamp out-of-range numerics, strip citations not
// present in retrieval, flag whichever of those happened.
func validateOptions(raw []rawOption, retrieval contracts.RetrievalResult) []contracts.SimulatedOption {
	out := make([]contracts.SimulatedOption, 0, len(raw))
	for i, r := range raw {
		flagged := false

		cost := r.EstimatedCost
		if cost < 0 {
			cost = 0
			flagged = true
		}
		timeHours := r.EstimatedTimeHours
		if timeHours < 0 {
			timeHours = 0
			flagged = true
		}
		satisfaction := r.ResidentSatisfactionImpact
		if satisfaction < 0 {
			satisfaction = 0
			flagged = true
		} else if satisfaction > 1 {
			satisfaction = 1
			flagged = true
		}

		citations := make([]string, 0, len(r.SourceDocIDs))
		for _, docID := range r.SourceDocIDs {
			if retrieval.Contains(docID) {
				citations = append(citations, docID)
			} else {
				flagged = true
			}
		}
		if len(citations) == 0 && len(r.SourceDocIDs) > 0 {
			flagged = true
		}

		out = append(out, contracts.SimulatedOption{
			OptionID:                   fmt.Sprintf("opt_%d", i+1),
			Action:                     r.Action,
			Steps:                      r.Steps,
			EstimatedCost:              cost,
			EstimatedTimeHours:         timeHours,
			ResidentSatisfactionImpact: satisfaction,
			Reasoning:                  r.Reasoning,
			SourceDocIDs:               citations,
			Flagged:                    flagged,
		})
	}
	return out
}

// enforceOptionCount pads a short option list with distinct escalation
// options, or truncates a long one to the top 4 by the simulator's own
// preliminary ranking, per spec.md §4.5.
func enforceOptionCount(options []contracts.SimulatedOption) []contracts.SimulatedOption {
	if len(options) < minOptions {
		for i := len(options); i < minOptions; i++ {
			escalation := contracts.NewEscalationOption("fewer than 3 options were generated; padding with escalation")
			if i > 0 {
				escalation.OptionID = fmt.Sprintf("%s_%d", contracts.EscalationOptionID, i+1)
			}
			options = append(options, escalation)
		}
		return options
	}

	if len(options) > maxOptions {
		sorted := make([]contracts.SimulatedOption, len(options))
		copy(sorted, options)
		sort.SliceStable(sorted, func(i, j int) bool { return rankScore(sorted[i]) > rankScore(sorted[j]) })
		return sorted[:maxOptions]
	}

	return options
}

// rankScore is the simulator's own first-pass preference heuristic: higher
// satisfaction, lower cost, and lower time all count in an option's favor.
// It is deliberately simple; the Decider's weighted scoring is authoritative.
func rankScore(o contracts.SimulatedOption) float64 {
	return o.ResidentSatisfactionImpact - o.EstimatedCost/1000 - o.EstimatedTimeHours/100
}

func recommend(options []contracts.SimulatedOption) string {
	best := options[0]
	bestScore := rankScore(best)
	for _, o := range options[1:] {
		if score := rankScore(o); score > bestScore {
			best, bestScore = o, score
		}
	}
	return best.OptionID
}
