package classifier

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/aptmgmt/decisioncore/pkg/contracts"
)

// specificityThreshold is the minimum bleve relevance score a rule's
// examples must reach before the rule layer is even considered a candidate,
// mirroring the teacher's rulebased.Client.selectProvider route-scoring.
const specificityThreshold = 0.25

// ruleLayer matches an incoming message against ruleTable's worked examples
// using an in-memory bleve index, the same "index example phrases, match
// query, score" shape as the teacher's model router.
type ruleLayer struct {
	index bleve.Index
}

func newRuleLayer() (*ruleLayer, error) {
	docMapping := mapping.NewDocumentMapping()
	textField := mapping.NewTextFieldMapping()
	textField.Analyzer = "en"
	docMapping.AddFieldMappingsAt("text", textField)

	indexMapping := mapping.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("creating rule index: %w", err)
	}

	for ruleIdx, r := range ruleTable {
		for exampleIdx, example := range r.Examples {
			docID := fmt.Sprintf("r%d_e%d", ruleIdx, exampleIdx)
			if err := index.Index(docID, map[string]any{"text": example}); err != nil {
				_ = index.Close()
				return nil, fmt.Errorf("indexing rule example: %w", err)
			}
		}
	}

	return &ruleLayer{index: index}, nil
}

func (rl *ruleLayer) Close() error { return rl.index.Close() }

// classify returns a Classification and true when the message both scores
// above specificityThreshold against a rule's examples AND contains one of
// that rule's explicit danger/urgency cues. Anything less specific falls
// through to the LLM, ok=false.
func (rl *ruleLayer) classify(message string) (contracts.Classification, bool) {
	if strings.TrimSpace(message) == "" {
		return contracts.Classification{}, false
	}

	query := bleve.NewMatchQuery(message)
	query.SetField("text")

	req := bleve.NewSearchRequest(query)
	req.Size = 10

	result, err := rl.index.Search(req)
	if err != nil || result.Total == 0 {
		return contracts.Classification{}, false
	}

	scores := make(map[int]float64)
	for _, hit := range result.Hits {
		var ruleIdx int
		if _, err := fmt.Sscanf(hit.ID, "r%d_e", &ruleIdx); err == nil && hit.Score > scores[ruleIdx] {
			scores[ruleIdx] = hit.Score
		}
	}

	bestRule, bestScore := -1, 0.0
	for idx, score := range scores {
		if score > bestScore {
			bestRule, bestScore = idx, score
		}
	}

	if bestRule < 0 || bestScore < specificityThreshold {
		return contracts.Classification{}, false
	}

	r := ruleTable[bestRule]
	if !hasDangerCue(message, r.DangerCues) {
		return contracts.Classification{}, false
	}

	confidence := contracts.MinRuleConfidence + 0.15*clamp01(bestScore-specificityThreshold)
	if confidence > 1 {
		confidence = 1
	}

	return contracts.Classification{
		Category:   r.Category,
		Urgency:    r.Urgency,
		Intent:     r.Intent,
		Confidence: confidence,
		RuleHit:    true,
	}, true
}

func hasDangerCue(message string, cues []string) bool {
	if len(cues) == 0 {
		return false
	}
	lower := strings.ToLower(message)
	for _, cue := range cues {
		if strings.Contains(lower, strings.ToLower(cue)) {
			return true
		}
	}
	return false
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
