// Package retriever serves filtered top-K similarity queries over the
// knowledge base and composes grounded, citation-bearing answers for
// question-intent messages, per spec.md §4.3.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aptmgmt/decisioncore/pkg/chat"
	"github.com/aptmgmt/decisioncore/pkg/contracts"
	"github.com/aptmgmt/decisioncore/pkg/kb/embed"
	"github.com/aptmgmt/decisioncore/pkg/kb/store"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider"
)

// vectorSearcher and keywordSearcher narrow pkg/kb/store to what the
// retriever needs, so tests can substitute fakes without a real database.
type vectorSearcher interface {
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]contracts.RetrievedChunk, error)
}

type keywordSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]contracts.RetrievedChunk, error)
}

// Retriever answers retrieve and answer_question requests.
type Retriever struct {
	vectors  vectorSearcher
	keywords keywordSearcher
	embedder *embed.Embedder
	llm      modelprovider.Provider
	logger   *slog.Logger

	defaultTopK   int
	rrfOverfetch  int
}

// New builds a Retriever. keywords may be nil, in which case retrieval is
// vector-only (bleve index not yet built is not a fatal condition).
func New(vectors *store.VectorStore, keywords *store.KeywordIndex, embedder *embed.Embedder, llm modelprovider.Provider, logger *slog.Logger) *Retriever {
	var kw keywordSearcher
	if keywords != nil {
		kw = keywords
	}
	return &Retriever{
		vectors:      vectors,
		keywords:     kw,
		embedder:     embedder,
		llm:          llm,
		logger:       logger,
		defaultTopK:  5,
		rrfOverfetch: 4,
	}
}

// Retrieve computes the query embedding, searches both arms (vector always,
// keyword when available), applies the building/category metadata filter to
// each arm, fuses them, and returns chunks passing similarityThreshold ordered
// descending, truncated to topK. It never pads a short result.
func (r *Retriever) Retrieve(ctx context.Context, queryText string, category contracts.Category, buildingID string, topK int, similarityThreshold float64) (contracts.RetrievalResult, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	queryVec, err := r.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return contracts.RetrievalResult{}, err
	}

	fetchK := topK * r.rrfOverfetch

	vectorHits, err := r.vectors.Search(ctx, queryVec, fetchK)
	if err != nil {
		return contracts.RetrievalResult{}, fmt.Errorf("vector search: %w", err)
	}

	arms := map[string][]contracts.RetrievedChunk{"vector": filterByScope(vectorHits, category, buildingID)}
	if r.keywords != nil {
		keywordHits, err := r.keywords.Search(ctx, queryText, fetchK)
		if err != nil {
			r.logger.Warn("keyword search failed, continuing vector-only", "error", err)
		} else {
			arms["keyword"] = filterByScope(keywordHits, category, buildingID)
		}
	}

	fused := newReciprocalRankFusion(60).fuse(arms)

	passing := make([]contracts.RetrievedChunk, 0, len(fused))
	for _, c := range fused {
		if c.Similarity >= similarityThreshold {
			passing = append(passing, c)
		}
	}

	sortWithTieBreak(passing)

	if len(passing) > topK {
		passing = passing[:topK]
	}

	return contracts.RetrievalResult{Chunks: passing}, nil
}

// filterByScope keeps chunks whose building_id metadata is either the
// requested building or "all_buildings", and, when category is non-empty,
// whose category metadata matches.
func filterByScope(hits []contracts.RetrievedChunk, category contracts.Category, buildingID string) []contracts.RetrievedChunk {
	out := make([]contracts.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		b := h.Chunk.Metadata["building_id"]
		if b != buildingID && b != contracts.AllBuildings {
			continue
		}
		if category != "" && h.Chunk.Metadata["category"] != string(category) {
			continue
		}
		out = append(out, h)
	}
	return out
}

// sortWithTieBreak orders by descending similarity; equal-similarity chunks
// are broken by (larger version, more recent last_updated, lexicographic
// doc_id), per spec.md §4.3.
func sortWithTieBreak(chunks []contracts.RetrievedChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if va, vb := a.Chunk.Metadata["version"], b.Chunk.Metadata["version"]; va != vb {
			return va > vb
		}
		if la, lb := a.Chunk.Metadata["last_updated"], b.Chunk.Metadata["last_updated"]; la != lb {
			return la > lb
		}
		return a.Chunk.DocID < b.Chunk.DocID
	})
}

const groundedQASystemPrompt = `You answer resident questions using only the policy excerpts provided below.
Each excerpt is labelled with its doc_id. Answer strictly from these excerpts;
if they do not support an answer, reply exactly with:
"` + contracts.NotFoundText + `"
Cite the doc_id of every excerpt you rely on.`

// AnswerQuestion retrieves supporting chunks and composes a grounded answer
// constrained to them, with citations deduplicated by doc_id and confidence
// derived monotonically from the retrieved similarities.
func (r *Retriever) AnswerQuestion(ctx context.Context, queryText string, category contracts.Category, buildingID string) (contracts.Answer, error) {
	result, err := r.Retrieve(ctx, queryText, category, buildingID, 5, 0.5)
	if err != nil {
		return contracts.Answer{}, err
	}

	if len(result.Chunks) == 0 {
		return contracts.Answer{Text: contracts.NotFoundText, Confidence: 0}, nil
	}

	prompt := buildGroundedPrompt(queryText, result.Chunks)
	text, err := r.llm.CreateChatCompletion(ctx, []chat.Message{
		chat.System(groundedQASystemPrompt),
		chat.User(prompt),
	})
	if err != nil {
		return contracts.Answer{}, fmt.Errorf("%w: %w", contracts.ErrLLMFailure, err)
	}

	return contracts.Answer{
		Text:       strings.TrimSpace(text),
		Sources:    sourcesFrom(result.Chunks),
		Confidence: confidenceFrom(result.Chunks),
	}, nil
}

func buildGroundedPrompt(queryText string, chunks []contracts.RetrievedChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nExcerpts:\n", queryText)
	for _, c := range chunks {
		fmt.Fprintf(&b, "[doc_id=%s]\n%s\n\n", c.Chunk.DocID, c.Chunk.BodyText)
	}
	return b.String()
}

// sourcesFrom deduplicates chunks by doc_id, keeping the first (highest
// ranked) snippet per document.
func sourcesFrom(chunks []contracts.RetrievedChunk) []contracts.Source {
	seen := make(map[string]bool, len(chunks))
	var sources []contracts.Source
	for _, c := range chunks {
		if seen[c.Chunk.DocID] {
			continue
		}
		seen[c.Chunk.DocID] = true
		sources = append(sources, contracts.Source{DocID: c.Chunk.DocID, Snippet: snippet(c.Chunk.BodyText)})
	}
	return sources
}

func snippet(body string) string {
	const max = 240
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	return body[:max] + "…"
}

// confidenceFrom clamps the mean of the retrieved similarities to [0,1].
func confidenceFrom(chunks []contracts.RetrievedChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	var sum float64
	for _, c := range chunks {
		sum += c.Similarity
	}
	mean := sum / float64(len(chunks))
	return clamp01(mean)
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
