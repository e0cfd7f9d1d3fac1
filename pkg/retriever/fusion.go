package retriever

import (
	"cmp"
	"slices"

	"github.com/aptmgmt/decisioncore/pkg/contracts"
)

// reciprocalRankFusion combines ranked result sets from independent
// retrieval arms into one ranking, ported from the teacher's
// pkg/rag/fusion.ReciprocalRankFusion: the RRF algorithm itself needs no
// adaptation, only its input/output types change.
//
// score(chunk) = Σ 1/(k + rank), rank starting at 1 within each arm.
type reciprocalRankFusion struct {
	k int
}

func newReciprocalRankFusion(k int) reciprocalRankFusion {
	return reciprocalRankFusion{k: cmp.Or(k, 60)}
}

// fuse merges named result sets. With zero or one non-empty arm, that arm's
// own ordering passes through unchanged; RRF scoring only applies once two
// or more arms contribute results for the same query.
func (rrf reciprocalRankFusion) fuse(arms map[string][]contracts.RetrievedChunk) []contracts.RetrievedChunk {
	nonEmpty := 0
	var only []contracts.RetrievedChunk
	for _, results := range arms {
		if len(results) > 0 {
			nonEmpty++
			only = results
		}
	}
	if nonEmpty <= 1 {
		return only
	}

	type fused struct {
		chunk contracts.RetrievedChunk
		score float64
	}
	byID := make(map[string]*fused)

	for _, results := range arms {
		for rank, r := range results {
			f, ok := byID[r.Chunk.ChunkID]
			if !ok {
				f = &fused{chunk: r}
				byID[r.Chunk.ChunkID] = f
			}
			f.score += 1.0 / float64(rrf.k+rank+1)
		}
	}

	merged := make([]*fused, 0, len(byID))
	for _, f := range byID {
		merged = append(merged, f)
	}
	slices.SortFunc(merged, func(a, b *fused) int { return cmp.Compare(b.score, a.score) })

	out := make([]contracts.RetrievedChunk, len(merged))
	for i, f := range merged {
		out[i] = contracts.RetrievedChunk{Chunk: f.chunk.Chunk, Similarity: f.score}
	}
	return out
}
