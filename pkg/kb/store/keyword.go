package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/aptmgmt/decisioncore/pkg/contracts"
)

// indexedChunk is the document shape fed to bleve: body text plus the flat
// metadata fields worth matching keyword queries against.
type indexedChunk struct {
	DocID      string `json:"doc_id"`
	Category   string `json:"category"`
	BuildingID string `json:"building_id"`
	Keywords   string `json:"keywords"`
	BodyText   string `json:"body_text"`
}

// KeywordIndex is an in-memory bleve full-text index over chunk bodies,
// rebuilt wholesale alongside the VectorStore and swapped under a mutex so
// a rebuild in flight never serves a half-populated index.
type KeywordIndex struct {
	logger *slog.Logger

	mu     sync.RWMutex
	index  bleve.Index
	chunks map[string]contracts.DocumentChunk
}

// NewKeywordIndex builds an empty in-memory keyword index.
func NewKeywordIndex(logger *slog.Logger) (*KeywordIndex, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating keyword index: %w", err)
	}
	return &KeywordIndex{logger: logger, index: idx, chunks: map[string]contracts.DocumentChunk{}}, nil
}

// Rebuild replaces the index contents with chunks in one atomic swap: a new
// in-memory index is built off to the side and only installed once complete.
func (k *KeywordIndex) Rebuild(_ context.Context, chunks []contracts.DocumentChunk) error {
	next, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return fmt.Errorf("creating replacement keyword index: %w", err)
	}

	byID := make(map[string]contracts.DocumentChunk, len(chunks))
	for _, c := range chunks {
		doc := indexedChunk{
			DocID:      c.DocID,
			Category:   c.Metadata["category"],
			BuildingID: c.Metadata["building_id"],
			Keywords:   c.Metadata["keywords"],
			BodyText:   c.BodyText,
		}
		if err := next.Index(c.ChunkID, doc); err != nil {
			return fmt.Errorf("indexing chunk %q: %w", c.ChunkID, err)
		}
		byID[c.ChunkID] = c
	}

	k.mu.Lock()
	old := k.index
	k.index = next
	k.chunks = byID
	k.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	k.logger.Info("keyword index rebuilt", "chunks", len(chunks))
	return nil
}

// Search runs a keyword match query and returns the topK matching chunks
// ranked by bleve's relevance score, descending.
func (k *KeywordIndex) Search(_ context.Context, query string, topK int) ([]contracts.RetrievedChunk, error) {
	k.mu.RLock()
	idx, chunks := k.index, k.chunks
	k.mu.RUnlock()

	if query == "" {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), topK, 0, false)
	result, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	out := make([]contracts.RetrievedChunk, 0, len(result.Hits))
	for _, hit := range result.Hits {
		chunk, ok := chunks[hit.ID]
		if !ok {
			continue
		}
		out = append(out, contracts.RetrievedChunk{Chunk: chunk, Similarity: hit.Score})
	}
	return out, nil
}

// Close releases the underlying bleve index.
func (k *KeywordIndex) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.index == nil {
		return nil
	}
	return k.index.Close()
}
