// Package embed generates 384-D chunk embeddings via a model provider,
// batching and fanning requests out with a bounded concurrency limit.
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aptmgmt/decisioncore/pkg/contracts"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider"
)

// Embedder wraps a modelprovider.Provider to embed document chunks and
// queries with the same vector space.
type Embedder struct {
	provider       modelprovider.Provider
	logger         *slog.Logger
	usageHandler   func(tokens int64, cost float64)
	batchSize      int
	maxConcurrency int
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithBatchSize sets how many texts go into a single batch-embedding call.
func WithBatchSize(size int) Option {
	return func(e *Embedder) { e.batchSize = size }
}

// WithMaxConcurrency bounds how many batch calls run concurrently.
func WithMaxConcurrency(n int) Option {
	return func(e *Embedder) { e.maxConcurrency = n }
}

// WithUsageHandler registers a callback invoked after each embedding call
// with its token and cost accounting.
func WithUsageHandler(handler func(tokens int64, cost float64)) Option {
	return func(e *Embedder) { e.usageHandler = handler }
}

// New builds an Embedder over p.
func New(p modelprovider.Provider, logger *slog.Logger, opts ...Option) *Embedder {
	e := &Embedder{
		provider:       p,
		logger:         logger,
		batchSize:      50,
		maxConcurrency: 5,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EmbedQuery embeds a single free-text query, e.g. a resident message, for
// similarity search against a chunk index.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	embeddingProvider, ok := e.provider.(modelprovider.EmbeddingProvider)
	if !ok {
		return nil, fmt.Errorf("%w: provider %s does not support embeddings", contracts.ErrEmbeddingUnavailable, e.provider.ID())
	}

	result, err := embeddingProvider.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contracts.ErrEmbeddingUnavailable, err)
	}

	if e.usageHandler != nil {
		e.usageHandler(result.TotalTokens, result.Cost)
	}
	e.logger.Debug("embedded query", "provider", e.provider.ID(), "tokens", result.TotalTokens)

	return result.Embedding, nil
}

// EmbedChunks embeds every chunk's body text, returning a new slice
// (chunks is not mutated) with Embedding populated. If the provider supports
// batch embedding, batches run concurrently up to maxConcurrency; otherwise
// chunks are embedded sequentially.
func (e *Embedder) EmbedChunks(ctx context.Context, chunks []contracts.DocumentChunk) ([]contracts.DocumentChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	out := make([]contracts.DocumentChunk, len(chunks))
	copy(out, chunks)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.BodyText
	}

	batchProvider, ok := e.provider.(modelprovider.BatchEmbeddingProvider)
	if !ok {
		e.logger.Debug("provider lacks batch embedding, embedding sequentially", "provider", e.provider.ID())
		for i, text := range texts {
			vec, err := e.EmbedQuery(ctx, text)
			if err != nil {
				return nil, fmt.Errorf("embedding chunk %q: %w", out[i].ChunkID, err)
			}
			out[i].Embedding = vec
		}
		return out, nil
	}

	if err := e.embedBatched(ctx, batchProvider, texts, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Embedder) embedBatched(ctx context.Context, batchProvider modelprovider.BatchEmbeddingProvider, texts []string, out []contracts.DocumentChunk) error {
	total := len(texts)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)

	for start := 0; start < total; start += e.batchSize {
		end := min(start+e.batchSize, total)

		g.Go(func() error {
			result, err := batchProvider.CreateBatchEmbedding(ctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("%w: batch [%d:%d]: %w", contracts.ErrEmbeddingUnavailable, start, end, err)
			}
			if len(result.Embeddings) != end-start {
				return fmt.Errorf("%w: batch returned %d embeddings for %d inputs", contracts.ErrEmbeddingUnavailable, len(result.Embeddings), end-start)
			}

			mu.Lock()
			for i, vec := range result.Embeddings {
				out[start+i].Embedding = vec
			}
			mu.Unlock()

			if e.usageHandler != nil {
				e.usageHandler(result.TotalTokens, result.Cost)
			}
			e.logger.Debug("embedded batch", "provider", e.provider.ID(), "start", start, "end", end, "tokens", result.TotalTokens)
			return nil
		})
	}

	return g.Wait()
}
