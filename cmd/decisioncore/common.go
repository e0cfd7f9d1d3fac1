// Command decisioncore wires the Resident Decision Core's packages into a
// single CLI: rebuilding the knowledge base's indexes and running the
// classify -> retrieve -> (simulate -> decide) pipeline against a message.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aptmgmt/decisioncore/pkg/classifier"
	"github.com/aptmgmt/decisioncore/pkg/config"
	"github.com/aptmgmt/decisioncore/pkg/decider"
	"github.com/aptmgmt/decisioncore/pkg/environment"
	"github.com/aptmgmt/decisioncore/pkg/kb/embed"
	"github.com/aptmgmt/decisioncore/pkg/kb/store"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider"
	"github.com/aptmgmt/decisioncore/pkg/orchestrator"
	"github.com/aptmgmt/decisioncore/pkg/reqstore"
	"github.com/aptmgmt/decisioncore/pkg/retriever"
	"github.com/aptmgmt/decisioncore/pkg/simulator"
)

// pipeline bundles every wired component a request needs, plus whatever of
// them own an on-disk handle and must be closed on shutdown.
type pipeline struct {
	cfg          config.Config
	orchestrator *orchestrator.Orchestrator
	vectors      *store.VectorStore
	keywords     *store.KeywordIndex
	requests     *reqstore.SQLiteStore
}

func (p *pipeline) Close() error {
	var errs []error
	if p.keywords != nil {
		errs = append(errs, p.keywords.Close())
	}
	if p.vectors != nil {
		errs = append(errs, p.vectors.Close())
	}
	if p.requests != nil {
		errs = append(errs, p.requests.Close())
	}
	return errors.Join(errs...)
}

// requestStorePath is the on-disk location of the bundled reference request
// store. Unlike the vector store and KB directory, spec.md §6 treats the
// request store as an external system the core only consumes; this path
// exists purely so the CLI has something concrete to run the reference
// implementation against.
func requestStorePath(cfg config.Config) string {
	if cfg.VectorStorePath == "" {
		return "decisioncore-requests.db"
	}
	return cfg.VectorStorePath + ".requests.db"
}

func buildPipeline(ctx context.Context, cfg config.Config, logger *slog.Logger) (*pipeline, error) {
	env := environment.NewDefaultProvider()

	llm, err := modelprovider.New(modelprovider.Config{
		Type:           cfg.ModelProvider,
		Model:          cfg.LLMModelID,
		EmbeddingModel: cfg.EmbeddingModelID,
		MaxTokens:      4096,
		Temperature:    0.2,
	}, env, logger)
	if err != nil {
		return nil, fmt.Errorf("building model provider: %w", err)
	}

	vectors, err := store.Open(cfg.VectorStorePath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	keywords, err := store.NewKeywordIndex(logger)
	if err != nil {
		_ = vectors.Close()
		return nil, fmt.Errorf("building keyword index: %w", err)
	}
	if err := rehydrateKeywordIndex(ctx, vectors, keywords); err != nil {
		_ = vectors.Close()
		_ = keywords.Close()
		return nil, fmt.Errorf("rehydrating keyword index: %w", err)
	}

	embedder := embed.New(llm, logger)
	retr := retriever.New(vectors, keywords, embedder, llm, logger)

	cl, err := classifier.New(llm, logger)
	if err != nil {
		_ = vectors.Close()
		_ = keywords.Close()
		return nil, fmt.Errorf("building classifier: %w", err)
	}

	adminKey, err := env.Get(ctx, cfg.RequestStoreAdminKeyEnv)
	if err != nil {
		_ = vectors.Close()
		_ = keywords.Close()
		return nil, fmt.Errorf("resolving request store admin key: %w", err)
	}

	requests, err := reqstore.Open(requestStorePath(cfg), adminKey)
	if err != nil {
		_ = vectors.Close()
		_ = keywords.Close()
		return nil, fmt.Errorf("opening request store: %w", err)
	}

	sim := simulator.New(llm, requests, logger, cfg.ToolTimeout(), cfg.RecurrenceWindow())
	dec := decider.New(cfg)
	orch := orchestrator.New(cl, retr, sim, dec, logger, cfg.RAGTopK, cfg.RAGSimilarityThreshold)

	return &pipeline{cfg: cfg, orchestrator: orch, vectors: vectors, keywords: keywords, requests: requests}, nil
}

// rehydrateKeywordIndex rebuilds the in-memory keyword index from whatever
// generation is currently published in the on-disk vector store, since the
// keyword index itself is memory-only and starts empty every process.
func rehydrateKeywordIndex(ctx context.Context, vectors *store.VectorStore, keywords *store.KeywordIndex) error {
	chunks, err := vectors.AllChunks(ctx)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	return keywords.Rebuild(ctx, chunks)
}
