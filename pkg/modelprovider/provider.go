// Package modelprovider is the narrow LLM client abstraction consumed by the
// Classifier's fallback, the Retriever's grounded QA, and the Simulator's
// option-generation agent. It intentionally exposes only what this pipeline
// needs: one-shot chat completion, one-shot structured-output completion,
// and (for providers that support it) embeddings.
package modelprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aptmgmt/decisioncore/pkg/chat"
	"github.com/aptmgmt/decisioncore/pkg/environment"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider/anthropic"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider/base"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider/fake"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider/openai"
)

// Provider is the chat-completion surface every LLM backend implements.
type Provider interface {
	ID() string

	// CreateChatCompletion returns the assistant's plain-text reply.
	CreateChatCompletion(ctx context.Context, messages []chat.Message) (string, error)

	// CreateStructuredCompletion returns the assistant's reply as a raw JSON
	// document, expected (but not guaranteed — the caller still validates)
	// to conform to schema.
	CreateStructuredCompletion(ctx context.Context, messages []chat.Message, schema base.StructuredOutputSchema) (json.RawMessage, error)
}

// EmbeddingProvider is implemented by backends that can embed single texts.
type EmbeddingProvider interface {
	CreateEmbedding(ctx context.Context, text string) (base.EmbeddingResult, error)
}

// BatchEmbeddingProvider is implemented by backends that can embed many
// texts in one call, for the embedder's batching optimisation.
type BatchEmbeddingProvider interface {
	CreateBatchEmbedding(ctx context.Context, texts []string) (base.BatchEmbeddingResult, error)
}

// Config is the per-provider configuration the factory needs to build a client.
type Config struct {
	Type           string // "anthropic" | "openai" | "fake"
	Model          string
	EmbeddingModel string
	MaxTokens      int
	Temperature    float64
}

// New builds a concrete Provider for cfg.Type, resolving its API key via env.
func New(cfg Config, env environment.Provider, logger *slog.Logger) (Provider, error) {
	logger.Debug("creating model provider", "type", cfg.Type, "model", cfg.Model)

	clientCfg := base.Config{
		Model:          cfg.Model,
		EmbeddingModel: cfg.EmbeddingModel,
		MaxTokens:      cfg.MaxTokens,
		Temperature:    cfg.Temperature,
		Env:            env,
	}

	switch cfg.Type {
	case "anthropic":
		return anthropic.NewClient(clientCfg, logger)
	case "openai":
		return openai.NewClient(clientCfg, logger)
	case "fake":
		return fake.NewClient(clientCfg), nil
	}

	return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
}
