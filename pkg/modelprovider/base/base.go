// Package base holds the configuration and result shapes shared by every
// concrete model-provider client, so anthropic/openai/fake can each embed
// Config without duplicating its fields, matching the teacher's own
// base-config-embedding convention.
package base

import "github.com/aptmgmt/decisioncore/pkg/environment"

// Config is the common client configuration embedded by every backend.
type Config struct {
	Model          string
	EmbeddingModel string
	MaxTokens      int
	Temperature    float64
	Env            environment.Provider
}

// ID returns the provider/model identifier used in logs.
func (c Config) ID(providerName string) string {
	return providerName + "/" + c.Model
}

// StructuredOutputSchema names a JSON schema a structured completion must
// validate against. Name is surfaced to providers that require one (e.g.
// OpenAI's response_format.json_schema.name).
type StructuredOutputSchema struct {
	Name   string
	Schema map[string]any
}

// EmbeddingResult carries an embedding alongside its usage accounting.
type EmbeddingResult struct {
	Embedding   []float32
	InputTokens int64
	TotalTokens int64
	Cost        float64
}

// BatchEmbeddingResult carries multiple embeddings alongside aggregate usage.
type BatchEmbeddingResult struct {
	Embeddings  [][]float32
	InputTokens int64
	TotalTokens int64
	Cost        float64
}
