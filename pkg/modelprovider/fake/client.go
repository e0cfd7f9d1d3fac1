// Package fake is an in-memory modelprovider.Provider test double: no
// network calls, deterministic responses, used throughout the core's tests
// in place of a live LLM backend.
package fake

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"math"

	"github.com/aptmgmt/decisioncore/pkg/chat"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider/base"
)

// Client is a scriptable fake: each call consumes the next queued response,
// falling back to a deterministic default once the queue is drained.
type Client struct {
	base.Config

	ChatResponses       []string
	StructuredResponses []json.RawMessage
	EmbeddingDim         int

	chatIdx, structuredIdx int
}

// NewClient builds an empty fake; populate ChatResponses/StructuredResponses
// before use, or rely on the deterministic defaults below.
func NewClient(cfg base.Config) *Client {
	return &Client{Config: cfg, EmbeddingDim: 384}
}

func (c *Client) ID() string { return "fake/test" }

func (c *Client) CreateChatCompletion(_ context.Context, messages []chat.Message) (string, error) {
	if c.chatIdx < len(c.ChatResponses) {
		resp := c.ChatResponses[c.chatIdx]
		c.chatIdx++
		return resp, nil
	}
	return "I do not know based on the available policy documents.", nil
}

func (c *Client) CreateStructuredCompletion(_ context.Context, _ []chat.Message, _ base.StructuredOutputSchema) (json.RawMessage, error) {
	if c.structuredIdx < len(c.StructuredResponses) {
		resp := c.StructuredResponses[c.structuredIdx]
		c.structuredIdx++
		return resp, nil
	}
	return json.RawMessage(`{}`), nil
}

func (c *Client) CreateEmbedding(_ context.Context, text string) (base.EmbeddingResult, error) {
	return base.EmbeddingResult{Embedding: deterministicVector(text, c.EmbeddingDim)}, nil
}

func (c *Client) CreateBatchEmbedding(_ context.Context, texts []string) (base.BatchEmbeddingResult, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = deterministicVector(t, c.EmbeddingDim)
	}
	return base.BatchEmbeddingResult{Embeddings: out}, nil
}

// deterministicVector derives a unit-normalised pseudo-embedding from text's
// hash, so identical inputs always embed identically and similarity tests
// are reproducible without a real model.
func deterministicVector(text string, dim int) []float32 {
	sum := sha256.Sum256([]byte(text))

	vec := make([]float32, dim)
	var sq float64
	for i := range vec {
		b := sum[i%len(sum)]
		v := float32(int(b)-128) / 128
		vec[i] = v
		sq += float64(v) * float64(v)
	}

	if sq == 0 {
		return vec
	}
	norm := float32(1 / math.Sqrt(sq))
	for i := range vec {
		vec[i] *= norm
	}
	return vec
}
