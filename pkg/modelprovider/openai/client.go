// Package openai implements modelprovider.Provider, modelprovider.EmbeddingProvider
// and modelprovider.BatchEmbeddingProvider against the OpenAI API. It is the
// only live backend here with embeddings; embeddings work only when it is the
// configured model_provider, since Anthropic has no embeddings endpoint.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/aptmgmt/decisioncore/pkg/chat"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider/base"
)

type Client struct {
	base.Config
	sdk    openaisdk.Client
	logger *slog.Logger
}

const (
	defaultModel          = "gpt-4o-mini"
	defaultEmbeddingModel = "text-embedding-3-small"
)

// NewClient builds a Client, resolving OPENAI_API_KEY via cfg.Env.
func NewClient(cfg base.Config, logger *slog.Logger) (*Client, error) {
	apiKey, err := cfg.Env.Get(context.Background(), "OPENAI_API_KEY")
	if err != nil {
		return nil, fmt.Errorf("resolving OPENAI_API_KEY: %w", err)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}

	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = defaultEmbeddingModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	return &Client{
		Config: cfg,
		sdk:    openaisdk.NewClient(option.WithAPIKey(apiKey)),
		logger: logger,
	}, nil
}

func (c *Client) ID() string { return c.Config.ID("openai") }

func toOpenAIMessages(messages []chat.Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case chat.RoleSystem:
			out = append(out, openaisdk.SystemMessage(m.Content))
		case chat.RoleAssistant:
			out = append(out, openaisdk.AssistantMessage(m.Content))
		default:
			out = append(out, openaisdk.UserMessage(m.Content))
		}
	}
	return out
}

func (c *Client) CreateChatCompletion(ctx context.Context, messages []chat.Message) (string, error) {
	resp, err := c.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.Config.Model),
		Messages: toOpenAIMessages(messages),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) CreateStructuredCompletion(ctx context.Context, messages []chat.Message, schema base.StructuredOutputSchema) (json.RawMessage, error) {
	name := schema.Name
	if name == "" {
		name = "result"
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.Config.Model),
		Messages: toOpenAIMessages(messages),
		ResponseFormat: openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openaisdk.ResponseFormatJSONSchemaParam{
				JSONSchema: openaisdk.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   name,
					Schema: schema.Schema,
					Strict: openaisdk.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai structured completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai structured completion: empty choices")
	}

	return json.RawMessage(resp.Choices[0].Message.Content), nil
}

func (c *Client) CreateEmbedding(ctx context.Context, text string) (base.EmbeddingResult, error) {
	result, err := c.CreateBatchEmbedding(ctx, []string{text})
	if err != nil {
		return base.EmbeddingResult{}, err
	}
	if len(result.Embeddings) == 0 {
		return base.EmbeddingResult{}, fmt.Errorf("openai embedding: empty response")
	}
	return base.EmbeddingResult{
		Embedding:   result.Embeddings[0],
		InputTokens: result.InputTokens,
		TotalTokens: result.TotalTokens,
		Cost:        result.Cost,
	}, nil
}

func (c *Client) CreateBatchEmbedding(ctx context.Context, texts []string) (base.BatchEmbeddingResult, error) {
	resp, err := c.sdk.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model: openaisdk.EmbeddingModel(c.Config.EmbeddingModel),
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return base.BatchEmbeddingResult{}, fmt.Errorf("openai batch embedding: %w", err)
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		embeddings[i] = toFloat32(d.Embedding)
	}

	return base.BatchEmbeddingResult{
		Embeddings:  embeddings,
		InputTokens: resp.Usage.PromptTokens,
		TotalTokens: resp.Usage.TotalTokens,
		Cost:        estimateEmbeddingCost(c.Config.EmbeddingModel, resp.Usage.TotalTokens),
	}, nil
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

// estimateEmbeddingCost has no live pricing source wired (see DESIGN.md); it
// returns 0 unless a future deployment supplies per-model rates.
func estimateEmbeddingCost(string, int64) float64 {
	return 0
}
