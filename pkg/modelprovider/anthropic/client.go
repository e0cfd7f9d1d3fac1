// Package anthropic implements modelprovider.Provider against the Claude
// Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/aptmgmt/decisioncore/pkg/chat"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider/base"
)

// Client is a thin wrapper around the Anthropic SDK client satisfying
// modelprovider.Provider. It does not implement EmbeddingProvider: Anthropic
// has no embeddings endpoint, so an embed.Embedder built over a Client
// returns contracts.ErrEmbeddingUnavailable. The embedder is given the same
// configured provider as chat completion; embedding calls are not routed to
// another backend.
type Client struct {
	base.Config
	sdk    anthropicsdk.Client
	logger *slog.Logger
}

const defaultModel = "claude-sonnet-4-5"

// NewClient builds a Client, resolving ANTHROPIC_API_KEY via cfg.Env.
func NewClient(cfg base.Config, logger *slog.Logger) (*Client, error) {
	apiKey, err := cfg.Env.Get(context.Background(), "ANTHROPIC_API_KEY")
	if err != nil {
		return nil, fmt.Errorf("resolving ANTHROPIC_API_KEY: %w", err)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}

	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	return &Client{
		Config: cfg,
		sdk:    anthropicsdk.NewClient(option.WithAPIKey(apiKey)),
		logger: logger,
	}, nil
}

func (c *Client) ID() string { return c.Config.ID("anthropic") }

func toAnthropicMessages(messages []chat.Message) (system string, turns []anthropicsdk.MessageParam) {
	for _, m := range messages {
		switch m.Role {
		case chat.RoleSystem:
			system += m.Content + "\n"
		case chat.RoleUser:
			turns = append(turns, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
		case chat.RoleAssistant:
			turns = append(turns, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Content)))
		}
	}
	return system, turns
}

func (c *Client) CreateChatCompletion(ctx context.Context, messages []chat.Message) (string, error) {
	system, turns := toAnthropicMessages(messages)

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.Config.Model),
		MaxTokens: int64(c.Config.MaxTokens),
		Messages:  turns,
	}
	if system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}

	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic chat completion: %w", err)
	}

	var out string
	for _, block := range resp.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out, nil
}

// CreateStructuredCompletion forces the model to call a single synthetic
// tool whose input schema is the caller's requested schema, then returns
// that tool call's raw JSON input. Anthropic has no dedicated structured-
// output mode, so tool-forcing is the idiomatic substitute.
func (c *Client) CreateStructuredCompletion(ctx context.Context, messages []chat.Message, schema base.StructuredOutputSchema) (json.RawMessage, error) {
	system, turns := toAnthropicMessages(messages)

	toolName := schema.Name
	if toolName == "" {
		toolName = "emit_result"
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.Config.Model),
		MaxTokens: int64(c.Config.MaxTokens),
		Messages:  turns,
		Tools: []anthropicsdk.ToolUnionParam{
			{
				OfTool: &anthropicsdk.ToolParam{
					Name:        toolName,
					InputSchema: toInputSchemaParam(schema.Schema),
				},
			},
		},
		ToolChoice: anthropicsdk.ToolChoiceUnionParam{
			OfTool: &anthropicsdk.ToolChoiceToolParam{Name: toolName},
		},
	}
	if system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}

	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic structured completion: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "tool_use" && block.Name == toolName {
			return json.RawMessage(block.Input), nil
		}
	}

	return nil, fmt.Errorf("anthropic structured completion: model did not call %q", toolName)
}

func toInputSchemaParam(schema map[string]any) anthropicsdk.ToolInputSchemaParam {
	properties, _ := schema["properties"].(map[string]any)
	return anthropicsdk.ToolInputSchemaParam{
		Type:       "object",
		Properties: properties,
	}
}
