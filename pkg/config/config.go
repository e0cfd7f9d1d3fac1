// Package config loads the Decision Core's flat configuration mapping: Load
// starts from Defaults() and overlays whatever keys a YAML file sets.
// Configuration values are not read from environment variables;
// pkg/environment is used only to resolve API keys.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/aptmgmt/decisioncore/pkg/contracts"
	"github.com/aptmgmt/decisioncore/pkg/environment"
)

// Config is the flat mapping spec.md §6 describes. YAML tags match the
// snake_case keys named in the spec so a deployment's config file can use
// the spec's own vocabulary verbatim.
type Config struct {
	RAGEnabled            bool    `yaml:"rag_enabled"`
	VectorStorePath       string  `yaml:"vector_store_path"`
	VectorStoreCollection string  `yaml:"vector_store_collection"`
	EmbeddingModelID      string  `yaml:"embedding_model_id"`
	RAGTopK               int     `yaml:"rag_top_k"`
	RAGSimilarityThreshold float64 `yaml:"rag_similarity_threshold"`
	ChunkSizeChars        int     `yaml:"chunk_size_chars"`
	ChunkOverlapChars     int     `yaml:"chunk_overlap_chars"`
	LLMModelID            string  `yaml:"llm_model_id"`

	KnowledgeBasePath string `yaml:"knowledge_base_path"`

	// Timeouts, all in seconds.
	LLMTimeoutSeconds       int `yaml:"llm_timeout_seconds"`
	EmbeddingTimeoutSeconds int `yaml:"embedding_timeout_seconds"`
	VectorStoreTimeoutSeconds int `yaml:"vector_store_timeout_seconds"`
	ToolTimeoutSeconds      int `yaml:"tool_timeout_seconds"`
	RequestTimeoutSeconds   int `yaml:"request_timeout_seconds"`

	// RecurrenceWindowDays bounds check_recurring_issues: only requests
	// created within this many days of now count toward the signal.
	RecurrenceWindowDays int `yaml:"recurrence_window_days"`

	PolicyWeightsDefault map[string]contracts.PolicyWeights `yaml:"policy_weights_default"`
	CostCap              map[string]float64                  `yaml:"cost_cap"`
	TimeCap              map[string]float64                  `yaml:"time_cap"`

	ModelProvider string `yaml:"model_provider"` // "anthropic" | "openai" | "fake"

	RequestStoreAdminKeyEnv string `yaml:"request_store_admin_key_env"`
}

// Defaults returns the configuration defaults named throughout spec.md.
func Defaults() Config {
	return Config{
		RAGEnabled:             true,
		VectorStoreCollection:  "apartment_kb",
		RAGTopK:                5,
		RAGSimilarityThreshold: 0.5,
		ChunkSizeChars:         2800,
		ChunkOverlapChars:      480,

		LLMTimeoutSeconds:         60,
		EmbeddingTimeoutSeconds:   10,
		VectorStoreTimeoutSeconds: 5,
		ToolTimeoutSeconds:        10,
		RequestTimeoutSeconds:     90,
		RecurrenceWindowDays:      90,

		CostCap: map[string]float64{
			string(contracts.CategoryMaintenance): 500,
			string(contracts.CategoryBilling):     200,
			string(contracts.CategorySecurity):     1000,
			string(contracts.CategoryDeliveries):   100,
			string(contracts.CategoryAmenities):    300,
		},
		TimeCap: map[string]float64{
			string(contracts.UrgencyHigh):   4,
			string(contracts.UrgencyMedium): 24,
			string(contracts.UrgencyLow):    72,
		},
		PolicyWeightsDefault: map[string]contracts.PolicyWeights{
			string(contracts.UrgencyHigh): {
				Cost: 0.1, Time: 0.35, Satisfaction: 0.15, UrgencyAlignment: 0.3, PolicyCompliance: 0.1,
			},
			string(contracts.UrgencyMedium): {
				Cost: 0.2, Time: 0.2, Satisfaction: 0.2, UrgencyAlignment: 0.2, PolicyCompliance: 0.2,
			},
			string(contracts.UrgencyLow): {
				Cost: 0.3, Time: 0.1, Satisfaction: 0.3, UrgencyAlignment: 0.1, PolicyCompliance: 0.2,
			},
		},
		ModelProvider:           "anthropic",
		RequestStoreAdminKeyEnv: "REQUEST_STORE_ADMIN_KEY",
	}
}

// Load reads a YAML file at path, starting from Defaults and overlaying
// whatever keys the file sets. A missing file is not an error: the caller
// gets Defaults back untouched, since every field already has a sane value.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %q: %w", path, err)
	}

	return cfg, nil
}

// ResolveAPIKey looks up the API key env var for the configured model
// provider via env, falling back to the provider's conventional name.
func ResolveAPIKey(ctx context.Context, env environment.Provider, provider string) (string, error) {
	envVarNames := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
	}
	name, ok := envVarNames[provider]
	if !ok {
		return "", nil
	}
	return env.Get(ctx, name)
}

// LLMTimeout, EmbeddingTimeout, VectorStoreTimeout, ToolTimeout and
// RequestTimeout convert the configured second counts into durations.
func (c Config) LLMTimeout() time.Duration         { return time.Duration(c.LLMTimeoutSeconds) * time.Second }
func (c Config) EmbeddingTimeout() time.Duration    { return time.Duration(c.EmbeddingTimeoutSeconds) * time.Second }
func (c Config) VectorStoreTimeout() time.Duration  { return time.Duration(c.VectorStoreTimeoutSeconds) * time.Second }
func (c Config) ToolTimeout() time.Duration         { return time.Duration(c.ToolTimeoutSeconds) * time.Second }
func (c Config) RequestTimeout() time.Duration      { return time.Duration(c.RequestTimeoutSeconds) * time.Second }

// RecurrenceWindow converts the configured day count into a duration,
// falling back to the spec's 90-day default if the deployment's config
// leaves it unset.
func (c Config) RecurrenceWindow() time.Duration {
	days := c.RecurrenceWindowDays
	if days <= 0 {
		days = 90
	}
	return time.Duration(days) * 24 * time.Hour
}

// WeightsFor returns the configured policy weights for the given urgency,
// falling back to an even split if the deployment's config omits it.
func (c Config) WeightsFor(urgency contracts.Urgency) contracts.PolicyWeights {
	if w, ok := c.PolicyWeightsDefault[string(urgency)]; ok {
		return w.Normalised()
	}
	return contracts.PolicyWeights{Cost: 0.2, Time: 0.2, Satisfaction: 0.2, UrgencyAlignment: 0.2, PolicyCompliance: 0.2}
}

// CostCapFor returns the configured cost cap for category, or a conservative
// default if the deployment's config omits it.
func (c Config) CostCapFor(category contracts.Category) float64 {
	if cap, ok := c.CostCap[string(category)]; ok && cap > 0 {
		return cap
	}
	return 500
}

// TimeCapFor returns the configured time cap (hours) for urgency, or a
// conservative default if the deployment's config omits it.
func (c Config) TimeCapFor(urgency contracts.Urgency) float64 {
	if cap, ok := c.TimeCap[string(urgency)]; ok && cap > 0 {
		return cap
	}
	return 72
}
