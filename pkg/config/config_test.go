package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aptmgmt/decisioncore/pkg/contracts"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rag_top_k: 8\nvector_store_path: /data/kb\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.RAGTopK)
	assert.Equal(t, "/data/kb", cfg.VectorStorePath)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.5, cfg.RAGSimilarityThreshold)
	assert.True(t, cfg.RAGEnabled)
}

func TestWeightsForFallsBackToEvenSplit(t *testing.T) {
	cfg := Config{}
	w := cfg.WeightsFor(contracts.UrgencyHigh)
	assert.InDelta(t, 0.2, w.Cost, 1e-9)
	assert.InDelta(t, 0.2, w.Time, 1e-9)
}

func TestWeightsForNormalisesConfigured(t *testing.T) {
	cfg := Defaults()
	w := cfg.WeightsFor(contracts.UrgencyHigh)

	sum := w.Cost + w.Time + w.Satisfaction + w.UrgencyAlignment + w.PolicyCompliance
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, w.Time, w.Cost, "High urgency should weight time over cost")
}

func TestCostCapAndTimeCapFallbacks(t *testing.T) {
	cfg := Config{}
	assert.Equal(t, 500.0, cfg.CostCapFor(contracts.CategoryMaintenance))
	assert.Equal(t, 72.0, cfg.TimeCapFor(contracts.UrgencyLow))

	cfg = Defaults()
	assert.Equal(t, 500.0, cfg.CostCapFor(contracts.CategoryMaintenance))
	assert.Equal(t, 4.0, cfg.TimeCapFor(contracts.UrgencyHigh))
}
