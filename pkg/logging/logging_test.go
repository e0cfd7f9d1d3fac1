package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "core.log")

	logger, rotating, err := Setup(Options{FilePath: path, Level: slog.LevelInfo})
	require.NoError(t, err)
	require.NotNil(t, rotating)
	defer rotating.Close()

	logger.Info("ingestion complete", "chunks", 42)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "ingestion complete")
	assert.Contains(t, string(content), "42")
}

func TestSetupWithoutFile(t *testing.T) {
	logger, rotating, err := Setup(Options{Level: slog.LevelInfo})
	require.NoError(t, err)
	assert.Nil(t, rotating)
	assert.NotNil(t, logger)
}
