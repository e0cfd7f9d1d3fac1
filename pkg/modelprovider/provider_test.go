package modelprovider

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aptmgmt/decisioncore/pkg/environment"
)

func TestNewFake(t *testing.T) {
	p, err := New(Config{Type: "fake"}, environment.NewOsEnvProvider(), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "fake/test", p.ID())

	reply, err := p.CreateChatCompletion(t.Context(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(Config{Type: "bogus"}, environment.NewOsEnvProvider(), slog.Default())
	require.Error(t, err)
}
