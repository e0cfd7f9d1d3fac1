package embed

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aptmgmt/decisioncore/pkg/contracts"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider/base"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider/fake"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEmbedQuery(t *testing.T) {
	e := New(fake.NewClient(base.Config{}), discardLogger())

	vec, err := e.EmbedQuery(t.Context(), "resident reports a leak")
	require.NoError(t, err)
	assert.Len(t, vec, 384)
}

func TestEmbedChunksBatched(t *testing.T) {
	e := New(fake.NewClient(base.Config{}), discardLogger(), WithBatchSize(2), WithMaxConcurrency(2))

	chunks := []contracts.DocumentChunk{
		{ChunkID: "a:0", BodyText: "leaks are urgent"},
		{ChunkID: "a:1", BodyText: "billing disputes go to accounting"},
		{ChunkID: "b:0", BodyText: "package deliveries are logged at the front desk"},
	}

	out, err := e.EmbedChunks(t.Context(), chunks)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, c := range out {
		assert.Len(t, c.Embedding, 384, "chunk %d", i)
		assert.Equal(t, chunks[i].ChunkID, c.ChunkID)
	}

	// Original slice is untouched.
	assert.Nil(t, chunks[0].Embedding)
}

func TestEmbedChunksEmpty(t *testing.T) {
	e := New(fake.NewClient(base.Config{}), discardLogger())
	out, err := e.EmbedChunks(t.Context(), nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestEmbedQueryUsageHandler(t *testing.T) {
	var gotTokens int64
	e := New(fake.NewClient(base.Config{}), discardLogger(), WithUsageHandler(func(tokens int64, _ float64) {
		gotTokens = tokens
	}))

	_, err := e.EmbedQuery(t.Context(), "test")
	require.NoError(t, err)
	assert.Equal(t, int64(0), gotTokens)
}
