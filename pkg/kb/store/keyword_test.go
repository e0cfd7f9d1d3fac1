package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aptmgmt/decisioncore/pkg/contracts"
)

func TestKeywordIndexRebuildAndSearch(t *testing.T) {
	idx, err := NewKeywordIndex(discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	ctx := t.Context()
	require.NoError(t, idx.Rebuild(ctx, []contracts.DocumentChunk{
		{ChunkID: "leak:0", DocID: "leak", BodyText: "dispatch a plumber for an active water leak", Metadata: map[string]string{"category": "Maintenance"}},
		{ChunkID: "billing:0", DocID: "billing", BodyText: "disputed charges route to the accounting team", Metadata: map[string]string{"category": "Billing"}},
	}))

	results, err := idx.Search(ctx, "water leak plumber", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "leak:0", results[0].Chunk.ChunkID)
}

func TestKeywordIndexEmptyQuery(t *testing.T) {
	idx, err := NewKeywordIndex(discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	results, err := idx.Search(t.Context(), "", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestKeywordIndexRebuildReplacesContents(t *testing.T) {
	idx, err := NewKeywordIndex(discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	ctx := t.Context()
	require.NoError(t, idx.Rebuild(ctx, []contracts.DocumentChunk{
		{ChunkID: "old:0", DocID: "old", BodyText: "obsolete policy text", Metadata: map[string]string{}},
	}))
	require.NoError(t, idx.Rebuild(ctx, []contracts.DocumentChunk{
		{ChunkID: "new:0", DocID: "new", BodyText: "current policy text", Metadata: map[string]string{}},
	}))

	results, err := idx.Search(ctx, "obsolete", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
