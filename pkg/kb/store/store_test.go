package store

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aptmgmt/decisioncore/pkg/contracts"
	"github.com/aptmgmt/decisioncore/pkg/kb/embed"
	"github.com/aptmgmt/decisioncore/pkg/kb/loader"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider/base"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider/fake"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *VectorStore {
	t.Helper()
	vs, err := Open(filepath.Join(t.TempDir(), "kb.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = vs.Close() })
	return vs
}

func TestVectorStoreRebuildAndSearch(t *testing.T) {
	vs := openTestStore(t)
	ctx := t.Context()

	chunks := []contracts.DocumentChunk{
		{ChunkID: "leak:0", DocID: "leak", BodyText: "leak response", Metadata: map[string]string{"doc_id": "leak"}, Embedding: []float32{1, 0, 0}},
		{ChunkID: "billing:0", DocID: "billing", BodyText: "billing dispute", Metadata: map[string]string{"doc_id": "billing"}, Embedding: []float32{0, 1, 0}},
	}
	require.NoError(t, vs.Rebuild(ctx, chunks))

	results, err := vs.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "leak:0", results[0].Chunk.ChunkID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
	assert.Less(t, results[1].Similarity, results[0].Similarity)
}

func TestVectorStoreRebuildReplacesPriorGeneration(t *testing.T) {
	vs := openTestStore(t)
	ctx := t.Context()

	require.NoError(t, vs.Rebuild(ctx, []contracts.DocumentChunk{
		{ChunkID: "a:0", DocID: "a", BodyText: "first", Metadata: map[string]string{}, Embedding: []float32{1, 0}},
	}))
	require.NoError(t, vs.Rebuild(ctx, []contracts.DocumentChunk{
		{ChunkID: "b:0", DocID: "b", BodyText: "second", Metadata: map[string]string{}, Embedding: []float32{0, 1}},
	}))

	all, err := vs.AllChunks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b:0", all[0].ChunkID)
}

func TestVectorStoreSearchEmpty(t *testing.T) {
	vs := openTestStore(t)
	results, err := vs.Search(t.Context(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEmbeddingRoundTrip(t *testing.T) {
	original := []float32{0.5, -0.25, 1.0, 0.0}
	assert.Equal(t, original, decodeEmbedding(encodeEmbedding(original)))
}

const leakPolicy = `---
doc_id: pol-leak
type: policy
category: Maintenance
building_id: all_buildings
version: "1"
effective_date: 2025-01-01
last_updated: 2025-01-01
---
Dispatch a plumber within two hours of an active leak report.
`

const billingPolicy = `---
doc_id: pol-billing
type: policy
category: Billing
building_id: all_buildings
version: "1"
effective_date: 2025-01-01
last_updated: 2025-01-01
---
Late fees apply after the fifth of the month.
`

func testEmbedder() *embed.Embedder {
	return embed.New(fake.NewClient(base.Config{}), discardLogger())
}

func TestReindexIndexesNewFiles(t *testing.T) {
	vs := openTestStore(t)
	ctx := t.Context()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leak.md"), []byte(leakPolicy), 0o644))

	result, err := vs.Reindex(ctx, dir, loader.DefaultConfig(), testEmbedder())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Reindexed)
	assert.Zero(t, result.OrphansRemoved)
	assert.Empty(t, result.Failed)

	all, err := vs.AllChunks(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, all)
	assert.Equal(t, "pol-leak", all[0].DocID)
}

func TestReindexSkipsUnchangedFiles(t *testing.T) {
	vs := openTestStore(t)
	ctx := t.Context()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leak.md"), []byte(leakPolicy), 0o644))

	_, err := vs.Reindex(ctx, dir, loader.DefaultConfig(), testEmbedder())
	require.NoError(t, err)

	result, err := vs.Reindex(ctx, dir, loader.DefaultConfig(), testEmbedder())
	require.NoError(t, err)
	assert.Zero(t, result.Reindexed)
	assert.Zero(t, result.OrphansRemoved)
}

func TestReindexPicksUpChangedFiles(t *testing.T) {
	vs := openTestStore(t)
	ctx := t.Context()
	dir := t.TempDir()
	path := filepath.Join(dir, "leak.md")
	require.NoError(t, os.WriteFile(path, []byte(leakPolicy), 0o644))

	_, err := vs.Reindex(ctx, dir, loader.DefaultConfig(), testEmbedder())
	require.NoError(t, err)

	changed := leakPolicy + "\nEscalate to the building engineer for common-area flooding.\n"
	require.NoError(t, os.WriteFile(path, []byte(changed), 0o644))

	result, err := vs.Reindex(ctx, dir, loader.DefaultConfig(), testEmbedder())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Reindexed)
}

func TestReindexRemovesOrphansWhenFileDeleted(t *testing.T) {
	vs := openTestStore(t)
	ctx := t.Context()
	dir := t.TempDir()
	leakPath := filepath.Join(dir, "leak.md")
	billingPath := filepath.Join(dir, "billing.md")
	require.NoError(t, os.WriteFile(leakPath, []byte(leakPolicy), 0o644))
	require.NoError(t, os.WriteFile(billingPath, []byte(billingPolicy), 0o644))

	_, err := vs.Reindex(ctx, dir, loader.DefaultConfig(), testEmbedder())
	require.NoError(t, err)

	require.NoError(t, os.Remove(billingPath))

	result, err := vs.Reindex(ctx, dir, loader.DefaultConfig(), testEmbedder())
	require.NoError(t, err)
	assert.Equal(t, 1, result.OrphansRemoved)

	all, err := vs.AllChunks(ctx)
	require.NoError(t, err)
	for _, c := range all {
		assert.NotEqual(t, "pol-billing", c.DocID)
	}
}
