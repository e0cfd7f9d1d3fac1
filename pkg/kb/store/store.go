// Package store provides the knowledge base's persistent vector index: a
// SQLite-backed table of chunk embeddings searched by brute-force cosine
// similarity, rebuilt with write-new-generation-then-swap semantics so a
// rebuild in progress never serves a half-written index.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aptmgmt/decisioncore/pkg/contracts"
	"github.com/aptmgmt/decisioncore/pkg/fsx"
	"github.com/aptmgmt/decisioncore/pkg/kb/embed"
	"github.com/aptmgmt/decisioncore/pkg/kb/loader"
	"github.com/aptmgmt/decisioncore/pkg/sqliteutil"
)

const currentGenerationKey = "current_generation"

// VectorStore is a SQLite-backed index of embedded document chunks.
type VectorStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) a vector store at path.
func Open(path string, logger *slog.Logger) (*VectorStore, error) {
	db, err := sqliteutil.OpenDB(path)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	vs := &VectorStore{db: db, logger: logger}
	if err := vs.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return vs, nil
}

func (vs *VectorStore) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS kb_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS kb_chunks (
	generation   INTEGER NOT NULL,
	chunk_id     TEXT NOT NULL,
	doc_id       TEXT NOT NULL,
	chunk_index  INTEGER NOT NULL,
	total_chunks INTEGER NOT NULL,
	body_text    TEXT NOT NULL,
	metadata     TEXT NOT NULL,
	embedding    BLOB NOT NULL,
	created_at   TEXT NOT NULL,
	PRIMARY KEY (generation, chunk_id)
);
CREATE INDEX IF NOT EXISTS idx_kb_chunks_doc ON kb_chunks(generation, doc_id);
CREATE TABLE IF NOT EXISTS kb_file_metadata (
	source_path TEXT PRIMARY KEY,
	file_hash   TEXT NOT NULL,
	doc_id      TEXT NOT NULL,
	chunk_count INTEGER NOT NULL,
	updated_at  TEXT NOT NULL
);
`
	_, err := vs.db.ExecContext(ctx, schema)
	return err
}

// Close releases the underlying database handle.
func (vs *VectorStore) Close() error { return vs.db.Close() }

// Rebuild writes chunks into a brand-new generation and swaps the
// "current" pointer to it in the same transaction, then drops the
// superseded generation. A reader never observes a partially-written index:
// it is either the old generation in full or the new one in full.
func (vs *VectorStore) Rebuild(ctx context.Context, chunks []contracts.DocumentChunk) error {
	tx, err := vs.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning rebuild transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := vs.currentGenerationTx(ctx, tx)
	if err != nil {
		return err
	}
	next := current + 1

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO kb_chunks (generation, chunk_id, doc_id, chunk_index, total_chunks, body_text, metadata, embedding, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, c := range chunks {
		metadataJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata for chunk %q: %w", c.ChunkID, err)
		}
		if _, err := stmt.ExecContext(ctx, next, c.ChunkID, c.DocID, c.ChunkIndex, c.TotalChunks,
			c.BodyText, string(metadataJSON), encodeEmbedding(c.Embedding), now); err != nil {
			return fmt.Errorf("inserting chunk %q: %w", c.ChunkID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO kb_meta (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, currentGenerationKey, fmt.Sprint(next)); err != nil {
		return fmt.Errorf("publishing new generation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM kb_chunks WHERE generation != ?`, next); err != nil {
		return fmt.Errorf("dropping superseded generation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rebuild: %w", err)
	}

	vs.logger.Info("vector store rebuilt", "generation", next, "chunks", len(chunks))
	return nil
}

func (vs *VectorStore) currentGenerationTx(ctx context.Context, tx *sql.Tx) (int64, error) {
	var raw string
	err := tx.QueryRowContext(ctx, `SELECT value FROM kb_meta WHERE key = ?`, currentGenerationKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading current generation: %w", err)
	}
	var gen int64
	if _, err := fmt.Sscan(raw, &gen); err != nil {
		return 0, fmt.Errorf("parsing current generation %q: %w", raw, err)
	}
	return gen, nil
}

// Search returns the topK chunks most similar to queryEmbedding by cosine
// similarity, descending. An empty store (no generation published yet)
// returns an empty, non-error result.
func (vs *VectorStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]contracts.RetrievedChunk, error) {
	rows, err := vs.allCurrent(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]contracts.RetrievedChunk, 0, len(rows))
	for _, r := range rows {
		sim := cosineSimilarity(queryEmbedding, r.Embedding)
		results = append(results, contracts.RetrievedChunk{Chunk: r, Similarity: sim})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// AllChunks returns every chunk in the currently published generation, used
// to rebuild the companion keyword index from the same snapshot.
func (vs *VectorStore) AllChunks(ctx context.Context) ([]contracts.DocumentChunk, error) {
	return vs.allCurrent(ctx)
}

func (vs *VectorStore) allCurrent(ctx context.Context) ([]contracts.DocumentChunk, error) {
	var gen int64
	row := vs.db.QueryRowContext(ctx, `SELECT value FROM kb_meta WHERE key = ?`, currentGenerationKey)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("reading current generation: %w", err)
	}
	if _, err := fmt.Sscan(raw, &gen); err != nil {
		return nil, fmt.Errorf("parsing current generation %q: %w", raw, err)
	}

	rows, err := vs.db.QueryContext(ctx, `
SELECT chunk_id, doc_id, chunk_index, total_chunks, body_text, metadata, embedding
FROM kb_chunks WHERE generation = ?`, gen)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var out []contracts.DocumentChunk
	for rows.Next() {
		var c contracts.DocumentChunk
		var metadataJSON string
		var embeddingBlob []byte
		if err := rows.Scan(&c.ChunkID, &c.DocID, &c.ChunkIndex, &c.TotalChunks, &c.BodyText, &metadataJSON, &embeddingBlob); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &c.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata for %q: %w", c.ChunkID, err)
		}
		c.Embedding = decodeEmbedding(embeddingBlob)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReindexResult summarises one incremental Reindex pass.
type ReindexResult struct {
	Reindexed      int
	OrphansRemoved int
	Skipped        []string
	Failed         map[string]error
}

// fileMetadataRow mirrors a kb_file_metadata row.
type fileMetadataRow struct {
	SourcePath string
	FileHash   string
	DocID      string
	ChunkCount int
}

// Reindex hash-checks every file under root and re-embeds only the ones
// whose content changed since a Reindex last recorded its hash (Rebuild
// records no file hashes), then removes
// chunks and metadata for files that disappeared from disk. This mirrors
// the teacher's needsIndexing/cleanupOrphanedDocuments incremental-indexing
// shape, scoped down to a single SQLite generation instead of a pluggable
// strategy database.
func (vs *VectorStore) Reindex(ctx context.Context, root string, loaderCfg loader.Config, embedder *embed.Embedder) (ReindexResult, error) {
	paths, err := fsx.CollectFiles([]string{root}, nil)
	if err != nil {
		return ReindexResult{}, fmt.Errorf("collecting KB files under %q: %w", root, err)
	}

	seen := make(map[string]bool, len(paths))
	result := ReindexResult{Failed: make(map[string]error)}

	for _, path := range paths {
		seen[path] = true

		hash, err := fileHash(path)
		if err != nil {
			result.Failed[path] = fmt.Errorf("hashing: %w", err)
			continue
		}

		meta, err := vs.fileMetadata(ctx, path)
		if err != nil {
			result.Failed[path] = fmt.Errorf("reading file metadata: %w", err)
			continue
		}
		if meta != nil && meta.FileHash == hash {
			continue
		}

		doc, skipped, err := loader.LoadDocument(path)
		if skipped {
			result.Skipped = append(result.Skipped, path)
			continue
		}
		if err != nil {
			result.Failed[path] = err
			continue
		}

		chunks := loader.Chunk(doc, loaderCfg)
		embedded, err := embedder.EmbedChunks(ctx, chunks)
		if err != nil {
			result.Failed[path] = fmt.Errorf("embedding: %w", err)
			continue
		}

		if err := vs.replaceDocument(ctx, doc.DocID, path, hash, embedded); err != nil {
			result.Failed[path] = fmt.Errorf("writing: %w", err)
			continue
		}

		result.Reindexed++
	}

	removed, err := vs.cleanupOrphans(ctx, seen)
	if err != nil {
		return result, fmt.Errorf("cleaning up orphaned documents: %w", err)
	}
	result.OrphansRemoved = removed

	vs.logger.Info("incremental reindex complete",
		"reindexed", result.Reindexed, "orphans_removed", result.OrphansRemoved,
		"skipped", len(result.Skipped), "failed", len(result.Failed))

	return result, nil
}

func (vs *VectorStore) fileMetadata(ctx context.Context, path string) (*fileMetadataRow, error) {
	row := vs.db.QueryRowContext(ctx, `SELECT source_path, file_hash, doc_id, chunk_count FROM kb_file_metadata WHERE source_path = ?`, path)
	var m fileMetadataRow
	if err := row.Scan(&m.SourcePath, &m.FileHash, &m.DocID, &m.ChunkCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// replaceDocument swaps one document's chunks within the currently
// published generation (publishing generation 1 if the store is empty) and
// records its hash, all in one transaction.
func (vs *VectorStore) replaceDocument(ctx context.Context, docID, path, hash string, chunks []contracts.DocumentChunk) error {
	tx, err := vs.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning reindex transaction: %w", err)
	}
	defer tx.Rollback()

	gen, err := vs.currentGenerationTx(ctx, tx)
	if err != nil {
		return err
	}
	if gen == 0 {
		gen = 1
		if _, err := tx.ExecContext(ctx, `
INSERT INTO kb_meta (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, currentGenerationKey, fmt.Sprint(gen)); err != nil {
			return fmt.Errorf("publishing initial generation: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM kb_chunks WHERE generation = ? AND doc_id = ?`, gen, docID); err != nil {
		return fmt.Errorf("clearing previous chunks for %q: %w", docID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO kb_chunks (generation, chunk_id, doc_id, chunk_index, total_chunks, body_text, metadata, embedding, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, c := range chunks {
		metadataJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata for chunk %q: %w", c.ChunkID, err)
		}
		if _, err := stmt.ExecContext(ctx, gen, c.ChunkID, c.DocID, c.ChunkIndex, c.TotalChunks,
			c.BodyText, string(metadataJSON), encodeEmbedding(c.Embedding), now); err != nil {
			return fmt.Errorf("inserting chunk %q: %w", c.ChunkID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO kb_file_metadata (source_path, file_hash, doc_id, chunk_count, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(source_path) DO UPDATE SET file_hash = excluded.file_hash, doc_id = excluded.doc_id, chunk_count = excluded.chunk_count, updated_at = excluded.updated_at`,
		path, hash, docID, len(chunks), now); err != nil {
		return fmt.Errorf("updating file metadata for %q: %w", path, err)
	}

	return tx.Commit()
}

// cleanupOrphans removes chunks and metadata for any previously indexed file
// no longer present in seen, returning how many were removed.
func (vs *VectorStore) cleanupOrphans(ctx context.Context, seen map[string]bool) (int, error) {
	rows, err := vs.db.QueryContext(ctx, `SELECT source_path, doc_id FROM kb_file_metadata`)
	if err != nil {
		return 0, fmt.Errorf("listing file metadata: %w", err)
	}
	type entry struct{ path, docID string }
	var stale []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.path, &e.docID); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning file metadata: %w", err)
		}
		if !seen[e.path] {
			stale = append(stale, e)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, e := range stale {
		tx, err := vs.db.BeginTx(ctx, nil)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM kb_chunks WHERE doc_id = ?`, e.docID); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("removing orphaned chunks for %q: %w", e.docID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM kb_file_metadata WHERE source_path = ?`, e.path); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("removing orphaned metadata for %q: %w", e.path, err)
		}
		if err := tx.Commit(); err != nil {
			return 0, err
		}
		vs.logger.Info("removed orphaned document", "path", e.path, "doc_id", e.docID)
	}
	return len(stale), nil
}

func fileHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Watch starts an fsnotify watcher over root and triggers a debounced
// Reindex on any create/write/remove/rename event, logging failures rather
// than surfacing them: the store keeps serving its last good generation
// while a reindex is in flight or failing. The returned closer stops the
// watcher; it does not wait for an in-flight reindex to finish.
func (vs *VectorStore) Watch(ctx context.Context, root string, loaderCfg loader.Config, embedder *embed.Embedder, debounce time.Duration) (io.Closer, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	if err := watcher.Add(root); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %q: %w", root, err)
	}
	paths, err := fsx.CollectFiles([]string{root}, nil)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("collecting KB files under %q: %w", root, err)
	}
	watchedDirs := map[string]bool{root: true}
	for _, p := range paths {
		dir := filepath.Dir(p)
		if watchedDirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			vs.logger.Warn("failed to watch directory", "dir", dir, "error", err)
			continue
		}
		watchedDirs[dir] = true
	}

	var mu sync.Mutex
	var timer *time.Timer
	trigger := func() {
		if _, err := vs.Reindex(ctx, root, loaderCfg, embedder); err != nil {
			vs.logger.Error("watch-triggered reindex failed", "error", err)
		}
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, trigger)
				mu.Unlock()
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				vs.logger.Error("file watcher error", "error", watchErr)
			}
		}
	}()

	vs.logger.Info("watching knowledge base for changes", "root", root, "debounce", debounce)
	return watcher, nil
}

func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

// cosineSimilarity mirrors the teacher's brute-force similarity helper,
// generalised from float64 to the store's float32 embeddings.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
