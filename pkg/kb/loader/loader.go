// Package loader turns a directory of front-matter-prefixed policy files
// into typed contracts.KBDocuments and then into contracts.DocumentChunks
// ready for embedding, per spec.md §4.1.
package loader

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/aptmgmt/decisioncore/pkg/contracts"
	"github.com/aptmgmt/decisioncore/pkg/fsx"
)

// Config holds the chunking parameters; defaults target ~700 tokens.
type Config struct {
	ChunkSizeChars    int
	ChunkOverlapChars int
}

// DefaultConfig matches spec.md's named defaults (2800 chars, 480 overlap).
func DefaultConfig() Config {
	return Config{ChunkSizeChars: 2800, ChunkOverlapChars: 480}
}

// LoadResult is the outcome of loading a KB root: chunks from every
// well-formed document, plus the documents themselves (for the retriever's
// tie-break fields), plus non-fatal per-file problems.
type LoadResult struct {
	Documents []contracts.KBDocument
	Chunks    []contracts.DocumentChunk
	// Skipped lists files with no recognised front-matter block.
	Skipped []string
	// Failed lists files that had front matter but were missing required
	// metadata, paired with the error describing which keys were absent.
	Failed map[string]error
}

// LoadDir walks root, parses every file found, and chunks the well-formed
// documents. A file without front matter is skipped with a warning, not an
// error; a document missing required metadata fails for that file only —
// ingestion continues, matching spec.md §4.1 and §7's MissingMetadata kind.
func LoadDir(root string, cfg Config, logger *slog.Logger) (LoadResult, error) {
	paths, err := fsx.CollectFiles([]string{root}, nil)
	if err != nil {
		return LoadResult{}, fmt.Errorf("collecting KB files under %q: %w", root, err)
	}

	result := LoadResult{Failed: make(map[string]error)}

	for _, path := range paths {
		doc, skipped, err := LoadDocument(path)
		if skipped {
			logger.Warn("skipping file with no front-matter block", "path", path)
			result.Skipped = append(result.Skipped, path)
			continue
		}
		if err != nil {
			logger.Error("ingestion failed for file", "path", path, "error", err)
			result.Failed[path] = err
			continue
		}

		result.Documents = append(result.Documents, doc)
		result.Chunks = append(result.Chunks, Chunk(doc, cfg)...)
	}

	logger.Info("KB ingestion complete",
		"documents", len(result.Documents),
		"chunks", len(result.Chunks),
		"skipped", len(result.Skipped),
		"failed", len(result.Failed))

	return result, nil
}

// LoadDocument reads and parses a single file. skipped is true when the file
// has no recognised front-matter block (not an error). A non-nil err means
// the file could not be read, or its front matter was malformed or lacked a
// required key (the last two wrap contracts.ErrMissingMetadata).
func LoadDocument(path string) (doc contracts.KBDocument, skipped bool, err error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return contracts.KBDocument{}, false, fmt.Errorf("reading %q: %w", path, err)
	}

	metadataBlock, body, ok := splitFrontMatter(string(content))
	if !ok {
		return contracts.KBDocument{}, true, nil
	}

	raw, scalar, err := parseMetadata(metadataBlock)
	if err != nil {
		return contracts.KBDocument{}, false, fmt.Errorf("%w in %s: %w", contracts.ErrMissingMetadata, path, err)
	}

	if missing := missingRequiredKeys(scalar); len(missing) > 0 {
		return contracts.KBDocument{}, false, fmt.Errorf("%w in %s: missing %v", contracts.ErrMissingMetadata, path, missing)
	}

	doc = contracts.KBDocument{
		DocID:         scalar["doc_id"],
		Type:          contracts.DocType(scalar["type"]),
		Category:      scalar["category"],
		BuildingID:    scalar["building_id"],
		Version:       scalar["version"],
		EffectiveDate: scalar["effective_date"],
		LastUpdated:   scalar["last_updated"],
		Priority:      scalar["priority"],
		Author:        scalar["author"],
		Approver:      scalar["approver"],
		Keywords:      stringList(raw, "keywords"),
		Body:          body,
		SourcePath:    path,
	}

	return doc, false, nil
}

// Chunk splits doc's body per spec.md 4.1's hierarchy-aware splitter and
// stamps each piece with the parent's flat metadata plus positional fields.
func Chunk(doc contracts.KBDocument, cfg Config) []contracts.DocumentChunk {
	pieces := splitBody(doc.Body, cfg.ChunkSizeChars, cfg.ChunkOverlapChars)
	if len(pieces) == 0 {
		return nil
	}

	base := docMetadata(doc)

	chunks := make([]contracts.DocumentChunk, 0, len(pieces))
	for i, piece := range pieces {
		metadata := make(map[string]string, len(base)+3)
		for k, v := range base {
			metadata[k] = v
		}
		chunkID := doc.DocID + ":" + strconv.Itoa(i)
		metadata["chunk_id"] = chunkID
		metadata["chunk_index"] = strconv.Itoa(i)
		metadata["total_chunks"] = strconv.Itoa(len(pieces))

		chunks = append(chunks, contracts.DocumentChunk{
			ChunkID:     chunkID,
			DocID:       doc.DocID,
			ChunkIndex:  i,
			TotalChunks: len(pieces),
			BodyText:    piece,
			Metadata:    metadata,
		})
	}
	return chunks
}

func docMetadata(doc contracts.KBDocument) map[string]string {
	m := map[string]string{
		"doc_id":         doc.DocID,
		"type":           string(doc.Type),
		"category":       doc.Category,
		"building_id":    doc.BuildingID,
		"version":        doc.Version,
		"effective_date": doc.EffectiveDate,
		"last_updated":   doc.LastUpdated,
	}
	if doc.Priority != "" {
		m["priority"] = doc.Priority
	}
	if doc.Author != "" {
		m["author"] = doc.Author
	}
	if doc.Approver != "" {
		m["approver"] = doc.Approver
	}
	if len(doc.Keywords) > 0 {
		m["keywords"] = strings.Join(doc.Keywords, ", ")
	}
	return m
}
