package contracts

// DocType enumerates the recognised knowledge-base document types.
type DocType string

const (
	DocTypePolicy  DocType = "policy"
	DocTypeSOP     DocType = "sop"
	DocTypeCatalog DocType = "catalog"
	DocTypeSLA     DocType = "sla"
	DocTypeCost    DocType = "cost"
	DocTypeScoring DocType = "scoring"
)

// KBDocument is a single ingested policy file: front-matter metadata plus body.
// Identity is DocID; a document is immutable within an ingestion run and
// wholly replaced on rebuild.
type KBDocument struct {
	DocID         string
	Type          DocType
	Category      string
	BuildingID    string
	Version       string
	EffectiveDate string
	LastUpdated   string
	Keywords      []string
	Priority      string
	Author        string
	Approver      string
	Body          string

	// SourcePath is the file the document was loaded from, for diagnostics.
	SourcePath string
}

// DocumentChunk is a contiguous sub-span of a KBDocument's body, embedded and
// indexed as a unit. Metadata is a flat scalar copy of the parent document's
// fields plus the chunk's own positional fields.
type DocumentChunk struct {
	ChunkID    string // "{doc_id}:{chunk_index}"
	DocID      string
	ChunkIndex int
	TotalChunks int
	BodyText   string
	Metadata   map[string]string
	Embedding  []float32 // 384-D, L2-normalised
}

// RetrievedChunk pairs a chunk with its similarity score for a particular query.
type RetrievedChunk struct {
	Chunk      DocumentChunk
	Similarity float64
}

// RetrievalResult is an ordered (descending similarity) list of retrieved chunks.
type RetrievalResult struct {
	Chunks []RetrievedChunk
}

// DocIDs returns the unique, order-preserving set of doc_ids present in the result.
func (r RetrievalResult) DocIDs() []string {
	seen := make(map[string]bool, len(r.Chunks))
	var ids []string
	for _, c := range r.Chunks {
		if !seen[c.Chunk.DocID] {
			seen[c.Chunk.DocID] = true
			ids = append(ids, c.Chunk.DocID)
		}
	}
	return ids
}

// Contains reports whether docID appears among the retrieved chunks.
func (r RetrievalResult) Contains(docID string) bool {
	for _, c := range r.Chunks {
		if c.Chunk.DocID == docID {
			return true
		}
	}
	return false
}

// Source is a single citation returned alongside a grounded answer.
type Source struct {
	DocID   string
	Snippet string
}

// Answer is the grounded-QA response: text constrained to retrieved chunks,
// its citations, and a confidence derived from retrieval similarity.
type Answer struct {
	Text       string
	Sources    []Source
	Confidence float64
}

// NotFoundText is the sentinel answer returned when retrieval is empty.
const NotFoundText = "I do not know based on the available policy documents."
