package contracts

import "errors"

// Sentinel error kinds, taxonomic rather than type names, matching spec.md
// §7. Components wrap these with fmt.Errorf("...: %w", err) so callers can
// errors.Is against the kind while still getting a descriptive message.
var (
	// ErrMissingMetadata: a KB file is malformed or lacks a required
	// front-matter field. Fatal for that file only; ingestion continues.
	ErrMissingMetadata = errors.New("missing metadata")

	// ErrEmbeddingUnavailable: the embedding model cannot load or returned
	// an empty vector. Fatal at startup; per-query it degrades to an error.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrRetrievalEmpty: retrieval returned zero chunks above threshold.
	// Not fatal; callers branch on it explicitly rather than treat it as failure.
	ErrRetrievalEmpty = errors.New("retrieval empty")

	// ErrLLMFailure: a timeout, non-parseable response, or validation
	// failure surviving one retry.
	ErrLLMFailure = errors.New("llm failure")

	// ErrToolUnavailable: the request store is unreachable or erroring.
	// Always recovered locally as empty history; never surfaced to a caller.
	ErrToolUnavailable = errors.New("tool unavailable")

	// ErrInvalidInput: message too short/long or an unsupported field.
	// Surfaced verbatim.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout: a per-call or per-request deadline was exceeded.
	ErrTimeout = errors.New("timeout")

	// ErrClassification marks a Classifier-stage LLMFailure that the
	// Orchestrator routes to human escalation.
	ErrClassification = errors.New("classification error")
)
