package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyQuery indicates a retrieval was requested with no query text.
	ErrEmptyQuery = errors.New("empty query")

	// ErrUnsupportedType indicates an unknown provider, backend or event type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrConfigInvalid indicates settings that cannot start the application.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrLLMUnavailable indicates the LLM service is not configured or unreachable.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured or unreachable.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrStoreUnavailable indicates the vector store could not be opened.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrDimensionMismatch indicates a vector whose length differs from the index.
	// Every row in a store shares one dimensionality for the life of the index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrBatchFailed indicates an embedding or insert batch failed during ingestion.
	ErrBatchFailed = errors.New("batch failed")

	// ErrNoUserMessage indicates a conversation without any user turn.
	ErrNoUserMessage = errors.New("conversation has no user message")

	// ErrUnknownEvent indicates a stream frame with an unrecognised type tag.
	ErrUnknownEvent = errors.New("unknown event type")
)
