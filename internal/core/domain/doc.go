// Package domain defines the core business entities for groundwork.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document, Section, Chunk: ingestion units from raw text to passages
//   - EmbeddedChunk: a persisted passage with its vector
//   - EvidenceItem: a retrieved passage with its similarity score
//   - Citation: a reference from generated text back to evidence
//   - Message, Event, Answer: the conversation and its streamed reply
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
