// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Ingestion runs IngestService over a connector: normalise, chunk,
// then embed and store through the EmbeddingGateway in batches.
// Serving runs AnswerStreamer: derive a query, retrieve evidence
// with Retriever, then stream generated text and citations.
package services
