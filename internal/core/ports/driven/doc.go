// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Ingestion
//
//   - Connector: Lists raw documents from a source directory
//   - Normaliser: Parses front matter into a Document
//   - PostProcessor / PostProcessorPipeline: Segments and sanitizes chunks
//   - EmbeddingService: Generates vector embeddings
//   - TokenCounter: Estimates request size for embedding batches
//   - VectorStore: Persists embedded chunks and answers top-K queries
//
// # Serving
//
//   - QueryDeriver: Turns a conversation into a search query
//   - LLMService: Single-shot completions used for query derivation
//   - AnswerGenerator: Streams generated text and citations
//
// # Configuration
//
//   - ConfigStore: Application configuration
//   - PromptStore: Customisable prompt templates
//   - AIConfigValidator: Provider connectivity checks
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
