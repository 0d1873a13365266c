package domain

import (
	"errors"
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// SupportsEmbeddings returns true if the provider offers an embedding endpoint.
func (p AIProvider) SupportsEmbeddings() bool {
	return p == AIProviderOllama || p == AIProviderOpenAI
}

// SupportsCitations returns true if the provider attaches citations to streamed text.
func (p AIProvider) SupportsCitations() bool {
	return p == AIProviderAnthropic
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (empty uses the provider default).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// BatchSize is the number of texts per embedding request.
	BatchSize int

	// RateLimit is the maximum requests per second. Zero means unlimited.
	RateLimit float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (empty uses the provider default).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// MaxTokens bounds the generated output.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// QueryStrategy selects how a retrieval query is derived from a conversation.
type QueryStrategy string

// Available query strategies.
const (
	// QueryStrategyLatest uses the latest user message verbatim.
	QueryStrategyLatest QueryStrategy = "latest"

	// QueryStrategyLLM asks an LLM for a one-sentence search query.
	QueryStrategyLLM QueryStrategy = "llm"
)

// IsValid returns true if the strategy is recognised.
func (s QueryStrategy) IsValid() bool {
	return s == QueryStrategyLatest || s == QueryStrategyLLM
}

// QuerySettings holds query derivation configuration.
type QuerySettings struct {
	// Strategy is the derivation strategy.
	Strategy QueryStrategy

	// LLM is the model used by the llm strategy.
	LLM LLMSettings
}

// RetrievalSettings holds the evidence floor and cap.
type RetrievalSettings struct {
	MinSimilarity float64
	TopK          int
}

// Options converts the settings into retrieval options.
func (r RetrievalSettings) Options() RetrievalOptions {
	return RetrievalOptions{TopK: r.TopK, MinSimilarity: r.MinSimilarity}.Normalised()
}

// AnswerSettings holds answer streaming configuration.
type AnswerSettings struct {
	// Timeout bounds the whole answer, from query derivation to the last delta.
	Timeout time.Duration
}

// StoreBackend identifies a vector store implementation.
type StoreBackend string

// Available store backends.
const (
	StoreBackendMemory   StoreBackend = "memory"
	StoreBackendSQLite   StoreBackend = "sqlite"
	StoreBackendPostgres StoreBackend = "postgres"
)

// IsValid returns true if the backend is recognised.
func (b StoreBackend) IsValid() bool {
	switch b {
	case StoreBackendMemory, StoreBackendSQLite, StoreBackendPostgres:
		return true
	default:
		return false
	}
}

// StoreSettings holds vector store configuration.
type StoreSettings struct {
	// Backend is the store implementation.
	Backend StoreBackend

	// Path is the sqlite data directory (empty uses ~/.groundwork/data).
	Path string

	// DatabaseURL is the postgres connection string.
	DatabaseURL string

	// Dimensions is the embedding vector size of the index.
	// Zero derives it from the embedding model.
	Dimensions int
}

// IngestSettings holds chunking configuration.
type IngestSettings struct {
	// ChunkSize is the body length threshold in characters.
	ChunkSize int

	// FooterMarker is the boilerplate marker cut from every body section.
	FooterMarker string
}

// ServerSettings holds HTTP server configuration.
type ServerSettings struct {
	Addr string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Query     QuerySettings
	Retrieval RetrievalSettings
	Answer    AnswerSettings
	Store     StoreSettings
	Ingest    IngestSettings
	Server    ServerSettings
}

// Setting defaults.
const (
	DefaultBatchSize     = 100
	DefaultChunkSize     = 1024
	DefaultFooterMarker  = "[Like (opens in new window)]"
	DefaultAnswerTimeout = 30 * time.Second
	DefaultMaxTokens     = 2048
	DefaultServerAddr    = ":3000"
)

// DefaultAppSettings returns settings with sensible defaults.
// API keys are left empty; they come from config or the environment.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:  AIProviderOpenAI,
			Model:     DefaultEmbeddingModels()[AIProviderOpenAI],
			BatchSize: DefaultBatchSize,
		},
		LLM: LLMSettings{
			Provider:  AIProviderAnthropic,
			Model:     DefaultLLMModels()[AIProviderAnthropic],
			MaxTokens: DefaultMaxTokens,
		},
		Query: QuerySettings{
			Strategy: QueryStrategyLLM,
			LLM: LLMSettings{
				Provider:    AIProviderOpenAI,
				Model:       "gpt-3.5-turbo",
				MaxTokens:   256,
				Temperature: 1,
			},
		},
		Retrieval: RetrievalSettings{
			MinSimilarity: DefaultMinSimilarity,
			TopK:          DefaultTopK,
		},
		Answer: AnswerSettings{
			Timeout: DefaultAnswerTimeout,
		},
		Store: StoreSettings{
			Backend: StoreBackendSQLite,
		},
		Ingest: IngestSettings{
			ChunkSize:    DefaultChunkSize,
			FooterMarker: DefaultFooterMarker,
		},
		Server: ServerSettings{
			Addr: DefaultServerAddr,
		},
	}
}

// Validate checks the settings needed to serve or ingest.
// All problems are reported together, wrapped in ErrConfigInvalid.
func (s AppSettings) Validate() error {
	var errs []error
	if !s.Embedding.Provider.SupportsEmbeddings() {
		errs = append(errs, fmt.Errorf("embedding.provider %q does not support embeddings", s.Embedding.Provider))
	} else if !s.Embedding.IsConfigured() {
		errs = append(errs, fmt.Errorf("embedding.api_key is required for %s", s.Embedding.Provider))
	}
	if s.Embedding.Model == "" {
		errs = append(errs, errors.New("embedding.model is required"))
	}
	if !s.LLM.IsConfigured() {
		errs = append(errs, fmt.Errorf("llm provider %q is not configured", s.LLM.Provider))
	}
	if !s.Query.Strategy.IsValid() {
		errs = append(errs, fmt.Errorf("query.strategy %q is not recognised", s.Query.Strategy))
	}
	if s.Query.Strategy == QueryStrategyLLM && !s.Query.LLM.IsConfigured() {
		errs = append(errs, fmt.Errorf("query provider %q is not configured", s.Query.LLM.Provider))
	}
	if !s.Store.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("store.backend %q is not recognised", s.Store.Backend))
	}
	if s.Store.Backend == StoreBackendPostgres && s.Store.DatabaseURL == "" {
		errs = append(errs, errors.New("store.database_url is required for postgres"))
	}
	if s.Retrieval.MinSimilarity < -1 || s.Retrieval.MinSimilarity > 1 {
		errs = append(errs, fmt.Errorf("retrieval.min_similarity %v is outside [-1, 1]", s.Retrieval.MinSimilarity))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConfigInvalid, errors.Join(errs...))
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default answer models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-haiku-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// PipelineConfig holds post-processor pipeline configuration.
// Uses generic map-based config for extensibility - new processors can be added
// without modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration as generic maps.
	// Key is processor name, value is processor-specific config.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// PipelineConfig returns the chunking pipeline for these ingest settings:
// the header-aware chunker followed by the sanitizer.
func (s IngestSettings) PipelineConfig() PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker", "sanitizer"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size":    s.ChunkSize,
				"footer_marker": s.FooterMarker,
			},
		},
	}
}
