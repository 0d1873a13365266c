package services

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
	"github.com/custodia-labs/groundwork/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedBatchSize  = "embedding.batch_size"
	keyEmbedRateLimit  = "embedding.rate_limit"
	keyLLMProvider     = "llm.provider"
	keyLLMModel        = "llm.model"
	keyLLMBaseURL      = "llm.base_url"
	keyLLMAPIKey       = "llm.api_key"
	keyLLMMaxTokens    = "llm.max_tokens"
	keyLLMTemperature  = "llm.temperature"
	keyQueryStrategy   = "query.strategy"
	keyQueryProvider   = "query.provider"
	keyQueryModel      = "query.model"
	keyMinSimilarity   = "retrieval.min_similarity"
	keyTopK            = "retrieval.top_k"
	keyAnswerTimeout   = "answer.timeout_seconds"
	keyStoreBackend    = "store.backend"
	keyStorePath       = "store.path"
	keyStoreDatabase   = "store.database_url"
	keyStoreDimensions = "store.dimensions"
	keyChunkSize       = "ingest.chunk_size"
	keyFooterMarker    = "ingest.footer_marker"
	keyServerAddr      = "server.addr"
)

// Environment variables consulted when the matching key is not configured.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvDatabaseURL     = "GROUNDWORK_DATABASE_URL"
)

// keyKind is the value type stored under a key.
type keyKind int

const (
	kindString keyKind = iota
	kindInt
	kindFloat
)

// keyKinds lists every recognised key and how Set parses its value.
var keyKinds = map[string]keyKind{
	keyEmbedProvider:   kindString,
	keyEmbedModel:      kindString,
	keyEmbedBaseURL:    kindString,
	keyEmbedAPIKey:     kindString,
	keyEmbedBatchSize:  kindInt,
	keyEmbedRateLimit:  kindFloat,
	keyLLMProvider:     kindString,
	keyLLMModel:        kindString,
	keyLLMBaseURL:      kindString,
	keyLLMAPIKey:       kindString,
	keyLLMMaxTokens:    kindInt,
	keyLLMTemperature:  kindFloat,
	keyQueryStrategy:   kindString,
	keyQueryProvider:   kindString,
	keyQueryModel:      kindString,
	keyMinSimilarity:   kindFloat,
	keyTopK:            kindInt,
	keyAnswerTimeout:   kindInt,
	keyStoreBackend:    kindString,
	keyStorePath:       kindString,
	keyStoreDatabase:   kindString,
	keyStoreDimensions: kindInt,
	keyChunkSize:       kindInt,
	keyFooterMarker:    kindString,
	keyServerAddr:      kindString,
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings.
// Unset keys take their defaults; API keys fall back to the environment.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	embedProvider := s.getProvider(keyEmbedProvider, defaults.Embedding.Provider)
	llmProvider := s.getProvider(keyLLMProvider, defaults.LLM.Provider)
	queryProvider := s.getProvider(keyQueryProvider, defaults.Query.LLM.Provider)

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:  embedProvider,
			Model:     s.getString(keyEmbedModel, defaultEmbeddingModel(embedProvider, defaults.Embedding)),
			BaseURL:   s.configStore.GetString(keyEmbedBaseURL), // No default - empty uses the provider endpoint
			APIKey:    s.getAPIKey(keyEmbedAPIKey, embedProvider),
			BatchSize: s.getInt(keyEmbedBatchSize, defaults.Embedding.BatchSize),
			RateLimit: s.configStore.GetFloat(keyEmbedRateLimit),
		},
		LLM: domain.LLMSettings{
			Provider:    llmProvider,
			Model:       s.getString(keyLLMModel, defaultModelFor(llmProvider, defaults.LLM.Model)),
			BaseURL:     s.configStore.GetString(keyLLMBaseURL),
			APIKey:      s.getAPIKey(keyLLMAPIKey, llmProvider),
			MaxTokens:   s.getInt(keyLLMMaxTokens, defaults.LLM.MaxTokens),
			Temperature: s.getFloat(keyLLMTemperature, defaults.LLM.Temperature),
		},
		Query: domain.QuerySettings{
			Strategy: s.getStrategy(defaults.Query.Strategy),
			LLM: domain.LLMSettings{
				Provider:    queryProvider,
				Model:       s.getString(keyQueryModel, defaultQueryModel(queryProvider, defaults.Query.LLM)),
				MaxTokens:   defaults.Query.LLM.MaxTokens,
				Temperature: defaults.Query.LLM.Temperature,
			},
		},
		Retrieval: domain.RetrievalSettings{
			MinSimilarity: s.getFloat(keyMinSimilarity, defaults.Retrieval.MinSimilarity),
			TopK:          s.getInt(keyTopK, defaults.Retrieval.TopK),
		},
		Answer: domain.AnswerSettings{
			Timeout: s.getSeconds(keyAnswerTimeout, defaults.Answer.Timeout),
		},
		Store: domain.StoreSettings{
			Backend:     s.getBackend(defaults.Store.Backend),
			Path:        s.configStore.GetString(keyStorePath),
			DatabaseURL: s.getString(keyStoreDatabase, s.getenv(EnvDatabaseURL)),
			Dimensions:  s.configStore.GetInt(keyStoreDimensions),
		},
		Ingest: domain.IngestSettings{
			ChunkSize:    s.getInt(keyChunkSize, defaults.Ingest.ChunkSize),
			FooterMarker: s.getString(keyFooterMarker, defaults.Ingest.FooterMarker),
		},
		Server: domain.ServerSettings{
			Addr: s.getString(keyServerAddr, defaults.Server.Addr),
		},
	}

	// The query model shares the answer model's endpoint and key only when
	// both use the same provider.
	if queryProvider == llmProvider {
		settings.Query.LLM.BaseURL = settings.LLM.BaseURL
		settings.Query.LLM.APIKey = settings.LLM.APIKey
	} else {
		settings.Query.LLM.APIKey = s.envAPIKey(queryProvider)
	}

	if settings.Store.Dimensions == 0 {
		settings.Store.Dimensions = domain.EmbeddingDimensions()[settings.Embedding.Model]
	}

	return settings, nil
}

// Save persists application settings.
// Secrets are only written when set and not taken from the environment.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedBatchSize, settings.Embedding.BatchSize},
		{keyEmbedRateLimit, settings.Embedding.RateLimit},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMMaxTokens, settings.LLM.MaxTokens},
		{keyLLMTemperature, settings.LLM.Temperature},
		{keyQueryStrategy, string(settings.Query.Strategy)},
		{keyQueryProvider, settings.Query.LLM.Provider.String()},
		{keyQueryModel, settings.Query.LLM.Model},
		{keyMinSimilarity, settings.Retrieval.MinSimilarity},
		{keyTopK, settings.Retrieval.TopK},
		{keyAnswerTimeout, int(settings.Answer.Timeout / time.Second)},
		{keyStoreBackend, string(settings.Store.Backend)},
		{keyStorePath, settings.Store.Path},
		{keyStoreDimensions, settings.Store.Dimensions},
		{keyChunkSize, settings.Ingest.ChunkSize},
		{keyFooterMarker, settings.Ingest.FooterMarker},
		{keyServerAddr, settings.Server.Addr},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	secrets := []struct{ key, value, env string }{
		{keyEmbedAPIKey, settings.Embedding.APIKey, s.envAPIKey(settings.Embedding.Provider)},
		{keyLLMAPIKey, settings.LLM.APIKey, s.envAPIKey(settings.LLM.Provider)},
		{keyStoreDatabase, settings.Store.DatabaseURL, s.getenv(EnvDatabaseURL)},
	}
	for _, v := range secrets {
		if v.value == "" || v.value == v.env {
			continue
		}
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	return nil
}

// Set stores a single key, parsing value by the key's type.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := keyKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	var parsed any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidInput, key)
		}
		parsed = n
	case kindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("%w: %s must be a number", domain.ErrInvalidInput, key)
		}
		parsed = f
	default:
		parsed = value
	}

	if err := s.checkValue(key, parsed); err != nil {
		return err
	}
	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// checkValue rejects enumerated values that Get would silently replace.
func (s *SettingsService) checkValue(key string, value any) error {
	str, _ := value.(string)
	switch key {
	case keyEmbedProvider, keyLLMProvider, keyQueryProvider:
		if !domain.AIProvider(str).IsValid() {
			return fmt.Errorf("%w: %s %q is not a known provider", domain.ErrInvalidInput, key, str)
		}
		if key == keyEmbedProvider && !domain.AIProvider(str).SupportsEmbeddings() {
			return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidInput, str)
		}
	case keyQueryStrategy:
		if !domain.QueryStrategy(str).IsValid() {
			return fmt.Errorf("%w: %s must be latest or llm", domain.ErrInvalidInput, key)
		}
	case keyStoreBackend:
		if !domain.StoreBackend(str).IsValid() {
			return fmt.Errorf("%w: %s must be memory, sqlite or postgres", domain.ErrInvalidInput, key)
		}
	case keyMinSimilarity:
		if f := value.(float64); f < -1 || f > 1 {
			return fmt.Errorf("%w: %s must be within [-1, 1]", domain.ErrInvalidInput, key)
		}
	}
	return nil
}

// Keys returns every recognised configuration key in sorted order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(keyKinds))
	for k := range keyKinds {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Validate checks current settings are sufficient to ingest and serve.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return settings.Validate()
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getSeconds(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return time.Duration(val) * time.Second
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getStrategy(defaultVal domain.QueryStrategy) domain.QueryStrategy {
	strategy := domain.QueryStrategy(s.configStore.GetString(keyQueryStrategy))
	if !strategy.IsValid() {
		return defaultVal
	}
	return strategy
}

func (s *SettingsService) getBackend(defaultVal domain.StoreBackend) domain.StoreBackend {
	backend := domain.StoreBackend(s.configStore.GetString(keyStoreBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

// getAPIKey returns the configured key, or the provider's environment variable.
func (s *SettingsService) getAPIKey(key string, provider domain.AIProvider) string {
	if val := s.configStore.GetString(key); val != "" {
		return val
	}
	return s.envAPIKey(provider)
}

// envAPIKey returns the provider's API key from the environment.
func (s *SettingsService) envAPIKey(provider domain.AIProvider) string {
	switch provider {
	case domain.AIProviderOpenAI:
		return s.getenv(EnvOpenAIAPIKey)
	case domain.AIProviderAnthropic:
		return s.getenv(EnvAnthropicAPIKey)
	default:
		return ""
	}
}

// defaultModelFor returns the default answer model for provider.
func defaultModelFor(provider domain.AIProvider, fallback string) string {
	if model, ok := domain.DefaultLLMModels()[provider]; ok {
		return model
	}
	return fallback
}

// defaultEmbeddingModel returns the default embedding model for provider.
func defaultEmbeddingModel(provider domain.AIProvider, defaults domain.EmbeddingSettings) string {
	if provider == defaults.Provider {
		return defaults.Model
	}
	return domain.DefaultEmbeddingModels()[provider]
}

// defaultQueryModel returns the query model default for provider.
func defaultQueryModel(provider domain.AIProvider, defaults domain.LLMSettings) string {
	if provider == defaults.Provider {
		return defaults.Model
	}
	return domain.DefaultLLMModels()[provider]
}
