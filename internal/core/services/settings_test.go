package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/groundwork/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/groundwork/internal/core/domain"
)

// newTestSettingsService returns a service reading env from the given map.
func newTestSettingsService(store *memory.ConfigStore, env map[string]string) *SettingsService {
	service := NewSettingsService(store, nil)
	service.getenv = func(key string) string { return env[key] }
	return service
}

func TestNewSettingsService(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	require.NotNil(t, service)
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := newTestSettingsService(memory.NewConfigStore(), nil)

	settings, err := service.Get()

	require.NoError(t, err)
	require.NotNil(t, settings)

	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Embedding.Provider, settings.Embedding.Provider)
	assert.Equal(t, defaults.Embedding.Model, settings.Embedding.Model)
	assert.Equal(t, defaults.Embedding.BatchSize, settings.Embedding.BatchSize)
	assert.Equal(t, defaults.LLM.Provider, settings.LLM.Provider)
	assert.Equal(t, defaults.LLM.Model, settings.LLM.Model)
	assert.Equal(t, defaults.LLM.MaxTokens, settings.LLM.MaxTokens)
	assert.Equal(t, defaults.Query.Strategy, settings.Query.Strategy)
	assert.Equal(t, "gpt-3.5-turbo", settings.Query.LLM.Model)
	assert.Equal(t, 0.55, settings.Retrieval.MinSimilarity)
	assert.Equal(t, 8, settings.Retrieval.TopK)
	assert.Equal(t, 30*time.Second, settings.Answer.Timeout)
	assert.Equal(t, domain.StoreBackendSQLite, settings.Store.Backend)
	assert.Equal(t, 1536, settings.Store.Dimensions)
	assert.Equal(t, domain.DefaultChunkSize, settings.Ingest.ChunkSize)
	assert.Equal(t, domain.DefaultFooterMarker, settings.Ingest.FooterMarker)
	assert.Equal(t, domain.DefaultServerAddr, settings.Server.Addr)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("embedding.provider", "ollama")
	_ = store.Set("embedding.model", "mxbai-embed-large")
	_ = store.Set("embedding.rate_limit", 2.5)
	_ = store.Set("llm.provider", "openai")
	_ = store.Set("llm.temperature", 0.2)
	_ = store.Set("retrieval.min_similarity", 0.7)
	_ = store.Set("retrieval.top_k", 3)
	_ = store.Set("answer.timeout_seconds", 5)
	_ = store.Set("store.backend", "memory")
	_ = store.Set("server.addr", ":8080")

	settings, err := newTestSettingsService(store, nil).Get()

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, settings.Embedding.Provider)
	assert.Equal(t, "mxbai-embed-large", settings.Embedding.Model)
	assert.Equal(t, 2.5, settings.Embedding.RateLimit)
	assert.Equal(t, domain.AIProviderOpenAI, settings.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", settings.LLM.Model)
	assert.Equal(t, 0.2, settings.LLM.Temperature)
	assert.Equal(t, 0.7, settings.Retrieval.MinSimilarity)
	assert.Equal(t, 3, settings.Retrieval.TopK)
	assert.Equal(t, 5*time.Second, settings.Answer.Timeout)
	assert.Equal(t, domain.StoreBackendMemory, settings.Store.Backend)
	assert.Equal(t, 1024, settings.Store.Dimensions)
	assert.Equal(t, ":8080", settings.Server.Addr)
}

func TestSettingsService_Get_ZeroFloatIsKept(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("retrieval.min_similarity", 0.0)

	settings, err := newTestSettingsService(store, nil).Get()

	require.NoError(t, err)
	assert.Equal(t, 0.0, settings.Retrieval.MinSimilarity)
}

func TestSettingsService_Get_InvalidValuesReturnDefaults(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("embedding.provider", "invalid_provider")
	_ = store.Set("query.strategy", "guess")
	_ = store.Set("store.backend", "redis")

	settings, err := newTestSettingsService(store, nil).Get()

	require.NoError(t, err)
	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Embedding.Provider, settings.Embedding.Provider)
	assert.Equal(t, defaults.Query.Strategy, settings.Query.Strategy)
	assert.Equal(t, defaults.Store.Backend, settings.Store.Backend)
}

func TestSettingsService_Get_APIKeysFromEnvironment(t *testing.T) {
	env := map[string]string{
		EnvOpenAIAPIKey:    "sk-openai",
		EnvAnthropicAPIKey: "sk-ant",
		EnvDatabaseURL:     "postgres://localhost/groundwork",
	}

	settings, err := newTestSettingsService(memory.NewConfigStore(), env).Get()

	require.NoError(t, err)
	assert.Equal(t, "sk-openai", settings.Embedding.APIKey)
	assert.Equal(t, "sk-ant", settings.LLM.APIKey)
	assert.Equal(t, "sk-openai", settings.Query.LLM.APIKey)
	assert.Equal(t, "postgres://localhost/groundwork", settings.Store.DatabaseURL)
}

func TestSettingsService_Get_ConfiguredKeyWinsOverEnvironment(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("embedding.api_key", "sk-config")

	settings, err := newTestSettingsService(store, map[string]string{EnvOpenAIAPIKey: "sk-env"}).Get()

	require.NoError(t, err)
	assert.Equal(t, "sk-config", settings.Embedding.APIKey)
}

func TestSettingsService_Get_QueryModelSharesMatchingProvider(t *testing.T) {
	tests := []struct {
		name       string
		llm        string
		wantKey    string
		wantBase   string
		queryModel string
	}{
		{name: "same provider", llm: "openai", wantKey: "sk-llm", wantBase: "https://proxy.example.com", queryModel: "gpt-3.5-turbo"},
		{name: "different provider", llm: "anthropic", wantKey: "sk-env-openai", wantBase: "", queryModel: "gpt-3.5-turbo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewConfigStore()
			_ = store.Set("llm.provider", tt.llm)
			_ = store.Set("llm.api_key", "sk-llm")
			_ = store.Set("llm.base_url", "https://proxy.example.com")

			settings, err := newTestSettingsService(store, map[string]string{EnvOpenAIAPIKey: "sk-env-openai"}).Get()

			require.NoError(t, err)
			assert.Equal(t, domain.AIProviderOpenAI, settings.Query.LLM.Provider)
			assert.Equal(t, tt.queryModel, settings.Query.LLM.Model)
			assert.Equal(t, tt.wantKey, settings.Query.LLM.APIKey)
			assert.Equal(t, tt.wantBase, settings.Query.LLM.BaseURL)
		})
	}
}

func TestSettingsService_Get_QueryModelFollowsProvider(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("query.provider", "ollama")

	settings, err := newTestSettingsService(store, nil).Get()

	require.NoError(t, err)
	assert.Equal(t, "llama3.2", settings.Query.LLM.Model)
	assert.Empty(t, settings.Query.LLM.APIKey)
}

func TestSettingsService_Save(t *testing.T) {
	store := memory.NewConfigStore()
	service := newTestSettingsService(store, nil)

	settings := domain.DefaultAppSettings()
	settings.Embedding.Provider = domain.AIProviderOllama
	settings.Embedding.Model = "nomic-embed-text"
	settings.Embedding.BaseURL = "http://localhost:11434"
	settings.LLM.Provider = domain.AIProviderOllama
	settings.LLM.Model = "llama3.2"
	settings.Retrieval.TopK = 4
	settings.Answer.Timeout = 12 * time.Second
	settings.Store.Backend = domain.StoreBackendPostgres
	settings.Store.DatabaseURL = "postgres://db/groundwork"

	require.NoError(t, service.Save(&settings))

	retrieved, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, retrieved.Embedding.Provider)
	assert.Equal(t, "http://localhost:11434", retrieved.Embedding.BaseURL)
	assert.Equal(t, "llama3.2", retrieved.LLM.Model)
	assert.Equal(t, 4, retrieved.Retrieval.TopK)
	assert.Equal(t, 12*time.Second, retrieved.Answer.Timeout)
	assert.Equal(t, domain.StoreBackendPostgres, retrieved.Store.Backend)
	assert.Equal(t, "postgres://db/groundwork", retrieved.Store.DatabaseURL)
}

func TestSettingsService_Save_DoesNotPersistEnvironmentSecrets(t *testing.T) {
	store := memory.NewConfigStore()
	env := map[string]string{EnvOpenAIAPIKey: "sk-env", EnvAnthropicAPIKey: "sk-ant-env"}
	service := newTestSettingsService(store, env)

	settings, err := service.Get()
	require.NoError(t, err)
	require.NoError(t, service.Save(settings))

	_, embedKey := store.Get("embedding.api_key")
	_, llmKey := store.Get("llm.api_key")
	assert.False(t, embedKey)
	assert.False(t, llmKey)
}

func TestSettingsService_Save_PersistsExplicitSecret(t *testing.T) {
	store := memory.NewConfigStore()
	service := newTestSettingsService(store, map[string]string{EnvOpenAIAPIKey: "sk-env"})

	settings := domain.DefaultAppSettings()
	settings.Embedding.APIKey = "sk-explicit"
	require.NoError(t, service.Save(&settings))

	assert.Equal(t, "sk-explicit", store.GetString("embedding.api_key"))
}

// failingConfigStore fails Set for one key, or for every key when failOn is empty.
type failingConfigStore struct {
	*memory.ConfigStore
	failOn string
}

func (f *failingConfigStore) Set(key string, value any) error {
	if f.failOn == "" || key == f.failOn {
		return assert.AnError
	}
	return f.ConfigStore.Set(key, value)
}

func TestSettingsService_Save_Errors(t *testing.T) {
	for _, key := range []string{"embedding.provider", "retrieval.top_k", "server.addr", "llm.api_key"} {
		t.Run(key, func(t *testing.T) {
			store := &failingConfigStore{ConfigStore: memory.NewConfigStore(), failOn: key}
			service := NewSettingsService(store, nil)
			service.getenv = func(string) string { return "" }

			settings := domain.DefaultAppSettings()
			settings.LLM.APIKey = "sk-ant"

			err := service.Save(&settings)

			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
			assert.ErrorIs(t, err, assert.AnError)
		})
	}
}

func TestSettingsService_Set(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  any
	}{
		{"embedding.provider", "ollama", "ollama"},
		{"embedding.batch_size", " 50 ", 50},
		{"embedding.rate_limit", "1.5", 1.5},
		{"llm.provider", "anthropic", "anthropic"},
		{"query.strategy", "latest", "latest"},
		{"retrieval.min_similarity", "-1", -1.0},
		{"retrieval.top_k", "12", 12},
		{"store.backend", "postgres", "postgres"},
		{"ingest.footer_marker", "Share this:", "Share this:"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			store := memory.NewConfigStore()
			service := newTestSettingsService(store, nil)

			require.NoError(t, service.Set(tt.key, tt.value))

			got, ok := store.Get(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettingsService_Set_Rejects(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"embedding.unknown", "x"},
		{"embedding.provider", "anthropic"},
		{"llm.provider", "cohere"},
		{"query.strategy", "guess"},
		{"store.backend", "redis"},
		{"retrieval.top_k", "eight"},
		{"retrieval.min_similarity", "1.5"},
		{"llm.temperature", "warm"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			store := memory.NewConfigStore()
			service := newTestSettingsService(store, nil)

			err := service.Set(tt.key, tt.value)

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			_, ok := store.Get(tt.key)
			assert.False(t, ok)
		})
	}
}

func TestSettingsService_Keys(t *testing.T) {
	keys := NewSettingsService(memory.NewConfigStore(), nil).Keys()

	assert.Len(t, keys, len(keyKinds))
	assert.IsNonDecreasing(t, keys)
	assert.Contains(t, keys, "retrieval.min_similarity")
	assert.Contains(t, keys, "store.database_url")
}

func TestSettingsService_Validate(t *testing.T) {
	t.Run("missing keys", func(t *testing.T) {
		service := newTestSettingsService(memory.NewConfigStore(), nil)

		err := service.Validate()

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConfigInvalid)
		assert.Contains(t, err.Error(), "embedding.api_key")
	})

	t.Run("keys from environment", func(t *testing.T) {
		env := map[string]string{EnvOpenAIAPIKey: "sk-openai", EnvAnthropicAPIKey: "sk-ant"}
		service := newTestSettingsService(memory.NewConfigStore(), env)

		assert.NoError(t, service.Validate())
	})

	t.Run("local only", func(t *testing.T) {
		store := memory.NewConfigStore()
		_ = store.Set("embedding.provider", "ollama")
		_ = store.Set("llm.provider", "ollama")
		_ = store.Set("query.strategy", "latest")
		service := newTestSettingsService(store, nil)

		assert.NoError(t, service.Validate())
	})

	t.Run("postgres without url", func(t *testing.T) {
		store := memory.NewConfigStore()
		_ = store.Set("embedding.provider", "ollama")
		_ = store.Set("llm.provider", "ollama")
		_ = store.Set("query.strategy", "latest")
		_ = store.Set("store.backend", "postgres")
		service := newTestSettingsService(store, nil)

		err := service.Validate()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "store.database_url")
	})
}

func TestSettingsService_GetDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	assert.Equal(t, domain.DefaultAppSettings(), service.GetDefaults())
}

// mockAIConfigValidator implements driven.AIConfigValidator for testing.
type mockAIConfigValidator struct {
	embedErr error
	llmErr   error
}

func (m *mockAIConfigValidator) ValidateEmbedding(_ *domain.EmbeddingSettings) error {
	return m.embedErr
}

func (m *mockAIConfigValidator) ValidateLLM(_ *domain.LLMSettings) error {
	return m.llmErr
}

func TestSettingsService_ValidateEmbeddingConfig(t *testing.T) {
	store := memory.NewConfigStore()

	assert.NoError(t, NewSettingsService(store, nil).ValidateEmbeddingConfig())
	assert.NoError(t, NewSettingsService(store, &mockAIConfigValidator{}).ValidateEmbeddingConfig())
	assert.ErrorIs(t, NewSettingsService(store, &mockAIConfigValidator{embedErr: assert.AnError}).ValidateEmbeddingConfig(), assert.AnError)
}

func TestSettingsService_ValidateLLMConfig(t *testing.T) {
	store := memory.NewConfigStore()

	assert.NoError(t, NewSettingsService(store, nil).ValidateLLMConfig())
	assert.NoError(t, NewSettingsService(store, &mockAIConfigValidator{}).ValidateLLMConfig())
	assert.ErrorIs(t, NewSettingsService(store, &mockAIConfigValidator{llmErr: assert.AnError}).ValidateLLMConfig(), assert.AnError)
}
