// Command groundwork ingests a markdown corpus and serves grounded answers.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/groundwork/internal/adapters/driven/ai"
	"github.com/custodia-labs/groundwork/internal/adapters/driven/config/file"
	"github.com/custodia-labs/groundwork/internal/adapters/driven/storage"
	"github.com/custodia-labs/groundwork/internal/adapters/driving/cli"
	"github.com/custodia-labs/groundwork/internal/connectors/filesystem"
	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
	"github.com/custodia-labs/groundwork/internal/core/services"
	"github.com/custodia-labs/groundwork/internal/logger"
	"github.com/custodia-labs/groundwork/internal/normalisers/markdown"
	"github.com/custodia-labs/groundwork/internal/postprocessors"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// storeOpenTimeout bounds connecting to the vector store at startup.
const storeOpenTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("load .env: %v", err)
	}
	cli.SetVersion(version)

	configDir, err := file.DefaultDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	prompts, err := file.NewPromptStore(filepath.Join(configDir, "prompts"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	svc := cli.Services{
		Settings:     settingsService,
		Prompts:      prompts,
		WatchPrompts: prompts.Watch,
	}

	cleanup, err := wire(&svc, settingsService, prompts)
	if err != nil {
		// Config commands still work; the others report this.
		svc.InitErr = err
		logger.Debug("service initialisation failed: %v", err)
	}
	defer cleanup()

	cli.SetServices(svc)
	if err := cli.Execute(); err != nil {
		return 1
	}
	return 0
}

// wire builds the AI services, the vector store and the pipeline services.
// The returned cleanup is always safe to call.
func wire(svc *cli.Services, settingsService *services.SettingsService, prompts driven.PromptStore) (func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	settings, err := settingsService.Get()
	if err != nil {
		return cleanup, fmt.Errorf("load settings: %w", err)
	}

	aiServices, err := ai.Init(*settings)
	if err != nil {
		return cleanup, err
	}
	closers = append(closers, aiServices.Close)

	gateway := services.NewEmbeddingGateway(aiServices.EmbeddingService,
		services.WithTokenCounter(aiServices.TokenCounter),
		services.WithRateLimit(settings.Embedding.RateLimit),
		services.WithBatchSize(settings.Embedding.BatchSize),
	)

	ctx, cancel := context.WithTimeout(context.Background(), storeOpenTimeout)
	defer cancel()
	store, err := storage.NewVectorStore(ctx, settings.Store, gateway.Dimensions())
	if err != nil {
		return cleanup, fmt.Errorf("open vector store: %w", err)
	}
	closers = append(closers, func() {
		if err := store.Close(); err != nil {
			logger.Warn("close vector store: %v", err)
		}
	})

	retriever := services.NewRetriever(gateway, store, settings.Retrieval.Options())

	var deriver driven.QueryDeriver = services.LatestMessageDeriver{}
	if aiServices.QueryLLM != nil {
		llmDeriver := services.NewLLMQueryDeriver(aiServices.QueryLLM)
		llmDeriver.SetPromptStore(prompts)
		deriver = llmDeriver
	}

	answer := services.NewAnswerStreamer(deriver, retriever, aiServices.Generator,
		services.WithAnswerTimeout(settings.Answer.Timeout),
		services.WithMaxTokens(settings.LLM.MaxTokens),
		services.WithTemperature(settings.LLM.Temperature),
	)
	answer.SetPromptStore(prompts)

	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)
	pipeline, err := postprocessors.Build(registry, settings.Ingest.PipelineConfig())
	if err != nil {
		return cleanup, fmt.Errorf("%w: %w", domain.ErrConfigInvalid, err)
	}

	svc.Retriever = retriever
	svc.Answer = answer
	svc.Ingest = services.NewIngestService(markdown.New(), pipeline, gateway, store)
	svc.NewConnector = func(root string) driven.Connector {
		return filesystem.New(root)
	}
	return cleanup, nil
}
