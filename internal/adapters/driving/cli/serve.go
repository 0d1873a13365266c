package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/groundwork/internal/adapters/driving/api"
	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat and search HTTP server",
	Long: `Serves the HTTP API:

  POST /api/chat      stream a cited answer as server-sent events
  GET  /api/search    ranked passages as JSON (?q=&limit=&min_similarity=&dedupe=)
  GET  /check/healthy liveness check

Prompt files are reloaded when edited. Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := requireService(answerService != nil && retriever != nil, "answer service"); err != nil {
		return err
	}

	addr := serveAddr
	retrieval := domain.DefaultRetrievalOptions()
	if settingsService != nil {
		settings, err := settingsService.Get()
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}
		if addr == "" {
			addr = settings.Server.Addr
		}
		retrieval = settings.Retrieval.Options()
	}
	if addr == "" {
		addr = domain.DefaultServerAddr
	}

	server, err := api.NewServer(&api.Ports{
		Answer:    answerService,
		Retriever: retriever,
	}, api.WithRetrievalDefaults(retrieval))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if watchPrompts != nil {
		go func() {
			if err := watchPrompts(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("prompt reload disabled: %v", err)
			}
		}()
	}

	cmd.Printf("Serving on %s\n", addr)
	return server.Run(ctx, addr)
}
