// Package cli provides the groundwork command line interface.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
	"github.com/custodia-labs/groundwork/internal/core/ports/driving"
	"github.com/custodia-labs/groundwork/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Services injected by the bootstrap.
var (
	settingsService driving.SettingsService
	ingestService   driving.IngestService
	retriever       driving.Retriever
	answerService   driving.AnswerService
	promptStore     driven.PromptStore
	watchPrompts    func(ctx context.Context) error
	newConnector    func(root string) driven.Connector

	// servicesErr is why the AI services could not be built. Commands that
	// need them report it; config commands still work.
	servicesErr error
)

// Services holds everything the commands run against.
type Services struct {
	Settings  driving.SettingsService
	Ingest    driving.IngestService
	Retriever driving.Retriever
	Answer    driving.AnswerService
	Prompts   driven.PromptStore

	// WatchPrompts reloads prompts on edit until ctx ends. Used by serve.
	WatchPrompts func(ctx context.Context) error

	// NewConnector creates the document source for ingest.
	NewConnector func(root string) driven.Connector

	// InitErr is set when the AI services failed to initialise.
	InitErr error
}

// SetServices injects the services used by the commands.
func SetServices(s Services) {
	settingsService = s.Settings
	ingestService = s.Ingest
	retriever = s.Retriever
	answerService = s.Answer
	promptStore = s.Prompts
	watchPrompts = s.WatchPrompts
	newConnector = s.NewConnector
	servicesErr = s.InitErr
}

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "groundwork",
	Short: "Grounded answers over your markdown corpus",
	Long: `Groundwork ingests a directory of markdown documents into a vector store
and answers questions about them with cited, streamed responses.

Start with 'groundwork config check', then 'groundwork ingest <dir>'.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// requireService reports why a service is missing.
func requireService(present bool, name string) error {
	if present {
		return nil
	}
	if servicesErr != nil {
		return servicesErr
	}
	return errors.New(name + " not configured")
}
