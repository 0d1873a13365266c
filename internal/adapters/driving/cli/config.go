package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/groundwork/internal/adapters/driving/cli/styles"
	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change the settings in ~/.groundwork/config.toml.

API keys may also come from OPENAI_API_KEY and ANTHROPIC_API_KEY, or a .env
file in the working directory.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Set a configuration key",
	Long: `Set a configuration key such as llm.model or retrieval.top_k.

Omit the value of an api_key to enter it without echo.
Run 'groundwork config keys' to list every key.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConfigSet,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List configuration keys",
	Args:  cobra.NoArgs,
	RunE:  runConfigKeys,
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate settings and ping the providers",
	Args:  cobra.NoArgs,
	RunE:  runConfigCheck,
}

var configPromptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Show the active prompts",
	Args:  cobra.NoArgs,
	RunE:  runConfigPrompts,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configCheckCmd)
	configCmd.AddCommand(configPromptsCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	printEndpoint(cmd, settings.Embedding.Provider, settings.Embedding.BaseURL, settings.Embedding.APIKey)
	cmd.Printf("  Batch size: %d\n", settings.Embedding.BatchSize)
	if settings.Embedding.RateLimit > 0 {
		cmd.Printf("  Rate limit: %.1f req/s\n", settings.Embedding.RateLimit)
	}
	printStatus(cmd, settings.Embedding.IsConfigured())

	cmd.Println("[LLM]")
	printLLM(cmd, settings.LLM)
	cmd.Printf("  Max tokens: %d\n", settings.LLM.MaxTokens)
	cmd.Printf("  Temperature: %.2f\n", settings.LLM.Temperature)
	printStatus(cmd, settings.LLM.IsConfigured())

	cmd.Println("[Query]")
	cmd.Printf("  Strategy: %s\n", settings.Query.Strategy)
	if settings.Query.Strategy == domain.QueryStrategyLLM {
		printLLM(cmd, settings.Query.LLM)
		printStatus(cmd, settings.Query.LLM.IsConfigured())
	} else {
		cmd.Println()
	}

	opts := settings.Retrieval.Options()
	cmd.Println("[Retrieval]")
	cmd.Printf("  Top K: %d\n", opts.TopK)
	cmd.Printf("  Min similarity: %.2f\n", opts.MinSimilarity)
	cmd.Printf("  Answer timeout: %s\n", settings.Answer.Timeout)
	cmd.Println()

	cmd.Println("[Store]")
	cmd.Printf("  Backend: %s\n", settings.Store.Backend)
	switch settings.Store.Backend {
	case domain.StoreBackendPostgres:
		cmd.Printf("  Database URL: %s\n", maskDatabaseURL(settings.Store.DatabaseURL))
	case domain.StoreBackendSQLite:
		cmd.Printf("  Path: %s\n", valueOr(settings.Store.Path, "(default)"))
	}
	if settings.Store.Dimensions > 0 {
		cmd.Printf("  Dimensions: %d\n", settings.Store.Dimensions)
	}
	cmd.Println()

	cmd.Println("[Ingest]")
	cmd.Printf("  Chunk size: %d\n", settings.Ingest.ChunkSize)
	cmd.Printf("  Footer marker: %q\n", settings.Ingest.FooterMarker)
	cmd.Println()

	cmd.Println("[Server]")
	cmd.Printf("  Address: %s\n", settings.Server.Addr)
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'groundwork config set <key> <value>' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func printLLM(cmd *cobra.Command, llm domain.LLMSettings) {
	cmd.Printf("  Provider: %s\n", llm.Provider.Description())
	cmd.Printf("  Model: %s\n", llm.Model)
	printEndpoint(cmd, llm.Provider, llm.BaseURL, llm.APIKey)
}

func printEndpoint(cmd *cobra.Command, provider domain.AIProvider, baseURL, apiKey string) {
	if provider == domain.AIProviderOllama || baseURL != "" {
		cmd.Printf("  Base URL: %s\n", valueOr(baseURL, "(default)"))
	}
	if provider.RequiresAPIKey() {
		if apiKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(apiKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
}

func printStatus(cmd *cobra.Command, configured bool) {
	status := "configured"
	if !configured {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
	cmd.Println()
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key := args[0]
	var value string
	switch {
	case len(args) == 2:
		value = args[1]
	case strings.HasSuffix(key, "api_key"):
		cmd.Print("Enter API key: ")
		value = readPassword(cmd)
		cmd.Println()
		if value == "" {
			return errors.New("API key is required")
		}
	default:
		return fmt.Errorf("missing value for %s", key)
	}

	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	display := value
	if strings.HasSuffix(key, "api_key") {
		display = maskAPIKey(value)
	} else if strings.HasSuffix(key, "database_url") {
		display = maskDatabaseURL(value)
	}
	cmd.Printf("Set %s = %s\n", key, display)
	return nil
}

func runConfigKeys(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	for _, key := range settingsService.Keys() {
		cmd.Println(key)
	}
	return nil
}

func runConfigCheck(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	s := styles.DefaultStyles()

	var failed bool
	check := func(name string, fn func() error) {
		cmd.Printf("%-28s", name+"...")
		if err := fn(); err != nil {
			failed = true
			cmd.Println(s.Error.Render("FAILED: " + err.Error()))
			return
		}
		cmd.Println(s.Success.Render("OK"))
	}

	check("Settings", settingsService.Validate)
	check("Embedding provider", settingsService.ValidateEmbeddingConfig)
	check("LLM provider", settingsService.ValidateLLMConfig)

	if failed {
		return errors.New("configuration check failed")
	}
	cmd.Println("All checks passed.")
	return nil
}

func runConfigPrompts(cmd *cobra.Command, _ []string) error {
	if promptStore == nil {
		return errors.New("prompt store not configured")
	}
	s := styles.DefaultStyles()

	for _, name := range []string{driven.PromptSearchQuery, driven.PromptAnswerSystem} {
		prompt, err := promptStore.Load(name)
		if err != nil {
			return fmt.Errorf("load prompt %s: %w", name, err)
		}
		cmd.Println(s.Title.Render(name))
		cmd.Println(prompt)
		cmd.Println()
	}
	return nil
}

// Helper functions.

// readPassword reads a line without echo when stdin is a terminal.
//
//nolint:errcheck // CLI helper, error ignored for UX
func readPassword(cmd *cobra.Command) string {
	if cmd.InOrStdin() == os.Stdin && term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	reader := bufio.NewReader(cmd.InOrStdin())
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// maskDatabaseURL hides the password of a connection URL.
func maskDatabaseURL(raw string) string {
	if raw == "" {
		return "(not set)"
	}
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return "****"
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return raw
	}
	user, _, hasPassword := strings.Cut(creds, ":")
	if !hasPassword {
		return raw
	}
	return scheme + "://" + user + ":****@" + host
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
