package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure chunking, embedding, search and storage settings.

Settings are stored in config.toml in the configuration directory. Secrets
such as OPENAI_API_KEY are read from the environment first.`,
	Annotations: map[string]string{annotationBootstrap: bootstrapSettings},
	RunE:        runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a single setting",
	Long: `Set a setting by its configuration key, for example:

  brief settings set chunking.size 800
  brief settings set embedding.provider ollama
  brief settings set context.keywords "scope,deliverables,timeline"`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long: `Interactively choose the embedding provider, model and API key.
The provider is contacted before the settings are saved unless
--skip-validation is given.`,
	RunE: runSettingsEmbedding,
}

var skipValidation bool

func init() {
	settingsEmbeddingCmd.Flags().BoolVar(&skipValidation, "skip-validation", false, "save without contacting the provider")
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Chunking]")
	cmd.Printf("  Size: %d (min %d, max %d)\n", settings.Chunking.Size, settings.Chunking.MinSize, settings.Chunking.MaxSize)
	cmd.Printf("  Overlap: %d\n", settings.Chunking.Overlap)
	cmd.Printf("  Preserve paragraphs: %s\n", yesNo(settings.Chunking.PreserveParagraphs))
	cmd.Printf("  Preserve sentences: %s\n", yesNo(settings.Chunking.PreserveSentences))
	cmd.Printf("  Adaptive: %s\n", yesNo(settings.Chunking.Adaptive))
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Enabled: %s\n", yesNo(settings.Batch.Enabled))
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	if settings.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		if settings.Embedding.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(settings.Embedding.APIKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	cmd.Printf("  Batch size: %d, delay %s\n", settings.Batch.BatchSize, settings.Batch.Delay)
	status := "configured"
	if !settings.Embedding.IsConfigured() {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
	cmd.Println()

	cmd.Println("[Search]")
	cmd.Printf("  Threshold: %.2f\n", settings.Search.Threshold)
	cmd.Printf("  Limit: %d\n", settings.Search.Limit)
	cmd.Println()

	cmd.Println("[Rate Limit]")
	if settings.RateLimit.MaxRequests > 0 {
		cmd.Printf("  %d requests per %s\n", settings.RateLimit.MaxRequests, settings.RateLimit.Window)
	} else {
		cmd.Println("  Disabled")
	}
	cmd.Println()

	cmd.Println("[Store]")
	cmd.Printf("  Backend: %s\n", settings.Store.Backend)
	switch settings.Store.Backend {
	case domain.StoreSQLite:
		if settings.Store.DataDir != "" {
			cmd.Printf("  Data dir: %s\n", settings.Store.DataDir)
		}
	case domain.StorePostgres:
		if settings.Store.PostgresDSN == "" {
			cmd.Println("  DSN: (not set)")
		}
	}
	cmd.Println()

	cmd.Println("[Optional Services]")
	cmd.Printf("  Query cache: %s\n", orDisabled(settings.Cache.RedisAddr))
	cmd.Printf("  Events: %s\n", orDisabled(strings.Join(settings.Events.Brokers, ",")))
	cmd.Printf("  Metrics: %s\n", orDisabled(settings.MetricsAddr))
	cmd.Println()

	if !settings.Embedding.IsConfigured() {
		cmd.Println("Run 'brief settings embedding' to configure an embedding provider.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	key, raw := args[0], args[1]
	if err := settingsService.Set(key, parseValue(raw)); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	cmd.Printf("%s = %s\n", key, raw)
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	return configureEmbeddingProvider(cmd, reader)
}

func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	defaults := domain.DefaultEmbeddingModels()
	defaultModel := defaults[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	cmd.Print("Enter base URL (empty for provider default): ")
	baseURL := readLine(reader)

	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		if _, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			cmd.Println("Using OPENAI_API_KEY from the environment.")
		} else {
			cmd.Print("Enter API key: ")
			apiKey = readPassword(cmd.InOrStdin(), reader)
			cmd.Println()
			if apiKey == "" {
				return errors.New("API key is required for this provider")
			}
		}
	}

	if !skipValidation && embeddingValidator != nil {
		candidate := &domain.EmbeddingSettings{
			Provider: selectedProvider,
			Model:    model,
			BaseURL:  baseURL,
			APIKey:   apiKey,
		}
		if candidate.APIKey == "" {
			candidate.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		cmd.Println("Validating connection...")
		if err := embeddingValidator.ValidateEmbedding(cmd.Context(), candidate); err != nil {
			return fmt.Errorf("embedding provider validation failed: %w", err)
		}
		cmd.Println("Connection OK.")
	}

	values := []struct {
		key   string
		value any
	}{
		{"embedding.provider", string(selectedProvider)},
		{"embedding.model", model},
		{"embedding.base_url", baseURL},
	}
	if apiKey != "" {
		values = append(values, struct {
			key   string
			value any
		}{"embedding.api_key", apiKey})
	}
	for _, v := range values {
		if err := settingsService.Set(v.key, v.value); err != nil {
			return fmt.Errorf("failed to configure embedding provider: %w", err)
		}
	}

	cmd.Printf("Embedding provider configured: %s (%s)\n\n", selectedProvider.Description(), model)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when in is a terminal, otherwise a plain line.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

// parseValue converts a command-line value to bool, int, float or string.
func parseValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil && (raw == "true" || raw == "false") {
		return b
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDisabled(s string) string {
	if s == "" {
		return "disabled"
	}
	return s
}
