// Package cli provides the cobra command tree for the brief binary.
// Commands talk to the core through driving ports only; the composition
// root supplies them through SetBootstrap or, in tests, SetServices.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driving"
	"github.com/custodia-labs/brief-cli/internal/logger"
)

// version is set at build time.
var version = "dev"

// annotationBootstrap selects how much of the application a command needs.
const annotationBootstrap = "bootstrap"

// Bootstrap levels.
const (
	bootstrapNone     = "none"
	bootstrapSettings = "settings"
)

// FileReader decodes files on disk into plain text.
type FileReader interface {
	// ReadFile loads and decodes the file at path.
	ReadFile(ctx context.Context, path string) (*domain.ExtractedText, error)

	// SupportsFile reports whether the file type can be decoded.
	SupportsFile(path string) bool
}

// EmbeddingValidator checks that an embedding configuration can reach its provider.
type EmbeddingValidator interface {
	ValidateEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) error
}

// MetricsServer exposes pipeline metrics over HTTP.
type MetricsServer interface {
	Addr() string
	Start()
	Shutdown(ctx context.Context) error
}

// Services holds everything the commands use.
type Services struct {
	Ingest   driving.IngestService
	Search   driving.SearchService
	Context  driving.ContextService
	Document driving.DocumentService
	Settings driving.SettingsService
	Files    FileReader

	// Validator is optional; without it the settings wizard saves without checking.
	Validator EmbeddingValidator

	// NewMetricsServer binds a metrics endpoint. Nil when metrics are not wired.
	NewMetricsServer func(addr string) (MetricsServer, error)
}

// BootstrapOptions are the root flags passed to the bootstrap function.
type BootstrapOptions struct {
	// ConfigDir overrides the configuration directory.
	ConfigDir string

	// SettingsOnly asks for the settings service alone, without opening stores or providers.
	SettingsOnly bool
}

// BootstrapFunc builds the services. The returned cleanup is run after the command.
type BootstrapFunc func(ctx context.Context, opts BootstrapOptions) (*Services, func(), error)

var (
	bootstrap BootstrapFunc
	cleanup   func()

	ingestService      driving.IngestService
	searchService      driving.SearchService
	contextService     driving.ContextService
	documentService    driving.DocumentService
	settingsService    driving.SettingsService
	fileReader         FileReader
	embeddingValidator EmbeddingValidator
	newMetricsServer   func(addr string) (MetricsServer, error)
)

var (
	verbose   bool
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "brief",
	Short: "Document ingestion and semantic retrieval",
	Long: `brief ingests documents into a knowledge store and retrieves the passages
most relevant to a question or a piece of text.

Documents are split into overlapping fragments, embedded in batches and
searched by cosine similarity.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupServices,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug output")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.brief)")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetBootstrap sets the function that builds services before a command runs.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// SetServices installs services directly, bypassing bootstrap.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	ingestService = s.Ingest
	searchService = s.Search
	contextService = s.Context
	documentService = s.Document
	settingsService = s.Settings
	fileReader = s.Files
	embeddingValidator = s.Validator
	newMetricsServer = s.NewMetricsServer
}

// Execute runs the root command and releases whatever bootstrap opened.
func Execute(ctx context.Context) error {
	defer runCleanup()
	return rootCmd.ExecuteContext(ctx)
}

func setupServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if bootstrap == nil {
		return nil
	}

	level := bootstrapLevel(cmd)
	if level == bootstrapNone {
		return nil
	}

	services, done, err := bootstrap(cmd.Context(), BootstrapOptions{
		ConfigDir:    configDir,
		SettingsOnly: level == bootstrapSettings,
	})
	if err != nil {
		return fmt.Errorf("initialising: %w", err)
	}
	SetServices(services)
	cleanup = done
	return nil
}

func runCleanup() {
	if cleanup != nil {
		cleanup()
		cleanup = nil
	}
}

// bootstrapLevel returns the closest bootstrap annotation up the command tree.
func bootstrapLevel(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		if level, ok := c.Annotations[annotationBootstrap]; ok {
			return level
		}
	}
	return ""
}

// errNotConfigured reports a missing service.
func errNotConfigured(name string) error {
	return errors.New(name + " service not configured")
}
