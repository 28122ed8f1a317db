package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API or a compatible endpoint.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
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
	default:
		return unknownDescription
	}
}

// StoreBackend identifies a knowledge store implementation.
type StoreBackend string

// Available store backends.
const (
	StoreSQLite   StoreBackend = "sqlite"
	StorePostgres StoreBackend = "postgres"
	StoreMemory   StoreBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StoreBackend) IsValid() bool {
	switch b {
	case StoreSQLite, StorePostgres, StoreMemory:
		return true
	default:
		return false
	}
}

// ChunkingSettings configures the segmenter.
type ChunkingSettings struct {
	// Size is the target fragment size in characters.
	Size int

	// Overlap is how many characters each fragment repeats from the previous one.
	Overlap int

	// MinSize is the minimum fragment size. Shorter final fragments are merged.
	MinSize int

	// MaxSize bounds adaptive sizing for very large documents.
	MaxSize int

	// PreserveParagraphs prefers cutting at blank lines.
	PreserveParagraphs bool

	// PreserveSentences prefers cutting after sentence-ending punctuation.
	PreserveSentences bool

	// Adaptive scales the target size with document length.
	Adaptive bool
}

// Validate checks the chunking bounds are coherent.
func (c ChunkingSettings) Validate() error {
	switch {
	case c.Size <= 0:
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidInput)
	case c.Overlap < 0 || c.Overlap >= c.Size:
		return fmt.Errorf("%w: overlap must be in [0, size)", ErrInvalidInput)
	case c.MinSize < 0 || c.MinSize > c.Size:
		return fmt.Errorf("%w: minimum size must be in [0, size]", ErrInvalidInput)
	case c.MinSize*2 > c.Size+c.Overlap:
		return fmt.Errorf("%w: minimum size must not exceed (size+overlap)/2", ErrInvalidInput)
	case c.MaxSize != 0 && c.MaxSize < c.Size:
		return fmt.Errorf("%w: maximum size must not be below size", ErrInvalidInput)
	}
	return nil
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint. Empty uses the provider default.
	BaseURL string

	// APIKey is the API key (for OpenAI). Usually supplied via OPENAI_API_KEY.
	APIKey string

	// Dimensions overrides the model's default vector size.
	Dimensions int
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

// BatchSettings configures the embedding batcher.
type BatchSettings struct {
	// Enabled turns embedding on or off administratively.
	Enabled bool

	// BatchSize is the maximum number of items per provider call.
	BatchSize int

	// Delay is the pause between consecutive batches.
	Delay time.Duration

	// MaxInputTokens is the provider's per-item input limit.
	MaxInputTokens int

	// CharsPerToken is the conservative ratio used to turn MaxInputTokens into characters.
	CharsPerToken int
}

// MaxInputChars returns the per-item character limit.
func (b BatchSettings) MaxInputChars() int {
	return b.MaxInputTokens * b.CharsPerToken
}

// SearchSettings holds search defaults.
type SearchSettings struct {
	// Threshold is the default minimum similarity.
	Threshold float64

	// Limit is the default result count.
	Limit int
}

// RateLimitSettings configures the sliding-window limiter for provider calls.
type RateLimitSettings struct {
	// Window is the sliding window length.
	Window time.Duration

	// MaxRequests is how many calls fit in one window. Zero disables limiting.
	MaxRequests int
}

// StoreSettings selects and configures the knowledge store.
type StoreSettings struct {
	// Backend is the store implementation.
	Backend StoreBackend

	// DataDir is the directory for the SQLite database.
	DataDir string

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string
}

// CacheSettings configures the optional query-embedding cache.
type CacheSettings struct {
	// RedisAddr enables the cache when non-empty.
	RedisAddr string

	// TTL is how long cached query vectors live.
	TTL time.Duration
}

// EventSettings configures optional ingestion event publishing.
type EventSettings struct {
	// Brokers enables publishing when non-empty.
	Brokers []string

	// Topic is the destination topic.
	Topic string
}

// ContextSettings configures context assembly.
type ContextSettings struct {
	// Keywords are fixed topic keywords added to every context query.
	Keywords []string

	// TermCount is how many significant terms are extracted from the source text.
	TermCount int
}

// Settings holds all application settings.
type Settings struct {
	Chunking  ChunkingSettings
	Embedding EmbeddingSettings
	Batch     BatchSettings
	Search    SearchSettings
	RateLimit RateLimitSettings
	Store     StoreSettings
	Cache     CacheSettings
	Events    EventSettings
	Context   ContextSettings

	// MetricsAddr is the listen address for the metrics endpoint. Empty disables it.
	MetricsAddr string
}

// DefaultSettings returns settings with sensible defaults.
func DefaultSettings() Settings {
	return Settings{
		Chunking: ChunkingSettings{
			Size:               1000,
			Overlap:            200,
			MinSize:            100,
			MaxSize:            2000,
			PreserveParagraphs: true,
			PreserveSentences:  true,
		},
		Embedding: EmbeddingSettings{
			Provider: AIProviderOpenAI,
			Model:    DefaultEmbeddingModels()[AIProviderOpenAI],
		},
		Batch: BatchSettings{
			Enabled:        true,
			BatchSize:      20,
			Delay:          200 * time.Millisecond,
			MaxInputTokens: 8000,
			CharsPerToken:  3,
		},
		Search: SearchSettings{
			Threshold: 0.7,
			Limit:     10,
		},
		RateLimit: RateLimitSettings{
			Window:      time.Minute,
			MaxRequests: 60,
		},
		Store: StoreSettings{
			Backend: StoreSQLite,
		},
		Cache: CacheSettings{
			TTL: 24 * time.Hour,
		},
		Events: EventSettings{
			Topic: "brief.ingest",
		},
		Context: ContextSettings{
			Keywords:  []string{"requirements", "experience", "approach"},
			TermCount: 5,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
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
