package services

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyChunkSize          = "chunking.size"
	keyChunkOverlap       = "chunking.overlap"
	keyChunkMinSize       = "chunking.min_size"
	keyChunkMaxSize       = "chunking.max_size"
	keyPreserveParagraphs = "chunking.preserve_paragraphs"
	keyPreserveSentences  = "chunking.preserve_sentences"
	keyChunkAdaptive      = "chunking.adaptive"

	keyEmbedEnabled        = "embedding.enabled"
	keyEmbedProvider       = "embedding.provider"
	keyEmbedModel          = "embedding.model"
	keyEmbedBaseURL        = "embedding.base_url"
	keyEmbedAPIKey         = "embedding.api_key"
	keyEmbedDimensions     = "embedding.dimensions"
	keyEmbedBatchSize      = "embedding.batch_size"
	keyEmbedBatchDelay     = "embedding.batch_delay_ms"
	keyEmbedMaxInputTokens = "embedding.max_input_tokens"

	keySearchThreshold = "search.threshold"
	keySearchLimit     = "search.limit"

	keyRateWindow      = "ratelimit.window_ms"
	keyRateMaxRequests = "ratelimit.max_requests"

	keyStoreBackend     = "store.backend"
	keyStoreDataDir     = "store.data_dir"
	keyStorePostgresDSN = "store.postgres_dsn"

	keyCacheRedisAddr = "cache.redis_addr"
	keyCacheTTL       = "cache.ttl_seconds"

	keyEventBrokers = "events.brokers"
	keyEventTopic   = "events.topic"

	keyMetricsAddr     = "metrics.addr"
	keyContextKeywords = "context.keywords"
)

// Environment variables that override stored secrets.
const (
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvPostgresDSN  = "BRIEF_POSTGRES_DSN"
)

// SettingsService maps configuration keys onto domain settings.
type SettingsService struct {
	configStore driven.ConfigStore
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		lookupEnv:   os.LookupEnv,
	}
}

// SetEnvLookup replaces the environment lookup, mainly for tests.
func (s *SettingsService) SetEnvLookup(lookup func(string) (string, bool)) {
	s.lookupEnv = lookup
}

// Get retrieves current application settings.
// Unset keys fall back to domain.DefaultSettings.
func (s *SettingsService) Get() (*domain.Settings, error) {
	defaults := domain.DefaultSettings()

	settings := &domain.Settings{
		Chunking: domain.ChunkingSettings{
			Size:               s.getInt(keyChunkSize, defaults.Chunking.Size),
			Overlap:            s.getIntAllowZero(keyChunkOverlap, defaults.Chunking.Overlap),
			MinSize:            s.getIntAllowZero(keyChunkMinSize, defaults.Chunking.MinSize),
			MaxSize:            s.getInt(keyChunkMaxSize, defaults.Chunking.MaxSize),
			PreserveParagraphs: s.getBool(keyPreserveParagraphs, defaults.Chunking.PreserveParagraphs),
			PreserveSentences:  s.getBool(keyPreserveSentences, defaults.Chunking.PreserveSentences),
			Adaptive:           s.getBool(keyChunkAdaptive, defaults.Chunking.Adaptive),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:   s.getProvider(defaults.Embedding.Provider),
			BaseURL:    s.configStore.GetString(keyEmbedBaseURL), // Empty means provider default
			APIKey:     s.getSecret(EnvOpenAIAPIKey, keyEmbedAPIKey),
			Dimensions: s.configStore.GetInt(keyEmbedDimensions),
		},
		Batch: domain.BatchSettings{
			Enabled:        s.getBool(keyEmbedEnabled, defaults.Batch.Enabled),
			BatchSize:      s.getInt(keyEmbedBatchSize, defaults.Batch.BatchSize),
			Delay:          s.getMillis(keyEmbedBatchDelay, defaults.Batch.Delay),
			MaxInputTokens: s.getInt(keyEmbedMaxInputTokens, defaults.Batch.MaxInputTokens),
			CharsPerToken:  defaults.Batch.CharsPerToken,
		},
		Search: domain.SearchSettings{
			Threshold: s.getFloat(keySearchThreshold, defaults.Search.Threshold),
			Limit:     s.getInt(keySearchLimit, defaults.Search.Limit),
		},
		RateLimit: domain.RateLimitSettings{
			Window:      s.getMillis(keyRateWindow, defaults.RateLimit.Window),
			MaxRequests: s.getIntAllowZero(keyRateMaxRequests, defaults.RateLimit.MaxRequests),
		},
		Store: domain.StoreSettings{
			Backend:     s.getBackend(defaults.Store.Backend),
			DataDir:     s.configStore.GetString(keyStoreDataDir),
			PostgresDSN: s.getSecret(EnvPostgresDSN, keyStorePostgresDSN),
		},
		Cache: domain.CacheSettings{
			RedisAddr: s.configStore.GetString(keyCacheRedisAddr),
			TTL:       s.getSeconds(keyCacheTTL, defaults.Cache.TTL),
		},
		Events: domain.EventSettings{
			Brokers: s.getStringSlice(keyEventBrokers, defaults.Events.Brokers),
			Topic:   s.getString(keyEventTopic, defaults.Events.Topic),
		},
		Context: domain.ContextSettings{
			Keywords:  s.getStringSlice(keyContextKeywords, defaults.Context.Keywords),
			TermCount: defaults.Context.TermCount,
		},
		MetricsAddr: s.configStore.GetString(keyMetricsAddr),
	}

	// Model defaults follow the provider
	settings.Embedding.Model = s.getString(keyEmbedModel, domain.DefaultEmbeddingModels()[settings.Embedding.Provider])

	if err := settings.Chunking.Validate(); err != nil {
		return nil, fmt.Errorf("chunking settings: %w", err)
	}

	return settings, nil
}

// Set stores a single setting by its configuration key.
// Known keys are type-checked before they are persisted.
func (s *SettingsService) Set(key string, value any) error {
	switch key {
	case keyEmbedProvider:
		if !domain.AIProvider(fmt.Sprint(value)).IsValid() {
			return fmt.Errorf("%w: invalid embedding provider: %v", domain.ErrInvalidInput, value)
		}
	case keyStoreBackend:
		if !domain.StoreBackend(fmt.Sprint(value)).IsValid() {
			return fmt.Errorf("%w: invalid store backend: %v", domain.ErrInvalidInput, value)
		}
	case keyEventBrokers, keyContextKeywords:
		if str, ok := value.(string); ok {
			value = splitList(str)
		}
	}

	if err := s.configStore.Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
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
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getMillis(key string, defaultVal time.Duration) time.Duration {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return time.Duration(s.configStore.GetInt(key)) * time.Millisecond
}

func (s *SettingsService) getSeconds(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return time.Duration(val) * time.Second
}

func (s *SettingsService) getStringSlice(key string, defaultVal []string) []string {
	if val := s.configStore.GetStringSlice(key); val != nil {
		return val
	}
	if str := s.configStore.GetString(key); str != "" {
		return splitList(str)
	}
	return defaultVal
}

func (s *SettingsService) getSecret(env, key string) string {
	if val, ok := s.lookupEnv(env); ok && val != "" {
		return val
	}
	return s.configStore.GetString(key)
}

func (s *SettingsService) getProvider(defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(keyEmbedProvider))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.StoreBackend) domain.StoreBackend {
	backend := domain.StoreBackend(s.configStore.GetString(keyStoreBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

// splitList splits a comma-separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
