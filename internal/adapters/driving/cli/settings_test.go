package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Short key", input: "abc123", expected: "****"},
		{name: "Exactly 8 chars", input: "12345678", expected: "****"},
		{name: "Long key", input: "sk-1234567890abcdef", expected: "sk-1...cdef"},
		{name: "Empty key", input: "", expected: "****"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskAPIKey(tt.input))
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{name: "Empty input returns default", input: "", maxVal: 3, defaultVal: 1, expected: 1},
		{name: "Valid choice", input: "2", maxVal: 3, defaultVal: 1, expected: 2},
		{name: "Choice above max", input: "4", maxVal: 3, defaultVal: 1, expected: 1},
		{name: "Zero", input: "0", maxVal: 3, defaultVal: 2, expected: 2},
		{name: "Not a number", input: "abc", maxVal: 3, defaultVal: 1, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseChoice(tt.input, tt.maxVal, tt.defaultVal))
		})
	}
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, false, parseValue("false"))
	assert.Equal(t, int64(800), parseValue("800"))
	assert.Equal(t, 0.65, parseValue("0.65"))
	assert.Equal(t, "ollama", parseValue("ollama"))
	// Only the literal words are booleans.
	assert.Equal(t, int64(1), parseValue("1"))
	assert.Equal(t, "T", parseValue("T"))
}

func TestSettingsCmd_UsesSettingsBootstrap(t *testing.T) {
	assert.Equal(t, bootstrapSettings, bootstrapLevel(settingsSetCmd))
	assert.Equal(t, bootstrapSettings, bootstrapLevel(settingsCmd))
	assert.Equal(t, "", bootstrapLevel(searchCmd))
}

func TestSettingsShow(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.settings.settings.Embedding.APIKey = "sk-1234567890abcdef"
	ts.settings.settings.Cache.RedisAddr = "localhost:6379"
	ts.settings.settings.Events.Brokers = []string{"k1:9092", "k2:9092"}

	out, err := execute("settings", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "[Chunking]")
	assert.Contains(t, out, "Size: 1000 (min 100, max 2000)")
	assert.Contains(t, out, "Provider: OpenAI (cloud)")
	assert.Contains(t, out, "API Key: sk-1...cdef")
	assert.NotContains(t, out, "sk-1234567890abcdef")
	assert.Contains(t, out, "Threshold: 0.70")
	assert.Contains(t, out, "60 requests per 1m0s")
	assert.Contains(t, out, "Backend: sqlite")
	assert.Contains(t, out, "Query cache: localhost:6379")
	assert.Contains(t, out, "Events: k1:9092,k2:9092")
	assert.Contains(t, out, "Metrics: disabled")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestSettingsShow_NotConfiguredEmbedding(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.settings.settings.RateLimit = domain.RateLimitSettings{Window: time.Minute}

	out, err := execute("settings")

	require.NoError(t, err)
	assert.Contains(t, out, "API Key: (not set)")
	assert.Contains(t, out, "Status: not configured")
	assert.Contains(t, out, "Disabled")
	assert.Contains(t, out, "brief settings embedding")
}

func TestSettingsShow_Error(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.settings.err = errMock

	_, err := execute("settings", "show")

	require.Error(t, err)
	assert.ErrorIs(t, err, errMock)
}

func TestSettingsSet(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("settings", "set", "chunking.size", "800")

	require.NoError(t, err)
	assert.Equal(t, int64(800), ts.settings.set["chunking.size"])
	assert.Contains(t, out, "chunking.size = 800")
}

func TestSettingsSet_RequiresKeyAndValue(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("settings", "set", "chunking.size")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg(s)")
}

func TestSettingsEmbedding_Ollama(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeWithInput("1\n\nhttp://gpu-box:11434\n", "settings", "embedding")

	require.NoError(t, err)
	assert.Equal(t, "ollama", ts.settings.set["embedding.provider"])
	assert.Equal(t, "nomic-embed-text", ts.settings.set["embedding.model"])
	assert.Equal(t, "http://gpu-box:11434", ts.settings.set["embedding.base_url"])
	assert.NotContains(t, ts.settings.set, "embedding.api_key")
	assert.Contains(t, out, "Embedding provider configured: Ollama (local) (nomic-embed-text)")
}

func TestSettingsEmbedding_OpenAIUsesEnvironmentKey(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	out, err := executeWithInput("2\ntext-embedding-3-large\n\n", "settings", "embedding")

	require.NoError(t, err)
	assert.Equal(t, "openai", ts.settings.set["embedding.provider"])
	assert.Equal(t, "text-embedding-3-large", ts.settings.set["embedding.model"])
	assert.NotContains(t, ts.settings.set, "embedding.api_key")
	assert.Contains(t, out, "Using OPENAI_API_KEY from the environment.")
}

type mockValidator struct {
	got *domain.EmbeddingSettings
	err error
}

func (m *mockValidator) ValidateEmbedding(_ context.Context, settings *domain.EmbeddingSettings) error {
	m.got = settings
	return m.err
}

func TestSettingsEmbedding_ValidatesBeforeSaving(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	validator := &mockValidator{}
	embeddingValidator = validator

	out, err := executeWithInput("1\nall-minilm\n\n", "settings", "embedding")

	require.NoError(t, err)
	require.NotNil(t, validator.got)
	assert.Equal(t, domain.AIProviderOllama, validator.got.Provider)
	assert.Equal(t, "all-minilm", validator.got.Model)
	assert.Contains(t, out, "Connection OK.")
	assert.Equal(t, "all-minilm", ts.settings.set["embedding.model"])
}

func TestSettingsEmbedding_ValidationFailureSavesNothing(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	embeddingValidator = &mockValidator{err: domain.ErrEmbeddingUnavailable}

	_, err := executeWithInput("1\n\n\n", "settings", "embedding")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Empty(t, ts.settings.set)
}

func TestSettingsEmbedding_SkipValidation(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	validator := &mockValidator{err: domain.ErrEmbeddingUnavailable}
	embeddingValidator = validator

	_, err := executeWithInput("1\n\n\n", "settings", "embedding", "--skip-validation")

	require.NoError(t, err)
	assert.Nil(t, validator.got)
	assert.Equal(t, "ollama", ts.settings.set["embedding.provider"])
}
