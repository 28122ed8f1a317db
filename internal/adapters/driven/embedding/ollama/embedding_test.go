package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

func TestNew_Defaults(t *testing.T) {
	p := New(Config{})

	assert.Equal(t, DefaultBaseURL, p.baseURL)
	assert.Equal(t, DefaultModel, p.ModelName())
	assert.Equal(t, 768, p.Dimensions())
	assert.Equal(t, 0, New(Config{Model: "custom-model"}).Dimensions())
}

func TestEmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req.Model)
		assert.Equal(t, []string{"first", "second"}, req.Input)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":             "all-minilm",
			"embeddings":        [][]float32{{0.1, 0.2}, {0.3, 0.4}},
			"prompt_eval_count": 7,
		})
	}))
	defer server.Close()

	p := New(Config{BaseURL: server.URL, Model: "all-minilm"})
	resp, err := p.EmbedBatch(context.Background(), []string{"first", "second"})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, resp.Vectors)
	assert.Equal(t, 7, resp.Usage)
}

func TestEmbedBatch_Empty(t *testing.T) {
	p := New(Config{BaseURL: "http://127.0.0.1:1"})

	resp, err := p.EmbedBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, resp.Vectors)
}

func TestEmbedBatch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":"slow down"}`, domain.ErrRateLimited},
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, domain.ErrEmbeddingUnavailable},
		{"missing field", http.StatusOK, `{"model":"x"}`, domain.ErrProviderResponse},
		{"bad json", http.StatusOK, `not json`, domain.ErrProviderResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := New(Config{BaseURL: server.URL}).EmbedBatch(context.Background(), []string{"x"})

			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEmbedBatch_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := New(Config{BaseURL: url}).EmbedBatch(context.Background(), []string{"x"})

	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	assert.NoError(t, New(Config{BaseURL: server.URL}).Ping(context.Background()))
}
