package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns search results", func(t *testing.T) {
		mockSearch := &mockSearchService{
			results: []domain.SearchResult{
				{
					Content:       "We hold ISO 9001 certification.",
					DocumentID:    "doc-1",
					FragmentIndex: 3,
					Document: domain.DocumentInfo{
						ID:       "doc-1",
						Name:     "quality.md",
						Category: "policy",
						Tags:     []string{"iso"},
					},
					Similarity: 0.91,
					Rank:       1,
				},
			},
		}

		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		input := SearchInput{Query: "quality", Limit: 5, Threshold: 0.5, Category: "policy"}
		_, output, err := server.handleSearch(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		got := output.Results[0]
		assert.Equal(t, 1, got.Rank)
		assert.Equal(t, "doc-1", got.DocumentID)
		assert.Equal(t, "quality.md", got.DocumentName)
		assert.Equal(t, "policy", got.Category)
		assert.Equal(t, []string{"iso"}, got.Tags)
		assert.Equal(t, 3, got.FragmentIndex)
		assert.InDelta(t, 0.91, got.Similarity, 1e-9)
		assert.Equal(t, "We hold ISO 9001 certification.", got.Content)

		assert.Equal(t, "quality", mockSearch.lastQuery)
		assert.Equal(t, domain.SearchOptions{Limit: 5, Threshold: 0.5, Category: "policy"}, mockSearch.lastOpts)
	})

	t.Run("zero limit is passed through for the service default", func(t *testing.T) {
		mockSearch := &mockSearchService{}
		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "test"})

		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.NotNil(t, output.Results)
		assert.Equal(t, 0, mockSearch.lastOpts.Limit)
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		mockSearch := &mockSearchService{
			err: errors.New("search failed"),
		}
		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{Query: "test"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "search failed")
	})
}

func TestServer_handleContext(t *testing.T) {
	ctx := context.Background()

	t.Run("returns assembled context", func(t *testing.T) {
		mockCtx := &mockContextService{
			result: &domain.ContextResult{
				Query:   "safety requirements experience",
				Context: "first\n\nsecond",
				Sources: []domain.Provenance{
					{DocumentName: "a.md", DocumentID: "doc-a", FragmentIndex: 0, Similarity: 0.9},
					{DocumentName: "b.md", DocumentID: "doc-b", FragmentIndex: 2, Similarity: 0.8},
				},
			},
		}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Context: mockCtx})
		require.NoError(t, err)

		input := ContextInput{SourceText: "tender text", Topic: "safety", Limit: 4, Category: "cv"}
		_, output, err := server.handleContext(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, "first\n\nsecond", output.Context)
		assert.Len(t, output.Sources, 2)
		assert.Equal(t, "tender text", mockCtx.lastSource)
		assert.Equal(t, "safety", mockCtx.lastTopic)
		assert.Equal(t, 4, mockCtx.lastOpts.Search.Limit)
		assert.Equal(t, "cv", mockCtx.lastOpts.Search.Category)
	})

	t.Run("empty sources are not null", func(t *testing.T) {
		mockCtx := &mockContextService{result: &domain.ContextResult{Query: "x"}}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Context: mockCtx})
		require.NoError(t, err)

		_, output, err := server.handleContext(ctx, nil, ContextInput{SourceText: "x"})

		require.NoError(t, err)
		assert.NotNil(t, output.Sources)
	})

	t.Run("returns error on failure", func(t *testing.T) {
		mockCtx := &mockContextService{err: domain.ErrInvalidInput}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Context: mockCtx})
		require.NoError(t, err)

		_, _, err = server.handleContext(ctx, nil, ContextInput{})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestServer_handleIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("ingests text with metadata", func(t *testing.T) {
		mockIngest := &mockIngestService{
			summary: &domain.IngestSummary{
				Outcome:  domain.OutcomeCompleted,
				Document: &domain.Document{ID: "doc-9"},
				Stats: domain.IngestStats{
					FragmentCount:  4,
					EmbeddingCount: 3,
					SuccessRatio:   0.75,
				},
				Errors: []string{"batch 1: rate limited"},
			},
		}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Ingest: mockIngest})
		require.NoError(t, err)

		input := IngestInput{
			Name:        " notes.txt ",
			Text:        "Some text",
			Category:    "notes",
			Tags:        []string{"a", "b"},
			Description: "meeting notes",
		}
		_, output, err := server.handleIngest(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, "doc-9", output.DocumentID)
		assert.Equal(t, "completed", output.Outcome)
		assert.Equal(t, 4, output.FragmentCount)
		assert.Equal(t, 3, output.EmbeddingCount)
		assert.InDelta(t, 0.75, output.SuccessRatio, 1e-9)
		assert.Len(t, output.Errors, 1)

		meta := mockIngest.lastReq.Metadata
		assert.Equal(t, "notes.txt", meta.Name)
		assert.Equal(t, "text/plain", meta.MIMEType)
		assert.Equal(t, "notes", meta.Category)
		assert.Equal(t, []string{"a", "b"}, meta.Tags)
		assert.Equal(t, "meeting notes", meta.Description)
		assert.Equal(t, "Some text", mockIngest.lastReq.Text)
	})

	t.Run("no content has no document id", func(t *testing.T) {
		mockIngest := &mockIngestService{
			summary: &domain.IngestSummary{Outcome: domain.OutcomeNoContent},
		}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Ingest: mockIngest})
		require.NoError(t, err)

		_, output, err := server.handleIngest(ctx, nil, IngestInput{Name: "empty.txt"})

		require.NoError(t, err)
		assert.Empty(t, output.DocumentID)
		assert.Equal(t, "no_content", output.Outcome)
	})

	t.Run("requires a name", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Ingest: &mockIngestService{}})
		require.NoError(t, err)

		_, _, err = server.handleIngest(ctx, nil, IngestInput{Name: "  ", Text: "x"})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("returns error on failure", func(t *testing.T) {
		mockIngest := &mockIngestService{err: domain.ErrStoreUnavailable}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Ingest: mockIngest})
		require.NoError(t, err)

		_, _, err = server.handleIngest(ctx, nil, IngestInput{Name: "a.txt", Text: "x"})

		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	})
}
