package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

func TestExtractDocumentID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			name:     "valid document URI",
			uri:      "brief://documents/doc-456",
			expected: "doc-456",
		},
		{
			name:     "invalid prefix",
			uri:      "file://documents/doc-456",
			expected: "",
		},
		{
			name:     "nested path",
			uri:      "brief://documents/doc-456/fragments",
			expected: "",
		},
		{
			name:     "empty URI",
			uri:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractDocumentID(tt.uri)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleDocumentsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("nil document service returns empty list", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}})
		require.NoError(t, err)

		result, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("brief://documents"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("returns documents successfully", func(t *testing.T) {
		mockDoc := &mockDocumentService{
			documents: []domain.Document{
				{ID: "doc-1", Name: "README.md", Category: "guides", FragmentCount: 3, EmbeddingCount: 3},
				{ID: "doc-2", Name: "Policy.md"},
			},
		}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Document: mockDoc})
		require.NoError(t, err)

		result, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("brief://documents"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)
		assert.Contains(t, result.Contents[0].Text, "doc-1")
		assert.Contains(t, result.Contents[0].Text, "README.md")
		assert.Contains(t, result.Contents[0].Text, `"fragment_count": 3`)
		assert.Contains(t, result.Contents[0].Text, "doc-2")
	})

	t.Run("handles empty document list", func(t *testing.T) {
		mockDoc := &mockDocumentService{documents: []domain.Document{}}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Document: mockDoc})
		require.NoError(t, err)

		result, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("brief://documents"))

		require.NoError(t, err)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("returns error on list failure", func(t *testing.T) {
		mockDoc := &mockDocumentService{err: errors.New("storage error")}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Document: mockDoc})
		require.NoError(t, err)

		_, err = server.handleDocumentsResource(ctx, makeReadResourceRequest("brief://documents"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing documents")
	})
}

func TestServer_handleDocumentContentResource(t *testing.T) {
	ctx := context.Background()

	t.Run("nil document service returns not found", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}})
		require.NoError(t, err)

		_, err = server.handleDocumentContentResource(ctx, makeReadResourceRequest("brief://documents/doc-123"))

		require.Error(t, err)
	})

	t.Run("invalid URI returns not found", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Document: &mockDocumentService{}})
		require.NoError(t, err)

		_, err = server.handleDocumentContentResource(ctx, makeReadResourceRequest("brief://invalid/uri"))

		require.Error(t, err)
	})

	t.Run("returns content successfully", func(t *testing.T) {
		mockDoc := &mockDocumentService{
			document: &domain.Document{ID: "doc-123", Content: "Hello World\n\nThis is the document content."},
		}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Document: mockDoc})
		require.NoError(t, err)

		result, err := server.handleDocumentContentResource(ctx, makeReadResourceRequest("brief://documents/doc-123"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "Hello World\n\nThis is the document content.", result.Contents[0].Text)
		assert.Equal(t, "text/plain", result.Contents[0].MIMEType)
	})

	t.Run("returns error on get failure", func(t *testing.T) {
		mockDoc := &mockDocumentService{err: domain.ErrNotFound}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Document: mockDoc})
		require.NoError(t, err)

		_, err = server.handleDocumentContentResource(ctx, makeReadResourceRequest("brief://documents/doc-123"))

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Contains(t, err.Error(), "getting document content")
	})
}
