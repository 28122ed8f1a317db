package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query     string  `json:"query" jsonschema:"the search query to find relevant passages"`
	Limit     int     `json:"limit,omitempty" jsonschema:"maximum number of results to return (default from settings)"`
	Threshold float64 `json:"threshold,omitempty" jsonschema:"minimum similarity between -1 and 1 (default from settings)"`
	Category  string  `json:"category,omitempty" jsonschema:"only return passages from documents in this category"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	Rank          int      `json:"rank"`
	DocumentID    string   `json:"document_id"`
	DocumentName  string   `json:"document_name"`
	Category      string   `json:"category,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	FragmentIndex int      `json:"fragment_index"`
	Similarity    float64  `json:"similarity"`
	Content       string   `json:"content"`
}

// ContextInput is the input schema for the relevant_context tool.
type ContextInput struct {
	SourceText string `json:"source_text" jsonschema:"the text being responded to, used to pick search terms"`
	Topic      string `json:"topic,omitempty" jsonschema:"optional topic hint placed first in the query"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of passages to include"`
	Category   string `json:"category,omitempty" jsonschema:"only use documents in this category"`
}

// IngestInput is the input schema for the ingest_text tool.
type IngestInput struct {
	Name        string   `json:"name" jsonschema:"document name"`
	Text        string   `json:"text" jsonschema:"the document text"`
	Category    string   `json:"category,omitempty" jsonschema:"classification label used for filtering"`
	Tags        []string `json:"tags,omitempty" jsonschema:"free-form labels"`
	Description string   `json:"description,omitempty" jsonschema:"short summary"`
}

// IngestOutput is the output schema for the ingest_text tool.
type IngestOutput struct {
	DocumentID     string   `json:"document_id,omitempty"`
	Outcome        string   `json:"outcome"`
	FragmentCount  int      `json:"fragment_count"`
	EmbeddingCount int      `json:"embedding_count"`
	SuccessRatio   float64  `json:"success_ratio"`
	Errors         []string `json:"errors,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Semantic search across all ingested documents",
	}, s.handleSearch)

	if s.ports.Context != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "relevant_context",
			Description: "Assemble passages relevant to a piece of text, with their sources",
		}, s.handleContext)
	}

	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest_text",
			Description: "Add a text document to the knowledge base",
		}, s.handleIngest)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	opts := domain.SearchOptions{
		Limit:     input.Limit,
		Threshold: input.Threshold,
		Category:  input.Category,
	}
	results, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		output.Results[i] = SearchResultOutput{
			Rank:          results[i].Rank,
			DocumentID:    results[i].DocumentID,
			DocumentName:  results[i].Document.Name,
			Category:      results[i].Document.Category,
			Tags:          results[i].Document.Tags,
			FragmentIndex: results[i].FragmentIndex,
			Similarity:    results[i].Similarity,
			Content:       results[i].Content,
		}
	}

	return nil, output, nil
}

// handleContext handles the relevant_context tool invocation.
func (s *Server) handleContext(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ContextInput,
) (*mcp.CallToolResult, domain.ContextResult, error) {
	opts := domain.ContextOptions{
		Search: domain.SearchOptions{
			Limit:    input.Limit,
			Category: input.Category,
		},
	}
	result, err := s.ports.Context.RelevantContext(ctx, input.SourceText, input.Topic, opts)
	if err != nil {
		return nil, domain.ContextResult{}, err
	}
	if result.Sources == nil {
		result.Sources = []domain.Provenance{}
	}
	return nil, *result, nil
}

// handleIngest handles the ingest_text tool invocation.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, IngestOutput{}, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}

	req := domain.IngestRequest{
		Text: input.Text,
		Metadata: domain.DocumentMetadata{
			Name:        name,
			MIMEType:    "text/plain",
			Category:    input.Category,
			Tags:        input.Tags,
			Description: input.Description,
		},
	}

	summary, err := s.ports.Ingest.Ingest(ctx, req, domain.IngestOptions{}, nil)
	if err != nil {
		return nil, IngestOutput{}, err
	}

	output := IngestOutput{
		Outcome:        string(summary.Outcome),
		FragmentCount:  summary.Stats.FragmentCount,
		EmbeddingCount: summary.Stats.EmbeddingCount,
		SuccessRatio:   summary.Stats.SuccessRatio,
		Errors:         summary.Errors,
	}
	if summary.Document != nil {
		output.DocumentID = summary.Document.ID
	}

	return nil, output, nil
}
