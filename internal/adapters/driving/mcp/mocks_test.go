package mcp

import (
	"context"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results   []domain.SearchResult
	err       error
	lastQuery string
	lastOpts  domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	query string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.lastQuery = query
	m.lastOpts = opts
	return m.results, m.err
}

// mockContextService is a mock implementation of driving.ContextService.
type mockContextService struct {
	result     *domain.ContextResult
	err        error
	lastSource string
	lastTopic  string
	lastOpts   domain.ContextOptions
}

func (m *mockContextService) RelevantContext(
	_ context.Context,
	sourceText, topicHint string,
	opts domain.ContextOptions,
) (*domain.ContextResult, error) {
	m.lastSource = sourceText
	m.lastTopic = topicHint
	m.lastOpts = opts
	return m.result, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	summary *domain.IngestSummary
	err     error
	lastReq domain.IngestRequest
}

func (m *mockIngestService) Ingest(
	_ context.Context,
	req domain.IngestRequest,
	_ domain.IngestOptions,
	_ driving.ProgressFunc,
) (*domain.IngestSummary, error) {
	m.lastReq = req
	return m.summary, m.err
}

func (m *mockIngestService) IngestMany(
	_ context.Context,
	reqs []domain.IngestRequest,
	_ domain.IngestOptions,
	_ driving.ProgressFunc,
) ([]domain.IngestSummary, error) {
	out := make([]domain.IngestSummary, len(reqs))
	for i := range reqs {
		if m.summary != nil {
			out[i] = *m.summary
		}
	}
	return out, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	fragments []domain.Fragment
	err       error
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) Fragments(_ context.Context, _ string) ([]domain.Fragment, error) {
	return m.fragments, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, _ string) error {
	return m.err
}
