package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

// fakeSearch returns canned results and records the query it was given.
type fakeSearch struct {
	results []domain.SearchResult
	err     error
	query   string
	opts    domain.SearchOptions
}

func (f *fakeSearch) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	f.query = query
	f.opts = opts
	return f.results, f.err
}

func TestRelevantContext(t *testing.T) {
	search := &fakeSearch{results: []domain.SearchResult{
		{Content: "First fragment.", DocumentID: "d1", FragmentIndex: 2, Similarity: 0.91,
			Document: domain.DocumentInfo{Name: "past-bid.md"}},
		{Content: "Second fragment.", DocumentID: "d2", FragmentIndex: 0, Similarity: 0.84,
			Document: domain.DocumentInfo{Name: "cv.md"}},
	}}
	service := NewContextService(search, domain.ContextSettings{
		Keywords:  []string{"requirements", "experience"},
		TermCount: 2,
	})

	source := "The tender requests cloud migration. Migration must finish by spring. Cloud costs matter."
	result, err := service.RelevantContext(context.Background(), source, "Security Approach",
		domain.ContextOptions{Search: domain.SearchOptions{Limit: 4}})

	require.NoError(t, err)
	assert.Equal(t, "Security Approach requirements experience cloud migration", result.Query)
	assert.Equal(t, result.Query, search.query)
	assert.Equal(t, 4, search.opts.Limit)
	assert.Equal(t, "First fragment.\n\nSecond fragment.", result.Context)
	assert.Equal(t, []domain.Provenance{
		{DocumentName: "past-bid.md", DocumentID: "d1", FragmentIndex: 2, Similarity: 0.91},
		{DocumentName: "cv.md", DocumentID: "d2", FragmentIndex: 0, Similarity: 0.84},
	}, result.Sources)
}

func TestRelevantContext_OptionsOverrideDefaults(t *testing.T) {
	search := &fakeSearch{}
	service := NewContextService(search, domain.ContextSettings{Keywords: []string{"approach"}, TermCount: 5})

	result, err := service.RelevantContext(context.Background(), "budget budget timeline", "",
		domain.ContextOptions{Keywords: []string{}, TermCount: 1})

	require.NoError(t, err)
	assert.Equal(t, "budget", result.Query)
	assert.Empty(t, result.Context)
	assert.Empty(t, result.Sources)
}

func TestRelevantContext_NothingToSearch(t *testing.T) {
	service := NewContextService(&fakeSearch{}, domain.ContextSettings{})

	_, err := service.RelevantContext(context.Background(), "a an the", "", domain.ContextOptions{})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRelevantContext_SearchError(t *testing.T) {
	service := NewContextService(&fakeSearch{err: errProviderDown}, domain.DefaultSettings().Context)

	_, err := service.RelevantContext(context.Background(), "source text here", "topic", domain.ContextOptions{})

	assert.ErrorIs(t, err, errProviderDown)
}
