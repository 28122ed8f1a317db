package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

func newSearchFixture() (*SearchService, *faultyStore, *stubProvider) {
	store := newFaultyStore()
	provider := newStubProvider(3)
	batcher := NewEmbeddingBatcher(provider, batchSettings(10))
	service := NewSearchService(store, batcher, domain.SearchSettings{Threshold: 0.7, Limit: 10})
	return service, store, provider
}

func TestSearch_ThresholdIsRevalidated(t *testing.T) {
	service, store, _ := newSearchFixture()
	store.candidates = []domain.Candidate{
		{DocumentID: "d1", FragmentIndex: 0, Content: "strong match", Similarity: 0.9},
		{DocumentID: "d1", FragmentIndex: 1, Content: "weak match", Similarity: 0.6},
	}
	store.infos = []domain.DocumentInfo{{ID: "d1", Name: "case-study.md", Category: "bio"}}

	results, err := service.Search(context.Background(), "team experience", domain.SearchOptions{})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "strong match", results[0].Content)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "case-study.md", results[0].Document.Name)
	assert.InDelta(t, 0.7, store.lastSimilarity.Threshold, 1e-9)
	assert.Equal(t, 10, store.lastSimilarity.Limit)
}

func TestSearch_ReordersAndLimits(t *testing.T) {
	service, store, _ := newSearchFixture()
	store.candidates = []domain.Candidate{
		{DocumentID: "d1", FragmentIndex: 0, Similarity: 0.75},
		{DocumentID: "d2", FragmentIndex: 3, Similarity: 0.95},
		{DocumentID: "d1", FragmentIndex: 2, Similarity: 0.85},
	}
	store.infos = []domain.DocumentInfo{{ID: "d1", Name: "one"}, {ID: "d2", Name: "two"}}

	results, err := service.Search(context.Background(), "query", domain.SearchOptions{Limit: 2})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "d2", results[0].DocumentID)
	assert.Equal(t, 3, results[0].FragmentIndex)
	assert.Equal(t, 2, results[1].FragmentIndex)
	assert.Equal(t, []int{1, 2}, []int{results[0].Rank, results[1].Rank})
}

func TestSearch_CategoryFilteredClientSide(t *testing.T) {
	service, store, _ := newSearchFixture()
	store.candidates = []domain.Candidate{
		{DocumentID: "d1", Similarity: 0.9},
		{DocumentID: "d2", Similarity: 0.8},
	}
	store.infos = []domain.DocumentInfo{
		{ID: "d1", Category: "tender"},
		{ID: "d2", Category: "Bio"},
	}

	results, err := service.Search(context.Background(), "query", domain.SearchOptions{Category: "bio"})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d2", results[0].DocumentID)
	assert.Equal(t, "bio", store.lastSimilarity.Category)
}

func TestSearch_DropsUnknownDocuments(t *testing.T) {
	service, store, _ := newSearchFixture()
	store.candidates = []domain.Candidate{{DocumentID: "gone", Similarity: 0.9}}
	store.infos = []domain.DocumentInfo{}

	results, err := service.Search(context.Background(), "query", domain.SearchOptions{})

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_EmptyQuery(t *testing.T) {
	service, _, provider := newSearchFixture()

	_, err := service.Search(context.Background(), "   ", domain.SearchOptions{})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 0, provider.callCount())
}

func TestSearch_FatalErrors(t *testing.T) {
	t.Run("query embedding", func(t *testing.T) {
		service, _, provider := newSearchFixture()
		provider.err = errProviderDown

		results, err := service.Search(context.Background(), "query", domain.SearchOptions{})

		assert.ErrorIs(t, err, errProviderDown)
		assert.Nil(t, results)
	})

	t.Run("similarity query", func(t *testing.T) {
		service, store, _ := newSearchFixture()
		store.similarityErr = errStoreDown

		results, err := service.Search(context.Background(), "query", domain.SearchOptions{})

		assert.ErrorIs(t, err, errStoreDown)
		assert.Nil(t, results)
	})

	t.Run("document lookup", func(t *testing.T) {
		service, store, _ := newSearchFixture()
		store.candidates = []domain.Candidate{{DocumentID: "d1", Similarity: 0.9}}
		store.lookupErr = errStoreDown

		_, err := service.Search(context.Background(), "query", domain.SearchOptions{})

		assert.ErrorIs(t, err, errStoreDown)
	})
}

func TestSearch_RecordsMetrics(t *testing.T) {
	service, store, provider := newSearchFixture()
	metrics := &recordingMetrics{}
	service.SetMetrics(metrics)
	store.candidates = []domain.Candidate{}

	_, err := service.Search(context.Background(), "query", domain.SearchOptions{})
	require.NoError(t, err)

	provider.err = errProviderDown
	_, err = service.Search(context.Background(), "query", domain.SearchOptions{})
	require.Error(t, err)

	assert.Equal(t, 2, metrics.searches)
	assert.Equal(t, 1, metrics.searchErrs)
}

func TestSearch_AgainstIngestedDocuments(t *testing.T) {
	store := newFaultyStore()
	provider := newStubProvider(2)
	provider.vectors = func(texts []string) [][]float32 {
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			if strings.Contains(text, "pricing") {
				vectors[i] = []float32{1, 0}
			} else {
				vectors[i] = []float32{0, 1}
			}
		}
		return vectors
	}
	batcher := NewEmbeddingBatcher(provider, batchSettings(10))
	ingest := NewIngestService(store, batcher, testChunking())
	search := NewSearchService(store, batcher, domain.SearchSettings{Threshold: 0.5, Limit: 5})
	ctx := context.Background()

	_, err := ingest.Ingest(ctx, ingestRequest("Our pricing model is fixed fee."), domain.IngestOptions{}, nil)
	require.NoError(t, err)
	_, err = ingest.Ingest(ctx, ingestRequest("The team has ten engineers."), domain.IngestOptions{}, nil)
	require.NoError(t, err)

	results, err := search.Search(ctx, "pricing", domain.SearchOptions{})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Our pricing model is fixed fee.", results[0].Content)
	assert.Equal(t, "bid.txt", results[0].Document.Name)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
}
