package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driving"
	"github.com/custodia-labs/brief-cli/internal/logger"
	"github.com/custodia-labs/brief-cli/internal/ranker"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// SearchService answers semantic queries against the knowledge store.
type SearchService struct {
	store    driven.KnowledgeStore
	batcher  *EmbeddingBatcher
	defaults domain.SearchSettings
	metrics  driven.MetricsRecorder
}

// NewSearchService creates a new search service.
func NewSearchService(
	store driven.KnowledgeStore,
	batcher *EmbeddingBatcher,
	defaults domain.SearchSettings,
) *SearchService {
	return &SearchService{
		store:    store,
		batcher:  batcher,
		defaults: defaults,
		metrics:  nopMetrics{},
	}
}

// SetMetrics sets the metrics recorder.
func (s *SearchService) SetMetrics(m driven.MetricsRecorder) {
	if m != nil {
		s.metrics = m
	}
}

// Search embeds the query, asks the store for similar fragments, attaches
// document metadata and returns the results most similar first.
// Query embedding and store failures are returned; no partial list is produced.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) (results []domain.SearchResult, err error) {
	start := time.Now()
	defer func() {
		s.metrics.SearchCompleted(len(results), time.Since(start), err)
	}()

	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.defaults.Limit
	}
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = s.defaults.Threshold
	}

	vector, _, err := s.batcher.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := s.store.SimilarityQuery(ctx, domain.SimilarityQuery{
		Vector:    vector,
		Threshold: threshold,
		Limit:     limit,
		Category:  opts.Category,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	logger.Debug("Store returned %d candidates", len(candidates))

	if len(candidates) == 0 {
		return []domain.SearchResult{}, nil
	}

	infos, err := s.lookup(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("lookup documents: %w", err)
	}

	// The store's ordering and filtering are re-validated here
	scored := make([]ranker.Scored, 0, len(candidates))
	for i, c := range candidates {
		if c.Similarity < threshold {
			continue
		}
		info, ok := infos[c.DocumentID]
		if !ok {
			logger.Debug("Dropping fragment of unknown document %s", c.DocumentID)
			continue
		}
		if opts.Category != "" && !strings.EqualFold(info.Category, opts.Category) {
			continue
		}
		scored = append(scored, ranker.Scored{Ref: i, Similarity: c.Similarity})
	}
	ranker.SortScored(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}

	results = make([]domain.SearchResult, len(scored))
	for rank, sc := range scored {
		c := candidates[sc.Ref]
		results[rank] = domain.SearchResult{
			Content:       c.Content,
			DocumentID:    c.DocumentID,
			FragmentIndex: c.FragmentIndex,
			Document:      infos[c.DocumentID],
			Similarity:    c.Similarity,
			Rank:          rank + 1,
		}
	}

	logger.Debug("Returning %d results", len(results))
	return results, nil
}

// lookup fetches metadata for the distinct documents referenced by candidates.
func (s *SearchService) lookup(ctx context.Context, candidates []domain.Candidate) (map[string]domain.DocumentInfo, error) {
	seen := make(map[string]struct{})
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.DocumentID]; ok {
			continue
		}
		seen[c.DocumentID] = struct{}{}
		ids = append(ids, c.DocumentID)
	}

	found, err := s.store.LookupDocuments(ctx, ids)
	if err != nil {
		return nil, err
	}

	infos := make(map[string]domain.DocumentInfo, len(found))
	for _, info := range found {
		infos[info.ID] = info
	}
	return infos, nil
}
