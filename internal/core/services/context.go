package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driving"
	"github.com/custodia-labs/brief-cli/internal/logger"
)

// Ensure ContextService implements the interface.
var _ driving.ContextService = (*ContextService)(nil)

// contextSeparator separates fragments in assembled context.
const contextSeparator = "\n\n"

// ContextService assembles retrieved fragments into context for drafting.
type ContextService struct {
	search   driving.SearchService
	defaults domain.ContextSettings
}

// NewContextService creates a context service on top of a search service.
func NewContextService(search driving.SearchService, defaults domain.ContextSettings) *ContextService {
	return &ContextService{
		search:   search,
		defaults: defaults,
	}
}

// RelevantContext builds a query from the topic hint, the fixed keywords and the
// source text's frequent terms, then joins the matching fragments with provenance.
func (s *ContextService) RelevantContext(
	ctx context.Context,
	sourceText, topicHint string,
	opts domain.ContextOptions,
) (*domain.ContextResult, error) {
	keywords := opts.Keywords
	if keywords == nil {
		keywords = s.defaults.Keywords
	}
	termCount := opts.TermCount
	if termCount <= 0 {
		termCount = s.defaults.TermCount
	}

	query := BuildContextQuery(topicHint, keywords, SignificantTerms(sourceText, termCount))
	if query == "" {
		return nil, fmt.Errorf("%w: no topic or significant terms to search for", domain.ErrInvalidInput)
	}
	logger.Debug("Context query: %q", query)

	results, err := s.search.Search(ctx, query, opts.Search)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(results))
	sources := make([]domain.Provenance, len(results))
	for i, r := range results {
		texts[i] = r.Content
		sources[i] = domain.Provenance{
			DocumentName:  r.Document.Name,
			DocumentID:    r.DocumentID,
			FragmentIndex: r.FragmentIndex,
			Similarity:    r.Similarity,
		}
	}

	return &domain.ContextResult{
		Query:   query,
		Context: strings.Join(texts, contextSeparator),
		Sources: sources,
	}, nil
}
