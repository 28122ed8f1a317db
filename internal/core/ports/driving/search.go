package driving

import (
	"context"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

// SearchService provides semantic search to external actors.
type SearchService interface {
	// Search returns fragments similar to the query, most similar first.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}

// ContextService assembles retrieved fragments into drafting context.
type ContextService interface {
	// RelevantContext builds a query from the topic and the source text's frequent terms,
	// searches, and joins the results with provenance.
	RelevantContext(
		ctx context.Context,
		sourceText, topicHint string,
		opts domain.ContextOptions,
	) (*domain.ContextResult, error)
}
