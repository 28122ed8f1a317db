package driven

import (
	"context"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

// KnowledgeStore is the system of record for documents, fragments and their vectors.
type KnowledgeStore interface {
	// InsertDocument stores a new document and returns its assigned identifier.
	InsertDocument(ctx context.Context, doc *domain.Document) (string, error)

	// InsertFragments stores embedded fragments for a document in one batch.
	InsertFragments(ctx context.Context, documentID string, fragments []domain.Fragment) error

	// UpdateDocumentCounters updates the denormalised fragment and embedding counters.
	UpdateDocumentCounters(ctx context.Context, documentID string, counters domain.DocumentCounters) error

	// SimilarityQuery returns fragments at or above the threshold, most similar first.
	SimilarityQuery(ctx context.Context, query domain.SimilarityQuery) ([]domain.Candidate, error)

	// LookupDocuments returns descriptive metadata for the given identifiers.
	// Unknown identifiers are skipped.
	LookupDocuments(ctx context.Context, ids []string) ([]domain.DocumentInfo, error)

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetFragments retrieves all fragments for a document ordered by index.
	GetFragments(ctx context.Context, documentID string) ([]domain.Fragment, error)

	// ListDocuments returns all documents, newest first.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// DeleteDocument removes a document and its fragments.
	DeleteDocument(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}
