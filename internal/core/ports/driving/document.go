package driving

import (
	"context"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

// DocumentService manages stored documents.
type DocumentService interface {
	// List returns all documents, newest first.
	List(ctx context.Context) ([]domain.Document, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// Fragments retrieves the stored fragments of a document.
	Fragments(ctx context.Context, id string) ([]domain.Fragment, error)

	// Delete removes a document and its fragments.
	Delete(ctx context.Context, id string) error
}
