package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driving"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService manages stored documents.
type DocumentService struct {
	store driven.KnowledgeStore
}

// NewDocumentService creates a new document service.
func NewDocumentService(store driven.KnowledgeStore) *DocumentService {
	return &DocumentService{store: store}
}

// List returns all documents, newest first.
func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	return s.store.ListDocuments(ctx)
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.store.GetDocument(ctx, id)
}

// Fragments retrieves the stored fragments of a document.
func (s *DocumentService) Fragments(ctx context.Context, id string) ([]domain.Fragment, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.store.GetFragments(ctx, id)
}

// Delete removes a document and its fragments.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	return nil
}
