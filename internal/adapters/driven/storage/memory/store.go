// Package memory provides an in-process KnowledgeStore.
// It is used for tests and for throwaway sessions (store.backend = "memory").
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
	"github.com/custodia-labs/brief-cli/internal/ranker"
)

// Ensure Store implements the interface.
var _ driven.KnowledgeStore = (*Store)(nil)

// Store is an in-memory implementation of driven.KnowledgeStore.
// Similarity queries are answered by brute-force cosine over all stored fragments.
type Store struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	fragments map[string][]domain.Fragment
	now       func() time.Time
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		documents: make(map[string]domain.Document),
		fragments: make(map[string][]domain.Fragment),
		now:       time.Now,
	}
}

// InsertDocument stores a new document and returns its assigned ID.
func (s *Store) InsertDocument(_ context.Context, doc *domain.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *doc
	stored.ID = uuid.New().String()
	stored.Tags = slices.Clone(doc.Tags)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	s.documents[stored.ID] = stored
	return stored.ID, nil
}

// InsertFragments stores embedded fragments for a document.
// Fragment IDs are assigned in place.
func (s *Store) InsertFragments(_ context.Context, documentID string, fragments []domain.Fragment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[documentID]; !ok {
		return domain.ErrNotFound
	}

	for i := range fragments {
		fragments[i].ID = uuid.New().String()
		fragments[i].DocumentID = documentID
		f := fragments[i]
		f.Embedding = slices.Clone(f.Embedding)
		s.fragments[documentID] = append(s.fragments[documentID], f)
	}

	sort.SliceStable(s.fragments[documentID], func(i, j int) bool {
		return s.fragments[documentID][i].Index < s.fragments[documentID][j].Index
	})
	return nil
}

// UpdateDocumentCounters updates the denormalised counters.
func (s *Store) UpdateDocumentCounters(_ context.Context, documentID string, c domain.DocumentCounters) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[documentID]
	if !ok {
		return domain.ErrNotFound
	}
	doc.FragmentCount = c.FragmentCount
	doc.EmbeddingCount = c.EmbeddingCount
	doc.EmbeddingsGenerated = c.EmbeddingsGenerated
	if !c.LastEmbeddedAt.IsZero() {
		at := c.LastEmbeddedAt
		doc.LastEmbeddedAt = &at
	}
	s.documents[documentID] = doc
	return nil
}

// SimilarityQuery scores every stored fragment against the query vector.
// Fragments with a different dimensionality are skipped.
func (s *Store) SimilarityQuery(_ context.Context, q domain.SimilarityQuery) ([]domain.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		refs       []domain.Fragment
		candidates []ranker.Candidate
	)
	for _, id := range s.sortedDocumentIDs() {
		if q.Category != "" && !strings.EqualFold(s.documents[id].Category, q.Category) {
			continue
		}
		for _, f := range s.fragments[id] {
			if len(f.Embedding) != len(q.Vector) {
				continue
			}
			candidates = append(candidates, ranker.Candidate{Ref: len(refs), Vector: f.Embedding})
			refs = append(refs, f)
		}
	}

	scored, err := ranker.Rank(q.Vector, candidates, q.Limit, q.Threshold)
	if err != nil {
		return nil, err
	}

	result := make([]domain.Candidate, 0, len(scored))
	for _, sc := range scored {
		f := refs[sc.Ref]
		result = append(result, domain.Candidate{
			DocumentID:    f.DocumentID,
			FragmentIndex: f.Index,
			Content:       f.Content,
			Metadata:      f.Metadata,
			Similarity:    sc.Similarity,
		})
	}
	return result, nil
}

// LookupDocuments returns descriptive metadata for the known IDs, in request order.
func (s *Store) LookupDocuments(_ context.Context, ids []string) ([]domain.DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]domain.DocumentInfo, 0, len(ids))
	for _, id := range ids {
		if doc, ok := s.documents[id]; ok {
			infos = append(infos, doc.Info())
		}
	}
	return infos, nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetFragments retrieves all fragments for a document ordered by index.
func (s *Store) GetFragments(_ context.Context, documentID string) ([]domain.Fragment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.documents[documentID]; !ok {
		return nil, domain.ErrNotFound
	}
	return slices.Clone(s.fragments[documentID]), nil
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		result = append(result, doc)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteDocument removes a document and its fragments.
func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.documents, id)
	delete(s.fragments, id)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// sortedDocumentIDs returns document IDs oldest first, so ties rank deterministically.
// Caller must hold the lock.
func (s *Store) sortedDocumentIDs() []string {
	ids := make([]string, 0, len(s.documents))
	for id := range s.documents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.documents[ids[i]], s.documents[ids[j]]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return ids[i] < ids[j]
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return ids
}
