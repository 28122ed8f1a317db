package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/brief-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
)

var errProviderDown = errors.New("provider unreachable")

// stubProvider returns fixed vectors. Texts containing failOn make the whole call fail.
type stubProvider struct {
	mu      sync.Mutex
	dims    int
	value   float32
	failOn  string
	err     error
	vectors func(texts []string) [][]float32
	calls   [][]string
}

func newStubProvider(dims int) *stubProvider {
	return &stubProvider{dims: dims, value: 0.1}
}

func (p *stubProvider) EmbedBatch(_ context.Context, texts []string) (*driven.EmbeddingResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, append([]string(nil), texts...))

	if p.err != nil {
		return nil, p.err
	}
	for _, t := range texts {
		if p.failOn != "" && strings.Contains(t, p.failOn) {
			return nil, errProviderDown
		}
	}
	if p.vectors != nil {
		return &driven.EmbeddingResponse{Vectors: p.vectors(texts), Usage: len(texts)}, nil
	}

	vectors := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, p.dims)
		for j := range v {
			v[j] = p.value
		}
		vectors[i] = v
	}
	return &driven.EmbeddingResponse{Vectors: vectors, Usage: len(texts) * 3}, nil
}

func (p *stubProvider) Dimensions() int            { return p.dims }
func (p *stubProvider) ModelName() string          { return "stub-embed" }
func (p *stubProvider) Ping(context.Context) error { return nil }
func (p *stubProvider) Close() error               { return nil }

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// faultyStore wraps the memory store and fails selected operations.
type faultyStore struct {
	*memory.Store
	insertDocErr   error
	insertFragErr  error
	countersErr    error
	similarityErr  error
	lookupErr      error
	candidates     []domain.Candidate
	infos          []domain.DocumentInfo
	lastSimilarity domain.SimilarityQuery
}

func newFaultyStore() *faultyStore {
	return &faultyStore{Store: memory.NewStore()}
}

func (s *faultyStore) InsertDocument(ctx context.Context, doc *domain.Document) (string, error) {
	if s.insertDocErr != nil {
		return "", s.insertDocErr
	}
	return s.Store.InsertDocument(ctx, doc)
}

func (s *faultyStore) InsertFragments(ctx context.Context, id string, fragments []domain.Fragment) error {
	if s.insertFragErr != nil {
		return s.insertFragErr
	}
	return s.Store.InsertFragments(ctx, id, fragments)
}

func (s *faultyStore) UpdateDocumentCounters(ctx context.Context, id string, c domain.DocumentCounters) error {
	if s.countersErr != nil {
		return s.countersErr
	}
	return s.Store.UpdateDocumentCounters(ctx, id, c)
}

func (s *faultyStore) SimilarityQuery(ctx context.Context, q domain.SimilarityQuery) ([]domain.Candidate, error) {
	s.lastSimilarity = q
	if s.similarityErr != nil {
		return nil, s.similarityErr
	}
	if s.candidates != nil {
		return s.candidates, nil
	}
	return s.Store.SimilarityQuery(ctx, q)
}

func (s *faultyStore) LookupDocuments(ctx context.Context, ids []string) ([]domain.DocumentInfo, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	if s.infos != nil {
		return s.infos, nil
	}
	return s.Store.LookupDocuments(ctx, ids)
}

// recordingEvents captures published events.
type recordingEvents struct {
	events []domain.IngestEvent
	err    error
}

func (r *recordingEvents) PublishIngest(_ context.Context, e domain.IngestEvent) error {
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingEvents) Close() error { return nil }

// recordingMetrics counts metric calls.
type recordingMetrics struct {
	mu          sync.Mutex
	outcomes    []domain.IngestOutcome
	embedded    int
	failed      int
	rateLimited int
	searches    int
	searchErrs  int
}

func (m *recordingMetrics) IngestCompleted(o domain.IngestOutcome, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, o)
}

func (m *recordingMetrics) FragmentsEmbedded(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedded += n
}

func (m *recordingMetrics) BatchFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed++
}

func (m *recordingMetrics) RateLimited() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimited++
}

func (m *recordingMetrics) SearchCompleted(_ int, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches++
	if err != nil {
		m.searchErrs++
	}
}

// mapCache is an in-process EmbeddingCache.
type mapCache struct {
	values map[string][]float32
}

func (c *mapCache) GetOrCompute(
	ctx context.Context, key string, compute func(context.Context) ([]float32, error),
) ([]float32, bool, error) {
	if v, ok := c.values[key]; ok {
		return v, true, nil
	}
	v, err := compute(ctx)
	if err != nil {
		return nil, false, err
	}
	c.values[key] = v
	return v, false, nil
}

func batchSettings(size int) domain.BatchSettings {
	return domain.BatchSettings{
		Enabled:        true,
		BatchSize:      size,
		MaxInputTokens: 8000,
		CharsPerToken:  3,
	}
}
