package domain

// SearchOptions configures a semantic search.
type SearchOptions struct {
	// Category restricts results to documents with this category. Empty means any.
	Category string

	// Limit is the maximum number of results. Zero uses the configured default.
	Limit int

	// Threshold is the minimum similarity. Zero uses the configured default.
	Threshold float64
}

// SimilarityQuery is the request sent to the knowledge store.
type SimilarityQuery struct {
	// Vector is the query embedding.
	Vector []float32

	// Threshold is the minimum similarity a candidate must reach.
	Threshold float64

	// Limit caps the number of candidates.
	Limit int

	// Category is an optional store-level filter. Stores may ignore it.
	Category string
}

// Candidate is a fragment returned by the store's similarity query.
type Candidate struct {
	DocumentID    string
	FragmentIndex int
	Content       string
	Metadata      FragmentMetadata
	Similarity    float64
}

// SearchResult represents a single ranked hit.
type SearchResult struct {
	// Content is the fragment text.
	Content string

	// DocumentID is the owning document.
	DocumentID string

	// FragmentIndex is the fragment's sequence index within the document.
	FragmentIndex int

	// Document is the owning document's descriptive metadata.
	Document DocumentInfo

	// Similarity is the score against the query, in [-1, 1].
	Similarity float64

	// Rank is the 1-based position in the result list.
	Rank int
}

// ContextOptions configures context assembly for downstream drafting.
type ContextOptions struct {
	// Keywords are fixed topic keywords added to every context query.
	Keywords []string

	// TermCount is how many frequent significant terms to extract from the source text.
	TermCount int

	// Search configures the underlying search.
	Search SearchOptions
}

// Provenance records where a piece of assembled context came from.
type Provenance struct {
	DocumentName  string  `json:"document_name"`
	DocumentID    string  `json:"document_id"`
	FragmentIndex int     `json:"fragment_index"`
	Similarity    float64 `json:"similarity"`
}

// ContextResult is the assembled context and its provenance.
type ContextResult struct {
	// Query is the search query that was built.
	Query string `json:"query"`

	// Context is the fragment texts joined by blank lines.
	Context string `json:"context"`

	// Sources lists one entry per fragment in Context, in the same order.
	Sources []Provenance `json:"sources"`
}
