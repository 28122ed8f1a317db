package domain

import "time"

// Document represents an ingested unit of knowledge.
// Content is immutable after ingestion; re-ingesting the same text creates a new Document.
type Document struct {
	// ID is assigned by the store on first successful insert.
	ID string

	// Name is the human-readable document name (usually the file name).
	Name string

	// MIMEType is the declared content type of the original upload.
	MIMEType string

	// Content is the decoded text the fragments were cut from.
	Content string

	// Description is an optional free-text summary.
	Description string

	// Category is a single classification label used for search filtering.
	Category string

	// Tags are free-form labels.
	Tags []string

	// SizeBytes is the size of the original upload in bytes.
	SizeBytes int64

	// FragmentCount is the number of fragments produced by segmentation.
	FragmentCount int

	// EmbeddingCount is the number of fragments stored with an embedding.
	EmbeddingCount int

	// EmbeddingsGenerated is set once the embedding stage has stored at least one fragment.
	EmbeddingsGenerated bool

	// LastEmbeddedAt is when the counters were last updated by the embedding stage.
	LastEmbeddedAt *time.Time

	// CreatedAt is when the document was stored.
	CreatedAt time.Time
}

// Info returns the descriptive metadata of the document.
func (d *Document) Info() DocumentInfo {
	return DocumentInfo{
		ID:          d.ID,
		Name:        d.Name,
		Category:    d.Category,
		Tags:        d.Tags,
		Description: d.Description,
	}
}

// DocumentMetadata is the caller-declared metadata that accompanies text for ingestion.
type DocumentMetadata struct {
	// Name is the human-readable document name.
	Name string

	// MIMEType is the declared content type.
	MIMEType string

	// SizeBytes is the size of the original upload. Zero means "use the text length".
	SizeBytes int64

	// Description is an optional summary.
	Description string

	// Category is an optional classification label.
	Category string

	// Tags are optional free-form labels.
	Tags []string
}

// DocumentInfo is the descriptive metadata attached to search results.
type DocumentInfo struct {
	ID          string
	Name        string
	Category    string
	Tags        []string
	Description string
}

// DocumentCounters holds the denormalised counters updated after fragments are stored.
type DocumentCounters struct {
	FragmentCount       int
	EmbeddingCount      int
	EmbeddingsGenerated bool
	LastEmbeddedAt      time.Time
}

// Fragment represents a bounded slice of a document's content.
// Fragments are the unit of embedding and retrieval.
type Fragment struct {
	// ID is assigned by the store when the fragment is persisted.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Index is the 0-based sequence position within the document.
	Index int

	// Content is the fragment text, including any overlap with the previous fragment.
	Content string

	// Length is the character (rune) length of Content.
	Length int

	// Start is the rune offset of the fragment within the document content.
	Start int

	// End is the rune offset one past the last character of the fragment.
	End int

	// Metadata holds structural properties derived from the content.
	Metadata FragmentMetadata

	// Embedding is the vector representation. Empty until the embedding stage succeeds.
	Embedding []float32
}

// FragmentMetadata holds structural properties of a fragment.
type FragmentMetadata struct {
	WordCount   int  `json:"word_count"`
	CharCount   int  `json:"char_count"`
	HasQuestion bool `json:"has_question"`
	HasNumbers  bool `json:"has_numbers"`
}
