package domain

import "time"

// IngestStage identifies a step of the ingestion pipeline.
type IngestStage string

// Ingestion stages in execution order.
const (
	StageSegmenting       IngestStage = "segmenting"
	StageStoringDocument  IngestStage = "storing_document"
	StageEmbedding        IngestStage = "embedding"
	StageStoringFragments IngestStage = "storing_fragments"
	StageComplete         IngestStage = "complete"
)

// Stage progress boundaries, as overall percentages.
const (
	PercentSegmented       = 30
	PercentDocumentStored  = 40
	PercentEmbeddingStart  = 60
	PercentEmbeddingEnd    = 85
	PercentFragmentsStored = 95
	PercentComplete        = 100
)

// IngestProgress is emitted on every stage transition and during embedding.
type IngestProgress struct {
	// Stage is the current stage.
	Stage IngestStage

	// Percent is the overall completion estimate, 0-100.
	Percent int

	// Message is an optional human-readable note.
	Message string
}

// IngestOutcome classifies how an ingestion ended.
type IngestOutcome string

// Ingestion outcomes.
const (
	// OutcomeCompleted means the document was stored. Some fragments may have been skipped.
	OutcomeCompleted IngestOutcome = "completed"

	// OutcomeNoContent means segmentation produced no fragments and nothing was stored.
	OutcomeNoContent IngestOutcome = "no_content"

	// OutcomeFailed means the document could not be stored.
	OutcomeFailed IngestOutcome = "failed"

	// OutcomeCancelled means the context was cancelled mid-ingestion.
	OutcomeCancelled IngestOutcome = "cancelled"
)

// IngestRequest is one document to ingest.
type IngestRequest struct {
	// Text is the already-decoded document text.
	Text string

	// Metadata is the declared document metadata.
	Metadata DocumentMetadata
}

// IngestOptions overrides service defaults for one ingestion call.
type IngestOptions struct {
	// Chunking overrides the configured chunking settings when non-nil.
	Chunking *ChunkingSettings
}

// IngestStats holds aggregate statistics for one ingestion.
type IngestStats struct {
	FragmentCount  int           `json:"fragment_count"`
	EmbeddingCount int           `json:"embedding_count"`
	TokenUsage     int           `json:"token_usage"`
	Elapsed        time.Duration `json:"elapsed"`
	SuccessRatio   float64       `json:"success_ratio"`
}

// IngestSummary is the result of ingesting one document.
type IngestSummary struct {
	// Outcome classifies the run.
	Outcome IngestOutcome

	// Document is the stored document, nil unless it was stored.
	Document *Document

	// Fragments are the fragments actually persisted with an embedding.
	Fragments []Fragment

	// Stats holds counts, usage and timing.
	Stats IngestStats

	// Errors lists skipped batches and non-fatal store failures.
	Errors []string
}

// IngestEvent is published after each ingestion for downstream consumers.
type IngestEvent struct {
	DocumentID     string        `json:"document_id"`
	Name           string        `json:"name"`
	Category       string        `json:"category,omitempty"`
	Outcome        IngestOutcome `json:"outcome"`
	FragmentCount  int           `json:"fragment_count"`
	EmbeddingCount int           `json:"embedding_count"`
	TokenUsage     int           `json:"token_usage"`
	SuccessRatio   float64       `json:"success_ratio"`
	Errors         []string      `json:"errors,omitempty"`
	OccurredAt     time.Time     `json:"occurred_at"`
}
