package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driving"
	"github.com/custodia-labs/brief-cli/internal/logger"
	"github.com/custodia-labs/brief-cli/internal/segmenter"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestService runs the ingestion pipeline: segment, store the document,
// embed the fragments, store the embedded fragments, update counters.
type IngestService struct {
	store    driven.KnowledgeStore
	batcher  *EmbeddingBatcher
	chunking domain.ChunkingSettings
	events   driven.EventPublisher
	metrics  driven.MetricsRecorder
	now      func() time.Time
}

// NewIngestService creates a new ingestion service.
func NewIngestService(
	store driven.KnowledgeStore,
	batcher *EmbeddingBatcher,
	chunking domain.ChunkingSettings,
) *IngestService {
	return &IngestService{
		store:    store,
		batcher:  batcher,
		chunking: chunking,
		metrics:  nopMetrics{},
		now:      time.Now,
	}
}

// SetEventPublisher sets the publisher notified after each ingestion. Nil disables events.
func (s *IngestService) SetEventPublisher(events driven.EventPublisher) {
	s.events = events
}

// SetMetrics sets the metrics recorder.
func (s *IngestService) SetMetrics(m driven.MetricsRecorder) {
	if m != nil {
		s.metrics = m
	}
}

// Ingest runs the pipeline for one document.
func (s *IngestService) Ingest(
	ctx context.Context,
	req domain.IngestRequest,
	opts domain.IngestOptions,
	onProgress driving.ProgressFunc,
) (*domain.IngestSummary, error) {
	start := s.now()
	summary := &domain.IngestSummary{Outcome: domain.OutcomeFailed}
	report := progressReporter(onProgress)

	summary, err := s.ingest(ctx, req, opts, summary, report)

	summary.Stats.Elapsed = s.now().Sub(start)
	s.metrics.IngestCompleted(summary.Outcome, summary.Stats.Elapsed)
	s.publish(ctx, req.Metadata, summary)

	return summary, err
}

func (s *IngestService) ingest(
	ctx context.Context,
	req domain.IngestRequest,
	opts domain.IngestOptions,
	summary *domain.IngestSummary,
	report driving.ProgressFunc,
) (*domain.IngestSummary, error) {
	name := req.Metadata.Name
	logger.Section("Ingest " + name)

	chunking := s.chunking
	if opts.Chunking != nil {
		chunking = *opts.Chunking
	}
	if err := chunking.Validate(); err != nil {
		return summary, err
	}

	// Segmenting
	report(domain.IngestProgress{Stage: domain.StageSegmenting, Percent: 0, Message: "Segmenting " + name})
	fragments := segmenter.New(segmenter.FromSettings(chunking)...).Segment(req.Text)
	summary.Stats.FragmentCount = len(fragments)
	logger.Debug("Segmented %q into %d fragments", name, len(fragments))

	if len(fragments) == 0 {
		summary.Outcome = domain.OutcomeNoContent
		report(domain.IngestProgress{Stage: domain.StageComplete, Percent: domain.PercentComplete, Message: "No content"})
		return summary, nil
	}
	report(domain.IngestProgress{
		Stage:   domain.StageSegmenting,
		Percent: domain.PercentSegmented,
		Message: fmt.Sprintf("%d fragments", len(fragments)),
	})

	if err := ctx.Err(); err != nil {
		return cancelled(summary, err)
	}

	// Storing document
	doc := newDocument(req, s.now())
	id, err := s.store.InsertDocument(ctx, doc)
	if err != nil {
		logger.Warn("Storing document %q failed: %v", name, err)
		return summary, fmt.Errorf("store document: %w", err)
	}
	doc.ID = id
	summary.Document = doc
	report(domain.IngestProgress{Stage: domain.StageStoringDocument, Percent: domain.PercentDocumentStored})

	// Embedding
	reqs := make([]domain.EmbedRequest, len(fragments))
	for i, f := range fragments {
		reqs[i] = domain.EmbedRequest{ID: strconv.Itoa(f.Index), Text: f.Content}
	}
	report(domain.IngestProgress{Stage: domain.StageEmbedding, Percent: domain.PercentEmbeddingStart})

	result, err := s.batcher.EmbedBatch(ctx, reqs, func(p domain.BatchProgress) {
		span := domain.PercentEmbeddingEnd - domain.PercentEmbeddingStart
		report(domain.IngestProgress{
			Stage:   domain.StageEmbedding,
			Percent: domain.PercentEmbeddingStart + span*p.Processed/max(p.Total, 1),
			Message: fmt.Sprintf("Batch %d/%d", p.Batch+1, p.Batches),
		})
	})
	if result != nil {
		summary.Errors = append(summary.Errors, result.Errors...)
		summary.Stats.TokenUsage = result.Usage
	}
	if err != nil {
		return cancelled(summary, err)
	}

	// Storing fragments
	embedded := make([]domain.Fragment, 0, result.Succeeded)
	for i, outcome := range result.Outcomes {
		if !outcome.OK() {
			continue
		}
		f := fragments[i]
		f.DocumentID = id
		f.Embedding = outcome.Vector
		embedded = append(embedded, f)
	}
	s.metrics.FragmentsEmbedded(len(embedded))
	summary.Outcome = domain.OutcomeCompleted

	if len(embedded) > 0 {
		if err := s.store.InsertFragments(ctx, id, embedded); err != nil {
			logger.Warn("Storing fragments for %q failed: %v", name, err)
			summary.Errors = append(summary.Errors, fmt.Sprintf("store fragments: %v", err))
			embedded = nil
		}
	}
	summary.Fragments = embedded
	summary.Stats.EmbeddingCount = len(embedded)
	summary.Stats.SuccessRatio = float64(len(embedded)) / float64(len(fragments))

	counters := domain.DocumentCounters{
		FragmentCount:       len(fragments),
		EmbeddingCount:      len(embedded),
		EmbeddingsGenerated: len(embedded) > 0,
	}
	if counters.EmbeddingsGenerated {
		counters.LastEmbeddedAt = s.now()
	}
	if err := s.store.UpdateDocumentCounters(ctx, id, counters); err != nil {
		logger.Warn("Updating counters for %q failed: %v", name, err)
		summary.Errors = append(summary.Errors, fmt.Sprintf("update counters: %v", err))
	} else {
		doc.FragmentCount = counters.FragmentCount
		doc.EmbeddingCount = counters.EmbeddingCount
		doc.EmbeddingsGenerated = counters.EmbeddingsGenerated
		if counters.EmbeddingsGenerated {
			at := counters.LastEmbeddedAt
			doc.LastEmbeddedAt = &at
		}
	}
	report(domain.IngestProgress{Stage: domain.StageStoringFragments, Percent: domain.PercentFragmentsStored})

	report(domain.IngestProgress{
		Stage:   domain.StageComplete,
		Percent: domain.PercentComplete,
		Message: fmt.Sprintf("%d/%d fragments embedded", len(embedded), len(fragments)),
	})
	logger.Debug("Ingested %q: %d/%d fragments embedded, %d tokens",
		name, len(embedded), len(fragments), summary.Stats.TokenUsage)

	return summary, nil
}

// IngestMany ingests documents one at a time in input order.
// Progress messages are prefixed with the document position.
func (s *IngestService) IngestMany(
	ctx context.Context,
	reqs []domain.IngestRequest,
	opts domain.IngestOptions,
	onProgress driving.ProgressFunc,
) ([]domain.IngestSummary, error) {
	summaries := make([]domain.IngestSummary, 0, len(reqs))
	var errs []error

	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("stopped before %q: %w", req.Metadata.Name, err))
			break
		}

		prefix := fmt.Sprintf("[%d/%d] ", i+1, len(reqs))
		report := progressReporter(onProgress)
		summary, err := s.Ingest(ctx, req, opts, func(p domain.IngestProgress) {
			p.Message = prefix + p.Message
			report(p)
		})
		if err != nil {
			logger.Warn("Ingesting %q failed: %v", req.Metadata.Name, err)
			summary.Errors = append(summary.Errors, err.Error())
			errs = append(errs, fmt.Errorf("%s: %w", req.Metadata.Name, err))
		}
		summaries = append(summaries, *summary)
	}

	return summaries, errors.Join(errs...)
}

func (s *IngestService) publish(ctx context.Context, meta domain.DocumentMetadata, summary *domain.IngestSummary) {
	if s.events == nil {
		return
	}

	event := domain.IngestEvent{
		Name:           meta.Name,
		Category:       meta.Category,
		Outcome:        summary.Outcome,
		FragmentCount:  summary.Stats.FragmentCount,
		EmbeddingCount: summary.Stats.EmbeddingCount,
		TokenUsage:     summary.Stats.TokenUsage,
		SuccessRatio:   summary.Stats.SuccessRatio,
		Errors:         summary.Errors,
		OccurredAt:     s.now(),
	}
	if summary.Document != nil {
		event.DocumentID = summary.Document.ID
	}

	// Publish even when the ingestion itself was cancelled
	if err := s.events.PublishIngest(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn("Publishing ingest event for %q failed: %v", meta.Name, err)
	}
}

func newDocument(req domain.IngestRequest, now time.Time) *domain.Document {
	size := req.Metadata.SizeBytes
	if size == 0 {
		size = int64(len(req.Text))
	}
	return &domain.Document{
		Name:        req.Metadata.Name,
		MIMEType:    req.Metadata.MIMEType,
		Content:     req.Text,
		Description: req.Metadata.Description,
		Category:    req.Metadata.Category,
		Tags:        req.Metadata.Tags,
		SizeBytes:   size,
		CreatedAt:   now,
	}
}

func cancelled(summary *domain.IngestSummary, err error) (*domain.IngestSummary, error) {
	summary.Outcome = domain.OutcomeCancelled
	return summary, fmt.Errorf("ingestion cancelled: %w", err)
}

// progressReporter returns a callback that is safe to call when onProgress is nil.
func progressReporter(onProgress driving.ProgressFunc) driving.ProgressFunc {
	if onProgress == nil {
		return func(domain.IngestProgress) {}
	}
	return onProgress
}
