package driven

import (
	"context"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

// TextExtractor decodes raw uploads into plain text.
// Each extractor handles specific MIME types.
type TextExtractor interface {
	// SupportedMIMETypes returns the MIME types this extractor handles.
	SupportedMIMETypes() []string

	// Extract decodes a raw document into text.
	Extract(ctx context.Context, raw *domain.RawDocument) (*domain.ExtractedText, error)
}
