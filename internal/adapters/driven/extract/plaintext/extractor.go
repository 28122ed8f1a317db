// Package plaintext extracts text from plain text and other text-like formats.
package plaintext

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/brief-cli/internal/adapters/driven/extract"
	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor passes text through, dropping a byte order mark and invalid UTF-8.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/csv",
		"text/yaml",
		"text/toml",
		"text/x-log",
		"application/json",
		"application/xml",
		"text/xml",
	}
}

// Extract decodes the raw bytes as UTF-8 text.
func (e *Extractor) Extract(_ context.Context, raw *domain.RawDocument) (*domain.ExtractedText, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	text := strings.TrimPrefix(string(raw.Content), "\ufeff")
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	return &domain.ExtractedText{
		Title:     extract.TitleFromURI(raw.URI),
		Text:      text,
		MIMEType:  raw.MIMEType,
		SizeBytes: int64(len(raw.Content)),
	}, nil
}
