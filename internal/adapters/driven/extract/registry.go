// Package extract selects a TextExtractor for an upload by MIME type.
// Each extractor lives in its own subpackage and knows how to turn one family
// of formats into plain text.
package extract

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
)

// extensionTypes covers extensions the system MIME table often lacks.
var extensionTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".text":     "text/plain",
	".log":      "text/plain",
	".csv":      "text/csv",
	".json":     "application/json",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".html":     "text/html",
	".htm":      "text/html",
	".xhtml":    "application/xhtml+xml",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".eml":      "message/rfc822",
}

// Registry maps MIME types to extractors. The last registration for a type wins.
type Registry struct {
	byType map[string]driven.TextExtractor
}

// NewRegistry creates a registry holding the given extractors.
func NewRegistry(extractors ...driven.TextExtractor) *Registry {
	r := &Registry{byType: make(map[string]driven.TextExtractor)}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// Register adds an extractor for all its MIME types.
func (r *Registry) Register(e driven.TextExtractor) {
	for _, t := range e.SupportedMIMETypes() {
		r.byType[t] = e
	}
}

// Supports reports whether an extractor is registered for the MIME type.
func (r *Registry) Supports(mimeType string) bool {
	_, ok := r.byType[baseType(mimeType)]
	return ok
}

// SupportsFile reports whether the type detected for path has an extractor.
func (r *Registry) SupportsFile(path string) bool {
	return r.Supports(DetectMIME(path))
}

// Extract decodes raw with the extractor registered for its MIME type.
func (r *Registry) Extract(ctx context.Context, raw *domain.RawDocument) (*domain.ExtractedText, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	e, ok := r.byType[baseType(raw.MIMEType)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedType, raw.MIMEType)
	}
	return e.Extract(ctx, raw)
}

// ReadFile loads path and extracts its text, detecting the MIME type from the extension.
func (r *Registry) ReadFile(ctx context.Context, path string) (*domain.ExtractedText, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return r.Extract(ctx, &domain.RawDocument{
		URI:      path,
		MIMEType: DetectMIME(path),
		Content:  content,
	})
}

// DetectMIME guesses the MIME type of path from its extension.
// Unknown extensions fall back to text/plain.
func DetectMIME(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return baseType(t)
	}
	return "text/plain"
}

// TitleFromURI derives a human-readable title from a file path or URL.
func TitleFromURI(uri string) string {
	filename := filepath.Base(uri)
	filename = strings.TrimSuffix(filename, filepath.Ext(filename))
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return strings.TrimSpace(filename)
}

// baseType strips parameters such as "; charset=utf-8".
func baseType(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}
