// Package html extracts readable text from HTML documents, dropping scripts,
// styles and markup and decoding entities.
package html

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/custodia-labs/brief-cli/internal/adapters/driven/extract"
	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

var (
	titleTag      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	comments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockBoundary = regexp.MustCompile(`(?i)</?(p|div|br|hr|h[1-6]|li|tr|td|th|blockquote|pre|table|section|article|header|footer|ul|ol)(\s[^>]*)?/?>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t\f\v]+`)
)

// dropped are elements whose content is never readable text.
var dropped = func() []*regexp.Regexp {
	tags := []string{"script", "style", "noscript", "template", "svg", "head"}
	res := make([]*regexp.Regexp, len(tags))
	for i, tag := range tags {
		res[i] = regexp.MustCompile(`(?is)<` + tag + `(\s[^>]*)?>.*?</` + tag + `\s*>`)
	}
	return res
}()

// Extractor handles HTML documents.
type Extractor struct{}

// New creates a new HTML extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Extract converts HTML to text with one line per block element.
func (e *Extractor) Extract(_ context.Context, raw *domain.RawDocument) (*domain.ExtractedText, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	content := string(raw.Content)

	return &domain.ExtractedText{
		Title:     title(content, raw.URI),
		Text:      stripHTML(content),
		MIMEType:  raw.MIMEType,
		SizeBytes: int64(len(raw.Content)),
	}, nil
}

// title returns the <title> text, falling back to the file name.
func title(content, uri string) string {
	if m := titleTag.FindStringSubmatch(content); len(m) > 1 {
		if t := strings.TrimSpace(html.UnescapeString(m[1])); t != "" {
			return t
		}
	}
	return extract.TitleFromURI(uri)
}

func stripHTML(content string) string {
	for _, re := range dropped {
		content = re.ReplaceAllString(content, "")
	}
	content = comments.ReplaceAllString(content, "")
	content = blockBoundary.ReplaceAllString(content, "\n")
	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")

	lines := strings.Split(content, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(strings.ReplaceAll(line, "\u00a0", " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
