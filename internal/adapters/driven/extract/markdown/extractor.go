// Package markdown extracts readable text from Markdown documents.
package markdown

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/brief-cli/internal/adapters/driven/extract"
	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

var (
	frontMatter   = regexp.MustCompile(`(?s)\A---\n.*?\n---\n`)
	codeFence     = regexp.MustCompile("(?m)^```[^\n]*(\n|$)")
	inlineCode    = regexp.MustCompile("`([^`]+)`")
	images        = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	links         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headings      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	emphasis      = regexp.MustCompile(`(?m)(^|[^\w])(\*\*|__|\*|_)([^*_\n]+)(\*\*|__|\*|_)`)
	blockquote    = regexp.MustCompile(`(?m)^>\s?`)
	horizontal    = regexp.MustCompile(`(?m)^\s*([-*_]\s*){3,}$`)
	listMarkers   = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	numberedList  = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+`)
	tableRule     = regexp.MustCompile(`(?m)^[ \t]*\|?[ \t]*:?-{3,}:?[ \t]*(\|[ \t]*:?-{3,}:?[ \t]*)*\|?[ \t]*(\n|$)`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// Extractor handles Markdown documents.
type Extractor struct{}

// New creates a new Markdown extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Extract strips Markdown syntax. Code blocks keep their contents, since
// technical documents often carry meaning there.
func (e *Extractor) Extract(_ context.Context, raw *domain.RawDocument) (*domain.ExtractedText, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	content := strings.ReplaceAll(string(raw.Content), "\r\n", "\n")

	return &domain.ExtractedText{
		Title:     title(content, raw.URI),
		Text:      stripMarkdown(content),
		MIMEType:  raw.MIMEType,
		SizeBytes: int64(len(raw.Content)),
	}, nil
}

// title returns the first H1 heading, falling back to the file name.
func title(content, uri string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}
	return extract.TitleFromURI(uri)
}

func stripMarkdown(content string) string {
	content = frontMatter.ReplaceAllString(content, "")
	content = codeFence.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = images.ReplaceAllString(content, "$1")
	content = links.ReplaceAllString(content, "$1")
	content = headings.ReplaceAllString(content, "")
	content = blockquote.ReplaceAllString(content, "")
	content = horizontal.ReplaceAllString(content, "")
	content = tableRule.ReplaceAllString(content, "")

	// List markers go before emphasis so "* item" is not read as an opening star
	content = listMarkers.ReplaceAllString(content, "")
	content = numberedList.ReplaceAllString(content, "")
	content = emphasis.ReplaceAllString(content, "$1$3")

	content = multiNewlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
