// Package docx extracts paragraph text from Word documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/brief-cli/internal/adapters/driven/extract"
	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
)

// MIMEType is the Office Open XML word processing type.
const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor reads word/document.xml from the DOCX archive.
type Extractor struct{}

// New creates a new DOCX extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

// Extract returns one line per paragraph. The title comes from docProps/core.xml
// when present, otherwise from the file name.
func (e *Extractor) Extract(_ context.Context, raw *domain.RawDocument) (*domain.ExtractedText, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	reader, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a DOCX archive", domain.ErrInvalidInput)
	}

	body, err := readEntry(reader, "word/document.xml")
	if err != nil {
		return nil, err
	}

	title := extract.TitleFromURI(raw.URI)
	if core, err := readEntry(reader, "docProps/core.xml"); err == nil && core != nil {
		if t := parseTitle(core); t != "" {
			title = t
		}
	}

	return &domain.ExtractedText{
		Title:     title,
		Text:      parseDocumentXML(body),
		MIMEType:  raw.MIMEType,
		SizeBytes: int64(len(raw.Content)),
	}, nil
}

// readEntry returns the content of the named archive entry, or nil if it is absent.
func readEntry(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: opening %s: %w", domain.ErrInvalidInput, name, err)
		}
		defer rc.Close()

		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %w", domain.ErrInvalidInput, name, err)
		}
		return content, nil
	}
	return nil, nil
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

// parseDocumentXML joins the run text of each paragraph. Empty paragraphs
// become blank lines so paragraph boundaries survive segmentation.
func parseDocumentXML(content []byte) string {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return ""
	}

	var result strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			result.WriteString("\n")
		}
		for _, r := range para.Runs {
			for _, text := range r.Text {
				result.WriteString(text.Content)
			}
		}
	}

	return strings.TrimSpace(result.String())
}

// coreXML represents the structure of docProps/core.xml.
type coreXML struct {
	Title string `xml:"title"`
}

func parseTitle(content []byte) string {
	var core coreXML
	if err := xml.Unmarshal(content, &core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}
