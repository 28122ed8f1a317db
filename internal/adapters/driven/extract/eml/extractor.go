// Package eml extracts headers and body text from RFC 822 email messages.
package eml

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"

	"github.com/custodia-labs/brief-cli/internal/adapters/driven/extract"
	"github.com/custodia-labs/brief-cli/internal/adapters/driven/extract/html"
	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor turns an email into a short header block followed by the body.
// Plain text parts are preferred; HTML-only messages go through the HTML extractor.
type Extractor struct {
	html driven.TextExtractor
}

// New creates a new email extractor.
func New() *Extractor {
	return &Extractor{html: html.New()}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{"message/rfc822"}
}

// Extract parses the message. The subject becomes the title.
func (e *Extractor) Extract(ctx context.Context, raw *domain.RawDocument) (*domain.ExtractedText, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing message: %w", domain.ErrInvalidInput, err)
	}

	subject := decodeHeader(msg.Header.Get("Subject"))
	body, err := e.body(ctx, msg.Header.Get("Content-Type"), msg.Body)
	if err != nil {
		return nil, err
	}

	var content strings.Builder
	for _, h := range []struct{ name, value string }{
		{"From", decodeHeader(msg.Header.Get("From"))},
		{"To", decodeHeader(msg.Header.Get("To"))},
		{"Date", msg.Header.Get("Date")},
		{"Subject", subject},
	} {
		if h.value != "" {
			fmt.Fprintf(&content, "%s: %s\n", h.name, h.value)
		}
	}
	content.WriteString("\n")
	content.WriteString(body)

	title := subject
	if title == "" {
		title = extract.TitleFromURI(raw.URI)
	}

	return &domain.ExtractedText{
		Title:     title,
		Text:      strings.TrimSpace(content.String()),
		MIMEType:  raw.MIMEType,
		SizeBytes: int64(len(raw.Content)),
	}, nil
}

// decodeHeader decodes RFC 2047 encoded words, returning the input if decoding fails.
func decodeHeader(header string) string {
	if header == "" {
		return ""
	}
	decoded, err := new(mime.WordDecoder).DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

// body extracts the text of a message or part with the given content type.
func (e *Extractor) body(ctx context.Context, contentType string, r io.Reader) (string, error) {
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return e.multipartBody(ctx, r, params["boundary"])
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %w", domain.ErrInvalidInput, err)
	}
	if mediaType == "text/html" {
		return e.htmlText(ctx, content)
	}
	return strings.ReplaceAll(string(content), "\r\n", "\n"), nil
}

// multipartBody collects text parts, preferring text/plain over text/html.
func (e *Extractor) multipartBody(ctx context.Context, r io.Reader, boundary string) (string, error) {
	if boundary == "" {
		return "", nil
	}

	mr := multipart.NewReader(r, boundary)
	var textParts, htmlParts []string

	for {
		part, err := mr.NextPart()
		if err != nil {
			// io.EOF ends the message; anything else is a truncated part.
			break
		}

		mediaType, params, parseErr := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if parseErr != nil {
			mediaType = "application/octet-stream"
		}
		if isAttachment(part) {
			part.Close()
			continue
		}

		content, readErr := io.ReadAll(part)
		part.Close()
		if readErr != nil {
			continue
		}

		switch {
		case mediaType == "text/plain":
			textParts = append(textParts, strings.ReplaceAll(string(content), "\r\n", "\n"))
		case mediaType == "text/html":
			if text, err := e.htmlText(ctx, content); err == nil {
				htmlParts = append(htmlParts, text)
			}
		case strings.HasPrefix(mediaType, "multipart/"):
			nested, nestedErr := e.multipartBody(ctx, bytes.NewReader(content), params["boundary"])
			if nestedErr == nil && nested != "" {
				textParts = append(textParts, nested)
			}
		}
	}

	if len(textParts) > 0 {
		return strings.Join(textParts, "\n"), nil
	}
	return strings.Join(htmlParts, "\n"), nil
}

func (e *Extractor) htmlText(ctx context.Context, content []byte) (string, error) {
	extracted, err := e.html.Extract(ctx, &domain.RawDocument{MIMEType: "text/html", Content: content})
	if err != nil {
		return "", err
	}
	return extracted.Text, nil
}

func isAttachment(part *multipart.Part) bool {
	disposition, _, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	return err == nil && disposition == "attachment"
}
