package domain

// RawDocument represents undecoded bytes handed to a text extractor.
type RawDocument struct {
	// URI is the original location (file path, URL, etc).
	URI string

	// MIMEType is the content type (e.g., "text/markdown").
	MIMEType string

	// Content is the raw bytes.
	Content []byte
}

// ExtractedText is the decoded text of a RawDocument plus basic metadata.
type ExtractedText struct {
	// Title is a human-readable name derived from the content or URI.
	Title string

	// Text is the decoded plain text.
	Text string

	// MIMEType is the content type the text was decoded from.
	MIMEType string

	// SizeBytes is the size of the raw content.
	SizeBytes int64
}
