package tui

import "errors"

// ErrMissingIngestService is returned when the ingest service is not provided.
var ErrMissingIngestService = errors.New("tui: ingest service is required")

// ErrNoDocuments is returned when there is nothing to ingest.
var ErrNoDocuments = errors.New("tui: no documents to ingest")
