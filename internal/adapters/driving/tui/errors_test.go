package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_AreDistinct(t *testing.T) {
	assert.NotEqual(t, ErrMissingIngestService.Error(), ErrNoDocuments.Error())
}

func TestErrMissingIngestService_Message(t *testing.T) {
	assert.Contains(t, ErrMissingIngestService.Error(), "ingest service")
}

func TestErrNoDocuments_Message(t *testing.T) {
	assert.Contains(t, ErrNoDocuments.Error(), "no documents")
}
