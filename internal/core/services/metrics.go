package services

import (
	"time"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
)

// Ensure nopMetrics implements the interface.
var _ driven.MetricsRecorder = nopMetrics{}

// nopMetrics discards all metrics. It is the default recorder.
type nopMetrics struct{}

func (nopMetrics) IngestCompleted(domain.IngestOutcome, time.Duration) {}
func (nopMetrics) FragmentsEmbedded(int)                               {}
func (nopMetrics) BatchFailed()                                        {}
func (nopMetrics) RateLimited()                                        {}
func (nopMetrics) SearchCompleted(int, time.Duration, error)           {}
