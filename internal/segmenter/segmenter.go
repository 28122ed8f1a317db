// Package segmenter splits document text into bounded, overlapping fragments,
// cutting at paragraph and sentence boundaries where it can.
package segmenter

import (
	"strings"
	"unicode"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

// Default configuration values, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultMinChunkSize = 100
	DefaultMaxChunkSize = 2000
)

// Adaptive sizing thresholds, as multiples of the configured chunk size.
const (
	shortDocumentFactor = 5
	longDocumentFactor  = 100
)

// Segmenter splits text into fragments. It holds no state between calls.
type Segmenter struct {
	chunkSize          int
	overlap            int
	minSize            int
	maxSize            int
	preserveParagraphs bool
	preserveSentences  bool
	adaptive           bool
	lookback           int
}

// Option configures the segmenter.
type Option func(*Segmenter)

// WithChunkSize sets the target fragment size in characters.
func WithChunkSize(size int) Option {
	return func(s *Segmenter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between fragments in characters.
func WithOverlap(overlap int) Option {
	return func(s *Segmenter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithMinChunkSize sets the minimum fragment size in characters.
func WithMinChunkSize(size int) Option {
	return func(s *Segmenter) {
		if size >= 0 {
			s.minSize = size
		}
	}
}

// WithMaxChunkSize sets the upper bound for adaptive sizing.
func WithMaxChunkSize(size int) Option {
	return func(s *Segmenter) {
		if size > 0 {
			s.maxSize = size
		}
	}
}

// WithPreserveParagraphs prefers cutting at blank lines.
func WithPreserveParagraphs(preserve bool) Option {
	return func(s *Segmenter) {
		s.preserveParagraphs = preserve
	}
}

// WithPreserveSentences prefers cutting after sentence-ending punctuation.
func WithPreserveSentences(preserve bool) Option {
	return func(s *Segmenter) {
		s.preserveSentences = preserve
	}
}

// WithAdaptive scales the target size with document length.
func WithAdaptive(adaptive bool) Option {
	return func(s *Segmenter) {
		s.adaptive = adaptive
	}
}

// WithLookback sets how far back from the size limit a boundary is searched for.
func WithLookback(chars int) Option {
	return func(s *Segmenter) {
		if chars > 0 {
			s.lookback = chars
		}
	}
}

// FromSettings returns the options matching the chunking settings.
func FromSettings(cfg domain.ChunkingSettings) []Option {
	return []Option{
		WithChunkSize(cfg.Size),
		WithOverlap(cfg.Overlap),
		WithMinChunkSize(cfg.MinSize),
		WithMaxChunkSize(cfg.MaxSize),
		WithPreserveParagraphs(cfg.PreserveParagraphs),
		WithPreserveSentences(cfg.PreserveSentences),
		WithAdaptive(cfg.Adaptive),
	}
}

// New creates a new segmenter with the given options.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{
		chunkSize:          DefaultChunkSize,
		overlap:            DefaultChunkOverlap,
		minSize:            DefaultMinChunkSize,
		maxSize:            DefaultMaxChunkSize,
		preserveParagraphs: true,
		preserveSentences:  true,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Ensure overlap doesn't exceed chunk size
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}
	s.minSize = clampMin(s.minSize, s.chunkSize, s.overlap)
	if s.maxSize < s.chunkSize {
		s.maxSize = s.chunkSize
	}

	return s
}

// TargetSize returns the fragment size used for a text of textLen characters.
// Without adaptive sizing this is the configured chunk size.
func (s *Segmenter) TargetSize(textLen int) int {
	if !s.adaptive {
		return s.chunkSize
	}

	switch {
	case textLen < s.chunkSize*shortDocumentFactor:
		return max(s.minSize, s.chunkSize*2/3, s.overlap+1)
	case textLen > s.chunkSize*longDocumentFactor:
		return min(s.maxSize, s.chunkSize*2)
	default:
		return s.chunkSize
	}
}

// Segment splits text into ordered fragments.
// Empty or whitespace-only text yields no fragments.
// Every fragment is at most the target size, and every fragment except a lone
// one is at least the minimum size.
func (s *Segmenter) Segment(text string) []domain.Fragment {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)
	size := s.TargetSize(n)
	minSize := clampMin(s.minSize, size, s.overlap)

	type span struct{ start, end int }
	var spans []span

	start := 0
	for start < n {
		end := start + size
		if end >= n {
			spans = append(spans, span{start, n})
			break
		}

		cut := s.findCut(runes, start, end, minSize)
		spans = append(spans, span{start, cut})

		next := cut - s.overlap
		if next <= start {
			next = cut
		}
		start = next
	}

	// A short trailing fragment is merged into the one before it. When the merged
	// fragment would exceed the target size, the previous cut moves back instead
	// so the tail reaches the minimum size.
	if k := len(spans); k > 1 && spans[k-1].end-spans[k-1].start < minSize {
		prev, last := spans[k-2], spans[k-1]
		tailStart := last.end - minSize
		prevEnd := tailStart + s.overlap
		if last.end-prev.start <= size {
			spans = spans[:k-1]
			spans[k-2].end = last.end
		} else {
			spans[k-2].end = prevEnd
			spans[k-1].start = tailStart
		}
	}

	fragments := make([]domain.Fragment, 0, len(spans))
	for i, sp := range spans {
		content := string(runes[sp.start:sp.end])
		fragments = append(fragments, domain.Fragment{
			Index:    i,
			Content:  content,
			Length:   sp.end - sp.start,
			Start:    sp.start,
			End:      sp.end,
			Metadata: Analyse(content),
		})
	}

	return fragments
}

// clampMin bounds the minimum fragment size so that 2*min <= size+overlap.
// Above that a short tail can neither be merged nor rebalanced without one of the
// two fragments breaking the size or minimum bound.
func clampMin(minSize, size, overlap int) int {
	return min(minSize, size, (size+overlap)/2)
}

// findCut returns the cut position for a fragment starting at start whose hard limit is end.
// Boundaries are only accepted inside the lookback window, and never so early that the
// fragment would fall below the minimum size or fail to advance past the overlap.
func (s *Segmenter) findCut(runes []rune, start, end, minSize int) int {
	lo := start + max(minSize, s.overlap+1)
	if s.lookback > 0 {
		lo = max(lo, end-s.lookback)
	}
	if lo >= end {
		return end
	}

	if s.preserveParagraphs {
		if cut := lastParagraphBreak(runes, lo, end); cut > 0 {
			return cut
		}
	}
	if s.preserveSentences {
		if cut := lastSentenceEnd(runes, lo, end); cut > 0 {
			return cut
		}
	}
	return end
}

// lastParagraphBreak returns the position just after the last blank line in (lo, hi], or -1.
func lastParagraphBreak(runes []rune, lo, hi int) int {
	for i := hi; i > lo; i-- {
		if i >= 2 && runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}
	return -1
}

// lastSentenceEnd returns the position just after the last sentence-ending
// punctuation in (lo, hi] that is followed by whitespace, or -1.
func lastSentenceEnd(runes []rune, lo, hi int) int {
	for i := hi; i > lo; i-- {
		switch runes[i-1] {
		case '.', '!', '?':
			if i == len(runes) || unicode.IsSpace(runes[i]) {
				return i
			}
		}
	}
	return -1
}

// Analyse derives structural metadata from fragment content.
func Analyse(content string) domain.FragmentMetadata {
	return domain.FragmentMetadata{
		WordCount:   len(strings.Fields(content)),
		CharCount:   len([]rune(content)),
		HasQuestion: strings.ContainsRune(content, '?'),
		HasNumbers:  strings.IndexFunc(content, unicode.IsDigit) >= 0,
	}
}
