// Package watch re-ingests files in a directory tree as they change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driving"
	"github.com/custodia-labs/brief-cli/internal/logger"
)

// DefaultDebounce is how long a path must stay quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// Errors returned by the watcher.
var (
	ErrMissingIngestService = errors.New("ingest service is required")
	ErrMissingReader        = errors.New("file reader is required")
	ErrNotDirectory         = errors.New("not a directory")
)

// Reader decodes files on disk into plain text.
type Reader interface {
	ReadFile(ctx context.Context, path string) (*domain.ExtractedText, error)
	SupportsFile(path string) bool
}

// ResultFunc is called after every ingestion attempt.
type ResultFunc func(path string, summary *domain.IngestSummary, err error)

// Watcher ingests supported files under a root directory when they are
// created or written. Hidden files and directories are ignored.
type Watcher struct {
	root     string
	reader   Reader
	ingest   driving.IngestService
	docs     driving.DocumentService
	meta     domain.DocumentMetadata
	opts     domain.IngestOptions
	debounce time.Duration
	onResult ResultFunc

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a watcher for root.
func New(root string, reader Reader, ingest driving.IngestService) (*Watcher, error) {
	if ingest == nil {
		return nil, ErrMissingIngestService
	}
	if reader == nil {
		return nil, ErrMissingReader
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}

	return &Watcher{
		root:     filepath.Clean(root),
		reader:   reader,
		ingest:   ingest,
		debounce: DefaultDebounce,
		pending:  make(map[string]*time.Timer),
	}, nil
}

// SetMetadata sets the category, tags and description applied to every file.
func (w *Watcher) SetMetadata(meta domain.DocumentMetadata) {
	w.meta = meta
}

// SetOptions sets the ingestion options used for every file.
func (w *Watcher) SetOptions(opts domain.IngestOptions) {
	w.opts = opts
}

// SetDebounce overrides DefaultDebounce.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// SetReplace enables replacing earlier versions. Before a file is ingested,
// stored documents with the same name and category are deleted.
func (w *Watcher) SetReplace(docs driving.DocumentService) {
	w.docs = docs
}

// SetResultHandler registers a callback for ingestion results.
func (w *Watcher) SetResultHandler(fn ResultFunc) {
	w.onResult = fn
}

// IngestExisting ingests every supported file currently under the root.
func (w *Watcher) IngestExisting(ctx context.Context) error {
	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("walking %s: %v", path, err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path != w.root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !w.reader.SupportsFile(path) {
			return nil
		}
		w.ingestFile(ctx, path)
		return nil
	})
}

// Run watches the root until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.root); err != nil {
		return err
	}

	ready := make(chan string)
	stop := make(chan struct{})
	defer close(stop)
	defer w.stopPending()

	logger.Info("Watching %s", w.root)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if path := w.handleEvent(fsw, event); path != "" {
				w.schedule(path, ready, stop)
			}

		case path := <-ready:
			w.ingestFile(ctx, path)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)
		}
	}
}

// handleEvent returns the path to ingest for event, or "" when it is ignored.
// New directories are added to the watch list.
func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) string {
	if isHidden(relativeTo(w.root, event.Name)) {
		return ""
	}

	switch {
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil {
			return ""
		}
		if info.IsDir() {
			if event.Has(fsnotify.Create) && fsw != nil {
				if err := w.addTree(fsw, event.Name); err != nil {
					logger.Warn("watching %s: %v", event.Name, err)
				}
			}
			return ""
		}
		if !w.reader.SupportsFile(event.Name) {
			logger.Debug("skipping unsupported file %s", event.Name)
			return ""
		}
		return event.Name

	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.cancelPending(event.Name)
		logger.Debug("%s removed; stored documents are kept", event.Name)
	}
	return ""
}

// schedule ingests path once it has been quiet for the debounce period.
func (w *Watcher) schedule(path string, ready chan<- string, stop <-chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case ready <- path:
		case <-stop:
		}
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

// ingestFile reads path and ingests it, reporting the outcome.
func (w *Watcher) ingestFile(ctx context.Context, path string) {
	summary, err := w.ingestPath(ctx, path)
	if err != nil {
		logger.Warn("ingesting %s: %v", path, err)
	}
	if w.onResult != nil {
		w.onResult(path, summary, err)
	}
}

func (w *Watcher) ingestPath(ctx context.Context, path string) (*domain.IngestSummary, error) {
	extracted, err := w.reader.ReadFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading: %w", err)
	}

	meta := w.meta
	meta.Name = filepath.Base(path)
	meta.MIMEType = extracted.MIMEType
	meta.SizeBytes = extracted.SizeBytes
	if meta.Description == "" {
		meta.Description = extracted.Title
	}

	summary, err := w.ingest.Ingest(ctx, domain.IngestRequest{Text: extracted.Text, Metadata: meta}, w.opts, nil)
	if err != nil || w.docs == nil || summary == nil || summary.Outcome != domain.OutcomeCompleted {
		return summary, err
	}

	keep := ""
	if summary.Document != nil {
		keep = summary.Document.ID
	}
	if err := w.removePrevious(ctx, meta, keep); err != nil {
		return summary, err
	}
	return summary, nil
}

// removePrevious deletes stored documents that an earlier version of the file produced.
// The document with ID keep is the new version and is left alone.
func (w *Watcher) removePrevious(ctx context.Context, meta domain.DocumentMetadata, keep string) error {
	docs, err := w.docs.List(ctx)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	for i := range docs {
		if docs[i].ID == keep || docs[i].Name != meta.Name || docs[i].Category != meta.Category {
			continue
		}
		if err := w.docs.Delete(ctx, docs[i].ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("replacing %s: %w", docs[i].ID, err)
		}
		logger.Debug("replaced document %s (%s)", docs[i].ID, meta.Name)
	}
	return nil
}

// addTree watches dir and every non-hidden directory below it.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// relativeTo returns path relative to root, or path itself when that fails.
func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
