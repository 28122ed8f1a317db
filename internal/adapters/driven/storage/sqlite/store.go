package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/brief-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
	"github.com/custodia-labs/brief-cli/internal/ranker"
)

// DatabaseFile is the database file name inside the data directory.
const DatabaseFile = "brief.db"

// Ensure Store implements the interface.
var _ driven.KnowledgeStore = (*Store)(nil)

// Store is a SQLite-based implementation of driven.KnowledgeStore.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.brief/data/brief.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".brief", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	s := &Store{
		db:   db,
		path: dbPath,
		now:  time.Now,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// InsertDocument stores a new document and returns its assigned ID.
func (s *Store) InsertDocument(ctx context.Context, doc *domain.Document) (string, error) {
	tagsJSON, err := json.Marshal(nonNil(doc.Tags))
	if err != nil {
		return "", fmt.Errorf("marshalling tags: %w", err)
	}

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, name, mime_type, content, description, category, tags,
			size_bytes, fragment_count, embedding_count, embeddings_generated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, doc.Name, doc.MIMEType, doc.Content, doc.Description, doc.Category, string(tagsJSON),
		doc.SizeBytes, doc.FragmentCount, doc.EmbeddingCount, doc.EmbeddingsGenerated, createdAt.UTC())
	if err != nil {
		return "", fmt.Errorf("saving document: %w", err)
	}
	return id, nil
}

// InsertFragments stores fragments for a document in one transaction.
// Fragment IDs are assigned in place.
func (s *Store) InsertFragments(ctx context.Context, documentID string, fragments []domain.Fragment) error {
	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE id = ?", documentID).Scan(&exists); err != nil {
		return fmt.Errorf("checking document: %w", err)
	}
	if exists == 0 {
		return domain.ErrNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fragments (id, document_id, position, content, length, start_offset, end_offset,
			metadata, dimensions, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, len(fragments))
	for i, f := range fragments {
		metadataJSON, err := json.Marshal(f.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling fragment metadata: %w", err)
		}

		ids[i] = uuid.New().String()
		if _, err := stmt.ExecContext(ctx, ids[i], documentID, f.Index, f.Content, f.Length,
			f.Start, f.End, string(metadataJSON), len(f.Embedding), float32SliceToBytes(f.Embedding)); err != nil {
			return fmt.Errorf("saving fragment %d: %w", f.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	for i := range fragments {
		fragments[i].ID = ids[i]
		fragments[i].DocumentID = documentID
	}
	return nil
}

// UpdateDocumentCounters updates the denormalised counters.
func (s *Store) UpdateDocumentCounters(ctx context.Context, documentID string, c domain.DocumentCounters) error {
	var lastEmbedded any
	if !c.LastEmbeddedAt.IsZero() {
		lastEmbedded = c.LastEmbeddedAt.UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET
			fragment_count = ?,
			embedding_count = ?,
			embeddings_generated = ?,
			last_embedded_at = COALESCE(?, last_embedded_at)
		WHERE id = ?
	`, c.FragmentCount, c.EmbeddingCount, c.EmbeddingsGenerated, lastEmbedded, documentID)
	if err != nil {
		return fmt.Errorf("updating counters: %w", err)
	}
	return requireAffected(res)
}

// SimilarityQuery loads the fragments whose dimensionality matches the query and
// ranks them by cosine similarity.
func (s *Store) SimilarityQuery(ctx context.Context, q domain.SimilarityQuery) ([]domain.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.document_id, f.position, f.content, f.metadata, f.embedding
		FROM fragments f
		JOIN documents d ON d.id = f.document_id
		WHERE f.dimensions = ?
			AND (? = '' OR d.category = ? COLLATE NOCASE)
		ORDER BY d.created_at, d.id, f.position
	`, len(q.Vector), q.Category, q.Category)
	if err != nil {
		return nil, fmt.Errorf("querying fragments: %w", err)
	}
	defer rows.Close()

	var (
		refs       []domain.Candidate
		candidates []ranker.Candidate
	)
	for rows.Next() {
		var (
			c            domain.Candidate
			metadataJSON string
			blob         []byte
		)
		if err := rows.Scan(&c.DocumentID, &c.FragmentIndex, &c.Content, &metadataJSON, &blob); err != nil {
			return nil, fmt.Errorf("scanning fragment: %w", err)
		}
		if err := unmarshalMetadata(metadataJSON, &c.Metadata); err != nil {
			return nil, err
		}
		candidates = append(candidates, ranker.Candidate{Ref: len(refs), Vector: bytesToFloat32Slice(blob)})
		refs = append(refs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fragments: %w", err)
	}

	scored, err := ranker.Rank(q.Vector, candidates, q.Limit, q.Threshold)
	if err != nil {
		return nil, err
	}

	result := make([]domain.Candidate, 0, len(scored))
	for _, sc := range scored {
		c := refs[sc.Ref]
		c.Similarity = sc.Similarity
		result = append(result, c)
	}
	return result, nil
}

// LookupDocuments returns descriptive metadata for the known IDs, in request order.
func (s *Store) LookupDocuments(ctx context.Context, ids []string) ([]domain.DocumentInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	//nolint:gosec // placeholders only
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, tags, description
		FROM documents WHERE id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	found := make(map[string]domain.DocumentInfo, len(ids))
	for rows.Next() {
		var (
			info     domain.DocumentInfo
			tagsJSON string
		)
		if err := rows.Scan(&info.ID, &info.Name, &info.Category, &tagsJSON, &info.Description); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if err := unmarshalTags(tagsJSON, &info.Tags); err != nil {
			return nil, err
		}
		found[info.ID] = info
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	infos := make([]domain.DocumentInfo, 0, len(found))
	for _, id := range ids {
		if info, ok := found[id]; ok {
			infos = append(infos, info)
		}
	}
	return infos, nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// GetFragments retrieves all fragments for a document ordered by index.
func (s *Store) GetFragments(ctx context.Context, documentID string) ([]domain.Fragment, error) {
	if _, err := s.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, position, content, length, start_offset, end_offset, metadata, embedding
		FROM fragments WHERE document_id = ?
		ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying fragments: %w", err)
	}
	defer rows.Close()

	var fragments []domain.Fragment //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			f            domain.Fragment
			metadataJSON string
			blob         []byte
		)
		if err := rows.Scan(&f.ID, &f.DocumentID, &f.Index, &f.Content, &f.Length,
			&f.Start, &f.End, &metadataJSON, &blob); err != nil {
			return nil, fmt.Errorf("scanning fragment: %w", err)
		}
		if err := unmarshalMetadata(metadataJSON, &f.Metadata); err != nil {
			return nil, err
		}
		f.Embedding = bytesToFloat32Slice(blob)
		fragments = append(fragments, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fragments: %w", err)
	}
	return fragments, nil
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document. Fragments go with it through the foreign key cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return requireAffected(res)
}

// ==================== Helper Functions ====================

const documentColumns = `id, name, mime_type, content, description, category, tags, size_bytes,
	fragment_count, embedding_count, embeddings_generated, last_embedded_at, created_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		doc          domain.Document
		tagsJSON     string
		lastEmbedded sql.NullTime
	)

	if err := row.Scan(&doc.ID, &doc.Name, &doc.MIMEType, &doc.Content, &doc.Description,
		&doc.Category, &tagsJSON, &doc.SizeBytes, &doc.FragmentCount, &doc.EmbeddingCount,
		&doc.EmbeddingsGenerated, &lastEmbedded, &doc.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	if lastEmbedded.Valid {
		at := lastEmbedded.Time
		doc.LastEmbeddedAt = &at
	}
	if err := unmarshalTags(tagsJSON, &doc.Tags); err != nil {
		return nil, err
	}
	return &doc, nil
}

func unmarshalTags(data string, tags *[]string) error {
	if data == "" || data == "[]" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), tags); err != nil {
		return fmt.Errorf("unmarshaling tags: %w", err)
	}
	return nil
}

func unmarshalMetadata(data string, md *domain.FragmentMetadata) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), md); err != nil {
		return fmt.Errorf("unmarshaling fragment metadata: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
