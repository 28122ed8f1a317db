// Package postgres provides a KnowledgeStore on PostgreSQL with the pgvector extension.
//
// Similarity is computed in the database as 1 - cosine distance (the <=> operator),
// so only the ranked rows travel back to the client.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/brief-cli/internal/adapters/driven/storage/postgres/migrations"
	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
	"github.com/custodia-labs/brief-cli/internal/logger"
)

// foreignKeyViolation is the SQLSTATE for a missing referenced row.
const foreignKeyViolation = "23503"

// Ensure Store implements the interface.
var _ driven.KnowledgeStore = (*Store)(nil)

// Config holds connection pool settings.
type Config struct {
	// DSN is a lib/pq connection string or URL.
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// PingTimeout bounds the connectivity check on open (default: 5s).
	PingTimeout time.Duration
}

// Store is a PostgreSQL implementation of driven.KnowledgeStore.
type Store struct {
	db *sql.DB
}

// NewStore opens the database, verifies connectivity and applies pending migrations.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: postgres DSN is empty", domain.ErrStoreUnavailable)
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.PingTimeout == 0 {
		cfg.PingTimeout = 5 * time.Second
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pinging postgres: %v", domain.ErrStoreUnavailable, err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		err = s.inTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, string(content))
			return err
		})
		if err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		logger.Debug("Applied postgres migration %s", name)
	}
	return nil
}

// InsertDocument stores a new document and returns the database-generated ID.
func (s *Store) InsertDocument(ctx context.Context, doc *domain.Document) (string, error) {
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (name, mime_type, content, description, category, tags,
			size_bytes, fragment_count, embedding_count, embeddings_generated, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, doc.Name, doc.MIMEType, doc.Content, doc.Description, doc.Category, pq.Array(nonNil(doc.Tags)),
		doc.SizeBytes, doc.FragmentCount, doc.EmbeddingCount, doc.EmbeddingsGenerated, createdAt).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("saving document: %w", err)
	}
	return id, nil
}

// InsertFragments stores fragments for a document in one transaction.
// Every fragment must carry an embedding. Fragment IDs are assigned in place.
func (s *Store) InsertFragments(ctx context.Context, documentID string, fragments []domain.Fragment) error {
	if !validID(documentID) {
		return domain.ErrNotFound
	}
	for _, f := range fragments {
		if len(f.Embedding) == 0 {
			return fmt.Errorf("%w: fragment %d has no embedding", domain.ErrInvalidInput, f.Index)
		}
	}

	ids := make([]string, len(fragments))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO fragments (document_id, position, content, length, start_offset, end_offset,
				metadata, dimensions, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for i, f := range fragments {
			metadataJSON, err := json.Marshal(f.Metadata)
			if err != nil {
				return fmt.Errorf("marshalling fragment metadata: %w", err)
			}
			if err := stmt.QueryRowContext(ctx, documentID, f.Index, f.Content, f.Length, f.Start, f.End,
				string(metadataJSON), len(f.Embedding), pgvector.NewVector(f.Embedding)).Scan(&ids[i]); err != nil {
				return fmt.Errorf("saving fragment %d: %w", f.Index, err)
			}
		}
		return nil
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return domain.ErrNotFound
		}
		return err
	}

	for i := range fragments {
		fragments[i].ID = ids[i]
		fragments[i].DocumentID = documentID
	}
	return nil
}

// UpdateDocumentCounters updates the denormalised counters.
func (s *Store) UpdateDocumentCounters(ctx context.Context, documentID string, c domain.DocumentCounters) error {
	if !validID(documentID) {
		return domain.ErrNotFound
	}

	var lastEmbedded sql.NullTime
	if !c.LastEmbeddedAt.IsZero() {
		lastEmbedded = sql.NullTime{Time: c.LastEmbeddedAt, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET
			fragment_count = $1,
			embedding_count = $2,
			embeddings_generated = $3,
			last_embedded_at = COALESCE($4, last_embedded_at)
		WHERE id = $5
	`, c.FragmentCount, c.EmbeddingCount, c.EmbeddingsGenerated, lastEmbedded, documentID)
	if err != nil {
		return fmt.Errorf("updating counters: %w", err)
	}
	return requireAffected(res)
}

// SimilarityQuery ranks fragments of the query's dimensionality in the database.
// Ties are broken by document age and fragment position.
func (s *Store) SimilarityQuery(ctx context.Context, q domain.SimilarityQuery) ([]domain.Candidate, error) {
	var limit sql.NullInt64
	if q.Limit > 0 {
		limit = sql.NullInt64{Int64: int64(q.Limit), Valid: true}
	}

	rows, err := s.db.QueryContext(ctx, `
		WITH scoped AS MATERIALIZED (
			SELECT f.document_id, f.position, f.content, f.metadata, f.embedding, d.created_at
			FROM fragments f
			JOIN documents d ON d.id = f.document_id
			WHERE f.dimensions = $2
				AND ($3::text = '' OR lower(d.category) = lower($3::text))
		), ranked AS (
			SELECT document_id, position, content, metadata, created_at,
				1 - (embedding <=> $1::vector) AS similarity
			FROM scoped
		)
		SELECT document_id, position, content, metadata, similarity
		FROM ranked
		WHERE similarity >= $4
		ORDER BY similarity DESC, created_at, document_id, position
		LIMIT $5
	`, pgvector.NewVector(q.Vector), len(q.Vector), q.Category, q.Threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var result []domain.Candidate
	for rows.Next() {
		var (
			c            domain.Candidate
			metadataJSON []byte
			similarity   sql.NullFloat64
		)
		if err := rows.Scan(&c.DocumentID, &c.FragmentIndex, &c.Content, &metadataJSON, &similarity); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		if err := unmarshalMetadata(metadataJSON, &c.Metadata); err != nil {
			return nil, err
		}
		c.Similarity = similarity.Float64
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidates: %w", err)
	}
	return result, nil
}

// LookupDocuments returns descriptive metadata for the known IDs, in request order.
func (s *Store) LookupDocuments(ctx context.Context, ids []string) ([]domain.DocumentInfo, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, tags, description
		FROM documents WHERE id = ANY($1::uuid[])
	`, pq.Array(valid))
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	found := make(map[string]domain.DocumentInfo, len(valid))
	for rows.Next() {
		var info domain.DocumentInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.Category, pq.Array(&info.Tags), &info.Description); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		found[info.ID] = info
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	infos := make([]domain.DocumentInfo, 0, len(found))
	for _, id := range valid {
		if info, ok := found[id]; ok {
			infos = append(infos, info)
		}
	}
	return infos, nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}

	doc, err := scanDocument(s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE id = $1
	`, id))
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
		FROM fragments WHERE document_id = $1
		ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying fragments: %w", err)
	}
	defer rows.Close()

	var fragments []domain.Fragment
	for rows.Next() {
		var (
			f            domain.Fragment
			metadataJSON []byte
			embedding    pgvector.Vector
		)
		if err := rows.Scan(&f.ID, &f.DocumentID, &f.Index, &f.Content, &f.Length,
			&f.Start, &f.End, &metadataJSON, &embedding); err != nil {
			return nil, fmt.Errorf("scanning fragment: %w", err)
		}
		if err := unmarshalMetadata(metadataJSON, &f.Metadata); err != nil {
			return nil, err
		}
		f.Embedding = embedding.Slice()
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
		SELECT `+documentColumns+` FROM documents
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
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

// DeleteDocument removes a document and, through the cascade, its fragments.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return requireAffected(res)
}

// inTx runs fn in a transaction, rolling back when it fails.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const documentColumns = `id, name, mime_type, content, description, category, tags, size_bytes,
	fragment_count, embedding_count, embeddings_generated, last_embedded_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		doc          domain.Document
		lastEmbedded sql.NullTime
	)
	if err := row.Scan(&doc.ID, &doc.Name, &doc.MIMEType, &doc.Content, &doc.Description,
		&doc.Category, pq.Array(&doc.Tags), &doc.SizeBytes, &doc.FragmentCount, &doc.EmbeddingCount,
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
	if len(doc.Tags) == 0 {
		doc.Tags = nil
	}
	return &doc, nil
}

func unmarshalMetadata(data []byte, md *domain.FragmentMetadata) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, md); err != nil {
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

// validID reports whether id can name a row. Anything else cannot exist.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
