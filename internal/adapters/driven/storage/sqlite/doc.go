// Package sqlite provides the local KnowledgeStore backed by SQLite.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Vectors
//
// Embeddings are stored as little-endian float32 blobs next to their dimension count.
// Similarity queries load the candidate vectors and score them in process, so
// the store suits collections of up to a few hundred thousand fragments.
//
// # Data Location
//
// By default, the database is stored at ~/.brief/data/brief.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
