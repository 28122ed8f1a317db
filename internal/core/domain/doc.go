// Package domain defines the core business entities for brief.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An ingested unit of knowledge with descriptive metadata
//   - Fragment: A bounded, ordered slice of a document's content
//   - EmbedOutcome: The tagged per-item result of an embedding call
//   - SearchResult: A transient, ranked projection of a stored fragment
//   - IngestSummary: The aggregate result of one ingestion run
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
