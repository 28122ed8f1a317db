// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The ingestion path is segment, store document, embed, store fragments.
// The query path is embed query, similarity query, metadata lookup, re-rank.
package services
