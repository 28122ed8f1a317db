// Package driving defines the interfaces that the CLI, the MCP server, the
// folder watcher and the TUI use to ingest documents and query them.
// These are the "driving" ports in hexagonal architecture terminology.
//
// Implementations live in internal/core/services.
package driving
