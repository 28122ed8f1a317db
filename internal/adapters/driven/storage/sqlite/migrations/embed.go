// Package migrations holds the SQLite schema for documents and fragments.
// Files are applied in name order; only *.up.sql files are run by the store.
package migrations

import "embed"

// FS holds the numbered up/down schema files.
//
//go:embed *.sql
var FS embed.FS
