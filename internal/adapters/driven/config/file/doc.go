// Package file provides the TOML configuration store.
//
// Settings live in config.toml inside the brief config directory
// (~/.brief unless overridden). Nested tables are exposed as dot keys,
// so [chunking] size = 800 is read as "chunking.size".
package file
