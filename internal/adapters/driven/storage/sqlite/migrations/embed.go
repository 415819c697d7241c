// Package migrations embeds the schema migrations of the SQLite store.
package migrations

import "embed"

// FS holds the NNN_name.up.sql files.
//
//go:embed *.sql
var FS embed.FS
