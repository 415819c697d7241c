// Package sqlite provides a SQLite-based implementation of the mailbox,
// directory and settings ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, through github.com/jmoiron/sqlx. A single database holds:
//
//   - servers and accounts: cluster provisioning
//   - folders, grants and contacts: the mailboxes hosted on this server
//   - directory_entries: the organisation-wide directory
//   - settings: per-account user settings
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory, named NNN_name.up.sql.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
