package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/addrcrawl/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/addrcrawl/internal/core/domain"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driven"
)

// Ensure Store implements the interfaces.
var (
	_ driven.MailboxOpener = (*Store)(nil)
	_ driven.Directory     = (*Store)(nil)
	_ driven.SettingsStore = (*Store)(nil)
)

// Store is a SQLite-backed cluster view for one server.
type Store struct {
	db     *sqlx.DB
	path   string
	server string
}

// NewStore opens (or creates) the database at dbPath for the mailboxes
// hosted on server.
func NewStore(dbPath, server string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// pragmas go in the DSN so every pooled connection gets them
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath, server: server}
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

// migrate applies every NNN_name.up.sql newer than the recorded version.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations"); err != nil {
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
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Beginx()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Provisioning ====================

type serverRow struct {
	Name    string `db:"name"`
	Host    string `db:"host"`
	Mode    string `db:"mode"`
	Port    int    `db:"port"`
	SSLPort int    `db:"ssl_port"`
}

type accountRow struct {
	ID     string `db:"id"`
	Name   string `db:"name"`
	Server string `db:"server"`
}

// SaveServer creates or updates a peer server.
func (s *Store) SaveServer(ctx context.Context, server domain.Server) error {
	mode := server.Mode
	if mode == "" {
		mode = domain.ServerModeHTTPS
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO servers (name, host, mode, port, ssl_port)
		VALUES (:name, :host, :mode, :port, :ssl_port)
		ON CONFLICT(name) DO UPDATE SET
			host = excluded.host, mode = excluded.mode,
			port = excluded.port, ssl_port = excluded.ssl_port
	`, serverRow{Name: server.Name, Host: server.Host, Mode: string(mode), Port: server.Port, SSLPort: server.SSLPort})
	if err != nil {
		return fmt.Errorf("save server %s: %w", server.Name, err)
	}
	return nil
}

// SaveAccount provisions an account. Accounts hosted on this store's server
// get the system folders.
func (s *Store) SaveAccount(ctx context.Context, account domain.Account) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO accounts (id, name, server) VALUES (:id, :name, :server)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, server = excluded.server
	`, accountRow{ID: account.ID, Name: account.Name, Server: account.Server})
	if err != nil {
		return fmt.Errorf("save account %s: %w", account.ID, err)
	}

	if account.Server == s.server {
		system := []folderRow{
			{AccountID: account.ID, ID: domain.RootFolderID, Name: "USER_ROOT"},
			{AccountID: account.ID, ID: domain.ContactsFolderID, ParentID: domain.RootFolderID,
				Name: "Contacts", View: string(domain.ViewContact)},
			{AccountID: account.ID, ID: domain.AutoContactsFolderID, ParentID: domain.RootFolderID,
				Name: "Emailed Contacts", View: string(domain.ViewContact)},
		}
		for _, f := range system {
			_, err := tx.NamedExecContext(ctx, `
				INSERT OR IGNORE INTO folders (account_id, id, parent_id, name, view, color)
				VALUES (:account_id, :id, :parent_id, :name, :view, :color)
			`, f)
			if err != nil {
				return fmt.Errorf("create system folders for %s: %w", account.ID, err)
			}
		}
	}

	return tx.Commit()
}

// CreateFolder adds a folder under parentID and returns its ID.
func (s *Store) CreateFolder(
	ctx context.Context,
	accountID string,
	parentID int,
	name string,
	view domain.FolderView,
	color string,
) (int, error) {
	return s.createFolder(ctx, folderRow{
		AccountID: accountID, ParentID: parentID, Name: name, View: string(view), Color: color,
	})
}

// CreateMountpoint adds a mountpoint under parentID and returns its ID.
func (s *Store) CreateMountpoint(
	ctx context.Context,
	accountID string,
	parentID int,
	name string,
	view domain.FolderView,
	color string,
	target domain.MountTarget,
) (int, error) {
	return s.createFolder(ctx, folderRow{
		AccountID:   accountID,
		ParentID:    parentID,
		Name:        name,
		View:        string(view),
		Color:       color,
		MountOwner:  sql.NullString{String: target.OwnerID, Valid: true},
		MountFolder: sql.NullInt64{Int64: int64(target.FolderID), Valid: true},
	})
}

func (s *Store) createFolder(ctx context.Context, f folderRow) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.GetContext(ctx, &exists,
		"SELECT COUNT(*) FROM folders WHERE account_id = ? AND id = ?", f.AccountID, f.ParentID)
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, fmt.Errorf("parent folder %d of %s: %w", f.ParentID, f.AccountID, domain.ErrNotFound)
	}

	id, err := nextItemID(ctx, tx, f.AccountID)
	if err != nil {
		return 0, err
	}
	f.ID = id

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO folders (account_id, id, parent_id, name, view, color, mount_owner, mount_folder)
		VALUES (:account_id, :id, :parent_id, :name, :view, :color, :mount_owner, :mount_folder)
	`, f)
	if err != nil {
		return 0, fmt.Errorf("create folder %q: %w", f.Name, err)
	}
	return id, tx.Commit()
}

// AddContact stores rec in folderID and returns its item ID.
func (s *Store) AddContact(ctx context.Context, accountID string, folderID int, rec domain.ContactRecord) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.GetContext(ctx, &exists,
		"SELECT COUNT(*) FROM folders WHERE account_id = ? AND id = ?", accountID, folderID)
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, fmt.Errorf("folder %d of %s: %w", folderID, accountID, domain.ErrNotFound)
	}

	id, err := nextItemID(ctx, tx, accountID)
	if err != nil {
		return 0, err
	}

	rec.AccountID = accountID
	rec.FolderID = folderID
	rec.ID = id
	row, err := toContactRow(&rec)
	if err != nil {
		return 0, err
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO contacts (account_id, id, folder_id, file_as, fields, tags, is_group, members)
		VALUES (:account_id, :id, :folder_id, :file_as, :fields, :tags, :is_group, :members)
	`, row)
	if err != nil {
		return 0, fmt.Errorf("add contact %q: %w", rec.FileAs, err)
	}
	return id, tx.Commit()
}

// Grant lets granteeID read folderID and everything below it.
func (s *Store) Grant(ctx context.Context, accountID string, folderID int, granteeID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO grants (account_id, folder_id, grantee) VALUES (?, ?, ?)",
		accountID, folderID, granteeID)
	if err != nil {
		return fmt.Errorf("grant folder %d of %s: %w", folderID, accountID, err)
	}
	return nil
}

// AddDirectoryEntry publishes or replaces a directory record.
func (s *Store) AddDirectoryEntry(ctx context.Context, rec domain.DirectoryRecord) error {
	attrs, err := json.Marshal(rec.Attrs)
	if err != nil {
		return fmt.Errorf("encode directory entry %s: %w", rec.Key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO directory_entries (key, attrs) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET attrs = excluded.attrs
	`, rec.Key, string(attrs))
	if err != nil {
		return fmt.Errorf("save directory entry %s: %w", rec.Key, err)
	}
	return nil
}

func nextItemID(ctx context.Context, tx *sqlx.Tx, accountID string) (int, error) {
	var id int
	err := tx.GetContext(ctx, &id, "SELECT next_item FROM accounts WHERE id = ?", accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE accounts SET next_item = next_item + 1 WHERE id = ?", accountID); err != nil {
		return 0, err
	}
	return id, nil
}

// ==================== Directory ====================

// Account looks up an account by ID.
func (s *Store) Account(ctx context.Context, id string) (domain.Account, error) {
	var row accountRow
	err := s.db.GetContext(ctx, &row, "SELECT id, name, server FROM accounts WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("get account %s: %w", id, err)
	}
	return domain.Account{ID: row.ID, Name: row.Name, Server: row.Server}, nil
}

// Server looks up a server by name.
func (s *Store) Server(ctx context.Context, name string) (domain.Server, error) {
	var row serverRow
	err := s.db.GetContext(ctx, &row,
		"SELECT name, host, mode, port, ssl_port FROM servers WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Server{}, fmt.Errorf("server %s: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Server{}, fmt.Errorf("get server %s: %w", name, err)
	}
	return domain.Server{
		Name:    row.Name,
		Host:    row.Host,
		Mode:    domain.ServerMode(row.Mode),
		Port:    row.Port,
		SSLPort: row.SSLPort,
	}, nil
}

// ==================== Settings ====================

// UserSettings returns the settings of an account.
func (s *Store) UserSettings(ctx context.Context, accountID string) (domain.Settings, error) {
	var rows []struct {
		Name  string `db:"name"`
		Value string `db:"value"`
	}
	err := s.db.SelectContext(ctx, &rows, "SELECT name, value FROM settings WHERE account_id = ?", accountID)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings of %s: %w", accountID, err)
	}

	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[r.Name] = r.Value
	}
	return domain.NewSettings(values), nil
}

// SaveUserSetting stores a single setting.
func (s *Store) SaveUserSetting(ctx context.Context, accountID, name, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (account_id, name, value) VALUES (?, ?, ?)
		ON CONFLICT(account_id, name) DO UPDATE SET value = excluded.value
	`, accountID, name, value)
	if err != nil {
		return fmt.Errorf("save setting %s of %s: %w", name, accountID, err)
	}
	return nil
}
