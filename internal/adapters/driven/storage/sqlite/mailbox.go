package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driven"
)

type folderRow struct {
	AccountID   string         `db:"account_id"`
	ID          int            `db:"id"`
	ParentID    int            `db:"parent_id"`
	Name        string         `db:"name"`
	View        string         `db:"view"`
	Color       string         `db:"color"`
	MountOwner  sql.NullString `db:"mount_owner"`
	MountFolder sql.NullInt64  `db:"mount_folder"`
}

type contactRow struct {
	AccountID string `db:"account_id"`
	ID        int    `db:"id"`
	FolderID  int    `db:"folder_id"`
	FileAs    string `db:"file_as"`
	Fields    string `db:"fields"`
	Tags      string `db:"tags"`
	IsGroup   bool   `db:"is_group"`
	Members   string `db:"members"`
}

const contactColumns = "account_id, id, folder_id, file_as, fields, tags, is_group, members"

func toContactRow(rec *domain.ContactRecord) (contactRow, error) {
	fields := rec.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return contactRow{}, fmt.Errorf("encode fields: %w", err)
	}
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return contactRow{}, fmt.Errorf("encode tags: %w", err)
	}
	return contactRow{
		AccountID: rec.AccountID,
		ID:        rec.ID,
		FolderID:  rec.FolderID,
		FileAs:    rec.FileAs,
		Fields:    string(fieldsJSON),
		Tags:      string(tagsJSON),
		IsGroup:   rec.Group,
		Members:   rec.Members,
	}, nil
}

func (r contactRow) record() (*domain.ContactRecord, error) {
	rec := &domain.ContactRecord{
		AccountID: r.AccountID,
		ID:        r.ID,
		FolderID:  r.FolderID,
		FileAs:    r.FileAs,
		Group:     r.IsGroup,
		Members:   r.Members,
	}
	if err := json.Unmarshal([]byte(r.Fields), &rec.Fields); err != nil {
		return nil, fmt.Errorf("decode fields of %s: %w", rec.Ref(), err)
	}
	if err := json.Unmarshal([]byte(r.Tags), &rec.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of %s: %w", rec.Ref(), err)
	}
	if len(rec.Tags) == 0 {
		rec.Tags = nil
	}
	return rec, nil
}

// Open returns accountID's mailbox as seen by viewerID. Only mailboxes
// hosted on this store's server can be opened.
func (s *Store) Open(ctx context.Context, accountID, viewerID string) (driven.Mailbox, error) {
	account, err := s.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Server != s.server {
		return nil, fmt.Errorf("mailbox %s is not hosted on %s: %w", accountID, s.server, domain.ErrNotFound)
	}
	return &mailbox{store: s, accountID: accountID, viewerID: viewerID}, nil
}

type mailbox struct {
	store     *Store
	accountID string
	viewerID  string
}

var _ driven.Mailbox = (*mailbox)(nil)

func (m *mailbox) AccountID() string {
	return m.accountID
}

// folders loads every folder of the mailbox keyed by ID.
func (m *mailbox) folders(ctx context.Context) (map[int]folderRow, error) {
	var rows []folderRow
	err := m.store.db.SelectContext(ctx, &rows, `
		SELECT account_id, id, parent_id, name, view, color, mount_owner, mount_folder
		FROM folders WHERE account_id = ? ORDER BY id
	`, m.accountID)
	if err != nil {
		return nil, fmt.Errorf("load folders of %s: %w", m.accountID, err)
	}
	out := make(map[int]folderRow, len(rows))
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}

// authorize checks folderID exists and the viewer may read it.
func (m *mailbox) authorize(ctx context.Context, folders map[int]folderRow, folderID int) error {
	if _, ok := folders[folderID]; !ok {
		return fmt.Errorf("folder %d: %w", folderID, domain.ErrNotFound)
	}
	if m.viewerID == m.accountID {
		return nil
	}

	var granted []int
	err := m.store.db.SelectContext(ctx, &granted,
		"SELECT folder_id FROM grants WHERE account_id = ? AND grantee = ?", m.accountID, m.viewerID)
	if err != nil {
		return fmt.Errorf("load grants of %s: %w", m.accountID, err)
	}
	grants := make(map[int]bool, len(granted))
	for _, id := range granted {
		grants[id] = true
	}

	for id := folderID; id != 0; {
		if grants[id] {
			return nil
		}
		f, ok := folders[id]
		if !ok {
			break
		}
		id = f.ParentID
	}
	return fmt.Errorf("folder %d of %s: %w", folderID, m.accountID, domain.ErrPermissionDenied)
}

// canReach reports whether the viewer may read folderID of account's
// mailbox, which need not be this one.
func (m *mailbox) canReach(ctx context.Context, account string, folderID int) (bool, error) {
	if account == m.viewerID {
		return true, nil
	}
	owner := &mailbox{store: m.store, accountID: account, viewerID: m.viewerID}
	folders, err := owner.folders(ctx)
	if err != nil {
		return false, err
	}
	err = owner.authorize(ctx, folders, folderID)
	if errors.Is(err, domain.ErrPermissionDenied) || errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m *mailbox) FolderTree(ctx context.Context, folderID int) (*domain.FolderNode, error) {
	folders, err := m.folders(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.authorize(ctx, folders, folderID); err != nil {
		return nil, err
	}

	children := make(map[int][]int)
	for id, f := range folders {
		if id != f.ParentID {
			children[f.ParentID] = append(children[f.ParentID], id)
		}
	}
	return buildTree(folders, children, folderID), nil
}

func buildTree(folders map[int]folderRow, children map[int][]int, id int) *domain.FolderNode {
	f := folders[id]
	node := &domain.FolderNode{
		ID:         f.ID,
		Name:       f.Name,
		View:       domain.FolderView(f.View),
		Color:      f.Color,
		Mountpoint: f.MountOwner.Valid,
	}
	kids := children[id]
	sort.Ints(kids)
	for _, cid := range kids {
		node.Subfolders = append(node.Subfolders, buildTree(folders, children, cid))
	}
	return node
}

func (m *mailbox) ListContacts(ctx context.Context, folderID int) ([]*domain.ContactRecord, error) {
	folders, err := m.folders(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.authorize(ctx, folders, folderID); err != nil {
		return nil, err
	}

	var rows []contactRow
	err = m.store.db.SelectContext(ctx, &rows, `
		SELECT `+contactColumns+` FROM contacts
		WHERE account_id = ? AND folder_id = ?
		ORDER BY file_as COLLATE NOCASE, id
	`, m.accountID, folderID)
	if err != nil {
		return nil, fmt.Errorf("list contacts of folder %d: %w", folderID, err)
	}

	out := make([]*domain.ContactRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *mailbox) ResolveMountpoint(ctx context.Context, folderID int) (domain.MountTarget, error) {
	var row folderRow
	err := m.store.db.GetContext(ctx, &row, `
		SELECT account_id, id, parent_id, name, view, color, mount_owner, mount_folder
		FROM folders WHERE account_id = ? AND id = ?
	`, m.accountID, folderID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.MountTarget{}, fmt.Errorf("get folder %d: %w", folderID, err)
	}
	if errors.Is(err, sql.ErrNoRows) || !row.MountOwner.Valid {
		return domain.MountTarget{}, fmt.Errorf("mountpoint %d: %w", folderID, domain.ErrNotFound)
	}
	return domain.MountTarget{OwnerID: row.MountOwner.String, FolderID: int(row.MountFolder.Int64)}, nil
}

func (m *mailbox) DerefMembers(ctx context.Context, refs []domain.MemberRef) ([]domain.DerefedMember, error) {
	out := make([]domain.DerefedMember, 0, len(refs))
	for _, ref := range refs {
		obj, err := m.deref(ctx, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.DerefedMember{MemberRef: ref, Object: obj})
	}
	return out, nil
}

// deref resolves one member. Unresolvable members yield a nil object;
// only storage failures are errors.
func (m *mailbox) deref(ctx context.Context, ref domain.MemberRef) (domain.RawContact, error) {
	switch ref.Type {
	case domain.MemberInline:
		return domain.InlineMember{Value: ref.Value}, nil

	case domain.MemberDirectoryRef:
		var attrs string
		err := m.store.db.GetContext(ctx, &attrs, "SELECT attrs FROM directory_entries WHERE key = ?", ref.Value)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("get directory entry %s: %w", ref.Value, err)
		}
		rec := domain.DirectoryRecord{Key: ref.Value}
		if err := json.Unmarshal([]byte(attrs), &rec.Attrs); err != nil {
			return nil, fmt.Errorf("decode directory entry %s: %w", ref.Value, err)
		}
		return rec, nil

	case domain.MemberContactRef:
		account, id, err := domain.ParseItemRef(ref.Value)
		if err != nil {
			return nil, nil
		}
		if account == "" {
			account = m.accountID
		}
		var row contactRow
		err = m.store.db.GetContext(ctx, &row,
			"SELECT "+contactColumns+" FROM contacts WHERE account_id = ? AND id = ?", account, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("get contact %s: %w", ref.Value, err)
		}
		readable, err := m.canReach(ctx, account, row.FolderID)
		if err != nil {
			return nil, err
		}
		if !readable {
			return nil, nil
		}
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, nil
}
