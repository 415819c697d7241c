package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driven"
)

// Ensure Store implements the interfaces.
var (
	_ driven.MailboxOpener = (*Store)(nil)
	_ driven.Directory     = (*Store)(nil)
	_ driven.SettingsStore = (*Store)(nil)
)

// Store is an in-memory cluster view: provisioning, the mailboxes hosted
// on one server, the directory and user settings. Used for tests and demos.
type Store struct {
	mu        sync.RWMutex
	server    string
	accounts  map[string]domain.Account
	servers   map[string]domain.Server
	mailboxes map[string]*mailboxData
	directory map[string]domain.DirectoryRecord
	settings  map[string]map[string]string
}

type mailboxData struct {
	folders  map[int]*folderData
	contacts map[int]*domain.ContactRecord
	nextID   int
}

type folderData struct {
	id     int
	parent int
	name   string
	view   domain.FolderView
	color  string
	mount  *domain.MountTarget
	grants map[string]struct{}
}

// firstUserID is the first item ID handed out for user-created items.
const firstUserID = 256

// NewStore creates an empty store whose mailboxes live on server.
func NewStore(server string) *Store {
	return &Store{
		server:    server,
		accounts:  make(map[string]domain.Account),
		servers:   make(map[string]domain.Server),
		mailboxes: make(map[string]*mailboxData),
		directory: make(map[string]domain.DirectoryRecord),
		settings:  make(map[string]map[string]string),
	}
}

// ServerName returns the server whose mailboxes the store hosts.
func (s *Store) ServerName() string {
	return s.server
}

// AddServer registers a peer server.
func (s *Store) AddServer(server domain.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers[server.Name] = server
}

// AddAccount provisions an account. Accounts hosted on this store's server
// get a mailbox with the system folders.
func (s *Store) AddAccount(account domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = account
	if account.Server != s.server {
		return
	}
	if _, ok := s.mailboxes[account.ID]; ok {
		return
	}
	mb := &mailboxData{
		folders:  make(map[int]*folderData),
		contacts: make(map[int]*domain.ContactRecord),
		nextID:   firstUserID,
	}
	for _, f := range systemFolders() {
		mb.folders[f.id] = f
	}
	s.mailboxes[account.ID] = mb
}

func systemFolders() []*folderData {
	return []*folderData{
		{id: domain.RootFolderID, name: "USER_ROOT", grants: map[string]struct{}{}},
		{id: domain.ContactsFolderID, parent: domain.RootFolderID, name: "Contacts", view: domain.ViewContact, grants: map[string]struct{}{}},
		{id: domain.AutoContactsFolderID, parent: domain.RootFolderID, name: "Emailed Contacts", view: domain.ViewContact, grants: map[string]struct{}{}},
	}
}

// CreateFolder adds a folder under parentID and returns its ID.
func (s *Store) CreateFolder(accountID string, parentID int, name string, view domain.FolderView, color string) (int, error) {
	return s.createFolder(accountID, parentID, name, view, color, nil)
}

// CreateMountpoint adds a mountpoint under parentID and returns its ID.
func (s *Store) CreateMountpoint(
	accountID string,
	parentID int,
	name string,
	view domain.FolderView,
	color string,
	target domain.MountTarget,
) (int, error) {
	return s.createFolder(accountID, parentID, name, view, color, &target)
}

func (s *Store) createFolder(
	accountID string,
	parentID int,
	name string,
	view domain.FolderView,
	color string,
	mount *domain.MountTarget,
) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mb, ok := s.mailboxes[accountID]
	if !ok {
		return 0, fmt.Errorf("mailbox %s: %w", accountID, domain.ErrNotFound)
	}
	if _, ok := mb.folders[parentID]; !ok {
		return 0, fmt.Errorf("parent folder %d: %w", parentID, domain.ErrNotFound)
	}

	id := mb.nextID
	mb.nextID++
	mb.folders[id] = &folderData{
		id:     id,
		parent: parentID,
		name:   name,
		view:   view,
		color:  color,
		mount:  mount,
		grants: make(map[string]struct{}),
	}
	return id, nil
}

// AddContact stores a copy of rec in folderID and returns its item ID.
func (s *Store) AddContact(accountID string, folderID int, rec domain.ContactRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mb, ok := s.mailboxes[accountID]
	if !ok {
		return 0, fmt.Errorf("mailbox %s: %w", accountID, domain.ErrNotFound)
	}
	if _, ok := mb.folders[folderID]; !ok {
		return 0, fmt.Errorf("folder %d: %w", folderID, domain.ErrNotFound)
	}

	rec.AccountID = accountID
	rec.FolderID = folderID
	rec.ID = mb.nextID
	mb.nextID++
	mb.contacts[rec.ID] = copyRecord(&rec)
	return rec.ID, nil
}

// Grant lets granteeID read folderID and everything below it.
func (s *Store) Grant(accountID string, folderID int, granteeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mb, ok := s.mailboxes[accountID]
	if !ok {
		return fmt.Errorf("mailbox %s: %w", accountID, domain.ErrNotFound)
	}
	f, ok := mb.folders[folderID]
	if !ok {
		return fmt.Errorf("folder %d: %w", folderID, domain.ErrNotFound)
	}
	f.grants[granteeID] = struct{}{}
	return nil
}

// AddDirectoryEntry publishes a directory record.
func (s *Store) AddDirectoryEntry(rec domain.DirectoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.directory[rec.Key] = rec
}

// Account looks up an account by ID.
func (s *Store) Account(_ context.Context, id string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

// Server looks up a server by name.
func (s *Store) Server(_ context.Context, name string) (domain.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	srv, ok := s.servers[name]
	if !ok {
		return domain.Server{}, fmt.Errorf("server %s: %w", name, domain.ErrNotFound)
	}
	return srv, nil
}

// UserSettings returns the settings of an account.
func (s *Store) UserSettings(_ context.Context, accountID string) (domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.NewSettings(s.settings[accountID]), nil
}

// SaveUserSetting stores a single setting.
func (s *Store) SaveUserSetting(_ context.Context, accountID, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings[accountID] == nil {
		s.settings[accountID] = make(map[string]string)
	}
	s.settings[accountID][name] = value
	return nil
}

// Open returns accountID's mailbox as seen by viewerID.
func (s *Store) Open(_ context.Context, accountID, viewerID string) (driven.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.mailboxes[accountID]; !ok {
		return nil, fmt.Errorf("mailbox %s: %w", accountID, domain.ErrNotFound)
	}
	return &mailbox{store: s, accountID: accountID, viewerID: viewerID}, nil
}

// mailbox is a viewer's window onto one stored mailbox.
type mailbox struct {
	store     *Store
	accountID string
	viewerID  string
}

var _ driven.Mailbox = (*mailbox)(nil)

func (m *mailbox) AccountID() string {
	return m.accountID
}

func (m *mailbox) FolderTree(_ context.Context, folderID int) (*domain.FolderNode, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	mb := m.store.mailboxes[m.accountID]
	if _, ok := mb.folders[folderID]; !ok {
		return nil, fmt.Errorf("folder %d: %w", folderID, domain.ErrNotFound)
	}
	if !m.canRead(mb, folderID) {
		return nil, fmt.Errorf("folder %d of %s: %w", folderID, m.accountID, domain.ErrPermissionDenied)
	}
	return buildTree(mb, folderID), nil
}

func (m *mailbox) ListContacts(_ context.Context, folderID int) ([]*domain.ContactRecord, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	mb := m.store.mailboxes[m.accountID]
	if _, ok := mb.folders[folderID]; !ok {
		return nil, fmt.Errorf("folder %d: %w", folderID, domain.ErrNotFound)
	}
	if !m.canRead(mb, folderID) {
		return nil, fmt.Errorf("folder %d of %s: %w", folderID, m.accountID, domain.ErrPermissionDenied)
	}

	var out []*domain.ContactRecord
	for _, rec := range mb.contacts {
		if rec.FolderID == folderID {
			out = append(out, copyRecord(rec))
		}
	}
	sortByName(out)
	return out, nil
}

func (m *mailbox) ResolveMountpoint(_ context.Context, folderID int) (domain.MountTarget, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	f, ok := m.store.mailboxes[m.accountID].folders[folderID]
	if !ok || f.mount == nil {
		return domain.MountTarget{}, fmt.Errorf("mountpoint %d: %w", folderID, domain.ErrNotFound)
	}
	return *f.mount, nil
}

func (m *mailbox) DerefMembers(_ context.Context, refs []domain.MemberRef) ([]domain.DerefedMember, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	out := make([]domain.DerefedMember, 0, len(refs))
	for _, ref := range refs {
		out = append(out, domain.DerefedMember{MemberRef: ref, Object: m.deref(ref)})
	}
	return out, nil
}

// caller must hold store.mu
func (m *mailbox) deref(ref domain.MemberRef) domain.RawContact {
	switch ref.Type {
	case domain.MemberInline:
		return domain.InlineMember{Value: ref.Value}
	case domain.MemberDirectoryRef:
		if rec, ok := m.store.directory[ref.Value]; ok {
			return rec
		}
	case domain.MemberContactRef:
		account, id, err := domain.ParseItemRef(ref.Value)
		if err != nil {
			return nil
		}
		if account == "" {
			account = m.accountID
		}
		if mb, ok := m.store.mailboxes[account]; ok {
			if rec, ok := mb.contacts[id]; ok && canRead(mb, account, m.viewerID, rec.FolderID) {
				return copyRecord(rec)
			}
		}
	}
	return nil
}

// caller must hold store.mu
func (m *mailbox) canRead(mb *mailboxData, folderID int) bool {
	return canRead(mb, m.accountID, m.viewerID, folderID)
}

// canRead reports whether viewer may read folderID of owner's mailbox:
// owners read everything, others need a grant on the folder or an ancestor.
func canRead(mb *mailboxData, owner, viewer string, folderID int) bool {
	if viewer == owner {
		return true
	}
	for id := folderID; id != 0; {
		f, ok := mb.folders[id]
		if !ok {
			return false
		}
		if _, ok := f.grants[viewer]; ok {
			return true
		}
		id = f.parent
	}
	return false
}

func buildTree(mb *mailboxData, id int) *domain.FolderNode {
	f := mb.folders[id]
	node := &domain.FolderNode{
		ID:         f.id,
		Name:       f.name,
		View:       f.view,
		Color:      f.color,
		Mountpoint: f.mount != nil,
	}

	var children []int
	for cid, c := range mb.folders {
		if c.parent == id && cid != id {
			children = append(children, cid)
		}
	}
	sort.Ints(children)
	for _, cid := range children {
		node.Subfolders = append(node.Subfolders, buildTree(mb, cid))
	}
	return node
}

// sortByName orders records by display name, case-insensitively, then by ID.
func sortByName(records []*domain.ContactRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := strings.ToLower(records[i].FileAs), strings.ToLower(records[j].FileAs)
		if a != b {
			return a < b
		}
		return records[i].ID < records[j].ID
	})
}

func copyRecord(rec *domain.ContactRecord) *domain.ContactRecord {
	cp := *rec
	cp.Tags = append([]string(nil), rec.Tags...)
	if rec.Fields != nil {
		cp.Fields = make(map[string]string, len(rec.Fields))
		for k, v := range rec.Fields {
			cp.Fields[k] = v
		}
	}
	return &cp
}
