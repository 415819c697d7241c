package driven

import (
	"context"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
)

// Mailbox is one account's folder and contact storage, seen through a
// viewer's permissions.
type Mailbox interface {
	// AccountID returns the mailbox owner.
	AccountID() string

	// FolderTree returns the subtree rooted at folderID.
	// Returns domain.ErrPermissionDenied if the viewer may not read it
	// and domain.ErrNotFound if the folder does not exist.
	FolderTree(ctx context.Context, folderID int) (*domain.FolderNode, error)

	// ListContacts returns the records of a folder sorted by display name.
	ListContacts(ctx context.Context, folderID int) ([]*domain.ContactRecord, error)

	// ResolveMountpoint returns what a mountpoint folder points at.
	// Returns domain.ErrNotFound if folderID is not a mountpoint.
	ResolveMountpoint(ctx context.Context, folderID int) (domain.MountTarget, error)

	// DerefMembers resolves group members in one batch. The result has
	// one entry per ref, in order; unresolvable members have a nil Object.
	DerefMembers(ctx context.Context, refs []domain.MemberRef) ([]domain.DerefedMember, error)
}

// MailboxOpener opens mailboxes hosted on this server.
type MailboxOpener interface {
	// Open returns accountID's mailbox as seen by viewerID.
	// Returns domain.ErrNotFound if the mailbox is not hosted here.
	Open(ctx context.Context, accountID, viewerID string) (Mailbox, error)
}
