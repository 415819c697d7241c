package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Well-known folder identifiers present in every mailbox.
const (
	// RootFolderID is the hidden account root.
	RootFolderID = 1

	// ContactsFolderID is the default address book.
	ContactsFolderID = 7

	// AutoContactsFolderID holds automatically collected addresses.
	// It is never crawled.
	AutoContactsFolderID = 13
)

// FolderView is the declared content type of a folder.
type FolderView string

// Known folder views.
const (
	// ViewUnknown is used by folders without a declared type.
	// Whole-account mountpoints carry this view.
	ViewUnknown FolderView = ""

	// ViewContact marks an address-book folder.
	ViewContact FolderView = "contact"

	// ViewMessage marks a mail folder.
	ViewMessage FolderView = "message"

	// ViewAppointment marks a calendar folder.
	ViewAppointment FolderView = "appointment"
)

// IsValid returns true if the view is recognised.
func (v FolderView) IsValid() bool {
	switch v {
	case ViewUnknown, ViewContact, ViewMessage, ViewAppointment:
		return true
	default:
		return false
	}
}

// FolderNode is one folder of a mailbox as seen by a viewer.
// Subfolders holds only the children the viewer may see.
type FolderNode struct {
	// ID is the folder item identifier, unique within its mailbox.
	ID int

	// Name is the display name.
	Name string

	// View is the declared content type.
	View FolderView

	// Color is the folder colour as stored by the mailbox (may be empty).
	Color string

	// Mountpoint marks a link into another account's folder.
	Mountpoint bool

	// Subfolders are the direct children in mailbox order.
	Subfolders []*FolderNode
}

// IsRoot returns true if the node is an account root.
func (n *FolderNode) IsRoot() bool {
	return n != nil && n.ID == RootFolderID
}

// IsContactFolder returns true if the node is a plain address book.
func (n *FolderNode) IsContactFolder() bool {
	return n != nil && !n.Mountpoint && n.View == ViewContact
}

// MountTarget is what a mountpoint points at.
type MountTarget struct {
	// OwnerID is the account that owns the target folder.
	OwnerID string

	// FolderID is the target folder in the owner's mailbox.
	FolderID int
}

// ItemRef formats the mailbox-wide identifier "accountId:itemId".
func ItemRef(accountID string, itemID int) string {
	return accountID + ":" + strconv.Itoa(itemID)
}

// ParseItemRef splits "accountId:itemId".
// A bare item ID is accepted and returns an empty account.
func ParseItemRef(ref string) (string, int, error) {
	account, item := "", ref
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		account, item = ref[:i], ref[i+1:]
	}
	id, err := strconv.Atoi(item)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("%w: item reference %q", ErrInvalidInput, ref)
	}
	return account, id, nil
}
