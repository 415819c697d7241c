package domain

// RawContact is a contact-like value as handed out by a mailbox or a
// group dereference. Exactly one of InlineMember, *ContactRecord,
// DirectoryRecord or AttributeBag.
type RawContact interface {
	rawContact()
}

// InlineMember is a free-form address typed directly into a group,
// e.g. "Jane Doe <jane@example.com>".
type InlineMember struct {
	Value string
}

// ContactRecord is a contact or contact group stored in a mailbox folder.
type ContactRecord struct {
	// AccountID is the mailbox owner.
	AccountID string

	// ID is the item identifier within the mailbox.
	ID int

	// FolderID is the folder holding the record.
	FolderID int

	// FileAs is the display name.
	FileAs string

	// Fields holds the stored attributes ("email", "firstName", ...).
	Fields map[string]string

	// Tags holds tag names in mailbox order.
	Tags []string

	// Group marks a contact group.
	Group bool

	// Members is the encoded member list of a group.
	Members string
}

// IsGroup returns true if the record is a contact group.
func (r *ContactRecord) IsGroup() bool {
	return r != nil && r.Group
}

// Ref returns "accountId:itemId".
func (r *ContactRecord) Ref() string {
	return ItemRef(r.AccountID, r.ID)
}

// Field returns a stored attribute or the empty string.
func (r *ContactRecord) Field(name string) string {
	if r == nil || r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// DirectoryRecord is an organisation-wide directory (GAL) entry.
// Attributes are multi-valued; a single-valued attribute has one entry.
type DirectoryRecord struct {
	// Key identifies the entry in the directory.
	Key string

	// Attrs maps directory attribute names to their values.
	Attrs map[string][]string
}

// Attr returns the values of a directory attribute.
func (r DirectoryRecord) Attr(name string) []string {
	if r.Attrs == nil {
		return nil
	}
	return r.Attrs[name]
}

// AttributeBag is the fallback shape: a list of named attributes with
// nothing else known about the source.
type AttributeBag struct {
	Attrs []Attribute
}

// Attribute is a single named value in an AttributeBag.
type Attribute struct {
	Name  string
	Value string
}

func (InlineMember) rawContact()    {}
func (*ContactRecord) rawContact()  {}
func (DirectoryRecord) rawContact() {}
func (AttributeBag) rawContact()    {}

// MemberType identifies how a group member is stored.
type MemberType string

// Group member types.
const (
	// MemberContactRef references a stored contact ("accountId:itemId").
	MemberContactRef MemberType = "contact"

	// MemberDirectoryRef references a directory entry by key.
	MemberDirectoryRef MemberType = "gal"

	// MemberInline is a free-form address.
	MemberInline MemberType = "inline"
)

// IsValid returns true if the member type is recognised.
func (t MemberType) IsValid() bool {
	switch t {
	case MemberContactRef, MemberDirectoryRef, MemberInline:
		return true
	default:
		return false
	}
}

// MemberRef is one decoded entry of a group's member list.
type MemberRef struct {
	Type  MemberType `json:"type"`
	Value string     `json:"value"`
}

// DerefedMember is a MemberRef together with the object it resolved to.
// Object is nil when the member could not be dereferenced.
type DerefedMember struct {
	MemberRef
	Object RawContact
}
