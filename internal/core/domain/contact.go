package domain

// SourceType identifies where a normalised entity came from.
type SourceType string

// Source types.
const (
	// SourcePrimaryStore is a contact stored directly in a crawled folder.
	SourcePrimaryStore SourceType = "primary-store"

	// SourceGroupMember is a contact reached through a group's member list.
	SourceGroupMember SourceType = "group-member"

	// SourceDirectory is a directory entry reached through a group.
	SourceDirectory SourceType = "directory"
)

// Contact is a normalised address-book entry.
type Contact struct {
	// Email is the validated address. Never empty.
	Email string `json:"email"`

	// Name is the display name. Empty for group members.
	Name string `json:"name,omitempty"`

	// ID is "accountId:itemId". Empty for group members.
	ID string `json:"id,omitempty"`

	// Properties holds every configured field, empty when absent.
	Properties map[string]string `json:"properties"`

	// Tags holds tag names. Empty for group members.
	Tags []string `json:"tags,omitempty"`

	// SourceType is the origin kind.
	SourceType SourceType `json:"sourceType"`

	// SourceRef identifies the origin; used for sync diffing.
	SourceRef string `json:"sourceRef"`

	// GroupMember marks a contact listed inside a group.
	GroupMember bool `json:"groupMember,omitempty"`
}

// Group is a normalised contact group.
type Group struct {
	// ID is "accountId:itemId".
	ID string `json:"id"`

	// Name is the group display name.
	Name string `json:"name"`

	// Tags holds tag names.
	Tags []string `json:"tags,omitempty"`

	// Members are the members that normalised successfully.
	// Each carries the group's SourceRef.
	Members []Contact `json:"members"`

	// FailedDereferences lists members that resolved to nothing.
	FailedDereferences []MemberRef `json:"failedDereferences,omitempty"`
}

// SourceRef returns the sync key of the group, shared by its members.
func (g Group) SourceRef() string {
	return GroupRef(g.ID)
}

// ContactRef returns the sync key of a stored contact.
func ContactRef(id string) string {
	return "contact:" + id
}

// GroupRef returns the sync key of a group.
func GroupRef(id string) string {
	return "group:" + id
}
