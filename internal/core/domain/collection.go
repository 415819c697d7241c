package domain

import "encoding/json"

// Collection is the flat output shape of a crawl.
type Collection struct {
	Contacts []Contact `json:"contacts"`
	Groups   []Group   `json:"groups"`
}

// AddContact appends a contact.
func (c *Collection) AddContact(contact Contact) {
	c.Contacts = append(c.Contacts, contact)
}

// AddGroup appends a group.
func (c *Collection) AddGroup(group Group) {
	c.Groups = append(c.Groups, group)
}

// Merge appends the contents of other, in order.
// Entries are not deduplicated: two entities with the same SourceRef
// both survive.
func (c *Collection) Merge(other Collection) {
	c.Contacts = append(c.Contacts, other.Contacts...)
	c.Groups = append(c.Groups, other.Groups...)
}

// Len returns the number of contacts plus groups.
func (c Collection) Len() int {
	return len(c.Contacts) + len(c.Groups)
}

// IsEmpty returns true if the collection holds nothing.
func (c Collection) IsEmpty() bool {
	return c.Len() == 0
}

// MarshalJSON encodes empty lists as [] rather than null.
func (c Collection) MarshalJSON() ([]byte, error) {
	type plain Collection
	out := plain(c)
	if out.Contacts == nil {
		out.Contacts = []Contact{}
	}
	if out.Groups == nil {
		out.Groups = []Group{}
	}
	return json.Marshal(out)
}
