package domain

import "encoding/json"

// TreeNode is one folder of the tree-shaped output of a crawl.
// Nodes are built bottom-up and not modified once returned.
type TreeNode struct {
	// Name is the display name. For mountpoints this is the local name.
	Name string `json:"name"`

	// Hide marks a structural node (account root) whose own content is
	// never rendered; only its subfolders are.
	Hide bool `json:"hide"`

	// IsShare marks content that comes from another mailbox.
	IsShare bool `json:"isShare"`

	// Color is the folder colour. For mountpoints this is the local colour.
	Color string `json:"color,omitempty"`

	Contacts   []Contact   `json:"contacts"`
	Groups     []Group     `json:"groups"`
	Subfolders []*TreeNode `json:"subfolders"`
}

// Flatten folds the tree into a Collection in pre-order.
// Hidden nodes contribute only their subfolders.
func (n *TreeNode) Flatten() Collection {
	var out Collection
	n.flattenInto(&out)
	return out
}

func (n *TreeNode) flattenInto(out *Collection) {
	if n == nil {
		return
	}
	if !n.Hide {
		out.Contacts = append(out.Contacts, n.Contacts...)
		out.Groups = append(out.Groups, n.Groups...)
	}
	for _, sub := range n.Subfolders {
		sub.flattenInto(out)
	}
}

// Visible returns the nodes a client should render at this level:
// the node itself, or for a hidden node the visible nodes beneath it.
// The returned nodes are copies with hidden descendants spliced out.
func (n *TreeNode) Visible() []*TreeNode {
	if n == nil {
		return nil
	}

	var subs []*TreeNode
	for _, sub := range n.Subfolders {
		subs = append(subs, sub.Visible()...)
	}

	if n.Hide {
		return subs
	}

	cp := *n
	cp.Subfolders = subs
	return []*TreeNode{&cp}
}

// Count returns the number of contacts and groups rendered from the tree.
func (n *TreeNode) Count() (contacts, groups int) {
	c := n.Flatten()
	return len(c.Contacts), len(c.Groups)
}

// MarshalJSON encodes empty lists as [] rather than null.
func (n TreeNode) MarshalJSON() ([]byte, error) {
	type plain TreeNode
	out := plain(n)
	if out.Contacts == nil {
		out.Contacts = []Contact{}
	}
	if out.Groups == nil {
		out.Groups = []Group{}
	}
	if out.Subfolders == nil {
		out.Subfolders = []*TreeNode{}
	}
	return json.Marshal(out)
}
