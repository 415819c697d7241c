package domain

import (
	"fmt"
	"sort"
)

// DelegationRequest asks a peer server to crawl a subtree of one of its
// mailboxes on behalf of the caller.
type DelegationRequest struct {
	// Account owns the target folder.
	Account string `json:"account"`

	// Item is the target folder in the owner's mailbox.
	Item int `json:"item"`

	// IncludeFields are the caller's configured property fields.
	IncludeFields []string `json:"includeFields"`

	// Tree selects tree output rather than a flat collection.
	Tree bool `json:"tree"`

	// Existing is the caller's outstanding existing set.
	Existing []string `json:"existing"`

	// Debug enables debug logging for the delegated crawl.
	Debug bool `json:"debug"`
}

// Validate checks the required fields.
func (r DelegationRequest) Validate() error {
	switch {
	case r.Account == "":
		return fmt.Errorf("%w: missing account", ErrInvalidInput)
	case r.Item == 0:
		return fmt.Errorf("%w: missing item", ErrInvalidInput)
	case len(r.IncludeFields) == 0:
		return fmt.Errorf("%w: missing includeFields", ErrInvalidInput)
	}
	return nil
}

// PartialResult is a peer's answer to a DelegationRequest.
type PartialResult struct {
	// Tree is set when the request asked for tree output.
	Tree *TreeNode `json:"tree,omitempty"`

	// Collection is set when the request asked for flat output.
	Collection *Collection `json:"collection,omitempty"`

	// ExistingCollection holds entities that matched the existing set.
	ExistingCollection Collection `json:"existingCollection"`

	// Existing holds the refs the peer did not match.
	Existing []string `json:"existing"`
}

// UniqueRefs returns refs deduplicated and sorted, without empty entries.
func UniqueRefs(refs []string) []string {
	seen := make(map[string]struct{}, len(refs))
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	sort.Strings(out)
	return out
}
