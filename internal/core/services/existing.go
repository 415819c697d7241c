package services

import (
	"sort"
	"sync"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
)

// ExistingTracker partitions produced entities into already-known and new.
// It is safe for concurrent use; concurrent branches of a crawl claim refs
// through it.
type ExistingTracker struct {
	mu      sync.Mutex
	pending map[string]struct{}
	matched domain.Collection
}

// NewExistingTracker starts tracking refs. Duplicates and empty refs are ignored.
func NewExistingTracker(refs []string) *ExistingTracker {
	pending := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if ref != "" {
			pending[ref] = struct{}{}
		}
	}
	return &ExistingTracker{pending: pending}
}

// ObserveContact claims c's ref. It returns true, and keeps a copy of c,
// when the ref was still outstanding; the caller then leaves c out of the
// primary result.
func (t *ExistingTracker) ObserveContact(c domain.Contact) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.claim(c.SourceRef) {
		return false
	}
	t.matched.AddContact(c)
	return true
}

// ObserveGroup claims g's ref. See ObserveContact.
func (t *ExistingTracker) ObserveGroup(g domain.Group) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.claim(g.SourceRef()) {
		return false
	}
	t.matched.AddGroup(g)
	return true
}

// caller must hold mu
func (t *ExistingTracker) claim(ref string) bool {
	if ref == "" {
		return false
	}
	if _, ok := t.pending[ref]; !ok {
		return false
	}
	delete(t.pending, ref)
	return true
}

// Absorb folds in a peer's answer: its matched entities join the bucket and
// the outstanding set keeps only refs the peer also left unmatched.
func (t *ExistingTracker) Absorb(matched domain.Collection, remaining []string) {
	keep := make(map[string]struct{}, len(remaining))
	for _, ref := range remaining {
		keep[ref] = struct{}{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.matched.Merge(matched)
	for ref := range t.pending {
		if _, ok := keep[ref]; !ok {
			delete(t.pending, ref)
		}
	}
}

// Remaining returns the outstanding refs, sorted.
func (t *ExistingTracker) Remaining() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.pending))
	for ref := range t.pending {
		out = append(out, ref)
	}
	sort.Strings(out)
	return out
}

// Matched returns a copy of the entities whose ref was claimed.
func (t *ExistingTracker) Matched() domain.Collection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return domain.Collection{
		Contacts: append([]domain.Contact(nil), t.matched.Contacts...),
		Groups:   append([]domain.Group(nil), t.matched.Groups...),
	}
}
