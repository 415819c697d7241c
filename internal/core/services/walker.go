package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driven"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driving"
	"github.com/custodia-labs/addrcrawl/internal/logger"
)

// Skip reasons, also used as metric labels.
const (
	skipExcluded     = "excluded"
	skipIneligible   = "ineligible"
	skipDelegated    = "delegated"
	skipSharing      = "sharing_disabled"
	skipNested       = "nested_mountpoint"
	skipUnknownOwner = "unknown_owner"
	skipDenied       = "permission_denied"
	skipMissing      = "not_found"
	skipRemote       = "remote_unavailable"
)

// visit is the outcome of handling one folder: either an included node
// or a skip with its reason.
type visit struct {
	node   *domain.TreeNode
	reason string
}

func included(node *domain.TreeNode) visit { return visit{node: node} }
func skipped(reason string) visit { return visit{reason: reason} }

func (v visit) skipped() bool { return v.node == nil }

// walker performs a single crawl. Each visit returns a finished node and
// parents assemble children only after they return.
type walker struct {
	job       crawlJob
	opener    driven.MailboxOpener
	directory driven.Directory
	delegate  driven.RemoteDelegate
	metrics   driven.CrawlMetrics
	server    string

	norm     *Normaliser
	groups   *GroupResolver
	existing *ExistingTracker

	// sem bounds mailbox and peer calls; it is never held across recursion
	sem     *semaphore.Weighted
	timeout time.Duration
	log     *logger.Logger
}

func (w *walker) crawl(ctx context.Context, rootID int) (*domain.TreeNode, error) {
	if rootID == 0 {
		rootID = domain.RootFolderID
	}

	// 1. Fetch the subtree
	var root *domain.FolderNode
	err := w.withSlot(ctx, func() error {
		var err error
		root, err = w.job.home.FolderTree(ctx, rootID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get folder tree: %w", err)
	}

	// 2. Walk it
	v, err := w.visitNode(ctx, w.job.home, root)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if v.skipped() {
		// only reachable when a caller points the crawl at a folder that
		// is not an address book
		w.log.Warn("crawl root %d %q was skipped: %s", root.ID, root.Name, v.reason)
		return &domain.TreeNode{Name: root.Name, Hide: true, IsShare: w.job.delegated}, nil
	}
	return v.node, nil
}

func (w *walker) visitNode(ctx context.Context, mb driven.Mailbox, n *domain.FolderNode) (visit, error) {
	switch {
	case n.IsRoot():
		subs, err := w.visitChildren(ctx, mb, n.Subfolders)
		if err != nil {
			return visit{}, err
		}
		return included(&domain.TreeNode{
			Name:       n.Name,
			Hide:       true,
			IsShare:    w.isShare(mb),
			Color:      n.Color,
			Subfolders: subs,
		}), nil

	case n.ID == domain.AutoContactsFolderID:
		return skipped(skipExcluded), nil

	case n.Mountpoint && (n.View == domain.ViewContact || n.View == domain.ViewUnknown):
		return w.visitMountpoint(ctx, mb, n)

	case n.IsContactFolder():
		return w.visitFolder(ctx, mb, n, n.Name, n.Color, false)

	default:
		return skipped(skipIneligible), nil
	}
}

// visitFolder emits n under the given display name and colour. With
// skipContent only the subfolders are walked.
func (w *walker) visitFolder(
	ctx context.Context,
	mb driven.Mailbox,
	n *domain.FolderNode,
	name, color string,
	skipContent bool,
) (visit, error) {
	node := &domain.TreeNode{
		Name:    name,
		Color:   color,
		IsShare: w.isShare(mb),
	}

	if !skipContent {
		err := w.withSlot(ctx, func() error {
			return w.fillContent(ctx, mb, n.ID, node)
		})
		if errors.Is(err, domain.ErrPermissionDenied) {
			w.log.Warn("folder %q: %v", name, err)
			return skipped(skipDenied), nil
		}
		if err != nil {
			return visit{}, err
		}
	}

	subs, err := w.visitChildren(ctx, mb, n.Subfolders)
	if err != nil {
		return visit{}, err
	}
	node.Subfolders = subs
	return included(node), nil
}

// fillContent lists a folder and normalises its records into node.
func (w *walker) fillContent(ctx context.Context, mb driven.Mailbox, folderID int, node *domain.TreeNode) error {
	records, err := mb.ListContacts(ctx, folderID)
	if err != nil {
		return fmt.Errorf("list contacts of folder %d: %w", folderID, err)
	}

	for _, rec := range records {
		if rec.IsGroup() {
			group, err := w.groups.Resolve(ctx, mb, rec)
			if domain.IsEntityReject(err) {
				w.log.Debug("dropping group %s: %v", rec.Ref(), err)
				w.metrics.EntityRejected(rejectReason(err))
				continue
			}
			if err != nil {
				return err
			}
			if !w.existing.ObserveGroup(group) {
				node.Groups = append(node.Groups, group)
			}
			continue
		}

		contact, err := w.norm.Normalise(rec, "")
		if err != nil {
			w.log.Debug("dropping contact %s: %v", rec.Ref(), err)
			w.metrics.EntityRejected(rejectReason(err))
			continue
		}
		if !w.existing.ObserveContact(contact) {
			node.Contacts = append(node.Contacts, contact)
		}
	}
	return nil
}

// visitChildren walks siblings concurrently and returns the included
// nodes in mailbox order.
func (w *walker) visitChildren(ctx context.Context, mb driven.Mailbox, children []*domain.FolderNode) ([]*domain.TreeNode, error) {
	results := make([]visit, len(children))

	g, gctx := errgroup.WithContext(ctx)
	for i, child := range children {
		g.Go(func() error {
			v, err := w.visitNode(gctx, mb, child)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	subs := make([]*domain.TreeNode, 0, len(children))
	for i, v := range results {
		if v.skipped() {
			w.log.Debug("skipping folder %q: %s", children[i].Name, v.reason)
			w.metrics.SubtreeSkipped(v.reason)
			continue
		}
		subs = append(subs, v.node)
	}
	return subs, nil
}

func (w *walker) visitMountpoint(ctx context.Context, mb driven.Mailbox, n *domain.FolderNode) (visit, error) {
	switch {
	case w.job.delegated:
		return skipped(skipDelegated), nil
	case !w.job.includeShared:
		return skipped(skipSharing), nil
	case mb.AccountID() != w.job.home.AccountID():
		w.log.Debug("ignoring recursive mountpoint %q", n.Name)
		return skipped(skipNested), nil
	}

	target, err := mb.ResolveMountpoint(ctx, n.ID)
	if errors.Is(err, domain.ErrNotFound) {
		w.log.Warn("mountpoint %q: %v", n.Name, err)
		return skipped(skipMissing), nil
	}
	if err != nil {
		return visit{}, fmt.Errorf("resolve mountpoint %d: %w", n.ID, err)
	}

	owner, err := w.directory.Account(ctx, target.OwnerID)
	if err != nil {
		w.log.Warn("mountpoint %q: cannot resolve owner %s: %v", n.Name, target.OwnerID, err)
		return skipped(skipUnknownOwner), nil
	}

	if owner.Server == w.server {
		return w.visitLocalShare(ctx, n, owner, target)
	}
	return w.visitRemoteShare(ctx, n, owner, target)
}

func (w *walker) visitLocalShare(
	ctx context.Context,
	n *domain.FolderNode,
	owner domain.Account,
	target domain.MountTarget,
) (visit, error) {
	w.log.Debug("shared address book %q: crawling %s on this server", n.Name, owner.Name)

	shared, err := w.opener.Open(ctx, owner.ID, w.job.viewerID)
	if errors.Is(err, domain.ErrNotFound) {
		w.log.Warn("mountpoint %q: mailbox of %s not found", n.Name, owner.ID)
		return skipped(skipMissing), nil
	}
	if err != nil {
		return visit{}, fmt.Errorf("open mailbox %s: %w", owner.ID, err)
	}

	var tree *domain.FolderNode
	err = w.withSlot(ctx, func() error {
		var err error
		tree, err = shared.FolderTree(ctx, target.FolderID)
		return err
	})
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		w.log.Warn("ignoring shared address book %q: permission denied", n.Name)
		return skipped(skipDenied), nil
	case errors.Is(err, domain.ErrNotFound):
		w.log.Warn("ignoring shared address book %q: target %d not found", n.Name, target.FolderID)
		return skipped(skipMissing), nil
	case err != nil:
		return visit{}, fmt.Errorf("get shared folder tree: %w", err)
	}

	// a whole-account share keeps only the structure of the owner's root
	return w.visitFolder(ctx, shared, tree, n.Name, n.Color, tree.IsRoot())
}

func (w *walker) visitRemoteShare(
	ctx context.Context,
	n *domain.FolderNode,
	owner domain.Account,
	target domain.MountTarget,
) (visit, error) {
	log := w.log.With("remote " + owner.Server)

	if w.delegate == nil {
		log.Warn("ignoring shared address book %q: no remote delegate configured", n.Name)
		return skipped(skipRemote), nil
	}
	if w.job.token == "" {
		log.Warn("ignoring shared address book %q: %v", n.Name, domain.ErrMissingToken)
		return skipped(skipRemote), nil
	}

	req := domain.DelegationRequest{
		Account:       owner.ID,
		Item:          target.FolderID,
		IncludeFields: w.norm.Fields(),
		Tree:          w.job.mode == driving.CrawlTree,
		Existing:      w.existing.Remaining(),
		Debug:         w.job.debug,
	}

	var res *domain.PartialResult
	start := time.Now()
	err := w.withSlot(ctx, func() error {
		dctx, cancel := context.WithTimeout(ctx, w.timeout)
		defer cancel()
		var err error
		res, err = w.delegate.Delegate(dctx, owner.Server, w.job.token, req)
		return err
	})
	if err == nil {
		err = checkPartial(req, res)
	}
	if err != nil {
		w.metrics.DelegationFinished(owner.Server, driven.DelegationSkipped, time.Since(start))
		log.Warn("ignoring shared address book %q: %v", n.Name, err)
		return skipped(skipRemote), nil
	}
	w.metrics.DelegationFinished(owner.Server, driven.DelegationSuccess, time.Since(start))

	// local name and colour win over whatever the peer reports
	node := &domain.TreeNode{Name: n.Name, Color: n.Color, IsShare: true}
	if req.Tree {
		node.Contacts = res.Tree.Contacts
		node.Groups = res.Tree.Groups
		node.Subfolders = res.Tree.Subfolders
	} else {
		node.Contacts = res.Collection.Contacts
		node.Groups = res.Collection.Groups
	}

	w.existing.Absorb(res.ExistingCollection, res.Existing)
	return included(node), nil
}

// checkPartial verifies a peer answered in the requested shape.
func checkPartial(req domain.DelegationRequest, res *domain.PartialResult) error {
	switch {
	case res == nil:
		return fmt.Errorf("%w: empty response", domain.ErrDelegationFailed)
	case req.Tree && res.Tree == nil:
		return fmt.Errorf("%w: response has no tree", domain.ErrDelegationFailed)
	case !req.Tree && res.Collection == nil:
		return fmt.Errorf("%w: response has no collection", domain.ErrDelegationFailed)
	}
	return nil
}

// isShare reports whether content read from mb counts as shared.
func (w *walker) isShare(mb driven.Mailbox) bool {
	return w.job.delegated || mb.AccountID() != w.job.home.AccountID()
}

// withSlot runs fn while holding one unit of the call budget.
func (w *walker) withSlot(ctx context.Context, fn func() error) error {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer w.sem.Release(1)
	return fn()
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoEmail):
		return "no_email"
	case errors.Is(err, domain.ErrInvalidEmail):
		return "invalid_email"
	case errors.Is(err, domain.ErrEmptyGroup):
		return "empty_group"
	case errors.Is(err, domain.ErrGroupDecode):
		return "group_decode"
	default:
		return "other"
	}
}
