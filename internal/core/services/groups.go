package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driven"
	"github.com/custodia-labs/addrcrawl/internal/logger"
)

// GroupResolver turns a stored contact group into a domain.Group.
type GroupResolver struct {
	codec driven.MemberCodec
	norm  *Normaliser
	log   *logger.Logger
}

// NewGroupResolver creates a resolver normalising members with norm.
func NewGroupResolver(codec driven.MemberCodec, norm *Normaliser, log *logger.Logger) *GroupResolver {
	return &GroupResolver{codec: codec, norm: norm, log: log}
}

// Resolve decodes and dereferences the members of rec through mb.
//
// Returns domain.ErrGroupDecode if the member list cannot be decoded and
// domain.ErrEmptyGroup if no member resolves. Other errors come from the
// mailbox.
func (g *GroupResolver) Resolve(ctx context.Context, mb driven.Mailbox, rec *domain.ContactRecord) (domain.Group, error) {
	refs, err := g.codec.Decode(rec.Members)
	if err != nil {
		return domain.Group{}, fmt.Errorf("group %s: %w: %v", rec.Ref(), domain.ErrGroupDecode, err)
	}

	derefs, err := mb.DerefMembers(ctx, refs)
	if err != nil {
		return domain.Group{}, fmt.Errorf("deref members of %s: %w", rec.Ref(), err)
	}
	if len(derefs) == 0 {
		return domain.Group{}, fmt.Errorf("group %s: %w", rec.Ref(), domain.ErrEmptyGroup)
	}

	group := domain.Group{
		ID:      rec.Ref(),
		Name:    rec.FileAs,
		Tags:    append([]string(nil), rec.Tags...),
		Members: make([]domain.Contact, 0, len(derefs)),
	}
	ref := group.SourceRef()

	for _, m := range derefs {
		if m.Object == nil {
			group.FailedDereferences = append(group.FailedDereferences, m.MemberRef)
			continue
		}
		member, err := g.norm.Normalise(m.Object, ref)
		if err != nil {
			g.log.Debug("group %s: dropping member %s %q: %v", group.ID, m.Type, m.Value, err)
			continue
		}
		group.Members = append(group.Members, member)
	}

	if len(group.FailedDereferences) == len(derefs) {
		return domain.Group{}, fmt.Errorf("group %s: %w", rec.Ref(), domain.ErrEmptyGroup)
	}
	return group, nil
}
