package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driven"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driving"
	"github.com/custodia-labs/addrcrawl/internal/logger"
)

// Ensure RemoteFolderService implements the interface.
var _ driving.RemoteFolderService = (*RemoteFolderService)(nil)

// RemoteFolderService crawls a folder on behalf of a peer server.
type RemoteFolderService struct {
	crawler *Crawler
	tokens  driven.TokenVerifier
}

// NewRemoteFolderService creates the delegation endpoint service.
func NewRemoteFolderService(crawler *Crawler, tokens driven.TokenVerifier) *RemoteFolderService {
	return &RemoteFolderService{crawler: crawler, tokens: tokens}
}

// ServeRemoteFolder crawls req.Item in req.Account's mailbox as the token holder.
func (s *RemoteFolderService) ServeRemoteFolder(
	ctx context.Context,
	token string,
	req domain.DelegationRequest,
) (*domain.PartialResult, error) {
	// 1. Validate
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// 2. Authenticate
	if s.tokens == nil || token == "" {
		return nil, fmt.Errorf("%w: no token", domain.ErrUnauthorized)
	}
	viewer, err := s.tokens.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	// 3. Open the owner's mailbox as the caller
	mb, err := s.crawler.opener.Open(ctx, req.Account, viewer)
	if err != nil {
		return nil, fmt.Errorf("open mailbox %s: %w", req.Account, err)
	}

	// 4. Authorise: the caller must be able to read the target tree
	if _, err := mb.FolderTree(ctx, req.Item); err != nil {
		if errors.Is(err, domain.ErrPermissionDenied) || errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Delegated crawl of %s:%d refused for %s: %v", req.Account, req.Item, viewer, err)
			return nil, domain.ErrForbidden
		}
		return nil, fmt.Errorf("check access: %w", err)
	}

	mode := driving.CrawlFlat
	if req.Tree {
		mode = driving.CrawlTree
	}
	logger.Info("Serving delegated %s crawl of %s:%d for %s", mode, req.Account, req.Item, viewer)

	// 5. Crawl without following mountpoints
	out, err := s.crawler.run(ctx, crawlJob{
		mode:      mode,
		home:      mb,
		viewerID:  viewer,
		rootID:    req.Item,
		delegated: true,
		fields:    req.IncludeFields,
		existing:  req.Existing,
		debug:     req.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("delegated crawl: %w", err)
	}

	// 6. Shape the answer
	res := &domain.PartialResult{
		ExistingCollection: out.matched,
		Existing:           out.remaining,
	}
	if req.Tree {
		res.Tree = out.tree
	} else {
		flat := out.tree.Flatten()
		res.Collection = &flat
	}
	return res, nil
}
