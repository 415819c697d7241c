package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driven"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driving"
	"github.com/custodia-labs/addrcrawl/internal/logger"
)

// Ensure ContactsService implements the interface.
var _ driving.ContactsService = (*ContactsService)(nil)

// ContactsService crawls the address books of accounts hosted on this server.
type ContactsService struct {
	crawler  *Crawler
	settings driven.SettingsStore
	tokens   driven.TokenIssuer
}

// NewContactsService creates a contacts service.
// tokens is optional; without it remote shares need a token on the request.
func NewContactsService(crawler *Crawler, settings driven.SettingsStore, tokens driven.TokenIssuer) *ContactsService {
	return &ContactsService{
		crawler:  crawler,
		settings: settings,
		tokens:   tokens,
	}
}

// FetchCollection crawls into a flat collection.
func (s *ContactsService) FetchCollection(ctx context.Context, req driving.CrawlRequest) (*driving.CrawlResult, error) {
	return s.fetch(ctx, req, driving.CrawlFlat)
}

// FetchTree crawls into a folder-shaped tree.
func (s *ContactsService) FetchTree(ctx context.Context, req driving.CrawlRequest) (*driving.CrawlResult, error) {
	return s.fetch(ctx, req, driving.CrawlTree)
}

func (s *ContactsService) fetch(ctx context.Context, req driving.CrawlRequest, mode driving.CrawlMode) (*driving.CrawlResult, error) {
	if req.AccountID == "" {
		return nil, fmt.Errorf("%w: missing account", domain.ErrInvalidInput)
	}
	start := time.Now()

	// 1. Load user settings
	settings, err := s.settings.UserSettings(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	// 2. Open the caller's own mailbox
	mb, err := s.crawler.opener.Open(ctx, req.AccountID, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("open mailbox: %w", err)
	}

	// 3. Make sure remote shares can be delegated
	token := req.AuthToken
	if token == "" && s.tokens != nil && settings.IncludeShared() {
		token, err = s.tokens.Issue(ctx, req.AccountID)
		if err != nil {
			logger.Warn("Cannot issue session token for %s, remote shares will be skipped: %v", req.AccountID, err)
			token = ""
		}
	}

	logger.Info("Starting %s crawl for account %s", mode, req.AccountID)

	// 4. Crawl
	out, err := s.crawler.run(ctx, crawlJob{
		mode:          mode,
		home:          mb,
		viewerID:      req.AccountID,
		rootID:        req.RootID,
		includeShared: settings.IncludeShared(),
		fields:        settings.IncludeFields(),
		existing:      domain.UniqueRefs(req.Existing),
		token:         token,
		debug:         req.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("crawl %s: %w", req.AccountID, err)
	}

	// 5. Shape the result
	res := &driving.CrawlResult{
		Mode:      mode,
		Existing:  out.matched,
		Remaining: out.remaining,
		Elapsed:   time.Since(start),
	}
	if mode == driving.CrawlTree {
		res.Tree = out.tree
	} else {
		flat := out.tree.Flatten()
		res.Collection = &flat
	}

	contacts, groups := out.tree.Count()
	s.crawler.metrics.CrawlCompleted(string(mode), contacts, groups, res.Elapsed)
	logger.Info("Crawl complete: %d contacts, %d groups, %d known, %d remaining in %s",
		contacts, groups, res.Existing.Len(), len(res.Remaining), res.Elapsed)

	return res, nil
}
