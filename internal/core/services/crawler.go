package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driven"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driving"
	"github.com/custodia-labs/addrcrawl/internal/logger"
)

// Default crawl tuning.
const (
	DefaultParallelism       = 4
	DefaultDelegationTimeout = 30 * time.Second
)

// CrawlOptions tunes the crawler.
type CrawlOptions struct {
	// Parallelism bounds concurrent mailbox and peer calls. Zero uses DefaultParallelism.
	Parallelism int

	// DelegationTimeout bounds each peer call. Zero uses DefaultDelegationTimeout.
	DelegationTimeout time.Duration

	// DirectoryAttrs maps property fields to directory attributes.
	// Nil uses DefaultDirectoryAttrs.
	DirectoryAttrs map[string]string
}

// Crawler holds the collaborators shared by local and delegated crawls.
type Crawler struct {
	server    string
	opener    driven.MailboxOpener
	directory driven.Directory
	codec     driven.MemberCodec
	delegate  driven.RemoteDelegate
	metrics   driven.CrawlMetrics

	mu   sync.RWMutex
	opts CrawlOptions
}

// NewCrawler creates a crawler for mailboxes hosted on server.
// delegate and metrics are optional.
func NewCrawler(
	server string,
	opener driven.MailboxOpener,
	directory driven.Directory,
	codec driven.MemberCodec,
	delegate driven.RemoteDelegate,
	metrics driven.CrawlMetrics,
	opts CrawlOptions,
) *Crawler {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Crawler{
		server:    server,
		opener:    opener,
		directory: directory,
		codec:     codec,
		delegate:  delegate,
		metrics:   metrics,
		opts:      opts,
	}
}

// Server returns the name of the server the crawler runs on.
func (c *Crawler) Server() string {
	return c.server
}

// SetOptions replaces the tuning used by crawls started afterwards.
func (c *Crawler) SetOptions(opts CrawlOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = opts
}

// Options returns the current tuning.
func (c *Crawler) Options() CrawlOptions {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts
}

// crawlJob describes one crawl.
type crawlJob struct {
	mode          driving.CrawlMode
	home          driven.Mailbox
	viewerID      string
	rootID        int
	delegated     bool
	includeShared bool
	fields        []string
	existing      []string
	token         string
	debug         bool
}

// crawlOutput is what a crawl produced before shaping.
type crawlOutput struct {
	tree      *domain.TreeNode
	matched   domain.Collection
	remaining []string
}

// run walks job.home from job.rootID.
func (c *Crawler) run(ctx context.Context, job crawlJob) (*crawlOutput, error) {
	opts := c.Options()
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	timeout := opts.DelegationTimeout
	if timeout <= 0 {
		timeout = DefaultDelegationTimeout
	}

	log := logger.New("crawl "+job.home.AccountID(), job.debug)
	norm := NewNormaliser(job.fields, opts.DirectoryAttrs)

	w := &walker{
		job:       job,
		opener:    c.opener,
		directory: c.directory,
		delegate:  c.delegate,
		metrics:   c.metrics,
		server:    c.server,
		norm:      norm,
		groups:    NewGroupResolver(c.codec, norm, log),
		existing:  NewExistingTracker(job.existing),
		sem:       semaphore.NewWeighted(int64(parallelism)),
		timeout:   timeout,
		log:       log,
	}

	tree, err := w.crawl(ctx, job.rootID)
	if err != nil {
		return nil, err
	}
	return &crawlOutput{
		tree:      tree,
		matched:   w.existing.Matched(),
		remaining: w.existing.Remaining(),
	}, nil
}

// noopMetrics discards everything.
type noopMetrics struct{}

func (noopMetrics) CrawlCompleted(string, int, int, time.Duration) {}
func (noopMetrics) SubtreeSkipped(string) {}
func (noopMetrics) EntityRejected(string) {}
func (noopMetrics) DelegationFinished(string, string, time.Duration) {}
