package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
)

// CrawlMode selects the output shape of a crawl.
type CrawlMode string

// Crawl modes.
const (
	// CrawlFlat produces a single Collection.
	CrawlFlat CrawlMode = "flat"

	// CrawlTree produces a TreeNode mirroring the folder hierarchy.
	CrawlTree CrawlMode = "tree"
)

// CrawlRequest describes one crawl of an account's address books.
type CrawlRequest struct {
	// AccountID is the account whose mailbox is crawled.
	AccountID string

	// RootID is the folder to start from. Zero means the account root.
	RootID int

	// Existing holds sync refs the client already knows.
	Existing []string

	// Debug enables debug logging for this crawl only.
	Debug bool

	// AuthToken is the session token forwarded to peer servers.
	// When empty a token is issued for AccountID if an issuer is configured.
	AuthToken string
}

// CrawlResult is the outcome of a crawl.
type CrawlResult struct {
	// Mode is the requested output shape.
	Mode CrawlMode

	// Collection is set for CrawlFlat.
	Collection *domain.Collection

	// Tree is set for CrawlTree.
	Tree *domain.TreeNode

	// Existing holds entities whose ref was in the request's existing set.
	Existing domain.Collection

	// Remaining holds known refs the crawl did not reproduce, sorted.
	Remaining []string

	// Elapsed is the wall time of the crawl.
	Elapsed time.Duration
}

// ContactsService crawls address books.
type ContactsService interface {
	// FetchCollection crawls into a flat collection.
	FetchCollection(ctx context.Context, req CrawlRequest) (*CrawlResult, error)

	// FetchTree crawls into a folder-shaped tree.
	FetchTree(ctx context.Context, req CrawlRequest) (*CrawlResult, error)
}
