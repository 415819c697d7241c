package driven

import (
	"context"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
)

// RemoteDelegate asks a peer server to crawl a subtree it hosts.
// Any error means the subtree is unavailable; callers do not retry.
type RemoteDelegate interface {
	Delegate(ctx context.Context, serverName, token string, req domain.DelegationRequest) (*domain.PartialResult, error)
}
