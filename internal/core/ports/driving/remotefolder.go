package driving

import (
	"context"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
)

// RemoteFolderService serves crawl requests delegated by peer servers.
type RemoteFolderService interface {
	// ServeRemoteFolder crawls req.Item of req.Account on behalf of the
	// holder of token.
	//
	// Errors:
	//   - domain.ErrInvalidInput: required request fields missing
	//   - domain.ErrUnauthorized: token missing or invalid
	//   - domain.ErrForbidden: caller may not read the target folder
	ServeRemoteFolder(ctx context.Context, token string, req domain.DelegationRequest) (*domain.PartialResult, error)
}
