package driven

import (
	"context"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
)

// Directory provides account and server provisioning.
type Directory interface {
	// Account looks up an account by ID.
	// Returns domain.ErrNotFound if it does not exist.
	Account(ctx context.Context, id string) (domain.Account, error)

	// Server looks up a server by name.
	// Returns domain.ErrNotFound if it does not exist.
	Server(ctx context.Context, name string) (domain.Server, error)
}
