package driven

import "context"

// TokenIssuer mints session tokens for an account.
type TokenIssuer interface {
	Issue(ctx context.Context, accountID string) (string, error)
}

// TokenVerifier resolves a session token to the account that holds it.
// Returns domain.ErrUnauthorized for missing, expired or forged tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}
