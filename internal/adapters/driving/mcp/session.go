package mcp

import (
	"fmt"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driving"
)

// session is who the tools act for. A session with an account only reads
// that account; the zero session is the local operator.
type session struct {
	ports   *Ports
	account string
	token   string
}

// crawlRequest builds the request for account, refusing other accounts
// when the session is pinned.
func (s *session) crawlRequest(account string) (driving.CrawlRequest, error) {
	if s.account == "" {
		return driving.CrawlRequest{AccountID: account}, nil
	}
	if account != "" && account != s.account {
		return driving.CrawlRequest{}, fmt.Errorf("account %s: %w", account, domain.ErrForbidden)
	}
	return driving.CrawlRequest{AccountID: s.account, AuthToken: s.token}, nil
}
