package mcp

import (
	"context"
	"strings"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driving"
)

// mockContactsService is a mock implementation of driving.ContactsService.
type mockContactsService struct {
	result  *driving.CrawlResult
	err     error
	lastReq driving.CrawlRequest
}

func (m *mockContactsService) FetchCollection(_ context.Context, req driving.CrawlRequest) (*driving.CrawlResult, error) {
	m.lastReq = req
	return m.result, m.err
}

func (m *mockContactsService) FetchTree(_ context.Context, req driving.CrawlRequest) (*driving.CrawlResult, error) {
	m.lastReq = req
	return m.result, m.err
}

// mockVerifier accepts "token-<account>".
type mockVerifier struct{}

func (mockVerifier) Verify(_ context.Context, token string) (string, error) {
	account, ok := strings.CutPrefix(token, "token-")
	if !ok || account == "" {
		return "", domain.ErrUnauthorized
	}
	return account, nil
}
