package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// URIScheme is the custom URI scheme for addrcrawl resources.
	uriScheme = "addrcrawl://"
)

// registerResources registers all resource handlers with server.
func (s *session) registerResources(server *mcp.Server) {
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "accounts/{accountId}/contacts",
		Name:        "account-contacts",
		Description: "Flat contact collection of an account",
		MIMEType:    "application/json",
	}, s.handleContactsResource)
}

// handleContactsResource crawls the account named in the URI.
func (s *session) handleContactsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	accountID := extractAccountID(req.Params.URI)
	if accountID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	crawlReq, err := s.crawlRequest(accountID)
	if err != nil {
		return nil, err
	}
	res, err := s.ports.Contacts.FetchCollection(ctx, crawlReq)
	if err != nil {
		return nil, fmt.Errorf("fetching contacts: %w", err)
	}

	data, err := json.MarshalIndent(res.Collection, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling contacts: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractAccountID extracts the account from addrcrawl://accounts/{accountId}/contacts.
func extractAccountID(uri string) string {
	const prefix = uriScheme + "accounts/"
	const suffix = "/contacts"

	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}

	id := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
