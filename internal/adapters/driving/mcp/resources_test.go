package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driving"
)

func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: uri},
	}
}

func TestServer_handleContactsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the collection as JSON", func(t *testing.T) {
		mock := &mockContactsService{result: &driving.CrawlResult{
			Collection: &domain.Collection{Contacts: []domain.Contact{sampleContact("jane@example.com")}},
		}}
		sess := &session{ports: &Ports{Contacts: mock}}

		res, err := sess.handleContactsResource(ctx, makeReadResourceRequest("addrcrawl://accounts/alice/contacts"))
		require.NoError(t, err)
		require.Len(t, res.Contents, 1)
		assert.Equal(t, "application/json", res.Contents[0].MIMEType)
		assert.Contains(t, res.Contents[0].Text, "jane@example.com")
		assert.Contains(t, res.Contents[0].Text, `"groups": []`)
		assert.Equal(t, "alice", mock.lastReq.AccountID)
	})

	t.Run("unknown URI", func(t *testing.T) {
		sess := &session{ports: &Ports{Contacts: &mockContactsService{}}}

		_, err := sess.handleContactsResource(ctx, makeReadResourceRequest("addrcrawl://other"))
		assert.Error(t, err)
	})

	t.Run("crawl failure", func(t *testing.T) {
		sess := &session{ports: &Ports{Contacts: &mockContactsService{err: errors.New("boom")}}}

		_, err := sess.handleContactsResource(ctx, makeReadResourceRequest("addrcrawl://accounts/alice/contacts"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("pinned session refuses another account", func(t *testing.T) {
		mock := &mockContactsService{}
		sess := &session{ports: &Ports{Contacts: mock}, account: "alice", token: "token-alice"}

		_, err := sess.handleContactsResource(ctx, makeReadResourceRequest("addrcrawl://accounts/victim/contacts"))
		assert.ErrorIs(t, err, domain.ErrForbidden)
		assert.Empty(t, mock.lastReq.AccountID)
	})
}
