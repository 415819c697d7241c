package mcp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("nil contacts service returns error", func(t *testing.T) {
		server, err := NewServer(&Ports{})
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingContactsService)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		server, err := NewServer(&Ports{Contacts: &mockContactsService{}})
		require.NoError(t, err)
		assert.NotNil(t, server)
	})
}

func TestPorts_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Ports{}).Validate(), ErrMissingContactsService)
	assert.NoError(t, (&Ports{Contacts: &mockContactsService{}}).Validate())
}

func TestServer_Handler_RequiresVerifier(t *testing.T) {
	server, err := NewServer(&Ports{Contacts: &mockContactsService{}})
	require.NoError(t, err)

	handler, err := server.Handler(nil)
	assert.ErrorIs(t, err, ErrMissingVerifier)
	assert.Nil(t, handler)
}

func TestServer_Handler_RefusesUnauthenticated(t *testing.T) {
	mock := &mockContactsService{}
	server, err := NewServer(&Ports{Contacts: mock})
	require.NoError(t, err)
	handler, err := server.Handler(mockVerifier{})
	require.NoError(t, err)

	const call = `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_contacts","arguments":{"account":"victim"}}}`

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Bearer token-victim"},
		{"empty token", "Token "},
		{"unknown token", "Token forged"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(call))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json, text/event-stream")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, TokenScheme, rec.Header().Get("WWW-Authenticate"))
			assert.JSONEq(t, `{"error":"Authentication required."}`, rec.Body.String())
		})
	}
	assert.Empty(t, mock.lastReq.AccountID)
}

func TestServer_RunHTTP_RequiresVerifier(t *testing.T) {
	server, err := NewServer(&Ports{Contacts: &mockContactsService{}})
	require.NoError(t, err)

	err = server.RunHTTP(t.Context(), "127.0.0.1:0", nil)
	assert.ErrorIs(t, err, ErrMissingVerifier)
}

func TestSessionToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Token abc", "abc", true},
		{"token  abc ", "abc", true},
		{"TOKEN abc", "abc", true},
		{"Bearer abc", "", false},
		{"Token", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			token, ok := sessionToken(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.token, token)
		})
	}
}
