package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/addrcrawl/internal/core/ports/driven"
	"github.com/custodia-labs/addrcrawl/internal/logger"
)

// Version is the MCP server version.
const Version = "0.1.0"

// Path is where the streamable HTTP endpoint is served, both standalone
// and when mounted by the delegation server.
const Path = "/mcp"

// TokenScheme is the Authorization scheme HTTP callers must present.
const TokenScheme = "Token"

// ErrMissingVerifier is returned when MCP is served over HTTP without a
// way to authenticate callers.
var ErrMissingVerifier = errors.New("mcp: token verifier is required to serve over HTTP")

// Server is the MCP server for addrcrawl.
type Server struct {
	ports *Ports
	local *mcp.Server
}

// NewServer creates a new MCP server with the given ports.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{ports: ports}
	s.local = s.build(&session{ports: ports})
	return s, nil
}

// build creates an MCP server whose tools act for sess.
func (s *Server) build(sess *session) *mcp.Server {
	impl := &mcp.Implementation{
		Name:    "addrcrawl",
		Version: Version,
	}
	server := mcp.NewServer(impl, nil)
	sess.registerTools(server)
	sess.registerResources(server)
	return server
}

// Run serves MCP over stdio until ctx is cancelled. Stdio callers are the
// local operator and may crawl any account.
func (s *Server) Run(ctx context.Context) error {
	return s.local.Run(ctx, &mcp.StdioTransport{})
}

type sessionKey struct{}

// Handler returns the streamable HTTP handler of the server. Every request
// must carry "Authorization: Token <token>"; the tools then only crawl the
// account the token was issued to.
func (s *Server) Handler(verifier driven.TokenVerifier) (http.Handler, error) {
	if verifier == nil {
		return nil, ErrMissingVerifier
	}

	// Stateless: every request is served by a server bound to its own caller.
	streamable := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		sess, ok := r.Context().Value(sessionKey{}).(*session)
		if !ok {
			return nil
		}
		return s.build(sess)
	}, &mcp.StreamableHTTPOptions{Stateless: true})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := sessionToken(r.Header.Get("Authorization"))
		if !ok {
			writeUnauthorized(w)
			return
		}
		account, err := verifier.Verify(r.Context(), token)
		if err != nil {
			logger.Debug("MCP request refused: %v", err)
			writeUnauthorized(w)
			return
		}

		sess := &session{ports: s.ports, account: account, token: token}
		streamable.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	}), nil
}

// RunHTTP serves MCP over HTTP on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string, verifier driven.TokenVerifier) error {
	handler, err := s.Handler(verifier)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle(Path, handler)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("MCP shutdown: %v", err)
		}
	}()

	logger.Info("MCP listening on %s%s", addr, Path)
	err = httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// sessionToken extracts the token of a "Token <token>" header value.
// The scheme is matched case-insensitively.
func sessionToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, TokenScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", TokenScheme)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Authentication required."})
}
