// Package rest serves the server-to-server HTTP surface: the remote folder
// endpoint peers delegate crawls to, plus version and metrics.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/custodia-labs/addrcrawl/internal/core/ports/driving"
	"github.com/custodia-labs/addrcrawl/internal/logger"
)

// RemoteFolderPath is the delegation endpoint.
const RemoteFolderPath = "/service/extension/contacts/remotefolder"

// ErrMissingRemoteFolderService is returned when the delegation service is not provided.
var ErrMissingRemoteFolderService = errors.New("rest: remote folder service is required")

// Ports aggregates what the HTTP server exposes.
type Ports struct {
	// RemoteFolder serves delegated crawls.
	RemoteFolder driving.RemoteFolderService

	// Metrics serves /metrics when set.
	Metrics http.Handler

	// MCP is mounted at /mcp when set.
	MCP http.Handler
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.RemoteFolder == nil {
		return ErrMissingRemoteFolderService
	}
	return nil
}

// Server is the HTTP server.
type Server struct {
	ports   *Ports
	version string
	router  chi.Router
}

// NewServer creates the HTTP server.
func NewServer(ports *Ports, version string) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, err
	}
	s := &Server{ports: ports, version: version}
	s.router = s.routes()
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger)

	router.Post(RemoteFolderPath, s.handleRemoteFolder)
	router.Get("/version", s.handleVersion)
	if s.ports.Metrics != nil {
		router.Handle("/metrics", s.ports.Metrics)
	}
	if s.ports.MCP != nil {
		router.Mount("/mcp", s.ports.MCP)
	}

	return router
}

// RunHTTP serves on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	logger.Info("Listening on %s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("%s %s %d %s [%s]", r.Method, r.URL.Path, ww.Status(), time.Since(start),
			chimiddleware.GetReqID(r.Context()))
	})
}
