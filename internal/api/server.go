// Package api exposes the JSON HTTP surface: chat, reindex and health.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/pauldeveaux/portfolio/internal/log"
)

// Assistant runs one conversational turn.
type Assistant interface {
	Ask(ctx context.Context, sessionID, message string) (string, error)
}

// Indexer rebuilds the document index from the content source and
// returns the number of chunks indexed.
type Indexer interface {
	Reindex(ctx context.Context) (int, error)
}

// ServerConfig contains dependencies for the API server.
type ServerConfig struct {
	Logger    log.Logger
	Assistant Assistant // Required
	Indexer   Indexer   // Required

	// AdminSecret guards POST /api/reindex. Empty disables the endpoint.
	AdminSecret string
}

// Server is the JSON API HTTP server.
type Server struct {
	handler http.Handler
}

// NewServer creates a server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Assistant == nil {
		return nil, errors.New("assistant is required")
	}
	if cfg.Indexer == nil {
		return nil, errors.New("indexer is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ch := &chatHandler{assistant: cfg.Assistant, logger: logger}
	rh := &reindexHandler{indexer: cfg.Indexer, secret: cfg.AdminSecret, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", ch.send)
	mux.HandleFunc("POST /api/reindex", rh.reindex)

	// Middleware stack, outermost first: Recovery → Logging → Routes.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes stay outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("/", handler)

	return &Server{handler: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
