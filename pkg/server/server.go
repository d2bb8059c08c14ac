// Package server exposes the query pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/SiL3nTL00p/shinchan.ai/pkg/pipeline"
)

const (
	defaultReadHeaderTimeout = 10 * time.Second
	defaultShutdownTimeout   = 10 * time.Second

	// maxChatBodyBytes bounds request bodies on the chat endpoint.
	maxChatBodyBytes = 1 << 20
)

// QueryEngine is the pipeline surface the server depends on.
type QueryEngine interface {
	ProcessQuery(ctx context.Context, query, conversationID string) pipeline.Response
	ClearConversation(id string)
	SystemStats(ctx context.Context) (pipeline.SystemStats, error)
}

// Config configures a Server.
type Config struct {
	Logger   *slog.Logger
	Engine   QueryEngine
	Listener net.Listener

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Validate checks the config for required fields.
func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Engine == nil {
		return fmt.Errorf("engine is required")
	}
	if c.Listener == nil {
		return fmt.Errorf("listener is required")
	}
	return nil
}

// Server serves the chat API.
type Server struct {
	log      *slog.Logger
	cfg      Config
	engine   QueryEngine
	httpSrv  *http.Server
	listener net.Listener
}

// New builds a Server from cfg.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		log:      cfg.Logger,
		cfg:      cfg,
		engine:   cfg.Engine,
		listener: cfg.Listener,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.chatHandler)
	mux.HandleFunc("POST /api/conversations/clear", s.clearHandler)
	mux.HandleFunc("GET /api/stats", s.statsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok\n")); err != nil {
			s.log.Error("failed to write healthz response", "error", err)
		}
	})

	s.httpSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	serveErrCh := make(chan error, 1)

	go func() {
		if err := s.httpSrv.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("server: http server error", "error", err)
			serveErrCh <- fmt.Errorf("failed to serve HTTP: %w", err)
		}
	}()
	s.log.Info("server: http listening", "address", s.listener.Addr())

	select {
	case <-ctx.Done():
		s.log.Info("server: stopping", "reason", ctx.Err())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
		s.log.Info("server: shutdown complete")
		return nil
	case err := <-serveErrCh:
		return err
	}
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

type clearRequest struct {
	ConversationID string `json:"conversation_id"`
}

type clearResponse struct {
	Status         string `json:"status"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	body := http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Message == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}

	// A fresh conversation id keeps follow-up context working for
	// clients that don't manage their own ids.
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	resp := s.engine.ProcessQuery(r.Context(), req.Message, req.ConversationID)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) clearHandler(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	// An empty body clears everything.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	s.engine.ClearConversation(req.ConversationID)
	s.writeJSON(w, http.StatusOK, clearResponse{
		Status:         "cleared",
		ConversationID: req.ConversationID,
	})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.SystemStats(r.Context())
	if err != nil {
		s.log.Error("stats lookup failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to collect stats"})
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to write response", "error", err)
	}
}
