// Package api provides the HTTP and WebSocket surface of the daemon.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"globalmkh/internal/input"
)

// Capture is the part of the input emitter the API drives.
type Capture interface {
	On(name input.EventName, fn input.Handler) (*input.Subscription, error)
	Pause(cat input.Category) (bool, error)
	Resume(cat input.Category) (bool, error)
	Toggle(cat input.Category) (bool, error)
	ToggleAll() (bool, error)
	Status() input.Status
	Watch(fn func(input.Category, input.CategoryState))
}

// Server provides HTTP API for remote control
type Server struct {
	capture Capture
	token   string
	log     zerolog.Logger
	wsMgr   *WSManager
	handler http.Handler
}

// NewServer creates a new API server. An empty token disables auth.
func NewServer(c Capture, token string, log zerolog.Logger) *Server {
	s := &Server{
		capture: c,
		token:   token,
		log:     log,
	}
	s.wsMgr = newWSManager(s)
	go s.wsMgr.start()

	c.Watch(func(input.Category, input.CategoryState) {
		s.wsMgr.BroadcastState()
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/pause", s.handleTransition(opPause))
	mux.HandleFunc("/api/resume", s.handleTransition(opResume))
	mux.HandleFunc("/api/toggle", s.handleTransition(opToggle))
	mux.HandleFunc("/ws", s.wsMgr.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	s.handler = s.authMiddleware(s.recoverMiddleware(mux))

	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens on addr and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.log.Error().Err(err).Str("addr", addr).Msg("API server failed to listen")
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("API server listening")
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error().Err(err).Msg("API server stopped")
		return err
	}
	return nil
}

// Close disconnects WebSocket clients and stops the hub.
func (s *Server) Close() {
	s.wsMgr.stop()
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.log.Error().Interface("panic", err).Str("path", r.URL.Path).Msg("handler panicked")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks API token if configured. WebSocket clients that
// cannot set headers may pass ?token= instead.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("request")

		if r.URL.Path == "/health" || s.token == "" {
			next.ServeHTTP(w, r)
			return
		}

		got := r.URL.Query().Get("token")
		if h := r.Header.Get("Authorization"); h != "" {
			got = trimBearer(h)
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func trimBearer(h string) string {
	const prefix = "Bearer "
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

type transitionOp int

const (
	opPause transitionOp = iota
	opResume
	opToggle
)

// transitionResult is one category's outcome of a pause, resume or toggle.
type transitionResult struct {
	Category input.Category `json:"category"`
	Changed  bool           `json:"changed"`
	Paused   bool           `json:"paused"`
	Error    string         `json:"error,omitempty"`
}

// handleTransition handles POST /api/{pause,resume,toggle}?category=<mouse|keyboard|all>
func (s *Server) handleTransition(op transitionOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		cats, err := parseCategories(r.URL.Query().Get("category"))
		if err != nil {
			writeError(w, err)
			return
		}

		status := http.StatusOK
		results := make([]transitionResult, 0, len(cats))
		for _, cat := range cats {
			var changed bool
			switch op {
			case opPause:
				changed, err = s.capture.Pause(cat)
			case opResume:
				changed, err = s.capture.Resume(cat)
			default:
				changed, err = s.capture.Toggle(cat)
			}
			res := transitionResult{
				Category: cat,
				Changed:  changed,
				Paused:   s.capture.Status().Categories[cat].Paused,
			}
			if err != nil {
				res.Error = err.Error()
				status = statusFor(err)
				s.log.Warn().Err(err).Str("category", string(cat)).Msg("transition failed")
			}
			results = append(results, res)
		}

		writeJSON(w, status, map[string]any{"results": results})
	}
}

// parseCategories accepts a category name, "all" or an empty string (all).
func parseCategories(s string) ([]input.Category, error) {
	if s == "" || s == "all" {
		return input.Categories, nil
	}
	cat, err := input.ParseCategory(s)
	if err != nil {
		return nil, err
	}
	return []input.Category{cat}, nil
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.capture.Status())
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps input errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, input.ErrUnknownEvent), errors.Is(err, input.ErrUnknownCategory):
		return http.StatusBadRequest
	case errors.Is(err, input.ErrInstallFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, input.ErrProviderRejected):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
