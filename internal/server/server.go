// Package server provides the HTTP surface of the photo kiosk.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ayusman/posebooth/internal/kiosk"
	"github.com/ayusman/posebooth/internal/render"
	"github.com/ayusman/posebooth/internal/server/api"
	"github.com/ayusman/posebooth/internal/store"
)

// Kiosk is the running capture engine as seen by HTTP handlers.
type Kiosk interface {
	Snapshot() kiosk.Snapshot
	FrozenFrame() []byte
	Latest() (render.Rendered, bool)
	Running() bool
	Err() error
	Reset() error
	Retry(ctx context.Context) error
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Kiosk     Kiosk
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server represents the HTTP server for the kiosk.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Kiosk != nil {
		s.mux.HandleFunc("/api/state", s.handleState)
		s.mux.HandleFunc("/api/reset", s.handleReset)
		s.mux.HandleFunc("/api/retry", s.handleRetry)
		s.mux.HandleFunc("/api/frozen", s.handleFrozen)
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Kiosk))
		s.mux.Handle("/api/events", NewEventsHandler(s.config.Kiosk, s.config.Logger))
	}

	if s.config.Store != nil {
		captures := api.NewCaptureHandler(s.config.Store)
		s.mux.Handle("/api/captures", captures)
		s.mux.Handle("/api/captures/", captures)
	}

	if s.config.Metrics != nil {
		s.mux.Handle("/metrics", s.config.Metrics)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// handleHealth handles GET requests to /api/health. The kiosk reports
// "degraded" while its pipeline is down.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if k := s.config.Kiosk; k != nil {
		response["running"] = k.Running()
		if err := k.Err(); err != nil {
			response["status"] = "degraded"
			response["error"] = err.Error()
		}
	}

	writeJSON(w, http.StatusOK, response)
}

type stateResponse struct {
	kiosk.Snapshot
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

// handleState handles GET /api/state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) state() stateResponse {
	k := s.config.Kiosk
	resp := stateResponse{Snapshot: k.Snapshot(), Running: k.Running()}
	if err := k.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// handleReset handles POST /api/reset.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.config.Kiosk.Reset(); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

// handleRetry handles POST /api/retry after an initialization failure.
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// The engine outlives the request.
	if err := s.config.Kiosk.Retry(context.WithoutCancel(r.Context())); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

// handleFrozen handles GET /api/frozen and serves the frozen frame while a
// capture is being presented.
func (s *Server) handleFrozen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	frame := s.config.Kiosk.FrozenFrame()
	if frame == nil {
		http.Error(w, "No frozen frame", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(frame)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
