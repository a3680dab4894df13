// Package api serves the card event stream over WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/SimplyPrint/jcstorage-demo/internal/journal"
	"github.com/SimplyPrint/jcstorage-demo/internal/logging"
)

// Build information, set with -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func versionInfo() map[string]string {
	return map[string]string{
		"version":   Version,
		"buildTime": BuildTime,
		"gitCommit": GitCommit,
	}
}

// History lists the recorded cards.
type History interface {
	All() ([]journal.Sighting, error)
}

// Server exposes the hub and a few read-only endpoints.
type Server struct {
	addr    string
	session string
	hub     *WSHub
	history History
	http    *http.Server
}

// NewServer returns a server for addr. history may be nil.
func NewServer(addr, session string, hub *WSHub, history History) *Server {
	s := &Server{addr: addr, session: session, hub: hub, history: history}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/logs", s.handleLogs)
	return mux
}

// ListenAndServe serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logging.Info(logging.CatEvents, "Event server listening", map[string]any{"addr": ln.Addr().String()})

	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.hub.Stop()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn(logging.CatEvents, "WebSocket upgrade failed", map[string]any{"error": err.Error()})
		return
	}
	client := &WSClient{hub: s.hub, srv: s, conn: conn, send: make(chan []byte, sendBuffer)}

	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"session": s.session,
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, versionInfo())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "card journal disabled"})
		return
	}
	all, err := s.history.All()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, all)
}

// handleLogs returns the buffered log entries, newest first. It accepts the
// limit, level and category query parameters.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	var minLevel *logging.Level
	if v := q.Get("level"); v != "" {
		level, err := logging.ParseLevel(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		minLevel = &level
	}

	var category *logging.Category
	if v := q.Get("category"); v != "" {
		c := logging.Category(v)
		category = &c
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": logging.Get().GetEntries(limit, minLevel, category),
		"stats":   logging.Get().Stats(),
	})
}
