// Package httpapi exposes the session control surface over HTTP: starting
// a session, checking its status, submitting a decision, cancelling it,
// and subscribing to its event stream over a websocket. Routing follows
// chi's mux-with-middleware style rather than a framework like echo,
// matching the rest of the dependency pack's plain net/http handlers.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/specforge/trdgraph/internal/scheduler"
	"github.com/specforge/trdgraph/internal/store"
)

// Server wires the session-control HTTP surface to a Scheduler.
type Server struct {
	router *chi.Mux
	sched  *scheduler.Scheduler
	log    *slog.Logger
}

// NewServer builds the router and registers every route.
func NewServer(sched *scheduler.Scheduler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{router: chi.NewRouter(), sched: sched, log: log}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleStart)
		r.Get("/{sessionID}", s.handleStatus)
		r.Post("/{sessionID}/decisions", s.handleSubmitDecision)
		r.Post("/{sessionID}/cancel", s.handleCancel)
		r.Get("/{sessionID}/events", s.handleSubscribe)
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startRequest struct {
	ProjectID     string `json:"project_id"`
	UserID        string `json:"user_id"`
	UpstreamJobID string `json:"upstream_job_id"`
}

type startResponse struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.ProjectID == "" || req.UserID == "" || req.UpstreamJobID == "" {
		writeError(w, http.StatusBadRequest, "project_id, user_id, and upstream_job_id are required")
		return
	}

	sessionID, err := s.sched.Start(r.Context(), req.ProjectID, req.UserID, req.UpstreamJobID)
	if err != nil {
		s.log.Error("failed to start session", "error", err, "project_id", req.ProjectID)
		writeError(w, http.StatusInternalServerError, "could not start session")
		return
	}
	writeJSON(w, http.StatusAccepted, startResponse{SessionID: sessionID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	view, err := s.sched.Status(r.Context(), sessionID)
	if err != nil {
		writeNotFoundOrServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type submitDecisionRequest struct {
	UserID          string                 `json:"user_id"`
	ClientRequestID string                 `json:"client_request_id"`
	Decision        map[string]interface{} `json:"decision"`
}

func (s *Server) handleSubmitDecision(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req submitDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	err := s.sched.SubmitDecision(r.Context(), sessionID, req.UserID, req.ClientRequestID, req.Decision)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	case errors.Is(err, scheduler.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, scheduler.ErrNotWaiting):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, scheduler.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	default:
		s.log.Error("submit_decision failed", "error", err, "session_id", sessionID)
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.sched.Cancel(r.Context(), sessionID); err != nil {
		writeNotFoundOrServerError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

var upgrader = websocket.Upgrader{
	// The dashboard and the API may be served from different origins in
	// local/dev setups; tighten this to an allowlist before exposing the
	// surface publicly.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// handleSubscribe upgrades to a websocket and streams every events.Event
// published for the session as JSON, one message per frame, until the
// client disconnects or the subscription is closed.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err, "session_id", sessionID)
		return
	}
	defer conn.Close()

	ch, unsubscribe := s.sched.Subscribe(sessionID)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain client frames (pings/close) on their own goroutine so a
	// disconnect is noticed even while we are blocked writing events.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeNotFoundOrServerError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
