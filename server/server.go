// Package server exposes the review workflow over HTTP.
//
// Endpoints mirror the workflow operations one-to-one:
//
//	GET  /                   liveness probe
//	POST /run                start a session
//	POST /human-review       submit an approve/reject decision
//	GET  /state/{thread_id}  read-only session snapshot
//	GET  /metrics            Prometheus scrape endpoint
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/cerina/foundry-go/foundry"
	"github.com/cerina/foundry-go/workflow"
)

// Server routes HTTP requests to a Foundry instance.
type Server struct {
	foundry *foundry.Foundry
	log     *zap.Logger
	reg     *prometheus.Registry
}

// New constructs a Server. The registry may be nil, in which case
// /metrics serves the default gatherer.
func New(f *foundry.Foundry, log *zap.Logger, reg *prometheus.Registry) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{foundry: f, log: log, reg: reg}
}

// Handler builds the full HTTP handler, including CORS middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/run", s.handleRun).Methods(http.MethodPost)
	r.HandleFunc("/human-review", s.handleReview).Methods(http.MethodPost)
	r.HandleFunc("/state/{thread_id}", s.handleState).Methods(http.MethodGet)

	var metrics http.Handler = promhttp.Handler()
	if s.reg != nil {
		metrics = promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})
	}
	r.Handle("/metrics", metrics).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(r)
}

type runRequest struct {
	ThreadID  string `json:"thread_id"`
	UserQuery string `json:"user_query"`
}

type reviewRequest struct {
	ThreadID string `json:"thread_id"`
	Action   string `json:"action"`
	Feedback string `json:"feedback,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "foundry"})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.ThreadID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "thread_id is required"})
		return
	}

	report, err := s.foundry.Start(r.Context(), req.ThreadID, req.UserQuery)
	if err != nil {
		s.writeError(w, "run", req.ThreadID, err)
		return
	}

	s.log.Info("session started",
		zap.String("thread_id", req.ThreadID),
		zap.String("status", report.Status))
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.ThreadID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "thread_id is required"})
		return
	}
	if req.Action != foundry.ActionApprove && req.Action != foundry.ActionReject {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "action must be approve or reject"})
		return
	}

	report, err := s.foundry.Review(r.Context(), req.ThreadID, foundry.Decision{
		Action:   req.Action,
		Feedback: req.Feedback,
	})
	if err != nil {
		s.writeError(w, "human-review", req.ThreadID, err)
		return
	}

	s.log.Info("review submitted",
		zap.String("thread_id", req.ThreadID),
		zap.String("action", req.Action),
		zap.String("status", report.Status))
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["thread_id"]

	report, err := s.foundry.State(r.Context(), threadID)
	if err != nil {
		s.writeError(w, "state", threadID, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// writeError maps workflow errors to HTTP statuses: unknown sessions
// are 404, resuming a non-suspended session is a 409 conflict, and
// anything else is a 500.
func (s *Server) writeError(w http.ResponseWriter, op, threadID string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workflow.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workflow.ErrNotSuspended):
		status = http.StatusConflict
	}

	s.log.Warn("request failed",
		zap.String("op", op),
		zap.String("thread_id", threadID),
		zap.Int("status", status),
		zap.Error(err))
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
