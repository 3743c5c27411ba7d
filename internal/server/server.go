// Package server exposes the HTTP API consumed by the annotation frontend
// and the operator CLI.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"salience/internal/apriltag"
	"salience/internal/auth"
	"salience/internal/config"
	"salience/internal/logging"
	"salience/internal/store"
	"salience/internal/tagging"
)

// Server routes API requests. It is a plain http.Handler; listener lifecycle
// belongs to the daemon.
type Server struct {
	cfg    *config.Config
	store  *store.Store
	tags   *tagging.Service
	tokens *auth.Tokens
	logger *slog.Logger
	mux    *http.ServeMux
}

// New wires the API server against an open store.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.TokenTTL())
	if err != nil {
		return nil, fmt.Errorf("configure tokens: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Server{
		cfg:    cfg,
		store:  st,
		tags:   tagging.NewService(st, cfg.TagConfig(), logger),
		tokens: tokens,
		logger: logging.WithComponent(logger, "api-server"),
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	mux := s.mux

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.Handle("GET /media/", http.StripPrefix("/media/",
		http.FileServer(http.Dir(s.cfg.Paths.MediaDir))))

	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.Handle("GET /api/auth/me", s.authenticated(s.handleMe))

	admin := func(h http.HandlerFunc) http.Handler { return s.requireRole(store.RoleAdmin, h) }
	mux.Handle("GET /api/admin/samples", admin(s.handleListSamples))

	mux.Handle("GET /api/admin/users", admin(s.handleListUsers))
	mux.Handle("POST /api/admin/users", admin(s.handleCreateUser))
	mux.Handle("PUT /api/admin/users/{id}", admin(s.handleUpdateUser))
	mux.Handle("DELETE /api/admin/users/{id}", admin(s.handleDeleteUser))

	mux.Handle("GET /api/admin/experiments", admin(s.handleListExperiments))
	mux.Handle("POST /api/admin/experiments", admin(s.handleCreateExperiment))
	mux.Handle("GET /api/admin/experiments/{id}", admin(s.handleGetExperiment))
	mux.Handle("PUT /api/admin/experiments/{id}", admin(s.handleUpdateExperiment))
	mux.Handle("DELETE /api/admin/experiments/{id}", admin(s.handleDeleteExperiment))
	mux.Handle("PUT /api/admin/experiments/{id}/status", admin(s.handleExperimentStatus))
	mux.Handle("GET /api/admin/experiments/{id}/samples", admin(s.handleExperimentSamples))
	mux.Handle("PUT /api/admin/experiments/{id}/samples", admin(s.handleSetExperimentSamples))
	mux.Handle("GET /api/admin/experiments/{id}/assignments", admin(s.handleListAssignments))
	mux.Handle("POST /api/admin/experiments/{id}/assignments", admin(s.handleCreateAssignment))
	mux.Handle("GET /api/admin/experiments/{id}/progress", admin(s.handleExperimentProgress))
	mux.Handle("DELETE /api/admin/assignments/{id}", admin(s.handleDeleteAssignment))

	mux.Handle("GET /api/admin/tags", admin(s.handleListTags))
	mux.Handle("POST /api/admin/tags/allocate", admin(s.handleAllocateTags))
	mux.Handle("POST /api/admin/tags/identify", admin(s.handleIdentifyTags))

	specialist := func(h http.HandlerFunc) http.Handler { return s.requireRole(store.RoleSpecialist, h) }
	mux.Handle("GET /api/specialist/experiments", specialist(s.handleMyExperiments))
	mux.Handle("POST /api/specialist/assignments/{id}/start", specialist(s.handleStartAssignment))
	mux.Handle("GET /api/specialist/assignments/{id}/current", specialist(s.handleCurrentSample))
	mux.Handle("GET /api/specialist/assignments/{id}/progress", specialist(s.handleMyProgress))
	mux.Handle("POST /api/specialist/sessions/{uuid}/complete", specialist(s.handleCompleteSession))
}

// ServeHTTP implements http.Handler. Every request gets a correlation ID so
// log lines from one request can be stitched together.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logging.ContextWithRequestID(r.Context(), uuid.NewString())
	s.mux.ServeHTTP(w, r.WithContext(ctx))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	samples, err := s.store.ListSamples(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	allocations, err := s.store.Allocations(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{
		Status:  "ok",
		Samples: len(samples),
		Tagged:  len(allocations),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeStoreError maps domain errors onto HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	var capErr *apriltag.CapacityError
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConflict), errors.Is(err, tagging.ErrAlreadyAllocated):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &capErr):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.writeError(w, http.StatusUnauthorized, err.Error())
	default:
		s.logger.Error("request failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, into any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(into); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
