package server

import (
	"net/http"
	"strconv"
	"strings"

	"salience/internal/auth"
	"salience/internal/store"
)

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleListSamples(w http.ResponseWriter, r *http.Request) {
	samples, err := s.store.ListSamples(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fromSamples(samples))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context(), true)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fromUsers(users))
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	role, ok := store.ParseRole(req.Role)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "role must be admin or specialist")
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Name) == "" {
		s.writeError(w, http.StatusBadRequest, "email and name are required")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.store.CreateUser(r.Context(), store.NewUser{
		Email:           req.Email,
		Name:            req.Name,
		PasswordHash:    hash,
		Role:            role,
		ExpertiseLevel:  req.ExpertiseLevel,
		YearsExperience: req.YearsExperience,
		TrainingDate:    req.TrainingDate,
		Institution:     req.Institution,
		Specializations: req.Specializations,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, fromUser(user))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req updateUserRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	update := store.UserUpdate{
		Email:           req.Email,
		Name:            req.Name,
		ExpertiseLevel:  req.ExpertiseLevel,
		YearsExperience: req.YearsExperience,
		TrainingDate:    req.TrainingDate,
		Institution:     req.Institution,
		Specializations: req.Specializations,
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		update.PasswordHash = &hash
	}

	user, err := s.store.UpdateUser(r.Context(), id, update)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fromUser(user))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if id == currentUser(r).ID {
		s.writeError(w, http.StatusConflict, "cannot deactivate your own account")
		return
	}
	if err := s.store.DeactivateUser(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (s *Server) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	experiments, err := s.store.ListExperiments(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fromExperiments(experiments))
}

func (s *Server) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	var req experimentRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	exp, err := s.store.CreateExperiment(r.Context(), store.NewExperiment{
		Name:         req.Name,
		Description:  req.Description,
		Instructions: req.Instructions,
		CreatedBy:    currentUser(r).ID,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, fromExperiment(exp))
}

func (s *Server) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid experiment id")
		return
	}
	exp, err := s.store.GetExperiment(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fromExperiment(exp))
}

func (s *Server) handleUpdateExperiment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid experiment id")
		return
	}
	var req experimentRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	update := store.ExperimentUpdate{}
	if req.Name != "" {
		update.Name = &req.Name
	}
	update.Description = &req.Description
	update.Instructions = &req.Instructions

	exp, err := s.store.UpdateExperiment(r.Context(), id, update)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fromExperiment(exp))
}

func (s *Server) handleDeleteExperiment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid experiment id")
		return
	}
	if err := s.store.DeleteExperiment(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleExperimentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid experiment id")
		return
	}
	var req experimentStatusRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	status, ok := store.ParseExperimentStatus(req.Status)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown experiment status")
		return
	}
	if err := s.store.UpdateExperimentStatus(r.Context(), id, status); err != nil {
		s.writeStoreError(w, err)
		return
	}
	exp, err := s.store.GetExperiment(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fromExperiment(exp))
}

func (s *Server) handleExperimentSamples(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid experiment id")
		return
	}
	entries, err := s.store.ExperimentSamples(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fromExperimentSamples(entries))
}

func (s *Server) handleSetExperimentSamples(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid experiment id")
		return
	}
	var req experimentSamplesRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if _, err := s.store.GetExperiment(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	if err := s.store.SetExperimentSamples(r.Context(), id, req.SampleIDs); err != nil {
		s.writeStoreError(w, err)
		return
	}
	entries, err := s.store.ExperimentSamples(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fromExperimentSamples(entries))
}

func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid experiment id")
		return
	}
	assignments, err := s.store.ListExperimentAssignments(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fromAssignments(assignments))
}

func (s *Server) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid experiment id")
		return
	}
	var req createAssignmentRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if _, err := s.store.GetExperiment(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	specialist, err := s.store.GetUser(r.Context(), req.SpecialistID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if specialist.Role != store.RoleSpecialist {
		s.writeError(w, http.StatusBadRequest, "user is not a specialist")
		return
	}
	assignment, err := s.store.CreateAssignment(r.Context(), id, specialist)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, fromAssignment(assignment))
}

func (s *Server) handleDeleteAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid assignment id")
		return
	}
	assignment, err := s.store.GetAssignmentByID(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	// Started assignments carry annotation work; removing them would orphan it.
	if assignment.Status != store.AssignmentAssigned {
		s.writeError(w, http.StatusConflict, "assignment already started")
		return
	}
	if err := s.store.DeleteAssignment(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleExperimentProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid experiment id")
		return
	}
	if _, err := s.store.GetExperiment(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	progress, err := s.store.ExperimentProgress(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fromExperimentProgress(progress))
}
