package server

import (
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"salience/internal/logging"
	"salience/internal/store"
)

// ownAssignment loads an assignment and checks the caller owns it.
func (s *Server) ownAssignment(w http.ResponseWriter, r *http.Request) (*store.Assignment, bool) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid assignment id")
		return nil, false
	}
	assignment, err := s.store.GetAssignmentByID(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return nil, false
	}
	if assignment.SpecialistID != currentUser(r).ID {
		s.writeError(w, http.StatusForbidden, "assignment belongs to another specialist")
		return nil, false
	}
	return assignment, true
}

func (s *Server) handleMyExperiments(w http.ResponseWriter, r *http.Request) {
	assignments, err := s.store.ListSpecialistAssignments(r.Context(), currentUser(r).ID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fromAssignments(assignments))
}

func (s *Server) handleStartAssignment(w http.ResponseWriter, r *http.Request) {
	assignment, ok := s.ownAssignment(w, r)
	if !ok {
		return
	}
	exp, err := s.store.GetExperiment(r.Context(), assignment.ExperimentID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if exp.Status != store.ExperimentActive {
		s.writeError(w, http.StatusConflict, "experiment is not active")
		return
	}

	seed := time.Now().UnixNano()
	if err := s.store.StartAssignment(r.Context(), assignment.ID, seed, rand.New(rand.NewSource(seed))); err != nil {
		s.writeStoreError(w, err)
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("assignment started",
		slog.Int64("assignment_id", assignment.ID),
		slog.Int64(logging.FieldExperimentID, assignment.ExperimentID))

	started, err := s.store.GetAssignmentByID(r.Context(), assignment.ID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fromAssignment(started))
}

func (s *Server) handleCurrentSample(w http.ResponseWriter, r *http.Request) {
	assignment, ok := s.ownAssignment(w, r)
	if !ok {
		return
	}

	current, err := s.store.CurrentSessionSample(r.Context(), assignment.ID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeJSON(w, http.StatusOK, currentResponse{Completed: true})
		return
	}
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	// Open a session on first sight of the sample so the annotation UI
	// always has one to complete against.
	sessionUUID := current.SessionUUID
	if current.SessionID == nil {
		session, err := s.store.CreateSession(r.Context(), assignment.ID, current.OrderEntry.ExperimentSampleID)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		sessionUUID = session.SessionUUID
	}

	exp, err := s.store.GetExperiment(r.Context(), assignment.ExperimentID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	progress, err := s.store.AssignmentProgress(r.Context(), assignment.ID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, currentResponse{
		Current: &CurrentSample{
			SessionUUID:     sessionUUID,
			SpecialistOrder: current.SpecialistOrder,
			TotalSamples:    progress.Total,
			Sample:          fromSample(&current.OrderEntry.Sample),
			Instructions:    exp.Instructions,
		},
	})
}

func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	sessionUUID := r.PathValue("uuid")
	if sessionUUID == "" {
		s.writeError(w, http.StatusBadRequest, "invalid session uuid")
		return
	}
	var req completeSessionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	session, err := s.store.GetSessionByUUID(r.Context(), sessionUUID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	assignment, err := s.store.GetAssignmentByID(r.Context(), session.AssignmentID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if assignment.SpecialistID != currentUser(r).ID {
		s.writeError(w, http.StatusForbidden, "session belongs to another specialist")
		return
	}

	annotations := make([]store.NewAnnotation, 0, len(req.Annotations))
	for _, body := range req.Annotations {
		if body.Type == "" {
			s.writeError(w, http.StatusBadRequest, "annotation type is required")
			return
		}
		annotations = append(annotations, store.NewAnnotation{
			Type:                 body.Type,
			Color:                body.Color,
			LanesJSON:            body.LanesJSON,
			BBoxNormalizedJSON:   body.BBoxNormalizedJSON,
			PointsNormalizedJSON: body.PointsNormalizedJSON,
			TimestampStartMS:     body.TimestampStartMS,
			TimestampEndMS:       body.TimestampEndMS,
		})
	}

	completion := store.SessionCompletion{
		AudioFilename:       req.AudioFilename,
		AudioDurationMS:     req.AudioDurationMS,
		ImageDimensionsJSON: req.ImageDimensionsJSON,
		LayoutSettingsJSON:  req.LayoutSettingsJSON,
	}
	if err := s.store.CompleteSession(r.Context(), session.ID, completion, annotations); err != nil {
		s.writeStoreError(w, err)
		return
	}

	progress, err := s.store.AssignmentProgress(r.Context(), assignment.ID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fromAssignmentProgress(progress))
}

func (s *Server) handleMyProgress(w http.ResponseWriter, r *http.Request) {
	assignment, ok := s.ownAssignment(w, r)
	if !ok {
		return
	}
	progress, err := s.store.AssignmentProgress(r.Context(), assignment.ID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fromAssignmentProgress(progress))
}
