package server

import "net/http"

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	allocations, err := s.tags.List(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, allocations)
}

func (s *Server) handleAllocateTags(w http.ResponseWriter, r *http.Request) {
	var req allocateTagsRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.SampleID != nil && req.ReallocateAll {
		s.writeError(w, http.StatusBadRequest, "sample_id and reallocate_all are mutually exclusive")
		return
	}

	switch {
	case req.SampleID != nil:
		allocation, err := s.tags.AllocateSample(r.Context(), *req.SampleID, req.DryRun)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, allocation)
	case req.ReallocateAll:
		plan, err := s.tags.ReallocateAll(r.Context(), req.DryRun)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, plan)
	default:
		plan, err := s.tags.AllocateMissing(r.Context(), req.DryRun)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, plan)
	}
}

func (s *Server) handleIdentifyTags(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	sample, ok, err := s.tags.Identify(r.Context(), req.DetectedTags)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if !ok {
		s.writeJSON(w, http.StatusOK, identifyResponse{Identified: false})
		return
	}
	dto := fromSample(sample)
	s.writeJSON(w, http.StatusOK, identifyResponse{Identified: true, Sample: &dto})
}
