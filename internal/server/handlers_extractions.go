package server

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/jonathan/job-extractor/internal/db"
)

// maxListLimit caps the limit query parameter.
const maxListLimit = 500

// handleListExtractions lists recorded extractions, newest first.
// Query params: site, host, limit.
func (s *Server) handleListExtractions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, &ErrNotConfigured{Feature: "database"})
		return
	}

	q := r.URL.Query()
	filters := db.ExtractionFilters{
		Site: q.Get("site"),
		Host: q.Get("host"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			s.writeError(w, r, &ErrValidation{Field: "limit", Message: "must be between 1 and " + strconv.Itoa(maxListLimit)})
			return
		}
		filters.Limit = limit
	}

	items, err := s.store.ListExtractions(r.Context(), filters)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []db.Extraction{}
	}
	s.jsonResponse(w, r, http.StatusOK, map[string]any{
		"extractions": items,
		"count":       len(items),
	})
}

// handleGetExtraction returns one recorded extraction.
func (s *Server) handleGetExtraction(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, &ErrNotConfigured{Feature: "database"})
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, &ErrValidation{Field: "id", Message: "must be a UUID"})
		return
	}
	item, err := s.store.GetExtraction(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if item == nil {
		s.errorResponse(w, r, http.StatusNotFound, "extraction not found")
		return
	}
	s.jsonResponse(w, r, http.StatusOK, item)
}
