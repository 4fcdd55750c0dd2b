package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/aurum/internal/refresh"
)

// handleGetAnalysis serves an artifact. Reads never fail with a 5xx: a miss
// is answered with the default payload and status "analyzing".
// GET /api/analysis/{kind}?refresh=true
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")

	force := false
	if raw := r.URL.Query().Get("refresh"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "refresh must be a boolean")
			return
		}
		force = v
	}

	resp, err := s.cfg.Analysis.Read(r.Context(), kind, force)
	if errors.Is(err, refresh.ErrUnknownKind) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleRefreshAnalysis schedules a background production
// POST /api/analysis/{kind}/refresh
func (s *Server) handleRefreshAnalysis(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")

	scheduled, err := s.cfg.Analysis.Refresh(kind)
	if errors.Is(err, refresh.ErrUnknownKind) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	message := "refresh scheduled"
	if !scheduled {
		message = "refresh already in progress or queue full"
	}
	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"kind":      kind,
		"scheduled": scheduled,
		"message":   message,
	})
}
