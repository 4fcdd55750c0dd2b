package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/aurum/internal/cache"
	"github.com/aristath/aurum/internal/events"
)

// handleCacheStatus lists keys held by each layer
// GET /api/cache/status
func (s *Server) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cfg.Cache.Status())
}

// handleClearCacheKey drops one key from both layers
// DELETE /api/cache/{key}
func (s *Server) handleClearCacheKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	if err := s.cfg.Cache.Clear(key); err != nil {
		if errors.Is(err, cache.ErrInvalidKey) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.cfg.Bus.Emit("cache", &events.CacheClearedData{Key: key})
	s.writeJSON(w, http.StatusOK, map[string]string{"cleared": key})
}

// handleClearCache drops every key
// DELETE /api/cache
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.cfg.Cache.ClearAll()
	s.cfg.Bus.Emit("cache", &events.CacheClearedData{})
	s.writeJSON(w, http.StatusOK, map[string]string{"cleared": "all"})
}
