package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if s.cfg.DB != nil {
		if err := s.cfg.DB.HealthCheck(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("Health check failed")
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"service":   "aurum",
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSONBody(w, status, data, s.log)
}

func writeJSONBody(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error body
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// queryInt parses a positive integer query parameter clamped to [1, max].
func queryInt(r *http.Request, name string, def, max int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return min(n, max), true
}
