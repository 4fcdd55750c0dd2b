package server

import (
	"net/http"

	"github.com/aristath/aurum/internal/market"
)

const (
	defaultHistoryDays = 30
	maxHistoryDays     = 3650
)

func instrumentParam(r *http.Request) (market.Instrument, bool) {
	raw := r.URL.Query().Get("series")
	if raw == "" {
		return market.Gold, true
	}
	inst := market.Instrument(raw)
	return inst, inst.Valid()
}

// handleRealtime serves the current quote
// GET /api/prices/realtime?series=gold|dollar_index
func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	inst, ok := instrumentParam(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "series must be gold or dollar_index")
		return
	}

	view, err := s.cfg.Prices.RealtimeQuote(r.Context(), inst)
	if err != nil {
		s.log.Warn().Err(err).Str("series", string(inst)).Msg("No quote available")
		s.writeError(w, http.StatusServiceUnavailable, "no quote available")
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// handlePriceInfo serves the price summary shown above the analysis
// GET /api/prices/info
func (s *Server) handlePriceInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.cfg.Prices.PriceInfo(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// handleHistory serves daily bars, oldest first
// GET /api/prices/history?days=N&series=gold|dollar_index
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	inst, ok := instrumentParam(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "series must be gold or dollar_index")
		return
	}
	days, ok := queryInt(r, "days", defaultHistoryDays, maxHistoryDays)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "days must be a positive integer")
		return
	}

	bars, err := s.cfg.Prices.History(r.Context(), inst, days)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bars == nil {
		bars = market.Series{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"series": inst,
		"days":   days,
		"bars":   bars,
	})
}

// handleStatistics serves the period high/low
// GET /api/prices/statistics
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cfg.Prices.Statistics(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// handleIndicators serves technical indicators
// GET /api/prices/indicators
func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	ind, err := s.cfg.Prices.Indicators(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, ind)
}

// handleCorrelation serves the gold / dollar index correlation
// GET /api/prices/correlation?days=N
func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	days, ok := queryInt(r, "days", 90, maxHistoryDays)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "days must be a positive integer")
		return
	}

	res, err := s.cfg.Prices.Correlation(r.Context(), days)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}
