package server

import (
	"net/http"

	"github.com/aristath/aurum/internal/news"
)

// handleListNews lists stored news, newest first
// GET /api/news?limit=&source=&sentiment=
func (s *Server) handleListNews(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 20, 200)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	f := news.Filter{
		Limit:     limit,
		Source:    r.URL.Query().Get("source"),
		Sentiment: r.URL.Query().Get("sentiment"),
	}
	switch f.Sentiment {
	case "", news.SentimentPositive, news.SentimentNeutral, news.SentimentNegative:
	default:
		s.writeError(w, http.StatusBadRequest, "sentiment must be positive, neutral or negative")
		return
	}

	items, err := s.cfg.News.List(r.Context(), f)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []news.Item{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// handleNewsSentiment counts stored news per sentiment
// GET /api/news/sentiment
func (s *Server) handleNewsSentiment(w http.ResponseWriter, r *http.Request) {
	summary, err := s.cfg.News.Summary(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}
