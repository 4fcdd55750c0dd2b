// Package news stores crawled gold news and serves it as analysis context.
package news

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	crawler "github.com/aristath/aurum/internal/clients/news"
)

// Sentiment values stored in gold_news.sentiment
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// Item is a stored news row.
type Item struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Sentiment   string    `json:"sentiment"`
}

// Filter narrows List results. Zero values mean no filter.
type Filter struct {
	Limit     int
	Source    string
	Sentiment string
}

// SentimentSummary counts stored items per sentiment.
type SentimentSummary struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
	Total    int `json:"total"`
}

// Repository provides access to gold_news.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new news repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertIfNew stores an article unless its URL is already known.
// Returns true when a row was inserted.
func (r *Repository) InsertIfNew(ctx context.Context, a crawler.Article) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO gold_news (title, content, source, url, published_at, sentiment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO NOTHING
	`, a.Title, a.Content, a.Source, a.URL, a.PublishedAt.Unix(), SentimentNeutral, time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("failed to insert news %s: %w", a.URL, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// List returns the newest items matching f.
func (r *Repository) List(ctx context.Context, f Filter) ([]Item, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}

	var (
		where []string
		args  []interface{}
	)
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}
	if f.Sentiment != "" {
		where = append(where, "sentiment = ?")
		args = append(args, f.Sentiment)
	}

	query := `SELECT id, title, content, source, url, published_at, sentiment FROM gold_news`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY published_at DESC, id DESC LIMIT ?"
	args = append(args, f.Limit)

	return r.query(ctx, query, args...)
}

// Since returns up to limit items published at or after since, newest first.
func (r *Repository) Since(ctx context.Context, since time.Time, limit int) ([]Item, error) {
	return r.query(ctx, `
		SELECT id, title, content, source, url, published_at, sentiment
		FROM gold_news
		WHERE published_at >= ?
		ORDER BY published_at DESC, id DESC
		LIMIT ?
	`, since.Unix(), limit)
}

// Summary counts items by sentiment.
func (r *Repository) Summary(ctx context.Context) (SentimentSummary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT sentiment, COUNT(*) FROM gold_news GROUP BY sentiment`)
	if err != nil {
		return SentimentSummary{}, fmt.Errorf("failed to query sentiment summary: %w", err)
	}
	defer rows.Close()

	var s SentimentSummary
	for rows.Next() {
		var sentiment string
		var n int
		if err := rows.Scan(&sentiment, &n); err != nil {
			return SentimentSummary{}, fmt.Errorf("failed to scan sentiment row: %w", err)
		}
		switch sentiment {
		case SentimentPositive:
			s.Positive = n
		case SentimentNegative:
			s.Negative = n
		default:
			s.Neutral += n
		}
		s.Total += n
	}
	return s, rows.Err()
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query news: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		var published int64
		if err := rows.Scan(&it.ID, &it.Title, &it.Content, &it.Source, &it.URL, &published, &it.Sentiment); err != nil {
			return nil, fmt.Errorf("failed to scan news row: %w", err)
		}
		it.PublishedAt = time.Unix(published, 0)
		items = append(items, it)
	}
	return items, rows.Err()
}
