package news

import (
	"context"
	"fmt"

	crawler "github.com/aristath/aurum/internal/clients/news"
	"github.com/aristath/aurum/internal/events"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// Fetcher crawls a single feed.
type Fetcher interface {
	Fetch(ctx context.Context, feed crawler.Feed, limit int) ([]crawler.Article, error)
}

// IngestResult reports one crawl across all feeds.
type IngestResult struct {
	Fetched  int `json:"fetched"`
	Inserted int `json:"inserted"`
	Failed   int `json:"failed_feeds"`
}

// Service ingests news from the configured feeds.
type Service struct {
	repo    *Repository
	fetcher Fetcher
	feeds   []crawler.Feed
	limit   int
	bus     *events.Bus
	log     zerolog.Logger
}

// NewService creates a news ingestion service.
func NewService(repo *Repository, fetcher Fetcher, feeds []crawler.Feed, perFeedLimit int, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		fetcher: fetcher,
		feeds:   feeds,
		limit:   perFeedLimit,
		bus:     bus,
		log:     log.With().Str("service", "news").Logger(),
	}
}

// Ingest crawls every feed and stores unseen articles. A failing feed does not
// stop the others; the error is returned only when every feed failed.
func (s *Service) Ingest(ctx context.Context) (IngestResult, error) {
	if len(s.feeds) == 0 {
		return IngestResult{}, crawler.ErrNoFeeds
	}

	var (
		res  IngestResult
		errs *multierror.Error
	)
	for _, feed := range s.feeds {
		articles, err := s.fetcher.Fetch(ctx, feed, s.limit)
		if err != nil {
			s.log.Warn().Err(err).Str("source", feed.Source).Msg("Feed crawl failed")
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", feed.Source, err))
			res.Failed++
			continue
		}
		res.Fetched += len(articles)

		for _, a := range articles {
			inserted, err := s.repo.InsertIfNew(ctx, a)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
			if inserted {
				res.Inserted++
			}
		}
	}

	s.log.Info().
		Int("feeds", len(s.feeds)).
		Int("fetched", res.Fetched).
		Int("inserted", res.Inserted).
		Int("failed_feeds", res.Failed).
		Msg("News ingestion finished")

	s.bus.Emit("news", &events.NewsIngestedData{Fetched: res.Fetched, Inserted: res.Inserted})

	if res.Failed == len(s.feeds) {
		return res, errs.ErrorOrNil()
	}
	if errs != nil {
		s.log.Debug().Err(errs).Msg("Partial news ingestion errors")
	}
	return res, nil
}

// List returns stored news matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Item, error) {
	return s.repo.List(ctx, f)
}

// Summary returns the sentiment counts.
func (s *Service) Summary(ctx context.Context) (SentimentSummary, error) {
	return s.repo.Summary(ctx)
}
