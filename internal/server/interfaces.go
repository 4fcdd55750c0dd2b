package server

import (
	"context"

	"github.com/aristath/aurum/internal/market"
	"github.com/aristath/aurum/internal/news"
	"github.com/aristath/aurum/internal/refresh"
	"github.com/aristath/aurum/internal/scheduler"
	"github.com/aristath/aurum/internal/updatelog"
	"github.com/aristath/aurum/internal/work"
)

// AnalysisService serves analysis artifacts
type AnalysisService interface {
	Read(ctx context.Context, kind string, force bool) (refresh.Response, error)
	Refresh(kind string) (bool, error)
	InFlight() []refresh.Lease
}

// PriceService serves quotes, bars and derived statistics
type PriceService interface {
	RealtimeQuote(ctx context.Context, inst market.Instrument) (market.QuoteView, error)
	PriceInfo(ctx context.Context) (market.PriceInfo, error)
	History(ctx context.Context, inst market.Instrument, days int) (market.Series, error)
	Statistics(ctx context.Context) (market.PeriodStatistics, error)
	Indicators(ctx context.Context) (market.Indicators, error)
	Correlation(ctx context.Context, days int) (market.CorrelationResult, error)
}

// NewsService lists stored news
type NewsService interface {
	List(ctx context.Context, f news.Filter) ([]news.Item, error)
	Summary(ctx context.Context) (news.SentimentSummary, error)
}

// UpdateLog lists recent scheduled updates
type UpdateLog interface {
	Recent(ctx context.Context, dataType string, limit int) ([]updatelog.Entry, error)
}

// PoolStats reports the work pool state
type PoolStats interface {
	Stats() work.Stats
}

// JobLister lists scheduled jobs
type JobLister interface {
	Jobs() []scheduler.JobInfo
}
