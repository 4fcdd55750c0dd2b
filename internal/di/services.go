package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/aurum/internal/analysis"
	"github.com/aristath/aurum/internal/artifact"
	"github.com/aristath/aurum/internal/cache"
	"github.com/aristath/aurum/internal/clients/llm"
	crawler "github.com/aristath/aurum/internal/clients/news"
	"github.com/aristath/aurum/internal/clients/quotes"
	"github.com/aristath/aurum/internal/config"
	"github.com/aristath/aurum/internal/market"
	"github.com/aristath/aurum/internal/news"
	"github.com/aristath/aurum/internal/refresh"
	"github.com/aristath/aurum/internal/reliability"
	"github.com/aristath/aurum/internal/work"
	"github.com/rs/zerolog"
)

const (
	quoteTimeout = 5 * time.Second

	// Institution rows younger than this window are served from the database
	// when the cache entry is gone.
	institutionsWindow  = 2 * time.Hour
	institutionsMinRows = 4
)

// InitializeServices creates the clients, the domain services, the worker pool
// and the refresh coordinator.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", cfg.Scheduler.Timezone, err)
	}

	// Quote sources, tried in order until one answers
	httpClient := quotes.NewHTTPClient(quoteTimeout, log)
	container.Quotes = quotes.NewChain(container.Metrics, log,
		quotes.NewSina(httpClient),
		quotes.NewEastMoney(httpClient),
		quotes.NewTencent(httpClient),
	)

	container.Providers = newProviders(cfg.LLM, container, log)
	container.Crawler = crawler.NewCrawler(log)

	container.MarketService = market.NewService(
		container.MarketRepo,
		container.Quotes,
		container.Cache,
		container.Bus,
		cfg.YTDStartPrice,
		loc,
		log,
	)

	container.NewsService = news.NewService(
		container.NewsRepo,
		container.Crawler,
		crawler.ParseFeeds(cfg.News.Feeds),
		cfg.News.PerFeedLimit,
		container.Bus,
		log,
	)

	container.Analysis = analysis.NewRegistry(analysis.Deps{
		Context:      analysis.NewContextBuilder(container.MarketService, container.NewsRepo, container.Cache, log),
		Factors:      container.FactorRepo,
		Institutions: container.InstitutionRepo,
		Producer: artifact.Deps{
			Providers: container.Providers,
			Cache:     container.Cache,
			Snapshots: container.SnapshotRepo,
			Metrics:   container.Metrics,
			Bus:       container.Bus,
			Log:       log,
		},
	})

	// The scheduled analysis job runs every kind back to back inside one task
	kinds := len(container.Analysis.Kinds())
	container.WorkerPool = work.NewPool(work.Config{
		Workers:   cfg.WorkerPoolSize,
		QueueSize: cfg.WorkerQueueSize,
		Timeout:   time.Duration(max(kinds, 1)) * cfg.Scheduler.ProducerTimeout,
	}, container.Metrics, log)

	container.Coordinator = refresh.NewCoordinator(
		container.Analysis,
		container.Cache,
		container.WorkerPool,
		log,
		refresh.WithTier(cache.KeyInstitutions, analysis.InstitutionsTier(container.InstitutionRepo, institutionsWindow, institutionsMinRows)),
		refresh.WithMetrics(container.Metrics),
		refresh.WithBus(container.Bus),
	)

	if cfg.Backup.Enabled() {
		s3Client, err := reliability.NewS3Client(context.Background(), reliability.S3Config{
			Bucket:    cfg.Backup.Bucket,
			Endpoint:  cfg.Backup.Endpoint,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup client: %w", err)
		}
		container.Backup = reliability.NewBackupService(
			container.DB.Conn(),
			cfg.DataDir,
			cfg.CacheDir,
			s3Client,
			cfg.Backup.Retention,
			log,
		)
	}

	log.Info().
		Int("providers", len(container.Providers)).
		Int("feeds", len(cfg.News.Feeds)).
		Bool("backup", container.Backup != nil).
		Msg("Services initialized")

	return nil
}

// newProviders returns the configured generation providers in fallback order.
func newProviders(cfg config.LLMConfig, container *Container, log zerolog.Logger) []llm.Provider {
	var providers []llm.Provider
	if cfg.ZhipuAPIKey != "" {
		providers = append(providers, llm.NewZhipu(cfg.ZhipuAPIKey, cfg.ZhipuBaseURL, cfg.ZhipuModel, cfg.Timeout, container.Metrics, log))
	}
	if cfg.DeepSeekAPIKey != "" {
		providers = append(providers, llm.NewDeepSeek(cfg.DeepSeekAPIKey, cfg.DeepSeekBaseURL, cfg.DeepSeekModel, cfg.Timeout, container.Metrics, log))
	}
	if len(providers) == 0 {
		log.Warn().Msg("No LLM provider configured, analysis endpoints will serve defaults")
	}
	return providers
}
