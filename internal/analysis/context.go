package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/aurum/internal/cache"
	"github.com/aristath/aurum/internal/market"
	"github.com/aristath/aurum/internal/news"
	"github.com/rs/zerolog"
)

const (
	newsWindow   = 24 * time.Hour
	newsMaxItems = 15
)

// MarketView is the part of the price service used for prompt context.
type MarketView interface {
	PriceInfo(ctx context.Context) (market.PriceInfo, error)
	Statistics(ctx context.Context) (market.PeriodStatistics, error)
	Indicators(ctx context.Context) (market.Indicators, error)
}

// NewsSource lists recent news.
type NewsSource interface {
	Since(ctx context.Context, since time.Time, limit int) ([]news.Item, error)
}

// ContextBuilder assembles the text context handed to generation prompts.
// Missing inputs degrade to a placeholder line rather than failing the run.
type ContextBuilder struct {
	market MarketView
	news   NewsSource
	cache  *cache.Store
	now    func() time.Time
	log    zerolog.Logger
}

// NewContextBuilder creates a context builder.
func NewContextBuilder(mv MarketView, ns NewsSource, store *cache.Store, log zerolog.Logger) *ContextBuilder {
	return &ContextBuilder{
		market: mv,
		news:   ns,
		cache:  store,
		now:    time.Now,
		log:    log.With().Str("component", "analysis_context").Logger(),
	}
}

// Market describes price, statistics, indicators and the last day of news.
func (b *ContextBuilder) Market(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "当前时间: %s\n\n", b.now().Format(lastUpdatedLayout))

	sb.WriteString("## 金价数据\n")
	if info, err := b.market.PriceInfo(ctx); err == nil {
		fmt.Fprintf(&sb, "- 当前价格: %.2f 美元/盎司\n", info.Price)
		fmt.Fprintf(&sb, "- 今日涨跌: %.2f%%\n", info.ChangePercent)
		fmt.Fprintf(&sb, "- 年初至今涨幅: %.2f%% (年初价 %.2f)\n", info.YTDReturn, info.YTDStartPrice)
		fmt.Fprintf(&sb, "- 市场状态: %s\n", info.Status)
	} else {
		b.log.Debug().Err(err).Msg("Price info unavailable for context")
		sb.WriteString("- 暂无实时价格\n")
	}

	if stats, err := b.market.Statistics(ctx); err == nil && stats.Bars > 0 {
		fmt.Fprintf(&sb, "- 区间最高: %.2f (%s)\n", stats.PeriodHigh, stats.PeriodHighDate)
		fmt.Fprintf(&sb, "- 区间最低: %.2f (%s)\n", stats.PeriodLow, stats.PeriodLowDate)
		fmt.Fprintf(&sb, "- 区间波动幅度: %.2f%%\n", stats.VolatilityRangePct)
	}

	if ind, err := b.market.Indicators(ctx); err == nil && ind.LastClose > 0 {
		sb.WriteString("\n## 技术指标\n")
		writeOptional(&sb, "RSI(14)", ind.RSI14)
		writeOptional(&sb, "SMA20", ind.SMA20)
		writeOptional(&sb, "SMA50", ind.SMA50)
		fmt.Fprintf(&sb, "- 年化波动率: %.2f%%\n", ind.AnnualizedVolatility)
		fmt.Fprintf(&sb, "- 30日涨跌: %.2f%%\n", ind.Return30D)
	}

	sb.WriteString("\n## 24小时新闻\n")
	items, err := b.news.Since(ctx, b.now().Add(-newsWindow), newsMaxItems)
	if err != nil {
		b.log.Debug().Err(err).Msg("News unavailable for context")
	}
	if len(items) == 0 {
		sb.WriteString("暂无最新新闻数据，请基于当前市场状况进行分析。\n")
	}
	for _, it := range items {
		fmt.Fprintf(&sb, "- [%s] %s\n", it.Source, it.Title)
	}

	return sb.String(), nil
}

// Dependent adds the bullish, bearish and institutional views (cached or
// default) to the market context, for the advice and summary artifacts.
func (b *ContextBuilder) Dependent(ctx context.Context) (string, error) {
	base, err := b.Market(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(base)

	bullish := DefaultBullish()
	b.load(cache.KeyBullishFactors, &bullish)
	sb.WriteString("\n## 看涨因素\n")
	writeFactors(&sb, bullish.Factors)

	bearish := DefaultBearish()
	b.load(cache.KeyBearishFactors, &bearish)
	sb.WriteString("\n## 看跌因素\n")
	writeFactors(&sb, bearish.Factors)

	inst := DefaultInstitutions()
	b.load(cache.KeyInstitutions, &inst)
	sb.WriteString("\n## 机构预测\n")
	for _, v := range inst.Institutions {
		fmt.Fprintf(&sb, "- %s: %s, 目标价 %.0f (%s)\n", v.Name, v.Rating, v.TargetPrice, v.Timeframe)
	}

	return sb.String(), nil
}

// load decodes the last cached payload for key into v, leaving v untouched on a miss.
func (b *ContextBuilder) load(key string, v interface{}) {
	e, _, ok := b.cache.GetStale(key)
	if !ok {
		return
	}
	if err := e.Decode(v); err != nil {
		b.log.Warn().Err(err).Str("key", key).Msg("Cached payload unreadable, using default")
	}
}

func writeFactors(sb *strings.Builder, factors []Factor) {
	for _, f := range factors {
		fmt.Fprintf(sb, "- [%s] %s: %s\n", f.Impact, f.Title, f.Subtitle)
	}
}

func writeOptional(sb *strings.Builder, label string, v *float64) {
	if v == nil {
		return
	}
	fmt.Fprintf(sb, "- %s: %.2f\n", label, *v)
}
