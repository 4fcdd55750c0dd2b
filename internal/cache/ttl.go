package cache

import "time"

// Keys of every artifact and derived value held in the cache.
// Keys double as file names in the persistent layer.
const (
	KeyBullishFactors   = "bullish_factors"
	KeyBearishFactors   = "bearish_factors"
	KeyInstitutions     = "institution_predictions"
	KeyInvestmentAdvice = "investment_advice"
	KeyMarketSummary    = "market_summary"
	KeyRealtimeQuote    = "realtime_quote"
	KeyDollarQuote      = "realtime_dollar_index"
	KeyPriceInfo        = "price_info"
	KeyPeriodStatistics = "period_statistics"
)

// TTL constants for different data types.
const (
	// AI artifacts (regenerated every even hour by the scheduler)
	TTLFactors      = 2 * time.Hour // Bullish/bearish factor analysis
	TTLAdvice       = 2 * time.Hour // Investment advice
	TTLSummary      = 2 * time.Hour // Market summary
	TTLInstitutions = time.Hour     // Institutional forecasts change with news flow

	// Market data
	TTLRealtimeQuote    = 30 * time.Second
	TTLPriceInfo        = 5 * time.Minute
	TTLPeriodStatistics = 24 * time.Hour // Recomputed by the daily price job

	TTLDefault = 2 * time.Hour
)

// DefaultTTLs maps keys to their time-to-live.
var DefaultTTLs = map[string]time.Duration{
	KeyBullishFactors:   TTLFactors,
	KeyBearishFactors:   TTLFactors,
	KeyInstitutions:     TTLInstitutions,
	KeyInvestmentAdvice: TTLAdvice,
	KeyMarketSummary:    TTLSummary,
	KeyRealtimeQuote:    TTLRealtimeQuote,
	KeyDollarQuote:      TTLRealtimeQuote,
	KeyPriceInfo:        TTLPriceInfo,
	KeyPeriodStatistics: TTLPeriodStatistics,
}
