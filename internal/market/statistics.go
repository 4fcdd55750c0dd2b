package market

import "time"

// PeriodStatistics summarises the full bar history up to a date.
type PeriodStatistics struct {
	PeriodHigh         float64   `json:"period_high"`
	PeriodHighDate     string    `json:"period_high_date,omitempty"`
	PeriodLow          float64   `json:"period_low"`
	PeriodLowDate      string    `json:"period_low_date,omitempty"`
	VolatilityRangePct float64   `json:"volatility_range"`
	Bars               int       `json:"bars"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// RecomputeStatistics scans all bars dated on or before asOf for the highest
// high and lowest low. Ties go to the most recent date.
func RecomputeStatistics(series Series, asOf time.Time) PeriodStatistics {
	stats := PeriodStatistics{UpdatedAt: asOf}
	cutoff := DateOf(asOf)

	for _, b := range series.sorted() {
		if b.Date > cutoff {
			break
		}
		hi, lo := effectiveHigh(b), effectiveLow(b)
		if stats.Bars == 0 || hi >= stats.PeriodHigh {
			stats.PeriodHigh = hi
			stats.PeriodHighDate = b.Date
		}
		if stats.Bars == 0 || lo <= stats.PeriodLow {
			stats.PeriodLow = lo
			stats.PeriodLowDate = b.Date
		}
		stats.Bars++
	}

	if stats.PeriodLow > 0 {
		stats.VolatilityRangePct = round((stats.PeriodHigh-stats.PeriodLow)/stats.PeriodLow*100, 2)
	}
	return stats
}

// Bars recorded from close-only sources carry zero high/low.
func effectiveHigh(b PriceBar) float64 {
	if b.High > 0 {
		return b.High
	}
	return b.Close
}

func effectiveLow(b PriceBar) float64 {
	if b.Low > 0 {
		return b.Low
	}
	return b.Close
}

// MarketStatus classifies a daily change.
type MarketStatus string

const (
	StatusStrongUp   MarketStatus = "strong_up"
	StatusUp         MarketStatus = "up"
	StatusFlat       MarketStatus = "flat"
	StatusDown       MarketStatus = "down"
	StatusStrongDown MarketStatus = "strong_down"
)

// ClassifyChange maps a percent change to a market status.
func ClassifyChange(changePct float64) MarketStatus {
	switch {
	case changePct > 1:
		return StatusStrongUp
	case changePct > 0:
		return StatusUp
	case changePct < -1:
		return StatusStrongDown
	case changePct < 0:
		return StatusDown
	default:
		return StatusFlat
	}
}

// YTDReturn returns the percent return of price against the year's start price.
func YTDReturn(price, startPrice float64) float64 {
	if startPrice <= 0 {
		return 0
	}
	return round((price-startPrice)/startPrice*100, 2)
}
