package testing

import (
	"time"

	"github.com/aristath/aurum/internal/market"
)

// NewGoldSeriesFixture returns n consecutive weekday bars ending on end,
// with closes rising by step from start.
func NewGoldSeriesFixture(end time.Time, n int, start, step float64) market.Series {
	dates := make([]string, 0, n)
	for d := end; len(dates) < n; d = d.AddDate(0, 0, -1) {
		if market.IsTradingDay(d) {
			dates = append(dates, market.DateOf(d))
		}
	}

	series := make(market.Series, n)
	for i := 0; i < n; i++ {
		c := start + float64(i)*step
		series[i] = market.PriceBar{
			Date:  dates[n-1-i],
			Open:  c - step/2,
			High:  c + 5,
			Low:   c - 5,
			Close: c,
		}
	}
	return series
}

// BullishResponseFixture is a well-formed generation result for the bullish factors artifact.
const BullishResponseFixture = "```json\n" + `{
  "bullish_factors": [
    {
      "id": "fed-policy",
      "title": "美联储降息预期升温",
      "subtitle": "Fed rate cut expectations",
      "description": "Markets price in two cuts this year.",
      "details": ["CME FedWatch shows 70% odds", "Real yields falling", "Dollar weakening", "ETF inflows resume"],
      "impact": "high"
    },
    {
      "id": "central-bank",
      "title": "央行持续购金",
      "subtitle": "Central bank buying",
      "description": "Official sector purchases stay near record.",
      "details": ["PBoC added for 18 months", "Poland and India buying", "Reserve diversification", "De-dollarisation"],
      "impact": "high"
    }
  ],
  "analysis_summary": "Rate cuts and official demand support prices."
}` + "\n```"

// InstitutionsResponseFixture is a generation result with prose around the JSON object.
const InstitutionsResponseFixture = `Here is the latest institutional outlook:
{
  "institutions": [
    {"name": "Goldman Sachs", "logo": "GS", "rating": "bullish", "target_price": 3700, "timeframe": "2025年底", "reasoning": "Central bank demand", "key_points": ["ETF inflows", "Fed cuts"]},
    {"name": "UBS", "logo": "UBS", "rating": "bullish", "target_price": 3500, "timeframe": "12个月", "reasoning": "Geopolitical hedge", "key_points": ["Safe haven demand"]}
  ]
}
Let me know if you need more.`
