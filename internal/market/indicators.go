package market

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// Indicators are technical readings fed into analysis prompts.
// Pointer fields are nil when the series is too short.
type Indicators struct {
	LastClose            float64  `json:"last_close"`
	RSI14                *float64 `json:"rsi_14,omitempty"`
	SMA20                *float64 `json:"sma_20,omitempty"`
	SMA50                *float64 `json:"sma_50,omitempty"`
	AnnualizedVolatility float64  `json:"annualized_volatility"`
	Return30D            float64  `json:"return_30d"`
}

// ComputeIndicators derives RSI, moving averages and volatility from closes.
func ComputeIndicators(series Series) Indicators {
	s := series.sorted()
	closes := s.Closes()
	ind := Indicators{}
	if len(closes) == 0 {
		return ind
	}
	ind.LastClose = closes[len(closes)-1]

	if len(closes) > 14 {
		ind.RSI14 = lastValid(talib.Rsi(closes, 14))
	}
	if len(closes) >= 20 {
		ind.SMA20 = lastValid(talib.Sma(closes, 20))
	}
	if len(closes) >= 50 {
		ind.SMA50 = lastValid(talib.Sma(closes, 50))
	}

	returns := dailyReturns(closes)
	if len(returns) > 1 {
		ind.AnnualizedVolatility = round(stat.StdDev(returns, nil)*math.Sqrt(252)*100, 2)
	}
	if len(closes) > 30 {
		base := closes[len(closes)-31]
		if base > 0 {
			ind.Return30D = round((ind.LastClose-base)/base*100, 2)
		}
	}

	return ind
}

// Correlation is the Pearson correlation of daily returns between two series,
// aligned on the dates both contain. Returns 0 with fewer than 3 shared dates.
func Correlation(a, b Series) (float64, int) {
	bClose := make(map[string]float64, len(b))
	for _, bar := range b {
		bClose[bar.Date] = bar.Close
	}

	var xa, xb []float64
	for _, bar := range a.sorted() {
		if c, ok := bClose[bar.Date]; ok {
			xa = append(xa, bar.Close)
			xb = append(xb, c)
		}
	}
	if len(xa) < 3 {
		return 0, len(xa)
	}

	ra, rb := dailyReturns(xa), dailyReturns(xb)
	c := stat.Correlation(ra, rb, nil)
	if math.IsNaN(c) {
		return 0, len(xa)
	}
	return round(c, 4), len(xa)
}

func dailyReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			out = append(out, (prices[i]-prices[i-1])/prices[i-1])
		}
	}
	return out
}

func lastValid(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	v := values[len(values)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	v = round(v, 2)
	return &v
}
