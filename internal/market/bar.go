// Package market holds the daily OHLC series for gold and the dollar index:
// quote merging, period statistics, indicators and their persistence.
package market

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used as the unique bar key.
const DateLayout = "2006-01-02"

// Instrument identifies a price series.
type Instrument string

const (
	Gold        Instrument = "gold"
	DollarIndex Instrument = "dollar_index"
)

// Valid reports whether i is a known instrument.
func (i Instrument) Valid() bool {
	return i == Gold || i == DollarIndex
}

// PriceBar is one trading day of OHLC data. Date is unique within a series.
type PriceBar struct {
	Date          string  `json:"date"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	Volume        float64 `json:"volume"`
	ChangePercent float64 `json:"change_percent"`
}

// Series is a date-ordered list of bars.
type Series []PriceBar

// Quote is a single real-time observation from a quote source.
type Quote struct {
	Instrument    Instrument `json:"instrument"`
	Price         float64    `json:"price"`
	Open          float64    `json:"open"`
	High          float64    `json:"high"`
	Low           float64    `json:"low"`
	PreviousClose float64    `json:"previous_close"`
	ChangePercent float64    `json:"change_percent"`
	Timestamp     time.Time  `json:"timestamp"`
	Source        string     `json:"source"`
}

// DateOf formats t as a bar date in t's own location.
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

// Closes returns the close prices in series order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Latest returns the most recent bar.
func (s Series) Latest() (PriceBar, bool) {
	if len(s) == 0 {
		return PriceBar{}, false
	}
	return s[len(s)-1], true
}

// Find returns the index of the bar for date, or -1.
func (s Series) Find(date string) int {
	i := sort.Search(len(s), func(i int) bool { return s[i].Date >= date })
	if i < len(s) && s[i].Date == date {
		return i
	}
	return -1
}

// sorted returns a copy ordered by date.
func (s Series) sorted() Series {
	out := make(Series, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// round rounds half away from zero to places decimals.
func round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
