package market

import "time"

// IsTradingDay reports whether date falls Monday to Friday.
func IsTradingDay(date time.Time) bool {
	wd := date.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// MergeQuote folds a real-time quote into the bar for tradingDate.
//
// A missing bar is created from the quote. An existing bar keeps its open,
// widens high/low and takes the quote price as close. ChangePercent is
// recomputed against the nearest earlier bar, and the following bar's change
// is refreshed if one exists. Non-trading dates leave the series unchanged.
// The input is never modified; merging the same quote twice is a no-op.
func MergeQuote(series Series, q Quote, tradingDate time.Time) Series {
	out := series.sorted()
	if !IsTradingDay(tradingDate) || q.Price <= 0 {
		return out
	}
	date := DateOf(tradingDate)

	high := q.High
	if high <= 0 {
		high = q.Price
	}
	low := q.Low
	if low <= 0 {
		low = q.Price
	}

	idx := out.Find(date)
	if idx < 0 {
		open := q.Open
		if open <= 0 {
			open = q.Price
		}
		out = append(out, PriceBar{
			Date:  date,
			Open:  open,
			High:  max(high, open, q.Price),
			Low:   min(low, open, q.Price),
			Close: q.Price,
		})
		out = out.sorted()
		idx = out.Find(date)
	} else {
		bar := &out[idx]
		bar.High = max(bar.High, high)
		bar.Low = min(bar.Low, low)
		bar.Close = q.Price
	}

	out[idx].ChangePercent = changeAgainst(out, idx, q.PreviousClose)
	if idx+1 < len(out) {
		out[idx+1].ChangePercent = changeAgainst(out, idx+1, 0)
	}

	return out
}

// changeAgainst computes bar idx's change versus the previous bar, falling
// back to fallbackPrev when idx is the first bar.
func changeAgainst(s Series, idx int, fallbackPrev float64) float64 {
	prev := fallbackPrev
	if idx > 0 {
		prev = s[idx-1].Close
	}
	if prev <= 0 {
		return s[idx].ChangePercent
	}
	return round((s[idx].Close-prev)/prev*100, 4)
}
