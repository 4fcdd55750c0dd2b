package quotes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/aurum/internal/market"
)

// Sina quotes COMEX gold (hf_GC) and the ICE dollar index (DINIW) from hq.sinajs.cn.
type Sina struct {
	baseURL string
	client  *http.Client
	loc     *time.Location
	now     func() time.Time
}

// NewSina creates a Sina quote source.
func NewSina(client *http.Client) *Sina {
	return &Sina{
		baseURL: "https://hq.sinajs.cn",
		client:  client,
		loc:     shanghai(),
		now:     time.Now,
	}
}

func (s *Sina) Name() string { return "sina" }

func (s *Sina) FetchQuote(ctx context.Context, inst market.Instrument) (market.Quote, error) {
	switch inst {
	case market.Gold:
		return s.gold(ctx)
	case market.DollarIndex:
		return s.dollarIndex(ctx)
	default:
		return market.Quote{}, ErrUnsupportedInstrument
	}
}

var sinaHeaders = map[string]string{
	"Referer":       "https://finance.sina.com.cn",
	"Cache-Control": "no-cache",
}

// gold layout: [0]price [4]high [5]low [6]time [7]prev close [8]open [12]date
func (s *Sina) gold(ctx context.Context) (market.Quote, error) {
	body, err := fetch(ctx, s.client, s.baseURL+"/list=hf_GC", sinaHeaders, true)
	if err != nil {
		return market.Quote{}, err
	}
	f, err := quotedFields(body, "hq_str_hf_GC")
	if err != nil {
		return market.Quote{}, err
	}
	if len(f) < 13 {
		return market.Quote{}, fmt.Errorf("short hf_GC payload: %d fields", len(f))
	}

	q := market.Quote{
		Instrument:    market.Gold,
		Price:         field(f, 0),
		High:          field(f, 4),
		Low:           field(f, 5),
		PreviousClose: field(f, 7),
		Open:          field(f, 8),
		Timestamp:     parseStamp(f[12], f[6], s.loc, s.now()),
		Source:        s.Name(),
	}
	if q.Price <= 0 {
		return market.Quote{}, fmt.Errorf("invalid hf_GC price %q", f[0])
	}
	q.ChangePercent = changePercent(q.Price, q.PreviousClose)
	return q, nil
}

// DINIW layout: [0]time [1]price [5]open [6]high [7]low [8]prev close
func (s *Sina) dollarIndex(ctx context.Context) (market.Quote, error) {
	body, err := fetch(ctx, s.client, s.baseURL+"/list=DINIW", sinaHeaders, true)
	if err != nil {
		return market.Quote{}, err
	}
	f, err := quotedFields(body, "hq_str_DINIW")
	if err != nil {
		return market.Quote{}, err
	}
	if len(f) < 10 {
		return market.Quote{}, fmt.Errorf("short DINIW payload: %d fields", len(f))
	}

	q := market.Quote{
		Instrument:    market.DollarIndex,
		Price:         field(f, 1),
		Open:          field(f, 5),
		High:          field(f, 6),
		Low:           field(f, 7),
		PreviousClose: field(f, 8),
		Timestamp:     s.now().In(s.loc),
		Source:        s.Name(),
	}
	if q.Price <= 0 {
		return market.Quote{}, fmt.Errorf("invalid DINIW price %q", f[1])
	}
	q.ChangePercent = changePercent(q.Price, q.PreviousClose)
	return q, nil
}
