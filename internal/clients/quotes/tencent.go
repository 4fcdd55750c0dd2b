package quotes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/aurum/internal/market"
)

// Tencent quotes COMEX gold from qt.gtimg.cn.
type Tencent struct {
	baseURL string
	client  *http.Client
	loc     *time.Location
	now     func() time.Time
}

// NewTencent creates a Tencent quote source.
func NewTencent(client *http.Client) *Tencent {
	return &Tencent{
		baseURL: "https://qt.gtimg.cn",
		client:  client,
		loc:     shanghai(),
		now:     time.Now,
	}
}

func (t *Tencent) Name() string { return "tencent" }

// layout: [0]price [2]open [3]high [4]low [7]prev close [12]date
func (t *Tencent) FetchQuote(ctx context.Context, inst market.Instrument) (market.Quote, error) {
	if inst != market.Gold {
		return market.Quote{}, ErrUnsupportedInstrument
	}

	body, err := fetch(ctx, t.client, t.baseURL+"/q=hf_GC", nil, true)
	if err != nil {
		return market.Quote{}, err
	}
	f, err := quotedFields(body, "v_hf_GC")
	if err != nil {
		return market.Quote{}, err
	}
	if len(f) < 13 {
		return market.Quote{}, fmt.Errorf("short hf_GC payload: %d fields", len(f))
	}

	q := market.Quote{
		Instrument:    market.Gold,
		Price:         field(f, 0),
		Open:          field(f, 2),
		High:          field(f, 3),
		Low:           field(f, 4),
		PreviousClose: field(f, 7),
		Timestamp:     parseStamp(f[12], "", t.loc, t.now()),
		Source:        t.Name(),
	}
	if q.Price <= 0 {
		return market.Quote{}, fmt.Errorf("invalid hf_GC price %q", f[0])
	}
	q.ChangePercent = changePercent(q.Price, q.PreviousClose)
	return q, nil
}
