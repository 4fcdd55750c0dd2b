package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/aurum/internal/market"
)

// EastMoney quotes London gold (secid 103.XAUUSD) from push2.eastmoney.com.
type EastMoney struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

// NewEastMoney creates an EastMoney quote source.
func NewEastMoney(client *http.Client) *EastMoney {
	return &EastMoney{
		baseURL: "https://push2.eastmoney.com",
		client:  client,
		now:     time.Now,
	}
}

func (e *EastMoney) Name() string { return "eastmoney" }

// Prices are reported in hundredths.
type eastMoneyResponse struct {
	Data *struct {
		Latest    float64 `json:"f43"`
		High      float64 `json:"f44"`
		Low       float64 `json:"f45"`
		Open      float64 `json:"f46"`
		PrevClose float64 `json:"f60"`
	} `json:"data"`
}

func (e *EastMoney) FetchQuote(ctx context.Context, inst market.Instrument) (market.Quote, error) {
	if inst != market.Gold {
		return market.Quote{}, ErrUnsupportedInstrument
	}

	url := e.baseURL + "/api/qt/stock/get?secid=103.XAUUSD&fields=f43,f44,f45,f46,f60&_=" +
		strconv.FormatInt(e.now().UnixMilli(), 10)
	body, err := fetch(ctx, e.client, url, nil, false)
	if err != nil {
		return market.Quote{}, err
	}

	var resp eastMoneyResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return market.Quote{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Data == nil || resp.Data.Latest <= 0 {
		return market.Quote{}, fmt.Errorf("empty quote payload")
	}

	d := resp.Data
	q := market.Quote{
		Instrument:    market.Gold,
		Price:         d.Latest / 100,
		High:          d.High / 100,
		Low:           d.Low / 100,
		Open:          d.Open / 100,
		PreviousClose: d.PrevClose / 100,
		Timestamp:     e.now(),
		Source:        e.Name(),
	}
	q.ChangePercent = changePercent(q.Price, q.PreviousClose)
	return q, nil
}
