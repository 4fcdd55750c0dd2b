// Package quotes fetches real-time gold and dollar index quotes from public
// Chinese market data endpoints.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/aurum/internal/market"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

const (
	defaultTimeout = 5 * time.Second
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// ErrUnsupportedInstrument is returned by a source asked for an instrument it does not quote.
var ErrUnsupportedInstrument = errors.New("instrument not supported by source")

// Source is a single quote provider.
type Source interface {
	Name() string
	FetchQuote(ctx context.Context, inst market.Instrument) (market.Quote, error)
}

// NewHTTPClient returns a retrying HTTP client suitable for quote endpoints.
func NewHTTPClient(timeout time.Duration, log zerolog.Logger) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rc := &retryablehttp.Client{
		HTTPClient:   &http.Client{Timeout: timeout},
		Logger:       leveledLogger{log: log.With().Str("component", "quotes_http").Logger()},
		RetryWaitMin: 200 * time.Millisecond,
		RetryWaitMax: time.Second,
		RetryMax:     1,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.DefaultBackoff,
	}
	return rc.StandardClient()
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	log zerolog.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Error().Fields(kv).Msg(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Debug().Fields(kv).Msg(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Trace().Fields(kv).Msg(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Warn().Fields(kv).Msg(msg) }

// fetch performs a GET and returns the body, decoded from GB2312 when gbk is set.
func fetch(ctx context.Context, client *http.Client, url string, headers map[string]string, gbk bool) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if gbk {
		body = transform.NewReader(resp.Body, simplifiedchinese.GBK.NewDecoder())
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return string(raw), nil
}

// quotedFields extracts the comma separated payload of a `name="..."` JS assignment.
func quotedFields(body, variable string) ([]string, error) {
	re := regexp.MustCompile(regexp.QuoteMeta(variable) + `="([^"]*)"`)
	m := re.FindStringSubmatch(body)
	if m == nil || m[1] == "" {
		return nil, fmt.Errorf("variable %s not found in response", variable)
	}
	return strings.Split(m[1], ","), nil
}

// field parses fields[i] as a float, returning 0 for missing or blank values.
func field(fields []string, i int) float64 {
	if i >= len(fields) {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
	if err != nil {
		return 0
	}
	return v
}

// changePercent returns the percent change of price against prev.
func changePercent(price, prev float64) float64 {
	if prev <= 0 {
		return 0
	}
	return (price - prev) / prev * 100
}

// parseStamp combines a date and an optional time in loc, falling back to now.
func parseStamp(date, clock string, loc *time.Location, now time.Time) time.Time {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if date == "" {
		return now
	}
	if clock != "" {
		if t, err := time.ParseInLocation("2006-01-02 15:04:05", date+" "+clock, loc); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(market.DateLayout, date, loc); err == nil {
		return t
	}
	return now
}

func shanghai() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*3600)
	}
	return loc
}
