package quotes

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/aurum/internal/market"
	"github.com/aristath/aurum/internal/metrics"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// ErrSourceUnavailable is returned when every source failed for an instrument.
var ErrSourceUnavailable = errors.New("no quote source available")

// Chain tries its sources in order and returns the first valid quote.
type Chain struct {
	sources []Source
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewChain creates a fallback chain. m may be nil.
func NewChain(m *metrics.Metrics, log zerolog.Logger, sources ...Source) *Chain {
	return &Chain{
		sources: sources,
		metrics: m,
		log:     log.With().Str("client", "quotes").Logger(),
	}
}

// FetchQuote implements market.QuoteFetcher.
func (c *Chain) FetchQuote(ctx context.Context, inst market.Instrument) (market.Quote, error) {
	var errs *multierror.Error
	for _, src := range c.sources {
		q, err := src.FetchQuote(ctx, inst)
		if errors.Is(err, ErrUnsupportedInstrument) {
			continue
		}
		c.metrics.QuoteFetch(src.Name(), err)
		if err == nil {
			c.log.Debug().
				Str("instrument", string(inst)).
				Str("source", src.Name()).
				Float64("price", q.Price).
				Msg("Fetched quote")
			return q, nil
		}

		c.log.Warn().Err(err).Str("instrument", string(inst)).Str("source", src.Name()).Msg("Quote source failed")
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", src.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}

	if errs == nil {
		return market.Quote{}, fmt.Errorf("%w for %s", ErrSourceUnavailable, inst)
	}
	return market.Quote{}, fmt.Errorf("%w for %s: %v", ErrSourceUnavailable, inst, errs.ErrorOrNil())
}
