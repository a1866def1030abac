package app

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashloan-bot/business/pricing/domain"
	"github.com/fd1az/flashloan-bot/internal/asset"
	"github.com/fd1az/flashloan-bot/internal/cache"
	"github.com/fd1az/flashloan-bot/internal/config"
	"github.com/fd1az/flashloan-bot/internal/logger"
	"github.com/fd1az/flashloan-bot/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/flashloan-bot/business/pricing/app"
	meterName  = "github.com/fd1az/flashloan-bot/business/pricing/app"
)

// quoteKey identifies one cached quote. A typed struct key, so address
// casing or amount formatting can never alias two different requests.
type quoteKey struct {
	VenueID  string
	TokenIn  asset.ID
	TokenOut asset.ID
	AmountIn string // raw units, canonical base-10
}

// quoteServiceMetrics holds OTEL metric instruments.
type quoteServiceMetrics struct {
	quotesTotal metric.Int64Counter
	quoteMisses metric.Int64Counter
	cacheHits   metric.Int64Counter
}

// QuoteService fans quote requests out to the venue-type quoters, caching
// successful quotes for a short TTL and rate limiting the RPC volume.
type QuoteService struct {
	quoters  map[config.VenueType]VenueQuoter
	cache    *cache.Cache[quoteKey, *domain.Quote]
	quoteTTL time.Duration
	limiter  *ratelimit.Limiter
	logger   logger.LoggerInterface

	tracer  trace.Tracer
	metrics *quoteServiceMetrics
}

// NewQuoteService creates a QuoteService. limiter may be nil (unlimited).
func NewQuoteService(
	quoters map[config.VenueType]VenueQuoter,
	quoteTTL time.Duration,
	limiter *ratelimit.Limiter,
	log logger.LoggerInterface,
) (*QuoteService, error) {
	s := &QuoteService{
		quoters:  quoters,
		cache:    cache.New[quoteKey, *domain.Quote](time.Minute),
		quoteTTL: quoteTTL,
		limiter:  limiter,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *QuoteService) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &quoteServiceMetrics{}

	s.metrics.quotesTotal, err = meter.Int64Counter(
		"venue_quotes_total",
		metric.WithDescription("Total venue quote requests"),
		metric.WithUnit("{quote}"),
	)
	if err != nil {
		return err
	}

	s.metrics.quoteMisses, err = meter.Int64Counter(
		"venue_quote_misses_total",
		metric.WithDescription("Venue quote requests that produced no quote"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return err
	}

	s.metrics.cacheHits, err = meter.Int64Counter(
		"venue_quote_cache_hits_total",
		metric.WithDescription("Venue quote cache hits"),
		metric.WithUnit("{hit}"),
	)
	return err
}

// GetQuote returns a quote for swapping amountIn into tokenOut on the given
// venue, or nil when the venue has nothing usable. Per-venue failures are
// logged at debug and reported as "no quote" - partial venue availability
// is the expected steady state.
func (s *QuoteService) GetQuote(ctx context.Context, venue config.VenueConfig, amountIn asset.Amount, tokenOut *asset.Asset) *domain.Quote {
	ctx, span := s.tracer.Start(ctx, "pricing.get_quote",
		trace.WithAttributes(
			attribute.String("venue", venue.ID),
			attribute.String("token_in", amountIn.Asset().Symbol()),
			attribute.String("token_out", tokenOut.Symbol()),
		),
	)
	defer span.End()

	s.metrics.quotesTotal.Add(ctx, 1)

	key := quoteKey{
		VenueID:  venue.ID,
		TokenIn:  amountIn.Asset().ID(),
		TokenOut: tokenOut.ID(),
		AmountIn: amountIn.Raw().String(),
	}

	if q, ok := s.cache.Get(ctx, key); ok {
		s.metrics.cacheHits.Add(ctx, 1)
		span.AddEvent("cache_hit")
		return q
	}

	quoter, ok := s.quoters[venue.Type]
	if !ok {
		s.logger.Warn(ctx, "no quoter for venue type", "venue", venue.ID, "type", venue.Type)
		s.metrics.quoteMisses.Add(ctx, 1)
		return nil
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			s.logger.Debug(ctx, "rate limiter wait aborted", "venue", venue.ID, "error", err)
			s.metrics.quoteMisses.Add(ctx, 1)
			return nil
		}
	}

	quote, err := quoter.GetQuote(ctx, venue, amountIn, tokenOut)
	if err != nil {
		s.logger.Debug(ctx, "venue quote failed",
			"venue", venue.ID,
			"token_in", amountIn.Asset().Symbol(),
			"token_out", tokenOut.Symbol(),
			"error", err,
		)
		s.metrics.quoteMisses.Add(ctx, 1)
		return nil
	}
	if quote == nil {
		s.logger.Debug(ctx, "venue returned no quote",
			"venue", venue.ID,
			"token_in", amountIn.Asset().Symbol(),
			"token_out", tokenOut.Symbol(),
		)
		s.metrics.quoteMisses.Add(ctx, 1)
		return nil
	}

	s.cache.Set(ctx, key, quote, s.quoteTTL)

	span.SetAttributes(attribute.String("price", quote.Price.String()))
	return quote
}

// Close releases the quote cache.
func (s *QuoteService) Close() {
	s.cache.Close()
}
