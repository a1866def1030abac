package app

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/flashloan-bot/business/arbitrage/domain"
	pricingApp "github.com/fd1az/flashloan-bot/business/pricing/app"
	pricingDomain "github.com/fd1az/flashloan-bot/business/pricing/domain"
	"github.com/fd1az/flashloan-bot/internal/asset"
	"github.com/fd1az/flashloan-bot/internal/config"
	"github.com/fd1az/flashloan-bot/internal/logger"
)

const (
	tracerName = "github.com/fd1az/flashloan-bot/business/arbitrage/app"
	meterName  = "github.com/fd1az/flashloan-bot/business/arbitrage/app"
)

// FinderConfig holds opportunity detection thresholds.
type FinderConfig struct {
	Venues             []config.VenueConfig
	MinSpreadPct       decimal.Decimal
	OracleDeviationPct decimal.Decimal
}

// finderMetrics holds OTEL metric instruments.
type finderMetrics struct {
	scans         metric.Int64Counter
	opportunities metric.Int64Counter
	quotesDropped metric.Int64Counter
}

// Finder compares venue quotes for a pair and emits an opportunity when
// the spread clears the minimum. Venue failures are isolated: a dead venue
// costs one quote, never the scan.
type Finder struct {
	quotes *pricingApp.QuoteService
	oracle pricingApp.ReferenceOracle
	config FinderConfig
	logger logger.LoggerInterface

	tracer  trace.Tracer
	metrics *finderMetrics
}

// NewFinder creates an opportunity finder.
func NewFinder(
	quotes *pricingApp.QuoteService,
	oracle pricingApp.ReferenceOracle,
	cfg FinderConfig,
	log logger.LoggerInterface,
) (*Finder, error) {
	f := &Finder{
		quotes: quotes,
		oracle: oracle,
		config: cfg,
		logger: log,
		tracer: otel.Tracer(tracerName),
	}
	if err := f.initMetrics(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Finder) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	f.metrics = &finderMetrics{}

	f.metrics.scans, err = meter.Int64Counter(
		"arb_scans_total",
		metric.WithDescription("Total pair scans"),
		metric.WithUnit("{scan}"),
	)
	if err != nil {
		return err
	}

	f.metrics.opportunities, err = meter.Int64Counter(
		"arb_opportunities_total",
		metric.WithDescription("Opportunities emitted"),
		metric.WithUnit("{opportunity}"),
	)
	if err != nil {
		return err
	}

	f.metrics.quotesDropped, err = meter.Int64Counter(
		"arb_quotes_dropped_total",
		metric.WithDescription("Quotes dropped by oracle deviation validation"),
		metric.WithUnit("{quote}"),
	)
	return err
}

// FindOpportunity scans all configured venues for the pair at the given
// borrow size. Returns nil when there is nothing to do: fewer than two
// usable venues, spread below the minimum, or every quote filtered out.
func (f *Finder) FindOpportunity(ctx context.Context, pair pricingDomain.Pair, amountIn asset.Amount) *domain.Opportunity {
	ctx, span := f.tracer.Start(ctx, "arb.find_opportunity",
		trace.WithAttributes(
			attribute.String("pair", pair.String()),
			attribute.String("amount_in", amountIn.Raw().String()),
		),
	)
	defer span.End()

	f.metrics.scans.Add(ctx, 1)

	quotes := f.collectQuotes(ctx, pair, amountIn)
	if len(quotes) < 2 {
		span.AddEvent("not_enough_venues",
			trace.WithAttributes(attribute.Int("quotes", len(quotes))))
		return nil
	}

	quotes = f.validateAgainstOracle(ctx, pair, quotes)
	if len(quotes) < 2 {
		span.AddEvent("not_enough_venues_after_validation",
			trace.WithAttributes(attribute.Int("quotes", len(quotes))))
		return nil
	}

	// Ascending by price; ties break lexicographically by venue id so the
	// choice is deterministic across runs.
	sort.Slice(quotes, func(i, j int) bool {
		if quotes[i].Price.Equal(quotes[j].Price) {
			return quotes[i].VenueID < quotes[j].VenueID
		}
		return quotes[i].Price.LessThan(quotes[j].Price)
	})

	buy := quotes[0]
	sell := quotes[len(quotes)-1]

	if !sell.Price.GreaterThan(buy.Price) {
		span.AddEvent("no_price_gap")
		return nil
	}

	opp := domain.NewOpportunity(pair, buy, sell, amountIn)
	if !opp.SpreadPct.GreaterThan(f.config.MinSpreadPct) {
		span.AddEvent("spread_below_minimum",
			trace.WithAttributes(attribute.String("spread_pct", opp.SpreadPct.String())))
		return nil
	}

	f.metrics.opportunities.Add(ctx, 1)
	f.logger.Info(ctx, "opportunity found",
		"pair", pair.String(),
		"buy_venue", opp.BuyVenue(),
		"sell_venue", opp.SellVenue(),
		"spread_pct", opp.SpreadPct.StringFixed(4),
		"borrow", opp.BorrowAmount.String(),
	)

	span.SetAttributes(
		attribute.String("buy_venue", opp.BuyVenue()),
		attribute.String("sell_venue", opp.SellVenue()),
		attribute.String("spread_pct", opp.SpreadPct.String()),
	)
	return opp
}

// collectQuotes fans out to every venue concurrently. A venue that has
// nothing, or that fails, simply contributes no quote.
func (f *Finder) collectQuotes(ctx context.Context, pair pricingDomain.Pair, amountIn asset.Amount) []*pricingDomain.Quote {
	var mu sync.Mutex
	quotes := make([]*pricingDomain.Quote, 0, len(f.config.Venues))

	g, ctx := errgroup.WithContext(ctx)
	for _, venue := range f.config.Venues {
		g.Go(func() error {
			if q := f.quotes.GetQuote(ctx, venue, amountIn, pair.Quote); q != nil {
				mu.Lock()
				quotes = append(quotes, q)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait() // per-venue failures are swallowed upstream

	return quotes
}

// validateAgainstOracle drops quotes whose price deviates from the
// oracle's implied cross-rate by more than the tolerance. When the oracle
// has no usable data for either asset the validation is skipped entirely.
// Fallback-flagged prices count as unavailable: the static table does not
// follow the market, so checking live quotes against it during a feed
// outage would drop every genuine opportunity.
func (f *Finder) validateAgainstOracle(ctx context.Context, pair pricingDomain.Pair, quotes []*pricingDomain.Quote) []*pricingDomain.Quote {
	prices := f.oracle.GetPrices(ctx, []string{pair.Base.Symbol(), pair.Quote.Symbol()})

	basePrice := prices[pair.Base.Symbol()]
	quotePrice := prices[pair.Quote.Symbol()]
	if !basePrice.USD.IsPositive() || !quotePrice.USD.IsPositive() ||
		basePrice.Fallback || quotePrice.Fallback {
		f.logger.Debug(ctx, "oracle data unavailable, skipping validation",
			"pair", pair.String(),
		)
		return quotes
	}

	crossRate := basePrice.USD.Div(quotePrice.USD)
	kept := quotes[:0]
	for _, q := range quotes {
		deviation := q.Price.Sub(crossRate).Abs().
			Div(crossRate).
			Mul(decimal.NewFromInt(100))
		if deviation.GreaterThan(f.config.OracleDeviationPct) {
			f.metrics.quotesDropped.Add(ctx, 1)
			f.logger.Warn(ctx, "quote deviates from oracle, dropping",
				"venue", q.VenueID,
				"price", q.Price.String(),
				"oracle_rate", crossRate.StringFixed(6),
				"deviation_pct", deviation.StringFixed(2),
			)
			continue
		}
		kept = append(kept, q)
	}
	return kept
}
