// Package chainlink serves USD reference prices from on-chain price feed
// aggregators, degrading to a static fallback table when a feed misbehaves.
package chainlink

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/flashloan-bot/business/pricing/app"
	"github.com/fd1az/flashloan-bot/business/pricing/domain"
	"github.com/fd1az/flashloan-bot/internal/apperror"
	"github.com/fd1az/flashloan-bot/internal/cache"
	"github.com/fd1az/flashloan-bot/internal/circuitbreaker"
	"github.com/fd1az/flashloan-bot/internal/config"
	"github.com/fd1az/flashloan-bot/internal/logger"
)

const tracerName = "github.com/fd1az/flashloan-bot/business/pricing/infra/chainlink"

// ContractCaller abstracts eth_call so tests can stand in for a node.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Ensure Oracle implements ReferenceOracle.
var _ app.ReferenceOracle = (*Oracle)(nil)

// Oracle reads Chainlink aggregators and caches the results. A feed answer
// is accepted only when it is positive and younger than maxStaleness;
// anything else falls back to the static table, marked as such. Fallback
// prices are never cached so a recovered feed takes over on the next call.
type Oracle struct {
	caller        ContractCaller
	aggregatorABI abi.ABI

	feeds    map[string]common.Address
	fallback map[string]decimal.Decimal

	cacheTTL     time.Duration
	maxStaleness time.Duration
	prices       *cache.Cache[string, domain.ReferencePrice]

	decimalsMu sync.Mutex
	decimals   map[string]int32 // per feed, fetched once

	logger logger.LoggerInterface
	cb     *circuitbreaker.CircuitBreaker[[]byte]
	tracer trace.Tracer

	now func() time.Time
}

// NewOracle creates a reference price oracle from the feed configuration.
func NewOracle(caller ContractCaller, cfg config.OracleConfig, log logger.LoggerInterface) (*Oracle, error) {
	aggregatorABI, err := abi.JSON(strings.NewReader(AggregatorV3ABI))
	if err != nil {
		return nil, fmt.Errorf("parse aggregator ABI: %w", err)
	}

	feeds := make(map[string]common.Address, len(cfg.Feeds))
	for symbol, addr := range cfg.Feeds {
		feeds[symbol] = common.HexToAddress(addr)
	}
	fallback := make(map[string]decimal.Decimal, len(cfg.FallbackPrices))
	for symbol, usd := range cfg.FallbackPrices {
		fallback[symbol] = decimal.NewFromFloat(usd)
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	maxStaleness := cfg.MaxStaleness
	if maxStaleness <= 0 {
		maxStaleness = time.Hour
	}

	return &Oracle{
		caller:        caller,
		aggregatorABI: aggregatorABI,
		feeds:         feeds,
		fallback:      fallback,
		cacheTTL:      cacheTTL,
		maxStaleness:  maxStaleness,
		prices:        cache.New[string, domain.ReferencePrice](time.Minute),
		decimals:      make(map[string]int32),
		logger:        log,
		cb:            circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("chainlink-oracle")),
		tracer:        otel.Tracer(tracerName),
		now:           time.Now,
	}, nil
}

// Close releases the price cache.
func (o *Oracle) Close() {
	o.prices.Close()
}

// GetPrice returns the USD reference price for a symbol. It never fails:
// a missing feed, a dead RPC, a stale round or a non-positive answer all
// degrade to the fallback table.
func (o *Oracle) GetPrice(ctx context.Context, symbol string) domain.ReferencePrice {
	ctx, span := o.tracer.Start(ctx, "chainlink.get_price",
		trace.WithAttributes(attribute.String("symbol", symbol)),
	)
	defer span.End()

	if cached, ok := o.prices.Get(ctx, symbol); ok {
		span.AddEvent("cache_hit")
		return cached
	}

	price, err := o.readFeed(ctx, symbol)
	if err != nil {
		o.logger.Warn(ctx, "reference feed unavailable, using fallback",
			"symbol", symbol,
			"error", err.Error(),
		)
		span.AddEvent("fallback",
			trace.WithAttributes(attribute.String("error", err.Error())),
		)
		return o.fallbackPrice(symbol)
	}

	o.prices.Set(ctx, symbol, price, o.cacheTTL)
	span.SetAttributes(attribute.String("usd", price.USD.String()))
	return price
}

// GetPrices fetches several symbols concurrently. Per-symbol failures
// degrade the same way GetPrice does, so the returned map always holds an
// entry for every requested symbol.
func (o *Oracle) GetPrices(ctx context.Context, symbols []string) map[string]domain.ReferencePrice {
	var mu sync.Mutex
	out := make(map[string]domain.ReferencePrice, len(symbols))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, symbol := range symbols {
		g.Go(func() error {
			price := o.GetPrice(ctx, symbol)
			mu.Lock()
			out[price.Symbol] = price
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors

	return out
}

func (o *Oracle) readFeed(ctx context.Context, symbol string) (domain.ReferencePrice, error) {
	feed, ok := o.feeds[symbol]
	if !ok {
		return domain.ReferencePrice{}, apperror.New(apperror.CodeOracleUnavailable,
			apperror.WithContext(fmt.Sprintf("no feed configured for %s", symbol)))
	}

	feedDecimals, err := o.feedDecimals(ctx, symbol, feed)
	if err != nil {
		return domain.ReferencePrice{}, err
	}

	data, err := o.call(ctx, feed, mustPack(o.aggregatorABI, "latestRoundData"))
	if err != nil {
		return domain.ReferencePrice{}, err
	}
	round, err := o.aggregatorABI.Unpack("latestRoundData", data)
	if err != nil {
		return domain.ReferencePrice{}, fmt.Errorf("decode latestRoundData: %w", err)
	}

	answer := round[1].(*big.Int)
	updatedAt := time.Unix(round[3].(*big.Int).Int64(), 0)

	if answer.Sign() <= 0 {
		return domain.ReferencePrice{}, apperror.New(apperror.CodeOracleInvalidPrice,
			apperror.WithContext(fmt.Sprintf("feed %s answered %s", symbol, answer)))
	}
	if age := o.now().Sub(updatedAt); age > o.maxStaleness {
		return domain.ReferencePrice{}, apperror.New(apperror.CodeOracleStale,
			apperror.WithContext(fmt.Sprintf("feed %s last updated %s ago", symbol, age.Round(time.Second))))
	}

	usd := decimal.NewFromBigInt(answer, -feedDecimals)
	return domain.ReferencePrice{
		Symbol:    symbol,
		USD:       usd,
		UpdatedAt: updatedAt,
	}, nil
}

func (o *Oracle) feedDecimals(ctx context.Context, symbol string, feed common.Address) (int32, error) {
	o.decimalsMu.Lock()
	if d, ok := o.decimals[symbol]; ok {
		o.decimalsMu.Unlock()
		return d, nil
	}
	o.decimalsMu.Unlock()

	data, err := o.call(ctx, feed, mustPack(o.aggregatorABI, "decimals"))
	if err != nil {
		return 0, err
	}
	out, err := o.aggregatorABI.Unpack("decimals", data)
	if err != nil {
		return 0, fmt.Errorf("decode decimals: %w", err)
	}
	d := int32(out[0].(uint8))

	o.decimalsMu.Lock()
	o.decimals[symbol] = d
	o.decimalsMu.Unlock()
	return d, nil
}

func (o *Oracle) fallbackPrice(symbol string) domain.ReferencePrice {
	usd, ok := o.fallback[symbol]
	if !ok {
		usd = decimal.Zero
	}
	return domain.ReferencePrice{
		Symbol:    symbol,
		USD:       usd,
		UpdatedAt: o.now(),
		Fallback:  true,
	}
}

func (o *Oracle) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := o.cb.Execute(func() ([]byte, error) {
		return o.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeOracleUnavailable,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("call to feed %s", to.Hex())))
	}
	return out, nil
}

func mustPack(a abi.ABI, method string, args ...any) []byte {
	data, err := a.Pack(method, args...)
	if err != nil {
		panic(fmt.Sprintf("chainlink: pack %s: %v", method, err))
	}
	return data
}
