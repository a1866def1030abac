package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashloan-bot/business/blockchain/app"
	"github.com/fd1az/flashloan-bot/business/blockchain/domain"
	"github.com/fd1az/flashloan-bot/internal/apperror"
	"github.com/fd1az/flashloan-bot/internal/cache"
	"github.com/fd1az/flashloan-bot/internal/circuitbreaker"
	"github.com/fd1az/flashloan-bot/internal/logger"
)

// GasPricerConfig holds gas oracle settings.
type GasPricerConfig struct {
	CacheTTL    time.Duration // price cache lifetime, ~1 block
	MaxGasPrice *big.Int      // clamp, prices above it are capped
	DefaultGas  uint64        // gas limit ceiling used when estimation fails
	Margin      uint64        // estimation safety margin, percent
}

// DefaultGasPricerConfig returns mainnet defaults.
func DefaultGasPricerConfig() GasPricerConfig {
	maxGas := new(big.Int)
	maxGas.SetString("500000000000", 10) // 500 gwei

	return GasPricerConfig{
		CacheTTL:    12 * time.Second,
		MaxGasPrice: maxGas,
		DefaultGas:  800000,
		Margin:      20,
	}
}

// gasPricerMetrics holds OTEL metric instruments.
type gasPricerMetrics struct {
	fetches   metric.Int64Counter
	gwei      metric.Float64Gauge
	estimates metric.Int64Counter
	cacheHits metric.Int64Counter
}

// GasPricer implements GasOracle over an ethclient with caching, a price
// clamp and a circuit breaker around the RPC.
type GasPricer struct {
	config GasPricerConfig
	client *ethclient.Client
	logger logger.LoggerInterface

	prices *cache.Cache[string, *domain.GasPrice]
	cb     *circuitbreaker.CircuitBreaker[*big.Int]

	tracer  trace.Tracer
	metrics *gasPricerMetrics
}

// Ensure GasPricer implements GasOracle.
var _ app.GasOracle = (*GasPricer)(nil)

// NewGasPricer creates a gas oracle over an existing node client.
func NewGasPricer(client *ethclient.Client, cfg GasPricerConfig, log logger.LoggerInterface) (*GasPricer, error) {
	g := &GasPricer{
		config: cfg,
		client: client,
		logger: log,
		prices: cache.New[string, *domain.GasPrice](5 * time.Minute),
		cb:     circuitbreaker.New[*big.Int](circuitbreaker.DefaultConfig("gas-pricer")),
		tracer: otel.Tracer(tracerName),
	}

	if err := g.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return g, nil
}

func (g *GasPricer) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	g.metrics = &gasPricerMetrics{}

	g.metrics.fetches, err = meter.Int64Counter(
		"gas_price_fetches_total",
		metric.WithDescription("Total gas price fetch attempts"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return err
	}

	g.metrics.gwei, err = meter.Float64Gauge(
		"gas_price_gwei",
		metric.WithDescription("Current gas price in gwei"),
		metric.WithUnit("gwei"),
	)
	if err != nil {
		return err
	}

	g.metrics.estimates, err = meter.Int64Counter(
		"gas_estimate_total",
		metric.WithDescription("Total gas estimation calls"),
		metric.WithUnit("{estimate}"),
	)
	if err != nil {
		return err
	}

	g.metrics.cacheHits, err = meter.Int64Counter(
		"gas_cache_hits_total",
		metric.WithDescription("Gas price cache hits"),
		metric.WithUnit("{hit}"),
	)
	return err
}

// GetGasPrice retrieves the current gas price, cached for roughly a block.
func (g *GasPricer) GetGasPrice(ctx context.Context) (*domain.GasPrice, error) {
	ctx, span := g.tracer.Start(ctx, "gas.get_price")
	defer span.End()

	if price, ok := g.prices.Get(ctx, "current"); ok {
		g.metrics.cacheHits.Add(ctx, 1)
		span.AddEvent("cache_hit")
		return price, nil
	}

	g.metrics.fetches.Add(ctx, 1)

	wei, err := g.cb.Execute(func() (*big.Int, error) {
		return g.client.SuggestGasPrice(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.New(apperror.CodeRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to get gas price"))
	}

	if g.config.MaxGasPrice != nil && wei.Cmp(g.config.MaxGasPrice) > 0 {
		g.logger.Warn(ctx, "gas price clamped to max", "wei", wei.String())
		span.AddEvent("gas_price_clamped",
			trace.WithAttributes(attribute.String("wei", wei.String())))
		wei = g.config.MaxGasPrice
	}

	price := domain.NewGasPrice(wei)
	g.prices.Set(ctx, "current", price, g.config.CacheTTL)

	gwei, _ := price.Gwei().Float64()
	g.metrics.gwei.Record(ctx, gwei)

	span.SetAttributes(attribute.Float64("gwei", gwei))
	span.SetStatus(codes.Ok, "fetched")
	return price, nil
}

// GetGasTipCap retrieves the suggested priority fee.
func (g *GasPricer) GetGasTipCap(ctx context.Context) (*big.Int, error) {
	ctx, span := g.tracer.Start(ctx, "gas.get_tip_cap")
	defer span.End()

	tip, err := g.cb.Execute(func() (*big.Int, error) {
		return g.client.SuggestGasTipCap(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.New(apperror.CodeRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to get gas tip cap"))
	}

	span.SetStatus(codes.Ok, "fetched")
	return tip, nil
}

// EstimateGas simulates the call and applies the safety margin. Estimation
// failures degrade to the configured default ceiling rather than erroring.
func (g *GasPricer) EstimateGas(ctx context.Context, to common.Address, data []byte) (uint64, error) {
	ctx, span := g.tracer.Start(ctx, "gas.estimate",
		trace.WithAttributes(
			attribute.String("to", to.Hex()),
			attribute.Int("data_len", len(data)),
		),
	)
	defer span.End()

	g.metrics.estimates.Add(ctx, 1)

	gas, err := g.client.EstimateGas(ctx, ethereum.CallMsg{To: &to, Data: data})
	if err != nil {
		g.logger.Warn(ctx, "gas estimation failed, using default ceiling",
			"to", to.Hex(),
			"default", g.config.DefaultGas,
			"error", err,
		)
		span.AddEvent("using_default_gas",
			trace.WithAttributes(attribute.Int64("default", int64(g.config.DefaultGas))))
		return g.config.DefaultGas, nil
	}

	gas += gas * g.config.Margin / 100

	span.SetAttributes(attribute.Int64("gas", int64(gas)))
	span.SetStatus(codes.Ok, "estimated")
	return gas, nil
}

// Close releases the price cache.
func (g *GasPricer) Close() error {
	g.prices.Close()
	return nil
}
