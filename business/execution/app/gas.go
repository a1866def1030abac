package app

import (
	"context"
	"math/big"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	blockchainApp "github.com/fd1az/flashloan-bot/business/blockchain/app"
	"github.com/fd1az/flashloan-bot/business/execution/domain"
	"github.com/fd1az/flashloan-bot/internal/logger"
)

// Urgency multipliers applied to the suggested price, in percent.
var urgencyPct = map[domain.Urgency]int64{
	domain.UrgencySlow:     100,
	domain.UrgencyStandard: 120,
	domain.UrgencyFast:     150,
	domain.UrgencyUrgent:   200,
}

// feeCapHeadroomPct is applied on top of base fee plus tip so the
// transaction survives a few base fee increases while pending.
const feeCapHeadroomPct = 120

// fallbackGasPriceWei covers the case where every oracle path fails.
var fallbackGasPriceWei = big.NewInt(20_000_000_000) // 20 gwei

// GasStrategy prices transactions from live node data. Fee-market chains
// get EIP-1559 settings; everything else falls back to legacy pricing.
type GasStrategy struct {
	chain  *blockchainApp.ChainService
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewGasStrategy creates a strategy over the chain service.
func NewGasStrategy(chain *blockchainApp.ChainService, log logger.LoggerInterface) *GasStrategy {
	return &GasStrategy{
		chain:  chain,
		logger: log,
		tracer: otel.Tracer(tracerName),
	}
}

// Price builds gas settings for a transaction with the given limit.
func (s *GasStrategy) Price(ctx context.Context, gasLimit uint64, urgency domain.Urgency) (*domain.GasSettings, error) {
	ctx, span := s.tracer.Start(ctx, "exec.price_gas",
		trace.WithAttributes(attribute.String("urgency", string(urgency))),
	)
	defer span.End()

	mult, ok := urgencyPct[urgency]
	if !ok {
		mult = urgencyPct[domain.UrgencyStandard]
	}

	block, err := s.chain.LatestBlock(ctx)
	if err == nil && block.FeeMarket() {
		settings, err := s.feeMarketSettings(ctx, block.BaseFee, gasLimit, mult)
		if err == nil {
			span.SetAttributes(attribute.Bool("fee_market", true))
			return settings, nil
		}
		s.logger.Warn(ctx, "fee market pricing failed, falling back to legacy",
			"error", err)
		span.AddEvent("fee_market_fallback")
	}

	return s.legacySettings(ctx, gasLimit, mult), nil
}

func (s *GasStrategy) feeMarketSettings(ctx context.Context, baseFee *big.Int, gasLimit uint64, mult int64) (*domain.GasSettings, error) {
	tip, err := s.chain.GetGasTipCap(ctx)
	if err != nil {
		return nil, err
	}

	tip = applyPct(tip, mult)

	// Fee cap covers the current base fee plus the tip, with headroom for
	// base fee drift, and never drops below the tip itself.
	feeCap := applyPct(new(big.Int).Add(baseFee, tip), feeCapHeadroomPct)
	if feeCap.Cmp(tip) < 0 {
		feeCap = new(big.Int).Set(tip)
	}

	return &domain.GasSettings{
		GasTipCap: tip,
		GasFeeCap: feeCap,
		GasLimit:  gasLimit,
	}, nil
}

func (s *GasStrategy) legacySettings(ctx context.Context, gasLimit uint64, mult int64) *domain.GasSettings {
	price := fallbackGasPriceWei
	if gp, err := s.chain.GetGasPrice(ctx); err == nil {
		price = gp.Wei
	} else {
		s.logger.Warn(ctx, "gas price lookup failed, using fallback",
			"fallback_wei", fallbackGasPriceWei, "error", err)
	}

	return &domain.GasSettings{
		GasPrice: applyPct(price, mult),
		GasLimit: gasLimit,
	}
}

func applyPct(v *big.Int, pct int64) *big.Int {
	out := new(big.Int).Mul(v, big.NewInt(pct))
	return out.Div(out, big.NewInt(100))
}
