package app

import (
	"context"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashloan-bot/business/arbitrage/domain"
	blockchainApp "github.com/fd1az/flashloan-bot/business/blockchain/app"
	pricingApp "github.com/fd1az/flashloan-bot/business/pricing/app"
	"github.com/fd1az/flashloan-bot/internal/apperror"
	"github.com/fd1az/flashloan-bot/internal/logger"
)

// Gas units for one flashloan round trip. The buffer absorbs callback
// overhead the per-swap figures miss.
const (
	flashloanBaseGas = 250000
	perSwapGas       = 150000
	gasBuffer        = 50000
	swapLegs         = 2
)

// CalculatorConfig holds profitability thresholds.
type CalculatorConfig struct {
	FlashloanPremiumBps decimal.Decimal
	MinProfitUSD        decimal.Decimal
	MinMarginPct        decimal.Decimal
	MaxRiskScore        int
}

// Calculator turns a candidate opportunity into a full cost/benefit
// breakdown. Negative-profit candidates still produce a report; the only
// error case is an oracle with no usable USD price at all.
type Calculator struct {
	chain    *blockchainApp.ChainService
	oracle   pricingApp.ReferenceOracle
	feeRates map[string]decimal.Decimal // venue id -> fee rate, e.g. 0.003
	config   CalculatorConfig
	logger   logger.LoggerInterface
	tracer   trace.Tracer

	now func() time.Time
}

// NewCalculator creates a profitability calculator. feeRates maps venue
// ids to their swap fee rate.
func NewCalculator(
	chain *blockchainApp.ChainService,
	oracle pricingApp.ReferenceOracle,
	feeRates map[string]decimal.Decimal,
	cfg CalculatorConfig,
	log logger.LoggerInterface,
) *Calculator {
	return &Calculator{
		chain:    chain,
		oracle:   oracle,
		feeRates: feeRates,
		config:   cfg,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
}

// Evaluate computes the profitability report for an opportunity.
func (c *Calculator) Evaluate(ctx context.Context, opp *domain.Opportunity) (*domain.ProfitabilityReport, error) {
	ctx, span := c.tracer.Start(ctx, "arb.evaluate",
		trace.WithAttributes(attribute.String("opportunity", opp.ID)),
	)
	defer span.End()

	base := opp.Pair.Base
	borrowed := opp.BorrowAmount.ToDecimal()
	hundred := decimal.NewFromInt(100)

	prices := c.oracle.GetPrices(ctx, []string{base.Symbol(), "ETH"})
	baseUSD := prices[base.Symbol()].USD
	ethUSD := prices["ETH"].USD
	if !baseUSD.IsPositive() || !ethUSD.IsPositive() {
		return nil, apperror.New(apperror.CodeOracleUnavailable,
			apperror.WithContext("no usable USD reference price, cannot denominate report"))
	}

	// Round-trip output at the two quoted prices: borrow, sell high, buy
	// back low. The gain collapses to borrowed * spread.
	grossAsset := borrowed.Mul(opp.SpreadPct).Div(hundred)
	grossUSD := grossAsset.Mul(baseUSD)

	feeRate := c.feeRate(opp.BuyVenue()).Add(c.feeRate(opp.SellVenue()))
	feesAsset := borrowed.Mul(feeRate)

	premiumAsset := borrowed.Mul(c.config.FlashloanPremiumBps).Div(decimal.NewFromInt(10000))

	gasPrice, err := c.chain.GetGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	gasLimit := uint64(flashloanBaseGas + perSwapGas*swapLegs + gasBuffer)
	gasWei := new(big.Int).Mul(gasPrice.Wei, new(big.Int).SetUint64(gasLimit))
	gasETH := decimal.NewFromBigInt(gasWei, -18)
	gasUSD := gasETH.Mul(ethUSD)
	gasAsset := gasUSD.Div(baseUSD)

	costs := domain.Costs{
		VenueFeesAsset: feesAsset,
		VenueFeesUSD:   feesAsset.Mul(baseUSD),
		PremiumAsset:   premiumAsset,
		PremiumUSD:     premiumAsset.Mul(baseUSD),
		GasAsset:       gasAsset,
		GasUSD:         gasUSD,
	}

	netAsset := grossAsset.Sub(costs.TotalAsset())
	netUSD := grossUSD.Sub(costs.TotalUSD())

	marginPct := decimal.Zero
	if borrowed.IsPositive() {
		marginPct = netAsset.Div(borrowed).Mul(hundred)
	}

	breakEven := decimal.Zero
	if opp.SpreadPct.IsPositive() {
		breakEven = costs.TotalAsset().Div(opp.SpreadPct.Div(hundred))
	}

	report := &domain.ProfitabilityReport{
		BorrowedUSD:    borrowed.Mul(baseUSD),
		GrossAsset:     grossAsset,
		GrossUSD:       grossUSD,
		Costs:          costs,
		NetAsset:       netAsset,
		NetUSD:         netUSD,
		MarginPct:      marginPct,
		BreakEvenAsset: breakEven,
		RiskScore:      riskScore(opp.SpreadPct, netAsset, costs.TotalAsset()),
		IsProfitable:   netAsset.IsPositive(),
		GasPriceWei:    gasPrice.Wei,
		GasLimit:       gasLimit,
		EvaluatedAt:    c.now(),
	}

	c.logger.Debug(ctx, "opportunity evaluated",
		"opportunity", opp.ID,
		"net_usd", report.NetUSD.StringFixed(2),
		"margin_pct", report.MarginPct.StringFixed(4),
		"risk_score", report.RiskScore,
		"profitable", report.IsProfitable,
	)

	span.SetAttributes(
		attribute.String("net_usd", report.NetUSD.String()),
		attribute.Int("risk_score", report.RiskScore),
		attribute.Bool("profitable", report.IsProfitable),
	)
	return report, nil
}

// IsViable applies the configured floors on top of raw profitability.
func (c *Calculator) IsViable(report *domain.ProfitabilityReport) bool {
	return report.IsProfitable &&
		report.NetUSD.GreaterThanOrEqual(c.config.MinProfitUSD) &&
		report.RiskScore <= c.config.MaxRiskScore &&
		report.MarginPct.GreaterThan(c.config.MinMarginPct)
}

func (c *Calculator) feeRate(venueID string) decimal.Decimal {
	if rate, ok := c.feeRates[venueID]; ok {
		return rate
	}
	// Unknown venue: assume the common constant-product fee.
	return decimal.NewFromFloat(0.003)
}

// riskScore is the additive 0-100 heuristic: thin spreads and thin
// profit-to-cost ratios score high, plus flat baselines for unmodeled gas
// volatility and liquidity risk.
func riskScore(spreadPct, netAsset, totalCosts decimal.Decimal) int {
	score := 0

	switch {
	case spreadPct.LessThan(decimal.NewFromInt(1)):
		score += 30
	case spreadPct.LessThan(decimal.NewFromInt(2)):
		score += 20
	case spreadPct.LessThan(decimal.NewFromInt(5)):
		score += 10
	}

	if totalCosts.IsPositive() {
		ratio := netAsset.Div(totalCosts)
		switch {
		case ratio.LessThan(decimal.NewFromFloat(0.1)):
			score += 25
		case ratio.LessThan(decimal.NewFromFloat(0.2)):
			score += 15
		case ratio.LessThan(decimal.NewFromFloat(0.5)):
			score += 10
		}
	}

	score += 5  // gas volatility baseline
	score += 10 // liquidity risk baseline

	if score > 100 {
		score = 100
	}
	return score
}
