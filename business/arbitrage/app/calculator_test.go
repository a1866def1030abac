package app

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-bot/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/flashloan-bot/business/pricing/domain"
	"github.com/fd1az/flashloan-bot/internal/apperror"
	"github.com/fd1az/flashloan-bot/internal/asset"
)

func newTestCalculator(gasPriceWei int64, oraclePrices map[string]decimal.Decimal, cfg CalculatorConfig) *Calculator {
	feeRates := map[string]decimal.Decimal{
		"alpha": decimal.RequireFromString("0.003"),
		"beta":  decimal.RequireFromString("0.003"),
	}
	return NewCalculator(
		newTestChainService(gasPriceWei),
		&stubOracle{prices: oraclePrices},
		feeRates,
		cfg,
		&mockLogger{},
	)
}

func testOpportunity(t *testing.T, borrowWETH, buyPrice, sellPrice string) *domain.Opportunity {
	t.Helper()

	pair := wethUSDC()
	borrow := asset.MustParseDecimal(asset.WETH, decimal.RequireFromString(borrowWETH))

	buyOut := borrow.ToDecimal().Mul(decimal.RequireFromString(buyPrice)).Round(6)
	sellOut := borrow.ToDecimal().Mul(decimal.RequireFromString(sellPrice)).Round(6)

	buy := pricingDomain.NewQuote("alpha", borrow, asset.MustParseDecimal(asset.USDC, buyOut))
	sell := pricingDomain.NewQuote("beta", borrow, asset.MustParseDecimal(asset.USDC, sellOut))

	return domain.NewOpportunity(pair, &buy, &sell, borrow)
}

func TestCalculator_ProfitableOpportunity(t *testing.T) {
	ctx := context.Background()

	oraclePrices := map[string]decimal.Decimal{
		"WETH": decimal.RequireFromString("2000"),
		"ETH":  decimal.RequireFromString("2000"),
	}
	calc := newTestCalculator(30_000_000_000, oraclePrices, CalculatorConfig{
		FlashloanPremiumBps: decimal.RequireFromString("9"),
		MinProfitUSD:        decimal.RequireFromString("10"),
		MinMarginPct:        decimal.RequireFromString("0.5"),
		MaxRiskScore:        70,
	})

	// 10 WETH at a 2.5% spread.
	opp := testOpportunity(t, "10", "2000", "2050")

	report, err := calc.Evaluate(ctx, opp)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	// Gross: 10 * 2.5% = 0.25 WETH.
	if want := decimal.RequireFromString("0.25"); !report.GrossAsset.Equal(want) {
		t.Errorf("gross = %s WETH, want %s", report.GrossAsset, want)
	}

	// Costs: fees 10*0.006 = 0.06, premium 10*9/10000 = 0.009,
	// gas 600000 * 30 gwei = 0.018 ETH at par with WETH.
	if want := decimal.RequireFromString("0.06"); !report.Costs.VenueFeesAsset.Equal(want) {
		t.Errorf("venue fees = %s, want %s", report.Costs.VenueFeesAsset, want)
	}
	if want := decimal.RequireFromString("0.009"); !report.Costs.PremiumAsset.Equal(want) {
		t.Errorf("premium = %s, want %s", report.Costs.PremiumAsset, want)
	}
	if want := decimal.RequireFromString("0.018"); !report.Costs.GasAsset.Equal(want) {
		t.Errorf("gas = %s, want %s", report.Costs.GasAsset, want)
	}

	// Net must equal gross minus the cost total, in both denominations.
	if !report.NetAsset.Equal(report.GrossAsset.Sub(report.Costs.TotalAsset())) {
		t.Error("net asset does not reconcile with gross minus costs")
	}
	if !report.NetUSD.Equal(report.GrossUSD.Sub(report.Costs.TotalUSD())) {
		t.Error("net USD does not reconcile with gross minus costs")
	}

	// 0.163 WETH net on 10 borrowed = 1.63% margin.
	if want := decimal.RequireFromString("1.63"); !report.MarginPct.Equal(want) {
		t.Errorf("margin = %s%%, want %s%%", report.MarginPct, want)
	}

	// Break-even: 0.087 total costs / 2.5% spread = 3.48 WETH.
	if want := decimal.RequireFromString("3.48"); !report.BreakEvenAsset.Equal(want) {
		t.Errorf("break-even = %s WETH, want %s", report.BreakEvenAsset, want)
	}

	if want := decimal.RequireFromString("20000"); !report.BorrowedUSD.Equal(want) {
		t.Errorf("borrowed = %s USD, want %s", report.BorrowedUSD, want)
	}

	if !report.IsProfitable {
		t.Error("expected profitable report")
	}
	if !calc.IsViable(report) {
		t.Errorf("expected viable report, got net %s USD, margin %s%%, score %d",
			report.NetUSD, report.MarginPct, report.RiskScore)
	}
}

func TestCalculator_GasDominatesThinTrade(t *testing.T) {
	ctx := context.Background()

	oraclePrices := map[string]decimal.Decimal{
		"WETH": decimal.RequireFromString("2000"),
		"ETH":  decimal.RequireFromString("2000"),
	}
	// 300 gwei: gas alone is 0.18 WETH.
	calc := newTestCalculator(300_000_000_000, oraclePrices, CalculatorConfig{
		FlashloanPremiumBps: decimal.RequireFromString("9"),
		MinProfitUSD:        decimal.RequireFromString("10"),
		MinMarginPct:        decimal.RequireFromString("0.5"),
		MaxRiskScore:        70,
	})

	// 1 WETH at 2.5% spread grosses only 0.025 WETH.
	opp := testOpportunity(t, "1", "2000", "2050")

	report, err := calc.Evaluate(ctx, opp)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if report.IsProfitable {
		t.Errorf("expected unprofitable report, net = %s WETH", report.NetAsset)
	}
	if calc.IsViable(report) {
		t.Error("unprofitable trade must never be viable")
	}
	if !report.NetAsset.IsNegative() {
		t.Errorf("net = %s, want negative", report.NetAsset)
	}
}

func TestCalculator_NoOraclePrice(t *testing.T) {
	ctx := context.Background()

	calc := newTestCalculator(30_000_000_000, map[string]decimal.Decimal{}, CalculatorConfig{
		FlashloanPremiumBps: decimal.RequireFromString("9"),
	})

	opp := testOpportunity(t, "1", "2000", "2050")

	_, err := calc.Evaluate(ctx, opp)
	if !apperror.IsCode(err, apperror.CodeOracleUnavailable) {
		t.Fatalf("err = %v, want ORACLE_UNAVAILABLE", err)
	}
}

func TestRiskScore(t *testing.T) {
	tests := []struct {
		name       string
		spreadPct  string
		netAsset   string
		totalCosts string
		want       int
	}{
		{"thin spread, thin profit", "0.6", "0.005", "0.1", 30 + 25 + 15},
		{"moderate spread, healthy ratio", "2.5", "0.163", "0.087", 10 + 15},
		{"wide spread, huge ratio", "6", "1", "0.1", 15},
		{"moderate everything", "1.5", "0.03", "0.1", 20 + 10 + 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := riskScore(
				decimal.RequireFromString(tt.spreadPct),
				decimal.RequireFromString(tt.netAsset),
				decimal.RequireFromString(tt.totalCosts),
			)
			if got != tt.want {
				t.Errorf("riskScore = %d, want %d", got, tt.want)
			}
		})
	}
}
