package app

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-bot/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/flashloan-bot/business/pricing/domain"
	"github.com/fd1az/flashloan-bot/internal/apperror"
)

func newTestPipeline(t *testing.T, executor Executor) (*Scanner, *Monitor) {
	t.Helper()

	venuePrices := map[string]decimal.Decimal{
		"alpha": decimal.RequireFromString("2000"),
		"beta":  decimal.RequireFromString("2050"),
	}
	oraclePrices := map[string]decimal.Decimal{
		"WETH": decimal.RequireFromString("2025"),
		"USDC": decimal.RequireFromString("1"),
		"ETH":  decimal.RequireFromString("2025"),
	}

	finder := newTestFinder(t, venuePrices, oraclePrices, FinderConfig{
		Venues:             testVenues("alpha", "beta"),
		MinSpreadPct:       decimal.RequireFromString("0.5"),
		OracleDeviationPct: decimal.RequireFromString("5"),
	})

	calculator := NewCalculator(
		newTestChainService(30_000_000_000),
		&stubOracle{prices: oraclePrices},
		map[string]decimal.Decimal{
			"alpha": decimal.RequireFromString("0.003"),
			"beta":  decimal.RequireFromString("0.003"),
		},
		CalculatorConfig{
			FlashloanPremiumBps: decimal.RequireFromString("9"),
			MinProfitUSD:        decimal.RequireFromString("10"),
			MinMarginPct:        decimal.RequireFromString("0.5"),
			MaxRiskScore:        70,
		},
		&mockLogger{},
	)

	risk, _ := newTestRiskManager(testRiskConfig())
	monitor := NewMonitor(testAlertsConfig(), nil, &mockLogger{})

	scanner := NewScanner(
		ScannerConfig{
			Pairs:        []pricingDomain.Pair{wethUSDC()},
			TradeSizes:   []decimal.Decimal{decimal.NewFromInt(10)},
			ScanInterval: time.Minute,
		},
		finder,
		calculator,
		risk,
		monitor,
		executor,
		&mockLogger{},
	)
	return scanner, monitor
}

func TestScanner_ExecutesViableOpportunity(t *testing.T) {
	ctx := context.Background()

	executor := &stubExecutor{
		result: &domain.ExecutionResult{
			Success:   true,
			ProfitUSD: decimal.RequireFromString("300"),
			DryRun:    true,
			Latency:   500 * time.Millisecond,
		},
	}
	scanner, monitor := newTestPipeline(t, executor)

	if err := scanner.Scan(ctx); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if executor.calls != 1 {
		t.Fatalf("executor called %d times, want 1", executor.calls)
	}

	snap := monitor.Snapshot()
	if snap.Opportunities != 1 {
		t.Errorf("opportunities = %d, want 1", snap.Opportunities)
	}
	if snap.Trades != 1 || snap.Successes != 1 {
		t.Errorf("trades/successes = %d/%d, want 1/1", snap.Trades, snap.Successes)
	}
}

func TestScanner_PreflightRejectionIsNotATrade(t *testing.T) {
	ctx := context.Background()

	executor := &stubExecutor{
		err: apperror.New(apperror.CodeCooldownActive,
			apperror.WithMessage("cooldown active")),
	}
	scanner, monitor := newTestPipeline(t, executor)

	if err := scanner.Scan(ctx); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if executor.calls != 1 {
		t.Fatalf("executor called %d times, want 1", executor.calls)
	}

	snap := monitor.Snapshot()
	if snap.Trades != 0 {
		t.Errorf("trades = %d after pre-flight rejection, want 0", snap.Trades)
	}
	if snap.Rejections != 1 {
		t.Errorf("rejections = %d, want 1", snap.Rejections)
	}
}
