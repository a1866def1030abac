package app

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-bot/business/arbitrage/domain"
	"github.com/fd1az/flashloan-bot/internal/config"
)

func testRiskConfig() RiskManagerConfig {
	return RiskManagerConfig{
		Risk: config.RiskConfig{
			MaxPositionUSD:       50000,
			MaxSlippagePct:       5,
			MaxDailyLossUSD:      500,
			MaxGasPriceGwei:      150,
			BreakerThreshold:     3,
			BreakerCooldown:      5 * time.Minute,
			ApprovalScoreCeiling: 70,
		},
		MarginFloorPct: decimal.RequireFromString("0.5"),
	}
}

func cleanReport() *domain.ProfitabilityReport {
	return &domain.ProfitabilityReport{
		BorrowedUSD: decimal.RequireFromString("20000"),
		MarginPct:   decimal.RequireFromString("1.63"),
		Costs: domain.Costs{
			GasUSD: decimal.RequireFromString("36"),
		},
		GasPriceWei: big.NewInt(30_000_000_000),
	}
}

func failedResult() *domain.ExecutionResult {
	return &domain.ExecutionResult{
		Success:    false,
		GasCostUSD: decimal.RequireFromString("40"),
		Reason:     "flashloan reverted",
	}
}

func newTestRiskManager(cfg RiskManagerConfig) (*RiskManager, *memStore) {
	store := newMemStore()
	rm := NewRiskManager(store, cfg, &mockLogger{})
	return rm, store
}

func TestRiskManager_ApprovesCleanOpportunity(t *testing.T) {
	ctx := context.Background()
	rm, _ := newTestRiskManager(testRiskConfig())

	opp := testOpportunity(t, "10", "2000", "2050")
	assessment := rm.Assess(ctx, opp, cleanReport())

	if !assessment.Approved {
		t.Fatalf("expected approval, factors: %v, score %d",
			assessment.FactorNames(), assessment.Score)
	}
	if len(assessment.Factors) != 0 {
		t.Errorf("expected no factors, got %v", assessment.FactorNames())
	}
}

func TestRiskManager_EmergencyStopRejectsEverything(t *testing.T) {
	ctx := context.Background()
	cfg := testRiskConfig()
	cfg.Risk.EmergencyStop = true
	rm, _ := newTestRiskManager(cfg)

	opp := testOpportunity(t, "10", "2000", "2050")
	assessment := rm.Assess(ctx, opp, cleanReport())

	if assessment.Approved {
		t.Fatal("emergency stop must reject")
	}
	if !assessment.HasCritical() {
		t.Error("emergency stop must be a critical factor")
	}
}

func TestRiskManager_BreakerTripsAfterThreshold(t *testing.T) {
	ctx := context.Background()
	rm, _ := newTestRiskManager(testRiskConfig())

	opp := testOpportunity(t, "10", "2000", "2050")
	report := cleanReport()

	for i := 0; i < 3; i++ {
		rm.RecordResult(ctx, opp, report, failedResult())
	}

	if !rm.BreakerState().Active {
		t.Fatal("breaker must be open after three consecutive failures")
	}

	assessment := rm.Assess(ctx, opp, report)
	if assessment.Approved {
		t.Fatal("open breaker must reject")
	}
	if !assessment.HasCritical() {
		t.Error("open breaker must be a critical factor")
	}
}

func TestRiskManager_BreakerClosesAfterCooldown(t *testing.T) {
	ctx := context.Background()
	rm, store := newTestRiskManager(testRiskConfig())

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rm.now = func() time.Time { return base }

	opp := testOpportunity(t, "10", "2000", "2050")
	report := cleanReport()

	for i := 0; i < 3; i++ {
		rm.RecordResult(ctx, opp, report, failedResult())
	}
	if !rm.BreakerState().Active {
		t.Fatal("breaker must be open")
	}

	// Still inside the cooldown window.
	rm.now = func() time.Time { return base.Add(4 * time.Minute) }
	if a := rm.Assess(ctx, opp, report); a.Approved {
		t.Fatal("breaker must stay open inside the cooldown")
	}

	// Past the cooldown the breaker closes and the streak resets.
	rm.now = func() time.Time { return base.Add(6 * time.Minute) }
	a := rm.Assess(ctx, opp, report)
	if rm.BreakerState().Active {
		t.Fatal("breaker must close after the cooldown")
	}
	if a.HasCritical() {
		t.Errorf("no critical factor expected after close, got %v", a.FactorNames())
	}

	stats, err := store.Load(ctx, domain.DayKey(base.Add(6*time.Minute)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stats.ConsecutiveFailures != 0 {
		t.Errorf("failure streak = %d after breaker close, want 0", stats.ConsecutiveFailures)
	}
}

func TestRiskManager_WinClearsStreak(t *testing.T) {
	ctx := context.Background()
	rm, store := newTestRiskManager(testRiskConfig())

	opp := testOpportunity(t, "10", "2000", "2050")
	report := cleanReport()

	rm.RecordResult(ctx, opp, report, failedResult())
	rm.RecordResult(ctx, opp, report, failedResult())
	rm.RecordResult(ctx, opp, report, &domain.ExecutionResult{
		Success:   true,
		ProfitUSD: decimal.RequireFromString("120"),
	})
	rm.RecordResult(ctx, opp, report, failedResult())

	if rm.BreakerState().Active {
		t.Fatal("breaker must not trip when a win interrupts the streak")
	}

	stats, err := store.Load(ctx, domain.DayKey(time.Now()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stats.ConsecutiveFailures != 1 {
		t.Errorf("streak = %d, want 1", stats.ConsecutiveFailures)
	}
	if stats.Wins != 1 || stats.Losses != 3 {
		t.Errorf("wins/losses = %d/%d, want 1/3", stats.Wins, stats.Losses)
	}
}

func TestRiskManager_DailyLossLimit(t *testing.T) {
	ctx := context.Background()
	rm, _ := newTestRiskManager(testRiskConfig())

	opp := testOpportunity(t, "10", "2000", "2050")
	report := cleanReport()

	// Two expensive failures put the day 480 USD underwater; the next
	// trade's gas would push past the 500 USD limit.
	expensive := &domain.ExecutionResult{
		Success:    false,
		GasCostUSD: decimal.RequireFromString("240"),
	}
	rm.RecordResult(ctx, opp, report, expensive)
	rm.RecordResult(ctx, opp, report, expensive)

	assessment := rm.Assess(ctx, opp, report)
	if assessment.Approved {
		t.Fatal("projected daily loss past the limit must reject")
	}

	found := false
	for _, f := range assessment.Factors {
		if f.Name == "daily_loss_limit" && f.Severity == domain.SeverityCritical {
			found = true
		}
	}
	if !found {
		t.Errorf("expected critical daily_loss_limit factor, got %v", assessment.FactorNames())
	}
}

func TestRiskManager_PositionCapRecommendsSize(t *testing.T) {
	ctx := context.Background()
	rm, _ := newTestRiskManager(testRiskConfig())

	opp := testOpportunity(t, "40", "2000", "2050")
	report := cleanReport()
	report.BorrowedUSD = decimal.RequireFromString("80000")

	assessment := rm.Assess(ctx, opp, report)

	found := false
	for _, f := range assessment.Factors {
		if f.Name == "position_above_cap" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected position_above_cap factor, got %v", assessment.FactorNames())
	}

	// 40 WETH * 50000/80000 = 25 WETH.
	if want := decimal.RequireFromString("25"); !assessment.RecommendedSize.Equal(want) {
		t.Errorf("recommended size = %s, want %s", assessment.RecommendedSize, want)
	}
}

func TestRiskManager_ScoreGrowsWithFactors(t *testing.T) {
	ctx := context.Background()
	rm, _ := newTestRiskManager(testRiskConfig())

	opp := testOpportunity(t, "10", "2000", "2050")

	clean := rm.Assess(ctx, opp, cleanReport())

	thin := cleanReport()
	thin.MarginPct = decimal.RequireFromString("0.3")
	withMargin := rm.Assess(ctx, opp, thin)

	expensive := cleanReport()
	expensive.MarginPct = decimal.RequireFromString("0.3")
	expensive.GasPriceWei = big.NewInt(200_000_000_000)
	withGasToo := rm.Assess(ctx, opp, expensive)

	if !(clean.Score < withMargin.Score && withMargin.Score < withGasToo.Score) {
		t.Errorf("scores must grow with factors: %d, %d, %d",
			clean.Score, withMargin.Score, withGasToo.Score)
	}
}
