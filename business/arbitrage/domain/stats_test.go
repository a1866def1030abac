package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDailyRiskStats_ResetIfNewDay(t *testing.T) {
	day1 := time.Date(2026, 3, 14, 23, 50, 0, 0, time.Local)
	day2 := time.Date(2026, 3, 15, 0, 10, 0, 0, time.Local)

	stats := NewDailyRiskStats(DayKey(day1))
	stats.RecordLoss(decimal.NewFromInt(120))
	stats.RecordLoss(decimal.NewFromInt(80))

	if stats.ConsecutiveFailures != 2 {
		t.Fatalf("expected 2 consecutive failures, got %d", stats.ConsecutiveFailures)
	}
	if !stats.NetUSD().Equal(decimal.NewFromInt(-200)) {
		t.Errorf("expected net -200, got %s", stats.NetUSD())
	}

	// Same day: nothing resets.
	if stats.ResetIfNewDay(day1.Add(time.Minute)) {
		t.Error("reset fired within the same day")
	}

	// Midnight rollover: everything zeroes.
	if !stats.ResetIfNewDay(day2) {
		t.Fatal("expected reset on day rollover")
	}
	if stats.Trades != 0 || stats.ConsecutiveFailures != 0 || !stats.NetUSD().IsZero() {
		t.Errorf("expected zeroed stats, got %+v", stats)
	}
	if stats.Day != DayKey(day2) {
		t.Errorf("expected day %s, got %s", DayKey(day2), stats.Day)
	}
}

func TestDailyRiskStats_WinResetsFailureStreak(t *testing.T) {
	stats := NewDailyRiskStats(DayKey(time.Now()))
	stats.RecordLoss(decimal.NewFromInt(50))
	stats.RecordLoss(decimal.NewFromInt(50))
	stats.RecordWin(decimal.NewFromInt(30))

	if stats.ConsecutiveFailures != 0 {
		t.Errorf("expected streak reset on win, got %d", stats.ConsecutiveFailures)
	}
	if stats.Trades != 3 || stats.Wins != 1 || stats.Losses != 2 {
		t.Errorf("unexpected counts: %+v", stats)
	}
}

func TestCircuitBreakerState_CooldownElapsed(t *testing.T) {
	now := time.Now()
	cb := &CircuitBreakerState{Active: true, ActivatedAt: now}

	if cb.CooldownElapsed(5*time.Minute, now.Add(time.Minute)) {
		t.Error("cooldown reported elapsed after one minute")
	}
	if !cb.CooldownElapsed(5*time.Minute, now.Add(5*time.Minute)) {
		t.Error("cooldown not elapsed at the boundary")
	}

	inactive := &CircuitBreakerState{}
	if inactive.CooldownElapsed(5*time.Minute, now.Add(time.Hour)) {
		t.Error("inactive breaker reported an elapsed cooldown")
	}
}
