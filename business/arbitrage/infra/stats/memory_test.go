package stats

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-bot/business/arbitrage/domain"
)

func TestMemoryStore_LoadMissingDayIsFresh(t *testing.T) {
	store := NewMemoryStore()

	stats, err := store.Load(context.Background(), "2026-08-29")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stats.Day != "2026-08-29" || stats.Trades != 0 {
		t.Errorf("stats = %+v, want fresh block", stats)
	}
}

func TestMemoryStore_SaveIsolatesCaller(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	stats := domain.NewDailyRiskStats("2026-08-29")
	stats.RecordWin(decimal.NewFromInt(100))
	if err := store.Save(ctx, stats); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Mutating the saved pointer must not leak into the store.
	stats.RecordLoss(decimal.NewFromInt(50))

	loaded, err := store.Load(ctx, "2026-08-29")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Trades != 1 || loaded.Wins != 1 {
		t.Errorf("loaded = %+v, want the state at save time", loaded)
	}
	if !loaded.ProfitUSD.Equal(decimal.NewFromInt(100)) {
		t.Errorf("profit = %s, want 100", loaded.ProfitUSD)
	}
}
