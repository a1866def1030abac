package app

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestFinder(t *testing.T, venuePrices map[string]decimal.Decimal, oraclePrices map[string]decimal.Decimal, cfg FinderConfig) *Finder {
	t.Helper()

	finder, err := NewFinder(
		newTestQuoteService(venuePrices),
		&stubOracle{prices: oraclePrices},
		cfg,
		&mockLogger{},
	)
	if err != nil {
		t.Fatalf("NewFinder: %v", err)
	}
	return finder
}

func TestFinder_FindsSpread(t *testing.T) {
	ctx := context.Background()

	venuePrices := map[string]decimal.Decimal{
		"alpha": decimal.RequireFromString("2000"),
		"beta":  decimal.RequireFromString("2050"),
	}
	oraclePrices := map[string]decimal.Decimal{
		"WETH": decimal.RequireFromString("2025"),
		"USDC": decimal.RequireFromString("1"),
	}

	finder := newTestFinder(t, venuePrices, oraclePrices, FinderConfig{
		Venues:             testVenues("alpha", "beta"),
		MinSpreadPct:       decimal.RequireFromString("0.5"),
		OracleDeviationPct: decimal.RequireFromString("5"),
	})

	opp := finder.FindOpportunity(ctx, wethUSDC(), oneWETH())
	if opp == nil {
		t.Fatal("expected an opportunity")
	}

	if opp.BuyVenue() != "alpha" {
		t.Errorf("buy venue = %q, want alpha", opp.BuyVenue())
	}
	if opp.SellVenue() != "beta" {
		t.Errorf("sell venue = %q, want beta", opp.SellVenue())
	}

	// (2050 - 2000) / 2000 * 100
	wantSpread := decimal.RequireFromString("2.5")
	if !opp.SpreadPct.Equal(wantSpread) {
		t.Errorf("spread = %s, want %s", opp.SpreadPct, wantSpread)
	}
	if !opp.SellQuote.Price.GreaterThan(opp.BuyQuote.Price) {
		t.Error("sell price must exceed buy price")
	}
}

func TestFinder_SpreadBelowMinimum(t *testing.T) {
	ctx := context.Background()

	venuePrices := map[string]decimal.Decimal{
		"alpha": decimal.RequireFromString("2000"),
		"beta":  decimal.RequireFromString("2004"), // 0.2% spread
	}
	oraclePrices := map[string]decimal.Decimal{
		"WETH": decimal.RequireFromString("2002"),
		"USDC": decimal.RequireFromString("1"),
	}

	finder := newTestFinder(t, venuePrices, oraclePrices, FinderConfig{
		Venues:             testVenues("alpha", "beta"),
		MinSpreadPct:       decimal.RequireFromString("0.5"),
		OracleDeviationPct: decimal.RequireFromString("5"),
	})

	if opp := finder.FindOpportunity(ctx, wethUSDC(), oneWETH()); opp != nil {
		t.Fatalf("expected nil, got opportunity with spread %s", opp.SpreadPct)
	}
}

func TestFinder_SingleVenueIsNotAnOpportunity(t *testing.T) {
	ctx := context.Background()

	venuePrices := map[string]decimal.Decimal{
		"alpha": decimal.RequireFromString("2000"),
	}
	oraclePrices := map[string]decimal.Decimal{
		"WETH": decimal.RequireFromString("2000"),
		"USDC": decimal.RequireFromString("1"),
	}

	// beta is configured but has no pool, so it contributes no quote.
	finder := newTestFinder(t, venuePrices, oraclePrices, FinderConfig{
		Venues:             testVenues("alpha", "beta"),
		MinSpreadPct:       decimal.RequireFromString("0.5"),
		OracleDeviationPct: decimal.RequireFromString("5"),
	})

	if opp := finder.FindOpportunity(ctx, wethUSDC(), oneWETH()); opp != nil {
		t.Fatal("expected nil with a single quoting venue")
	}
}

func TestFinder_OracleDeviationDropsOutlier(t *testing.T) {
	ctx := context.Background()

	// gamma quotes 50% above the oracle cross-rate: a poisoned or broken
	// pool, not an opportunity.
	venuePrices := map[string]decimal.Decimal{
		"alpha": decimal.RequireFromString("2000"),
		"gamma": decimal.RequireFromString("3000"),
	}
	oraclePrices := map[string]decimal.Decimal{
		"WETH": decimal.RequireFromString("2000"),
		"USDC": decimal.RequireFromString("1"),
	}

	finder := newTestFinder(t, venuePrices, oraclePrices, FinderConfig{
		Venues:             testVenues("alpha", "gamma"),
		MinSpreadPct:       decimal.RequireFromString("0.5"),
		OracleDeviationPct: decimal.RequireFromString("5"),
	})

	if opp := finder.FindOpportunity(ctx, wethUSDC(), oneWETH()); opp != nil {
		t.Fatalf("expected outlier to be dropped, got %s -> %s", opp.BuyVenue(), opp.SellVenue())
	}
}

func TestFinder_SkipsValidationWithoutOracleData(t *testing.T) {
	ctx := context.Background()

	venuePrices := map[string]decimal.Decimal{
		"alpha": decimal.RequireFromString("2000"),
		"beta":  decimal.RequireFromString("2050"),
	}

	// Oracle has no data at all; detection must still work.
	finder := newTestFinder(t, venuePrices, map[string]decimal.Decimal{}, FinderConfig{
		Venues:             testVenues("alpha", "beta"),
		MinSpreadPct:       decimal.RequireFromString("0.5"),
		OracleDeviationPct: decimal.RequireFromString("5"),
	})

	if opp := finder.FindOpportunity(ctx, wethUSDC(), oneWETH()); opp == nil {
		t.Fatal("expected opportunity when oracle validation is skipped")
	}
}

func TestFinder_SkipsValidationOnFallbackPrices(t *testing.T) {
	ctx := context.Background()

	// The market moved well past the static fallback table: venues agree
	// around 3000 while the table still says 2000. The spread is real and
	// must survive a feed outage.
	venuePrices := map[string]decimal.Decimal{
		"alpha": decimal.RequireFromString("3000"),
		"beta":  decimal.RequireFromString("3075"),
	}

	finder, err := NewFinder(
		newTestQuoteService(venuePrices),
		&stubOracle{
			prices: map[string]decimal.Decimal{
				"WETH": decimal.RequireFromString("2000"),
				"USDC": decimal.RequireFromString("1"),
			},
			fallback: true,
		},
		FinderConfig{
			Venues:             testVenues("alpha", "beta"),
			MinSpreadPct:       decimal.RequireFromString("0.5"),
			OracleDeviationPct: decimal.RequireFromString("5"),
		},
		&mockLogger{},
	)
	if err != nil {
		t.Fatalf("NewFinder: %v", err)
	}

	opp := finder.FindOpportunity(ctx, wethUSDC(), oneWETH())
	if opp == nil {
		t.Fatal("expected opportunity when the oracle serves fallback prices")
	}
	if opp.BuyVenue() != "alpha" || opp.SellVenue() != "beta" {
		t.Errorf("venues = %s/%s, want alpha/beta", opp.BuyVenue(), opp.SellVenue())
	}
}

func TestFinder_EqualPricesYieldNothing(t *testing.T) {
	ctx := context.Background()

	venuePrices := map[string]decimal.Decimal{
		"alpha": decimal.RequireFromString("2000"),
		"beta":  decimal.RequireFromString("2000"),
	}
	oraclePrices := map[string]decimal.Decimal{
		"WETH": decimal.RequireFromString("2000"),
		"USDC": decimal.RequireFromString("1"),
	}

	finder := newTestFinder(t, venuePrices, oraclePrices, FinderConfig{
		Venues:             testVenues("alpha", "beta"),
		MinSpreadPct:       decimal.RequireFromString("0.5"),
		OracleDeviationPct: decimal.RequireFromString("5"),
	})

	if opp := finder.FindOpportunity(ctx, wethUSDC(), oneWETH()); opp != nil {
		t.Fatal("expected nil when both venues quote the same price")
	}
}
