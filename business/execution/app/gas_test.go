package app

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/fd1az/flashloan-bot/business/execution/domain"
)

func TestGasStrategy_FeeMarketPricing(t *testing.T) {
	ctx := context.Background()

	chain := newTestChain(gwei(10), &stubGasOracle{tipWei: gwei(2)}, big.NewInt(0))
	strategy := NewGasStrategy(chain, &mockLogger{})

	settings, err := strategy.Price(ctx, 600_000, domain.UrgencyFast)
	if err != nil {
		t.Fatalf("Price: %v", err)
	}

	if settings.Legacy() {
		t.Fatal("fee-market chain produced legacy settings")
	}
	// Tip is 2 gwei at 150%, fee cap is (base + tip) with 20% headroom.
	if want := gwei(3); settings.GasTipCap.Cmp(want) != 0 {
		t.Errorf("tip = %s, want %s", settings.GasTipCap, want)
	}
	if want := big.NewInt(15_600_000_000); settings.GasFeeCap.Cmp(want) != 0 {
		t.Errorf("fee cap = %s, want %s", settings.GasFeeCap, want)
	}
	if settings.GasLimit != 600_000 {
		t.Errorf("gas limit = %d, want 600000", settings.GasLimit)
	}
}

func TestGasStrategy_FeeCapNeverBelowTip(t *testing.T) {
	ctx := context.Background()

	// Tiny base fee with an aggressive tip: the cap must still cover the tip.
	chain := newTestChain(big.NewInt(1), &stubGasOracle{tipWei: gwei(50)}, big.NewInt(0))
	strategy := NewGasStrategy(chain, &mockLogger{})

	settings, err := strategy.Price(ctx, 100_000, domain.UrgencyUrgent)
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if settings.GasFeeCap.Cmp(settings.GasTipCap) < 0 {
		t.Errorf("fee cap %s below tip %s", settings.GasFeeCap, settings.GasTipCap)
	}
}

func TestGasStrategy_LegacyPricing(t *testing.T) {
	ctx := context.Background()

	chain := newTestChain(nil, &stubGasOracle{priceWei: gwei(30)}, big.NewInt(0))
	strategy := NewGasStrategy(chain, &mockLogger{})

	settings, err := strategy.Price(ctx, 600_000, domain.UrgencyStandard)
	if err != nil {
		t.Fatalf("Price: %v", err)
	}

	if !settings.Legacy() {
		t.Fatal("legacy chain produced fee-market settings")
	}
	if want := gwei(36); settings.GasPrice.Cmp(want) != 0 {
		t.Errorf("gas price = %s, want %s", settings.GasPrice, want)
	}
}

func TestGasStrategy_TipFailureFallsBackToLegacy(t *testing.T) {
	ctx := context.Background()

	oracle := &stubGasOracle{
		priceWei: gwei(40),
		tipErr:   errors.New("method not found"),
	}
	chain := newTestChain(gwei(10), oracle, big.NewInt(0))
	strategy := NewGasStrategy(chain, &mockLogger{})

	settings, err := strategy.Price(ctx, 600_000, domain.UrgencySlow)
	if err != nil {
		t.Fatalf("Price: %v", err)
	}

	if !settings.Legacy() {
		t.Fatal("expected legacy fallback when tip lookup fails")
	}
	if want := gwei(40); settings.GasPrice.Cmp(want) != 0 {
		t.Errorf("gas price = %s, want %s", settings.GasPrice, want)
	}
}

func TestGasStrategy_FallbackPriceWhenOracleDown(t *testing.T) {
	ctx := context.Background()

	oracle := &stubGasOracle{
		priceErr: errors.New("node unavailable"),
		tipErr:   errors.New("node unavailable"),
	}
	chain := newTestChain(nil, oracle, big.NewInt(0))
	strategy := NewGasStrategy(chain, &mockLogger{})

	settings, err := strategy.Price(ctx, 600_000, domain.UrgencyStandard)
	if err != nil {
		t.Fatalf("Price: %v", err)
	}

	// 20 gwei fallback at the standard 120% multiplier.
	if want := gwei(24); settings.GasPrice.Cmp(want) != 0 {
		t.Errorf("gas price = %s, want %s", settings.GasPrice, want)
	}
}

func TestGasStrategy_UnknownUrgencyUsesStandard(t *testing.T) {
	ctx := context.Background()

	chain := newTestChain(nil, &stubGasOracle{priceWei: gwei(10)}, big.NewInt(0))
	strategy := NewGasStrategy(chain, &mockLogger{})

	settings, err := strategy.Price(ctx, 100_000, domain.Urgency("lightspeed"))
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if want := gwei(12); settings.GasPrice.Cmp(want) != 0 {
		t.Errorf("gas price = %s, want %s", settings.GasPrice, want)
	}
}
