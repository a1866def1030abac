package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Costs itemizes everything the round trip pays, denominated both in the
// borrowed asset and in USD.
type Costs struct {
	VenueFeesAsset decimal.Decimal // both swap legs
	VenueFeesUSD   decimal.Decimal
	PremiumAsset   decimal.Decimal // flashloan premium
	PremiumUSD     decimal.Decimal
	GasAsset       decimal.Decimal
	GasUSD         decimal.Decimal
}

// TotalAsset sums all costs in borrowed-asset units.
func (c Costs) TotalAsset() decimal.Decimal {
	return c.VenueFeesAsset.Add(c.PremiumAsset).Add(c.GasAsset)
}

// TotalUSD sums all costs in USD.
func (c Costs) TotalUSD() decimal.Decimal {
	return c.VenueFeesUSD.Add(c.PremiumUSD).Add(c.GasUSD)
}

// ProfitabilityReport is the full cost/benefit breakdown for one
// opportunity. Negative-profit candidates still get a report so the logs
// say why something was rejected.
//
// Invariant: NetAsset = GrossAsset - Costs.TotalAsset(), and
// IsProfitable = NetAsset > 0.
type ProfitabilityReport struct {
	BorrowedUSD decimal.Decimal // flashloan size at the reference price

	GrossAsset decimal.Decimal
	GrossUSD   decimal.Decimal
	Costs      Costs
	NetAsset   decimal.Decimal
	NetUSD     decimal.Decimal
	MarginPct  decimal.Decimal // net / borrowed * 100

	// BreakEvenAsset is the minimum borrow size at which the trade stops
	// being a loss at the observed spread.
	BreakEvenAsset decimal.Decimal

	RiskScore    int // 0-100 additive heuristic
	IsProfitable bool

	// GasPriceWei is the price the gas cost was computed at. The
	// orchestrator re-checks drift against it before submitting.
	GasPriceWei *big.Int
	GasLimit    uint64

	EvaluatedAt time.Time
}
