// Package domain holds execution-side value objects: transaction gas
// settings and the flashloan call parameters.
package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Urgency selects how aggressively a transaction bids for inclusion.
type Urgency string

const (
	UrgencySlow     Urgency = "slow"
	UrgencyStandard Urgency = "standard"
	UrgencyFast     Urgency = "fast"
	UrgencyUrgent   Urgency = "urgent"
)

// ParseUrgency maps a config string to an Urgency, defaulting to standard.
func ParseUrgency(s string) Urgency {
	switch Urgency(s) {
	case UrgencySlow, UrgencyStandard, UrgencyFast, UrgencyUrgent:
		return Urgency(s)
	default:
		return UrgencyStandard
	}
}

// GasSettings is a fully priced transaction fee decision. Exactly one of
// the two pricing modes is populated: fee-market transactions carry tip
// and fee cap, legacy ones carry GasPrice.
type GasSettings struct {
	GasPrice  *big.Int // legacy pricing, nil on fee-market chains
	GasTipCap *big.Int // EIP-1559 priority fee
	GasFeeCap *big.Int // EIP-1559 max fee
	GasLimit  uint64
}

// Legacy reports whether the settings use legacy gas pricing.
func (g *GasSettings) Legacy() bool {
	return g.GasPrice != nil
}

// EffectivePriceWei returns the price used for cost projections: the fee
// cap on fee-market settings, the gas price otherwise.
func (g *GasSettings) EffectivePriceWei() *big.Int {
	if g.Legacy() {
		return g.GasPrice
	}
	return g.GasFeeCap
}

// MaxCostWei returns the worst-case fee for the settings.
func (g *GasSettings) MaxCostWei() *big.Int {
	return new(big.Int).Mul(g.EffectivePriceWei(), new(big.Int).SetUint64(g.GasLimit))
}

// MaxCostETH returns the worst-case fee in ether units.
func (g *GasSettings) MaxCostETH() decimal.Decimal {
	return decimal.NewFromBigInt(g.MaxCostWei(), -18)
}
