package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-bot/internal/asset"
)

// PoolLiquidity is a snapshot of the reserves behind a quote, taken at
// capture time. Values are in raw token units; zero for venue types that
// do not expose reserves through the quote path.
type PoolLiquidity struct {
	ReserveIn  asset.Amount
	ReserveOut asset.Amount
}

// TierAttempt records one fee-tier probe against a concentrated-liquidity
// venue. Failures are data, not swallowed exceptions - operators can see
// which tiers actually have a pool.
type TierAttempt struct {
	FeeTier   int
	AmountOut decimal.Decimal
	Err       string // empty on success
}

// Quote is an immutable indicative exchange rate captured from one venue.
type Quote struct {
	VenueID    string
	TokenIn    *asset.Asset
	TokenOut   *asset.Asset
	AmountIn   asset.Amount
	AmountOut  asset.Amount
	Price      decimal.Decimal // human-denominated AmountOut / AmountIn
	FeeTier    int             // hundredths of a bip; 0 for constant-product venues
	Liquidity  PoolLiquidity
	Attempts   []TierAttempt // tier ladder diagnostics, concentrated venues only
	CapturedAt time.Time
}

// NewQuote builds a Quote, deriving the effective price from the amounts.
func NewQuote(venueID string, amountIn, amountOut asset.Amount) Quote {
	price := decimal.Zero
	in := amountIn.ToDecimal()
	if !in.IsZero() {
		price = amountOut.ToDecimal().Div(in)
	}

	return Quote{
		VenueID:    venueID,
		TokenIn:    amountIn.Asset(),
		TokenOut:   amountOut.Asset(),
		AmountIn:   amountIn,
		AmountOut:  amountOut,
		Price:      price,
		CapturedAt: time.Now(),
	}
}

// IsFresh reports whether the quote is younger than the freshness window.
func (q *Quote) IsFresh(window time.Duration, now time.Time) bool {
	return now.Sub(q.CapturedAt) <= window
}

// ReferencePrice is an oracle-sourced USD price for one symbol.
type ReferencePrice struct {
	Symbol    string
	USD       decimal.Decimal
	UpdatedAt time.Time
	Fallback  bool // true when served from the static fallback table
}
