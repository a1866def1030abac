// Package domain contains the core domain types for the arbitrage context.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	pricingDomain "github.com/fd1az/flashloan-bot/business/pricing/domain"
	"github.com/fd1az/flashloan-bot/internal/asset"
)

// Opportunity is a detected price discrepancy: borrow the base asset, sell
// it on the expensive venue, buy it back on the cheap one, repay, keep the
// difference. Derived data, never persisted past its decision lifecycle.
//
// Invariant: SellQuote.Price > BuyQuote.Price strictly, and SpreadPct
// cleared the configured minimum before emission.
type Opportunity struct {
	ID           string
	Pair         pricingDomain.Pair
	BuyQuote     *pricingDomain.Quote // cheapest venue
	SellQuote    *pricingDomain.Quote // most expensive venue
	SpreadPct    decimal.Decimal      // (sell - buy) / buy * 100
	BorrowAmount asset.Amount         // flashloan size, in the base asset
	DiscoveredAt time.Time
}

// NewOpportunity builds an Opportunity with a derived id and spread.
func NewOpportunity(pair pricingDomain.Pair, buy, sell *pricingDomain.Quote, borrow asset.Amount) *Opportunity {
	now := time.Now()
	spread := sell.Price.Sub(buy.Price).
		Div(buy.Price).
		Mul(decimal.NewFromInt(100))

	return &Opportunity{
		ID:           fmt.Sprintf("%s:%s>%s:%d", pair, buy.VenueID, sell.VenueID, now.UnixNano()),
		Pair:         pair,
		BuyQuote:     buy,
		SellQuote:    sell,
		SpreadPct:    spread,
		BorrowAmount: borrow,
		DiscoveredAt: now,
	}
}

// BuyVenue returns the venue id of the cheap leg.
func (o *Opportunity) BuyVenue() string { return o.BuyQuote.VenueID }

// SellVenue returns the venue id of the expensive leg.
func (o *Opportunity) SellVenue() string { return o.SellQuote.VenueID }

// IsFresh reports whether the opportunity is younger than the window.
func (o *Opportunity) IsFresh(window time.Duration, now time.Time) bool {
	return now.Sub(o.DiscoveredAt) <= window
}
