// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"

	"github.com/fd1az/flashloan-bot/business/pricing/domain"
	"github.com/fd1az/flashloan-bot/internal/asset"
	"github.com/fd1az/flashloan-bot/internal/config"
)

// VenueQuoter quotes one venue type. A (nil, nil) return means the venue
// has nothing to offer for this trade - missing pool, dry tiers, thin
// liquidity. That is a normal outcome, not an error.
type VenueQuoter interface {
	GetQuote(ctx context.Context, venue config.VenueConfig, amountIn asset.Amount, tokenOut *asset.Asset) (*domain.Quote, error)
}

// ReferenceOracle supplies independent USD reference prices. GetPrice never
// fails: any feed problem degrades to the static fallback table.
type ReferenceOracle interface {
	GetPrice(ctx context.Context, symbol string) domain.ReferencePrice
	GetPrices(ctx context.Context, symbols []string) map[string]domain.ReferencePrice
}
