// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/flashloan-bot/business/pricing/app"
	"github.com/fd1az/flashloan-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	QuoteService    = di.NewToken[*app.QuoteService]("pricing.QuoteService")
	ReferenceOracle = di.NewToken[app.ReferenceOracle]("pricing.ReferenceOracle")
)

// Private dependency tokens - internal to pricing module
var (
	ConstantProductQuoter       = di.NewToken[app.VenueQuoter]("pricing:constantProductQuoter")
	ConcentratedLiquidityQuoter = di.NewToken[app.VenueQuoter]("pricing:concentratedLiquidityQuoter")
)

// Helper functions for type-safe access
func GetQuoteService(c di.ServiceRegistry) *app.QuoteService {
	return di.GetToken(c, QuoteService)
}

func GetReferenceOracle(c di.ServiceRegistry) app.ReferenceOracle {
	return di.GetToken(c, ReferenceOracle)
}
