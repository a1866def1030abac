// Package pricing implements the pricing bounded context: venue quotes and
// independent reference prices.
package pricing

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-bot/business/pricing/app"
	pricingDI "github.com/fd1az/flashloan-bot/business/pricing/di"
	"github.com/fd1az/flashloan-bot/business/pricing/infra/chainlink"
	"github.com/fd1az/flashloan-bot/business/pricing/infra/univ2"
	"github.com/fd1az/flashloan-bot/business/pricing/infra/univ3"
	"github.com/fd1az/flashloan-bot/internal/asset"
	"github.com/fd1az/flashloan-bot/internal/config"
	"github.com/fd1az/flashloan-bot/internal/di"
	"github.com/fd1az/flashloan-bot/internal/logger"
	"github.com/fd1az/flashloan-bot/internal/monolith"
	"github.com/fd1az/flashloan-bot/internal/ratelimit"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Constant-product quoter - private dependency
	di.RegisterToken(c, pricingDI.ConstantProductQuoter, func(sr di.ServiceRegistry) app.VenueQuoter {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		ethClient := sr.Get("ethClient").(*ethclient.Client)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		minReserve := asset.MustParseDecimal(asset.WETH,
			decimal.NewFromFloat(cfg.Arbitrage.MinPoolLiquidity))

		provider, err := univ2.NewProvider(ethClient, minReserve, registry, log)
		if err != nil {
			panic("failed to create constant-product quoter: " + err.Error())
		}
		return provider
	})

	// Concentrated-liquidity quoter - private dependency
	di.RegisterToken(c, pricingDI.ConcentratedLiquidityQuoter, func(sr di.ServiceRegistry) app.VenueQuoter {
		log := sr.Get("logger").(logger.LoggerInterface)
		ethClient := sr.Get("ethClient").(*ethclient.Client)

		provider, err := univ3.NewProvider(ethClient, log)
		if err != nil {
			panic("failed to create concentrated-liquidity quoter: " + err.Error())
		}
		return provider
	})

	// Reference oracle (public - exposed to other modules)
	di.RegisterToken(c, pricingDI.ReferenceOracle, func(sr di.ServiceRegistry) app.ReferenceOracle {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		ethClient := sr.Get("ethClient").(*ethclient.Client)

		oracle, err := chainlink.NewOracle(ethClient, cfg.Oracle, log)
		if err != nil {
			panic("failed to create reference oracle: " + err.Error())
		}
		return oracle
	})

	// QuoteService (public - exposed to other modules)
	di.RegisterToken(c, pricingDI.QuoteService, func(sr di.ServiceRegistry) *app.QuoteService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		quoters := map[config.VenueType]app.VenueQuoter{
			config.VenueConstantProduct:       di.GetToken(sr, pricingDI.ConstantProductQuoter),
			config.VenueConcentratedLiquidity: di.GetToken(sr, pricingDI.ConcentratedLiquidityQuoter),
		}

		var limiter *ratelimit.Limiter
		if cfg.Ethereum.RPCRateLimit > 0 {
			limiter = ratelimit.New(cfg.Ethereum.RPCRateLimit)
		}

		svc, err := app.NewQuoteService(quoters, cfg.Arbitrage.QuoteTTL, limiter, log)
		if err != nil {
			panic("failed to create quote service: " + err.Error())
		}
		return svc
	})

	return nil
}

// Startup initializes the pricing module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	// Force construction so wiring errors surface at startup, not mid-scan.
	pricingDI.GetQuoteService(mono.Services())
	pricingDI.GetReferenceOracle(mono.Services())

	log.Info(ctx, "pricing module started",
		"venues", len(mono.Config().Venues),
		"feeds", len(mono.Config().Oracle.Feeds),
	)
	return nil
}
