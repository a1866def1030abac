// Package arbitrage implements the arbitrage bounded context: opportunity
// detection, profitability analysis, risk gating and the scan loop.
package arbitrage

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-bot/business/arbitrage/app"
	arbitrageDI "github.com/fd1az/flashloan-bot/business/arbitrage/di"
	"github.com/fd1az/flashloan-bot/business/arbitrage/infra/alert"
	"github.com/fd1az/flashloan-bot/business/arbitrage/infra/stats"
	blockchainDI "github.com/fd1az/flashloan-bot/business/blockchain/di"
	executionDI "github.com/fd1az/flashloan-bot/business/execution/di"
	pricingDI "github.com/fd1az/flashloan-bot/business/pricing/di"
	pricingDomain "github.com/fd1az/flashloan-bot/business/pricing/domain"
	"github.com/fd1az/flashloan-bot/internal/asset"
	"github.com/fd1az/flashloan-bot/internal/config"
	"github.com/fd1az/flashloan-bot/internal/di"
	"github.com/fd1az/flashloan-bot/internal/logger"
	"github.com/fd1az/flashloan-bot/internal/monolith"
)

// Module implements the arbitrage bounded context.
type Module struct{}

// RegisterServices registers all arbitrage services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Stats store - private dependency, redis-backed when enabled
	di.RegisterToken(c, arbitrageDI.StatsStore, func(sr di.ServiceRegistry) app.StatsStore {
		cfg := sr.Get("config").(*config.Config)
		redisClient, _ := sr.Get("redisClient").(*redis.Client)

		if cfg.Redis.Enabled && redisClient != nil {
			return stats.NewRedisStore(redisClient, cfg.App.Name)
		}
		return stats.NewMemoryStore()
	})

	// Alert sinks - private dependency
	di.RegisterToken(c, arbitrageDI.Alerters, func(sr di.ServiceRegistry) []app.Alerter {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		alerters := []app.Alerter{alert.NewLogAlerter(log)}
		if cfg.Alerts.WebhookURL != "" {
			webhook, err := alert.NewWebhookAlerter(cfg.Alerts.WebhookURL, log)
			if err != nil {
				panic("failed to create webhook alerter: " + err.Error())
			}
			alerters = append(alerters, webhook)
		}
		return alerters
	})

	// Finder - private dependency
	di.RegisterToken(c, arbitrageDI.Finder, func(sr di.ServiceRegistry) *app.Finder {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		finder, err := app.NewFinder(
			pricingDI.GetQuoteService(sr),
			pricingDI.GetReferenceOracle(sr),
			app.FinderConfig{
				Venues:             cfg.Venues,
				MinSpreadPct:       decimal.NewFromFloat(cfg.Arbitrage.MinSpreadPct),
				OracleDeviationPct: decimal.NewFromFloat(cfg.Arbitrage.OracleDeviationPct),
			},
			log,
		)
		if err != nil {
			panic("failed to create opportunity finder: " + err.Error())
		}
		return finder
	})

	// Calculator - private dependency
	di.RegisterToken(c, arbitrageDI.Calculator, func(sr di.ServiceRegistry) *app.Calculator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		feeRates := make(map[string]decimal.Decimal, len(cfg.Venues))
		for _, venue := range cfg.Venues {
			feeRates[venue.ID] = venue.FeeRate()
		}

		return app.NewCalculator(
			blockchainDI.GetChainService(sr),
			pricingDI.GetReferenceOracle(sr),
			feeRates,
			app.CalculatorConfig{
				FlashloanPremiumBps: decimal.NewFromFloat(cfg.Execution.FlashloanPremiumBps),
				MinProfitUSD:        decimal.NewFromFloat(cfg.Arbitrage.MinProfitUSD),
				MinMarginPct:        decimal.NewFromFloat(cfg.Arbitrage.MinMarginPct),
				MaxRiskScore:        int(cfg.Arbitrage.MaxRiskScore),
			},
			log,
		)
	})

	// Risk manager - private dependency
	di.RegisterToken(c, arbitrageDI.RiskManager, func(sr di.ServiceRegistry) *app.RiskManager {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewRiskManager(
			di.GetToken(sr, arbitrageDI.StatsStore),
			app.RiskManagerConfig{
				Risk:           cfg.Risk,
				MarginFloorPct: decimal.NewFromFloat(cfg.Arbitrage.MinMarginPct),
			},
			log,
		)
	})

	// Monitor (public - exposed for health reporting)
	di.RegisterToken(c, arbitrageDI.Monitor, func(sr di.ServiceRegistry) *app.Monitor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewMonitor(cfg.Alerts, di.GetToken(sr, arbitrageDI.Alerters), log)
	})

	// Scanner (public - drives the whole pipeline)
	di.RegisterToken(c, arbitrageDI.Scanner, func(sr di.ServiceRegistry) *app.Scanner {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		pairs, err := parsePairs(cfg.Arbitrage.Pairs, registry, cfg.Ethereum.ChainID)
		if err != nil {
			panic("failed to parse trading pairs: " + err.Error())
		}

		sizes := make([]decimal.Decimal, 0, len(cfg.Arbitrage.TradeSizes))
		for _, size := range cfg.Arbitrage.TradeSizes {
			sizes = append(sizes, decimal.NewFromFloat(size))
		}

		return app.NewScanner(
			app.ScannerConfig{
				Pairs:         pairs,
				TradeSizes:    sizes,
				ScanInterval:  cfg.Arbitrage.ScanInterval,
				AlertInterval: cfg.Alerts.Interval,
			},
			arbitrageDI.GetFinder(sr),
			arbitrageDI.GetCalculator(sr),
			arbitrageDI.GetRiskManager(sr),
			arbitrageDI.GetMonitor(sr),
			executionDI.GetOrchestrator(sr),
			log,
		)
	})

	return nil
}

// Startup builds the pipeline and launches the scan loop.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	scanner := arbitrageDI.GetScanner(mono.Services())
	scanner.Start(ctx)

	log.Info(ctx, "arbitrage module started",
		"pairs", mono.Config().Arbitrage.Pairs,
		"scan_interval", mono.Config().Arbitrage.ScanInterval,
		"dry_run", mono.Config().Execution.DryRun,
	)
	return nil
}

// parsePairs resolves "BASE-QUOTE" symbol pairs against the asset registry.
func parsePairs(raw []string, registry *asset.Registry, chainID uint64) ([]pricingDomain.Pair, error) {
	pairs := make([]pricingDomain.Pair, 0, len(raw))
	for _, entry := range raw {
		parts := strings.SplitN(entry, "-", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed pair %q, want BASE-QUOTE", entry)
		}

		base, ok := registry.BySymbol(parts[0], chainID)
		if !ok {
			return nil, fmt.Errorf("unknown base asset %q on chain %d", parts[0], chainID)
		}
		quote, ok := registry.BySymbol(parts[1], chainID)
		if !ok {
			return nil, fmt.Errorf("unknown quote asset %q on chain %d", parts[1], chainID)
		}

		pairs = append(pairs, pricingDomain.NewPair(base, quote))
	}
	return pairs, nil
}
