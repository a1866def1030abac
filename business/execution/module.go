// Package execution implements the execution bounded context: gas pricing,
// payload encoding and flashloan settlement.
package execution

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	blockchainDI "github.com/fd1az/flashloan-bot/business/blockchain/di"
	"github.com/fd1az/flashloan-bot/business/execution/app"
	executionDI "github.com/fd1az/flashloan-bot/business/execution/di"
	"github.com/fd1az/flashloan-bot/business/execution/domain"
	"github.com/fd1az/flashloan-bot/business/execution/infra/ethereum"
	pricingDI "github.com/fd1az/flashloan-bot/business/pricing/di"
	"github.com/fd1az/flashloan-bot/internal/config"
	"github.com/fd1az/flashloan-bot/internal/di"
	"github.com/fd1az/flashloan-bot/internal/logger"
	"github.com/fd1az/flashloan-bot/internal/monolith"
)

// Module implements the execution bounded context.
type Module struct{}

// RegisterServices registers all execution services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Gas strategy - private dependency
	di.RegisterToken(c, executionDI.GasStrategy, func(sr di.ServiceRegistry) *app.GasStrategy {
		log := sr.Get("logger").(logger.LoggerInterface)
		chain := blockchainDI.GetChainService(sr)
		return app.NewGasStrategy(chain, log)
	})

	// Settlement client - private dependency
	di.RegisterToken(c, executionDI.SettlementClient, func(sr di.ServiceRegistry) app.SettlementClient {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		ethClient := sr.Get("ethClient").(*ethclient.Client)

		client, err := ethereum.NewSettlementClient(ethClient, ethereum.SettlementClientConfig{
			Contract:   cfg.Execution.ContractAddr(),
			Executor:   cfg.Execution.ExecutorAddr(),
			ChainID:    cfg.Ethereum.ChainID,
			PrivateKey: cfg.Execution.PrivateKey,
		}, log)
		if err != nil {
			panic("failed to create settlement client: " + err.Error())
		}
		return client
	})

	// Payload encoders, one per configured venue - private dependency
	di.RegisterToken(c, executionDI.Encoders, func(sr di.ServiceRegistry) map[string]app.PayloadEncoder {
		cfg := sr.Get("config").(*config.Config)

		encoders := make(map[string]app.PayloadEncoder, len(cfg.Venues))
		for _, venue := range cfg.Venues {
			var (
				enc app.PayloadEncoder
				err error
			)
			switch venue.Type {
			case config.VenueConstantProduct:
				enc, err = ethereum.NewV2Encoder(venue)
			case config.VenueConcentratedLiquidity:
				enc, err = ethereum.NewV3Encoder(venue)
			default:
				continue
			}
			if err != nil {
				panic("failed to create payload encoder for " + venue.ID + ": " + err.Error())
			}
			encoders[venue.ID] = enc
		}
		return encoders
	})

	// Orchestrator (public - exposed to other modules)
	di.RegisterToken(c, executionDI.Orchestrator, func(sr di.ServiceRegistry) *app.Orchestrator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		orchCfg := app.OrchestratorConfig{
			Contract:       cfg.Execution.ContractAddr(),
			Executor:       cfg.Execution.ExecutorAddr(),
			DryRun:         cfg.Execution.DryRun,
			Cooldown:       cfg.Execution.Cooldown,
			ConfirmTimeout: cfg.Execution.ConfirmTimeout,
			SlippagePct:    decimal.NewFromFloat(cfg.Execution.SlippageTolerance),
			GasDriftPct:    decimal.NewFromFloat(cfg.Execution.GasDriftTolerance),
			MinMarginPct:   decimal.NewFromFloat(cfg.Arbitrage.MinMarginPct),
			PremiumBps:     decimal.NewFromFloat(cfg.Execution.FlashloanPremiumBps),
			StaleAfter:     cfg.Arbitrage.QuoteTTL,
			Urgency:        domain.ParseUrgency(cfg.Execution.Urgency),
		}

		return app.NewOrchestrator(
			orchCfg,
			blockchainDI.GetChainService(sr),
			executionDI.GetGasStrategy(sr),
			executionDI.GetSettlementClient(sr),
			di.GetToken(sr, executionDI.Encoders),
			pricingDI.GetReferenceOracle(sr),
			log,
		)
	})

	return nil
}

// Startup initializes the execution module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	executionDI.GetOrchestrator(mono.Services())

	log.Info(ctx, "execution module started",
		"dry_run", mono.Config().Execution.DryRun,
		"contract", mono.Config().Execution.ContractAddress,
	)
	return nil
}
