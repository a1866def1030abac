// Package blockchain implements the blockchain bounded context for node integration.
package blockchain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-bot/business/blockchain/app"
	blockchainDI "github.com/fd1az/flashloan-bot/business/blockchain/di"
	"github.com/fd1az/flashloan-bot/business/blockchain/infra/ethereum"
	"github.com/fd1az/flashloan-bot/internal/config"
	"github.com/fd1az/flashloan-bot/internal/di"
	"github.com/fd1az/flashloan-bot/internal/logger"
	"github.com/fd1az/flashloan-bot/internal/monolith"
)

// Module implements the blockchain bounded context.
type Module struct{}

// RegisterServices registers all blockchain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Block subscriber - private dependency
	di.RegisterToken(c, blockchainDI.BlockSubscriber, func(sr di.ServiceRegistry) app.BlockSubscriber {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		subCfg := ethereum.DefaultSubscriberConfig(cfg.Ethereum.WebSocketURL, cfg.Ethereum.HTTPURL)
		if cfg.Ethereum.InitialBackoff > 0 {
			subCfg.InitialBackoff = cfg.Ethereum.InitialBackoff
		}
		if cfg.Ethereum.MaxBackoff > 0 {
			subCfg.MaxBackoff = cfg.Ethereum.MaxBackoff
		}

		sub, err := ethereum.NewSubscriber(subCfg, log)
		if err != nil {
			panic("failed to create block subscriber: " + err.Error())
		}
		return sub
	})

	// Gas oracle - private dependency
	di.RegisterToken(c, blockchainDI.GasOracle, func(sr di.ServiceRegistry) app.GasOracle {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		ethClient := sr.Get("ethClient").(*ethclient.Client)

		pricerCfg := ethereum.DefaultGasPricerConfig()
		if cfg.Risk.MaxGasPriceGwei > 0 {
			// The risk gas cap doubles as the oracle clamp.
			pricerCfg.MaxGasPrice = gweiToWei(cfg.Risk.MaxGasPriceGwei)
		}

		pricer, err := ethereum.NewGasPricer(ethClient, pricerCfg, log)
		if err != nil {
			panic("failed to create gas pricer: " + err.Error())
		}
		return pricer
	})

	// Balance reader - private dependency
	di.RegisterToken(c, blockchainDI.BalanceReader, func(sr di.ServiceRegistry) app.BalanceReader {
		ethClient := sr.Get("ethClient").(*ethclient.Client)
		return ethereum.NewBalanceReader(ethClient)
	})

	// ChainService (public - exposed to other modules)
	di.RegisterToken(c, blockchainDI.ChainService, func(sr di.ServiceRegistry) *app.ChainService {
		sub := blockchainDI.GetBlockSubscriber(sr)
		oracle := blockchainDI.GetGasOracle(sr)
		balances := di.GetToken(sr, blockchainDI.BalanceReader)
		return app.NewChainService(sub, oracle, balances)
	})

	return nil
}

// Startup initializes the blockchain module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	blockchainDI.GetChainService(mono.Services())

	log.Info(ctx, "blockchain module started",
		"ws_url", mono.Config().Ethereum.WebSocketURL != "",
		"chain_id", mono.Config().Ethereum.ChainID,
	)
	return nil
}

func gweiToWei(gwei float64) *big.Int {
	return decimal.NewFromFloat(gwei).Shift(9).BigInt()
}
