// Package app contains application services and port definitions for the blockchain context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/flashloan-bot/business/blockchain/domain"
)

// BlockSubscriber defines the interface for subscribing to new blocks.
type BlockSubscriber interface {
	// Subscribe starts listening for new blocks and returns a channel of blocks.
	Subscribe(ctx context.Context) (<-chan *domain.Block, error)

	// LatestBlock retrieves the most recent block header.
	LatestBlock(ctx context.Context) (*domain.Block, error)

	// State returns the current connection state.
	State() domain.ConnectionState
}

// GasOracle defines the interface for gas price and gas limit information.
type GasOracle interface {
	// GetGasPrice retrieves the current network gas price.
	GetGasPrice(ctx context.Context) (*domain.GasPrice, error)

	// GetGasTipCap retrieves the suggested priority fee on fee-market chains.
	GetGasTipCap(ctx context.Context) (*big.Int, error)

	// EstimateGas estimates the gas limit for a call, including the
	// configured safety margin. Falls back to a default ceiling on failure.
	EstimateGas(ctx context.Context, to common.Address, data []byte) (uint64, error)
}

// BalanceReader reads native currency balances.
type BalanceReader interface {
	NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error)
}
