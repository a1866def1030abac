// Package app contains application services and port definitions for the blockchain context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/flashloan-bot/business/blockchain/domain"
)

// ChainService coordinates node interactions for the other contexts.
type ChainService struct {
	subscriber BlockSubscriber
	gasOracle  GasOracle
	balances   BalanceReader
}

// NewChainService creates a new ChainService.
func NewChainService(subscriber BlockSubscriber, gasOracle GasOracle, balances BalanceReader) *ChainService {
	return &ChainService{
		subscriber: subscriber,
		gasOracle:  gasOracle,
		balances:   balances,
	}
}

// SubscribeBlocks starts the block subscription and returns the channel.
func (s *ChainService) SubscribeBlocks(ctx context.Context) (<-chan *domain.Block, error) {
	return s.subscriber.Subscribe(ctx)
}

// LatestBlock retrieves the most recent block header.
func (s *ChainService) LatestBlock(ctx context.Context) (*domain.Block, error) {
	return s.subscriber.LatestBlock(ctx)
}

// ConnectionState returns the current node connection state.
func (s *ChainService) ConnectionState() domain.ConnectionState {
	return s.subscriber.State()
}

// GetGasPrice retrieves the current network gas price.
func (s *ChainService) GetGasPrice(ctx context.Context) (*domain.GasPrice, error) {
	return s.gasOracle.GetGasPrice(ctx)
}

// GetGasTipCap retrieves the suggested priority fee.
func (s *ChainService) GetGasTipCap(ctx context.Context) (*big.Int, error) {
	return s.gasOracle.GetGasTipCap(ctx)
}

// EstimateGas estimates a call's gas limit with the safety margin applied.
func (s *ChainService) EstimateGas(ctx context.Context, to common.Address, data []byte) (uint64, error) {
	return s.gasOracle.EstimateGas(ctx, to, data)
}

// NativeBalance reads an account's native currency balance.
func (s *ChainService) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return s.balances.NativeBalance(ctx, addr)
}
