// Package app orchestrates flashloan execution: pricing the transaction,
// revalidating the opportunity and driving it through the settlement
// contract.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/flashloan-bot/business/execution/domain"
)

const (
	tracerName = "github.com/fd1az/flashloan-bot/business/execution/app"
	meterName  = "github.com/fd1az/flashloan-bot/business/execution/app"
)

// EncodeParams describes one swap leg to encode.
type EncodeParams struct {
	TokenIn      common.Address
	TokenOut     common.Address
	AmountIn     *big.Int
	MinAmountOut *big.Int
	FeeTier      int // hundredths of a bip, concentrated venues only
	Recipient    common.Address
	Deadline     *big.Int // unix seconds
}

// PayloadEncoder builds the router calldata for one swap leg. One encoder
// exists per venue, bound to its router at construction.
type PayloadEncoder interface {
	Encode(params EncodeParams) (domain.SwapLeg, error)
}

// SettlementClient is the on-chain settlement contract boundary.
type SettlementClient interface {
	// RequestFlashLoan submits the borrow-route-repay transaction.
	RequestFlashLoan(ctx context.Context, req *domain.FlashLoanRequest, gas *domain.GasSettings) (common.Hash, error)
	// WaitMined blocks until the transaction is mined or ctx expires.
	WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	// ActiveVenues lists the router addresses the contract will call.
	ActiveVenues(ctx context.Context) ([]common.Address, error)
	// EstimateGas dry-runs the flashloan request against the node.
	EstimateGas(ctx context.Context, req *domain.FlashLoanRequest) (uint64, error)
}
