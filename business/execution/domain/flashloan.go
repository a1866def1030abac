package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SwapLeg is one venue hop inside the flashloan callback.
type SwapLeg struct {
	VenueID  string
	Router   common.Address
	TokenIn  common.Address
	TokenOut common.Address
	AmountIn *big.Int
	// MinAmountOut bounds slippage on-chain; the callback reverts below it.
	MinAmountOut *big.Int
	Calldata     []byte
}

// FlashLoanRequest is everything the settlement contract needs to borrow,
// route and repay in one transaction.
type FlashLoanRequest struct {
	Asset  common.Address
	Amount *big.Int
	Legs   []SwapLeg
	// Params is the ABI-encoded leg routing passed through the lender's
	// callback to the settlement contract.
	Params []byte
}
