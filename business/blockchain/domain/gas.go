// Package domain contains the core domain types for the blockchain context.
package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// GasPrice is a sampled network gas price.
type GasPrice struct {
	Wei       *big.Int
	Timestamp time.Time
}

// NewGasPrice creates a GasPrice sampled now.
func NewGasPrice(wei *big.Int) *GasPrice {
	return &GasPrice{Wei: new(big.Int).Set(wei), Timestamp: time.Now()}
}

// Gwei returns the price in gwei as a decimal.
func (p *GasPrice) Gwei() decimal.Decimal {
	return decimal.NewFromBigInt(p.Wei, -9)
}

// GasEstimate is a gas limit paired with the price it was costed at.
type GasEstimate struct {
	GasLimit uint64
	Price    *GasPrice
	TotalWei *big.Int
}

// NewGasEstimate computes the total cost for a limit at the given price.
func NewGasEstimate(gasLimit uint64, price *GasPrice) *GasEstimate {
	total := new(big.Int).Mul(price.Wei, new(big.Int).SetUint64(gasLimit))
	return &GasEstimate{
		GasLimit: gasLimit,
		Price:    price,
		TotalWei: total,
	}
}

// TotalETH returns the total cost in ETH as a decimal.
func (e *GasEstimate) TotalETH() decimal.Decimal {
	return decimal.NewFromBigInt(e.TotalWei, -18)
}
