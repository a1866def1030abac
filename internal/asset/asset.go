// Package asset provides a type-safe model for on-chain tokens.
// Quantities are carried as big.Int raw units (wei-scale); decimal.Decimal
// appears only at boundaries for parsing and display.
package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ID uniquely identifies a token by chain and contract address. The symbol
// is display metadata, never identity - two chains can both have a "USDC".
type ID struct {
	chainID uint64
	address common.Address // zero address = native coin
}

// NativeID returns the ID of a chain's native coin.
func NativeID(chainID uint64) ID {
	return ID{chainID: chainID}
}

// TokenID returns the ID of an ERC20 token.
func TokenID(chainID uint64, addr common.Address) ID {
	if addr == (common.Address{}) {
		panic("asset: token address cannot be zero, use NativeID")
	}
	return ID{chainID: chainID, address: addr}
}

// ChainID returns the chain the asset lives on.
func (id ID) ChainID() uint64 { return id.chainID }

// Address returns the contract address (zero for native coins).
func (id ID) Address() common.Address { return id.address }

// IsNative reports whether this is a chain's native coin.
func (id ID) IsNative() bool { return id.address == (common.Address{}) }

// Equals compares two IDs.
func (id ID) Equals(other ID) bool { return id == other }

// String returns chainID:address.
func (id ID) String() string {
	if id.IsNative() {
		return fmt.Sprintf("%d:native", id.chainID)
	}
	return fmt.Sprintf("%d:%s", id.chainID, id.address.Hex())
}

// Asset holds the immutable metadata of a token.
type Asset struct {
	id       ID
	symbol   string
	name     string
	decimals uint8
}

// New creates an Asset. Decimals above 30 indicate corrupted metadata.
func New(id ID, symbol, name string, decimals uint8) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > 30 {
		panic("asset: suspicious decimals (>30)")
	}
	return &Asset{id: id, symbol: symbol, name: name, decimals: decimals}
}

// ID returns the asset's identity.
func (a *Asset) ID() ID { return a.id }

// Symbol returns the ticker symbol, e.g. "WETH".
func (a *Asset) Symbol() string { return a.symbol }

// Name returns the human-readable name, falling back to the symbol.
func (a *Asset) Name() string {
	if a.name == "" {
		return a.symbol
	}
	return a.name
}

// Decimals returns the number of decimal places.
func (a *Asset) Decimals() uint8 { return a.decimals }

// Address returns the contract address (zero for native coins).
func (a *Asset) Address() common.Address { return a.id.Address() }

// ChainID returns the chain the asset lives on.
func (a *Asset) ChainID() uint64 { return a.id.ChainID() }

// Equals compares assets by identity.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id == other.id
}

// String returns the symbol.
func (a *Asset) String() string { return a.symbol }
