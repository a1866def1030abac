package asset

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrNilAsset        = errors.New("asset: nil asset")
	ErrNegativeAmount  = errors.New("asset: negative amount")
	ErrAssetMismatch   = errors.New("asset: cannot operate on different assets")
	ErrTooManyDecimals = errors.New("asset: too many decimal places for asset")
)

// Amount is an immutable quantity of one asset, held in raw smallest units.
type Amount struct {
	raw   *big.Int
	asset *Asset
}

// NewAmount creates an Amount from raw smallest units.
func NewAmount(a *Asset, raw *big.Int) Amount {
	if a == nil {
		panic(ErrNilAsset)
	}
	if raw == nil || raw.Sign() < 0 {
		panic(ErrNegativeAmount)
	}
	return Amount{raw: new(big.Int).Set(raw), asset: a}
}

// Zero returns a zero Amount for the asset.
func Zero(a *Asset) Amount {
	return NewAmount(a, big.NewInt(0))
}

// ParseDecimal converts a human-denominated decimal into an Amount,
// rejecting values with more fractional digits than the asset carries.
func ParseDecimal(a *Asset, d decimal.Decimal) (Amount, error) {
	if a == nil {
		return Amount{}, ErrNilAsset
	}
	if d.IsNegative() {
		return Amount{}, ErrNegativeAmount
	}

	scaled := d.Shift(int32(a.Decimals()))
	if !scaled.Equal(scaled.Truncate(0)) {
		return Amount{}, ErrTooManyDecimals
	}

	return NewAmount(a, scaled.BigInt()), nil
}

// MustParseDecimal is ParseDecimal that panics; for static fixtures only.
func MustParseDecimal(a *Asset, d decimal.Decimal) Amount {
	amt, err := ParseDecimal(a, d)
	if err != nil {
		panic(err)
	}
	return amt
}

// Raw returns a copy of the raw value.
func (a Amount) Raw() *big.Int {
	if a.raw == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.raw)
}

// Asset returns the denomination.
func (a Amount) Asset() *Asset { return a.asset }

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.raw == nil || a.raw.Sign() == 0 }

// IsPositive reports whether the amount is greater than zero.
func (a Amount) IsPositive() bool { return a.raw != nil && a.raw.Sign() > 0 }

// Add sums two amounts of the same asset.
func (a Amount) Add(b Amount) (Amount, error) {
	if !a.asset.Equals(b.asset) {
		return Amount{}, ErrAssetMismatch
	}
	return NewAmount(a.asset, new(big.Int).Add(a.raw, b.raw)), nil
}

// Cmp compares two amounts of the same asset (-1, 0, 1).
func (a Amount) Cmp(b Amount) (int, error) {
	if !a.asset.Equals(b.asset) {
		return 0, ErrAssetMismatch
	}
	return a.raw.Cmp(b.raw), nil
}

// ToDecimal converts to a human-denominated decimal. Boundary use only.
func (a Amount) ToDecimal() decimal.Decimal {
	if a.raw == nil || a.asset == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.raw, -int32(a.asset.Decimals()))
}

// String returns e.g. "1.5 WETH".
func (a Amount) String() string {
	if a.asset == nil {
		return "0 ???"
	}
	return fmt.Sprintf("%s %s", a.ToDecimal().String(), a.asset.Symbol())
}
