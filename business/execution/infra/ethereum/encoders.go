package ethereum

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/flashloan-bot/business/execution/app"
	"github.com/fd1az/flashloan-bot/business/execution/domain"
	"github.com/fd1az/flashloan-bot/internal/config"
)

// Ensure both encoders satisfy the port.
var (
	_ app.PayloadEncoder = (*V2Encoder)(nil)
	_ app.PayloadEncoder = (*V3Encoder)(nil)
)

// V2Encoder builds swapExactTokensForTokens calldata for constant-product
// routers.
type V2Encoder struct {
	venueID   string
	router    common.Address
	routerABI abi.ABI
}

// NewV2Encoder creates an encoder bound to one venue's router.
func NewV2Encoder(venue config.VenueConfig) (*V2Encoder, error) {
	routerABI, err := abi.JSON(strings.NewReader(SwapRouterV2ABI))
	if err != nil {
		return nil, fmt.Errorf("parse v2 router ABI: %w", err)
	}
	return &V2Encoder{
		venueID:   venue.ID,
		router:    venue.RouterAddress(),
		routerABI: routerABI,
	}, nil
}

// Encode packs one direct-pair swap through the router.
func (e *V2Encoder) Encode(params app.EncodeParams) (domain.SwapLeg, error) {
	path := []common.Address{params.TokenIn, params.TokenOut}

	calldata, err := e.routerABI.Pack("swapExactTokensForTokens",
		params.AmountIn,
		params.MinAmountOut,
		path,
		params.Recipient,
		params.Deadline,
	)
	if err != nil {
		return domain.SwapLeg{}, fmt.Errorf("encode v2 swap for %s: %w", e.venueID, err)
	}

	return domain.SwapLeg{
		VenueID:      e.venueID,
		Router:       e.router,
		TokenIn:      params.TokenIn,
		TokenOut:     params.TokenOut,
		AmountIn:     params.AmountIn,
		MinAmountOut: params.MinAmountOut,
		Calldata:     calldata,
	}, nil
}

// exactInputSingleParams mirrors the v3 router's input tuple.
type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int // uint24
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int // uint160, 0 for no limit
}

// V3Encoder builds exactInputSingle calldata for concentrated-liquidity
// routers.
type V3Encoder struct {
	venueID   string
	router    common.Address
	routerABI abi.ABI
}

// NewV3Encoder creates an encoder bound to one venue's router.
func NewV3Encoder(venue config.VenueConfig) (*V3Encoder, error) {
	routerABI, err := abi.JSON(strings.NewReader(SwapRouterV3ABI))
	if err != nil {
		return nil, fmt.Errorf("parse v3 router ABI: %w", err)
	}
	return &V3Encoder{
		venueID:   venue.ID,
		router:    venue.RouterAddress(),
		routerABI: routerABI,
	}, nil
}

// Encode packs one single-pool swap. The fee tier must be the tier the
// quote was captured on, so the callback trades the same pool.
func (e *V3Encoder) Encode(params app.EncodeParams) (domain.SwapLeg, error) {
	if params.FeeTier <= 0 {
		return domain.SwapLeg{}, fmt.Errorf("encode v3 swap for %s: missing fee tier", e.venueID)
	}

	calldata, err := e.routerABI.Pack("exactInputSingle", exactInputSingleParams{
		TokenIn:           params.TokenIn,
		TokenOut:          params.TokenOut,
		Fee:               big.NewInt(int64(params.FeeTier)),
		Recipient:         params.Recipient,
		Deadline:          params.Deadline,
		AmountIn:          params.AmountIn,
		AmountOutMinimum:  params.MinAmountOut,
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return domain.SwapLeg{}, fmt.Errorf("encode v3 swap for %s: %w", e.venueID, err)
	}

	return domain.SwapLeg{
		VenueID:      e.venueID,
		Router:       e.router,
		TokenIn:      params.TokenIn,
		TokenOut:     params.TokenOut,
		AmountIn:     params.AmountIn,
		MinAmountOut: params.MinAmountOut,
		Calldata:     calldata,
	}, nil
}
