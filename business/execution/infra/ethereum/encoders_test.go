package ethereum

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/flashloan-bot/business/execution/app"
	"github.com/fd1az/flashloan-bot/internal/config"
)

func testParams() app.EncodeParams {
	return app.EncodeParams{
		TokenIn:      common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		TokenOut:     common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		AmountIn:     big.NewInt(1_000_000_000_000_000_000),
		MinAmountOut: big.NewInt(1_990_000_000),
		Recipient:    common.HexToAddress("0x00000000000000000000000000000000000000c1"),
		Deadline:     big.NewInt(1_900_000_000),
	}
}

func TestV2Encoder_PacksDirectPath(t *testing.T) {
	encoder, err := NewV2Encoder(config.VenueConfig{
		ID:     "sushi",
		Router: "0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F",
	})
	if err != nil {
		t.Fatalf("NewV2Encoder: %v", err)
	}

	params := testParams()
	leg, err := encoder.Encode(params)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if leg.VenueID != "sushi" {
		t.Errorf("venue = %s, want sushi", leg.VenueID)
	}
	if leg.Router != common.HexToAddress("0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F") {
		t.Errorf("router = %s", leg.Router)
	}

	routerABI, err := abi.JSON(strings.NewReader(SwapRouterV2ABI))
	if err != nil {
		t.Fatalf("parse ABI: %v", err)
	}
	method := routerABI.Methods["swapExactTokensForTokens"]
	if !bytes.Equal(leg.Calldata[:4], method.ID) {
		t.Fatalf("selector = %x, want %x", leg.Calldata[:4], method.ID)
	}

	unpacked, err := method.Inputs.Unpack(leg.Calldata[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if got := unpacked[0].(*big.Int); got.Cmp(params.AmountIn) != 0 {
		t.Errorf("amountIn = %s, want %s", got, params.AmountIn)
	}
	if got := unpacked[1].(*big.Int); got.Cmp(params.MinAmountOut) != 0 {
		t.Errorf("amountOutMin = %s, want %s", got, params.MinAmountOut)
	}
	path := unpacked[2].([]common.Address)
	if len(path) != 2 || path[0] != params.TokenIn || path[1] != params.TokenOut {
		t.Errorf("path = %v", path)
	}
}

func TestV3Encoder_PacksSingleSwap(t *testing.T) {
	encoder, err := NewV3Encoder(config.VenueConfig{
		ID:     "uniswap_v3",
		Router: "0xE592427A0AEce92De3Edee1F18E0157C05861564",
	})
	if err != nil {
		t.Fatalf("NewV3Encoder: %v", err)
	}

	params := testParams()
	params.FeeTier = 3000

	leg, err := encoder.Encode(params)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	routerABI, err := abi.JSON(strings.NewReader(SwapRouterV3ABI))
	if err != nil {
		t.Fatalf("parse ABI: %v", err)
	}
	method := routerABI.Methods["exactInputSingle"]
	if !bytes.Equal(leg.Calldata[:4], method.ID) {
		t.Fatalf("selector = %x, want %x", leg.Calldata[:4], method.ID)
	}
	if leg.MinAmountOut.Cmp(params.MinAmountOut) != 0 {
		t.Errorf("min out = %s, want %s", leg.MinAmountOut, params.MinAmountOut)
	}
}

func TestV3Encoder_RejectsMissingFeeTier(t *testing.T) {
	encoder, err := NewV3Encoder(config.VenueConfig{
		ID:     "uniswap_v3",
		Router: "0xE592427A0AEce92De3Edee1F18E0157C05861564",
	})
	if err != nil {
		t.Fatalf("NewV3Encoder: %v", err)
	}

	if _, err := encoder.Encode(testParams()); err == nil {
		t.Fatal("expected error for zero fee tier")
	}
}
