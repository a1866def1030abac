package univ3

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-bot/internal/asset"
	"github.com/fd1az/flashloan-bot/internal/config"
	"github.com/fd1az/flashloan-bot/internal/logger"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any) {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)  {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any) {}
func (m *mockLogger) With(args ...any) logger.LoggerInterface            { return m }

var _ logger.LoggerInterface = (*mockLogger)(nil)

// fakeCaller responds per fee tier. Tiers map to either an error or an
// amountOut packed as a full QuoterV2 response.
type fakeCaller struct {
	t       *testing.T
	byTier  map[int]*big.Int
	errTier map[int]error
	calls   []int
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	quoterABI, err := abi.JSON(strings.NewReader(QuoterV2ABI))
	if err != nil {
		f.t.Fatalf("parse ABI: %v", err)
	}

	method := quoterABI.Methods["quoteExactInputSingle"]

	// The params tuple is static, so it is encoded inline after the selector:
	// tokenIn, tokenOut, amountIn, fee, sqrtPriceLimitX96, one word each.
	if len(msg.Data) < 4+5*32 {
		f.t.Fatalf("call data too short: %d bytes", len(msg.Data))
	}
	tier := int(new(big.Int).SetBytes(msg.Data[4+3*32 : 4+4*32]).Int64())
	f.calls = append(f.calls, tier)

	if err, ok := f.errTier[tier]; ok {
		return nil, err
	}

	amountOut := f.byTier[tier]
	if amountOut == nil {
		amountOut = big.NewInt(0)
	}
	out, err := method.Outputs.Pack(amountOut, big.NewInt(0), uint32(0), big.NewInt(100000))
	if err != nil {
		f.t.Fatalf("pack outputs: %v", err)
	}
	return out, nil
}

func testVenue() config.VenueConfig {
	return config.VenueConfig{
		ID:     "uniswap-v3",
		Type:   config.VenueConcentratedLiquidity,
		Quoter: "0x61fFE014bA17989E743c5F6cB21bF9697530B21e",
		Router: "0xE592427A0AEce92De3Edee1F18E0157C05861564",
	}
}

func TestProvider_FirstPositiveTierWins(t *testing.T) {
	// 2000 USDC out for 1 WETH in, but only on the 0.30% tier.
	caller := &fakeCaller{
		t:       t,
		errTier: map[int]error{FeeTier005: errors.New("execution reverted")},
		byTier:  map[int]*big.Int{FeeTier030: big.NewInt(2000_000000)},
	}

	provider, err := NewProvider(caller, &mockLogger{})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	amountIn := asset.MustParseDecimal(asset.WETH, decimal.NewFromInt(1))
	quote, err := provider.GetQuote(context.Background(), testVenue(), amountIn, asset.USDC)
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if quote == nil {
		t.Fatal("expected a quote, got nil")
	}

	if quote.FeeTier != FeeTier030 {
		t.Errorf("expected fee tier %d, got %d", FeeTier030, quote.FeeTier)
	}

	wantOut := decimal.RequireFromString("2000")
	if !quote.AmountOut.ToDecimal().Equal(wantOut) {
		t.Errorf("expected amount out %s, got %s", wantOut, quote.AmountOut.ToDecimal())
	}

	// The 1% tier must not be probed once a tier produced output.
	if len(caller.calls) != 2 {
		t.Fatalf("expected 2 tier probes, got %d: %v", len(caller.calls), caller.calls)
	}
	if caller.calls[0] != FeeTier005 || caller.calls[1] != FeeTier030 {
		t.Errorf("expected ladder order [500 3000], got %v", caller.calls)
	}

	// Failed probes stay on the quote as diagnostics.
	if len(quote.Attempts) != 2 {
		t.Fatalf("expected 2 attempts recorded, got %d", len(quote.Attempts))
	}
	if quote.Attempts[0].Err == "" {
		t.Error("expected first attempt to carry an error")
	}
	if quote.Attempts[1].Err != "" {
		t.Errorf("expected second attempt to succeed, got error %q", quote.Attempts[1].Err)
	}
}

func TestProvider_AllTiersDry(t *testing.T) {
	// Every tier answers, but with zero output.
	caller := &fakeCaller{t: t, byTier: map[int]*big.Int{}}

	provider, err := NewProvider(caller, &mockLogger{})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	amountIn := asset.MustParseDecimal(asset.WETH, decimal.NewFromInt(1))
	quote, err := provider.GetQuote(context.Background(), testVenue(), amountIn, asset.USDC)
	if err != nil {
		t.Fatalf("expected no error on a dry ladder, got %v", err)
	}
	if quote != nil {
		t.Fatalf("expected nil quote on a dry ladder, got %+v", quote)
	}

	if len(caller.calls) != len(DefaultFeeTiers) {
		t.Errorf("expected every tier probed, got %v", caller.calls)
	}
}
