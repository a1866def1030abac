package univ2

import (
	"bytes"
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
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

// fakeCaller plays factory, pair and router at once, dispatching on the
// four-byte selector.
type fakeCaller struct {
	t *testing.T

	pairAddr  common.Address
	reserve0  *big.Int
	reserve1  *big.Int
	token0    common.Address
	amountOut *big.Int
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	factoryABI, err := abi.JSON(strings.NewReader(FactoryABI))
	if err != nil {
		f.t.Fatalf("parse factory ABI: %v", err)
	}
	pairABI, err := abi.JSON(strings.NewReader(PairABI))
	if err != nil {
		f.t.Fatalf("parse pair ABI: %v", err)
	}
	routerABI, err := abi.JSON(strings.NewReader(RouterABI))
	if err != nil {
		f.t.Fatalf("parse router ABI: %v", err)
	}

	selector := msg.Data[:4]
	switch {
	case bytes.Equal(selector, factoryABI.Methods["getPair"].ID):
		return factoryABI.Methods["getPair"].Outputs.Pack(f.pairAddr)
	case bytes.Equal(selector, pairABI.Methods["getReserves"].ID):
		return pairABI.Methods["getReserves"].Outputs.Pack(f.reserve0, f.reserve1, uint32(0))
	case bytes.Equal(selector, pairABI.Methods["token0"].ID):
		return pairABI.Methods["token0"].Outputs.Pack(f.token0)
	case bytes.Equal(selector, routerABI.Methods["getAmountsOut"].ID):
		amounts := []*big.Int{big.NewInt(0), f.amountOut}
		return routerABI.Methods["getAmountsOut"].Outputs.Pack(amounts)
	default:
		f.t.Fatalf("unexpected selector %x", selector)
		return nil, nil
	}
}

func testVenue() config.VenueConfig {
	return config.VenueConfig{
		ID:      "sushiswap",
		Type:    config.VenueConstantProduct,
		Router:  "0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F",
		Factory: "0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac",
		FeeBps:  30,
	}
}

func newTestProvider(t *testing.T, caller *fakeCaller) *Provider {
	t.Helper()

	minReserve := asset.MustParseDecimal(asset.WETH, decimal.RequireFromString("0.5"))
	provider, err := NewProvider(caller, minReserve, asset.NewRegistry(), &mockLogger{})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	return provider
}

func oneWETH() asset.Amount {
	return asset.MustParseDecimal(asset.WETH, decimal.NewFromInt(1))
}

func wethReserve(s string) *big.Int {
	return asset.MustParseDecimal(asset.WETH, decimal.RequireFromString(s)).Raw()
}

func usdcReserve(s string) *big.Int {
	return asset.MustParseDecimal(asset.USDC, decimal.RequireFromString(s)).Raw()
}

func TestProvider_QuotesThroughRouter(t *testing.T) {
	caller := &fakeCaller{
		t:         t,
		pairAddr:  common.HexToAddress("0x0000000000000000000000000000000000000AB1"),
		token0:    asset.WETH.Address(),
		reserve0:  wethReserve("100"),
		reserve1:  usdcReserve("200000"),
		amountOut: usdcReserve("2000"),
	}
	provider := newTestProvider(t, caller)

	quote, err := provider.GetQuote(context.Background(), testVenue(), oneWETH(), asset.USDC)
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if quote == nil {
		t.Fatal("expected a quote, got nil")
	}

	wantOut := decimal.RequireFromString("2000")
	if !quote.AmountOut.ToDecimal().Equal(wantOut) {
		t.Errorf("expected amount out %s, got %s", wantOut, quote.AmountOut.ToDecimal())
	}
	if !quote.Price.Equal(wantOut) {
		t.Errorf("expected price %s, got %s", wantOut, quote.Price)
	}

	// Reserves ride on the quote oriented to the swap direction.
	if !quote.Liquidity.ReserveIn.ToDecimal().Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected reserve in 100 WETH, got %s", quote.Liquidity.ReserveIn.ToDecimal())
	}
	if !quote.Liquidity.ReserveOut.ToDecimal().Equal(decimal.NewFromInt(200000)) {
		t.Errorf("expected reserve out 200000 USDC, got %s", quote.Liquidity.ReserveOut.ToDecimal())
	}
}

func TestProvider_NoPairYieldsNoQuote(t *testing.T) {
	caller := &fakeCaller{t: t, pairAddr: common.Address{}}
	provider := newTestProvider(t, caller)

	quote, err := provider.GetQuote(context.Background(), testVenue(), oneWETH(), asset.USDC)
	if err != nil {
		t.Fatalf("expected no error for a missing pair, got %v", err)
	}
	if quote != nil {
		t.Fatalf("expected nil quote for a missing pair, got %+v", quote)
	}
}

func TestProvider_ReserveBelowFloorYieldsNoQuote(t *testing.T) {
	// Token0 is USDC, so the WETH reserve sits in slot 1 and must be
	// reoriented before the floor check. 0.4 WETH is under the 0.5 floor.
	caller := &fakeCaller{
		t:         t,
		pairAddr:  common.HexToAddress("0x0000000000000000000000000000000000000AB1"),
		token0:    asset.USDC.Address(),
		reserve0:  usdcReserve("800"),
		reserve1:  wethReserve("0.4"),
		amountOut: usdcReserve("790"),
	}
	provider := newTestProvider(t, caller)

	quote, err := provider.GetQuote(context.Background(), testVenue(), oneWETH(), asset.USDC)
	if err != nil {
		t.Fatalf("expected no error for a dry pool, got %v", err)
	}
	if quote != nil {
		t.Fatalf("expected nil quote for a dry pool, got %+v", quote)
	}
}

func TestProvider_EmptyReserveYieldsNoQuote(t *testing.T) {
	caller := &fakeCaller{
		t:        t,
		pairAddr: common.HexToAddress("0x0000000000000000000000000000000000000AB1"),
		token0:   asset.WETH.Address(),
		reserve0: wethReserve("100"),
		reserve1: big.NewInt(0),
	}
	provider := newTestProvider(t, caller)

	quote, err := provider.GetQuote(context.Background(), testVenue(), oneWETH(), asset.USDC)
	if err != nil {
		t.Fatalf("expected no error for an empty reserve, got %v", err)
	}
	if quote != nil {
		t.Fatalf("expected nil quote for an empty reserve, got %+v", quote)
	}
}

func TestProvider_ZeroRouterOutputYieldsNoQuote(t *testing.T) {
	caller := &fakeCaller{
		t:         t,
		pairAddr:  common.HexToAddress("0x0000000000000000000000000000000000000AB1"),
		token0:    asset.WETH.Address(),
		reserve0:  wethReserve("100"),
		reserve1:  usdcReserve("200000"),
		amountOut: big.NewInt(0),
	}
	provider := newTestProvider(t, caller)

	quote, err := provider.GetQuote(context.Background(), testVenue(), oneWETH(), asset.USDC)
	if err != nil {
		t.Fatalf("expected no error on zero output, got %v", err)
	}
	if quote != nil {
		t.Fatalf("expected nil quote on zero output, got %+v", quote)
	}
}
