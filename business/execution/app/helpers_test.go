package app

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	arbDomain "github.com/fd1az/flashloan-bot/business/arbitrage/domain"
	blockchainApp "github.com/fd1az/flashloan-bot/business/blockchain/app"
	blockchainDomain "github.com/fd1az/flashloan-bot/business/blockchain/domain"
	"github.com/fd1az/flashloan-bot/business/execution/domain"
	pricingDomain "github.com/fd1az/flashloan-bot/business/pricing/domain"
	"github.com/fd1az/flashloan-bot/internal/asset"
	"github.com/fd1az/flashloan-bot/internal/logger"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any) {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)  {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any) {}
func (m *mockLogger) With(args ...any) logger.LoggerInterface            { return m }

var _ logger.LoggerInterface = (*mockLogger)(nil)

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}

// Stub blockchain ports. BaseFee nil means a legacy chain.

type stubSubscriber struct {
	baseFee *big.Int
}

func (s *stubSubscriber) Subscribe(context.Context) (<-chan *blockchainDomain.Block, error) {
	ch := make(chan *blockchainDomain.Block)
	close(ch)
	return ch, nil
}

func (s *stubSubscriber) LatestBlock(context.Context) (*blockchainDomain.Block, error) {
	return &blockchainDomain.Block{Number: 1, BaseFee: s.baseFee}, nil
}

func (s *stubSubscriber) State() blockchainDomain.ConnectionState {
	return blockchainDomain.StateConnected
}

type stubGasOracle struct {
	priceWei *big.Int
	tipWei   *big.Int
	priceErr error
	tipErr   error
}

func (s *stubGasOracle) GetGasPrice(context.Context) (*blockchainDomain.GasPrice, error) {
	if s.priceErr != nil {
		return nil, s.priceErr
	}
	return &blockchainDomain.GasPrice{Wei: new(big.Int).Set(s.priceWei), Timestamp: time.Now()}, nil
}

func (s *stubGasOracle) GetGasTipCap(context.Context) (*big.Int, error) {
	if s.tipErr != nil {
		return nil, s.tipErr
	}
	return new(big.Int).Set(s.tipWei), nil
}

func (s *stubGasOracle) EstimateGas(context.Context, common.Address, []byte) (uint64, error) {
	return 600_000, nil
}

type stubBalances struct {
	wei *big.Int
}

func (s *stubBalances) NativeBalance(context.Context, common.Address) (*big.Int, error) {
	return new(big.Int).Set(s.wei), nil
}

func newTestChain(baseFee *big.Int, oracle *stubGasOracle, balanceWei *big.Int) *blockchainApp.ChainService {
	return blockchainApp.NewChainService(
		&stubSubscriber{baseFee: baseFee},
		oracle,
		&stubBalances{wei: balanceWei},
	)
}

// stubOracle serves fixed USD reference prices.
type stubOracle struct {
	prices map[string]decimal.Decimal
}

func (o *stubOracle) GetPrice(_ context.Context, symbol string) pricingDomain.ReferencePrice {
	return pricingDomain.ReferencePrice{
		Symbol:    symbol,
		USD:       o.prices[symbol],
		UpdatedAt: time.Now(),
	}
}

func (o *stubOracle) GetPrices(ctx context.Context, symbols []string) map[string]pricingDomain.ReferencePrice {
	out := make(map[string]pricingDomain.ReferencePrice, len(symbols))
	for _, s := range symbols {
		out[s] = o.GetPrice(ctx, s)
	}
	return out
}

// stubEncoder records the params it was asked to encode.
type stubEncoder struct {
	venueID string
	params  []EncodeParams
}

func (e *stubEncoder) Encode(params EncodeParams) (domain.SwapLeg, error) {
	e.params = append(e.params, params)
	return domain.SwapLeg{
		VenueID:      e.venueID,
		TokenIn:      params.TokenIn,
		TokenOut:     params.TokenOut,
		AmountIn:     params.AmountIn,
		MinAmountOut: params.MinAmountOut,
		Calldata:     []byte{0x01},
	}, nil
}

// stubSettlement is a canned SettlementClient.
type stubSettlement struct {
	estimateGas uint64
	estimateErr error

	txHash    common.Hash
	submitErr error

	receipt *types.Receipt
	waitErr error

	requests []*domain.FlashLoanRequest
	settings []*domain.GasSettings
}

func (s *stubSettlement) RequestFlashLoan(_ context.Context, req *domain.FlashLoanRequest, gas *domain.GasSettings) (common.Hash, error) {
	s.requests = append(s.requests, req)
	s.settings = append(s.settings, gas)
	if s.submitErr != nil {
		return common.Hash{}, s.submitErr
	}
	return s.txHash, nil
}

func (s *stubSettlement) WaitMined(ctx context.Context, _ common.Hash) (*types.Receipt, error) {
	if s.waitErr != nil {
		return nil, s.waitErr
	}
	return s.receipt, nil
}

func (s *stubSettlement) ActiveVenues(context.Context) ([]common.Address, error) {
	return nil, errors.New("not implemented")
}

func (s *stubSettlement) EstimateGas(_ context.Context, req *domain.FlashLoanRequest) (uint64, error) {
	s.requests = append(s.requests, req)
	if s.estimateErr != nil {
		return 0, s.estimateErr
	}
	return s.estimateGas, nil
}

// testOpportunity borrows 10 WETH, buying at 2000 USDC on alpha and
// selling at 2050 on beta.
func testOpportunity() *arbDomain.Opportunity {
	borrow := asset.MustParseDecimal(asset.WETH, decimal.NewFromInt(10))
	buyOut := asset.MustParseDecimal(asset.USDC, decimal.NewFromInt(20_000))
	sellOut := asset.MustParseDecimal(asset.USDC, decimal.NewFromInt(20_500))

	buy := pricingDomain.NewQuote("alpha", borrow, buyOut)
	sell := pricingDomain.NewQuote("beta", borrow, sellOut)
	return arbDomain.NewOpportunity(
		pricingDomain.NewPair(asset.WETH, asset.USDC),
		&buy, &sell, borrow,
	)
}

func testReport() *arbDomain.ProfitabilityReport {
	return &arbDomain.ProfitabilityReport{
		BorrowedUSD: decimal.NewFromInt(20_000),
		NetUSD:      decimal.NewFromInt(100),
		Costs: arbDomain.Costs{
			GasUSD: decimal.NewFromInt(30),
		},
		MarginPct:   decimal.RequireFromString("0.5"),
		GasPriceWei: gwei(30),
		GasLimit:    600_000,
		EvaluatedAt: time.Now(),
	}
}
