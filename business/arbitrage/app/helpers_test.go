package app

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-bot/business/arbitrage/domain"
	blockchainApp "github.com/fd1az/flashloan-bot/business/blockchain/app"
	blockchainDomain "github.com/fd1az/flashloan-bot/business/blockchain/domain"
	pricingApp "github.com/fd1az/flashloan-bot/business/pricing/app"
	pricingDomain "github.com/fd1az/flashloan-bot/business/pricing/domain"
	"github.com/fd1az/flashloan-bot/internal/asset"
	"github.com/fd1az/flashloan-bot/internal/config"
	"github.com/fd1az/flashloan-bot/internal/logger"

	"github.com/ethereum/go-ethereum/common"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any) {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)  {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any) {}
func (m *mockLogger) With(args ...any) logger.LoggerInterface            { return m }

var _ logger.LoggerInterface = (*mockLogger)(nil)

// stubOracle serves fixed USD prices, optionally flagged as fallback data.
type stubOracle struct {
	prices   map[string]decimal.Decimal
	fallback bool
}

func (o *stubOracle) GetPrice(_ context.Context, symbol string) pricingDomain.ReferencePrice {
	return pricingDomain.ReferencePrice{
		Symbol:    symbol,
		USD:       o.prices[symbol],
		UpdatedAt: time.Now(),
		Fallback:  o.fallback,
	}
}

func (o *stubOracle) GetPrices(ctx context.Context, symbols []string) map[string]pricingDomain.ReferencePrice {
	out := make(map[string]pricingDomain.ReferencePrice, len(symbols))
	for _, s := range symbols {
		out[s] = o.GetPrice(ctx, s)
	}
	return out
}

var _ pricingApp.ReferenceOracle = (*stubOracle)(nil)

// stubQuoter answers with a fixed price per venue id; venues without an
// entry yield no quote.
type stubQuoter struct {
	prices map[string]decimal.Decimal
}

func (s *stubQuoter) GetQuote(_ context.Context, venue config.VenueConfig, amountIn asset.Amount, tokenOut *asset.Asset) (*pricingDomain.Quote, error) {
	price, ok := s.prices[venue.ID]
	if !ok {
		return nil, nil
	}
	out := amountIn.ToDecimal().Mul(price).Round(int32(tokenOut.Decimals()))
	q := pricingDomain.NewQuote(venue.ID, amountIn, asset.MustParseDecimal(tokenOut, out))
	return &q, nil
}

// newTestQuoteService wires a QuoteService over a stub quoter.
func newTestQuoteService(prices map[string]decimal.Decimal) *pricingApp.QuoteService {
	svc, err := pricingApp.NewQuoteService(
		map[config.VenueType]pricingApp.VenueQuoter{
			config.VenueConstantProduct: &stubQuoter{prices: prices},
		},
		time.Second,
		nil,
		&mockLogger{},
	)
	if err != nil {
		panic(err)
	}
	return svc
}

func testVenues(ids ...string) []config.VenueConfig {
	venues := make([]config.VenueConfig, 0, len(ids))
	for _, id := range ids {
		venues = append(venues, config.VenueConfig{
			ID:     id,
			Type:   config.VenueConstantProduct,
			FeeBps: 30,
		})
	}
	return venues
}

func wethUSDC() pricingDomain.Pair {
	return pricingDomain.NewPair(asset.WETH, asset.USDC)
}

func oneWETH() asset.Amount {
	return asset.MustParseDecimal(asset.WETH, decimal.NewFromInt(1))
}

// Stub chain components backing a ChainService.

type stubSubscriber struct{}

func (s *stubSubscriber) Subscribe(context.Context) (<-chan *blockchainDomain.Block, error) {
	ch := make(chan *blockchainDomain.Block)
	close(ch)
	return ch, nil
}
func (s *stubSubscriber) LatestBlock(context.Context) (*blockchainDomain.Block, error) {
	return &blockchainDomain.Block{Number: 1}, nil
}
func (s *stubSubscriber) State() blockchainDomain.ConnectionState {
	return blockchainDomain.StateConnected
}

type stubGasOracle struct {
	priceWei *big.Int
}

func (s *stubGasOracle) GetGasPrice(context.Context) (*blockchainDomain.GasPrice, error) {
	return &blockchainDomain.GasPrice{Wei: new(big.Int).Set(s.priceWei), Timestamp: time.Now()}, nil
}
func (s *stubGasOracle) GetGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}
func (s *stubGasOracle) EstimateGas(context.Context, common.Address, []byte) (uint64, error) {
	return 600000, nil
}

type stubBalances struct{}

func (s *stubBalances) NativeBalance(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

// newTestChainService returns a chain service quoting the given gas price.
func newTestChainService(gasPriceWei int64) *blockchainApp.ChainService {
	return blockchainApp.NewChainService(
		&stubSubscriber{},
		&stubGasOracle{priceWei: big.NewInt(gasPriceWei)},
		&stubBalances{},
	)
}

// memStore is a minimal StatsStore for risk manager tests.
type memStore struct {
	mu   sync.Mutex
	days map[string]domain.DailyRiskStats
}

func newMemStore() *memStore {
	return &memStore{days: make(map[string]domain.DailyRiskStats)}
}

func (s *memStore) Load(_ context.Context, day string) (*domain.DailyRiskStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stats, ok := s.days[day]; ok {
		copied := stats
		return &copied, nil
	}
	return domain.NewDailyRiskStats(day), nil
}

func (s *memStore) Save(_ context.Context, stats *domain.DailyRiskStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days[stats.Day] = *stats
	return nil
}

// captureAlerter records everything sent to it.
type captureAlerter struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (a *captureAlerter) Send(_ context.Context, alert domain.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert)
	return nil
}

func (a *captureAlerter) sent() []domain.Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.Alert(nil), a.alerts...)
}

// stubExecutor implements Executor with canned behavior.
type stubExecutor struct {
	result *domain.ExecutionResult
	err    error
	calls  int
}

func (e *stubExecutor) Execute(context.Context, *domain.Opportunity, *domain.ProfitabilityReport) (*domain.ExecutionResult, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}
