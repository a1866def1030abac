// Package univ2 quotes constant-product venues through their router and
// factory contracts.
package univ2

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashloan-bot/business/pricing/app"
	"github.com/fd1az/flashloan-bot/business/pricing/domain"
	"github.com/fd1az/flashloan-bot/internal/apperror"
	"github.com/fd1az/flashloan-bot/internal/asset"
	"github.com/fd1az/flashloan-bot/internal/circuitbreaker"
	"github.com/fd1az/flashloan-bot/internal/config"
	"github.com/fd1az/flashloan-bot/internal/logger"
)

const tracerName = "github.com/fd1az/flashloan-bot/business/pricing/infra/univ2"

// ContractCaller abstracts eth_call so tests can stand in for a node.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Ensure Provider implements VenueQuoter.
var _ app.VenueQuoter = (*Provider)(nil)

// Provider implements VenueQuoter for constant-product venues.
type Provider struct {
	caller     ContractCaller
	factoryABI abi.ABI
	pairABI    abi.ABI
	routerABI  abi.ABI

	// Liquidity floor, denominated in the reference asset (WETH). A pool
	// whose reference-asset reserve sits below this is treated as dry.
	refAsset   *asset.Asset
	minReserve asset.Amount

	registry *asset.Registry
	logger   logger.LoggerInterface
	cb       *circuitbreaker.CircuitBreaker[[]byte]
	tracer   trace.Tracer
}

// NewProvider creates a constant-product venue quoter.
func NewProvider(caller ContractCaller, minReserve asset.Amount, registry *asset.Registry, log logger.LoggerInterface) (*Provider, error) {
	factoryABI, err := abi.JSON(strings.NewReader(FactoryABI))
	if err != nil {
		return nil, fmt.Errorf("parse factory ABI: %w", err)
	}
	pairABI, err := abi.JSON(strings.NewReader(PairABI))
	if err != nil {
		return nil, fmt.Errorf("parse pair ABI: %w", err)
	}
	routerABI, err := abi.JSON(strings.NewReader(RouterABI))
	if err != nil {
		return nil, fmt.Errorf("parse router ABI: %w", err)
	}

	return &Provider{
		caller:     caller,
		factoryABI: factoryABI,
		pairABI:    pairABI,
		routerABI:  routerABI,
		refAsset:   minReserve.Asset(),
		minReserve: minReserve,
		registry:   registry,
		logger:     log,
		cb:         circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("univ2-quoter")),
		tracer:     otel.Tracer(tracerName),
	}, nil
}

// GetQuote returns an indicative quote, or nil when the venue has no usable
// pool for the pair.
func (p *Provider) GetQuote(ctx context.Context, venue config.VenueConfig, amountIn asset.Amount, tokenOut *asset.Asset) (*domain.Quote, error) {
	ctx, span := p.tracer.Start(ctx, "univ2.get_quote",
		trace.WithAttributes(
			attribute.String("venue", venue.ID),
			attribute.String("token_in", amountIn.Asset().Symbol()),
			attribute.String("token_out", tokenOut.Symbol()),
		),
	)
	defer span.End()

	tokenIn := amountIn.Asset()

	pairAddr, err := p.getPair(ctx, venue.FactoryAddress(), tokenIn.Address(), tokenOut.Address())
	if err != nil {
		span.SetStatus(codes.Error, "pair lookup failed")
		return nil, err
	}
	if pairAddr == (common.Address{}) {
		span.AddEvent("no_pair")
		return nil, nil
	}

	liq, ok, err := p.checkLiquidity(ctx, pairAddr, tokenIn, tokenOut)
	if err != nil {
		span.SetStatus(codes.Error, "reserve check failed")
		return nil, err
	}
	if !ok {
		span.AddEvent("insufficient_liquidity")
		return nil, nil
	}

	amountOut, err := p.getAmountsOut(ctx, venue.RouterAddress(), amountIn.Raw(), tokenIn.Address(), tokenOut.Address())
	if err != nil {
		span.SetStatus(codes.Error, "getAmountsOut failed")
		return nil, err
	}
	if amountOut.Sign() <= 0 {
		span.AddEvent("zero_output")
		return nil, nil
	}

	quote := domain.NewQuote(venue.ID, amountIn, asset.NewAmount(tokenOut, amountOut))
	quote.Liquidity = liq

	span.SetAttributes(attribute.String("amount_out", amountOut.String()))
	span.SetStatus(codes.Ok, "quoted")
	return &quote, nil
}

func (p *Provider) getPair(ctx context.Context, factory, tokenA, tokenB common.Address) (common.Address, error) {
	callData, err := p.factoryABI.Pack("getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, fmt.Errorf("encode getPair: %w", err)
	}

	out, err := p.call(ctx, factory, callData)
	if err != nil {
		return common.Address{}, err
	}

	results, err := p.factoryABI.Unpack("getPair", out)
	if err != nil {
		return common.Address{}, fmt.Errorf("decode getPair: %w", err)
	}
	return results[0].(common.Address), nil
}

// checkLiquidity inspects the pair reserves. When one side of the pool is
// the reference asset its reserve must clear the configured floor;
// otherwise both reserves just need to be non-zero.
func (p *Provider) checkLiquidity(ctx context.Context, pair common.Address, tokenIn, tokenOut *asset.Asset) (domain.PoolLiquidity, bool, error) {
	reservesData, err := p.call(ctx, pair, mustPack(p.pairABI, "getReserves"))
	if err != nil {
		return domain.PoolLiquidity{}, false, err
	}
	reserves, err := p.pairABI.Unpack("getReserves", reservesData)
	if err != nil {
		return domain.PoolLiquidity{}, false, fmt.Errorf("decode getReserves: %w", err)
	}
	reserve0 := reserves[0].(*big.Int)
	reserve1 := reserves[1].(*big.Int)

	token0Data, err := p.call(ctx, pair, mustPack(p.pairABI, "token0"))
	if err != nil {
		return domain.PoolLiquidity{}, false, err
	}
	token0Out, err := p.pairABI.Unpack("token0", token0Data)
	if err != nil {
		return domain.PoolLiquidity{}, false, fmt.Errorf("decode token0: %w", err)
	}
	token0 := token0Out[0].(common.Address)

	reserveIn, reserveOut := reserve0, reserve1
	if token0 != tokenIn.Address() {
		reserveIn, reserveOut = reserve1, reserve0
	}

	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return domain.PoolLiquidity{}, false, nil
	}

	// Floor check against whichever side holds the reference asset.
	refReserve := (*big.Int)(nil)
	switch {
	case tokenIn.Equals(p.refAsset):
		refReserve = reserveIn
	case tokenOut.Equals(p.refAsset):
		refReserve = reserveOut
	}
	if refReserve != nil && refReserve.Cmp(p.minReserve.Raw()) < 0 {
		return domain.PoolLiquidity{}, false, nil
	}

	liq := domain.PoolLiquidity{
		ReserveIn:  asset.NewAmount(tokenIn, reserveIn),
		ReserveOut: asset.NewAmount(tokenOut, reserveOut),
	}
	return liq, true, nil
}

func (p *Provider) getAmountsOut(ctx context.Context, router common.Address, amountIn *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error) {
	callData, err := p.routerABI.Pack("getAmountsOut", amountIn, []common.Address{tokenIn, tokenOut})
	if err != nil {
		return nil, fmt.Errorf("encode getAmountsOut: %w", err)
	}

	out, err := p.call(ctx, router, callData)
	if err != nil {
		return nil, err
	}

	results, err := p.routerABI.Unpack("getAmountsOut", out)
	if err != nil {
		return nil, fmt.Errorf("decode getAmountsOut: %w", err)
	}

	amounts := results[0].([]*big.Int)
	if len(amounts) < 2 {
		return nil, apperror.New(apperror.CodeQuoteFailed,
			apperror.WithContext(fmt.Sprintf("getAmountsOut returned %d amounts", len(amounts))))
	}
	return amounts[len(amounts)-1], nil
}

func (p *Provider) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := p.cb.Execute(func() ([]byte, error) {
		return p.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("call to %s", to.Hex())))
	}
	return out, nil
}

func mustPack(a abi.ABI, method string, args ...any) []byte {
	data, err := a.Pack(method, args...)
	if err != nil {
		panic(fmt.Sprintf("univ2: pack %s: %v", method, err))
	}
	return data
}
