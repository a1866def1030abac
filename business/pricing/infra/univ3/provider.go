// Package univ3 quotes concentrated-liquidity venues through a QuoterV2
// contract, probing an ordered fee-tier ladder.
package univ3

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

const tracerName = "github.com/fd1az/flashloan-bot/business/pricing/infra/univ3"

// ContractCaller abstracts eth_call so tests can stand in for a node.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Ensure Provider implements VenueQuoter.
var _ app.VenueQuoter = (*Provider)(nil)

// Provider implements VenueQuoter for concentrated-liquidity venues.
type Provider struct {
	caller    ContractCaller
	quoterABI abi.ABI
	feeTiers  []int

	logger logger.LoggerInterface
	cb     *circuitbreaker.CircuitBreaker[[]byte]
	tracer trace.Tracer
}

// NewProvider creates a concentrated-liquidity venue quoter.
func NewProvider(caller ContractCaller, log logger.LoggerInterface) (*Provider, error) {
	parsedABI, err := abi.JSON(strings.NewReader(QuoterV2ABI))
	if err != nil {
		return nil, fmt.Errorf("parse quoter ABI: %w", err)
	}

	return &Provider{
		caller:    caller,
		quoterABI: parsedABI,
		feeTiers:  DefaultFeeTiers,
		logger:    log,
		cb:        circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("univ3-quoter")),
		tracer:    otel.Tracer(tracerName),
	}, nil
}

// GetQuote probes the fee-tier ladder in order and returns the first tier
// with a positive output. Every attempt, failed or not, is captured on the
// quote so operators can see which tiers actually hold a pool. A fully dry
// ladder returns (nil, nil).
func (p *Provider) GetQuote(ctx context.Context, venue config.VenueConfig, amountIn asset.Amount, tokenOut *asset.Asset) (*domain.Quote, error) {
	ctx, span := p.tracer.Start(ctx, "univ3.get_quote",
		trace.WithAttributes(
			attribute.String("venue", venue.ID),
			attribute.String("token_in", amountIn.Asset().Symbol()),
			attribute.String("token_out", tokenOut.Symbol()),
			attribute.String("amount_in", amountIn.Raw().String()),
		),
	)
	defer span.End()

	tokenIn := amountIn.Asset()
	attempts := make([]domain.TierAttempt, 0, len(p.feeTiers))

	for _, feeTier := range p.feeTiers {
		amountOut, err := p.quoteTier(ctx, venue.QuoterAddress(), tokenIn.Address(), tokenOut.Address(), amountIn.Raw(), feeTier)
		if err != nil {
			attempts = append(attempts, domain.TierAttempt{FeeTier: feeTier, Err: err.Error()})
			span.AddEvent("fee_tier_failed",
				trace.WithAttributes(
					attribute.Int("fee_tier", feeTier),
					attribute.String("error", err.Error()),
				),
			)
			continue
		}

		out := asset.NewAmount(tokenOut, amountOut)
		attempts = append(attempts, domain.TierAttempt{FeeTier: feeTier, AmountOut: out.ToDecimal()})

		if amountOut.Sign() > 0 {
			quote := domain.NewQuote(venue.ID, amountIn, out)
			quote.FeeTier = feeTier
			quote.Attempts = attempts

			span.SetAttributes(
				attribute.Int("fee_tier", feeTier),
				attribute.String("amount_out", amountOut.String()),
			)
			span.SetStatus(codes.Ok, "quoted")
			return &quote, nil
		}
	}

	p.logger.Debug(ctx, "all fee tiers dry",
		"venue", venue.ID,
		"token_in", tokenIn.Symbol(),
		"token_out", tokenOut.Symbol(),
		"tiers", len(attempts),
	)
	span.AddEvent("all_tiers_dry")
	return nil, nil
}

func (p *Provider) quoteTier(ctx context.Context, quoter, tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier int) (*big.Int, error) {
	callData, err := p.quoterABI.Pack("quoteExactInputSingle", QuoteExactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               big.NewInt(int64(feeTier)),
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return nil, fmt.Errorf("encode quoteExactInputSingle: %w", err)
	}

	result, err := p.cb.Execute(func() ([]byte, error) {
		return p.caller.CallContract(ctx, ethereum.CallMsg{To: &quoter, Data: callData}, nil)
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("quoter call for fee tier %d", feeTier)))
	}

	outputs, err := p.quoterABI.Unpack("quoteExactInputSingle", result)
	if err != nil {
		return nil, fmt.Errorf("decode quoteExactInputSingle: %w", err)
	}
	if len(outputs) < 4 {
		return nil, fmt.Errorf("unexpected output length: %d", len(outputs))
	}

	return outputs[0].(*big.Int), nil
}
