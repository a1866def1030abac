package app

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	arbDomain "github.com/fd1az/flashloan-bot/business/arbitrage/domain"
	blockchainApp "github.com/fd1az/flashloan-bot/business/blockchain/app"
	"github.com/fd1az/flashloan-bot/business/execution/domain"
	pricingApp "github.com/fd1az/flashloan-bot/business/pricing/app"
	"github.com/fd1az/flashloan-bot/internal/apperror"
	"github.com/fd1az/flashloan-bot/internal/logger"
)

// submitGasHeadroomPct pads the evaluated gas limit before submission.
const submitGasHeadroomPct = 120

// OrchestratorConfig holds execution policy.
type OrchestratorConfig struct {
	Contract       common.Address
	Executor       common.Address
	DryRun         bool
	Cooldown       time.Duration
	ConfirmTimeout time.Duration
	SlippagePct    decimal.Decimal // per-leg minimum output tolerance
	GasDriftPct    decimal.Decimal // max gas move since evaluation
	MinMarginPct   decimal.Decimal // margin floor rechecked pre-submit
	PremiumBps     decimal.Decimal
	StaleAfter     time.Duration // opportunity freshness window
	Urgency        domain.Urgency
}

// Orchestrator drives one approved opportunity through the settlement
// contract. It enforces single-flight and a cooldown between attempts, and
// revalidates the opportunity right before committing capital.
//
// The error/result split matters to the caller: an error means nothing was
// submitted, a result is a terminal outcome of an attempt.
type Orchestrator struct {
	config     OrchestratorConfig
	chain      *blockchainApp.ChainService
	gas        *GasStrategy
	settlement SettlementClient
	encoders   map[string]PayloadEncoder
	oracle     pricingApp.ReferenceOracle
	logger     logger.LoggerInterface
	tracer     trace.Tracer

	inFlight atomic.Bool
	mu       sync.Mutex
	lastRun  time.Time

	executionCounter metric.Int64Counter

	now func() time.Time
}

// NewOrchestrator wires the orchestrator. Encoders are keyed by venue id.
func NewOrchestrator(
	cfg OrchestratorConfig,
	chain *blockchainApp.ChainService,
	gas *GasStrategy,
	settlement SettlementClient,
	encoders map[string]PayloadEncoder,
	oracle pricingApp.ReferenceOracle,
	log logger.LoggerInterface,
) *Orchestrator {
	meter := otel.Meter(meterName)
	executionCounter, _ := meter.Int64Counter("exec.attempts",
		metric.WithDescription("Flashloan execution attempts"))

	return &Orchestrator{
		config:           cfg,
		chain:            chain,
		gas:              gas,
		settlement:       settlement,
		encoders:         encoders,
		oracle:           oracle,
		logger:           log,
		tracer:           otel.Tracer(tracerName),
		executionCounter: executionCounter,
		now:              time.Now,
	}
}

// Execute runs one approved opportunity end to end.
func (o *Orchestrator) Execute(ctx context.Context, opp *arbDomain.Opportunity, report *arbDomain.ProfitabilityReport) (*arbDomain.ExecutionResult, error) {
	ctx, span := o.tracer.Start(ctx, "exec.execute",
		trace.WithAttributes(
			attribute.String("opportunity", opp.ID),
			attribute.Bool("dry_run", o.config.DryRun),
		),
	)
	defer span.End()

	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, apperror.New(apperror.CodeExecutionInProgress,
			apperror.WithMessage("another execution is in flight"))
	}
	defer o.inFlight.Store(false)

	now := o.now()
	o.mu.Lock()
	last := o.lastRun
	o.mu.Unlock()
	if !last.IsZero() && now.Sub(last) < o.config.Cooldown {
		return nil, apperror.New(apperror.CodeCooldownActive,
			apperror.WithMessage(fmt.Sprintf("cooldown active for %s", o.config.Cooldown-now.Sub(last))))
	}

	if err := o.revalidate(ctx, opp, report, now); err != nil {
		return nil, err
	}

	buyEncoder, ok := o.encoders[opp.BuyVenue()]
	if !ok {
		return nil, apperror.New(apperror.CodeNoEncoder,
			apperror.WithMessage(fmt.Sprintf("no payload encoder for venue %q", opp.BuyVenue())))
	}
	sellEncoder, ok := o.encoders[opp.SellVenue()]
	if !ok {
		return nil, apperror.New(apperror.CodeNoEncoder,
			apperror.WithMessage(fmt.Sprintf("no payload encoder for venue %q", opp.SellVenue())))
	}

	gasLimit := report.GasLimit * submitGasHeadroomPct / 100
	settings, err := o.gas.Price(ctx, gasLimit, o.config.Urgency)
	if err != nil {
		return nil, err
	}

	if err := o.checkBalance(ctx, settings); err != nil {
		return nil, err
	}

	req, err := o.buildRequest(opp, sellEncoder, buyEncoder, now)
	if err != nil {
		return nil, err
	}

	// Past this point the attempt is committed: every outcome is a
	// result, not an error.
	o.mu.Lock()
	o.lastRun = now
	o.mu.Unlock()

	if o.config.DryRun {
		return o.dryRun(ctx, span, req, report, now), nil
	}
	return o.submit(ctx, span, req, settings, report, now), nil
}

// revalidate rejects opportunities that went stale between assessment and
// execution: aged quotes, a gas market that moved, a margin that no longer
// clears.
func (o *Orchestrator) revalidate(ctx context.Context, opp *arbDomain.Opportunity, report *arbDomain.ProfitabilityReport, now time.Time) error {
	if !opp.IsFresh(o.config.StaleAfter, now) {
		return apperror.New(apperror.CodeOpportunityStale,
			apperror.WithMessage(fmt.Sprintf("quotes older than %s", o.config.StaleAfter)))
	}

	if report.MarginPct.LessThan(o.config.MinMarginPct) {
		return apperror.New(apperror.CodeOpportunityStale,
			apperror.WithMessage(fmt.Sprintf("margin %s%% below floor %s%%",
				report.MarginPct.StringFixed(4), o.config.MinMarginPct)))
	}

	current, err := o.chain.GetGasPrice(ctx)
	if err != nil {
		return err
	}

	evaluated := decimal.NewFromBigInt(report.GasPriceWei, 0)
	if evaluated.IsPositive() {
		drift := decimal.NewFromBigInt(current.Wei, 0).
			Sub(evaluated).
			Div(evaluated).
			Mul(decimal.NewFromInt(100))
		if drift.GreaterThan(o.config.GasDriftPct) {
			return apperror.New(apperror.CodeOpportunityStale,
				apperror.WithMessage(fmt.Sprintf("gas price drifted %s%% since evaluation", drift.StringFixed(1))))
		}
	}
	return nil
}

// checkBalance requires the executor EOA to hold twice the worst-case fee,
// so a failed attempt still leaves room for the next one.
func (o *Orchestrator) checkBalance(ctx context.Context, settings *domain.GasSettings) error {
	balance, err := o.chain.NativeBalance(ctx, o.config.Executor)
	if err != nil {
		return err
	}

	required := new(big.Int).Mul(settings.MaxCostWei(), big.NewInt(2))
	if balance.Cmp(required) < 0 {
		return apperror.New(apperror.CodeInsufficientBalance,
			apperror.WithMessage(fmt.Sprintf("executor balance %s wei below required %s wei", balance, required)))
	}
	return nil
}

// buildRequest encodes the two swap legs. The flashloan borrows the base
// asset, sells it on the expensive venue and buys it back on the cheap
// one; the second leg's minimum output is the repayment amount, so the
// transaction reverts instead of settling at a loss.
func (o *Orchestrator) buildRequest(opp *arbDomain.Opportunity, sellEncoder, buyEncoder PayloadEncoder, now time.Time) (*domain.FlashLoanRequest, error) {
	borrowed := opp.BorrowAmount.Raw()
	base := opp.Pair.Base
	quote := opp.Pair.Quote
	deadline := big.NewInt(now.Add(o.config.ConfirmTimeout).Unix())

	// Leg 1 output floor: the quoted output shaved by the slippage
	// tolerance.
	expectedOut := opp.SellQuote.AmountOut.Raw()
	minOut1 := applyDiscountPct(expectedOut, o.config.SlippagePct)

	leg1, err := sellEncoder.Encode(EncodeParams{
		TokenIn:      base.Address(),
		TokenOut:     quote.Address(),
		AmountIn:     new(big.Int).Set(borrowed),
		MinAmountOut: minOut1,
		FeeTier:      opp.SellQuote.FeeTier,
		Recipient:    o.config.Contract,
		Deadline:     deadline,
	})
	if err != nil {
		return nil, err
	}

	// Leg 2 must return at least principal plus premium.
	repayment := applyPremiumBps(borrowed, o.config.PremiumBps)

	leg2, err := buyEncoder.Encode(EncodeParams{
		TokenIn:      quote.Address(),
		TokenOut:     base.Address(),
		AmountIn:     minOut1,
		MinAmountOut: repayment,
		FeeTier:      opp.BuyQuote.FeeTier,
		Recipient:    o.config.Contract,
		Deadline:     deadline,
	})
	if err != nil {
		return nil, err
	}

	return &domain.FlashLoanRequest{
		Asset:  base.Address(),
		Amount: new(big.Int).Set(borrowed),
		Legs:   []domain.SwapLeg{leg1, leg2},
	}, nil
}

// dryRun simulates the request against the node instead of submitting.
func (o *Orchestrator) dryRun(ctx context.Context, span trace.Span, req *domain.FlashLoanRequest, report *arbDomain.ProfitabilityReport, started time.Time) *arbDomain.ExecutionResult {
	result := &arbDomain.ExecutionResult{
		DryRun:      true,
		SubmittedAt: started,
	}

	gasUsed, err := o.settlement.EstimateGas(ctx, req)
	if err != nil {
		result.Reason = fmt.Sprintf("simulation reverted: %v", err)
		result.Latency = o.now().Sub(started)
		o.record(ctx, span, result)
		return result
	}

	result.Success = true
	result.GasUsed = gasUsed
	result.ProfitUSD = report.NetUSD
	result.GasCostUSD = report.Costs.GasUSD
	result.Latency = o.now().Sub(started)

	o.logger.Info(ctx, "dry run succeeded",
		"gas_used", gasUsed,
		"projected_profit_usd", report.NetUSD.StringFixed(2),
	)
	o.record(ctx, span, result)
	return result
}

// submit sends the transaction and waits for the receipt. A revert is a
// handled failure: the premium was never owed but the gas is gone.
func (o *Orchestrator) submit(ctx context.Context, span trace.Span, req *domain.FlashLoanRequest, settings *domain.GasSettings, report *arbDomain.ProfitabilityReport, started time.Time) *arbDomain.ExecutionResult {
	result := &arbDomain.ExecutionResult{SubmittedAt: started}

	txHash, err := o.settlement.RequestFlashLoan(ctx, req, settings)
	if err != nil {
		result.Reason = fmt.Sprintf("submission failed: %v", err)
		result.Latency = o.now().Sub(started)
		o.record(ctx, span, result)
		return result
	}
	result.TxHash = txHash

	waitCtx, cancel := context.WithTimeout(ctx, o.config.ConfirmTimeout)
	defer cancel()

	receipt, err := o.settlement.WaitMined(waitCtx, txHash)
	if err != nil {
		result.Reason = fmt.Sprintf("confirmation timed out after %s", o.config.ConfirmTimeout)
		result.GasCostUSD = o.gasCostUSD(ctx, settings.MaxCostWei())
		result.Latency = o.now().Sub(started)
		o.record(ctx, span, result)
		return result
	}

	result.GasUsed = receipt.GasUsed
	actualCost := new(big.Int).Mul(settings.EffectivePriceWei(), new(big.Int).SetUint64(receipt.GasUsed))
	result.GasCostUSD = o.gasCostUSD(ctx, actualCost)
	result.Latency = o.now().Sub(started)

	if receipt.Status == 0 {
		result.Reason = "flashloan reverted"
		o.logger.Warn(ctx, "flashloan reverted",
			"tx", txHash.Hex(),
			"gas_used", receipt.GasUsed,
		)
		o.record(ctx, span, result)
		return result
	}

	result.Success = true
	result.ProfitUSD = report.NetUSD.Sub(result.GasCostUSD.Sub(report.Costs.GasUSD))
	o.logger.Info(ctx, "flashloan settled",
		"tx", txHash.Hex(),
		"gas_used", receipt.GasUsed,
		"profit_usd", result.ProfitUSD.StringFixed(2),
	)
	o.record(ctx, span, result)
	return result
}

// gasCostUSD projects a wei fee into USD via the reference ETH price. A
// zero is better than blocking the result on an oracle hiccup.
func (o *Orchestrator) gasCostUSD(ctx context.Context, wei *big.Int) decimal.Decimal {
	price := o.oracle.GetPrice(ctx, "ETH")
	if !price.USD.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -18).Mul(price.USD)
}

func (o *Orchestrator) record(ctx context.Context, span trace.Span, result *arbDomain.ExecutionResult) {
	o.executionCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.Bool("success", result.Success),
			attribute.Bool("dry_run", result.DryRun),
		))
	span.SetAttributes(
		attribute.Bool("success", result.Success),
		attribute.String("reason", result.Reason),
	)
	if !result.Success {
		span.AddEvent("execution_failed",
			trace.WithAttributes(attribute.String("reason", result.Reason)))
	}
}

// applyDiscountPct returns v reduced by pct percent, floored at zero.
func applyDiscountPct(v *big.Int, pct decimal.Decimal) *big.Int {
	factor := decimal.NewFromInt(100).Sub(pct)
	if factor.IsNegative() {
		return big.NewInt(0)
	}
	return decimal.NewFromBigInt(v, 0).
		Mul(factor).
		Div(decimal.NewFromInt(100)).
		Floor().
		BigInt()
}

// applyPremiumBps returns v grown by bps basis points, rounded up so the
// repayment floor never undershoots.
func applyPremiumBps(v *big.Int, bps decimal.Decimal) *big.Int {
	return decimal.NewFromBigInt(v, 0).
		Mul(decimal.NewFromInt(10000).Add(bps)).
		Div(decimal.NewFromInt(10000)).
		Ceil().
		BigInt()
}
