package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	pricingDomain "github.com/fd1az/flashloan-bot/business/pricing/domain"
	"github.com/fd1az/flashloan-bot/internal/asset"
	"github.com/fd1az/flashloan-bot/internal/logger"
	"github.com/fd1az/flashloan-bot/internal/scheduler"
)

// ScannerConfig drives the scan loop.
type ScannerConfig struct {
	Pairs         []pricingDomain.Pair
	TradeSizes    []decimal.Decimal // in base asset units
	ScanInterval  time.Duration
	AlertInterval time.Duration
}

// Scanner is the top of the pipeline: on each tick it sweeps every
// pair and trade size through find, evaluate, assess and execute. One
// scanner cycle never overlaps another for the same job; the scheduler
// serializes ticks per job.
type Scanner struct {
	config     ScannerConfig
	finder     *Finder
	calculator *Calculator
	risk       *RiskManager
	monitor    *Monitor
	executor   Executor
	sched      *scheduler.Scheduler
	logger     logger.LoggerInterface
	tracer     trace.Tracer
}

// NewScanner wires the pipeline stages into a scheduled loop.
func NewScanner(
	cfg ScannerConfig,
	finder *Finder,
	calculator *Calculator,
	risk *RiskManager,
	monitor *Monitor,
	executor Executor,
	log logger.LoggerInterface,
) *Scanner {
	s := &Scanner{
		config:     cfg,
		finder:     finder,
		calculator: calculator,
		risk:       risk,
		monitor:    monitor,
		executor:   executor,
		sched:      scheduler.New(log),
		logger:     log,
		tracer:     otel.Tracer(tracerName),
	}

	s.sched.Add("scan", cfg.ScanInterval, s.Scan)
	if cfg.AlertInterval > 0 {
		s.sched.Add("alerts", cfg.AlertInterval, func(ctx context.Context) error {
			monitor.CheckAlerts(ctx)
			return nil
		})
	}
	return s
}

// Start launches the scan loop. It returns immediately.
func (s *Scanner) Start(ctx context.Context) {
	s.logger.Info(ctx, "scanner starting",
		"pairs", len(s.config.Pairs),
		"trade_sizes", len(s.config.TradeSizes),
		"interval", s.config.ScanInterval,
	)
	s.sched.Start(ctx)
}

// Stop halts the loop and waits for the in-flight cycle.
func (s *Scanner) Stop() {
	s.sched.Stop()
}

// Scan runs one full sweep. Exported so tests and operators can trigger
// a cycle without the scheduler.
func (s *Scanner) Scan(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "arb.scan")
	defer span.End()

	for _, pair := range s.config.Pairs {
		for _, size := range s.config.TradeSizes {
			amount, err := asset.ParseDecimal(pair.Base, size)
			if err != nil {
				s.logger.Error(ctx, "invalid trade size",
					"pair", pair.String(), "size", size, "error", err)
				continue
			}
			s.scanOne(ctx, pair, amount)
		}
	}
	return nil
}

// scanOne runs the pipeline for a single pair and size. Failures here are
// data for the monitor, not errors for the scheduler: a missing edge on
// one pair must not abort the sweep.
func (s *Scanner) scanOne(ctx context.Context, pair pricingDomain.Pair, amount asset.Amount) {
	ctx, span := s.tracer.Start(ctx, "arb.scan_pair",
		trace.WithAttributes(
			attribute.String("pair", pair.String()),
			attribute.String("size", amount.String()),
		),
	)
	defer span.End()

	opp := s.finder.FindOpportunity(ctx, pair, amount)
	if opp == nil {
		return
	}
	s.monitor.RecordOpportunity(ctx, opp)

	report, err := s.calculator.Evaluate(ctx, opp)
	if err != nil {
		s.logger.Warn(ctx, "profitability evaluation failed",
			"opportunity", opp.ID, "error", err)
		s.monitor.RecordRejection(ctx, "evaluation_failed")
		return
	}

	if !s.calculator.IsViable(report) {
		s.logger.Debug(ctx, "opportunity not viable",
			"opportunity", opp.ID,
			"net_usd", report.NetUSD.StringFixed(2),
			"margin_pct", report.MarginPct.StringFixed(4),
			"risk_score", report.RiskScore,
		)
		s.monitor.RecordRejection(ctx, "not_viable")
		return
	}

	assessment := s.risk.Assess(ctx, opp, report)
	if !assessment.Approved {
		s.monitor.RecordRejection(ctx, "risk_rejected")
		span.AddEvent("risk_rejected",
			trace.WithAttributes(attribute.Int("score", assessment.Score)))
		return
	}

	result, err := s.executor.Execute(ctx, opp, report)
	if err != nil {
		// Pre-flight rejection: nothing was submitted, the failure
		// streak stays where it is.
		s.logger.Info(ctx, "execution rejected pre-flight",
			"opportunity", opp.ID, "error", err)
		s.monitor.RecordRejection(ctx, "preflight_rejected")
		return
	}

	s.risk.RecordResult(ctx, opp, report, result)
	s.monitor.RecordResult(ctx, report, result)

	if result.Success {
		s.logger.Info(ctx, "arbitrage executed",
			"opportunity", opp.ID,
			"tx", result.TxHash.Hex(),
			"profit_usd", result.ProfitUSD.StringFixed(2),
			"dry_run", result.DryRun,
		)
	} else {
		s.logger.Warn(ctx, "arbitrage execution failed",
			"opportunity", opp.ID,
			"reason", result.Reason,
			"gas_cost_usd", result.GasCostUSD.StringFixed(2),
		)
	}
}
