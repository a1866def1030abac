package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashloan-bot/business/arbitrage/domain"
	"github.com/fd1az/flashloan-bot/internal/config"
	"github.com/fd1az/flashloan-bot/internal/logger"
)

// Factor point weights. Critical factors reject on their own; the points
// only matter for the stacking penalty and the reported score.
const (
	pointsMarginLow     = 20
	pointsPositionCap   = 15
	pointsSlippage      = 15
	pointsGasPrice      = 10
	pointsDailyLoss     = 40
	pointsFailureStreak = 15
	pointsFailureWarm   = 5
	pointsEmergencyStop = 100
	pointsBreakerOpen   = 100
	stackingPenalty     = 10
	maxScore            = 100
)

// RiskManagerConfig holds the gating limits.
type RiskManagerConfig struct {
	Risk           config.RiskConfig
	MarginFloorPct decimal.Decimal
}

// RiskManager is the gatekeeper between a viable report and the
// orchestrator. It owns the circuit breaker and the daily stats; both are
// mutated only here, under a single lock, which the single-flight
// execution discipline keeps uncontended.
type RiskManager struct {
	store  StatsStore
	config RiskManagerConfig
	logger logger.LoggerInterface
	tracer trace.Tracer

	mu      sync.Mutex
	breaker domain.CircuitBreakerState

	now func() time.Time
}

// NewRiskManager creates a risk manager over a stats store.
func NewRiskManager(store StatsStore, cfg RiskManagerConfig, log logger.LoggerInterface) *RiskManager {
	return &RiskManager{
		store:  store,
		config: cfg,
		logger: log,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
}

// Assess gates one evaluated opportunity. The emergency stop and an open
// breaker short-circuit everything else; otherwise factors accumulate and
// the verdict follows from severity and score.
func (r *RiskManager) Assess(ctx context.Context, opp *domain.Opportunity, report *domain.ProfitabilityReport) *domain.RiskAssessment {
	ctx, span := r.tracer.Start(ctx, "arb.assess_risk",
		trace.WithAttributes(attribute.String("opportunity", opp.ID)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	assessment := &domain.RiskAssessment{AssessedAt: now}

	if r.config.Risk.EmergencyStop {
		assessment.Factors = append(assessment.Factors, domain.RiskFactor{
			Name:        "emergency_stop",
			Description: "global emergency stop is set",
			Severity:    domain.SeverityCritical,
			Points:      pointsEmergencyStop,
		})
		return r.finish(ctx, span, assessment)
	}

	if r.breaker.Active {
		if !r.breaker.CooldownElapsed(r.config.Risk.BreakerCooldown, now) {
			assessment.Factors = append(assessment.Factors, domain.RiskFactor{
				Name: "circuit_breaker_open",
				Description: fmt.Sprintf("circuit breaker open since %s",
					r.breaker.ActivatedAt.Format(time.RFC3339)),
				Severity: domain.SeverityCritical,
				Points:   pointsBreakerOpen,
			})
			return r.finish(ctx, span, assessment)
		}

		// Cooldown over: close the breaker and clear the streak before
		// assessing anything else.
		r.breaker = domain.CircuitBreakerState{}
		stats := r.loadStats(ctx, now)
		stats.ConsecutiveFailures = 0
		r.saveStats(ctx, stats)
		r.logger.Info(ctx, "circuit breaker closed after cooldown")
		span.AddEvent("breaker_closed")
	}

	stats := r.loadStats(ctx, now)

	if report.MarginPct.LessThanOrEqual(r.config.MarginFloorPct) {
		assessment.Factors = append(assessment.Factors, domain.RiskFactor{
			Name: "margin_below_floor",
			Description: fmt.Sprintf("margin %s%% at or below floor %s%%",
				report.MarginPct.StringFixed(4), r.config.MarginFloorPct),
			Severity: domain.SeverityHigh,
			Points:   pointsMarginLow,
		})
	}

	maxPosition := decimal.NewFromFloat(r.config.Risk.MaxPositionUSD)
	if maxPosition.IsPositive() && report.BorrowedUSD.GreaterThan(maxPosition) {
		// Recommend the largest size still inside the cap.
		recommended := opp.BorrowAmount.ToDecimal().
			Mul(maxPosition).
			Div(report.BorrowedUSD)
		assessment.RecommendedSize = recommended
		assessment.Factors = append(assessment.Factors, domain.RiskFactor{
			Name: "position_above_cap",
			Description: fmt.Sprintf("position %s USD above cap %s USD",
				report.BorrowedUSD.StringFixed(0), maxPosition),
			Severity: domain.SeverityMedium,
			Points:   pointsPositionCap,
		})
	}

	if slippage, ok := estimateSlippagePct(opp); ok &&
		slippage.GreaterThan(decimal.NewFromFloat(r.config.Risk.MaxSlippagePct)) {
		assessment.Factors = append(assessment.Factors, domain.RiskFactor{
			Name: "slippage_above_cap",
			Description: fmt.Sprintf("estimated slippage %s%% above cap %v%%",
				slippage.StringFixed(2), r.config.Risk.MaxSlippagePct),
			Severity: domain.SeverityMedium,
			Points:   pointsSlippage,
		})
	}

	gasGwei := decimal.NewFromBigInt(report.GasPriceWei, -9)
	if gasGwei.GreaterThan(decimal.NewFromFloat(r.config.Risk.MaxGasPriceGwei)) {
		assessment.Factors = append(assessment.Factors, domain.RiskFactor{
			Name: "gas_above_cap",
			Description: fmt.Sprintf("gas price %s gwei above cap %v gwei",
				gasGwei.StringFixed(1), r.config.Risk.MaxGasPriceGwei),
			Severity: domain.SeverityMedium,
			Points:   pointsGasPrice,
		})
	}

	// Worst case for a reverted flashloan is the gas burned. Project that
	// on top of today's realized net loss.
	realizedLoss := decimal.Zero
	if stats.NetUSD().IsNegative() {
		realizedLoss = stats.NetUSD().Neg()
	}
	projected := realizedLoss.Add(report.Costs.GasUSD)
	maxDailyLoss := decimal.NewFromFloat(r.config.Risk.MaxDailyLossUSD)
	if maxDailyLoss.IsPositive() && projected.GreaterThan(maxDailyLoss) {
		assessment.Factors = append(assessment.Factors, domain.RiskFactor{
			Name: "daily_loss_limit",
			Description: fmt.Sprintf("projected daily loss %s USD above limit %s USD",
				projected.StringFixed(0), maxDailyLoss),
			Severity: domain.SeverityCritical,
			Points:   pointsDailyLoss,
		})
	}

	switch {
	case stats.ConsecutiveFailures >= r.config.Risk.BreakerThreshold-1 && stats.ConsecutiveFailures > 0:
		assessment.Factors = append(assessment.Factors, domain.RiskFactor{
			Name: "failure_streak",
			Description: fmt.Sprintf("%d consecutive failures, breaker trips at %d",
				stats.ConsecutiveFailures, r.config.Risk.BreakerThreshold),
			Severity: domain.SeverityHigh,
			Points:   pointsFailureStreak,
		})
	case stats.ConsecutiveFailures > 0:
		assessment.Factors = append(assessment.Factors, domain.RiskFactor{
			Name:        "recent_failures",
			Description: fmt.Sprintf("%d consecutive failures", stats.ConsecutiveFailures),
			Severity:    domain.SeverityLow,
			Points:      pointsFailureWarm,
		})
	}

	return r.finish(ctx, span, assessment)
}

// finish computes the final score and verdict from the collected factors.
func (r *RiskManager) finish(ctx context.Context, span trace.Span, a *domain.RiskAssessment) *domain.RiskAssessment {
	score := 0
	severe := 0
	for _, f := range a.Factors {
		score += f.Points
		if f.Severity == domain.SeverityCritical || f.Severity == domain.SeverityHigh {
			severe++
		}
	}
	// Severe factors stack: each one past the first compounds the others.
	if severe > 1 {
		score += (severe - 1) * stackingPenalty
	}
	if score > maxScore {
		score = maxScore
	}

	a.Score = score
	a.Approved = !a.HasCritical() && score <= int(r.config.Risk.ApprovalScoreCeiling)

	if !a.Approved {
		r.logger.Info(ctx, "opportunity rejected by risk manager",
			"score", a.Score,
			"factors", a.FactorNames(),
		)
	}

	span.SetAttributes(
		attribute.Int("score", a.Score),
		attribute.Bool("approved", a.Approved),
		attribute.Int("factors", len(a.Factors)),
	)
	return a
}

// RecordResult feeds one terminal execution outcome back into the daily
// stats and the breaker.
func (r *RiskManager) RecordResult(ctx context.Context, opp *domain.Opportunity, report *domain.ProfitabilityReport, result *domain.ExecutionResult) {
	ctx, span := r.tracer.Start(ctx, "arb.record_result",
		trace.WithAttributes(
			attribute.String("opportunity", opp.ID),
			attribute.Bool("success", result.Success),
		),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	stats := r.loadStats(ctx, r.now())

	if result.Success {
		stats.RecordWin(result.ProfitUSD)
	} else {
		loss := result.GasCostUSD
		if result.ProfitUSD.IsNegative() && result.ProfitUSD.Neg().GreaterThan(loss) {
			loss = result.ProfitUSD.Neg()
		}
		stats.RecordLoss(loss)

		if stats.ConsecutiveFailures >= r.config.Risk.BreakerThreshold && !r.breaker.Active {
			r.breaker = domain.CircuitBreakerState{Active: true, ActivatedAt: r.now()}
			r.logger.Warn(ctx, "circuit breaker tripped",
				"consecutive_failures", stats.ConsecutiveFailures,
				"cooldown", r.config.Risk.BreakerCooldown,
			)
			span.AddEvent("breaker_tripped")
		}
	}

	r.saveStats(ctx, stats)
}

// BreakerState returns a copy of the breaker state, for health reporting.
func (r *RiskManager) BreakerState() domain.CircuitBreakerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.breaker
}

// loadStats fetches today's stats, tolerating store failures with a fresh
// block: a broken store must not halt gating.
func (r *RiskManager) loadStats(ctx context.Context, now time.Time) *domain.DailyRiskStats {
	day := domain.DayKey(now)
	stats, err := r.store.Load(ctx, day)
	if err != nil {
		r.logger.Error(ctx, "stats load failed, using empty stats", "error", err)
		return domain.NewDailyRiskStats(day)
	}
	stats.ResetIfNewDay(now)
	return stats
}

func (r *RiskManager) saveStats(ctx context.Context, stats *domain.DailyRiskStats) {
	if err := r.store.Save(ctx, stats); err != nil {
		r.logger.Error(ctx, "stats save failed", "error", err)
	}
}

// estimateSlippagePct approximates price impact as trade size over the
// buy-side input reserve. Concentrated venues carry no reserve snapshot,
// so there is nothing to estimate.
func estimateSlippagePct(opp *domain.Opportunity) (decimal.Decimal, bool) {
	reserve := opp.BuyQuote.Liquidity.ReserveIn
	if reserve.Asset() == nil || !reserve.IsPositive() {
		return decimal.Zero, false
	}
	return opp.BorrowAmount.ToDecimal().
		Div(reserve.ToDecimal()).
		Mul(decimal.NewFromInt(100)), true
}
