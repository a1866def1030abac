package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/flashloan-bot/business/arbitrage/domain"
	"github.com/fd1az/flashloan-bot/internal/config"
	"github.com/fd1az/flashloan-bot/internal/logger"
)

const resultHistorySize = 256

// MonitorSnapshot is a point-in-time view of the session counters.
type MonitorSnapshot struct {
	Opportunities        int64
	Rejections           int64
	Trades               int64
	Successes            int64
	Failures             int64
	TotalProfitUSD       decimal.Decimal
	TotalGasUSD          decimal.Decimal
	SuccessRatePct       float64
	ErrorRatePct         float64
	AvgLatencyMs         float64
	AvgMarginPct         decimal.Decimal
	OpportunitiesPerHour float64
	ProfitPerHourUSD     decimal.Decimal
	SessionUptime        time.Duration
	CapturedAt           time.Time
}

// Monitor tracks session performance and raises alerts when the rolling
// numbers cross the configured thresholds. Alert sinks are fire-and-forget;
// a failing sink never blocks the scan loop.
type Monitor struct {
	config   config.AlertsConfig
	alerters []Alerter
	logger   logger.LoggerInterface

	mu            sync.Mutex
	opportunities int64
	rejections    int64
	trades        int64
	successes     int64
	failures      int64
	profitUSD     decimal.Decimal
	gasUSD        decimal.Decimal
	marginSum     decimal.Decimal
	latencySum    time.Duration
	history       []*domain.ExecutionResult

	// raised suppresses duplicate alerts until the condition clears.
	raised map[string]bool

	startedAt time.Time

	opportunityCounter metric.Int64Counter
	tradeCounter       metric.Int64Counter
	profitGauge        metric.Float64Gauge

	now func() time.Time
}

// NewMonitor creates a performance monitor fanning alerts out to sinks.
func NewMonitor(cfg config.AlertsConfig, alerters []Alerter, log logger.LoggerInterface) *Monitor {
	meter := otel.Meter(meterName)
	opportunityCounter, _ := meter.Int64Counter("arb.opportunities",
		metric.WithDescription("Opportunities discovered"))
	tradeCounter, _ := meter.Int64Counter("arb.trades",
		metric.WithDescription("Trades attempted"))
	profitGauge, _ := meter.Float64Gauge("arb.session_profit_usd",
		metric.WithDescription("Cumulative session profit in USD"))

	return &Monitor{
		config:             cfg,
		alerters:           alerters,
		logger:             log,
		raised:             make(map[string]bool),
		startedAt:          time.Now(),
		opportunityCounter: opportunityCounter,
		tradeCounter:       tradeCounter,
		profitGauge:        profitGauge,
		now:                time.Now,
	}
}

// RecordOpportunity counts one discovered opportunity.
func (m *Monitor) RecordOpportunity(ctx context.Context, opp *domain.Opportunity) {
	m.mu.Lock()
	m.opportunities++
	m.mu.Unlock()

	m.opportunityCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("pair", opp.Pair.String())))
}

// RecordRejection counts an opportunity stopped before execution, by the
// viability gate, the risk manager or a pre-flight check.
func (m *Monitor) RecordRejection(ctx context.Context, reason string) {
	m.mu.Lock()
	m.rejections++
	m.mu.Unlock()

	m.opportunityCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("rejected", reason)))
}

// RecordResult folds one terminal execution outcome into the counters.
func (m *Monitor) RecordResult(ctx context.Context, report *domain.ProfitabilityReport, result *domain.ExecutionResult) {
	m.mu.Lock()
	m.trades++
	if result.Success {
		m.successes++
		m.profitUSD = m.profitUSD.Add(result.ProfitUSD)
	} else {
		m.failures++
		m.profitUSD = m.profitUSD.Sub(result.GasCostUSD)
	}
	m.gasUSD = m.gasUSD.Add(result.GasCostUSD)
	m.marginSum = m.marginSum.Add(report.MarginPct)
	m.latencySum += result.Latency

	m.history = append(m.history, result)
	if len(m.history) > resultHistorySize {
		m.history = m.history[1:]
	}
	profit, _ := m.profitUSD.Float64()
	m.mu.Unlock()

	m.tradeCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.Bool("success", result.Success),
			attribute.Bool("dry_run", result.DryRun),
		))
	m.profitGauge.Record(ctx, profit)
}

// Snapshot returns the current counters with derived rates.
func (m *Monitor) Snapshot() MonitorSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Monitor) snapshotLocked() MonitorSnapshot {
	s := MonitorSnapshot{
		Opportunities:  m.opportunities,
		Rejections:     m.rejections,
		Trades:         m.trades,
		Successes:      m.successes,
		Failures:       m.failures,
		TotalProfitUSD: m.profitUSD,
		TotalGasUSD:    m.gasUSD,
		CapturedAt:     m.now(),
	}
	if m.trades > 0 {
		s.SuccessRatePct = float64(m.successes) / float64(m.trades) * 100
		s.ErrorRatePct = float64(m.failures) / float64(m.trades) * 100
		s.AvgLatencyMs = float64(m.latencySum.Milliseconds()) / float64(m.trades)
		s.AvgMarginPct = m.marginSum.Div(decimal.NewFromInt(m.trades))
	}

	s.SessionUptime = s.CapturedAt.Sub(m.startedAt)
	if hours := s.SessionUptime.Hours(); hours > 0 {
		s.OpportunitiesPerHour = float64(m.opportunities) / hours
		s.ProfitPerHourUSD = m.profitUSD.Div(decimal.NewFromFloat(hours))
	}
	return s
}

// CheckAlerts evaluates the thresholds against the current snapshot and
// sends an alert for each condition that just started failing. It is meant
// to run on the alert interval, from the scanner's scheduler.
func (m *Monitor) CheckAlerts(ctx context.Context) {
	m.mu.Lock()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	// Rates are meaningless on an empty session.
	if snap.Trades == 0 {
		return
	}

	m.evaluate(ctx, "success_rate_low",
		snap.Trades >= 5 && snap.SuccessRatePct < m.config.MinSuccessRate,
		fmt.Sprintf("success rate %.1f%% below minimum %.1f%%",
			snap.SuccessRatePct, m.config.MinSuccessRate),
		domain.SeverityHigh, snap.SuccessRatePct, m.config.MinSuccessRate)

	m.evaluate(ctx, "error_rate_high",
		snap.Trades >= 5 && snap.ErrorRatePct > m.config.MaxErrorRate,
		fmt.Sprintf("error rate %.1f%% above maximum %.1f%%",
			snap.ErrorRatePct, m.config.MaxErrorRate),
		domain.SeverityHigh, snap.ErrorRatePct, m.config.MaxErrorRate)

	m.evaluate(ctx, "execution_slow",
		m.config.MaxExecutionMs > 0 && snap.AvgLatencyMs > m.config.MaxExecutionMs,
		fmt.Sprintf("average execution latency %.0fms above maximum %.0fms",
			snap.AvgLatencyMs, m.config.MaxExecutionMs),
		domain.SeverityMedium, snap.AvgLatencyMs, m.config.MaxExecutionMs)

	avgMargin, _ := snap.AvgMarginPct.Float64()
	m.evaluate(ctx, "margin_thin",
		snap.Successes > 0 && avgMargin < m.config.MinProfitMarginPct,
		fmt.Sprintf("average margin %.2f%% below minimum %.2f%%",
			avgMargin, m.config.MinProfitMarginPct),
		domain.SeverityMedium, avgMargin, m.config.MinProfitMarginPct)
}

// evaluate sends one alert per condition transition into the failing state,
// and rearms when the condition clears.
func (m *Monitor) evaluate(ctx context.Context, name string, failing bool, message string, severity domain.Severity, value, threshold float64) {
	m.mu.Lock()
	wasRaised := m.raised[name]
	m.raised[name] = failing
	m.mu.Unlock()

	if !failing || wasRaised {
		return
	}

	alert := domain.Alert{
		Name:      name,
		Message:   message,
		Severity:  severity,
		Value:     decimal.NewFromFloat(value),
		Threshold: decimal.NewFromFloat(threshold),
		RaisedAt:  m.now(),
	}
	for _, a := range m.alerters {
		if err := a.Send(ctx, alert); err != nil {
			m.logger.Error(ctx, "alert delivery failed",
				"alert", name, "error", err)
		}
	}
}
