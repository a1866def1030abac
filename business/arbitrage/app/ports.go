// Package app contains application services and port definitions for the arbitrage context.
package app

import (
	"context"

	"github.com/fd1az/flashloan-bot/business/arbitrage/domain"
)

// StatsStore persists DailyRiskStats across restarts. Load returns a
// zeroed stats block, not an error, when the day has no record yet.
type StatsStore interface {
	Load(ctx context.Context, day string) (*domain.DailyRiskStats, error)
	Save(ctx context.Context, stats *domain.DailyRiskStats) error
}

// Alerter delivers advisory alerts raised by the performance monitor.
type Alerter interface {
	Send(ctx context.Context, alert domain.Alert) error
}

// Executor runs one approved opportunity end to end.
//
// A returned error is a pre-flight rejection (in progress, cooldown,
// revalidation, balance, no encoder): nothing was submitted and the
// failure streak must not move. A returned result is a terminal execution
// outcome, success or not, and feeds RecordResult.
type Executor interface {
	Execute(ctx context.Context, opp *domain.Opportunity, report *domain.ProfitabilityReport) (*domain.ExecutionResult, error)
}
