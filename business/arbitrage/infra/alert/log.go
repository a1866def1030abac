// Package alert delivers performance alerts to operator-facing sinks.
package alert

import (
	"context"

	"github.com/fd1az/flashloan-bot/business/arbitrage/domain"
	"github.com/fd1az/flashloan-bot/internal/logger"
)

// LogAlerter writes alerts to the structured log. Always configured, so
// alerts are never silently lost when no webhook is set.
type LogAlerter struct {
	logger logger.LoggerInterface
}

// NewLogAlerter creates a log-backed alert sink.
func NewLogAlerter(log logger.LoggerInterface) *LogAlerter {
	return &LogAlerter{logger: log}
}

// Send logs the alert at a level matching its severity.
func (a *LogAlerter) Send(ctx context.Context, alert domain.Alert) error {
	args := []any{
		"alert", alert.Name,
		"severity", string(alert.Severity),
		"value", alert.Value.String(),
		"threshold", alert.Threshold.String(),
	}

	switch alert.Severity {
	case domain.SeverityCritical, domain.SeverityHigh:
		a.logger.Error(ctx, alert.Message, args...)
	default:
		a.logger.Warn(ctx, alert.Message, args...)
	}
	return nil
}
