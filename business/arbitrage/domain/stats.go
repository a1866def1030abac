package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyRiskStats is process-wide realized performance scoped to one
// calendar day. Reset happens lazily via ResetIfNewDay at the top of every
// assessment, never from a background timer.
type DailyRiskStats struct {
	Day                 string          `json:"day"` // local date, 2006-01-02
	ProfitUSD           decimal.Decimal `json:"profit_usd"`
	LossUSD             decimal.Decimal `json:"loss_usd"` // positive magnitude
	Trades              int             `json:"trades"`
	Wins                int             `json:"wins"`
	Losses              int             `json:"losses"`
	ConsecutiveFailures int             `json:"consecutive_failures"`
}

// DayKey formats a time as the stats day key.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// NewDailyRiskStats returns a zeroed stats block for the given day.
func NewDailyRiskStats(day string) *DailyRiskStats {
	return &DailyRiskStats{
		Day:       day,
		ProfitUSD: decimal.Zero,
		LossUSD:   decimal.Zero,
	}
}

// NetUSD is realized profit minus realized loss.
func (s *DailyRiskStats) NetUSD() decimal.Decimal {
	return s.ProfitUSD.Sub(s.LossUSD)
}

// ResetIfNewDay zeroes the stats when the local day has rolled over.
// Returns true when a reset happened.
func (s *DailyRiskStats) ResetIfNewDay(now time.Time) bool {
	day := DayKey(now)
	if s.Day == day {
		return false
	}
	*s = *NewDailyRiskStats(day)
	return true
}

// RecordWin applies a profitable outcome.
func (s *DailyRiskStats) RecordWin(profitUSD decimal.Decimal) {
	s.Trades++
	s.Wins++
	s.ProfitUSD = s.ProfitUSD.Add(profitUSD)
	s.ConsecutiveFailures = 0
}

// RecordLoss applies a losing outcome. lossUSD is a positive magnitude.
func (s *DailyRiskStats) RecordLoss(lossUSD decimal.Decimal) {
	s.Trades++
	s.Losses++
	s.LossUSD = s.LossUSD.Add(lossUSD)
	s.ConsecutiveFailures++
}

// CircuitBreakerState is the consecutive-failure halt switch.
// Closed -> Open when failures reach the threshold; Open -> Closed once the
// cooldown has elapsed and the next assessment is requested.
type CircuitBreakerState struct {
	Active      bool
	ActivatedAt time.Time
}

// CooldownElapsed reports whether the breaker may close again.
func (c *CircuitBreakerState) CooldownElapsed(cooldown time.Duration, now time.Time) bool {
	return c.Active && now.Sub(c.ActivatedAt) >= cooldown
}
