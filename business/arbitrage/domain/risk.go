package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Severity grades a risk factor.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RiskFactor is one triggered risk rule.
type RiskFactor struct {
	Name        string
	Description string
	Severity    Severity
	Points      int
}

// RiskAssessment is the risk manager's verdict on one opportunity.
//
// Invariant: any critical factor forces Approved = false regardless of
// score.
type RiskAssessment struct {
	Factors  []RiskFactor
	Score    int // 0-100, factor points plus stacking penalty
	Approved bool

	// RecommendedSize is a capped position size, set when the requested
	// size tripped the position limit. Zero otherwise.
	RecommendedSize decimal.Decimal

	AssessedAt time.Time
}

// HasCritical reports whether any factor is critical.
func (a *RiskAssessment) HasCritical() bool {
	for _, f := range a.Factors {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// FactorNames returns the triggered factor names, for logging.
func (a *RiskAssessment) FactorNames() []string {
	names := make([]string, 0, len(a.Factors))
	for _, f := range a.Factors {
		names = append(names, f.Name)
	}
	return names
}
