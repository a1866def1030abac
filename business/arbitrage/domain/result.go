package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ExecutionResult is the terminal value for one opportunity's lifecycle.
// It feeds DailyRiskStats and the performance monitor.
type ExecutionResult struct {
	Success     bool
	TxHash      common.Hash // zero when nothing was submitted
	GasUsed     uint64
	GasCostUSD  decimal.Decimal
	ProfitUSD   decimal.Decimal // realized, negative on loss
	Reason      string          // failure reason, empty on success
	DryRun      bool
	Latency     time.Duration
	SubmittedAt time.Time
}

// Alert is a structured advisory event raised by the performance monitor.
// Alerts never block execution; gating is the risk manager's job.
type Alert struct {
	Name      string
	Message   string
	Severity  Severity
	Value     decimal.Decimal
	Threshold decimal.Decimal
	RaisedAt  time.Time
}
