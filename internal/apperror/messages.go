package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:      "Required field is missing",
	CodeInvalidInput:       "Invalid input provided",
	CodeInvalidState:       "Invalid state for this operation",
	CodeNotFound:           "Resource not found",
	CodeConfigurationError: "Configuration error",
	CodeServiceTimeout:     "Service request timeout",
	CodeRateLimitExceeded:  "Rate limit exceeded",
	CodeInternalError:      "Internal error",
	CodeUnknownError:       "An unknown error occurred",

	CodeRPCConnectionFailed: "Failed to connect to RPC node",
	CodeRPCError:            "RPC call failed",
	CodeSubscribeFailed:     "Failed to subscribe to chain events",
	CodeContractCallFailed:  "Smart contract call failed",
	CodeGasEstimationFailed: "Gas estimation failed",
	CodeBalanceCheckFailed:  "Failed to read account balance",

	CodePoolNotFound:          "Liquidity pool not found",
	CodeQuoteFailed:           "Failed to quote venue",
	CodeInsufficientLiquidity: "Insufficient pool liquidity for trade size",
	CodeQuoteStale:            "Quote exceeded its freshness window",
	CodeOracleStale:           "Oracle round data is stale",
	CodeOracleInvalidPrice:    "Oracle returned a non-positive price",
	CodeOracleUnavailable:     "Reference price oracle unavailable",

	CodeSpreadTooSmall:    "Spread below minimum profitable threshold",
	CodeNotEnoughVenues:   "Fewer than two venues returned usable quotes",
	CodeNotViable:         "Opportunity failed viability checks",
	CodeRiskRejected:      "Risk manager rejected the opportunity",
	CodeCircuitOpen:       "Trading circuit breaker is active",
	CodeEmergencyStop:     "Emergency stop is engaged",
	CodeDailyLossExceeded: "Projected loss exceeds the daily cap",

	CodeExecutionInProgress: "Another execution is in progress",
	CodeCooldownActive:      "Execution cooldown has not elapsed",
	CodeOpportunityStale:    "Opportunity went stale before submission",
	CodeInsufficientBalance: "Executor balance below required gas reserve",
	CodeNoEncoder:           "No payload encoder for venue type",
	CodeSubmissionFailed:    "Flashloan transaction submission failed",
	CodeFlashloanReverted:   "Flashloan transaction reverted on-chain",
	CodeConfirmationTimeout: "Timed out waiting for confirmation",
}
