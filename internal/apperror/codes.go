package apperror

// Code represents a unique error code for the application.
type Code string

// General error codes
const (
	CodeRequiredField      Code = "REQUIRED_FIELD"
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConfigurationError Code = "CONFIGURATION_ERROR"
	CodeServiceTimeout     Code = "SERVICE_TIMEOUT"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeUnknownError       Code = "UNKNOWN_ERROR"
)

// Chain and RPC error codes
const (
	CodeRPCConnectionFailed Code = "RPC_CONNECTION_FAILED"
	CodeRPCError            Code = "RPC_ERROR"
	CodeSubscribeFailed     Code = "SUBSCRIBE_FAILED"
	CodeContractCallFailed  Code = "CONTRACT_CALL_FAILED"
	CodeGasEstimationFailed Code = "GAS_ESTIMATION_FAILED"
	CodeBalanceCheckFailed  Code = "BALANCE_CHECK_FAILED"
)

// Quote and oracle error codes
const (
	CodePoolNotFound          Code = "POOL_NOT_FOUND"
	CodeQuoteFailed           Code = "QUOTE_FAILED"
	CodeInsufficientLiquidity Code = "INSUFFICIENT_LIQUIDITY"
	CodeQuoteStale            Code = "QUOTE_STALE"
	CodeOracleStale           Code = "ORACLE_STALE"
	CodeOracleInvalidPrice    Code = "ORACLE_INVALID_PRICE"
	CodeOracleUnavailable     Code = "ORACLE_UNAVAILABLE"
)

// Opportunity and risk error codes
const (
	CodeSpreadTooSmall    Code = "SPREAD_TOO_SMALL"
	CodeNotEnoughVenues   Code = "NOT_ENOUGH_VENUES"
	CodeNotViable         Code = "NOT_VIABLE"
	CodeRiskRejected      Code = "RISK_REJECTED"
	CodeCircuitOpen       Code = "CIRCUIT_OPEN"
	CodeEmergencyStop     Code = "EMERGENCY_STOP"
	CodeDailyLossExceeded Code = "DAILY_LOSS_EXCEEDED"
)

// Execution error codes
const (
	CodeExecutionInProgress Code = "EXECUTION_IN_PROGRESS"
	CodeCooldownActive      Code = "COOLDOWN_ACTIVE"
	CodeOpportunityStale    Code = "OPPORTUNITY_STALE"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeNoEncoder           Code = "NO_ENCODER"
	CodeSubmissionFailed    Code = "SUBMISSION_FAILED"
	CodeFlashloanReverted   Code = "FLASHLOAN_REVERTED"
	CodeConfirmationTimeout Code = "CONFIRMATION_TIMEOUT"
)
