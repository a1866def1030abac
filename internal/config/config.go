// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Venues    []VenueConfig   `mapstructure:"venues"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Arbitrage ArbitrageConfig `mapstructure:"arbitrage"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// EthereumConfig holds node connection settings.
type EthereumConfig struct {
	WebSocketURL   string        `mapstructure:"websocket_url"`
	HTTPURL        string        `mapstructure:"http_url"`
	ChainID        uint64        `mapstructure:"chain_id"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"`
	RPCRateLimit   int           `mapstructure:"rpc_rate_limit"` // requests per minute, 0 = unlimited
}

// VenueType tags the quoting and encoding strategy for a venue.
type VenueType string

const (
	VenueConstantProduct       VenueType = "constant-product"
	VenueConcentratedLiquidity VenueType = "concentrated-liquidity"
)

// VenueConfig describes one liquidity venue.
type VenueConfig struct {
	ID      string    `mapstructure:"id"`
	Type    VenueType `mapstructure:"type"`
	Router  string    `mapstructure:"router"`
	Quoter  string    `mapstructure:"quoter"`  // concentrated-liquidity only
	Factory string    `mapstructure:"factory"` // constant-product only
	FeeBps  float64   `mapstructure:"fee_bps"` // swap fee, e.g. 30 = 0.30%
}

// RouterAddress returns the router address as common.Address.
func (v *VenueConfig) RouterAddress() common.Address {
	return common.HexToAddress(v.Router)
}

// QuoterAddress returns the quoter address as common.Address.
func (v *VenueConfig) QuoterAddress() common.Address {
	return common.HexToAddress(v.Quoter)
}

// FactoryAddress returns the factory address as common.Address.
func (v *VenueConfig) FactoryAddress() common.Address {
	return common.HexToAddress(v.Factory)
}

// FeeRate returns the venue fee as a fraction (30 bps -> 0.003).
func (v *VenueConfig) FeeRate() decimal.Decimal {
	return decimal.NewFromFloat(v.FeeBps).Div(decimal.NewFromInt(10000))
}

// OracleConfig holds reference price oracle settings.
type OracleConfig struct {
	Feeds          map[string]string  `mapstructure:"feeds"` // symbol -> aggregator address
	CacheTTL       time.Duration      `mapstructure:"cache_ttl"`
	MaxStaleness   time.Duration      `mapstructure:"max_staleness"`
	FallbackPrices map[string]float64 `mapstructure:"fallback_prices"`
}

// ArbitrageConfig holds opportunity detection settings.
type ArbitrageConfig struct {
	Pairs              []string      `mapstructure:"pairs"`       // e.g. ["WETH-USDC"]
	TradeSizes         []float64     `mapstructure:"trade_sizes"` // in base asset units
	MinSpreadPct       float64       `mapstructure:"min_spread_pct"`
	OracleDeviationPct float64       `mapstructure:"oracle_deviation_pct"`
	MinPoolLiquidity   float64       `mapstructure:"min_pool_liquidity"` // in base asset units
	QuoteTTL           time.Duration `mapstructure:"quote_ttl"`
	ScanInterval       time.Duration `mapstructure:"scan_interval"`
	MinProfitUSD       float64       `mapstructure:"min_profit_usd"`
	MinMarginPct       float64       `mapstructure:"min_margin_pct"`
	MaxRiskScore       float64       `mapstructure:"max_risk_score"`
}

// RiskConfig holds risk manager limits.
type RiskConfig struct {
	MaxPositionUSD       float64       `mapstructure:"max_position_usd"`
	MaxSlippagePct       float64       `mapstructure:"max_slippage_pct"`
	MaxDailyLossUSD      float64       `mapstructure:"max_daily_loss_usd"`
	MaxGasPriceGwei      float64       `mapstructure:"max_gas_price_gwei"`
	BreakerThreshold     int           `mapstructure:"breaker_threshold"`
	BreakerCooldown      time.Duration `mapstructure:"breaker_cooldown"`
	EmergencyStop        bool          `mapstructure:"emergency_stop"`
	ApprovalScoreCeiling float64       `mapstructure:"approval_score_ceiling"`
}

// ExecutionConfig holds orchestrator settings.
type ExecutionConfig struct {
	ContractAddress     string        `mapstructure:"contract_address"` // settlement (flashloan receiver) contract
	ExecutorAddress     string        `mapstructure:"executor_address"` // EOA submitting transactions
	PrivateKey          string        `mapstructure:"private_key"`      // executor signing key, hex; environment only
	DryRun              bool          `mapstructure:"dry_run"`
	Cooldown            time.Duration `mapstructure:"cooldown"`
	ConfirmTimeout      time.Duration `mapstructure:"confirm_timeout"`
	SlippageTolerance   float64       `mapstructure:"slippage_tolerance_pct"`
	GasDriftTolerance   float64       `mapstructure:"gas_drift_tolerance_pct"`
	FlashloanPremiumBps float64       `mapstructure:"flashloan_premium_bps"`
	Urgency             string        `mapstructure:"urgency"` // slow|standard|fast|urgent
}

// ContractAddr returns the settlement contract address.
func (c *ExecutionConfig) ContractAddr() common.Address {
	return common.HexToAddress(c.ContractAddress)
}

// ExecutorAddr returns the executor account address.
func (c *ExecutionConfig) ExecutorAddr() common.Address {
	return common.HexToAddress(c.ExecutorAddress)
}

// RedisConfig holds the optional durable stats store settings.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AlertsConfig holds performance alerting thresholds and sinks.
type AlertsConfig struct {
	Interval           time.Duration `mapstructure:"interval"`
	WebhookURL         string        `mapstructure:"webhook_url"`
	MinSuccessRate     float64       `mapstructure:"min_success_rate"`
	MaxErrorRate       float64       `mapstructure:"max_error_rate"`
	MaxExecutionMs     float64       `mapstructure:"max_execution_ms"`
	MinProfitMarginPct float64       `mapstructure:"min_profit_margin_pct"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
	HealthPort     int    `mapstructure:"health_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("FLASH")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file is fine, env vars and defaults apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "FLASH_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "FLASH_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "FLASH_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("ethereum.websocket_url", "FLASH_ETH_WS_URL", "ETH_WS_URL")
	v.BindEnv("ethereum.http_url", "FLASH_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("ethereum.chain_id", "FLASH_ETH_CHAIN_ID", "ETH_CHAIN_ID")

	v.BindEnv("execution.contract_address", "FLASH_CONTRACT_ADDRESS", "CONTRACT_ADDRESS")
	v.BindEnv("execution.executor_address", "FLASH_EXECUTOR_ADDRESS", "EXECUTOR_ADDRESS")
	v.BindEnv("execution.private_key", "FLASH_PRIVATE_KEY", "PRIVATE_KEY")
	v.BindEnv("execution.dry_run", "FLASH_DRY_RUN")

	v.BindEnv("risk.emergency_stop", "FLASH_EMERGENCY_STOP")

	v.BindEnv("redis.addr", "FLASH_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("redis.password", "FLASH_REDIS_PASSWORD", "REDIS_PASSWORD")

	v.BindEnv("alerts.webhook_url", "FLASH_ALERT_WEBHOOK_URL")

	v.BindEnv("telemetry.enabled", "FLASH_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "FLASH_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "FLASH_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "flashloan-bot")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.initial_backoff", "1s")
	v.SetDefault("ethereum.max_backoff", "30s")
	v.SetDefault("ethereum.call_timeout", "10s")
	v.SetDefault("ethereum.rpc_rate_limit", 600)

	v.SetDefault("oracle.cache_ttl", "30s")
	v.SetDefault("oracle.max_staleness", "1h")
	v.SetDefault("oracle.feeds", map[string]string{
		"ETH": "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419",
		"BTC": "0xF4030086522a5bEEa4988F8cA5B36dbC97BeE88c",
	})
	v.SetDefault("oracle.fallback_prices", map[string]float64{
		"ETH":  2000,
		"WETH": 2000,
		"BTC":  40000,
		"WBTC": 40000,
		"USDC": 1,
		"USDT": 1,
		"DAI":  1,
	})

	v.SetDefault("arbitrage.pairs", []string{"WETH-USDC"})
	v.SetDefault("arbitrage.trade_sizes", []float64{1.0})
	v.SetDefault("arbitrage.min_spread_pct", 0.5)
	v.SetDefault("arbitrage.oracle_deviation_pct", 5.0)
	v.SetDefault("arbitrage.min_pool_liquidity", 0.5)
	v.SetDefault("arbitrage.quote_ttl", "5s")
	v.SetDefault("arbitrage.scan_interval", "10s")
	v.SetDefault("arbitrage.min_profit_usd", 10)
	v.SetDefault("arbitrage.min_margin_pct", 0.5)
	v.SetDefault("arbitrage.max_risk_score", 70)

	v.SetDefault("risk.max_position_usd", 50000)
	v.SetDefault("risk.max_slippage_pct", 5)
	v.SetDefault("risk.max_daily_loss_usd", 500)
	v.SetDefault("risk.max_gas_price_gwei", 150)
	v.SetDefault("risk.breaker_threshold", 3)
	v.SetDefault("risk.breaker_cooldown", "5m")
	v.SetDefault("risk.emergency_stop", false)
	v.SetDefault("risk.approval_score_ceiling", 70)

	v.SetDefault("execution.dry_run", true)
	v.SetDefault("execution.cooldown", "30s")
	v.SetDefault("execution.confirm_timeout", "2m")
	v.SetDefault("execution.slippage_tolerance_pct", 5)
	v.SetDefault("execution.gas_drift_tolerance_pct", 20)
	v.SetDefault("execution.flashloan_premium_bps", 9)
	v.SetDefault("execution.urgency", "fast")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("alerts.interval", "1m")
	v.SetDefault("alerts.min_success_rate", 0.5)
	v.SetDefault("alerts.max_error_rate", 0.3)
	v.SetDefault("alerts.max_execution_ms", 30000)
	v.SetDefault("alerts.min_profit_margin_pct", 0.1)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "flashloan-bot")
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.health_port", 8081)
}

// Validate checks the configuration. These are the only errors allowed to
// terminate the process, and only at startup.
func (c *Config) Validate() error {
	if c.Ethereum.HTTPURL == "" {
		return fmt.Errorf("ethereum.http_url is required")
	}
	if len(c.Venues) < 2 {
		return fmt.Errorf("at least two venues are required, got %d", len(c.Venues))
	}

	seen := make(map[string]bool, len(c.Venues))
	for i := range c.Venues {
		ven := &c.Venues[i]
		if ven.ID == "" {
			return fmt.Errorf("venues[%d].id is required", i)
		}
		if seen[ven.ID] {
			return fmt.Errorf("duplicate venue id %q", ven.ID)
		}
		seen[ven.ID] = true

		switch ven.Type {
		case VenueConstantProduct:
			if !common.IsHexAddress(ven.Router) {
				return fmt.Errorf("venue %s: invalid router address %q", ven.ID, ven.Router)
			}
			if !common.IsHexAddress(ven.Factory) {
				return fmt.Errorf("venue %s: invalid factory address %q", ven.ID, ven.Factory)
			}
		case VenueConcentratedLiquidity:
			if !common.IsHexAddress(ven.Quoter) {
				return fmt.Errorf("venue %s: invalid quoter address %q", ven.ID, ven.Quoter)
			}
			if !common.IsHexAddress(ven.Router) {
				return fmt.Errorf("venue %s: invalid router address %q", ven.ID, ven.Router)
			}
		default:
			return fmt.Errorf("venue %s: unknown type %q", ven.ID, ven.Type)
		}
	}

	if !c.Execution.DryRun {
		if !common.IsHexAddress(c.Execution.ContractAddress) {
			return fmt.Errorf("invalid execution.contract_address: %s", c.Execution.ContractAddress)
		}
		if !common.IsHexAddress(c.Execution.ExecutorAddress) {
			return fmt.Errorf("invalid execution.executor_address: %s", c.Execution.ExecutorAddress)
		}
	}

	for sym, addr := range c.Oracle.Feeds {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("oracle.feeds[%s]: invalid aggregator address %q", sym, addr)
		}
	}

	if c.Risk.BreakerThreshold < 1 {
		return fmt.Errorf("risk.breaker_threshold must be >= 1")
	}

	return nil
}
