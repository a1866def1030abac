// Package main is the entry point for the flashloan arbitrage bot.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fd1az/flashloan-bot/business/arbitrage"
	arbitrageDI "github.com/fd1az/flashloan-bot/business/arbitrage/di"
	"github.com/fd1az/flashloan-bot/business/blockchain"
	blockchainDI "github.com/fd1az/flashloan-bot/business/blockchain/di"
	"github.com/fd1az/flashloan-bot/business/execution"
	"github.com/fd1az/flashloan-bot/business/pricing"
	pricingDI "github.com/fd1az/flashloan-bot/business/pricing/di"
	"github.com/fd1az/flashloan-bot/internal/apm"
	"github.com/fd1az/flashloan-bot/internal/config"
	"github.com/fd1az/flashloan-bot/internal/health"
	"github.com/fd1az/flashloan-bot/internal/logger"
	"github.com/fd1az/flashloan-bot/internal/metrics"
	"github.com/fd1az/flashloan-bot/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("flasharb %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}
	log := logger.New(os.Stderr, logLevel, cfg.App.Name, nil)

	log.Info(ctx, "starting flashloan arbitrage bot",
		"version", version,
		"environment", cfg.App.Environment,
		"dry_run", cfg.Execution.DryRun,
	)

	// Initialize observability if enabled
	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		traceProvider = apm.NewTraceProvider(log, apm.WithProvider(apm.ZipkinProvider, log))
		log.Info(ctx, "tracing initialized", "provider", "zipkin", "endpoint", cfg.Telemetry.OTLPEndpoint)

		metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{
				Provider: metrics.PrometheusProvider,
			}),
		)

		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(port)))
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	// Create monolith (application container)
	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	// Define modules in dependency order
	modules := []monolith.Module{
		&blockchain.Module{}, // Must be first - provides chain access
		&pricing.Module{},    // Depends on blockchain for the eth client
		&execution.Module{},  // Depends on blockchain and pricing
		&arbitrage.Module{},  // Drives the pipeline, depends on the rest
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	// Health server with liveness wired to the pipeline
	healthPort := cfg.Telemetry.HealthPort
	if healthPort == 0 {
		healthPort = 8081
	}
	healthServer := health.NewServer(healthPort, version)
	registerHealthChecks(healthServer, mono)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", healthPort)
	}
	defer healthServer.Stop(ctx)

	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	log.Info(ctx, "all modules started, scanning for opportunities")

	// Wait for shutdown
	<-ctx.Done()

	log.Info(ctx, "shutting down")
	arbitrageDI.GetScanner(mono.Services()).Stop()
	return nil
}

// registerHealthChecks exposes chain connectivity, oracle freshness and
// breaker state through the health endpoint.
func registerHealthChecks(server *health.Server, mono monolith.Monolith) {
	services := mono.Services()

	server.RegisterCheck("chain", func(ctx context.Context) (bool, string) {
		chain := blockchainDI.GetChainService(services)
		block, err := chain.LatestBlock(ctx)
		if err != nil {
			return false, fmt.Sprintf("node unreachable: %v", err)
		}
		return true, fmt.Sprintf("block %d, connection %s", block.Number, chain.ConnectionState())
	})

	server.RegisterCheck("oracle", func(ctx context.Context) (bool, string) {
		oracle := pricingDI.GetReferenceOracle(services)
		price := oracle.GetPrice(ctx, "ETH")
		if price.Fallback {
			return false, "serving fallback prices"
		}
		return true, fmt.Sprintf("ETH %s USD", price.USD.StringFixed(2))
	})

	server.RegisterCheck("circuit_breaker", func(ctx context.Context) (bool, string) {
		breaker := arbitrageDI.GetRiskManager(services).BreakerState()
		if breaker.Active {
			return false, fmt.Sprintf("open since %s", breaker.ActivatedAt.Format("15:04:05"))
		}
		return true, "closed"
	})
}
