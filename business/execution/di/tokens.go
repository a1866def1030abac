// Package di contains dependency injection tokens for the execution context.
package di

import (
	"github.com/fd1az/flashloan-bot/business/execution/app"
	"github.com/fd1az/flashloan-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Orchestrator = di.NewToken[*app.Orchestrator]("execution.Orchestrator")
)

// Private dependency tokens - internal to execution module
var (
	GasStrategy      = di.NewToken[*app.GasStrategy]("execution:gasStrategy")
	SettlementClient = di.NewToken[app.SettlementClient]("execution:settlementClient")
	Encoders         = di.NewToken[map[string]app.PayloadEncoder]("execution:encoders")
)

// Helper functions for type-safe access
func GetOrchestrator(c di.ServiceRegistry) *app.Orchestrator {
	return di.GetToken(c, Orchestrator)
}

func GetGasStrategy(c di.ServiceRegistry) *app.GasStrategy {
	return di.GetToken(c, GasStrategy)
}

func GetSettlementClient(c di.ServiceRegistry) app.SettlementClient {
	return di.GetToken(c, SettlementClient)
}
