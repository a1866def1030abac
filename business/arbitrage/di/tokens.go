// Package di contains dependency injection tokens for the arbitrage context.
package di

import (
	"github.com/fd1az/flashloan-bot/business/arbitrage/app"
	"github.com/fd1az/flashloan-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Scanner = di.NewToken[*app.Scanner]("arbitrage.Scanner")
	Monitor = di.NewToken[*app.Monitor]("arbitrage.Monitor")
)

// Private dependency tokens - internal to arbitrage module
var (
	Finder      = di.NewToken[*app.Finder]("arbitrage:finder")
	Calculator  = di.NewToken[*app.Calculator]("arbitrage:calculator")
	RiskManager = di.NewToken[*app.RiskManager]("arbitrage:riskManager")
	StatsStore  = di.NewToken[app.StatsStore]("arbitrage:statsStore")
	Alerters    = di.NewToken[[]app.Alerter]("arbitrage:alerters")
)

// Helper functions for type-safe access
func GetScanner(c di.ServiceRegistry) *app.Scanner {
	return di.GetToken(c, Scanner)
}

func GetMonitor(c di.ServiceRegistry) *app.Monitor {
	return di.GetToken(c, Monitor)
}

func GetFinder(c di.ServiceRegistry) *app.Finder {
	return di.GetToken(c, Finder)
}

func GetCalculator(c di.ServiceRegistry) *app.Calculator {
	return di.GetToken(c, Calculator)
}

func GetRiskManager(c di.ServiceRegistry) *app.RiskManager {
	return di.GetToken(c, RiskManager)
}
