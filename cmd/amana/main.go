// Command amana runs the halal trading agent: LLM-driven equity and crypto
// trading with compliance screening, risk gating and a WAL-backed audit
// trail.
//
// Usage:
//
//	amana run --config config.yaml --domain both
//	amana run-once --config config.yaml --domain crypto
//	amana status --config config.yaml
//	amana screen --config config.yaml
//
// Credentials come from the environment (or a .env file):
// ALPACA_API_KEY/ALPACA_API_SECRET, BINANCE_API_KEY/BINANCE_API_SECRET,
// BYBIT_API_KEY/BYBIT_API_SECRET, OPENAI_API_KEY, ZOYA_API_KEY,
// COINGECKO_API_KEY.
package main

import (
	"os"

	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := newRootCmd(logger).Execute(); err != nil {
		os.Exit(1)
	}
}
