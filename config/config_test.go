package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func setCryptoEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BINANCE_API_KEY", "key")
	t.Setenv("BINANCE_API_SECRET", "secret")
	t.Setenv("OPENAI_API_KEY", "sk-test")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setCryptoEnv(t)
	path := writeConfig(t, `
llm:
  base_url: http://localhost:11434/v1
  model: qwen3
crypto:
  enabled: true
  pairs: [BTCUSDT, ETHUSDT]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "binance", cfg.Crypto.Venue)
	assert.Equal(t, "1m", cfg.Crypto.KlineInterval)
	assert.Equal(t, defaultCryptoInterval, cfg.Crypto.Interval)
	assert.Equal(t, defaultCacheMaxAge, cfg.Screening.CacheMaxAge)
	assert.Equal(t, "./wal", cfg.StorageDir)
	assert.InDelta(t, 0.20, cfg.Risk.MaxPositionPct, 1e-9)
	assert.InDelta(t, 0.02, cfg.Risk.DailyLossLimit, 1e-9)
	assert.Equal(t, 5, cfg.Risk.MaxPositions)
	assert.Equal(t, "key", cfg.Crypto.APIKey)
}

func TestLoadRequiresEnabledDomain(t *testing.T) {
	path := writeConfig(t, `
llm:
  base_url: http://localhost:11434/v1
  model: qwen3
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one")
}

func TestLoadRequiresCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ALPACA_API_KEY", "")
	t.Setenv("ALPACA_API_SECRET", "")
	path := writeConfig(t, `
llm:
  base_url: http://localhost:11434/v1
  model: qwen3
equity:
  enabled: true
  watchlist: [AAPL]
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALPACA_API_KEY")
}

func TestLoadRejectsUnknownVenue(t *testing.T) {
	setCryptoEnv(t)
	path := writeConfig(t, `
llm:
  base_url: http://localhost:11434/v1
  model: qwen3
crypto:
  enabled: true
  venue: kraken
  pairs: [BTCUSDT]
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown crypto venue")
}

func TestLoadRejectsOverUnityFractions(t *testing.T) {
	setCryptoEnv(t)
	path := writeConfig(t, `
llm:
  base_url: http://localhost:11434/v1
  model: qwen3
crypto:
  enabled: true
  pairs: [BTCUSDT]
risk:
  max_position_pct: 20
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_position_pct")
}
