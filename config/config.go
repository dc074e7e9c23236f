// Package config loads the agent configuration from a YAML file with
// credential overrides taken from the environment (optionally via .env).
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	defaultEquityInterval = 15 * time.Minute
	defaultCryptoInterval = 60 * time.Second
	defaultCacheMaxAge    = 24 * time.Hour
	defaultStorageDir     = "./wal"
)

// LLMConfig selects the decision model endpoint. Any OpenAI-compatible
// chat-completions server works, including keyless local ones.
type LLMConfig struct {
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"-"`
}

// EquityConfig drives the stock trading bot.
type EquityConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Watchlist   []string      `yaml:"watchlist"`
	Interval    time.Duration `yaml:"interval"`
	TradingHost string        `yaml:"trading_host"`
	DataHost    string        `yaml:"data_host"`
	APIKey      string        `yaml:"-"`
	APISecret   string        `yaml:"-"`
}

// CryptoConfig drives the crypto trading bot.
type CryptoConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Pairs          []string      `yaml:"pairs"`
	Interval       time.Duration `yaml:"interval"`
	KlineInterval  string        `yaml:"kline_interval"`
	Venue          string        `yaml:"venue"` // binance or bybit
	Testnet        bool          `yaml:"testnet"`
	APIKey         string        `yaml:"-"`
	APISecret      string        `yaml:"-"`
	BybitAPIKey    string        `yaml:"-"`
	BybitAPISecret string        `yaml:"-"`
}

// RiskConfig is shared by both domains.
type RiskConfig struct {
	MaxPositionPct    float64 `yaml:"max_position_pct"`
	DailyLossLimit    float64 `yaml:"daily_loss_limit"`
	DailyReturnTarget float64 `yaml:"daily_return_target"`
	MaxPositions      int     `yaml:"max_positions"`
}

// ScreeningConfig tunes the halal compliance layer.
type ScreeningConfig struct {
	CacheMaxAge     time.Duration `yaml:"cache_max_age"`
	ZoyaSandbox     bool          `yaml:"zoya_sandbox"`
	ZoyaAPIKey      string        `yaml:"-"`
	CoinGeckoAPIKey string        `yaml:"-"`
}

// Config is the full immutable agent configuration.
type Config struct {
	LLM        LLMConfig       `yaml:"llm"`
	Equity     EquityConfig    `yaml:"equity"`
	Crypto     CryptoConfig    `yaml:"crypto"`
	Risk       RiskConfig      `yaml:"risk"`
	Screening  ScreeningConfig `yaml:"screening"`
	StorageDir string          `yaml:"storage_dir"`
}

// Load reads the YAML file at path, applies environment credentials and
// defaults, and validates the result. A .env file next to the process is
// honored when present.
func Load(path string) (Config, error) {
	// missing .env is fine, real envs set variables directly
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse config yaml")
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	c.Equity.APIKey = os.Getenv("ALPACA_API_KEY")
	c.Equity.APISecret = os.Getenv("ALPACA_API_SECRET")
	c.Crypto.APIKey = os.Getenv("BINANCE_API_KEY")
	c.Crypto.APISecret = os.Getenv("BINANCE_API_SECRET")
	c.Crypto.BybitAPIKey = os.Getenv("BYBIT_API_KEY")
	c.Crypto.BybitAPISecret = os.Getenv("BYBIT_API_SECRET")
	c.Screening.ZoyaAPIKey = os.Getenv("ZOYA_API_KEY")
	c.Screening.CoinGeckoAPIKey = os.Getenv("COINGECKO_API_KEY")
}

func (c *Config) applyDefaults() {
	if c.Equity.Interval <= 0 {
		c.Equity.Interval = defaultEquityInterval
	}
	if c.Crypto.Interval <= 0 {
		c.Crypto.Interval = defaultCryptoInterval
	}
	if c.Crypto.KlineInterval == "" {
		c.Crypto.KlineInterval = "1m"
	}
	if c.Crypto.Venue == "" {
		c.Crypto.Venue = "binance"
	}
	if c.Screening.CacheMaxAge <= 0 {
		c.Screening.CacheMaxAge = defaultCacheMaxAge
	}
	if c.StorageDir == "" {
		c.StorageDir = defaultStorageDir
	}
	if c.Risk.MaxPositionPct <= 0 {
		c.Risk.MaxPositionPct = 0.20
	}
	if c.Risk.DailyLossLimit <= 0 {
		c.Risk.DailyLossLimit = 0.02
	}
	if c.Risk.DailyReturnTarget <= 0 {
		c.Risk.DailyReturnTarget = 0.01
	}
	if c.Risk.MaxPositions <= 0 {
		c.Risk.MaxPositions = 5
	}
}

// Validate reports fatal configuration mistakes. It is called at startup
// so a broken deployment fails before the first cycle.
func (c *Config) Validate() error {
	if !c.Equity.Enabled && !c.Crypto.Enabled {
		return errors.New("at least one of equity or crypto must be enabled")
	}

	if c.LLM.BaseURL == "" {
		return errors.New("llm.base_url is required")
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model is required")
	}

	if c.Equity.Enabled {
		if c.Equity.APIKey == "" || c.Equity.APISecret == "" {
			return errors.New("equity enabled but ALPACA_API_KEY/ALPACA_API_SECRET are not set")
		}
		if len(c.Equity.Watchlist) == 0 {
			return errors.New("equity enabled but watchlist is empty")
		}
	}

	if c.Crypto.Enabled {
		switch c.Crypto.Venue {
		case "binance":
			if c.Crypto.APIKey == "" || c.Crypto.APISecret == "" {
				return errors.New("crypto enabled but BINANCE_API_KEY/BINANCE_API_SECRET are not set")
			}
		case "bybit":
			if c.Crypto.BybitAPIKey == "" || c.Crypto.BybitAPISecret == "" {
				return errors.New("crypto venue bybit but BYBIT_API_KEY/BYBIT_API_SECRET are not set")
			}
		default:
			return errors.Errorf("unknown crypto venue %q, expected binance or bybit", c.Crypto.Venue)
		}
		if len(c.Crypto.Pairs) == 0 {
			return errors.New("crypto enabled but pairs list is empty")
		}
	}

	if c.Risk.MaxPositionPct > 1 {
		return errors.Errorf("risk.max_position_pct %.2f must be a fraction of 1", c.Risk.MaxPositionPct)
	}
	if c.Risk.DailyLossLimit > 1 {
		return errors.Errorf("risk.daily_loss_limit %.2f must be a fraction of 1", c.Risk.DailyLossLimit)
	}
	return nil
}
