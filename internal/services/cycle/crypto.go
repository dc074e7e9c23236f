package cycle

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/amanabot/amana/internal/domain"
	"github.com/amanabot/amana/internal/services/strategy"
)

const (
	maxCryptoPairs  = 10
	cryptoKlineWant = 100
	bookDepth       = 20
)

// CryptoMarket is the venue surface the crypto cycle reads. Klines here are
// the REST fallback; the stream cache is preferred when warm.
type CryptoMarket interface {
	GetAccount(ctx context.Context) (domain.CryptoAccount, error)
	GetBalances(ctx context.Context) ([]domain.Balance, error)
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error)
	GetOrderBook(ctx context.Context, symbol string, depth int) (domain.OrderBook, error)
}

// KlineCache serves candles accumulated from the websocket stream.
type KlineCache interface {
	Ready(symbol string) bool
	Klines(symbol string, limit int) []domain.Candle
}

// CryptoScreen filters pairs down to compliant base assets.
type CryptoScreen interface {
	RefreshScreening(ctx context.Context) error
	FilterHalalPairs(symbols []string) []string
}

// CryptoPlanner produces a trading plan from gathered market state.
type CryptoPlanner interface {
	Analyze(ctx context.Context, in strategy.CryptoInput) domain.TradingPlan
}

// CryptoCycle runs one crypto trading iteration end to end.
type CryptoCycle struct {
	market   CryptoMarket
	cache    KlineCache
	screen   CryptoScreen
	gate     HaltGate
	planner  CryptoPlanner
	executor PlanExecutor
	pairs    []string
	interval string
	logger   *zap.Logger
}

func NewCryptoCycle(market CryptoMarket, cache KlineCache, screen CryptoScreen, gate HaltGate,
	planner CryptoPlanner, executor PlanExecutor, pairs []string, interval string, logger *zap.Logger) *CryptoCycle {
	if interval == "" {
		interval = "1m"
	}
	return &CryptoCycle{
		market:   market,
		cache:    cache,
		screen:   screen,
		gate:     gate,
		planner:  planner,
		executor: executor,
		pairs:    pairs,
		interval: interval,
		logger:   logger,
	}
}

// Run executes one iteration. Panics are recovered so the bot loop survives.
func (c *CryptoCycle) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("crypto cycle panicked: %v", r)
		}
	}()
	return c.run(ctx)
}

func (c *CryptoCycle) run(ctx context.Context) error {
	if c.gate.ShouldHalt(ctx) {
		return nil
	}

	refreshErr := c.screen.RefreshScreening(ctx)
	if refreshErr != nil {
		c.logger.Warn("crypto screening refresh failed, using cached verdicts", zap.Error(refreshErr))
	}
	pairs := c.screen.FilterHalalPairs(c.pairs)
	if len(pairs) == 0 {
		if refreshErr == nil {
			c.logger.Warn("no compliant pairs configured, skipping cycle")
			return nil
		}
		// cold cache and no metadata provider: trade the configured pairs
		// rather than stall until the provider recovers
		c.logger.Warn("compliance cache cold, falling back to configured pairs",
			zap.Strings("pairs", c.pairs))
		pairs = c.pairs
	}
	if len(pairs) > maxCryptoPairs {
		pairs = pairs[:maxCryptoPairs]
	}

	account, err := c.market.GetAccount(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch account")
	}
	balances, err := c.market.GetBalances(ctx)
	if err != nil {
		c.logger.Warn("balances unavailable", zap.Error(err))
	}

	klines := make(map[string][]domain.Candle, len(pairs))
	books := make(map[string]domain.OrderBook, len(pairs))
	for _, pair := range pairs {
		klines[pair] = c.candlesFor(ctx, pair)

		if book, err := c.market.GetOrderBook(ctx, pair, bookDepth); err == nil {
			books[pair] = book
		} else {
			c.logger.Warn("order book unavailable", zap.String("symbol", pair), zap.Error(err))
		}
	}

	plan := c.planner.Analyze(ctx, strategy.CryptoInput{
		Account:    account,
		Balances:   balances,
		Pairs:      pairs,
		Klines:     klines,
		OrderBooks: books,
		TodayPnL:   c.gate.TodayPnL(ctx),
	})

	results := c.executor.ExecutePlan(ctx, plan)
	logResults(c.logger, "crypto", results)
	return nil
}

// candlesFor prefers the warm stream buffer and falls back to REST while
// the stream is still filling.
func (c *CryptoCycle) candlesFor(ctx context.Context, pair string) []domain.Candle {
	if c.cache != nil && c.cache.Ready(pair) {
		return c.cache.Klines(pair, cryptoKlineWant)
	}

	candles, err := c.market.GetKlines(ctx, pair, c.interval, cryptoKlineWant)
	if err != nil {
		c.logger.Warn("klines unavailable", zap.String("symbol", pair), zap.Error(err))
		return nil
	}
	return candles
}
