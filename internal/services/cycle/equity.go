// Package cycle orchestrates one trading iteration per domain: gate,
// screen, gather, decide, execute.
package cycle

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/amanabot/amana/internal/domain"
	"github.com/amanabot/amana/internal/services/strategy"
)

const maxEquityUniverse = 20

// EquityMarket is the venue surface the equity cycle reads.
type EquityMarket interface {
	GetClock(ctx context.Context) (domain.MarketClock, error)
	GetAccount(ctx context.Context) (domain.Account, error)
	GetPositions(ctx context.Context) ([]domain.Position, error)
	GetSnapshot(ctx context.Context, symbol string) (domain.Snapshot, error)
	GetBars(ctx context.Context, symbol string, days int) ([]domain.Candle, error)
}

// EquityScreen filters the universe down to compliant symbols.
type EquityScreen interface {
	EnsureCache(ctx context.Context, symbols []string) error
	FilterHalal(symbols []string) []string
}

// HaltGate stops trading for the rest of the day when the loss limit trips.
type HaltGate interface {
	ShouldHalt(ctx context.Context) bool
	TodayPnL(ctx context.Context) decimal.Decimal
}

// EquityPlanner produces a trading plan from gathered market state.
type EquityPlanner interface {
	Analyze(ctx context.Context, in strategy.EquityInput) domain.TradingPlan
}

// PlanExecutor turns a plan into per-decision execution results.
type PlanExecutor interface {
	ExecutePlan(ctx context.Context, plan domain.TradingPlan) []domain.ExecutionResult
}

// EquityCycle runs one equity trading iteration end to end.
type EquityCycle struct {
	market   EquityMarket
	screen   EquityScreen
	gate     HaltGate
	planner  EquityPlanner
	executor PlanExecutor
	universe []string
	logger   *zap.Logger
}

func NewEquityCycle(market EquityMarket, screen EquityScreen, gate HaltGate,
	planner EquityPlanner, executor PlanExecutor, universe []string, logger *zap.Logger) *EquityCycle {
	return &EquityCycle{
		market:   market,
		screen:   screen,
		gate:     gate,
		planner:  planner,
		executor: executor,
		universe: universe,
		logger:   logger,
	}
}

// Run executes one iteration. A panic anywhere in the iteration is recovered
// and surfaced as an error so the bot loop survives it.
func (c *EquityCycle) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("equity cycle panicked: %v", r)
		}
	}()
	return c.run(ctx)
}

func (c *EquityCycle) run(ctx context.Context) error {
	clock, err := c.market.GetClock(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch market clock")
	}
	if !clock.IsOpen {
		c.logger.Debug("market closed, skipping cycle",
			zap.Time("next_open", clock.NextOpen))
		return nil
	}

	if c.gate.ShouldHalt(ctx) {
		return nil
	}

	refreshErr := c.screen.EnsureCache(ctx, c.universe)
	if refreshErr != nil {
		c.logger.Warn("equity screening refresh failed, using cached verdicts", zap.Error(refreshErr))
	}
	symbols := c.screen.FilterHalal(c.universe)
	if len(symbols) == 0 {
		if refreshErr == nil {
			c.logger.Warn("no compliant symbols in universe, skipping cycle")
			return nil
		}
		// cold cache and no provider data: trade the raw watch-list rather
		// than sit out the session
		c.logger.Warn("compliance cache cold, falling back to raw watch-list")
		symbols = c.universe
	}
	if len(symbols) > maxEquityUniverse {
		symbols = symbols[:maxEquityUniverse]
	}

	account, err := c.market.GetAccount(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch account")
	}
	positions, err := c.market.GetPositions(ctx)
	if err != nil {
		c.logger.Warn("positions unavailable", zap.Error(err))
	}

	snapshots := make(map[string]domain.Snapshot, len(symbols))
	bars := make(map[string][]domain.Candle, len(symbols))
	for _, symbol := range symbols {
		snap, err := c.market.GetSnapshot(ctx, symbol)
		if err != nil {
			c.logger.Warn("snapshot unavailable", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		snapshots[symbol] = snap

		if history, err := c.market.GetBars(ctx, symbol, 5); err == nil {
			bars[symbol] = history
		} else {
			c.logger.Warn("bars unavailable", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	if len(snapshots) == 0 {
		c.logger.Warn("no market data gathered, skipping cycle")
		return nil
	}

	plan := c.planner.Analyze(ctx, strategy.EquityInput{
		Account:   account,
		Positions: positions,
		Universe:  symbols,
		Snapshots: snapshots,
		Bars:      bars,
		TodayPnL:  c.gate.TodayPnL(ctx),
	})

	results := c.executor.ExecutePlan(ctx, plan)
	logResults(c.logger, "equity", results)
	return nil
}

func logResults(logger *zap.Logger, tradingDomain string, results []domain.ExecutionResult) {
	submitted, rejected, failed := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case domain.ExecutionSubmitted:
			submitted++
		case domain.ExecutionRejected:
			rejected++
		case domain.ExecutionError:
			failed++
		}
	}
	logger.Info("cycle complete",
		zap.String("domain", tradingDomain),
		zap.Int("submitted", submitted),
		zap.Int("rejected", rejected),
		zap.Int("errors", failed))
}
