package internal

import (
	"context"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/amanabot/amana/config"
	"github.com/amanabot/amana/internal/clients"
	"github.com/amanabot/amana/internal/screener"
	"github.com/amanabot/amana/internal/services/cycle"
	"github.com/amanabot/amana/internal/services/executor"
	"github.com/amanabot/amana/internal/services/portfolio"
	"github.com/amanabot/amana/internal/services/strategy"
	"github.com/amanabot/amana/internal/storage/compliance"
	"github.com/amanabot/amana/internal/storage/decisions"
	"github.com/amanabot/amana/internal/storage/pnl"
	"github.com/amanabot/amana/internal/storage/trades"
)

const (
	defaultAlpacaTradingHost = "https://paper-api.alpaca.markets"
	defaultAlpacaDataHost    = "https://data.alpaca.markets"
)

var defaultEquityAnchor = decimal.NewFromInt(100000)

// alpacaEquitySource adapts the brokerage account to the portfolio tracker.
type alpacaEquitySource struct {
	broker *clients.AlpacaClient
}

func (s alpacaEquitySource) CurrentEquity(ctx context.Context) (decimal.Decimal, error) {
	account, err := s.broker.GetAccount(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return account.EffectiveEquity(), nil
}

// EquityBot owns the equity trading loop: interval cycles during market
// hours, end-of-day close-out, daily P&L bookkeeping.
type EquityBot struct {
	cfg     config.Config
	broker  *clients.AlpacaClient
	tracker *portfolio.Tracker
	cycle   *cycle.EquityCycle
	logger  *zap.Logger

	tradeStore      *trades.WALStore
	decisionStore   *decisions.WALStore
	complianceStore *compliance.WALStore
	pnlStore        *pnl.WALStore
}

// NewEquityBot wires the equity side from configuration.
func NewEquityBot(cfg config.Config, logger *zap.Logger) (*EquityBot, error) {
	tradingHost := cfg.Equity.TradingHost
	if tradingHost == "" {
		tradingHost = defaultAlpacaTradingHost
	}
	dataHost := cfg.Equity.DataHost
	if dataHost == "" {
		dataHost = defaultAlpacaDataHost
	}
	broker := clients.NewAlpacaClient(tradingHost, dataHost, cfg.Equity.APIKey, cfg.Equity.APISecret, logger)

	root := filepath.Join(cfg.StorageDir, "equity")
	tradeStore, err := trades.NewWALStore(filepath.Join(root, "trades"))
	if err != nil {
		return nil, errors.Wrap(err, "open equity trade store")
	}
	decisionStore, err := decisions.NewWALStore(filepath.Join(root, "decisions"))
	if err != nil {
		tradeStore.Close()
		return nil, errors.Wrap(err, "open equity decision store")
	}
	complianceStore, err := compliance.NewWALStore(filepath.Join(root, "compliance"))
	if err != nil {
		tradeStore.Close()
		decisionStore.Close()
		return nil, errors.Wrap(err, "open equity compliance store")
	}
	pnlStore, err := pnl.NewWALStore(filepath.Join(root, "pnl"))
	if err != nil {
		tradeStore.Close()
		decisionStore.Close()
		complianceStore.Close()
		return nil, errors.Wrap(err, "open equity pnl store")
	}

	var provider screener.EquityProvider
	if cfg.Screening.ZoyaAPIKey != "" {
		provider = clients.NewZoyaClient(cfg.Screening.ZoyaAPIKey, cfg.Screening.ZoyaSandbox, logger)
	}
	screen := screener.NewEquityScreener(complianceStore, provider, cfg.Screening.CacheMaxAge, logger)

	tracker := portfolio.NewTracker(alpacaEquitySource{broker: broker}, pnlStore, tradeStore,
		"equity", cfg.Risk.DailyLossLimit, defaultEquityAnchor, logger)

	oracle := clients.NewOpenAICompatibleClient(cfg.LLM.Provider, cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
	risk := strategy.RiskParams{
		MaxPositionPct:    cfg.Risk.MaxPositionPct,
		DailyLossLimit:    cfg.Risk.DailyLossLimit,
		DailyReturnTarget: cfg.Risk.DailyReturnTarget,
		MaxPositions:      cfg.Risk.MaxPositions,
	}
	planner := strategy.NewEquityStrategy(oracle, decisionStore, risk, logger)
	exec := executor.NewEquityExecutor(broker, tradeStore, cfg.Risk.MaxPositionPct, cfg.Risk.MaxPositions, logger)

	return &EquityBot{
		cfg:             cfg,
		broker:          broker,
		tracker:         tracker,
		cycle:           cycle.NewEquityCycle(broker, screen, tracker, planner, exec, cfg.Equity.Watchlist, logger),
		logger:          logger,
		tradeStore:      tradeStore,
		decisionStore:   decisionStore,
		complianceStore: complianceStore,
		pnlStore:        pnlStore,
	}, nil
}

// Run drives the cycle on the configured interval until the context ends.
// A tick that lands on a new UTC date runs the day rollover first.
func (b *EquityBot) Run(ctx context.Context) error {
	if _, err := b.tracker.RecordDayStart(ctx); err != nil {
		b.logger.Warn("equity day start failed", zap.Error(err))
	}
	day := utcDay()

	ticker := time.NewTicker(b.cfg.Equity.Interval)
	defer ticker.Stop()

	b.logger.Info("equity bot started",
		zap.Duration("interval", b.cfg.Equity.Interval),
		zap.Strings("watchlist", b.cfg.Equity.Watchlist))

	b.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("equity bot stopping")
			return ctx.Err()
		case <-ticker.C:
			if d := utcDay(); d != day {
				b.rollover(ctx)
				day = d
			}
			b.runCycle(ctx)
		}
	}
}

// RunOnce executes a single cycle without the scheduler.
func (b *EquityBot) RunOnce(ctx context.Context) error {
	if _, err := b.tracker.RecordDayStart(ctx); err != nil {
		b.logger.Warn("equity day start failed", zap.Error(err))
	}
	return b.cycle.Run(ctx)
}

func (b *EquityBot) runCycle(ctx context.Context) {
	if err := b.cycle.Run(ctx); err != nil {
		b.logger.Error("equity cycle failed", zap.Error(err))
	}
}

// rollover flattens the book before the end-of-day snapshot, then anchors
// the new day.
func (b *EquityBot) rollover(ctx context.Context) {
	if err := b.broker.CloseAllPositions(ctx); err != nil {
		b.logger.Warn("end-of-day close-all failed", zap.Error(err))
	}
	if _, err := b.tracker.RecordDayEnd(ctx); err != nil {
		b.logger.Warn("equity day end failed", zap.Error(err))
	}
	if _, err := b.tracker.RecordDayStart(ctx); err != nil {
		b.logger.Warn("equity day start failed", zap.Error(err))
	}
}

// Close releases storage. The broker is plain HTTP and needs no teardown.
func (b *EquityBot) Close() {
	for name, closer := range map[string]interface{ Close() error }{
		"trades":     b.tradeStore,
		"decisions":  b.decisionStore,
		"compliance": b.complianceStore,
		"pnl":        b.pnlStore,
	} {
		if err := closer.Close(); err != nil {
			b.logger.Warn("store close failed", zap.String("store", name), zap.Error(err))
		}
	}
}

func utcDay() string {
	return time.Now().UTC().Format("2006-01-02")
}
