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
	"github.com/amanabot/amana/internal/domain"
	"github.com/amanabot/amana/internal/market/stream"
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

var defaultCryptoAnchor = decimal.NewFromInt(10000)

// cryptoVenue is the exchange surface the crypto cycle and executor share.
type cryptoVenue interface {
	cycle.CryptoMarket
	executor.CryptoBroker
}

// bybitRoutedVenue routes account, market data and orders through Bybit.
// Depth snapshots come from Binance's public book: the Bybit client library
// in use does not expose spot depth.
type bybitRoutedVenue struct {
	*clients.BybitClient
	books *clients.BinanceBroker
}

func (v bybitRoutedVenue) GetOrderBook(ctx context.Context, symbol string, depth int) (domain.OrderBook, error) {
	return v.books.GetOrderBook(ctx, symbol, depth)
}

// cryptoEquitySource adapts the exchange account valuation to the tracker.
type cryptoEquitySource struct {
	venue cryptoVenue
}

func (s cryptoEquitySource) CurrentEquity(ctx context.Context) (decimal.Decimal, error) {
	account, err := s.venue.GetAccount(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return account.TotalUSDT, nil
}

// CryptoBot owns the 24/7 crypto loop: stream lifecycle, fixed-interval
// cycles with elapsed-time compensation, daily rollover bookkeeping.
type CryptoBot struct {
	cfg     config.Config
	venue   cryptoVenue
	streams *stream.Manager
	tracker *portfolio.Tracker
	cycle   *cycle.CryptoCycle
	logger  *zap.Logger

	tradeStore      *trades.WALStore
	decisionStore   *decisions.WALStore
	complianceStore *compliance.WALStore
	pnlStore        *pnl.WALStore
}

// NewCryptoBot wires the crypto side from configuration.
func NewCryptoBot(cfg config.Config, logger *zap.Logger) (*CryptoBot, error) {
	binanceBroker := clients.NewBinanceBroker(cfg.Crypto.APIKey, cfg.Crypto.APISecret, cfg.Crypto.Testnet, logger)

	var venue cryptoVenue = binanceBroker
	if cfg.Crypto.Venue == "bybit" {
		venue = bybitRoutedVenue{
			BybitClient: clients.NewBybitClient(cfg.Crypto.BybitAPIKey, cfg.Crypto.BybitAPISecret, logger),
			books:       binanceBroker,
		}
	}

	root := filepath.Join(cfg.StorageDir, "crypto")
	tradeStore, err := trades.NewWALStore(filepath.Join(root, "trades"))
	if err != nil {
		return nil, errors.Wrap(err, "open crypto trade store")
	}
	decisionStore, err := decisions.NewWALStore(filepath.Join(root, "decisions"))
	if err != nil {
		tradeStore.Close()
		return nil, errors.Wrap(err, "open crypto decision store")
	}
	complianceStore, err := compliance.NewWALStore(filepath.Join(root, "compliance"))
	if err != nil {
		tradeStore.Close()
		decisionStore.Close()
		return nil, errors.Wrap(err, "open crypto compliance store")
	}
	pnlStore, err := pnl.NewWALStore(filepath.Join(root, "pnl"))
	if err != nil {
		tradeStore.Close()
		decisionStore.Close()
		complianceStore.Close()
		return nil, errors.Wrap(err, "open crypto pnl store")
	}

	metadata := clients.NewCoinGeckoClient(cfg.Screening.CoinGeckoAPIKey, logger)
	screen := screener.NewCryptoScreener(complianceStore, metadata, 0, nil, nil, cfg.Screening.CacheMaxAge, logger)

	tracker := portfolio.NewTracker(cryptoEquitySource{venue: venue}, pnlStore, tradeStore,
		"crypto", cfg.Risk.DailyLossLimit, defaultCryptoAnchor, logger)

	oracle := clients.NewOpenAICompatibleClient(cfg.LLM.Provider, cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
	risk := strategy.RiskParams{
		MaxPositionPct:    cfg.Risk.MaxPositionPct,
		DailyLossLimit:    cfg.Risk.DailyLossLimit,
		DailyReturnTarget: cfg.Risk.DailyReturnTarget,
		MaxPositions:      cfg.Risk.MaxPositions,
	}
	planner := strategy.NewCryptoStrategy(oracle, decisionStore, risk, logger)
	exec := executor.NewCryptoExecutor(venue, tradeStore, cfg.Risk.MaxPositionPct, cfg.Risk.MaxPositions, logger)

	streams := stream.NewManager(cfg.Crypto.Pairs, cfg.Crypto.KlineInterval, logger)

	return &CryptoBot{
		cfg:     cfg,
		venue:   venue,
		streams: streams,
		tracker: tracker,
		cycle: cycle.NewCryptoCycle(venue, streams, screen, tracker, planner, exec,
			cfg.Crypto.Pairs, cfg.Crypto.KlineInterval, logger),
		logger:          logger,
		tradeStore:      tradeStore,
		decisionStore:   decisionStore,
		complianceStore: complianceStore,
		pnlStore:        pnlStore,
	}, nil
}

// Run starts the kline streams and drives the cycle at a fixed interval.
// The sleep is compensated for cycle duration so long cycles do not drift
// the schedule; cycles never overlap.
func (b *CryptoBot) Run(ctx context.Context) error {
	b.streams.Start(ctx)

	if _, err := b.tracker.RecordDayStart(ctx); err != nil {
		b.logger.Warn("crypto day start failed", zap.Error(err))
	}
	day := utcDay()

	b.logger.Info("crypto bot started",
		zap.Duration("interval", b.cfg.Crypto.Interval),
		zap.Strings("pairs", b.cfg.Crypto.Pairs),
		zap.String("venue", b.cfg.Crypto.Venue))

	for {
		started := time.Now()

		if d := utcDay(); d != day {
			b.rollover(ctx)
			day = d
		}

		if err := b.cycle.Run(ctx); err != nil {
			b.logger.Error("crypto cycle failed", zap.Error(err))
		}

		wait := b.cfg.Crypto.Interval - time.Since(started)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			b.logger.Info("crypto bot stopping")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// RunOnce executes a single cycle without the scheduler or streams; the
// cycle falls back to REST klines when the stream buffer is cold.
func (b *CryptoBot) RunOnce(ctx context.Context) error {
	if _, err := b.tracker.RecordDayStart(ctx); err != nil {
		b.logger.Warn("crypto day start failed", zap.Error(err))
	}
	return b.cycle.Run(ctx)
}

func (b *CryptoBot) rollover(ctx context.Context) {
	if _, err := b.tracker.RecordDayEnd(ctx); err != nil {
		b.logger.Warn("crypto day end failed", zap.Error(err))
	}
	if _, err := b.tracker.RecordDayStart(ctx); err != nil {
		b.logger.Warn("crypto day start failed", zap.Error(err))
	}
}

// Close tears down in order: streams first, storage last.
func (b *CryptoBot) Close() {
	b.streams.Stop()

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
