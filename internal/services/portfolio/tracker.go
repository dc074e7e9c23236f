// Package portfolio anchors daily equity and enforces the daily loss limit.
package portfolio

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/amanabot/amana/internal/domain"
)

// EquitySource reports the venue's current account equity.
type EquitySource interface {
	CurrentEquity(ctx context.Context) (decimal.Decimal, error)
}

// SnapshotStore persists the daily equity anchor and close-out rows.
type SnapshotStore interface {
	StartDay(tradingDomain, date string, starting decimal.Decimal) (domain.PnLSnapshot, error)
	EndDay(tradingDomain, date string, ending decimal.Decimal, trades int) (domain.PnLSnapshot, error)
	Get(tradingDomain, date string) (domain.PnLSnapshot, bool)
}

// TradeCounter reports how many trades were recorded on a UTC date.
type TradeCounter interface {
	CountForDay(day string) (int, error)
}

// Tracker anchors the day's starting equity once per UTC date and halts
// trading when the drawdown from that anchor reaches the configured limit.
type Tracker struct {
	source        EquitySource
	snapshots     SnapshotStore
	trades        TradeCounter
	tradingDomain string
	lossLimit     decimal.Decimal
	defaultEquity decimal.Decimal
	logger        *zap.Logger

	mu        sync.Mutex
	activeDay string
}

func NewTracker(source EquitySource, snapshots SnapshotStore, trades TradeCounter,
	tradingDomain string, lossLimit float64, defaultEquity decimal.Decimal, logger *zap.Logger) *Tracker {
	return &Tracker{
		source:        source,
		snapshots:     snapshots,
		trades:        trades,
		tradingDomain: tradingDomain,
		lossLimit:     decimal.NewFromFloat(lossLimit),
		defaultEquity: defaultEquity,
		logger:        logger,
	}
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}

// RecordDayStart anchors today's starting equity. A restart within the same
// UTC date keeps the original anchor.
func (t *Tracker) RecordDayStart(ctx context.Context) (domain.PnLSnapshot, error) {
	equity, err := t.source.CurrentEquity(ctx)
	if err != nil || !equity.IsPositive() {
		if err != nil {
			t.logger.Warn("equity unavailable at day start, using default",
				zap.String("domain", t.tradingDomain), zap.Error(err))
		}
		equity = t.defaultEquity
	}

	date := today()
	snap, err := t.snapshots.StartDay(t.tradingDomain, date, equity)
	if err != nil {
		return domain.PnLSnapshot{}, errors.Wrap(err, "record day start")
	}

	t.mu.Lock()
	t.activeDay = date
	t.mu.Unlock()

	t.logger.Info("trading day anchored",
		zap.String("domain", t.tradingDomain),
		zap.String("date", snap.Date),
		zap.String("starting_equity", snap.StartingEquity.StringFixed(2)))
	return snap, nil
}

// RecordDayEnd closes out the anchored day with the current equity and the
// number of trades recorded during it. The anchored date is used rather
// than the wall clock: a rollover observed after midnight must still close
// yesterday's row.
func (t *Tracker) RecordDayEnd(ctx context.Context) (domain.PnLSnapshot, error) {
	equity, err := t.source.CurrentEquity(ctx)
	if err != nil {
		return domain.PnLSnapshot{}, errors.Wrap(err, "fetch equity at day end")
	}

	t.mu.Lock()
	date := t.activeDay
	t.mu.Unlock()
	if date == "" {
		date = today()
	}
	trades := 0
	if t.trades != nil {
		if n, err := t.trades.CountForDay(date); err == nil {
			trades = n
		} else {
			t.logger.Warn("trade count unavailable", zap.Error(err))
		}
	}

	snap, err := t.snapshots.EndDay(t.tradingDomain, date, equity, trades)
	if err != nil {
		return domain.PnLSnapshot{}, errors.Wrap(err, "record day end")
	}

	t.logger.Info("trading day closed",
		zap.String("domain", t.tradingDomain),
		zap.String("date", snap.Date),
		zap.String("pnl", snap.PnL.StringFixed(2)),
		zap.Float64("return_pct", snap.ReturnPct),
		zap.Int("trades", snap.TradesCount))
	return snap, nil
}

// TodayPnL returns the unrealized profit for today relative to the anchor.
// Zero when the anchor is missing or equity cannot be fetched.
func (t *Tracker) TodayPnL(ctx context.Context) decimal.Decimal {
	snap, ok := t.snapshots.Get(t.tradingDomain, today())
	if !ok || !snap.StartingEquity.IsPositive() {
		return decimal.Zero
	}
	equity, err := t.source.CurrentEquity(ctx)
	if err != nil {
		return decimal.Zero
	}
	return equity.Sub(snap.StartingEquity)
}

// LossRatio is the drawdown from today's anchor, zero when flat or up.
func (t *Tracker) LossRatio(ctx context.Context) (decimal.Decimal, error) {
	snap, ok := t.snapshots.Get(t.tradingDomain, today())
	if !ok {
		if _, err := t.RecordDayStart(ctx); err != nil {
			return decimal.Zero, err
		}
		return decimal.Zero, nil
	}
	if !snap.StartingEquity.IsPositive() {
		return decimal.Zero, nil
	}

	equity, err := t.source.CurrentEquity(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "fetch equity for loss check")
	}
	if equity.GreaterThanOrEqual(snap.StartingEquity) {
		return decimal.Zero, nil
	}
	return snap.StartingEquity.Sub(equity).Div(snap.StartingEquity), nil
}

// ShouldHalt reports whether today's drawdown has reached the loss limit.
// Unavailable equity never halts: the gate fails open and logs.
func (t *Tracker) ShouldHalt(ctx context.Context) bool {
	ratio, err := t.LossRatio(ctx)
	if err != nil {
		t.logger.Warn("loss check skipped", zap.String("domain", t.tradingDomain), zap.Error(err))
		return false
	}

	if ratio.GreaterThanOrEqual(t.lossLimit) {
		t.logger.Warn("daily loss limit reached, trading halted",
			zap.String("domain", t.tradingDomain),
			zap.String("loss_ratio", ratio.StringFixed(4)),
			zap.String("limit", t.lossLimit.StringFixed(4)))
		return true
	}
	return false
}
