package stream

import (
	"context"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/amanabot/amana/internal/domain"
)

const (
	// DefaultCapacity is the per-symbol rolling window size.
	DefaultCapacity = 200
	// MinReady is the buffer size below which callers should fall back
	// to REST klines.
	MinReady = 20
)

// Manager subscribes to kline websocket streams for a set of symbols and
// keeps a rolling buffer per symbol. Subscriptions reconnect on failure with
// exponential backoff that resets after a successful connect.
type Manager struct {
	logger   *zap.Logger
	interval string
	buffers  map[string]*buffer

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewManager creates buffers for the given symbols without connecting.
func NewManager(symbols []string, interval string, logger *zap.Logger) *Manager {
	buffers := make(map[string]*buffer, len(symbols))
	for _, s := range symbols {
		buffers[s] = newBuffer(DefaultCapacity)
	}
	return &Manager{
		logger:   logger,
		interval: interval,
		buffers:  buffers,
	}
}

// Start launches one subscription goroutine per symbol. It returns
// immediately; buffers fill as events arrive.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	for symbol, buf := range m.buffers {
		m.wg.Add(1)
		go func(symbol string, buf *buffer) {
			defer m.wg.Done()
			m.subscribe(ctx, symbol, buf)
		}(symbol, buf)
	}

	m.logger.Info("kline streams starting",
		zap.Int("symbols", len(m.buffers)),
		zap.String("interval", m.interval))
}

// Stop terminates all subscriptions and waits for them to exit.
// Safe to call more than once.
func (m *Manager) Stop() {
	m.once.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		m.wg.Wait()
		m.logger.Info("kline streams stopped")
	})
}

// Klines returns up to limit most recent candles for the symbol, oldest
// first. Unknown symbols yield nil.
func (m *Manager) Klines(symbol string, limit int) []domain.Candle {
	buf, ok := m.buffers[symbol]
	if !ok {
		return nil
	}
	return buf.snapshot(limit)
}

// Ready reports whether the symbol's buffer holds enough candles for
// indicator computation.
func (m *Manager) Ready(symbol string) bool {
	buf, ok := m.buffers[symbol]
	return ok && buf.size() >= MinReady
}

// BufferSizes returns the current buffer length per symbol.
func (m *Manager) BufferSizes() map[string]int {
	sizes := make(map[string]int, len(m.buffers))
	for symbol, buf := range m.buffers {
		sizes[symbol] = buf.size()
	}
	return sizes
}

func (m *Manager) subscribe(ctx context.Context, symbol string, buf *buffer) {
	bo := &backoff.Backoff{Min: time.Second, Max: time.Minute, Factor: 2, Jitter: true}

	for {
		if ctx.Err() != nil {
			return
		}

		streamErr := make(chan error, 1)
		handler := func(event *binance.WsKlineEvent) {
			candle, err := candleFromEvent(event)
			if err != nil {
				m.logger.Warn("malformed kline event",
					zap.String("symbol", symbol), zap.Error(err))
				return
			}
			buf.apply(candle)
		}
		errHandler := func(err error) {
			select {
			case streamErr <- err:
			default:
			}
		}

		doneC, stopC, err := binance.WsKlineServe(symbol, m.interval, handler, errHandler)
		if err != nil {
			m.logger.Warn("kline stream connect failed",
				zap.String("symbol", symbol), zap.Error(err))
			if !sleep(ctx, bo.Duration()) {
				return
			}
			continue
		}

		bo.Reset()
		m.logger.Debug("kline stream connected", zap.String("symbol", symbol))

		select {
		case <-ctx.Done():
			close(stopC)
			<-doneC
			return
		case err := <-streamErr:
			m.logger.Warn("kline stream error",
				zap.String("symbol", symbol), zap.Error(err))
			close(stopC)
			<-doneC
		case <-doneC:
			m.logger.Warn("kline stream closed", zap.String("symbol", symbol))
		}

		if !sleep(ctx, bo.Duration()) {
			return
		}
	}
}

func candleFromEvent(event *binance.WsKlineEvent) (domain.Candle, error) {
	k := event.Kline

	open, err := decimal.NewFromString(k.Open)
	if err != nil {
		return domain.Candle{}, err
	}
	high, err := decimal.NewFromString(k.High)
	if err != nil {
		return domain.Candle{}, err
	}
	low, err := decimal.NewFromString(k.Low)
	if err != nil {
		return domain.Candle{}, err
	}
	cls, err := decimal.NewFromString(k.Close)
	if err != nil {
		return domain.Candle{}, err
	}
	volume, err := decimal.NewFromString(k.Volume)
	if err != nil {
		return domain.Candle{}, err
	}

	return domain.Candle{
		OpenTime:  time.UnixMilli(k.StartTime),
		CloseTime: time.UnixMilli(k.EndTime),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    volume,
		Closed:    k.IsFinal,
	}, nil
}

// sleep waits for d or until ctx is cancelled, returning false on cancel.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
