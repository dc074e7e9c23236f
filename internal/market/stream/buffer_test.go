package stream

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amanabot/amana/internal/domain"
)

func testCandle(openSec int64, close decimal.Decimal, closed bool) domain.Candle {
	return domain.Candle{
		OpenTime:  time.Unix(openSec, 0).UTC(),
		CloseTime: time.Unix(openSec+59, 0).UTC(),
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    decimal.NewFromInt(1),
		Closed:    closed,
	}
}

func TestBufferOpenCandleReplacement(t *testing.T) {
	buf := newBuffer(DefaultCapacity)

	apply := func(openSec int64, close float64, closed bool) {
		price := decimal.NewFromFloat(close)
		buf.apply(testCandle(openSec, price, closed))
	}

	apply(100, 50000, true)  // closed candle
	apply(160, 50100, false) // next candle, still forming
	apply(160, 50150, false) // update to forming candle
	apply(160, 50200, true)  // the same candle closes

	assert.Equal(t, 2, buf.size())
	assert.Equal(t, 2, buf.closedCount())

	apply(220, 50300, false) // new forming candle

	assert.Equal(t, 3, buf.size())
	assert.Equal(t, 2, buf.closedCount())

	snap := buf.snapshot(0)
	require.Len(t, snap, 3)
	assert.True(t, snap[1].Closed)
	assert.Equal(t, "50200", snap[1].Close.String())
	assert.False(t, snap[2].Closed)
}

func TestBufferEvictsOldest(t *testing.T) {
	buf := newBuffer(3)
	for i := int64(0); i < 5; i++ {
		buf.apply(testCandle(i*60, decimal.NewFromInt(i), true))
	}

	assert.Equal(t, 3, buf.size())
	snap := buf.snapshot(0)
	assert.Equal(t, int64(120), snap[0].OpenTime.Unix())
	assert.Equal(t, int64(240), snap[2].OpenTime.Unix())
}

func TestBufferSnapshotLimit(t *testing.T) {
	buf := newBuffer(10)
	for i := int64(0); i < 6; i++ {
		buf.apply(testCandle(i*60, decimal.NewFromInt(i), true))
	}

	snap := buf.snapshot(2)
	require.Len(t, snap, 2)
	assert.Equal(t, "4", snap[0].Close.String())
	assert.Equal(t, "5", snap[1].Close.String())

	assert.Len(t, buf.snapshot(100), 6)
}

func TestManagerAccessors(t *testing.T) {
	m := NewManager([]string{"BTCUSDT", "ETHUSDT"}, "1m", zap.NewNop())

	assert.Nil(t, m.Klines("SOLUSDT", 10))
	assert.False(t, m.Ready("BTCUSDT"))

	buf := m.buffers["BTCUSDT"]
	for i := int64(0); i < MinReady; i++ {
		buf.apply(testCandle(i*60, decimal.NewFromInt(100+i), true))
	}

	assert.True(t, m.Ready("BTCUSDT"))
	assert.False(t, m.Ready("ETHUSDT"))
	assert.Len(t, m.Klines("BTCUSDT", 5), 5)

	sizes := m.BufferSizes()
	assert.Equal(t, MinReady, sizes["BTCUSDT"])
	assert.Equal(t, 0, sizes["ETHUSDT"])
}
