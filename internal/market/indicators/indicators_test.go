package indicators

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanabot/amana/internal/domain"
)

func candlesFromCloses(closes []float64, volume float64) []domain.Candle {
	out := make([]domain.Candle, len(closes))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		price := decimal.NewFromFloat(c)
		out[i] = domain.Candle{
			OpenTime: base.Add(time.Duration(i) * time.Minute),
			Open:     price,
			High:     price,
			Low:      price,
			Close:    price,
			Volume:   decimal.NewFromFloat(volume),
			Closed:   true,
		}
	}
	return out
}

func TestComputeInsufficientData(t *testing.T) {
	set := Compute(nil)
	assert.True(t, set.Insufficient)
	assert.Equal(t, 0, set.CandleCount)

	set = Compute(candlesFromCloses([]float64{100}, 10))
	assert.True(t, set.Insufficient)
	assert.Equal(t, 1, set.CandleCount)
	assert.Equal(t, 100.0, set.CurrentPrice)
}

func TestRSIAllGainsIsHundred(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	set := Compute(candlesFromCloses(closes, 10))

	require.NotNil(t, set.RSI14)
	assert.Equal(t, 100.0, *set.RSI14)
}

func TestRSIBalancedGainsAndLosses(t *testing.T) {
	// alternating +1/-1 deltas give equal average gain and loss
	closes := make([]float64, 15)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		if i%2 == 1 {
			closes[i] = closes[i-1] + 1
		} else {
			closes[i] = closes[i-1] - 1
		}
	}
	set := Compute(candlesFromCloses(closes, 10))

	require.NotNil(t, set.RSI14)
	assert.InDelta(t, 50.0, *set.RSI14, 0.0001)
}

func TestFlatSeries(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 250
	}
	set := Compute(candlesFromCloses(closes, 5))

	require.NotNil(t, set.RSI14)
	assert.Equal(t, 100.0, *set.RSI14) // zero losses

	require.NotNil(t, set.MACD)
	assert.InDelta(t, 0, *set.MACD, 1e-9)
	assert.InDelta(t, 0, *set.MACDHistogram, 1e-9)

	require.NotNil(t, set.BBMiddle)
	assert.InDelta(t, 250, *set.BBMiddle, 1e-9)
	assert.InDelta(t, 250, *set.BBUpper, 1e-9)
	assert.Nil(t, set.BBPosition) // zero band width

	require.NotNil(t, set.EMA9)
	assert.InDelta(t, 250, *set.EMA9, 1e-9)
	require.NotNil(t, set.EMA50)
	assert.InDelta(t, 250, *set.EMA50, 1e-9)

	require.NotNil(t, set.ATR14)
	assert.InDelta(t, 0, *set.ATR14, 1e-9)

	require.NotNil(t, set.VWAP)
	assert.InDelta(t, 250, *set.VWAP, 1e-9)

	require.NotNil(t, set.VolumeRatio)
	assert.InDelta(t, 1.0, *set.VolumeRatio, 1e-9)
}

func TestComputeGates(t *testing.T) {
	set := Compute(candlesFromCloses(make([]float64, 10), 1))
	assert.Nil(t, set.RSI14)
	assert.Nil(t, set.MACD)
	assert.Nil(t, set.BBMiddle)
	assert.Nil(t, set.ATR14)
	assert.Nil(t, set.VolumeAvg20)

	closes := make([]float64, 34)
	for i := range closes {
		closes[i] = 100 + float64(i%3)
	}
	set = Compute(candlesFromCloses(closes, 1))
	assert.NotNil(t, set.RSI14)
	assert.Nil(t, set.MACD) // needs 35 candles

	closes = append(closes, 101)
	set = Compute(candlesFromCloses(closes, 1))
	assert.NotNil(t, set.MACD)
	assert.NotNil(t, set.MACDSignal)
}

func TestPriceChanges(t *testing.T) {
	closes := []float64{100, 101, 102, 103, 104, 105, 110}
	set := Compute(candlesFromCloses(closes, 1))

	require.NotNil(t, set.PriceChange1)
	assert.InDelta(t, (110.0-105.0)/105.0*100, *set.PriceChange1, 1e-9)
	require.NotNil(t, set.PriceChange5)
	assert.InDelta(t, (110.0-101.0)/101.0*100, *set.PriceChange5, 1e-9)
	assert.Nil(t, set.PriceChange15)
}

func TestVWAPZeroVolumeFallsBackToClose(t *testing.T) {
	set := Compute(candlesFromCloses([]float64{100, 120}, 0))
	require.NotNil(t, set.VWAP)
	assert.Equal(t, 120.0, *set.VWAP)
}

func TestFormat(t *testing.T) {
	set := Compute(candlesFromCloses([]float64{100}, 1))
	text := Format("BTCUSDT", set)
	assert.Contains(t, text, "insufficient data")

	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	set = Compute(candlesFromCloses(closes, 3))
	text = Format("BTCUSDT", set)
	assert.Contains(t, text, "BTCUSDT")
	assert.Contains(t, text, "RSI14")
	assert.NotContains(t, text, "RSI14: n/a")
}
