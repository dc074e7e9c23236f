// Package indicators computes technical analysis values (RSI, MACD,
// Bollinger Bands, EMA, ATR, VWAP, volume profile) over candle buffers.
package indicators

import (
	"math"

	"github.com/amanabot/amana/internal/domain"
)

// minimum candle counts per indicator family
const (
	rsiPeriod    = 14
	macdFast     = 12
	macdSlow     = 26
	macdSignal   = 9
	bbPeriod     = 20
	bbStdDevs    = 2.0
	atrPeriod    = 14
	volumePeriod = 20
)

// Set holds every indicator computed for one symbol. Nil pointers mean the
// buffer was too short for that indicator; Insufficient means the buffer was
// too short for any of them.
type Set struct {
	CandleCount  int
	Insufficient bool
	CurrentPrice float64

	PriceChange1  *float64
	PriceChange5  *float64
	PriceChange15 *float64

	RSI14 *float64

	MACD          *float64
	MACDSignal    *float64
	MACDHistogram *float64

	BBUpper    *float64
	BBMiddle   *float64
	BBLower    *float64
	BBPosition *float64

	EMA9  *float64
	EMA21 *float64
	EMA50 *float64

	ATR14 *float64

	VWAP *float64

	VolumeCurrent *float64
	VolumeAvg20   *float64
	VolumeRatio   *float64
}

// Compute derives the full indicator set from the given candles, oldest
// first. Fewer than two candles yields an insufficient-data marker.
func Compute(candles []domain.Candle) Set {
	n := len(candles)
	set := Set{CandleCount: n}
	if n < 2 {
		set.Insufficient = true
		if n == 1 {
			set.CurrentPrice, _ = candles[0].Close.Float64()
		}
		return set
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		closes[i], _ = c.Close.Float64()
		highs[i], _ = c.High.Float64()
		lows[i], _ = c.Low.Float64()
		volumes[i], _ = c.Volume.Float64()
	}

	set.CurrentPrice = closes[n-1]

	set.PriceChange1 = pctChange(closes, 1)
	set.PriceChange5 = pctChange(closes, 5)
	set.PriceChange15 = pctChange(closes, 15)

	if n >= rsiPeriod+1 {
		set.RSI14 = ptr(rsi(closes, rsiPeriod))
	}

	if n >= macdSlow+macdSignal {
		line, signal, hist := macd(closes)
		set.MACD = ptr(line)
		set.MACDSignal = ptr(signal)
		set.MACDHistogram = ptr(hist)
	}

	if n >= bbPeriod {
		upper, middle, lower := bollinger(closes, bbPeriod, bbStdDevs)
		set.BBUpper = ptr(upper)
		set.BBMiddle = ptr(middle)
		set.BBLower = ptr(lower)
		if width := upper - lower; width > 0 {
			set.BBPosition = ptr((closes[n-1] - lower) / width)
		}
	}

	if n >= 9 {
		set.EMA9 = ptr(last(ema(closes, 9)))
	}
	if n >= 21 {
		set.EMA21 = ptr(last(ema(closes, 21)))
	}
	if n >= 50 {
		set.EMA50 = ptr(last(ema(closes, 50)))
	}

	if n >= atrPeriod+1 {
		set.ATR14 = ptr(atr(highs, lows, closes, atrPeriod))
	}

	set.VWAP = ptr(vwap(highs, lows, closes, volumes))

	if n >= volumePeriod {
		current := volumes[n-1]
		avg := mean(volumes[n-volumePeriod:])
		set.VolumeCurrent = ptr(current)
		set.VolumeAvg20 = ptr(avg)
		if avg > 0 {
			set.VolumeRatio = ptr(current / avg)
		}
	}

	return set
}

// rsi is Wilder's RSI: simple averages of gains and losses over the first
// period, then avg = (avg*(period-1) + value) / period for the rest.
// All-zero losses yield 100.
func rsi(closes []float64, period int) float64 {
	gains, losses := 0.0, 0.0
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ema returns the full EMA series seeded with the first raw value,
// alpha = 2/(period+1).
func ema(data []float64, period int) []float64 {
	out := make([]float64, len(data))
	if len(data) == 0 {
		return out
	}
	alpha := 2.0 / float64(period+1)
	out[0] = data[0]
	for i := 1; i < len(data); i++ {
		out[i] = alpha*data[i] + (1-alpha)*out[i-1]
	}
	return out
}

// macd returns the last MACD line, signal and histogram values for the
// standard 12/26/9 configuration.
func macd(closes []float64) (line, signal, histogram float64) {
	fast := ema(closes, macdFast)
	slow := ema(closes, macdSlow)

	diff := make([]float64, len(closes))
	for i := range closes {
		diff[i] = fast[i] - slow[i]
	}
	signalSeries := ema(diff, macdSignal)

	line = last(diff)
	signal = last(signalSeries)
	histogram = line - signal
	return line, signal, histogram
}

// bollinger returns the last upper/middle/lower band values using a simple
// moving average and population standard deviation over the window.
func bollinger(closes []float64, period int, stdDevs float64) (upper, middle, lower float64) {
	window := closes[len(closes)-period:]
	middle = mean(window)

	variance := 0.0
	for _, v := range window {
		d := v - middle
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))

	return middle + stdDevs*sd, middle, middle - stdDevs*sd
}

// atr is Wilder's Average True Range over the given period.
func atr(highs, lows, closes []float64, period int) float64 {
	trs := make([]float64, 0, len(highs)-1)
	for i := 1; i < len(highs); i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		trs = append(trs, math.Max(hl, math.Max(hc, lc)))
	}

	value := mean(trs[:period])
	for i := period; i < len(trs); i++ {
		value = (value*float64(period-1) + trs[i]) / float64(period)
	}
	return value
}

// vwap is the volume weighted average of typical prices over the whole
// buffer. When total volume is zero it falls back to the last close.
func vwap(highs, lows, closes, volumes []float64) float64 {
	totalPV, totalVol := 0.0, 0.0
	for i := range closes {
		typical := (highs[i] + lows[i] + closes[i]) / 3
		totalPV += typical * volumes[i]
		totalVol += volumes[i]
	}
	if totalVol == 0 {
		return closes[len(closes)-1]
	}
	return totalPV / totalVol
}

func pctChange(closes []float64, lookback int) *float64 {
	n := len(closes)
	if n <= lookback {
		return nil
	}
	prev := closes[n-1-lookback]
	if prev == 0 {
		return nil
	}
	return ptr((closes[n-1] - prev) / prev * 100)
}

func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range data {
		total += v
	}
	return total / float64(len(data))
}

func last(data []float64) float64 {
	return data[len(data)-1]
}

func ptr(v float64) *float64 {
	return &v
}
