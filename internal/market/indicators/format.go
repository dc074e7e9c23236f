package indicators

import (
	"fmt"
	"strings"
)

// Format renders the indicator set as a compact text block for the decision
// model prompt. Missing values are reported as n/a rather than omitted so the
// model sees a stable shape.
func Format(symbol string, s Set) string {
	if s.Insufficient {
		return fmt.Sprintf("%s: insufficient data (%d candles)", symbol, s.CandleCount)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (last %d candles):\n", symbol, s.CandleCount)
	fmt.Fprintf(&b, "  price: %.6g | change 1/5/15: %s / %s / %s\n",
		s.CurrentPrice, pct(s.PriceChange1), pct(s.PriceChange5), pct(s.PriceChange15))
	fmt.Fprintf(&b, "  RSI14: %s | MACD: %s signal: %s hist: %s\n",
		num(s.RSI14), num(s.MACD), num(s.MACDSignal), num(s.MACDHistogram))
	fmt.Fprintf(&b, "  Bollinger(20,2): lower %s mid %s upper %s position %s\n",
		num(s.BBLower), num(s.BBMiddle), num(s.BBUpper), num(s.BBPosition))
	fmt.Fprintf(&b, "  EMA 9/21/50: %s / %s / %s | ATR14: %s | VWAP: %s\n",
		num(s.EMA9), num(s.EMA21), num(s.EMA50), num(s.ATR14), num(s.VWAP))
	fmt.Fprintf(&b, "  volume: %s avg20: %s ratio: %s",
		num(s.VolumeCurrent), num(s.VolumeAvg20), num(s.VolumeRatio))

	return b.String()
}

func num(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.6g", *v)
}

func pct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f%%", *v)
}
