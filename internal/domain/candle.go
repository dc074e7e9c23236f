package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is a single OHLCV bar.
type Candle struct {
	// OpenTime is the bar open timestamp.
	OpenTime time.Time
	// CloseTime is the bar close timestamp.
	CloseTime time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	// Closed reports whether the bar is final or still forming.
	Closed bool
}

// TypicalPrice returns (high+low+close)/3.
func (c Candle) TypicalPrice() decimal.Decimal {
	return c.High.Add(c.Low).Add(c.Close).Div(decimal.NewFromInt(3))
}
