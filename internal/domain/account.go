package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is an equity brokerage account snapshot.
type Account struct {
	Equity         decimal.Decimal
	Cash           decimal.Decimal
	BuyingPower    decimal.Decimal
	PortfolioValue decimal.Decimal
}

// EffectiveEquity prefers the reported equity and falls back to portfolio value.
func (a Account) EffectiveEquity() decimal.Decimal {
	if a.Equity.IsPositive() {
		return a.Equity
	}
	return a.PortfolioValue
}

// CryptoAccount is a spot exchange account valued in the quote stablecoin.
type CryptoAccount struct {
	TotalUSDT     decimal.Decimal
	AvailableUSDT decimal.Decimal
	InOrdersUSDT  decimal.Decimal
}

// Balance is a single asset balance on a spot exchange.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// Position is an open brokerage position.
type Position struct {
	Symbol          string
	Quantity        decimal.Decimal
	AvgEntryPrice   decimal.Decimal
	CurrentPrice    decimal.Decimal
	MarketValue     decimal.Decimal
	UnrealizedPL    decimal.Decimal
	UnrealizedPLPct float64
}

// MarketClock reports equity market session state.
type MarketClock struct {
	IsOpen    bool
	NextOpen  time.Time
	NextClose time.Time
}

// Snapshot is the latest quote/trade state for one symbol.
type Snapshot struct {
	Symbol      string
	LatestPrice decimal.Decimal
	BidPrice    decimal.Decimal
	AskPrice    decimal.Decimal
	DailyVolume decimal.Decimal
	PrevClose   decimal.Decimal
}

// BookLevel is one side entry of an order book.
type BookLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderBook is a depth snapshot for one symbol.
type OrderBook struct {
	Symbol string
	Bids   []BookLevel
	Asks   []BookLevel
}

// Imbalance returns (bidVolume-askVolume)/(bidVolume+askVolume) over the
// given depth, zero when the book is empty.
func (b OrderBook) Imbalance(depth int) float64 {
	sum := func(levels []BookLevel) decimal.Decimal {
		total := decimal.Zero
		for i, l := range levels {
			if i >= depth {
				break
			}
			total = total.Add(l.Quantity)
		}
		return total
	}

	bids, asks := sum(b.Bids), sum(b.Asks)
	total := bids.Add(asks)
	if total.IsZero() {
		return 0
	}
	ratio, _ := bids.Sub(asks).Div(total).Float64()
	return ratio
}

// OrderResult is the broker acknowledgement of a submitted order.
type OrderResult struct {
	OrderID      string
	Symbol       string
	Side         Action
	Status       string
	FilledQty    decimal.Decimal
	AvgFillPrice decimal.Decimal
}
