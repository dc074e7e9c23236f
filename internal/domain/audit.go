package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is the audit entry written for every execution attempt,
// including rejections and failures.
type TradeRecord struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Domain    string          `json:"domain"`
	Symbol    string          `json:"symbol"`
	Side      Action          `json:"side"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	OrderID   string          `json:"order_id,omitempty"`
	Status    ExecutionStatus `json:"status"`
	Reason    string          `json:"reason,omitempty"`
	Reasoning string          `json:"reasoning,omitempty"`
}

// Day returns the UTC date bucket of the trade.
func (t TradeRecord) Day() string {
	return t.Timestamp.UTC().Format("2006-01-02")
}

// DecisionRecord is the audit entry written for every decision model
// invocation, successful or not.
type DecisionRecord struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Domain      string    `json:"domain"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Symbols     []string  `json:"symbols"`
	RawResponse string    `json:"raw_response,omitempty"`
	Error       string    `json:"error,omitempty"`
	Buys        int       `json:"buys"`
	Sells       int       `json:"sells"`
	Holds       int       `json:"holds"`
	ElapsedMs   int64     `json:"elapsed_ms"`
}

// PnLSnapshot stores one trading day's profit and loss, keyed by UTC date.
type PnLSnapshot struct {
	Date           string          `json:"date"`
	Domain         string          `json:"domain"`
	StartingEquity decimal.Decimal `json:"starting_equity"`
	EndingEquity   decimal.Decimal `json:"ending_equity"`
	PnL            decimal.Decimal `json:"pnl"`
	ReturnPct      float64         `json:"return_pct"`
	TradesCount    int             `json:"trades_count"`
}
