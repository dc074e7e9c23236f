// Package strategy turns gathered market data into a validated trading plan
// by prompting the decision model and auditing every invocation.
package strategy

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/amanabot/amana/internal/domain"
	"github.com/amanabot/amana/internal/market/indicators"
)

// RiskParams are the guardrails rendered into every prompt.
type RiskParams struct {
	MaxPositionPct    float64
	DailyLossLimit    float64
	DailyReturnTarget float64
	MaxPositions      int
}

const equitySystemPromptTemplate = `You are an expert intraday stock trader AI. Your job is to analyze market data and make precise buy/sell decisions to achieve at least %.0f%% daily portfolio return.

RULES:
1. You ONLY trade stocks from the provided halal-compliant list.
2. You make ONLY intraday trades - all positions must be closeable by market close.
3. You optimize for high-probability short-term momentum trades.
4. Each trade must have a clear reasoning based on the data provided.
5. You manage risk: no single position should exceed %.0f%% of the portfolio.
6. Current daily loss limit is %.0f%% - if losses approach this, be conservative.
7. Target daily return: %.0f%%.
8. Maximum simultaneous open positions: %d.

STRATEGY GUIDELINES:
- Look for stocks with strong pre-market/intraday momentum.
- Consider volume spikes as entry signals.
- Use support/resistance from recent price bars.
- Prefer liquid, large-cap stocks for easier fills.
- Set mental stop-losses for every trade.
- If the market outlook is uncertain, it is OK to HOLD and not trade.

You MUST respond with valid JSON matching this exact schema:
{
  "decisions": [
    {
      "action": "buy" | "sell" | "hold",
      "symbol": "TICKER",
      "quantity": <number>,
      "confidence": <float 0-1>,
      "reasoning": "<brief explanation>",
      "target_price": <float or null>,
      "stop_loss": <float or null>
    }
  ],
  "market_outlook": "<1-2 sentence market assessment>",
  "risk_notes": "<any risk concerns>"
}

If there are no good trades, return an empty decisions list with your market outlook.`

const cryptoSystemPromptTemplate = `You are an expert crypto scalping AI. Your job is to analyze technical indicators and real-time market data for cryptocurrency pairs, making precise buy/sell decisions on a 1-minute timeframe to achieve at least %.0f%% daily return.

RULES:
1. You ONLY trade pairs from the provided halal-compliant list.
2. You make short-term momentum/scalping trades - hold times range from 1 to 60 minutes.
3. Each trade must have a clear reasoning based on the technical indicators provided.
4. Risk management: no single position should exceed %.0f%% of the portfolio.
5. Current daily loss limit is %.0f%% - if losses approach this, be conservative.
6. Target daily return: %.0f%%.
7. Maximum simultaneous open positions: %d.
8. Trading fees are ~0.1%% per trade (0.2%% round trip) - factor this into your decisions.

STRATEGY GUIDELINES:
- Use RSI for overbought/oversold signals (buy below 30, sell above 70).
- Use MACD crossovers for momentum confirmation.
- Bollinger Band squeezes signal potential breakouts.
- EMA crossovers (9/21) indicate short-term trend changes.
- High volume ratios (>1.5x average) confirm moves.
- VWAP acts as intraday support/resistance.
- Order book imbalance indicates short-term pressure direction.
- Set tight stop-losses (0.3-0.5%% below entry for longs).
- Take profits at 0.5-1.0%% above entry (accounting for 0.2%% fees).
- If indicators are mixed or unclear, HOLD and wait for a clearer setup.
- Crypto markets are 24/7 - there is no rush, wait for high-probability setups.

You MUST respond with valid JSON matching this exact schema:
{
  "decisions": [
    {
      "action": "buy" | "sell" | "hold",
      "symbol": "PAIR",
      "quantity": <float>,
      "confidence": <float 0-1>,
      "reasoning": "<brief explanation referencing specific indicators>",
      "target_price": <float or null>,
      "stop_loss": <float or null>
    }
  ],
  "market_outlook": "<1-2 sentence crypto market assessment>",
  "risk_notes": "<any risk concerns>"
}

If there are no good setups, return an empty decisions list with your market outlook.`

func equitySystemPrompt(risk RiskParams) string {
	return fmt.Sprintf(equitySystemPromptTemplate,
		risk.DailyReturnTarget*100,
		risk.MaxPositionPct*100,
		risk.DailyLossLimit*100,
		risk.DailyReturnTarget*100,
		risk.MaxPositions)
}

func cryptoSystemPrompt(risk RiskParams) string {
	return fmt.Sprintf(cryptoSystemPromptTemplate,
		risk.DailyReturnTarget*100,
		risk.MaxPositionPct*100,
		risk.DailyLossLimit*100,
		risk.DailyReturnTarget*100,
		risk.MaxPositions)
}

func formatPositions(positions []domain.Position) string {
	if len(positions) == 0 {
		return "No open positions."
	}
	var b strings.Builder
	for _, p := range positions {
		fmt.Fprintf(&b, "  %s: %s shares @ $%s | Current: $%s | P&L: $%s (%+.2f%%)\n",
			p.Symbol, p.Quantity.String(), p.AvgEntryPrice.StringFixed(2),
			p.CurrentPrice.StringFixed(2), p.UnrealizedPL.StringFixed(2), p.UnrealizedPLPct)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatBalances(balances []domain.Balance) string {
	lines := make([]string, 0, len(balances))
	for _, bal := range balances {
		if domain.IsQuoteAsset(bal.Asset) {
			continue
		}
		if !bal.Free.IsPositive() && !bal.Locked.IsPositive() {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s: free=%s locked=%s",
			bal.Asset, bal.Free.String(), bal.Locked.String()))
	}
	if len(lines) == 0 {
		return "No open positions."
	}
	return strings.Join(lines, "\n")
}

func formatSnapshots(symbols []string, snapshots map[string]domain.Snapshot) string {
	if len(snapshots) == 0 {
		return "No snapshot data available."
	}
	var b strings.Builder
	for _, symbol := range symbols {
		snap, ok := snapshots[symbol]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %s: Price=$%s Bid=$%s Ask=$%s Vol=%s\n",
			symbol, snap.LatestPrice.String(), snap.BidPrice.String(),
			snap.AskPrice.String(), snap.DailyVolume.String())
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatBars(symbols []string, bars map[string][]domain.Candle) string {
	if len(bars) == 0 {
		return "No bar data available."
	}
	var b strings.Builder
	for _, symbol := range symbols {
		candles, ok := bars[symbol]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %s:\n", symbol)
		start := 0
		if len(candles) > 5 {
			start = len(candles) - 5
		}
		for _, c := range candles[start:] {
			fmt.Fprintf(&b, "    %s: O=%s H=%s L=%s C=%s V=%s\n",
				c.OpenTime.Format("2006-01-02"), c.Open.StringFixed(2), c.High.StringFixed(2),
				c.Low.StringFixed(2), c.Close.StringFixed(2), c.Volume.String())
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatIndicators(symbols []string, klines map[string][]domain.Candle) string {
	if len(klines) == 0 {
		return "No indicator data available."
	}
	blocks := make([]string, 0, len(klines))
	for _, symbol := range symbols {
		candles, ok := klines[symbol]
		if !ok {
			continue
		}
		blocks = append(blocks, indicators.Format(symbol, indicators.Compute(candles)))
	}
	return strings.Join(blocks, "\n\n")
}

func formatOrderBooks(symbols []string, books map[string]domain.OrderBook) string {
	if len(books) == 0 {
		return "No order book data available."
	}
	var b strings.Builder
	for _, symbol := range symbols {
		book, ok := books[symbol]
		if !ok {
			continue
		}
		bestBid, bestAsk := decimal.Zero, decimal.Zero
		if len(book.Bids) > 0 {
			bestBid = book.Bids[0].Price
		}
		if len(book.Asks) > 0 {
			bestAsk = book.Asks[0].Price
		}
		fmt.Fprintf(&b, "  %s: best bid=%s best ask=%s imbalance(10)=%+.3f\n",
			symbol, bestBid.String(), bestAsk.String(), book.Imbalance(10))
	}
	return strings.TrimRight(b.String(), "\n")
}

func pnlPct(pnl, portfolioValue decimal.Decimal) float64 {
	if !portfolioValue.IsPositive() {
		return 0
	}
	ratio, _ := pnl.Div(portfolioValue).Float64()
	return ratio * 100
}
