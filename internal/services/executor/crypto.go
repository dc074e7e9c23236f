package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/amanabot/amana/internal/domain"
)

// CryptoBroker is the exchange surface the crypto executor needs.
type CryptoBroker interface {
	GetAccount(ctx context.Context) (domain.CryptoAccount, error)
	GetBalances(ctx context.Context) ([]domain.Balance, error)
	TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	PlaceMarketOrder(ctx context.Context, symbol string, side domain.Action, qty decimal.Decimal) (domain.OrderResult, error)
}

// CryptoExecutor executes crypto plans with balance, position-size and
// position-count gates. Open positions are counted as non-quote balances
// with free funds.
type CryptoExecutor struct {
	broker         CryptoBroker
	trades         TradeWriter
	maxPositionPct float64
	maxPositions   int
	logger         *zap.Logger
}

// NewCryptoExecutor builds the crypto executor.
func NewCryptoExecutor(broker CryptoBroker, trades TradeWriter, maxPositionPct float64, maxPositions int, logger *zap.Logger) *CryptoExecutor {
	return &CryptoExecutor{
		broker:         broker,
		trades:         trades,
		maxPositionPct: maxPositionPct,
		maxPositions:   maxPositions,
		logger:         logger,
	}
}

// ExecutePlan runs every sell, then every buy. The position cap is checked
// against exchange balances once, then advanced locally as buys submit, so
// two buys in one plan cannot both squeeze through a single remaining slot.
func (e *CryptoExecutor) ExecutePlan(ctx context.Context, plan domain.TradingPlan) []domain.ExecutionResult {
	results := make([]domain.ExecutionResult, 0, len(plan.Decisions))

	for _, decision := range plan.Sells() {
		results = append(results, e.executeSell(ctx, decision))
	}

	openCount := e.openPositionCount(ctx)
	for _, decision := range plan.Buys() {
		if e.maxPositions > 0 && openCount >= e.maxPositions {
			reason := fmt.Sprintf("max simultaneous positions (%d) reached", e.maxPositions)
			e.logger.Warn("buy rejected", zap.String("symbol", decision.Symbol), zap.String("reason", reason))
			result := domain.Rejected(decision.Symbol, domain.ActionBuy, decimal.NewFromFloat(decision.Quantity), reason)
			e.record(result, decision.Reasoning)
			results = append(results, result)
			continue
		}

		result := e.executeBuy(ctx, decision)
		if result.Status == domain.ExecutionSubmitted {
			openCount++
		}
		results = append(results, result)
	}

	return results
}

func (e *CryptoExecutor) openPositionCount(ctx context.Context) int {
	balances, err := e.broker.GetBalances(ctx)
	if err != nil {
		e.logger.Warn("failed to count open positions, assuming none", zap.Error(err))
		return 0
	}

	count := 0
	for _, bal := range balances {
		if domain.IsQuoteAsset(bal.Asset) {
			continue
		}
		if bal.Free.IsPositive() {
			count++
		}
	}
	return count
}

func (e *CryptoExecutor) executeBuy(ctx context.Context, decision domain.TradeDecision) domain.ExecutionResult {
	qty := decimal.NewFromFloat(decision.Quantity)
	if !qty.IsPositive() {
		result := domain.Rejected(decision.Symbol, domain.ActionBuy, qty, "buy quantity must be positive")
		e.record(result, decision.Reasoning)
		return result
	}

	account, err := e.broker.GetAccount(ctx)
	if err != nil {
		result := domain.Failed(decision.Symbol, domain.ActionBuy, qty, err.Error())
		e.record(result, decision.Reasoning)
		return result
	}

	price, err := e.broker.TickerPrice(ctx, decision.Symbol)
	if err != nil {
		result := domain.Failed(decision.Symbol, domain.ActionBuy, qty, err.Error())
		e.record(result, decision.Reasoning)
		return result
	}

	cost := price.Mul(qty)
	if cost.GreaterThan(account.AvailableUSDT) {
		reason := fmt.Sprintf("insufficient balance: need $%s, have $%s",
			cost.StringFixed(2), account.AvailableUSDT.StringFixed(2))
		e.logger.Warn("buy rejected", zap.String("symbol", decision.Symbol), zap.String("reason", reason))
		result := domain.Rejected(decision.Symbol, domain.ActionBuy, qty, reason)
		e.record(result, decision.Reasoning)
		return result
	}

	if account.TotalUSDT.IsPositive() {
		share, _ := cost.Div(account.TotalUSDT).Float64()
		if share > e.maxPositionPct {
			reason := fmt.Sprintf("position size exceeds %.0f%% limit", e.maxPositionPct*100)
			e.logger.Warn("buy rejected", zap.String("symbol", decision.Symbol), zap.String("reason", reason))
			result := domain.Rejected(decision.Symbol, domain.ActionBuy, qty, reason)
			e.record(result, decision.Reasoning)
			return result
		}
	}

	order, err := e.broker.PlaceMarketOrder(ctx, decision.Symbol, domain.ActionBuy, qty)
	if err != nil {
		e.logger.Error("buy order failed", zap.String("symbol", decision.Symbol), zap.Error(err))
		result := domain.Failed(decision.Symbol, domain.ActionBuy, qty, err.Error())
		e.record(result, decision.Reasoning)
		return result
	}

	fillPrice := order.AvgFillPrice
	if !fillPrice.IsPositive() {
		fillPrice = price
	}

	result := domain.Submitted(decision.Symbol, domain.ActionBuy, qty, fillPrice, order.OrderID)
	e.record(result, decision.Reasoning)
	return result
}

func (e *CryptoExecutor) executeSell(ctx context.Context, decision domain.TradeDecision) domain.ExecutionResult {
	qty := decimal.NewFromFloat(decision.Quantity)
	if !qty.IsPositive() {
		result := domain.Rejected(decision.Symbol, domain.ActionSell, qty, "sell quantity must be positive")
		e.record(result, decision.Reasoning)
		return result
	}

	order, err := e.broker.PlaceMarketOrder(ctx, decision.Symbol, domain.ActionSell, qty)
	if err != nil {
		e.logger.Error("sell order failed", zap.String("symbol", decision.Symbol), zap.Error(err))
		result := domain.Failed(decision.Symbol, domain.ActionSell, qty, err.Error())
		e.record(result, decision.Reasoning)
		return result
	}

	result := domain.Submitted(decision.Symbol, domain.ActionSell, qty, order.AvgFillPrice, order.OrderID)
	e.record(result, decision.Reasoning)
	return result
}

func (e *CryptoExecutor) record(result domain.ExecutionResult, reasoning string) {
	rec := domain.TradeRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Domain:    "crypto",
		Symbol:    result.Symbol,
		Side:      result.Action,
		Quantity:  result.Quantity,
		Price:     result.Price,
		OrderID:   result.OrderID,
		Status:    result.Status,
		Reason:    result.Reason,
		Reasoning: reasoning,
	}
	if err := e.trades.Append(rec); err != nil {
		e.logger.Warn("failed to persist trade record", zap.Error(err))
	}
}
