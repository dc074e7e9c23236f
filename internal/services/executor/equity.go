// Package executor turns trading plans into venue orders behind risk
// gates. Sells always run before buys so capital freed by exits can fund
// entries within the same plan.
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

// EquityBroker is the brokerage surface the equity executor needs.
type EquityBroker interface {
	GetAccount(ctx context.Context) (domain.Account, error)
	GetPositions(ctx context.Context) ([]domain.Position, error)
	SnapshotPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	PlaceOrder(ctx context.Context, symbol string, side domain.Action, qty decimal.Decimal) (domain.OrderResult, error)
	ClosePosition(ctx context.Context, symbol string) (domain.OrderResult, error)
}

// TradeWriter records the audit trail of execution attempts.
type TradeWriter interface {
	Append(rec domain.TradeRecord) error
}

// EquityExecutor executes equity plans with buying-power, position-size
// and position-count gates.
type EquityExecutor struct {
	broker         EquityBroker
	trades         TradeWriter
	maxPositionPct float64
	maxPositions   int
	logger         *zap.Logger
}

// NewEquityExecutor builds the equity executor.
func NewEquityExecutor(broker EquityBroker, trades TradeWriter, maxPositionPct float64, maxPositions int, logger *zap.Logger) *EquityExecutor {
	return &EquityExecutor{
		broker:         broker,
		trades:         trades,
		maxPositionPct: maxPositionPct,
		maxPositions:   maxPositions,
		logger:         logger,
	}
}

// ExecutePlan runs every sell, then every buy. A rejected or failed
// decision never stops the rest of the plan. Buys submitted earlier in the
// plan count against the position cap for later buys.
func (e *EquityExecutor) ExecutePlan(ctx context.Context, plan domain.TradingPlan) []domain.ExecutionResult {
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

func (e *EquityExecutor) openPositionCount(ctx context.Context) int {
	positions, err := e.broker.GetPositions(ctx)
	if err != nil {
		e.logger.Warn("failed to count open positions, assuming none", zap.Error(err))
		return 0
	}
	return len(positions)
}

func (e *EquityExecutor) executeBuy(ctx context.Context, decision domain.TradeDecision) domain.ExecutionResult {
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

	price, err := e.broker.SnapshotPrice(ctx, decision.Symbol)
	if err != nil {
		result := domain.Failed(decision.Symbol, domain.ActionBuy, qty, err.Error())
		e.record(result, decision.Reasoning)
		return result
	}

	cost := price.Mul(qty)
	if cost.GreaterThan(account.BuyingPower) {
		reason := fmt.Sprintf("insufficient buying power: need $%s, have $%s",
			cost.StringFixed(2), account.BuyingPower.StringFixed(2))
		e.logger.Warn("buy rejected", zap.String("symbol", decision.Symbol), zap.String("reason", reason))
		result := domain.Rejected(decision.Symbol, domain.ActionBuy, qty, reason)
		e.record(result, decision.Reasoning)
		return result
	}

	if account.PortfolioValue.IsPositive() {
		share, _ := cost.Div(account.PortfolioValue).Float64()
		if share > e.maxPositionPct {
			reason := fmt.Sprintf("position size exceeds %.0f%% limit", e.maxPositionPct*100)
			e.logger.Warn("buy rejected", zap.String("symbol", decision.Symbol), zap.String("reason", reason))
			result := domain.Rejected(decision.Symbol, domain.ActionBuy, qty, reason)
			e.record(result, decision.Reasoning)
			return result
		}
	}

	order, err := e.broker.PlaceOrder(ctx, decision.Symbol, domain.ActionBuy, qty)
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

func (e *EquityExecutor) executeSell(ctx context.Context, decision domain.TradeDecision) domain.ExecutionResult {
	qty := decimal.NewFromFloat(decision.Quantity)

	var (
		order domain.OrderResult
		err   error
	)
	if qty.IsZero() {
		// zero quantity means close the whole position
		order, err = e.broker.ClosePosition(ctx, decision.Symbol)
	} else {
		order, err = e.broker.PlaceOrder(ctx, decision.Symbol, domain.ActionSell, qty)
	}
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

func (e *EquityExecutor) record(result domain.ExecutionResult, reasoning string) {
	rec := domain.TradeRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Domain:    "equity",
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
