package executor

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amanabot/amana/internal/domain"
)

type memTrades struct {
	records []domain.TradeRecord
}

func (t *memTrades) Append(rec domain.TradeRecord) error {
	t.records = append(t.records, rec)
	return nil
}

type fakeEquityBroker struct {
	account   domain.Account
	positions []domain.Position
	prices    map[string]decimal.Decimal
	orderErr  map[string]error
	calls     []string
}

func (b *fakeEquityBroker) GetAccount(context.Context) (domain.Account, error) {
	return b.account, nil
}

func (b *fakeEquityBroker) GetPositions(context.Context) ([]domain.Position, error) {
	return b.positions, nil
}

func (b *fakeEquityBroker) SnapshotPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	price, ok := b.prices[symbol]
	if !ok {
		return decimal.Zero, errors.Errorf("no price for %s", symbol)
	}
	return price, nil
}

func (b *fakeEquityBroker) PlaceOrder(_ context.Context, symbol string, side domain.Action, qty decimal.Decimal) (domain.OrderResult, error) {
	b.calls = append(b.calls, side.String()+" "+symbol)
	if err := b.orderErr[symbol]; err != nil {
		return domain.OrderResult{}, err
	}
	return domain.OrderResult{
		OrderID:      "ord-" + symbol,
		Symbol:       symbol,
		Side:         side,
		Status:       "accepted",
		FilledQty:    qty,
		AvgFillPrice: b.prices[symbol],
	}, nil
}

func (b *fakeEquityBroker) ClosePosition(_ context.Context, symbol string) (domain.OrderResult, error) {
	b.calls = append(b.calls, "close "+symbol)
	return domain.OrderResult{OrderID: "close-" + symbol, Symbol: symbol, Side: domain.ActionSell}, nil
}

func equityAccount(buyingPower, portfolio int64) domain.Account {
	return domain.Account{
		Equity:         decimal.NewFromInt(portfolio),
		BuyingPower:    decimal.NewFromInt(buyingPower),
		PortfolioValue: decimal.NewFromInt(portfolio),
	}
}

func TestEquityExecutorSellsBeforeBuys(t *testing.T) {
	broker := &fakeEquityBroker{
		account: equityAccount(50000, 100000),
		prices:  map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(100), "MSFT": decimal.NewFromInt(200)},
	}
	e := NewEquityExecutor(broker, &memTrades{}, 0.2, 5, zap.NewNop())

	plan := domain.TradingPlan{Decisions: []domain.TradeDecision{
		{Action: domain.ActionBuy, Symbol: "AAPL", Quantity: 10, Confidence: 0.8},
		{Action: domain.ActionSell, Symbol: "MSFT", Quantity: 5, Confidence: 0.7},
	}}

	results := e.ExecutePlan(context.Background(), plan)

	require.Len(t, results, 2)
	assert.Equal(t, domain.ActionSell, results[0].Action)
	assert.Equal(t, domain.ActionBuy, results[1].Action)
	assert.Equal(t, []string{"sell MSFT", "buy AAPL"}, broker.calls)
}

func TestEquityExecutorZeroQuantitySellClosesPosition(t *testing.T) {
	broker := &fakeEquityBroker{account: equityAccount(50000, 100000), prices: map[string]decimal.Decimal{}}
	e := NewEquityExecutor(broker, &memTrades{}, 0.2, 5, zap.NewNop())

	results := e.ExecutePlan(context.Background(), domain.TradingPlan{Decisions: []domain.TradeDecision{
		{Action: domain.ActionSell, Symbol: "AAPL", Quantity: 0, Confidence: 0.6},
	}})

	require.Len(t, results, 1)
	assert.Equal(t, domain.ExecutionSubmitted, results[0].Status)
	assert.Equal(t, []string{"close AAPL"}, broker.calls)
}

func TestEquityExecutorBuyGates(t *testing.T) {
	trades := &memTrades{}
	broker := &fakeEquityBroker{
		account: equityAccount(1000, 100000),
		prices:  map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(100), "NVDA": decimal.NewFromInt(500)},
	}
	e := NewEquityExecutor(broker, trades, 0.2, 5, zap.NewNop())

	results := e.ExecutePlan(context.Background(), domain.TradingPlan{Decisions: []domain.TradeDecision{
		// costs 2000, buying power 1000
		{Action: domain.ActionBuy, Symbol: "AAPL", Quantity: 20, Confidence: 0.8},
	}})

	require.Len(t, results, 1)
	assert.Equal(t, domain.ExecutionRejected, results[0].Status)
	assert.Contains(t, results[0].Reason, "insufficient buying power")
	assert.Empty(t, broker.calls, "no order reaches the venue")

	// rejections are audited
	require.Len(t, trades.records, 1)
	assert.Equal(t, domain.ExecutionRejected, trades.records[0].Status)

	// position-size gate: 25000 of a 100000 portfolio breaches the 20% cap
	broker.account = equityAccount(50000, 100000)
	results = e.ExecutePlan(context.Background(), domain.TradingPlan{Decisions: []domain.TradeDecision{
		{Action: domain.ActionBuy, Symbol: "NVDA", Quantity: 50, Confidence: 0.9},
	}})
	require.Len(t, results, 1)
	assert.Equal(t, domain.ExecutionRejected, results[0].Status)
	assert.Contains(t, results[0].Reason, "exceeds 20% limit")
}

func TestEquityExecutorAcceptsValidBuy(t *testing.T) {
	trades := &memTrades{}
	broker := &fakeEquityBroker{
		account: equityAccount(50000, 100000),
		prices:  map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(100)},
	}
	e := NewEquityExecutor(broker, trades, 0.2, 5, zap.NewNop())

	results := e.ExecutePlan(context.Background(), domain.TradingPlan{Decisions: []domain.TradeDecision{
		{Action: domain.ActionBuy, Symbol: "AAPL", Quantity: 10, Confidence: 0.8, Reasoning: "momentum"},
	}})

	require.Len(t, results, 1)
	assert.Equal(t, domain.ExecutionSubmitted, results[0].Status)
	assert.Equal(t, "ord-AAPL", results[0].OrderID)
	assert.Equal(t, "100", results[0].Price.String())

	require.Len(t, trades.records, 1)
	assert.Equal(t, "momentum", trades.records[0].Reasoning)
}

type fakeCryptoBroker struct {
	account  domain.CryptoAccount
	balances []domain.Balance
	prices   map[string]decimal.Decimal
	orderErr map[string]error
	calls    []string
}

func (b *fakeCryptoBroker) GetAccount(context.Context) (domain.CryptoAccount, error) {
	return b.account, nil
}

func (b *fakeCryptoBroker) GetBalances(context.Context) ([]domain.Balance, error) {
	return b.balances, nil
}

func (b *fakeCryptoBroker) TickerPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	price, ok := b.prices[symbol]
	if !ok {
		return decimal.Zero, errors.Errorf("no price for %s", symbol)
	}
	return price, nil
}

func (b *fakeCryptoBroker) PlaceMarketOrder(_ context.Context, symbol string, side domain.Action, qty decimal.Decimal) (domain.OrderResult, error) {
	b.calls = append(b.calls, side.String()+" "+symbol)
	if err := b.orderErr[symbol]; err != nil {
		return domain.OrderResult{}, err
	}
	return domain.OrderResult{
		OrderID:      "ord-" + symbol,
		Symbol:       symbol,
		Side:         side,
		Status:       "FILLED",
		FilledQty:    qty,
		AvgFillPrice: b.prices[symbol],
	}, nil
}

func TestCryptoExecutorPositionCapIsIncremental(t *testing.T) {
	broker := &fakeCryptoBroker{
		account: domain.CryptoAccount{
			TotalUSDT:     decimal.NewFromInt(100000),
			AvailableUSDT: decimal.NewFromInt(100000),
		},
		prices: map[string]decimal.Decimal{
			"BTCUSDT": decimal.NewFromInt(50000),
			"ETHUSDT": decimal.NewFromInt(3000),
		},
	}
	e := NewCryptoExecutor(broker, &memTrades{}, 0.5, 1, zap.NewNop())

	results := e.ExecutePlan(context.Background(), domain.TradingPlan{Decisions: []domain.TradeDecision{
		{Action: domain.ActionBuy, Symbol: "BTCUSDT", Quantity: 0.1, Confidence: 0.8},
		{Action: domain.ActionBuy, Symbol: "ETHUSDT", Quantity: 1, Confidence: 0.7},
	}})

	require.Len(t, results, 2)
	assert.Equal(t, domain.ExecutionSubmitted, results[0].Status)
	assert.Equal(t, domain.ExecutionRejected, results[1].Status)
	assert.Contains(t, results[1].Reason, "max simultaneous positions (1)")
	assert.Equal(t, []string{"buy BTCUSDT"}, broker.calls)
}

func TestCryptoExecutorCountsExistingHoldings(t *testing.T) {
	broker := &fakeCryptoBroker{
		account: domain.CryptoAccount{
			TotalUSDT:     decimal.NewFromInt(100000),
			AvailableUSDT: decimal.NewFromInt(100000),
		},
		balances: []domain.Balance{
			{Asset: "USDT", Free: decimal.NewFromInt(90000)},
			{Asset: "BTC", Free: decimal.NewFromFloat(0.2)},
		},
		prices: map[string]decimal.Decimal{"ETHUSDT": decimal.NewFromInt(3000)},
	}
	e := NewCryptoExecutor(broker, &memTrades{}, 0.5, 1, zap.NewNop())

	results := e.ExecutePlan(context.Background(), domain.TradingPlan{Decisions: []domain.TradeDecision{
		{Action: domain.ActionBuy, Symbol: "ETHUSDT", Quantity: 1, Confidence: 0.7},
	}})

	require.Len(t, results, 1)
	assert.Equal(t, domain.ExecutionRejected, results[0].Status)
}

func TestCryptoExecutorVenueErrorDoesNotAbortPlan(t *testing.T) {
	broker := &fakeCryptoBroker{
		account: domain.CryptoAccount{
			TotalUSDT:     decimal.NewFromInt(100000),
			AvailableUSDT: decimal.NewFromInt(100000),
		},
		prices: map[string]decimal.Decimal{
			"BTCUSDT": decimal.NewFromInt(50000),
			"ETHUSDT": decimal.NewFromInt(3000),
		},
		orderErr: map[string]error{"BTCUSDT": errors.New("venue unavailable")},
	}
	e := NewCryptoExecutor(broker, &memTrades{}, 0.9, 5, zap.NewNop())

	results := e.ExecutePlan(context.Background(), domain.TradingPlan{Decisions: []domain.TradeDecision{
		{Action: domain.ActionSell, Symbol: "BTCUSDT", Quantity: 0.1, Confidence: 0.8},
		{Action: domain.ActionBuy, Symbol: "ETHUSDT", Quantity: 1, Confidence: 0.7},
	}})

	require.Len(t, results, 2)
	assert.Equal(t, domain.ExecutionError, results[0].Status)
	assert.Equal(t, domain.ExecutionSubmitted, results[1].Status)
}
