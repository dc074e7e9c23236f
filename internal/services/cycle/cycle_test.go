package cycle

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amanabot/amana/internal/domain"
	"github.com/amanabot/amana/internal/services/executor"
	"github.com/amanabot/amana/internal/services/strategy"
)

type fakeEquityMarket struct {
	clock     domain.MarketClock
	account   domain.Account
	positions []domain.Position
	prices    map[string]decimal.Decimal
	orders    []string
}

func (m *fakeEquityMarket) GetClock(context.Context) (domain.MarketClock, error) {
	return m.clock, nil
}

func (m *fakeEquityMarket) GetAccount(context.Context) (domain.Account, error) {
	return m.account, nil
}

func (m *fakeEquityMarket) GetPositions(context.Context) ([]domain.Position, error) {
	return m.positions, nil
}

func (m *fakeEquityMarket) GetSnapshot(_ context.Context, symbol string) (domain.Snapshot, error) {
	price, ok := m.prices[symbol]
	if !ok {
		return domain.Snapshot{}, errors.Errorf("no snapshot for %s", symbol)
	}
	return domain.Snapshot{Symbol: symbol, LatestPrice: price, PrevClose: price}, nil
}

func (m *fakeEquityMarket) GetBars(_ context.Context, symbol string, _ int) ([]domain.Candle, error) {
	price := m.prices[symbol]
	return []domain.Candle{{Open: price, High: price, Low: price, Close: price, Volume: decimal.NewFromInt(1000), Closed: true}}, nil
}

func (m *fakeEquityMarket) SnapshotPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	price, ok := m.prices[symbol]
	if !ok {
		return decimal.Zero, errors.Errorf("no price for %s", symbol)
	}
	return price, nil
}

func (m *fakeEquityMarket) PlaceOrder(_ context.Context, symbol string, side domain.Action, qty decimal.Decimal) (domain.OrderResult, error) {
	m.orders = append(m.orders, side.String()+" "+symbol)
	return domain.OrderResult{
		OrderID:      "ord-" + symbol,
		Symbol:       symbol,
		Side:         side,
		Status:       "accepted",
		FilledQty:    qty,
		AvgFillPrice: m.prices[symbol],
	}, nil
}

func (m *fakeEquityMarket) ClosePosition(_ context.Context, symbol string) (domain.OrderResult, error) {
	m.orders = append(m.orders, "close "+symbol)
	return domain.OrderResult{OrderID: "close-" + symbol, Symbol: symbol, Side: domain.ActionSell}, nil
}

type fakeScreen struct {
	filtered   []string
	refreshErr error
}

func (s *fakeScreen) EnsureCache(context.Context, []string) error { return s.refreshErr }
func (s *fakeScreen) FilterHalal([]string) []string               { return s.filtered }

type fakeGate struct{ halted bool }

func (g *fakeGate) ShouldHalt(context.Context) bool          { return g.halted }
func (g *fakeGate) TodayPnL(context.Context) decimal.Decimal { return decimal.Zero }

type stubOracle struct {
	response string
	err      error
}

func (o *stubOracle) GenerateJSON(context.Context, string, string) (string, error) {
	return o.response, o.err
}
func (o *stubOracle) Provider() string { return "test" }
func (o *stubOracle) Model() string    { return "test-model" }

type memAudit struct{ records []domain.DecisionRecord }

func (a *memAudit) Append(rec domain.DecisionRecord) error {
	a.records = append(a.records, rec)
	return nil
}

type memTrades struct{ records []domain.TradeRecord }

func (t *memTrades) Append(rec domain.TradeRecord) error {
	t.records = append(t.records, rec)
	return nil
}

type planRecorder struct {
	results []domain.ExecutionResult
	called  bool
}

func (p *planRecorder) ExecutePlan(context.Context, domain.TradingPlan) []domain.ExecutionResult {
	p.called = true
	return p.results
}

type stubPlanner struct{ plan domain.TradingPlan }

func (p *stubPlanner) Analyze(context.Context, strategy.EquityInput) domain.TradingPlan {
	return p.plan
}

func TestEquityCycleEndToEnd(t *testing.T) {
	market := &fakeEquityMarket{
		clock: domain.MarketClock{IsOpen: true},
		account: domain.Account{
			Equity:         decimal.NewFromInt(100000),
			Cash:           decimal.NewFromInt(50000),
			BuyingPower:    decimal.NewFromInt(50000),
			PortfolioValue: decimal.NewFromInt(100000),
		},
		prices: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(100)},
	}

	oracle := &stubOracle{response: `{
		"decisions": [{"action": "buy", "symbol": "AAPL", "quantity": 10, "confidence": 0.8, "reasoning": "breakout"}],
		"market_outlook": "bullish",
		"risk_notes": "tight stops"
	}`}
	audit := &memAudit{}
	trades := &memTrades{}

	risk := strategy.RiskParams{MaxPositionPct: 0.2, DailyLossLimit: 0.02, DailyReturnTarget: 0.01, MaxPositions: 5}
	planner := strategy.NewEquityStrategy(oracle, audit, risk, zap.NewNop())
	exec := executor.NewEquityExecutor(market, trades, risk.MaxPositionPct, risk.MaxPositions, zap.NewNop())

	c := NewEquityCycle(market, &fakeScreen{filtered: []string{"AAPL"}}, &fakeGate{},
		planner, exec, []string{"AAPL"}, zap.NewNop())

	require.NoError(t, c.Run(context.Background()))

	require.Equal(t, []string{"buy AAPL"}, market.orders)
	require.Len(t, trades.records, 1)
	assert.Equal(t, domain.ExecutionSubmitted, trades.records[0].Status)
	assert.Equal(t, "100", trades.records[0].Price.String())
	require.Len(t, audit.records, 1)
	assert.Equal(t, "equity", audit.records[0].Domain)
}

func TestEquityCycleSkipsWhenMarketClosed(t *testing.T) {
	market := &fakeEquityMarket{clock: domain.MarketClock{IsOpen: false}}
	exec := &planRecorder{}

	c := NewEquityCycle(market, &fakeScreen{filtered: []string{"AAPL"}}, &fakeGate{},
		&stubPlanner{}, exec, []string{"AAPL"}, zap.NewNop())

	require.NoError(t, c.Run(context.Background()))
	assert.False(t, exec.called)
}

func TestEquityCycleSkipsWhenHalted(t *testing.T) {
	market := &fakeEquityMarket{clock: domain.MarketClock{IsOpen: true}}
	exec := &planRecorder{}

	c := NewEquityCycle(market, &fakeScreen{filtered: []string{"AAPL"}}, &fakeGate{halted: true},
		&stubPlanner{}, exec, []string{"AAPL"}, zap.NewNop())

	require.NoError(t, c.Run(context.Background()))
	assert.False(t, exec.called)
}

func TestEquityCycleSkipsWithEmptyUniverse(t *testing.T) {
	market := &fakeEquityMarket{clock: domain.MarketClock{IsOpen: true}}
	exec := &planRecorder{}

	c := NewEquityCycle(market, &fakeScreen{}, &fakeGate{},
		&stubPlanner{}, exec, []string{"ABC"}, zap.NewNop())

	require.NoError(t, c.Run(context.Background()))
	assert.False(t, exec.called)
}

type equityInputCapture struct {
	captured strategy.EquityInput
}

func (p *equityInputCapture) Analyze(_ context.Context, in strategy.EquityInput) domain.TradingPlan {
	p.captured = in
	return domain.EmptyPlan("neutral", "no edge")
}

func TestEquityCycleTradesWatchlistOnColdCache(t *testing.T) {
	market := &fakeEquityMarket{
		clock:  domain.MarketClock{IsOpen: true},
		prices: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(100)},
	}
	screen := &fakeScreen{refreshErr: errors.New("screening provider down")}
	planner := &equityInputCapture{}
	exec := &planRecorder{}

	c := NewEquityCycle(market, screen, &fakeGate{},
		planner, exec, []string{"AAPL"}, zap.NewNop())

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []string{"AAPL"}, planner.captured.Universe,
		"cold cache must fall back to the raw watch-list")
	assert.True(t, exec.called)
}

type panicPlanner struct{}

func (panicPlanner) Analyze(context.Context, strategy.EquityInput) domain.TradingPlan {
	panic("model adapter bug")
}

func TestEquityCycleRecoversFromPanic(t *testing.T) {
	market := &fakeEquityMarket{
		clock:  domain.MarketClock{IsOpen: true},
		prices: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(100)},
	}

	c := NewEquityCycle(market, &fakeScreen{filtered: []string{"AAPL"}}, &fakeGate{},
		panicPlanner{}, &planRecorder{}, []string{"AAPL"}, zap.NewNop())

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

type fakeCryptoMarket struct {
	account  domain.CryptoAccount
	balances []domain.Balance
	klines   map[string][]domain.Candle
	restHits map[string]int
}

func (m *fakeCryptoMarket) GetAccount(context.Context) (domain.CryptoAccount, error) {
	return m.account, nil
}

func (m *fakeCryptoMarket) GetBalances(context.Context) ([]domain.Balance, error) {
	return m.balances, nil
}

func (m *fakeCryptoMarket) GetKlines(_ context.Context, symbol, _ string, _ int) ([]domain.Candle, error) {
	if m.restHits == nil {
		m.restHits = make(map[string]int)
	}
	m.restHits[symbol]++
	return m.klines[symbol], nil
}

func (m *fakeCryptoMarket) GetOrderBook(_ context.Context, symbol string, _ int) (domain.OrderBook, error) {
	return domain.OrderBook{
		Symbol: symbol,
		Bids:   []domain.BookLevel{{Price: decimal.NewFromInt(50000), Quantity: decimal.NewFromInt(2)}},
		Asks:   []domain.BookLevel{{Price: decimal.NewFromInt(50001), Quantity: decimal.NewFromInt(1)}},
	}, nil
}

type fakeKlineCache struct {
	ready   map[string]bool
	candles map[string][]domain.Candle
}

func (c *fakeKlineCache) Ready(symbol string) bool { return c.ready[symbol] }

func (c *fakeKlineCache) Klines(symbol string, _ int) []domain.Candle {
	return c.candles[symbol]
}

type fakeCryptoScreen struct {
	filtered   []string
	refreshErr error
}

func (s *fakeCryptoScreen) RefreshScreening(context.Context) error { return s.refreshErr }
func (s *fakeCryptoScreen) FilterHalalPairs([]string) []string     { return s.filtered }

type cryptoInputCapture struct {
	captured strategy.CryptoInput
}

func (p *cryptoInputCapture) Analyze(_ context.Context, in strategy.CryptoInput) domain.TradingPlan {
	p.captured = in
	return domain.EmptyPlan("neutral", "no edge")
}

func TestCryptoCyclePrefersStreamOverREST(t *testing.T) {
	streamed := []domain.Candle{{Close: decimal.NewFromInt(50000), Closed: true}}
	rest := []domain.Candle{{Close: decimal.NewFromInt(3000), Closed: true}}

	market := &fakeCryptoMarket{
		account: domain.CryptoAccount{TotalUSDT: decimal.NewFromInt(10000), AvailableUSDT: decimal.NewFromInt(10000)},
		klines:  map[string][]domain.Candle{"ETHUSDT": rest},
	}
	cache := &fakeKlineCache{
		ready:   map[string]bool{"BTCUSDT": true},
		candles: map[string][]domain.Candle{"BTCUSDT": streamed},
	}
	planner := &cryptoInputCapture{}

	c := NewCryptoCycle(market, cache, &fakeCryptoScreen{filtered: []string{"BTCUSDT", "ETHUSDT"}},
		&fakeGate{}, planner, &planRecorder{}, []string{"BTCUSDT", "ETHUSDT"}, "1m", zap.NewNop())

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, streamed, planner.captured.Klines["BTCUSDT"])
	assert.Equal(t, rest, planner.captured.Klines["ETHUSDT"])
	assert.Zero(t, market.restHits["BTCUSDT"], "warm stream must not fall back to REST")
	assert.Equal(t, 1, market.restHits["ETHUSDT"])
}

func TestCryptoCycleFallsBackToConfiguredPairsOnColdCache(t *testing.T) {
	market := &fakeCryptoMarket{
		account: domain.CryptoAccount{TotalUSDT: decimal.NewFromInt(10000), AvailableUSDT: decimal.NewFromInt(10000)},
		klines:  map[string][]domain.Candle{"BTCUSDT": {{Close: decimal.NewFromInt(50000), Closed: true}}},
	}
	screen := &fakeCryptoScreen{refreshErr: errors.New("metadata provider down")}
	planner := &cryptoInputCapture{}
	exec := &planRecorder{}

	c := NewCryptoCycle(market, nil, screen, &fakeGate{},
		planner, exec, []string{"BTCUSDT"}, "1m", zap.NewNop())

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []string{"BTCUSDT"}, planner.captured.Pairs,
		"cold cache must fall back to the configured pairs")
	assert.True(t, exec.called)
}

func TestCryptoCycleSkipsWithNoCompliantPairs(t *testing.T) {
	market := &fakeCryptoMarket{}
	exec := &planRecorder{}

	c := NewCryptoCycle(market, nil, &fakeCryptoScreen{}, &fakeGate{},
		&cryptoInputCapture{}, exec, []string{"BTCUSDT"}, "1m", zap.NewNop())

	require.NoError(t, c.Run(context.Background()))
	assert.False(t, exec.called, "warm cache with no compliant pairs must skip")
}

func TestCryptoCycleSkipsWhenHalted(t *testing.T) {
	market := &fakeCryptoMarket{}
	exec := &planRecorder{}

	c := NewCryptoCycle(market, nil, &fakeCryptoScreen{filtered: []string{"BTCUSDT"}},
		&fakeGate{halted: true}, &cryptoInputCapture{}, exec, []string{"BTCUSDT"}, "1m", zap.NewNop())

	require.NoError(t, c.Run(context.Background()))
	assert.False(t, exec.called)
}
