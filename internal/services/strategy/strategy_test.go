package strategy

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

type stubOracle struct {
	response string
	err      error
	prompts  []string
}

func (o *stubOracle) GenerateJSON(_ context.Context, system, user string) (string, error) {
	o.prompts = append(o.prompts, system, user)
	if o.err != nil {
		return "", o.err
	}
	return o.response, nil
}

func (o *stubOracle) Provider() string { return "test" }
func (o *stubOracle) Model() string    { return "test-model" }

type memAudit struct {
	records []domain.DecisionRecord
}

func (a *memAudit) Append(rec domain.DecisionRecord) error {
	a.records = append(a.records, rec)
	return nil
}

var testRisk = RiskParams{
	MaxPositionPct:    0.2,
	DailyLossLimit:    0.02,
	DailyReturnTarget: 0.01,
	MaxPositions:      5,
}

func TestEquityStrategyAnalyze(t *testing.T) {
	oracle := &stubOracle{response: `{"decisions":[
		{"action":"buy","symbol":"AAPL","quantity":10,"confidence":0.8,"reasoning":"momentum"},
		{"action":"hold","symbol":"MSFT","quantity":0,"confidence":0.5,"reasoning":"flat"}
	],"market_outlook":"constructive","risk_notes":"none"}`}
	audit := &memAudit{}
	s := NewEquityStrategy(oracle, audit, testRisk, zap.NewNop())

	plan := s.Analyze(context.Background(), EquityInput{
		Account: domain.Account{
			BuyingPower:    decimal.NewFromInt(50000),
			PortfolioValue: decimal.NewFromInt(100000),
			Cash:           decimal.NewFromInt(50000),
		},
		Universe: []string{"AAPL", "MSFT"},
	})

	require.Len(t, plan.Buys(), 1)
	assert.Equal(t, "AAPL", plan.Buys()[0].Symbol)

	require.Len(t, audit.records, 1)
	rec := audit.records[0]
	assert.Equal(t, "equity", rec.Domain)
	assert.Equal(t, 1, rec.Buys)
	assert.Equal(t, 1, rec.Holds)
	assert.Empty(t, rec.Error)
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, rec.Symbols)

	// prompt carries the universe and the risk guardrails
	require.Len(t, oracle.prompts, 2)
	assert.Contains(t, oracle.prompts[0], "no single position should exceed 20%")
	assert.Contains(t, oracle.prompts[1], "AAPL, MSFT")
}

func TestEquityStrategyOracleFailureYieldsEmptyPlan(t *testing.T) {
	oracle := &stubOracle{err: errors.New("model unavailable")}
	audit := &memAudit{}
	s := NewEquityStrategy(oracle, audit, testRisk, zap.NewNop())

	plan := s.Analyze(context.Background(), EquityInput{})

	assert.Empty(t, plan.Decisions)
	require.Len(t, audit.records, 1, "failures are audited too")
	assert.Contains(t, audit.records[0].Error, "model unavailable")
}

func TestEquityStrategyBadJSONYieldsEmptyPlan(t *testing.T) {
	oracle := &stubOracle{response: "not json at all"}
	audit := &memAudit{}
	s := NewEquityStrategy(oracle, audit, testRisk, zap.NewNop())

	plan := s.Analyze(context.Background(), EquityInput{})

	assert.Empty(t, plan.Decisions)
	require.Len(t, audit.records, 1)
	assert.NotEmpty(t, audit.records[0].Error)
}

func TestCryptoStrategyAnalyze(t *testing.T) {
	oracle := &stubOracle{response: "```json\n" + `{"decisions":[
		{"action":"buy","symbol":"BTCUSDT","quantity":0.05,"confidence":0.7,"reasoning":"rsi oversold"}
	],"market_outlook":"bullish","risk_notes":""}` + "\n```"}
	audit := &memAudit{}
	s := NewCryptoStrategy(oracle, audit, testRisk, zap.NewNop())

	plan := s.Analyze(context.Background(), CryptoInput{
		Account: domain.CryptoAccount{
			TotalUSDT:     decimal.NewFromInt(10000),
			AvailableUSDT: decimal.NewFromInt(8000),
			InOrdersUSDT:  decimal.NewFromInt(2000),
		},
		Pairs: []string{"BTCUSDT", "ETHUSDT"},
	})

	require.Len(t, plan.Buys(), 1)
	assert.Equal(t, "BTCUSDT", plan.Buys()[0].Symbol)

	require.Len(t, audit.records, 1)
	assert.Equal(t, "crypto", audit.records[0].Domain)
	assert.Equal(t, 1, audit.records[0].Buys)

	assert.Contains(t, oracle.prompts[1], "BTCUSDT, ETHUSDT")
	assert.Contains(t, oracle.prompts[1], "No open positions.")
}

func TestCryptoStrategyAuditsExactlyOncePerInvocation(t *testing.T) {
	oracle := &stubOracle{response: `{"decisions":[],"market_outlook":"flat","risk_notes":""}`}
	audit := &memAudit{}
	s := NewCryptoStrategy(oracle, audit, testRisk, zap.NewNop())

	s.Analyze(context.Background(), CryptoInput{})
	s.Analyze(context.Background(), CryptoInput{})

	assert.Len(t, audit.records, 2)
}
