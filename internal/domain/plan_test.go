package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTradingPlan(t *testing.T) {
	raw := `{"decisions":[
		{"action":"buy","symbol":"AAPL","quantity":10,"confidence":0.8,"reasoning":"momentum"},
		{"action":"sell","symbol":"MSFT","quantity":0,"confidence":0.6,"reasoning":"take profit"},
		{"action":"hold","symbol":"","quantity":0,"confidence":0.5,"reasoning":"wait"}
	],"market_outlook":"neutral","risk_notes":"none"}`

	plan, err := ParseTradingPlan(raw)
	require.NoError(t, err)

	assert.Len(t, plan.Decisions, 3)
	assert.Len(t, plan.Buys(), 1)
	assert.Len(t, plan.Sells(), 1)
	assert.Len(t, plan.Holds(), 1)
	assert.Equal(t, "AAPL", plan.Buys()[0].Symbol)
	assert.Equal(t, "neutral", plan.MarketOutlook)
}

func TestParseTradingPlanStripsFences(t *testing.T) {
	raw := "```json\n{\"decisions\":[{\"action\":\"buy\",\"symbol\":\"BTCUSDT\",\"quantity\":0.5,\"confidence\":0.7,\"reasoning\":\"breakout\"}],\"market_outlook\":\"bullish\",\"risk_notes\":\"\"}\n```"

	plan, err := ParseTradingPlan(raw)
	require.NoError(t, err)
	require.Len(t, plan.Decisions, 1)
	assert.Equal(t, ActionBuy, plan.Decisions[0].Action)
}

func TestParseTradingPlanLeadingProse(t *testing.T) {
	raw := "Here is the plan:\n{\"decisions\":[],\"market_outlook\":\"flat\",\"risk_notes\":\"\"}"

	plan, err := ParseTradingPlan(raw)
	require.NoError(t, err)
	assert.Empty(t, plan.Decisions)
}

func TestParseTradingPlanRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty payload", raw: "   "},
		{name: "not json", raw: "no trades today"},
		{name: "unknown action", raw: `{"decisions":[{"action":"short","symbol":"AAPL","quantity":1,"confidence":0.5}]}`},
		{name: "buy without symbol", raw: `{"decisions":[{"action":"buy","symbol":"","quantity":1,"confidence":0.5}]}`},
		{name: "negative quantity", raw: `{"decisions":[{"action":"sell","symbol":"AAPL","quantity":-1,"confidence":0.5}]}`},
		{name: "confidence above one", raw: `{"decisions":[{"action":"buy","symbol":"AAPL","quantity":1,"confidence":1.5}]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTradingPlan(tc.raw)
			require.Error(t, err)
		})
	}
}

func TestEmptyPlan(t *testing.T) {
	plan := EmptyPlan("model unavailable", "fallback")
	assert.NotNil(t, plan.Decisions)
	assert.Empty(t, plan.Decisions)
	assert.Equal(t, "model unavailable", plan.MarketOutlook)
}
