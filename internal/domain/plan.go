package domain

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// TradeDecision is a single instruction produced by the decision model.
type TradeDecision struct {
	Action      Action   `json:"action"`
	Symbol      string   `json:"symbol"`
	Quantity    float64  `json:"quantity"`
	Confidence  float64  `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
	TargetPrice *float64 `json:"target_price,omitempty"`
	StopLoss    *float64 `json:"stop_loss,omitempty"`
}

// TradingPlan is the full model output for one decision cycle.
type TradingPlan struct {
	Decisions     []TradeDecision `json:"decisions"`
	MarketOutlook string          `json:"market_outlook"`
	RiskNotes     string          `json:"risk_notes"`
}

// EmptyPlan returns a plan with no decisions. Used as the safe fallback
// whenever the decision model cannot be consulted or its output is unusable.
func EmptyPlan(outlook, riskNotes string) TradingPlan {
	return TradingPlan{Decisions: []TradeDecision{}, MarketOutlook: outlook, RiskNotes: riskNotes}
}

// Buys returns the buy decisions in plan order.
func (p TradingPlan) Buys() []TradeDecision {
	return p.filter(ActionBuy)
}

// Sells returns the sell decisions in plan order.
func (p TradingPlan) Sells() []TradeDecision {
	return p.filter(ActionSell)
}

// Holds returns the hold decisions in plan order.
func (p TradingPlan) Holds() []TradeDecision {
	return p.filter(ActionHold)
}

func (p TradingPlan) filter(action Action) []TradeDecision {
	out := make([]TradeDecision, 0, len(p.Decisions))
	for _, d := range p.Decisions {
		if d.Action == action {
			out = append(out, d)
		}
	}
	return out
}

// ParseTradingPlan decodes a model response into a validated plan.
// Markdown code fences around the JSON body are tolerated and stripped.
func ParseTradingPlan(raw string) (TradingPlan, error) {
	payload := sanitizePlanPayload(raw)
	if payload == "" {
		return TradingPlan{}, errors.New("empty plan payload")
	}

	var plan TradingPlan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		return TradingPlan{}, errors.Wrap(err, "decode trading plan")
	}

	if err := plan.Validate(); err != nil {
		return TradingPlan{}, err
	}

	if plan.Decisions == nil {
		plan.Decisions = []TradeDecision{}
	}
	return plan, nil
}

// Validate checks every decision for a known action, a symbol on actionable
// decisions, non-negative quantity and confidence within [0, 1].
func (p TradingPlan) Validate() error {
	for i, d := range p.Decisions {
		if !d.Action.IsValid() {
			return errors.Errorf("decision %d: unknown action %q", i, d.Action)
		}
		if d.Action != ActionHold && strings.TrimSpace(d.Symbol) == "" {
			return errors.Errorf("decision %d: %s without symbol", i, d.Action)
		}
		if d.Quantity < 0 {
			return errors.Errorf("decision %d: negative quantity %f", i, d.Quantity)
		}
		if d.Confidence < 0 || d.Confidence > 1 {
			return errors.Errorf("decision %d: confidence %f out of range", i, d.Confidence)
		}
	}
	return nil
}

func sanitizePlanPayload(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	// tolerate leading prose before the JSON object
	if !strings.HasPrefix(s, "{") {
		if i := strings.Index(s, "{"); i >= 0 {
			s = s[i:]
		}
	}
	return s
}
