package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/amanabot/amana/internal/domain"
)

// Oracle is the decision model surface strategies depend on.
type Oracle interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Provider() string
	Model() string
}

// DecisionWriter records the audit trail of model invocations.
type DecisionWriter interface {
	Append(rec domain.DecisionRecord) error
}

// EquityInput is everything the equity strategy feeds the model.
type EquityInput struct {
	Account   domain.Account
	Positions []domain.Position
	Universe  []string
	Snapshots map[string]domain.Snapshot
	Bars      map[string][]domain.Candle
	TodayPnL  decimal.Decimal
	Sentiment string
}

const equityUserPromptTemplate = `=== PORTFOLIO STATUS ===
Buying Power: $%s
Portfolio Value: $%s
Cash: $%s
Today's P&L: $%s (%+.2f%%)

=== CURRENT POSITIONS ===
%s

=== HALAL-COMPLIANT STOCK UNIVERSE ===
%s

=== MARKET DATA (Snapshots) ===
%s

=== RECENT PRICE BARS (5-day daily) ===
%s

=== SENTIMENT ANALYSIS ===
%s

Based on this data, what trades should I make right now? Remember: optimize for %.0f%%+ daily return with proper risk management.`

// EquityStrategy prompts the model for intraday equity decisions.
type EquityStrategy struct {
	oracle Oracle
	audit  DecisionWriter
	risk   RiskParams
	logger *zap.Logger
}

// NewEquityStrategy builds the equity strategy.
func NewEquityStrategy(oracle Oracle, audit DecisionWriter, risk RiskParams, logger *zap.Logger) *EquityStrategy {
	return &EquityStrategy{oracle: oracle, audit: audit, risk: risk, logger: logger}
}

// Analyze consults the model and returns a validated plan. It never fails:
// any model or parse error yields an empty plan, and exactly one decision
// record is written either way.
func (s *EquityStrategy) Analyze(ctx context.Context, in EquityInput) domain.TradingPlan {
	sentiment := in.Sentiment
	if sentiment == "" {
		sentiment = "Sentiment data: not available"
	}

	userPrompt := fmt.Sprintf(equityUserPromptTemplate,
		in.Account.BuyingPower.StringFixed(2),
		in.Account.PortfolioValue.StringFixed(2),
		in.Account.Cash.StringFixed(2),
		in.TodayPnL.StringFixed(2),
		pnlPct(in.TodayPnL, in.Account.PortfolioValue),
		formatPositions(in.Positions),
		strings.Join(in.Universe, ", "),
		formatSnapshots(in.Universe, in.Snapshots),
		formatBars(in.Universe, in.Bars),
		sentiment,
		s.risk.DailyReturnTarget*100)

	started := time.Now()
	raw, err := s.oracle.GenerateJSON(ctx, equitySystemPrompt(s.risk), userPrompt)
	elapsed := time.Since(started).Milliseconds()

	record := domain.DecisionRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Domain:    "equity",
		Provider:  s.oracle.Provider(),
		Model:     s.oracle.Model(),
		ElapsedMs: elapsed,
	}

	if err != nil {
		s.logger.Error("equity analysis failed", zap.Int64("elapsed_ms", elapsed), zap.Error(err))
		record.Error = err.Error()
		s.writeRecord(record)
		return domain.EmptyPlan("Analysis failed - holding positions", err.Error())
	}

	plan, err := domain.ParseTradingPlan(raw)
	if err != nil {
		s.logger.Error("equity plan rejected", zap.Error(err))
		record.Error = err.Error()
		record.RawResponse = raw
		s.writeRecord(record)
		return domain.EmptyPlan("Unusable model response - holding positions", err.Error())
	}

	record.RawResponse = raw
	record.Buys = len(plan.Buys())
	record.Sells = len(plan.Sells())
	record.Holds = len(plan.Holds())
	for _, d := range plan.Decisions {
		record.Symbols = append(record.Symbols, d.Symbol)
	}
	s.writeRecord(record)

	s.logger.Info("equity analysis complete",
		zap.Int64("elapsed_ms", elapsed),
		zap.Int("buys", record.Buys),
		zap.Int("sells", record.Sells),
		zap.Int("holds", record.Holds))

	return plan
}

func (s *EquityStrategy) writeRecord(rec domain.DecisionRecord) {
	if err := s.audit.Append(rec); err != nil {
		s.logger.Warn("failed to persist decision record", zap.Error(err))
	}
}
