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

// CryptoInput is everything the crypto strategy feeds the model.
type CryptoInput struct {
	Account    domain.CryptoAccount
	Balances   []domain.Balance
	Pairs      []string
	Klines     map[string][]domain.Candle
	OrderBooks map[string]domain.OrderBook
	TodayPnL   decimal.Decimal
}

const cryptoUserPromptTemplate = `=== PORTFOLIO STATUS ===
Total Balance: $%s USDT
Available: $%s USDT
In Orders: $%s USDT
Today's P&L: $%s (%+.2f%%)

=== CURRENT POSITIONS ===
%s

=== HALAL-COMPLIANT PAIRS ===
%s

=== TECHNICAL INDICATORS (1-minute candles) ===
%s

=== ORDER BOOK SUMMARY ===
%s

Based on these indicators, what trades should I make right now? Remember: optimize for %.0f%%+ daily return with tight risk management. Account for 0.2%% round-trip fees in your calculations.`

// CryptoStrategy prompts the model for short-horizon crypto decisions.
type CryptoStrategy struct {
	oracle Oracle
	audit  DecisionWriter
	risk   RiskParams
	logger *zap.Logger
}

// NewCryptoStrategy builds the crypto strategy.
func NewCryptoStrategy(oracle Oracle, audit DecisionWriter, risk RiskParams, logger *zap.Logger) *CryptoStrategy {
	return &CryptoStrategy{oracle: oracle, audit: audit, risk: risk, logger: logger}
}

// Analyze consults the model and returns a validated plan. It never fails:
// any model or parse error yields an empty plan, and exactly one decision
// record is written either way.
func (s *CryptoStrategy) Analyze(ctx context.Context, in CryptoInput) domain.TradingPlan {
	userPrompt := fmt.Sprintf(cryptoUserPromptTemplate,
		in.Account.TotalUSDT.StringFixed(2),
		in.Account.AvailableUSDT.StringFixed(2),
		in.Account.InOrdersUSDT.StringFixed(2),
		in.TodayPnL.StringFixed(2),
		pnlPct(in.TodayPnL, in.Account.TotalUSDT),
		formatBalances(in.Balances),
		strings.Join(in.Pairs, ", "),
		formatIndicators(in.Pairs, in.Klines),
		formatOrderBooks(in.Pairs, in.OrderBooks),
		s.risk.DailyReturnTarget*100)

	started := time.Now()
	raw, err := s.oracle.GenerateJSON(ctx, cryptoSystemPrompt(s.risk), userPrompt)
	elapsed := time.Since(started).Milliseconds()

	record := domain.DecisionRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Domain:    "crypto",
		Provider:  s.oracle.Provider(),
		Model:     s.oracle.Model(),
		ElapsedMs: elapsed,
	}

	if err != nil {
		s.logger.Error("crypto analysis failed", zap.Int64("elapsed_ms", elapsed), zap.Error(err))
		record.Error = err.Error()
		s.writeRecord(record)
		return domain.EmptyPlan("Analysis failed - holding positions", err.Error())
	}

	plan, err := domain.ParseTradingPlan(raw)
	if err != nil {
		s.logger.Error("crypto plan rejected", zap.Error(err))
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

	s.logger.Info("crypto analysis complete",
		zap.Int64("elapsed_ms", elapsed),
		zap.Int("buys", record.Buys),
		zap.Int("sells", record.Sells),
		zap.Int("holds", record.Holds))

	return plan
}

func (s *CryptoStrategy) writeRecord(rec domain.DecisionRecord) {
	if err := s.audit.Append(rec); err != nil {
		s.logger.Warn("failed to persist decision record", zap.Error(err))
	}
}
