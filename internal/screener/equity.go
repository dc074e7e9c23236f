// Package screener implements halal compliance screening for equities and
// crypto assets on top of the WAL-backed verdict cache.
package screener

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/amanabot/amana/internal/domain"
)

// DefaultCacheMaxAge is how long cached verdicts stay usable.
const DefaultCacheMaxAge = 24 * time.Hour

// DefaultHalalEquities are large-cap tickers that pass common AAOIFI-style
// screens. Used when no compliance provider is configured.
var DefaultHalalEquities = []string{
	"AAPL", "MSFT", "NVDA", "AVGO", "TSM",
	"GOOG", "GOOGL", "AMZN", "META", "CSCO",
	"ADBE", "CRM", "ORCL", "QCOM", "TXN",
	"AMAT", "INTU", "NOW", "AMD", "SHOP",
}

// VerdictCache is the persistent compliance cache consumed by screeners.
type VerdictCache interface {
	Upsert(rec domain.ComplianceRecord) error
	Get(symbol string) (domain.ComplianceRecord, bool)
	HalalSymbols() []string
	Fresh(maxAge time.Duration) bool
	Len() int
}

// EquityProvider fetches per-symbol compliance reports from an external
// screening service.
type EquityProvider interface {
	ScreenSymbol(ctx context.Context, symbol string) (domain.ComplianceRecord, error)
}

// EquityScreener keeps the equity compliance cache warm and answers
// halal lookups from it. With no provider it falls back to the fixed
// default list.
type EquityScreener struct {
	cache    VerdictCache
	provider EquityProvider
	maxAge   time.Duration
	logger   *zap.Logger
}

// NewEquityScreener builds the screener. provider may be nil.
func NewEquityScreener(cache VerdictCache, provider EquityProvider, maxAge time.Duration, logger *zap.Logger) *EquityScreener {
	if maxAge <= 0 {
		maxAge = DefaultCacheMaxAge
	}
	return &EquityScreener{cache: cache, provider: provider, maxAge: maxAge, logger: logger}
}

// EnsureCache refreshes verdicts for the given symbols unless the cache is
// still fresh. Provider failures for one symbol downgrade that symbol to
// doubtful instead of failing the refresh.
func (s *EquityScreener) EnsureCache(ctx context.Context, symbols []string) error {
	if s.cache.Fresh(s.maxAge) {
		s.logger.Debug("equity compliance cache is fresh, skipping refresh")
		return nil
	}

	if s.provider == nil {
		return s.seedDefaults()
	}

	for _, symbol := range symbols {
		rec, err := s.provider.ScreenSymbol(ctx, symbol)
		if err != nil {
			s.logger.Warn("equity screening failed, marking doubtful",
				zap.String("symbol", symbol), zap.Error(err))
			rec = domain.ComplianceRecord{
				Symbol:    symbol,
				Status:    domain.StatusDoubtful,
				Source:    "provider",
				Criteria:  map[string]string{"error": err.Error()},
				UpdatedAt: time.Now().UTC(),
			}
		}
		if err := s.cache.Upsert(rec); err != nil {
			return err
		}
	}

	s.logger.Info("equity compliance cache refreshed", zap.Int("symbols", len(symbols)))
	return nil
}

func (s *EquityScreener) seedDefaults() error {
	for _, symbol := range DefaultHalalEquities {
		err := s.cache.Upsert(domain.ComplianceRecord{
			Symbol:    symbol,
			Status:    domain.StatusHalal,
			Source:    "default_list",
			Criteria:  map[string]string{"default_list": "member"},
			UpdatedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
	}

	s.logger.Info("no compliance provider configured, seeded default halal list",
		zap.Int("symbols", len(DefaultHalalEquities)))
	return nil
}

// IsHalal answers from the cache only.
func (s *EquityScreener) IsHalal(symbol string) bool {
	rec, ok := s.cache.Get(symbol)
	return ok && rec.Status.IsHalal()
}

// HalalSymbols returns every cached halal ticker, sorted.
func (s *EquityScreener) HalalSymbols() []string {
	return s.cache.HalalSymbols()
}

// FilterHalal keeps only cached-halal symbols, preserving input order.
func (s *EquityScreener) FilterHalal(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if s.IsHalal(symbol) {
			out = append(out, symbol)
		}
	}
	return out
}
