package screener

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amanabot/amana/internal/clients"
	"github.com/amanabot/amana/internal/domain"
)

// DefaultMinMarketCap is the legitimacy floor in USD.
const DefaultMinMarketCap = 1_000_000_000

// prohibitedCategories reject a token outright.
var prohibitedCategories = map[string]struct{}{
	"gambling":                         {},
	"adult":                            {},
	"adult-content":                    {},
	"casino":                           {},
	"lending-borrowing":                {},
	"interest-bearing":                 {},
	"wrapped-interest-bearing-tokens":  {},
	"ponzi":                            {},
	"insurance":                        {},
}

// prohibitedTags reject token types with no permissible utility.
var prohibitedTags = map[string]struct{}{
	"meme-token":      {},
	"meme":            {},
	"rebase-tokens":   {},
	"leveraged-token": {},
	"gambling":        {},
	"nsfw":            {},
}

// DefaultHalalAllowList holds CoinGecko ids of tokens that pass all
// scholarly criteria and are always considered halal.
var DefaultHalalAllowList = []string{
	"bitcoin", "ethereum", "cardano", "solana", "ripple",
	"polkadot", "avalanche-2", "chainlink", "polygon-ecosystem-token",
	"algorand", "cosmos", "stellar", "near", "hedera-hashgraph",
	"internet-computer", "tezos", "fantom", "aptos",
}

// MetadataProvider lists token metadata for screening.
type MetadataProvider interface {
	TopCoins(ctx context.Context) ([]clients.CoinMeta, error)
}

// CryptoScreener applies the rule pipeline (deny list, allow list,
// prohibited categories, prohibited tags, market-cap floor) to token
// metadata and caches the verdicts.
type CryptoScreener struct {
	cache        VerdictCache
	provider     MetadataProvider
	minMarketCap float64
	allowList    map[string]struct{}
	denyList     map[string]struct{}
	maxAge       time.Duration
	logger       *zap.Logger
}

// NewCryptoScreener builds the screener. Empty allow/deny lists fall back
// to the defaults (allow) and nothing (deny).
func NewCryptoScreener(cache VerdictCache, provider MetadataProvider, minMarketCap float64, allowList, denyList []string, maxAge time.Duration, logger *zap.Logger) *CryptoScreener {
	if minMarketCap <= 0 {
		minMarketCap = DefaultMinMarketCap
	}
	if maxAge <= 0 {
		maxAge = DefaultCacheMaxAge
	}
	if len(allowList) == 0 {
		allowList = DefaultHalalAllowList
	}

	toSet := func(items []string) map[string]struct{} {
		set := make(map[string]struct{}, len(items))
		for _, item := range items {
			set[strings.ToLower(item)] = struct{}{}
		}
		return set
	}

	return &CryptoScreener{
		cache:        cache,
		provider:     provider,
		minMarketCap: minMarketCap,
		allowList:    toSet(allowList),
		denyList:     toSet(denyList),
		maxAge:       maxAge,
		logger:       logger,
	}
}

// RefreshScreening rescreens the top tokens unless the cache is fresh.
// Repeated calls inside the freshness window hit the provider only once.
func (s *CryptoScreener) RefreshScreening(ctx context.Context) error {
	if s.cache.Fresh(s.maxAge) {
		s.logger.Debug("crypto compliance cache is fresh, skipping refresh")
		return nil
	}

	coins, err := s.provider.TopCoins(ctx)
	if err != nil {
		return err
	}

	screened := 0
	for _, coin := range coins {
		status, criteria := s.screenCoin(coin)
		err := s.cache.Upsert(domain.ComplianceRecord{
			Symbol:    coin.Symbol,
			Status:    status,
			Source:    criteria["source"],
			MarketCap: coin.MarketCap,
			Criteria:  criteria,
			UpdatedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		screened++
	}

	s.logger.Info("crypto compliance cache refreshed", zap.Int("coins", screened))
	return nil
}

// screenCoin runs the rule pipeline in strict order. The deny list wins
// over everything, including the allow list.
func (s *CryptoScreener) screenCoin(coin clients.CoinMeta) (domain.ComplianceStatus, map[string]string) {
	criteria := map[string]string{}
	id := strings.ToLower(coin.ID)
	symbol := strings.ToLower(coin.Symbol)

	_, deniedByID := s.denyList[id]
	_, deniedBySymbol := s.denyList[symbol]
	if deniedByID || deniedBySymbol {
		criteria["manual_deny"] = "true"
		criteria["source"] = "deny_list"
		return domain.StatusNotHalal, criteria
	}

	if _, allowed := s.allowList[id]; allowed {
		criteria["manual_override"] = "true"
		criteria["source"] = "allow_list"
		return domain.StatusHalal, criteria
	}

	if hit := firstMatch(coin.Categories, prohibitedCategories); hit != "" {
		criteria["prohibited_category"] = hit
		criteria["source"] = "rules"
		return domain.StatusNotHalal, criteria
	}
	criteria["category_check"] = "passed"

	if hit := firstMatch(coin.Categories, prohibitedTags); hit != "" {
		criteria["prohibited_tag"] = hit
		criteria["source"] = "rules"
		return domain.StatusNotHalal, criteria
	}
	criteria["tag_check"] = "passed"

	if coin.MarketCap < s.minMarketCap {
		criteria["market_cap"] = fmt.Sprintf("%.0f", coin.MarketCap)
		criteria["min_required"] = fmt.Sprintf("%.0f", s.minMarketCap)
		criteria["legitimacy_check"] = "failed"
		criteria["source"] = "rules"
		return domain.StatusDoubtful, criteria
	}
	criteria["legitimacy_check"] = "passed"

	criteria["all_checks"] = "passed"
	criteria["source"] = "rules"
	return domain.StatusHalal, criteria
}

func firstMatch(items []string, set map[string]struct{}) string {
	for _, item := range items {
		if _, ok := set[strings.ToLower(item)]; ok {
			return strings.ToLower(item)
		}
	}
	return ""
}

// IsHalal answers for a base asset from the cache only.
func (s *CryptoScreener) IsHalal(asset string) bool {
	rec, ok := s.cache.Get(asset)
	return ok && rec.Status.IsHalal()
}

// HalalAssets returns every cached halal base asset, sorted.
func (s *CryptoScreener) HalalAssets() []string {
	return s.cache.HalalSymbols()
}

// FilterHalalPairs keeps pairs whose base asset is cached halal,
// preserving input order. Unparseable symbols are dropped.
func (s *CryptoScreener) FilterHalalPairs(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		pair, err := domain.ParsePair(symbol)
		if err != nil {
			s.logger.Warn("skipping unparseable pair", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		if s.IsHalal(pair.Base) {
			out = append(out, symbol)
		}
	}
	return out
}
