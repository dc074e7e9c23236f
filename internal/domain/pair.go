// Package domain defines core data structures used throughout the trading agent.
package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// quoteAssets lists the quote currencies a spot pair may end with,
// longest suffix first so FDUSD is not mistaken for USD-something.
var quoteAssets = []string{"FDUSD", "USDT", "USDC", "BUSD", "BTC", "ETH"}

// Pair is a spot trading pair.
type Pair struct {
	// Base currency symbol, e.g. BTC.
	Base string
	// Quote currency symbol, e.g. USDT.
	Quote string
}

// ParsePair splits an exchange symbol into base and quote using an explicit
// quote table. Symbols with a separator ("BTC_USDT", "BTC/USDT", "BTC-USDT")
// are split at the separator; bare symbols ("BTCUSDT") are matched against
// known quote suffixes. Unknown quotes are an error, not a guess.
func ParsePair(symbol string) (Pair, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return Pair{}, errors.New("empty pair symbol")
	}

	if i := strings.IndexAny(s, "_-/"); i > 0 {
		base, quote := s[:i], s[i+1:]
		if base == "" || quote == "" {
			return Pair{}, errors.Errorf("malformed pair symbol %q", symbol)
		}
		return Pair{Base: base, Quote: quote}, nil
	}

	for _, q := range quoteAssets {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return Pair{Base: s[:len(s)-len(q)], Quote: q}, nil
		}
	}

	return Pair{}, errors.Errorf("unknown quote currency in pair %q", symbol)
}

// IsQuoteAsset reports whether the given asset is a known quote currency.
func IsQuoteAsset(asset string) bool {
	a := strings.ToUpper(asset)
	for _, q := range quoteAssets {
		if a == q {
			return true
		}
	}
	return a == "USD"
}

// String returns the underscore-separated representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.Base, p.Quote)
}

// Symbol returns the concatenated exchange symbol.
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.Base, p.Quote)
}
