package clients

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinMeta is the token metadata used by the crypto compliance screener.
type CoinMeta struct {
	ID         string
	Symbol     string
	Name       string
	MarketCap  float64
	Categories []string
}

// CoinGeckoClient lists the top tokens by market cap with the metadata the
// screener needs. The free tier allows roughly 30 calls a minute, so calls
// are rate limited.
type CoinGeckoClient struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewCoinGeckoClient creates the metadata provider. apiKey may be empty for
// the keyless free tier.
func NewCoinGeckoClient(apiKey string, logger *zap.Logger) *CoinGeckoClient {
	client := resty.New().
		SetBaseURL(coingeckoBaseURL).
		SetTimeout(30 * time.Second)
	if apiKey != "" {
		client.SetHeader("x-cg-demo-api-key", apiKey)
	}
	return &CoinGeckoClient{
		http:    client,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
		logger:  logger,
	}
}

type coinMarket struct {
	ID        string   `json:"id"`
	Symbol    string   `json:"symbol"`
	Name      string   `json:"name"`
	MarketCap float64  `json:"market_cap"`
	Category  []string `json:"categories,omitempty"`
}

// TopCoins returns the top 100 tokens by market cap.
func (c *CoinGeckoClient) TopCoins(ctx context.Context) ([]CoinMeta, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var out []coinMarket
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"vs_currency": "usd",
			"order":       "market_cap_desc",
			"per_page":    "100",
			"page":        "1",
			"sparkline":   "false",
		}).
		SetResult(&out).
		Get("/coins/markets")
	if err != nil {
		return nil, errors.Wrap(err, "coingecko request failed")
	}
	if resp.IsError() {
		return nil, errors.Errorf("coingecko returned status %d: %s", resp.StatusCode(), resp.String())
	}

	coins := make([]CoinMeta, 0, len(out))
	for _, m := range out {
		categories := make([]string, 0, len(m.Category))
		for _, cat := range m.Category {
			if cat == "" {
				continue
			}
			categories = append(categories, strings.ReplaceAll(strings.ToLower(cat), " ", "-"))
		}
		coins = append(coins, CoinMeta{
			ID:         m.ID,
			Symbol:     strings.ToUpper(m.Symbol),
			Name:       m.Name,
			MarketCap:  m.MarketCap,
			Categories: categories,
		})
	}

	c.logger.Debug("fetched coin metadata", zap.Int("count", len(coins)))
	return coins, nil
}
