package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/amanabot/amana/internal/domain"
)

const alpacaTimeout = 30 * time.Second

// AlpacaClient is the equity brokerage adapter. Trading endpoints and
// market data endpoints live on different hosts, hence two REST clients.
type AlpacaClient struct {
	trading *resty.Client
	data    *resty.Client
	logger  *zap.Logger
}

// NewAlpacaClient creates the brokerage adapter. baseURL selects paper or
// live trading; dataURL is the market data host.
func NewAlpacaClient(baseURL, dataURL, apiKey, apiSecret string, logger *zap.Logger) *AlpacaClient {
	newClient := func(url string) *resty.Client {
		return resty.New().
			SetBaseURL(url).
			SetTimeout(alpacaTimeout).
			SetHeader("APCA-API-KEY-ID", apiKey).
			SetHeader("APCA-API-SECRET-KEY", apiSecret)
	}
	return &AlpacaClient{
		trading: newClient(baseURL),
		data:    newClient(dataURL),
		logger:  logger,
	}
}

type alpacaAccount struct {
	Equity         string `json:"equity"`
	Cash           string `json:"cash"`
	BuyingPower    string `json:"buying_power"`
	PortfolioValue string `json:"portfolio_value"`
}

type alpacaClock struct {
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

type alpacaPosition struct {
	Symbol         string `json:"symbol"`
	Qty            string `json:"qty"`
	AvgEntryPrice  string `json:"avg_entry_price"`
	CurrentPrice   string `json:"current_price"`
	MarketValue    string `json:"market_value"`
	UnrealizedPL   string `json:"unrealized_pl"`
	UnrealizedPLPC string `json:"unrealized_plpc"`
}

type alpacaOrder struct {
	ID             string `json:"id"`
	Symbol         string `json:"symbol"`
	Side           string `json:"side"`
	Status         string `json:"status"`
	FilledQty      string `json:"filled_qty"`
	FilledAvgPrice string `json:"filled_avg_price"`
}

type alpacaSnapshot struct {
	LatestTrade struct {
		Price float64 `json:"p"`
	} `json:"latestTrade"`
	LatestQuote struct {
		BidPrice float64 `json:"bp"`
		AskPrice float64 `json:"ap"`
	} `json:"latestQuote"`
	DailyBar struct {
		Volume float64 `json:"v"`
	} `json:"dailyBar"`
	PrevDailyBar struct {
		Close float64 `json:"c"`
	} `json:"prevDailyBar"`
}

type alpacaBarsResponse struct {
	Bars []struct {
		Timestamp time.Time `json:"t"`
		Open      float64   `json:"o"`
		High      float64   `json:"h"`
		Low       float64   `json:"l"`
		Close     float64   `json:"c"`
		Volume    float64   `json:"v"`
	} `json:"bars"`
	NextPageToken *string `json:"next_page_token"`
}

// GetAccount returns the brokerage account snapshot.
func (c *AlpacaClient) GetAccount(ctx context.Context) (domain.Account, error) {
	var out alpacaAccount
	if err := c.get(ctx, c.trading, "/v2/account", nil, &out); err != nil {
		return domain.Account{}, errors.Wrap(err, "failed to fetch account")
	}

	return domain.Account{
		Equity:         parseDecimal(out.Equity),
		Cash:           parseDecimal(out.Cash),
		BuyingPower:    parseDecimal(out.BuyingPower),
		PortfolioValue: parseDecimal(out.PortfolioValue),
	}, nil
}

// GetClock returns the market session state.
func (c *AlpacaClient) GetClock(ctx context.Context) (domain.MarketClock, error) {
	var out alpacaClock
	if err := c.get(ctx, c.trading, "/v2/clock", nil, &out); err != nil {
		return domain.MarketClock{}, errors.Wrap(err, "failed to fetch market clock")
	}
	return domain.MarketClock{IsOpen: out.IsOpen, NextOpen: out.NextOpen, NextClose: out.NextClose}, nil
}

// GetPositions returns all open positions.
func (c *AlpacaClient) GetPositions(ctx context.Context) ([]domain.Position, error) {
	var out []alpacaPosition
	if err := c.get(ctx, c.trading, "/v2/positions", nil, &out); err != nil {
		return nil, errors.Wrap(err, "failed to fetch positions")
	}

	positions := make([]domain.Position, 0, len(out))
	for _, p := range out {
		plpc, _ := parseDecimal(p.UnrealizedPLPC).Float64()
		positions = append(positions, domain.Position{
			Symbol:          p.Symbol,
			Quantity:        parseDecimal(p.Qty),
			AvgEntryPrice:   parseDecimal(p.AvgEntryPrice),
			CurrentPrice:    parseDecimal(p.CurrentPrice),
			MarketValue:     parseDecimal(p.MarketValue),
			UnrealizedPL:    parseDecimal(p.UnrealizedPL),
			UnrealizedPLPct: plpc * 100,
		})
	}
	return positions, nil
}

// GetSnapshot returns the latest quote/trade snapshot for one symbol.
func (c *AlpacaClient) GetSnapshot(ctx context.Context, symbol string) (domain.Snapshot, error) {
	var out alpacaSnapshot
	path := fmt.Sprintf("/v2/stocks/%s/snapshot", symbol)
	if err := c.get(ctx, c.data, path, nil, &out); err != nil {
		return domain.Snapshot{}, errors.Wrapf(err, "failed to fetch snapshot for %s", symbol)
	}

	return domain.Snapshot{
		Symbol:      symbol,
		LatestPrice: decimal.NewFromFloat(out.LatestTrade.Price),
		BidPrice:    decimal.NewFromFloat(out.LatestQuote.BidPrice),
		AskPrice:    decimal.NewFromFloat(out.LatestQuote.AskPrice),
		DailyVolume: decimal.NewFromFloat(out.DailyBar.Volume),
		PrevClose:   decimal.NewFromFloat(out.PrevDailyBar.Close),
	}, nil
}

// GetBars fetches daily bars for the past `days` calendar days, oldest first.
func (c *AlpacaClient) GetBars(ctx context.Context, symbol string, days int) ([]domain.Candle, error) {
	var out alpacaBarsResponse
	path := fmt.Sprintf("/v2/stocks/%s/bars", symbol)
	params := map[string]string{
		"timeframe": "1Day",
		"start":     time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339),
		"limit":     "1000",
		"feed":      "iex",
	}
	if err := c.get(ctx, c.data, path, params, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch bars for %s", symbol)
	}

	candles := make([]domain.Candle, 0, len(out.Bars))
	for _, b := range out.Bars {
		candles = append(candles, domain.Candle{
			OpenTime:  b.Timestamp,
			CloseTime: b.Timestamp.Add(24 * time.Hour),
			Open:      decimal.NewFromFloat(b.Open),
			High:      decimal.NewFromFloat(b.High),
			Low:       decimal.NewFromFloat(b.Low),
			Close:     decimal.NewFromFloat(b.Close),
			Volume:    decimal.NewFromFloat(b.Volume),
			Closed:    true,
		})
	}
	return candles, nil
}

// SnapshotPrice returns the latest trade price for the symbol.
func (c *AlpacaClient) SnapshotPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	snap, err := c.GetSnapshot(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if !snap.LatestPrice.IsPositive() {
		return decimal.Zero, errors.Errorf("no recent trade price for %s", symbol)
	}
	return snap.LatestPrice, nil
}

// PlaceOrder submits a market day order.
func (c *AlpacaClient) PlaceOrder(ctx context.Context, symbol string, side domain.Action, qty decimal.Decimal) (domain.OrderResult, error) {
	body := map[string]string{
		"symbol":        symbol,
		"side":          side.String(),
		"type":          "market",
		"time_in_force": "day",
		"qty":           qty.String(),
	}

	var out alpacaOrder
	resp, err := c.trading.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/v2/orders")
	if err != nil {
		return domain.OrderResult{}, errors.Wrapf(err, "failed to place %s order for %s", side, symbol)
	}
	if resp.IsError() {
		return domain.OrderResult{}, errors.Errorf("order for %s rejected with status %d: %s", symbol, resp.StatusCode(), resp.String())
	}

	c.logger.Info("equity order placed",
		zap.String("symbol", symbol),
		zap.String("side", side.String()),
		zap.String("qty", qty.String()),
		zap.String("status", out.Status))

	return domain.OrderResult{
		OrderID:      out.ID,
		Symbol:       symbol,
		Side:         side,
		Status:       out.Status,
		FilledQty:    parseDecimal(out.FilledQty),
		AvgFillPrice: parseDecimal(out.FilledAvgPrice),
	}, nil
}

// ClosePosition liquidates the full position for the symbol.
func (c *AlpacaClient) ClosePosition(ctx context.Context, symbol string) (domain.OrderResult, error) {
	var out alpacaOrder
	resp, err := c.trading.R().
		SetContext(ctx).
		SetResult(&out).
		Delete("/v2/positions/" + symbol)
	if err != nil {
		return domain.OrderResult{}, errors.Wrapf(err, "failed to close position %s", symbol)
	}
	if resp.IsError() {
		return domain.OrderResult{}, errors.Errorf("close position %s failed with status %d: %s", symbol, resp.StatusCode(), resp.String())
	}

	return domain.OrderResult{
		OrderID:      out.ID,
		Symbol:       symbol,
		Side:         domain.ActionSell,
		Status:       out.Status,
		FilledQty:    parseDecimal(out.FilledQty),
		AvgFillPrice: parseDecimal(out.FilledAvgPrice),
	}, nil
}

// CloseAllPositions liquidates every open position, cancelling open orders.
func (c *AlpacaClient) CloseAllPositions(ctx context.Context) error {
	resp, err := c.trading.R().
		SetContext(ctx).
		SetQueryParam("cancel_orders", "true").
		Delete("/v2/positions")
	if err != nil {
		return errors.Wrap(err, "failed to close all positions")
	}
	if resp.IsError() {
		return errors.Errorf("close all positions failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Info("all equity positions closed")
	return nil
}

func (c *AlpacaClient) get(ctx context.Context, client *resty.Client, path string, params map[string]string, out any) error {
	req := client.R().SetContext(ctx).SetResult(out)
	if params != nil {
		req = req.SetQueryParams(params)
	}

	resp, err := req.Get(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return errors.Errorf("GET %s returned status %d: %s", path, resp.StatusCode(), resp.String())
	}
	return nil
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
