package clients

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/amanabot/amana/internal/domain"
)

// BybitClient is the alternate spot venue adapter: tickers, klines,
// unified-wallet balances and market orders over the V5 API.
type BybitClient struct {
	client *bybit.Client
	logger *zap.Logger
}

// NewBybitClient creates the Bybit V5 adapter. Keys may be empty for
// read-only market data usage.
func NewBybitClient(apiKey, apiSecret string, logger *zap.Logger) *BybitClient {
	client := bybit.NewClient()
	if apiKey != "" {
		client = client.WithAuth(apiKey, apiSecret)
	}
	return &BybitClient{client: client, logger: logger}
}

// GetBalances returns non-zero unified wallet balances. Bybit does not
// split free/locked in the wallet row, so the full balance reports as free.
func (b *BybitClient) GetBalances(ctx context.Context) ([]domain.Balance, error) {
	res, err := b.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5("UNIFIED"), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch bybit wallet balance")
	}
	if len(res.Result.List) == 0 {
		return nil, errors.New("bybit returned empty wallet list")
	}

	var balances []domain.Balance
	for _, coin := range res.Result.List[0].Coin {
		amount, err := decimal.NewFromString(coin.WalletBalance)
		if err != nil || amount.IsZero() {
			continue
		}
		balances = append(balances, domain.Balance{
			Asset: string(coin.Coin),
			Free:  amount,
		})
	}
	return balances, nil
}

// GetAccount values the unified wallet in USDT. Stablecoins count at par,
// other assets through their USDT ticker; unvaluable assets are skipped.
func (b *BybitClient) GetAccount(ctx context.Context) (domain.CryptoAccount, error) {
	balances, err := b.GetBalances(ctx)
	if err != nil {
		return domain.CryptoAccount{}, err
	}

	total := decimal.Zero
	for _, bal := range balances {
		switch bal.Asset {
		case "USDT", "USDC", "BUSD", "FDUSD":
			total = total.Add(bal.Free)
			continue
		}

		price, err := b.TickerPrice(ctx, bal.Asset+"USDT")
		if err != nil {
			b.logger.Warn("cannot value asset, skipping",
				zap.String("asset", bal.Asset), zap.Error(err))
			continue
		}
		total = total.Add(bal.Free.Mul(price))
	}

	return domain.CryptoAccount{TotalUSDT: total, AvailableUSDT: total}, nil
}

// TickerPrice returns the last traded spot price for the symbol.
func (b *BybitClient) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	sym := bybit.SymbolV5(symbol)
	result, err := b.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   &sym,
	})
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to fetch bybit ticker for %s", symbol)
	}
	if len(result.Result.Spot.List) == 0 {
		return decimal.Zero, errors.Errorf("bybit returned empty ticker for %s", symbol)
	}

	return decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
}

// GetKlines fetches recent spot candles, oldest first. Bybit returns newest
// first, so the batch is reversed before conversion.
func (b *BybitClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	bybitInterval, err := convertInterval(interval)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid interval %s", interval)
	}

	result, err := b.client.V5().Market().GetKline(bybit.V5GetKlineParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   bybit.SymbolV5(symbol),
		Interval: bybit.Interval(bybitInterval),
		Limit:    &limit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch bybit klines for %s", symbol)
	}
	if result == nil || len(result.Result.List) == 0 {
		return nil, errors.Errorf("no kline data returned from bybit for %s", symbol)
	}

	list := result.Result.List
	candles := make([]domain.Candle, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		k := list[i]

		startMs, err := strconv.ParseInt(k.StartTime, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse start time %q", k.StartTime)
		}
		open, err := decimal.NewFromString(k.Open)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse open price")
		}
		high, err := decimal.NewFromString(k.High)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse high price")
		}
		low, err := decimal.NewFromString(k.Low)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse low price")
		}
		cls, err := decimal.NewFromString(k.Close)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse close price")
		}
		volume, err := decimal.NewFromString(k.Volume)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse volume")
		}

		openTime := time.UnixMilli(startMs)
		candles = append(candles, domain.Candle{
			OpenTime:  openTime,
			CloseTime: openTime, // bybit omits close time
			Open:      open,
			High:      high,
			Low:       low,
			Close:     cls,
			Volume:    volume,
			Closed:    true,
		})
	}

	return candles, nil
}

// PlaceMarketOrder submits a spot market order on Bybit.
func (b *BybitClient) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Action, qty decimal.Decimal) (domain.OrderResult, error) {
	var sideType bybit.Side
	switch side {
	case domain.ActionBuy:
		sideType = bybit.SideBuy
	case domain.ActionSell:
		sideType = bybit.SideSell
	default:
		return domain.OrderResult{}, errors.Errorf("unsupported order side %q", side)
	}

	// bybit spot rejects quantities with excess precision
	qty = qty.RoundFloor(4)

	res, err := b.client.V5().Order().CreateOrder(bybit.V5CreateOrderParam{
		Category:  bybit.CategoryV5Spot,
		Symbol:    bybit.SymbolV5(symbol),
		Side:      sideType,
		OrderType: bybit.OrderTypeMarket,
		Qty:       qty.String(),
	})
	if err != nil {
		return domain.OrderResult{}, errors.Wrapf(err, "failed to place %s order for %s on bybit", side, symbol)
	}

	result := domain.OrderResult{
		OrderID: res.Result.OrderID,
		Symbol:  symbol,
		Side:    side,
		Status:  "submitted",
	}

	b.logger.Info("bybit order placed",
		zap.String("symbol", symbol),
		zap.String("side", side.String()),
		zap.String("qty", qty.String()),
		zap.String("order_id", result.OrderID))

	return result, nil
}

// convertInterval maps "1m"/"1h"/"1d" style intervals to Bybit V5 codes.
func convertInterval(interval string) (string, error) {
	if len(interval) < 2 {
		return "", fmt.Errorf("invalid interval format: %s", interval)
	}

	unit := interval[len(interval)-1]
	numberPart := interval[:len(interval)-1]

	switch unit {
	case 'm':
		return numberPart, nil
	case 'h':
		n, err := strconv.ParseInt(numberPart, 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid interval format: %s", interval)
		}
		return strconv.FormatInt(n*60, 10), nil
	case 'd':
		return "D", nil
	case 'w':
		return "W", nil
	}

	return "", fmt.Errorf("unsupported interval unit in %s", interval)
}
