package clients

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/amanabot/amana/internal/domain"
)

// BinanceBroker is the spot trading adapter for Binance.
type BinanceBroker struct {
	client *binance.Client
	logger *zap.Logger
}

// NewBinanceBroker creates the Binance spot adapter. testnet switches the
// whole library to the Binance spot testnet endpoints.
func NewBinanceBroker(apiKey, apiSecret string, testnet bool, logger *zap.Logger) *BinanceBroker {
	binance.UseTestnet = testnet
	return &BinanceBroker{
		client: binance.NewClient(apiKey, apiSecret),
		logger: logger,
	}
}

// GetBalances returns all non-zero spot balances.
func (b *BinanceBroker) GetBalances(ctx context.Context) ([]domain.Balance, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch binance account")
	}

	balances := make([]domain.Balance, 0, len(account.Balances))
	for _, bal := range account.Balances {
		free, err := decimal.NewFromString(bal.Free)
		if err != nil {
			continue
		}
		locked, err := decimal.NewFromString(bal.Locked)
		if err != nil {
			continue
		}
		if free.IsZero() && locked.IsZero() {
			continue
		}
		balances = append(balances, domain.Balance{Asset: bal.Asset, Free: free, Locked: locked})
	}

	return balances, nil
}

// GetAccount values every spot balance in USDT. Assets without a USDT
// market are skipped with a warning rather than failing the whole call.
func (b *BinanceBroker) GetAccount(ctx context.Context) (domain.CryptoAccount, error) {
	balances, err := b.GetBalances(ctx)
	if err != nil {
		return domain.CryptoAccount{}, err
	}

	var account domain.CryptoAccount
	for _, bal := range balances {
		total := bal.Free.Add(bal.Locked)
		asset := strings.ToUpper(bal.Asset)

		var value, freeValue decimal.Decimal
		switch {
		case asset == "USDT":
			value, freeValue = total, bal.Free
		case domain.IsQuoteAsset(asset):
			// other stables counted at par
			value, freeValue = total, bal.Free
		default:
			price, err := b.TickerPrice(ctx, asset+"USDT")
			if err != nil {
				b.logger.Warn("no USDT valuation for asset",
					zap.String("asset", asset), zap.Error(err))
				continue
			}
			value = total.Mul(price)
			freeValue = bal.Free.Mul(price)
		}

		account.TotalUSDT = account.TotalUSDT.Add(value)
		account.AvailableUSDT = account.AvailableUSDT.Add(freeValue)
	}

	account.InOrdersUSDT = account.TotalUSDT.Sub(account.AvailableUSDT)
	return account, nil
}

// TickerPrice returns the latest traded price for the symbol.
func (b *BinanceBroker) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to fetch ticker for %s", symbol)
	}
	if len(prices) == 0 {
		return decimal.Zero, errors.Errorf("no ticker returned for %s", symbol)
	}

	price, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to parse ticker price for %s", symbol)
	}
	return price, nil
}

// GetKlines fetches recent candles over REST, oldest first.
func (b *BinanceBroker) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	klines, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines for %s", symbol)
	}

	result := make([]domain.Candle, 0, len(klines))
	for i, k := range klines {
		open, err := decimal.NewFromString(k.Open)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse open price at index %d", i)
		}
		high, err := decimal.NewFromString(k.High)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse high price at index %d", i)
		}
		low, err := decimal.NewFromString(k.Low)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse low price at index %d", i)
		}
		cls, err := decimal.NewFromString(k.Close)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse close price at index %d", i)
		}
		volume, err := decimal.NewFromString(k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse volume at index %d", i)
		}

		result = append(result, domain.Candle{
			OpenTime:  time.UnixMilli(k.OpenTime),
			CloseTime: time.UnixMilli(k.CloseTime),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     cls,
			Volume:    volume,
			Closed:    true,
		})
	}

	return result, nil
}

// GetOrderBook returns a depth snapshot for the symbol.
func (b *BinanceBroker) GetOrderBook(ctx context.Context, symbol string, depth int) (domain.OrderBook, error) {
	res, err := b.client.NewDepthService().Symbol(symbol).Limit(depth).Do(ctx)
	if err != nil {
		return domain.OrderBook{}, errors.Wrapf(err, "failed to fetch order book for %s", symbol)
	}

	book := domain.OrderBook{Symbol: symbol}
	for _, bid := range res.Bids {
		price, qty, err := parseBookLevel(bid.Price, bid.Quantity)
		if err != nil {
			continue
		}
		book.Bids = append(book.Bids, domain.BookLevel{Price: price, Quantity: qty})
	}
	for _, ask := range res.Asks {
		price, qty, err := parseBookLevel(ask.Price, ask.Quantity)
		if err != nil {
			continue
		}
		book.Asks = append(book.Asks, domain.BookLevel{Price: price, Quantity: qty})
	}

	return book, nil
}

func parseBookLevel(priceStr, qtyStr string) (decimal.Decimal, decimal.Decimal, error) {
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	qty, err := decimal.NewFromString(qtyStr)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return price, qty, nil
}

// PlaceMarketOrder submits a spot market order and returns the fill summary.
// The average fill price is computed from the fills array; when empty it
// falls back to cumulative quote over executed quantity.
func (b *BinanceBroker) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Action, qty decimal.Decimal) (domain.OrderResult, error) {
	var sideType binance.SideType
	switch side {
	case domain.ActionBuy:
		sideType = binance.SideTypeBuy
	case domain.ActionSell:
		sideType = binance.SideTypeSell
	default:
		return domain.OrderResult{}, errors.Errorf("unsupported order side %q", side)
	}

	order, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(sideType).
		Type(binance.OrderTypeMarket).
		Quantity(qty.String()).
		NewClientOrderID("amana-" + uuid.NewString()).
		Do(ctx)
	if err != nil {
		return domain.OrderResult{}, errors.Wrapf(err, "failed to place %s order for %s", side, symbol)
	}

	executed, _ := decimal.NewFromString(order.ExecutedQuantity)
	result := domain.OrderResult{
		OrderID:      strconv.FormatInt(order.OrderID, 10),
		Symbol:       symbol,
		Side:         side,
		Status:       string(order.Status),
		FilledQty:    executed,
		AvgFillPrice: extractFillPrice(order),
	}

	b.logger.Info("binance order placed",
		zap.String("symbol", symbol),
		zap.String("side", side.String()),
		zap.String("qty", qty.String()),
		zap.String("status", result.Status),
		zap.String("fill_price", result.AvgFillPrice.String()))

	return result, nil
}

func extractFillPrice(order *binance.CreateOrderResponse) decimal.Decimal {
	totalQty, totalQuote := decimal.Zero, decimal.Zero
	for _, fill := range order.Fills {
		price, err := decimal.NewFromString(fill.Price)
		if err != nil {
			continue
		}
		qty, err := decimal.NewFromString(fill.Quantity)
		if err != nil {
			continue
		}
		totalQty = totalQty.Add(qty)
		totalQuote = totalQuote.Add(price.Mul(qty))
	}
	if totalQty.IsPositive() {
		return totalQuote.Div(totalQty)
	}

	executed, err := decimal.NewFromString(order.ExecutedQuantity)
	if err != nil || !executed.IsPositive() {
		return decimal.Zero
	}
	quote, err := decimal.NewFromString(order.CummulativeQuoteQuantity)
	if err != nil {
		return decimal.Zero
	}
	return quote.Div(executed)
}
