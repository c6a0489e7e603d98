package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

// BinanceClient Binance现货行情客户端
type BinanceClient struct {
	client *binance.Client
}

// NewBinanceClient 创建Binance行情客户端，不需要交易权限的密钥
func NewBinanceClient(apiKey, secretKey, proxyURL string, testnet bool) *BinanceClient {
	var client *binance.Client
	if proxyURL != "" {
		client = binance.NewProxiedClient(apiKey, secretKey, proxyURL)
	} else {
		client = binance.NewClient(apiKey, secretKey)
	}

	if testnet {
		binance.UseTestnet = true
	}

	return &BinanceClient{client: client}
}

// GetPrices 批量获取最新价格，symbols 为空时返回全部交易对
func (b *BinanceClient) GetPrices(ctx context.Context, symbols []string) ([]*SymbolPrice, error) {
	prices, err := b.client.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}

	wanted := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		wanted[symbol] = true
	}

	observedAt := time.Now()
	result := make([]*SymbolPrice, 0, len(symbols))
	for _, p := range prices {
		if len(wanted) > 0 && !wanted[p.Symbol] {
			continue
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			continue
		}
		result = append(result, &SymbolPrice{
			Symbol:     p.Symbol,
			Price:      price,
			ObservedAt: observedAt,
		})
	}

	return result, nil
}

// GetCurrentPrice 获取单个交易对的当前价格
func (b *BinanceClient) GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get current price: %w", err)
	}

	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("no price data for symbol %s", symbol)
	}

	price, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q for symbol %s: %w", prices[0].Price, symbol, err)
	}
	return price, nil
}

// GetKlines 获取K线数据
func (b *BinanceClient) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*Kline, error) {
	klines, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get klines: %w", err)
	}

	result := make([]*Kline, 0, len(klines))
	for _, k := range klines {
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		close, _ := strconv.ParseFloat(k.Close, 64)
		volume, _ := strconv.ParseFloat(k.Volume, 64)

		result = append(result, &Kline{
			OpenTime:  time.Unix(k.OpenTime/1000, 0),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			CloseTime: time.Unix(k.CloseTime/1000, 0),
		})
	}

	return result, nil
}
