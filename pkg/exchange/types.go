package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SymbolPrice 交易对的一次价格观测
type SymbolPrice struct {
	Symbol     string
	Price      decimal.Decimal
	ObservedAt time.Time
}

// Kline K线数据
type Kline struct {
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// MarketDataSource 行情数据源接口，仅做市场数据读取，不涉及任何下单能力
type MarketDataSource interface {
	GetPrices(ctx context.Context, symbols []string) ([]*SymbolPrice, error)
	GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*Kline, error)
}
