package service

import (
	"context"
	"fmt"

	"github.com/dushixiang/flux/internal/config"
	"github.com/dushixiang/flux/pkg/exchange"
	"github.com/dushixiang/flux/pkg/ta"
	"go.uber.org/zap"
)

// IndicatorService 技术指标计算服务
type IndicatorService struct {
	logger   *zap.Logger
	market   exchange.MarketDataSource
	interval string
}

func NewIndicatorService(logger *zap.Logger, market exchange.MarketDataSource, conf *config.Config) *IndicatorService {
	return &IndicatorService{
		logger:   logger,
		market:   market,
		interval: conf.Trading.KlineInterval,
	}
}

// Compute 计算单个交易对的指标集
func (s *IndicatorService) Compute(ctx context.Context, symbol string) (ta.IndicatorSet, error) {
	klines, err := s.market.GetKlines(ctx, symbol, s.interval, 100)
	if err != nil {
		return ta.IndicatorSet{}, fmt.Errorf("failed to load klines for %s: %w", symbol, err)
	}

	highs := make([]float64, 0, len(klines))
	lows := make([]float64, 0, len(klines))
	closes := make([]float64, 0, len(klines))
	for _, k := range klines {
		highs = append(highs, k.High)
		lows = append(lows, k.Low)
		closes = append(closes, k.Close)
	}

	set, ok := ta.Compute(highs, lows, closes)
	if !ok {
		return ta.IndicatorSet{}, fmt.Errorf("not enough klines for %s: got %d, need %d", symbol, len(closes), ta.MinBars)
	}
	return set, nil
}

// ComputeAll 计算多个交易对的指标集，单个交易对失败时跳过并记录
func (s *IndicatorService) ComputeAll(ctx context.Context, symbols []string) map[string]ta.IndicatorSet {
	result := make(map[string]ta.IndicatorSet, len(symbols))
	for _, symbol := range symbols {
		set, err := s.Compute(ctx, symbol)
		if err != nil {
			s.logger.Warn("failed to compute indicators",
				zap.String("symbol", symbol),
				zap.Error(err))
			continue
		}
		result[symbol] = set
	}
	return result
}
