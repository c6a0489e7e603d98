package service

import (
	"context"
	"time"

	"github.com/dushixiang/flux/internal/config"
	"github.com/dushixiang/flux/internal/pricecache"
	"github.com/dushixiang/flux/internal/repo"
	"github.com/dushixiang/flux/pkg/exchange"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PricefeedService 价格刷新任务。
// 周期性拉取所有账户关注交易对的最新价格写入缓存，
// 单次失败只影响本轮刷新，下一轮照常进行。
type PricefeedService struct {
	logger *zap.Logger

	accountRepo *repo.AccountRepo
	market      exchange.MarketDataSource
	cache       *pricecache.Cache

	interval time.Duration
	cancel   context.CancelFunc
}

func NewPricefeedService(
	db *gorm.DB,
	logger *zap.Logger,
	market exchange.MarketDataSource,
	cache *pricecache.Cache,
	conf *config.Config,
) *PricefeedService {
	return &PricefeedService{
		logger:      logger,
		accountRepo: repo.NewAccountRepo(db),
		market:      market,
		cache:       cache,
		interval:    time.Duration(conf.Trading.PriceRefreshSeconds) * time.Second,
	}
}

// Start 启动后台刷新
func (s *PricefeedService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		// 启动即刷新一次，让首个周期有价格可用
		s.refreshOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.refreshOnce(ctx)
				s.cache.Sweep()
			case <-ctx.Done():
				s.logger.Info("price feed stopped")
				return
			}
		}
	}()

	s.logger.Info("price feed started", zap.Duration("interval", s.interval))
}

// Stop 停止后台刷新
func (s *PricefeedService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// refreshOnce 刷新一轮所有账户关注的交易对
func (s *PricefeedService) refreshOnce(ctx context.Context) {
	symbols, err := s.trackedSymbols(ctx)
	if err != nil {
		s.logger.Error("failed to load tracked symbols", zap.Error(err))
		return
	}
	if len(symbols) == 0 {
		return
	}

	prices, err := s.market.GetPrices(ctx, symbols)
	if err != nil {
		s.logger.Error("failed to refresh prices", zap.Error(err))
		return
	}

	for _, p := range prices {
		s.cache.Put(p.Symbol, p.Price, p.ObservedAt)
	}

	s.logger.Debug("prices refreshed",
		zap.Int("requested", len(symbols)),
		zap.Int("received", len(prices)))
}

// trackedSymbols 计算所有账户关注交易对的并集
func (s *PricefeedService) trackedSymbols(ctx context.Context) ([]string, error) {
	accounts, err := s.accountRepo.FindAllOrderByCreatedAt(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var symbols []string
	for _, account := range accounts {
		for _, symbol := range account.Symbols {
			if !seen[symbol] {
				seen[symbol] = true
				symbols = append(symbols, symbol)
			}
		}
	}
	return symbols, nil
}
