//go:build wireinject
// +build wireinject

package internal

import (
	"github.com/google/wire"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dushixiang/flux/internal/config"
	"github.com/dushixiang/flux/internal/handler"
	"github.com/dushixiang/flux/internal/service"
	"github.com/dushixiang/flux/pkg/exchange"
)

var (
	handlerSet = wire.NewSet(
		handler.NewAccountHandler,
		handler.NewStreamHandler,
	)

	tradingSet = wire.NewSet(
		provideBinanceClient,
		wire.Bind(new(exchange.MarketDataSource), new(*exchange.BinanceClient)),
		providePriceCache,
		provideHub,
		service.NewAccountLocks,
		service.NewNewsService,
		service.NewIndicatorService,
		service.NewMarketService,
		service.NewPromptService,
		service.NewAgentService,
		wire.Bind(new(service.Decider), new(*service.AgentService)),
		service.NewLedgerService,
		service.NewExecutorService,
		service.NewEngineService,
		service.NewSchedulerService,
		service.NewAccountService,
		service.NewPricefeedService,
	)
)

// InitializeApp 初始化应用
func InitializeApp(logger *zap.Logger, db *gorm.DB, conf *config.Config) (*AppComponents, error) {
	wire.Build(
		handlerSet,
		tradingSet,
		provideTelegram,
		provideNotifier,
		wire.Struct(new(AppComponents), "*"),
	)
	return nil, nil
}
