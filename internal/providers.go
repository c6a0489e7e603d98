package internal

import (
	"net/http"
	"time"

	"github.com/dushixiang/flux/internal/config"
	"github.com/dushixiang/flux/internal/hub"
	"github.com/dushixiang/flux/internal/pricecache"
	"github.com/dushixiang/flux/internal/telegram"
	"github.com/dushixiang/flux/pkg/exchange"
	"go.uber.org/zap"
)

const (
	telegramHTTPTimeout = 10 * time.Second
	eventHubBufferSize  = 256
)

// provideBinanceClient provides Binance market data client
func provideBinanceClient(conf *config.Config, logger *zap.Logger) *exchange.BinanceClient {
	client := exchange.NewBinanceClient(
		conf.Binance.APIKey,
		conf.Binance.Secret,
		conf.Binance.ProxyURL,
		conf.Binance.Testnet,
	)

	logger.Info("Binance client initialized",
		zap.Bool("testnet", conf.Binance.Testnet),
		zap.Bool("has_credentials", conf.Binance.APIKey != "" && conf.Binance.Secret != ""),
	)
	return client
}

// providePriceCache provides the shared price cache
func providePriceCache(conf *config.Config) *pricecache.Cache {
	return pricecache.New(time.Duration(conf.Trading.PriceTTLSeconds) * time.Second)
}

// provideHub provides the event hub
func provideHub(logger *zap.Logger) *hub.Hub {
	return hub.NewHub(eventHubBufferSize, logger)
}

// provideTelegram provides telegram instance
func provideTelegram(logger *zap.Logger, conf *config.Config) *telegram.Telegram {
	if !conf.Telegram.Enabled {
		return nil
	}

	httpClient := &http.Client{Timeout: telegramHTTPTimeout}

	tg, err := telegram.NewTelegram(logger, telegram.Settings{
		Token:  conf.Telegram.Token,
		ChatID: conf.Telegram.ChatID,
		Client: httpClient,
	})
	if err != nil {
		logger.Error("failed to init telegram", zap.Error(err))
		return nil
	}

	return tg
}

// provideNotifier provides the telegram event notifier
func provideNotifier(logger *zap.Logger, tg *telegram.Telegram, eventHub *hub.Hub) *telegram.Notifier {
	if tg == nil {
		return nil
	}
	return telegram.NewNotifier(logger, tg, eventHub)
}
