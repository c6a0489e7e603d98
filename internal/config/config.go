package config

type Config struct {
	Telegram TelegramConf `json:"telegram"`
	Binance  BinanceConf  `json:"binance"`
	Trading  TradingConf  `json:"trading"`
	News     NewsConf     `json:"news"`
}

type TelegramConf struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  string `json:"chat_id"`
}

type BinanceConf struct {
	APIKey   string `json:"api_key"`
	Secret   string `json:"secret"`
	ProxyURL string `json:"proxy_url"` // 代理地址，例如: http://127.0.0.1:7890
	Testnet  bool   `json:"testnet"`   // 是否使用测试网
}

type TradingConf struct {
	CommissionRate         float64 `json:"commission_rate"`          // 成交手续费率，默认0.001
	DefaultIntervalMinutes int     `json:"default_interval_minutes"` // 账户默认决策周期（分钟），默认30
	DecisionTimeoutSeconds int     `json:"decision_timeout_seconds"` // 单次决策请求超时（秒），默认120
	RetryMax               int     `json:"retry_max"`                // 决策请求瞬时故障最大重试次数，默认2
	PriceTTLSeconds        int     `json:"price_ttl_seconds"`        // 价格缓存的新鲜度窗口（秒），默认60
	PriceRefreshSeconds    int     `json:"price_refresh_seconds"`    // 价格刷新任务周期（秒），默认15
	KlineInterval          string  `json:"kline_interval"`           // 技术指标使用的K线周期，默认1h
}

type NewsConf struct {
	FeedURL string `json:"feed_url"` // JSON格式的新闻源地址，为空时不提供新闻上下文
}

// Normalize 补齐零值配置的默认值
func (c *TradingConf) Normalize() {
	if c.CommissionRate <= 0 {
		c.CommissionRate = 0.001
	}
	if c.DefaultIntervalMinutes <= 0 {
		c.DefaultIntervalMinutes = 30
	}
	if c.DecisionTimeoutSeconds <= 0 {
		c.DecisionTimeoutSeconds = 120
	}
	if c.RetryMax < 0 {
		c.RetryMax = 2
	}
	if c.PriceTTLSeconds <= 0 {
		c.PriceTTLSeconds = 60
	}
	if c.PriceRefreshSeconds <= 0 {
		c.PriceRefreshSeconds = 15
	}
	if c.KlineInterval == "" {
		c.KlineInterval = "1h"
	}
}
