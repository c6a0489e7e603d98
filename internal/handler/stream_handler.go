package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dushixiang/flux/internal/hub"
	"github.com/dushixiang/flux/internal/pricecache"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// StreamHandler 事件流与行情查询处理器
type StreamHandler struct {
	logger   *zap.Logger
	eventHub *hub.Hub
	cache    *pricecache.Cache
}

// NewStreamHandler 创建事件流处理器
func NewStreamHandler(logger *zap.Logger, eventHub *hub.Hub, cache *pricecache.Cache) *StreamHandler {
	return &StreamHandler{
		logger:   logger,
		eventHub: eventHub,
		cache:    cache,
	}
}

// Events 以SSE推送已提交的状态变更事件。
// 客户端消费过慢时事件会被丢弃，收到的事件顺序与提交顺序一致。
// GET /api/events
func (h *StreamHandler) Events(c echo.Context) error {
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	sub := h.eventHub.Subscribe()
	defer h.eventHub.Unsubscribe(sub)

	ctx := c.Request().Context()
	for {
		select {
		case event, ok := <-sub.C:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn("failed to marshal event", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", event.Type, payload); err != nil {
				return nil
			}
			resp.Flush()
		case <-ctx.Done():
			return nil
		}
	}
}

// GetPrices 查询缓存中的新鲜价格，过期或缺失的交易对不返回
// GET /api/prices?symbols=BTCUSDT,ETHUSDT
func (h *StreamHandler) GetPrices(c echo.Context) error {
	param := c.QueryParam("symbols")
	if param == "" {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"prices": map[string]interface{}{},
		})
	}

	prices := make(map[string]interface{})
	for _, symbol := range strings.Split(param, ",") {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}
		if entry, ok := h.cache.Get(symbol); ok {
			prices[symbol] = map[string]interface{}{
				"price":       entry.Price,
				"observed_at": entry.ObservedAt,
			}
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"prices": prices,
	})
}

// RegisterRoutes 注册路由
func (h *StreamHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/events", h.Events)
	g.GET("/prices", h.GetPrices)
}
