package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dushixiang/flux/internal/models"
	"github.com/dushixiang/flux/internal/service"
	"github.com/dushixiang/flux/internal/xe"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AccountHandler 账户管理HTTP处理器
type AccountHandler struct {
	logger         *zap.Logger
	accountService *service.AccountService
	engineService  *service.EngineService
	scheduler      *service.SchedulerService
}

// NewAccountHandler 创建账户处理器
func NewAccountHandler(
	logger *zap.Logger,
	accountService *service.AccountService,
	engineService *service.EngineService,
	scheduler *service.SchedulerService,
) *AccountHandler {
	return &AccountHandler{
		logger:         logger,
		accountService: accountService,
		engineService:  engineService,
		scheduler:      scheduler,
	}
}

// CreateAccount 创建账户
// POST /api/accounts
func (h *AccountHandler) CreateAccount(c echo.Context) error {
	var req service.AccountCreateRequest
	if err := c.Bind(&req); err != nil {
		return xe.ErrInvalidParams
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	account, err := h.accountService.Create(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, account)
}

// ListAccounts 列出所有账户
// GET /api/accounts
func (h *AccountHandler) ListAccounts(c echo.Context) error {
	accounts, err := h.accountService.FindAll(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":    len(accounts),
		"accounts": accounts,
	})
}

// GetAccount 获取账户详情
// GET /api/accounts/:id
func (h *AccountHandler) GetAccount(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	account, err := h.accountService.FindById(ctx, id)
	if err != nil {
		return err
	}

	positions, err := h.accountService.PositionRepo.FindByAccountID(ctx, id)
	if err != nil {
		return err
	}

	cycles, err := h.accountService.DecisionRepo.CountByAccountID(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"account":   account,
		"positions": positions,
		"cycles":    cycles,
		"scheduled": h.scheduler.Scheduled(id),
	})
}

// UpdateAccount 更新账户配置
// PUT /api/accounts/:id
func (h *AccountHandler) UpdateAccount(c echo.Context) error {
	var req service.AccountUpdateRequest
	if err := c.Bind(&req); err != nil {
		return xe.ErrInvalidParams
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	account, err := h.accountService.Update(c.Request().Context(), c.Param("id"), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, account)
}

// DeleteAccount 删除账户及全部关联数据
// DELETE /api/accounts/:id
func (h *AccountHandler) DeleteAccount(c echo.Context) error {
	if err := h.accountService.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "account deleted",
	})
}

// ManualOrderRequest 手动下单请求
type ManualOrderRequest struct {
	Side     string `json:"side" validate:"required,oneof=buy sell"`
	Symbol   string `json:"symbol" validate:"required"`
	Quantity string `json:"quantity" validate:"required"`
}

// CreateOrder 手动下单，与自动周期共用账户锁
// POST /api/accounts/:id/orders
func (h *AccountHandler) CreateOrder(c echo.Context) error {
	var req ManualOrderRequest
	if err := c.Bind(&req); err != nil {
		return xe.ErrInvalidParams
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		return xe.ErrInvalidParams
	}

	result, err := h.engineService.ManualOrder(
		c.Request().Context(),
		c.Param("id"),
		models.OrderSide(req.Side),
		req.Symbol,
		quantity,
	)
	if err != nil {
		// 校验拒绝不是接口错误，把被拒绝的订单返回给调用方
		if errors.Is(err, xe.ErrValidation) && result != nil {
			return c.JSON(http.StatusOK, map[string]interface{}{
				"order": result.Order,
			})
		}
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"order": result.Order,
		"trade": result.Settlement.Trade,
		"cash":  result.Settlement.CashAfter,
	})
}

// TriggerCycle 立即执行一个决策周期
// POST /api/accounts/:id/cycles
func (h *AccountHandler) TriggerCycle(c echo.Context) error {
	decision, err := h.engineService.TriggerCycle(c.Request().Context(), c.Param("id"))
	if err != nil && decision == nil {
		return err
	}

	// 周期失败时决策记录同样已落库，把它返回给调用方
	return c.JSON(http.StatusOK, map[string]interface{}{
		"decision": decision,
	})
}

// GetOrders 获取订单历史
// GET /api/accounts/:id/orders?limit=20
func (h *AccountHandler) GetOrders(c echo.Context) error {
	limit := 20
	if l := c.QueryParam("limit"); l != "" {
		fmt.Sscanf(l, "%d", &limit)
	}

	orders, err := h.accountService.OrderRepo.FindRecentByAccountID(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":  len(orders),
		"orders": orders,
	})
}

// GetTrades 获取成交历史
// GET /api/accounts/:id/trades?limit=20
func (h *AccountHandler) GetTrades(c echo.Context) error {
	limit := 20
	if l := c.QueryParam("limit"); l != "" {
		fmt.Sscanf(l, "%d", &limit)
	}

	trades, err := h.accountService.TradeRepo.FindRecentByAccountID(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":  len(trades),
		"trades": trades,
	})
}

// GetPositions 获取当前持仓
// GET /api/accounts/:id/positions
func (h *AccountHandler) GetPositions(c echo.Context) error {
	positions, err := h.accountService.PositionRepo.FindByAccountID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":     len(positions),
		"positions": positions,
	})
}

// GetDecisions 获取决策历史
// GET /api/accounts/:id/decisions?limit=10
func (h *AccountHandler) GetDecisions(c echo.Context) error {
	limit := 10
	if l := c.QueryParam("limit"); l != "" {
		fmt.Sscanf(l, "%d", &limit)
	}

	decisions, err := h.accountService.DecisionRepo.FindRecentByAccountID(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":     len(decisions),
		"decisions": decisions,
	})
}

// GetEquityCurve 获取净值曲线
// GET /api/accounts/:id/equity-curve
func (h *AccountHandler) GetEquityCurve(c echo.Context) error {
	histories, err := h.accountService.EquityHistoryRepo.FindByAccountIDOrderByRecordedAt(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	data := make([]map[string]interface{}, 0, len(histories))
	for _, item := range histories {
		data = append(data, map[string]interface{}{
			"timestamp":      item.RecordedAt.Unix(),
			"cycle":          item.Cycle,
			"cash":           item.Cash,
			"position_value": item.PositionValue,
			"equity":         item.Equity,
			"return_percent": item.ReturnPercent,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"count": len(data),
		"data":  data,
	})
}

// AskRequest 决策问答请求
type AskRequest struct {
	Question   string `json:"question" validate:"required"`
	DecisionID string `json:"decision_id"`
}

// Ask 向账户绑定的模型提问
// POST /api/accounts/:id/ask
func (h *AccountHandler) Ask(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return xe.ErrInvalidParams
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	qa, err := h.accountService.Ask(c.Request().Context(), c.Param("id"), req.DecisionID, req.Question)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, qa)
}

// GetQAHistory 获取问答历史
// GET /api/accounts/:id/qa
func (h *AccountHandler) GetQAHistory(c echo.Context) error {
	entries, err := h.accountService.DecisionQARepo.FindByAccountID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":   len(entries),
		"entries": entries,
	})
}

// RegisterRoutes 注册路由
func (h *AccountHandler) RegisterRoutes(g *echo.Group) {
	accounts := g.Group("/accounts")

	accounts.POST("", h.CreateAccount)
	accounts.GET("", h.ListAccounts)
	accounts.GET("/:id", h.GetAccount)
	accounts.PUT("/:id", h.UpdateAccount)
	accounts.DELETE("/:id", h.DeleteAccount)

	accounts.POST("/:id/cycles", h.TriggerCycle)
	accounts.POST("/:id/orders", h.CreateOrder)
	accounts.GET("/:id/orders", h.GetOrders)
	accounts.GET("/:id/trades", h.GetTrades)
	accounts.GET("/:id/positions", h.GetPositions)
	accounts.GET("/:id/decisions", h.GetDecisions)
	accounts.GET("/:id/equity-curve", h.GetEquityCurve)
	accounts.POST("/:id/ask", h.Ask)
	accounts.GET("/:id/qa", h.GetQAHistory)
}
