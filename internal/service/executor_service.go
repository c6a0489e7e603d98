package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dushixiang/flux/internal/models"
	"github.com/dushixiang/flux/internal/pricecache"
	"github.com/dushixiang/flux/internal/repo"
	"github.com/dushixiang/flux/internal/xe"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ExecutionResult 一次订单执行的结果
type ExecutionResult struct {
	Order      *models.Order
	Settlement *SettlementResult // 仅成交时非空
}

// ExecutorService 订单执行服务。
// 成交价在执行开始时从价格缓存读取一次，之后不再重读；
// 校验失败的订单以 rejected 状态落库，资金和持仓不受影响。
type ExecutorService struct {
	logger *zap.Logger

	orderRepo *repo.OrderRepo
	cache     *pricecache.Cache
	ledger    *LedgerService
}

func NewExecutorService(db *gorm.DB, logger *zap.Logger, cache *pricecache.Cache, ledger *LedgerService) *ExecutorService {
	return &ExecutorService{
		logger:    logger,
		orderRepo: repo.NewOrderRepo(db),
		cache:     cache,
		ledger:    ledger,
	}
}

// Execute 执行一个买卖决策。返回的 error 为空表示成交，
// 为校验类错误时订单已被拒绝落库，其他错误表示周期失败。
func (s *ExecutorService) Execute(ctx context.Context, account *models.Account, decision *AgentDecision) (*ExecutionResult, error) {
	if decision.Action != models.DecisionActionBuy && decision.Action != models.DecisionActionSell {
		return nil, fmt.Errorf("decision action %s is not executable", decision.Action)
	}

	if !slices.Contains(account.Symbols, decision.Symbol) {
		return s.reject(ctx, account, decision, decimal.Zero,
			xe.Validation("symbol %s is not tracked by account", decision.Symbol))
	}

	// 同账户周期串行执行，残留的 pending 订单说明上次结算中断
	pending, err := s.orderRepo.CountPendingByAccountID(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, xe.LedgerConflict(account.ID)
	}

	entry, ok := s.cache.Get(decision.Symbol)
	if !ok {
		return s.reject(ctx, account, decision, decimal.Zero,
			xe.Validation("no fresh price for %s", decision.Symbol))
	}

	fill := Fill{
		Symbol:   decision.Symbol,
		Side:     models.OrderSide(decision.Action),
		Quantity: decision.Quantity,
		Price:    entry.Price,
		Reason:   decision.Reasoning,
	}

	settlement, err := s.ledger.Settle(ctx, account, fill)
	if err != nil {
		if errors.Is(err, xe.ErrValidation) {
			return s.reject(ctx, account, decision, entry.Price, err)
		}
		return nil, err
	}

	return &ExecutionResult{
		Order:      settlement.Order,
		Settlement: settlement,
	}, nil
}

// reject 持久化被拒绝的订单并原样返回校验错误
func (s *ExecutorService) reject(ctx context.Context, account *models.Account, decision *AgentDecision, price decimal.Decimal, cause error) (*ExecutionResult, error) {
	order, err := s.ledger.RecordRejectedOrder(ctx, account.ID, decision, price, cause.Error())
	if err != nil {
		return nil, err
	}

	s.logger.Info("order rejected",
		zap.String("account_id", account.ID),
		zap.String("symbol", decision.Symbol),
		zap.String("side", string(decision.Action)),
		zap.String("quantity", decision.Quantity.String()),
		zap.String("reason", cause.Error()))

	return &ExecutionResult{Order: order}, cause
}
