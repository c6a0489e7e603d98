package service

import (
	"context"
	"time"

	"github.com/dushixiang/flux/internal/config"
	"github.com/dushixiang/flux/internal/models"
	"github.com/dushixiang/flux/internal/repo"
	"github.com/dushixiang/flux/internal/xe"
	"github.com/go-orz/orz"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Fill 一笔待结算的成交
type Fill struct {
	Symbol    string
	Side      models.OrderSide
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	Reason    string
}

// SettlementResult 结算结果
type SettlementResult struct {
	Order      *models.Order
	Trade      *models.Trade
	Position   *models.Position // 结算后持仓，清仓时为 nil
	CashAfter  decimal.Decimal
	Commission decimal.Decimal
}

// LedgerService 账本结算服务。
// 订单、成交、持仓、现金的全部变更在同一个事务中提交，
// 现金更新带乐观锁版本校验，版本不匹配时整体回滚。
type LedgerService struct {
	logger *zap.Logger

	*orz.Service
	*repo.AccountRepo
	*repo.PositionRepo
	*repo.OrderRepo
	*repo.TradeRepo

	commissionRate decimal.Decimal
}

func NewLedgerService(db *gorm.DB, logger *zap.Logger, conf *config.Config) *LedgerService {
	return &LedgerService{
		logger:         logger,
		Service:        orz.NewService(db),
		AccountRepo:    repo.NewAccountRepo(db),
		PositionRepo:   repo.NewPositionRepo(db),
		OrderRepo:      repo.NewOrderRepo(db),
		TradeRepo:      repo.NewTradeRepo(db),
		commissionRate: decimal.NewFromFloat(conf.Trading.CommissionRate),
	}
}

// CommissionRate 当前手续费率
func (s *LedgerService) CommissionRate() decimal.Decimal {
	return s.commissionRate
}

// Settle 结算一笔成交。account 是周期开始时读取的账户快照，
// 它的 Version 用于乐观锁校验。成功后 account 的 Cash 与 Version 同步更新。
func (s *LedgerService) Settle(ctx context.Context, account *models.Account, fill Fill) (*SettlementResult, error) {
	gross := fill.Quantity.Mul(fill.Price)
	commission := gross.Mul(s.commissionRate)
	now := time.Now()

	var result *SettlementResult
	err := s.Transaction(ctx, func(ctx context.Context) error {
		order := &models.Order{
			ID:        ulid.Make().String(),
			AccountID: account.ID,
			Symbol:    fill.Symbol,
			Side:      fill.Side,
			Quantity:  fill.Quantity,
			Price:     fill.Price,
			Status:    models.OrderStatusPending,
			Reason:    fill.Reason,
		}
		if err := s.OrderRepo.Create(ctx, order); err != nil {
			return err
		}

		var cashAfter decimal.Decimal
		var positionAfter *models.Position

		switch fill.Side {
		case models.OrderSideBuy:
			total := gross.Add(commission)
			if account.Cash.LessThan(total) {
				return xe.Validation("insufficient funds: need %s, have %s", total, account.Cash)
			}
			cashAfter = account.Cash.Sub(total)

			found, err := s.PositionRepo.FindByAccountAndSymbol(ctx, account.ID, fill.Symbol)
			if err != nil && err != gorm.ErrRecordNotFound {
				return err
			}
			if err == gorm.ErrRecordNotFound {
				position := &models.Position{
					ID:        ulid.Make().String(),
					AccountID: account.ID,
					Symbol:    fill.Symbol,
					Quantity:  fill.Quantity,
					AvgCost:   fill.Price,
				}
				if err := s.PositionRepo.Create(ctx, position); err != nil {
					return err
				}
				positionAfter = position
			} else {
				position := &found
				// 买入摊薄成本：(旧数量×旧成本 + 新数量×成交价) / 总数量
				newQuantity := position.Quantity.Add(fill.Quantity)
				position.AvgCost = position.Quantity.Mul(position.AvgCost).
					Add(fill.Quantity.Mul(fill.Price)).
					Div(newQuantity)
				position.Quantity = newQuantity
				if err := s.PositionRepo.Save(ctx, position); err != nil {
					return err
				}
				positionAfter = position
			}

		case models.OrderSideSell:
			found, err := s.PositionRepo.FindByAccountAndSymbol(ctx, account.ID, fill.Symbol)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return xe.Validation("no position in %s", fill.Symbol)
				}
				return err
			}
			position := &found
			if position.Quantity.LessThan(fill.Quantity) {
				return xe.Validation("insufficient shares: have %s, want to sell %s", position.Quantity, fill.Quantity)
			}
			cashAfter = account.Cash.Add(gross.Sub(commission))

			remaining := position.Quantity.Sub(fill.Quantity)
			if remaining.IsZero() {
				// 清仓后删除持仓行，不保留零数量记录
				if err := s.PositionRepo.DeleteById(ctx, position.ID); err != nil {
					return err
				}
				positionAfter = nil
			} else {
				// 卖出不改变成本价
				position.Quantity = remaining
				if err := s.PositionRepo.Save(ctx, position); err != nil {
					return err
				}
				positionAfter = position
			}
		}

		updated, err := s.AccountRepo.UpdateCashWithVersion(ctx, account.ID, account.Version, map[string]interface{}{
			"cash": cashAfter,
		})
		if err != nil {
			return err
		}
		if !updated {
			return xe.LedgerConflict(account.ID)
		}

		if err := s.OrderRepo.UpdateStatus(ctx, order.ID, models.OrderStatusFilled, ""); err != nil {
			return err
		}
		order.Status = models.OrderStatusFilled

		trade := &models.Trade{
			ID:         ulid.Make().String(),
			OrderID:    order.ID,
			AccountID:  account.ID,
			Symbol:     fill.Symbol,
			Side:       fill.Side,
			Price:      fill.Price,
			Quantity:   fill.Quantity,
			Commission: commission,
			ExecutedAt: now,
		}
		if err := s.TradeRepo.Create(ctx, trade); err != nil {
			return err
		}

		result = &SettlementResult{
			Order:      order,
			Trade:      trade,
			Position:   positionAfter,
			CashAfter:  cashAfter,
			Commission: commission,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	account.Cash = result.CashAfter
	account.Version = account.Version + 1

	s.logger.Info("settlement committed",
		zap.String("account_id", account.ID),
		zap.String("symbol", fill.Symbol),
		zap.String("side", string(fill.Side)),
		zap.String("quantity", fill.Quantity.String()),
		zap.String("price", fill.Price.String()),
		zap.String("commission", commission.String()),
		zap.String("cash_after", result.CashAfter.String()))

	return result, nil
}

// RecordRejectedOrder 持久化一条被拒绝的订单，不触碰资金和持仓
func (s *LedgerService) RecordRejectedOrder(ctx context.Context, accountID string, decision *AgentDecision, price decimal.Decimal, reason string) (*models.Order, error) {
	order := &models.Order{
		ID:        ulid.Make().String(),
		AccountID: accountID,
		Symbol:    decision.Symbol,
		Side:      models.OrderSide(decision.Action),
		Quantity:  decision.Quantity,
		Price:     price,
		Status:    models.OrderStatusRejected,
		Reason:    reason,
	}
	if err := s.OrderRepo.Create(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}
