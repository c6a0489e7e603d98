package service

import (
	"context"
	"testing"
	"time"

	"github.com/dushixiang/flux/internal/models"
	"github.com/dushixiang/flux/internal/pricecache"
	"github.com/dushixiang/flux/internal/xe"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestExecutor(t *testing.T, db *gorm.DB, cache *pricecache.Cache) *ExecutorService {
	t.Helper()
	ledger := NewLedgerService(db, zap.NewNop(), newTestConfig())
	return NewExecutorService(db, zap.NewNop(), cache, ledger)
}

func TestExecuteBuyFills(t *testing.T) {
	db := newTestDB(t)
	cache := pricecache.New(time.Minute)
	cache.Put("BTCUSDT", decimal.NewFromInt(100), time.Now())
	executor := newTestExecutor(t, db, cache)
	account := newTestAccount(t, db, "1000", "BTCUSDT")

	result, err := executor.Execute(context.Background(), account, &AgentDecision{
		Action:   models.DecisionActionBuy,
		Symbol:   "BTCUSDT",
		Quantity: decimal.NewFromInt(2),
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusFilled, result.Order.Status)
	require.NotNil(t, result.Settlement)
	requireDecimalEqual(t, "799.8", result.Settlement.CashAfter)
	// 成交价取执行开始时的缓存价格
	requireDecimalEqual(t, "100", result.Order.Price)
}

func TestExecuteInsufficientFundsRejectsOrder(t *testing.T) {
	db := newTestDB(t)
	cache := pricecache.New(time.Minute)
	cache.Put("BTCUSDT", decimal.NewFromInt(100), time.Now())
	executor := newTestExecutor(t, db, cache)
	account := newTestAccount(t, db, "100", "BTCUSDT")

	result, err := executor.Execute(context.Background(), account, &AgentDecision{
		Action:   models.DecisionActionBuy,
		Symbol:   "BTCUSDT",
		Quantity: decimal.NewFromInt(2),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, xe.ErrValidation)

	// 被拒绝的订单落库，资金和持仓不变，没有成交
	require.NotNil(t, result)
	assert.Equal(t, models.OrderStatusRejected, result.Order.Status)
	assert.NotEmpty(t, result.Order.Reason)
	assert.Nil(t, result.Settlement)

	var stored models.Account
	require.NoError(t, db.First(&stored, "id = ?", account.ID).Error)
	requireDecimalEqual(t, "100", stored.Cash)

	var tradeCount int64
	require.NoError(t, db.Model(&models.Trade{}).Count(&tradeCount).Error)
	assert.Zero(t, tradeCount)
}

func TestExecuteUntrackedSymbolRejected(t *testing.T) {
	db := newTestDB(t)
	cache := pricecache.New(time.Minute)
	cache.Put("ETHUSDT", decimal.NewFromInt(3000), time.Now())
	executor := newTestExecutor(t, db, cache)
	account := newTestAccount(t, db, "1000", "BTCUSDT")

	result, err := executor.Execute(context.Background(), account, &AgentDecision{
		Action:   models.DecisionActionBuy,
		Symbol:   "ETHUSDT",
		Quantity: decimal.NewFromInt(1),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, xe.ErrValidation)
	assert.Equal(t, models.OrderStatusRejected, result.Order.Status)
}

func TestExecuteStalePriceRejected(t *testing.T) {
	db := newTestDB(t)
	cache := pricecache.New(time.Minute)
	cache.Put("BTCUSDT", decimal.NewFromInt(100), time.Now().Add(-2*time.Minute))
	executor := newTestExecutor(t, db, cache)
	account := newTestAccount(t, db, "1000", "BTCUSDT")

	result, err := executor.Execute(context.Background(), account, &AgentDecision{
		Action:   models.DecisionActionBuy,
		Symbol:   "BTCUSDT",
		Quantity: decimal.NewFromInt(1),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, xe.ErrValidation)
	assert.Equal(t, models.OrderStatusRejected, result.Order.Status)
}

func TestExecuteLeftoverPendingOrderConflicts(t *testing.T) {
	db := newTestDB(t)
	cache := pricecache.New(time.Minute)
	cache.Put("BTCUSDT", decimal.NewFromInt(100), time.Now())
	executor := newTestExecutor(t, db, cache)
	account := newTestAccount(t, db, "1000", "BTCUSDT")

	// 人为残留一个 pending 订单，模拟上次结算中断
	require.NoError(t, db.Create(&models.Order{
		ID:        ulid.Make().String(),
		AccountID: account.ID,
		Symbol:    "BTCUSDT",
		Side:      models.OrderSideBuy,
		Quantity:  decimal.NewFromInt(1),
		Price:     decimal.NewFromInt(100),
		Status:    models.OrderStatusPending,
	}).Error)

	_, err := executor.Execute(context.Background(), account, &AgentDecision{
		Action:   models.DecisionActionBuy,
		Symbol:   "BTCUSDT",
		Quantity: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, xe.ErrLedgerConflict)
}
