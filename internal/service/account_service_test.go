package service

import (
	"context"
	"testing"
	"time"

	"github.com/dushixiang/flux/internal/models"
	"github.com/dushixiang/flux/internal/xe"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestAccountService(t *testing.T, db *gorm.DB) *AccountService {
	t.Helper()
	conf := newTestConfig()
	logger := zap.NewNop()
	agent := NewAgentService(logger, conf)
	scheduler, locks := newTestScheduler(t, db)
	return NewAccountService(db, logger, conf, agent, locks, scheduler)
}

func TestAccountCreateDefaults(t *testing.T) {
	db := newTestDB(t)
	accountService := newTestAccountService(t, db)

	account, err := accountService.Create(context.Background(), &AccountCreateRequest{
		Name:           " momentum ",
		InitialCapital: "1000",
		Symbols:        []string{"BTCUSDT", "ETHUSDT"},
	})
	require.NoError(t, err)

	assert.Equal(t, "momentum", account.Name)
	requireDecimalEqual(t, "1000", account.Cash)
	requireDecimalEqual(t, "1000", account.InitialCapital)
	assert.Equal(t, models.LLMProviderOpenAI, account.Provider)
	assert.True(t, account.EnableIndicators)
	assert.Equal(t, 30, account.IntervalMinutes)
	assert.True(t, accountService.scheduler.Scheduled(account.ID))
}

func TestAccountCreateRejectsDuplicateName(t *testing.T) {
	db := newTestDB(t)
	accountService := newTestAccountService(t, db)

	_, err := accountService.Create(context.Background(), &AccountCreateRequest{
		Name:           "momentum",
		InitialCapital: "1000",
		Symbols:        []string{"BTCUSDT"},
	})
	require.NoError(t, err)

	_, err = accountService.Create(context.Background(), &AccountCreateRequest{
		Name:           "momentum",
		InitialCapital: "2000",
		Symbols:        []string{"ETHUSDT"},
	})
	assert.ErrorIs(t, err, xe.ErrAccountNameUsed)
}

func TestAccountCreateRejectsBadCapital(t *testing.T) {
	db := newTestDB(t)
	accountService := newTestAccountService(t, db)

	for _, capital := range []string{"0", "-1", "abc"} {
		_, err := accountService.Create(context.Background(), &AccountCreateRequest{
			Name:           "test",
			InitialCapital: capital,
			Symbols:        []string{"BTCUSDT"},
		})
		assert.ErrorIs(t, err, xe.ErrInvalidParams, "capital %s", capital)
	}
}

func TestAccountUpdateKeepsMoneyFields(t *testing.T) {
	db := newTestDB(t)
	accountService := newTestAccountService(t, db)
	account := newTestAccount(t, db, "1000", "BTCUSDT")

	// 模拟一段交易后现金与初始资金不同
	require.NoError(t, db.Model(&models.Account{}).
		Where("id = ?", account.ID).
		Updates(map[string]any{"cash": "750.5", "version": 3}).Error)

	updated, err := accountService.Update(context.Background(), account.ID, &AccountUpdateRequest{
		Name:    "renamed",
		Symbols: []string{"BTCUSDT", "SOLUSDT"},
	})
	require.NoError(t, err)

	assert.Equal(t, "renamed", updated.Name)
	requireDecimalEqual(t, "750.5", updated.Cash)
	requireDecimalEqual(t, "1000", updated.InitialCapital)
	assert.EqualValues(t, 3, updated.Version)
	assert.Len(t, []string(updated.Symbols), 2)
}

func TestAccountUpdateKeepsAPIKeyWhenEmpty(t *testing.T) {
	db := newTestDB(t)
	accountService := newTestAccountService(t, db)
	account := newTestAccount(t, db, "1000", "BTCUSDT")

	require.NoError(t, db.Model(&models.Account{}).
		Where("id = ?", account.ID).
		Update("api_key", "sk-secret").Error)

	updated, err := accountService.Update(context.Background(), account.ID, &AccountUpdateRequest{
		Name:    "test",
		Symbols: []string{"BTCUSDT"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", updated.APIKey)
}

func TestAccountDeleteCascades(t *testing.T) {
	db := newTestDB(t)
	accountService := newTestAccountService(t, db)
	account := newTestAccount(t, db, "1000", "BTCUSDT")
	now := time.Now()

	require.NoError(t, db.Create(&models.Position{
		ID: ulid.Make().String(), AccountID: account.ID, Symbol: "BTCUSDT",
		Quantity: decimal.NewFromInt(1), AvgCost: decimal.NewFromInt(100),
	}).Error)
	require.NoError(t, db.Create(&models.Order{
		ID: ulid.Make().String(), AccountID: account.ID, Symbol: "BTCUSDT",
		Side: models.OrderSideBuy, Quantity: decimal.NewFromInt(1),
		Price: decimal.NewFromInt(100), Status: models.OrderStatusFilled,
	}).Error)
	require.NoError(t, db.Create(&models.Trade{
		ID: ulid.Make().String(), AccountID: account.ID, Symbol: "BTCUSDT",
		Side: models.OrderSideBuy, Quantity: decimal.NewFromInt(1),
		Price: decimal.NewFromInt(100), ExecutedAt: now,
	}).Error)
	require.NoError(t, db.Create(&models.Decision{
		ID: ulid.Make().String(), AccountID: account.ID, Cycle: 1,
		Action: models.DecisionActionHold, State: models.DecisionStateCommitted,
		ExecutedAt: now,
	}).Error)
	require.NoError(t, db.Create(&models.DecisionQA{
		ID: ulid.Make().String(), AccountID: account.ID,
		Question: "为什么买入?", Answer: "动量信号", CreatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&models.EquityHistory{
		ID: ulid.Make().String(), AccountID: account.ID, Cycle: 1,
		Cash: decimal.NewFromInt(900), PositionValue: decimal.NewFromInt(100),
		Equity: decimal.NewFromInt(1000), RecordedAt: now,
	}).Error)

	require.NoError(t, accountService.Delete(context.Background(), account.ID))

	for _, model := range []any{
		&models.Account{}, &models.Position{}, &models.Order{}, &models.Trade{},
		&models.Decision{}, &models.DecisionQA{}, &models.EquityHistory{},
	} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		assert.Zero(t, count, "%T should be empty", model)
	}
}

func TestAccountDeleteWaitsForRunningCycle(t *testing.T) {
	db := newTestDB(t)
	accountService := newTestAccountService(t, db)
	account := newTestAccount(t, db, "1000", "BTCUSDT")

	// 模拟一个执行中的周期持有账户锁
	require.True(t, accountService.locks.TryAcquire(account.ID))

	done := make(chan error, 1)
	go func() {
		done <- accountService.Delete(context.Background(), account.ID)
	}()

	select {
	case <-done:
		t.Fatal("delete should wait for the running cycle")
	case <-time.After(50 * time.Millisecond):
	}

	accountService.locks.Release(account.ID)
	require.NoError(t, <-done)

	_, err := accountService.AccountRepo.FindById(context.Background(), account.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAccountDeleteNotFound(t *testing.T) {
	db := newTestDB(t)
	accountService := newTestAccountService(t, db)

	err := accountService.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, xe.ErrAccountNotFound)
}
