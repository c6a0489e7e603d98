package service

import (
	"context"
	"testing"
	"time"

	"github.com/dushixiang/flux/internal/hub"
	"github.com/dushixiang/flux/internal/models"
	"github.com/dushixiang/flux/internal/pricecache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestScheduler(t *testing.T, db *gorm.DB) (*SchedulerService, *AccountLocks) {
	t.Helper()
	cache := pricecache.New(time.Minute)
	eventHub := hub.NewHub(16, zap.NewNop())
	decider := &stubDecider{
		decision: &AgentDecision{Action: models.DecisionActionHold},
	}
	locks := NewAccountLocks()
	conf := newTestConfig()
	logger := zap.NewNop()
	news := NewNewsService(logger, conf)
	indicator := NewIndicatorService(logger, stubMarketSource{}, conf)
	market := NewMarketService(db, logger, cache, indicator, news)
	prompt := NewPromptService(conf)
	ledger := NewLedgerService(db, logger, conf)
	executor := NewExecutorService(db, logger, cache, ledger)
	engine := NewEngineService(db, logger, locks, market, prompt, decider, executor, eventHub)
	return NewSchedulerService(db, logger, locks, engine), locks
}

func TestSchedulerDropsTickWhileCycleRunning(t *testing.T) {
	db := newTestDB(t)
	scheduler, locks := newTestScheduler(t, db)
	account := newTestAccount(t, db, "1000", "BTCUSDT")

	// 锁被占用时触发直接丢弃，不排队
	locks.Acquire(account.ID)
	scheduler.runOnce(account.ID)

	var count int64
	require.NoError(t, db.Model(&models.Decision{}).Count(&count).Error)
	assert.Zero(t, count)

	locks.Release(account.ID)
	scheduler.runOnce(account.ID)

	require.NoError(t, db.Model(&models.Decision{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSchedulerRegisterAndDeregister(t *testing.T) {
	db := newTestDB(t)
	scheduler, _ := newTestScheduler(t, db)
	account := newTestAccount(t, db, "1000", "BTCUSDT")

	assert.False(t, scheduler.Scheduled(account.ID))

	require.NoError(t, scheduler.Register(account))
	assert.True(t, scheduler.Scheduled(account.ID))

	// 注册后立即异步执行第一个周期
	require.Eventually(t, func() bool {
		var count int64
		if err := db.Model(&models.Decision{}).Count(&count).Error; err != nil {
			return false
		}
		return count == 1
	}, 3*time.Second, 20*time.Millisecond)

	scheduler.Deregister(account.ID)
	assert.False(t, scheduler.Scheduled(account.ID))
}

func TestSchedulerStartLoadsAccounts(t *testing.T) {
	db := newTestDB(t)
	scheduler, _ := newTestScheduler(t, db)
	account := newTestAccount(t, db, "1000", "BTCUSDT")

	require.NoError(t, scheduler.Start(context.Background()))
	defer scheduler.Stop()

	assert.True(t, scheduler.Scheduled(account.ID))
	assert.Error(t, scheduler.Start(context.Background()))
}
