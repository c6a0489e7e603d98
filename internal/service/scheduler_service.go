package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/dushixiang/flux/internal/models"
	"github.com/dushixiang/flux/internal/repo"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SchedulerService 周期调度器。每个账户按自己的间隔独立排期，
// 上一周期未结束时新的触发直接丢弃，不排队。
type SchedulerService struct {
	logger *zap.Logger

	accountRepo *repo.AccountRepo
	locks       *AccountLocks
	engine      *EngineService

	cron    *cron.Cron
	mu      sync.Mutex
	entries map[string]cron.EntryID
	running bool
}

func NewSchedulerService(db *gorm.DB, logger *zap.Logger, locks *AccountLocks, engine *EngineService) *SchedulerService {
	return &SchedulerService{
		logger:      logger,
		accountRepo: repo.NewAccountRepo(db),
		locks:       locks,
		engine:      engine,
		cron:        cron.New(),
		entries:     make(map[string]cron.EntryID),
	}
}

// Start 加载全部账户并启动调度，每个账户立即执行第一个周期
func (s *SchedulerService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.mu.Unlock()

	accounts, err := s.accountRepo.FindAllOrderByCreatedAt(ctx)
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}

	for i := range accounts {
		if err := s.Register(&accounts[i]); err != nil {
			s.logger.Error("failed to schedule account",
				zap.String("account_id", accounts[i].ID),
				zap.Error(err))
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("accounts", len(accounts)))
	return nil
}

// Stop 停止调度并等待执行中的任务完成
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Register 注册或更新账户的排期，并立即异步执行一个周期
func (s *SchedulerService) Register(account *models.Account) error {
	interval := account.IntervalMinutes
	if interval <= 0 {
		interval = 30
	}

	s.mu.Lock()
	if entryID, ok := s.entries[account.ID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, account.ID)
	}

	accountID := account.ID
	entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %dm", interval), func() {
		s.runOnce(accountID)
	})
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to add cron entry: %w", err)
	}
	s.entries[account.ID] = entryID
	s.mu.Unlock()

	s.logger.Info("account scheduled",
		zap.String("account_id", account.ID),
		zap.Int("interval_minutes", interval))

	go s.runOnce(accountID)
	return nil
}

// Deregister 移除账户的排期
func (s *SchedulerService) Deregister(accountID string) {
	s.mu.Lock()
	if entryID, ok := s.entries[accountID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, accountID)
	}
	s.mu.Unlock()

	s.logger.Info("account descheduled", zap.String("account_id", accountID))
}

// runOnce 执行一个周期，账户锁拿不到说明上一周期还在执行，直接丢弃本次触发
func (s *SchedulerService) runOnce(accountID string) {
	if !s.locks.TryAcquire(accountID) {
		s.logger.Warn("previous cycle still running, dropping tick",
			zap.String("account_id", accountID))
		return
	}
	defer s.locks.Release(accountID)

	if _, err := s.engine.RunCycle(context.Background(), accountID); err != nil {
		s.logger.Error("cycle execution failed",
			zap.String("account_id", accountID),
			zap.Error(err))
	}
}

// Scheduled 查询账户是否在排期中
func (s *SchedulerService) Scheduled(accountID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[accountID]
	return ok
}
