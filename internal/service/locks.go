package service

import "sync"

// AccountLocks 账户级互斥锁注册表。
// 调度器触发的自动周期与手动下单共用同一把锁，
// 保证同一账户的周期串行执行，不同账户互不影响。
// 持有状态记录在注册表内部，释放未持有的锁是空操作，
// 账户删除后不会留下任何条目。
type AccountLocks struct {
	mu   sync.Mutex
	cond *sync.Cond
	held map[string]bool
}

func NewAccountLocks() *AccountLocks {
	a := &AccountLocks{
		held: make(map[string]bool),
	}
	a.cond = sync.NewCond(&a.mu)
	return a
}

// TryAcquire 非阻塞获取账户锁，上一周期未结束时返回false
func (a *AccountLocks) TryAcquire(accountID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.held[accountID] {
		return false
	}
	a.held[accountID] = true
	return true
}

// Acquire 阻塞获取账户锁
func (a *AccountLocks) Acquire(accountID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for a.held[accountID] {
		a.cond.Wait()
	}
	a.held[accountID] = true
}

// Release 释放账户锁，未持有时为空操作
func (a *AccountLocks) Release(accountID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.held[accountID] {
		return
	}
	delete(a.held, accountID)
	a.cond.Broadcast()
}
