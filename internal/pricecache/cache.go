package pricecache

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Entry 单个交易对的最新价格
type Entry struct {
	Symbol     string
	Price      decimal.Decimal
	ObservedAt time.Time
}

// Cache 短TTL价格缓存。新鲜度在读取时计算，不依赖后台清理；
// 不同交易对的读写互不阻塞，同一交易对的写入按观测时间取最新。
type Cache struct {
	ttl     time.Duration
	entries sync.Map // symbol -> *Entry
	nowFunc func() time.Time
}

// New 创建价格缓存，ttl 为价格可用的最大年龄
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// Get 读取指定交易对的价格，超过新鲜度窗口视为不存在
func (c *Cache) Get(symbol string) (Entry, bool) {
	value, ok := c.entries.Load(symbol)
	if !ok {
		return Entry{}, false
	}
	entry := value.(*Entry)
	if c.nowFunc().Sub(entry.ObservedAt) > c.ttl {
		return Entry{}, false
	}
	return *entry, true
}

// Put 写入价格，旧于已有观测时间的写入被丢弃
func (c *Cache) Put(symbol string, price decimal.Decimal, observedAt time.Time) {
	next := &Entry{Symbol: symbol, Price: price, ObservedAt: observedAt}
	for {
		current, loaded := c.entries.LoadOrStore(symbol, next)
		if !loaded {
			return
		}
		existing := current.(*Entry)
		if !observedAt.After(existing.ObservedAt) {
			return
		}
		if c.entries.CompareAndSwap(symbol, current, next) {
			return
		}
	}
}

// Sweep 清理过期条目以限制内存占用，正确性不依赖此调用
func (c *Cache) Sweep() int {
	now := c.nowFunc()
	removed := 0
	c.entries.Range(func(key, value any) bool {
		entry := value.(*Entry)
		if now.Sub(entry.ObservedAt) > c.ttl {
			if c.entries.CompareAndDelete(key, value) {
				removed++
			}
		}
		return true
	})
	return removed
}

// Len 返回当前条目数（含可能已过期的条目）
func (c *Cache) Len() int {
	count := 0
	c.entries.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
