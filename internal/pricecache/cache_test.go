package pricecache

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetReturnsFreshEntry(t *testing.T) {
	cache := New(time.Minute)
	now := time.Now()

	cache.Put("BTCUSDT", decimal.NewFromInt(50000), now)

	entry, ok := cache.Get("BTCUSDT")
	require.True(t, ok)
	assert.True(t, entry.Price.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, now, entry.ObservedAt)
}

func TestCacheGetMissingSymbol(t *testing.T) {
	cache := New(time.Minute)

	_, ok := cache.Get("ETHUSDT")
	assert.False(t, ok)
}

func TestCacheExpiresAtReadTime(t *testing.T) {
	cache := New(time.Minute)
	current := time.Now()
	cache.nowFunc = func() time.Time { return current }

	cache.Put("BTCUSDT", decimal.NewFromInt(50000), current)

	_, ok := cache.Get("BTCUSDT")
	require.True(t, ok)

	// 没有任何清理动作，仅时间推进就应判定为过期
	current = current.Add(time.Minute + time.Second)
	_, ok = cache.Get("BTCUSDT")
	assert.False(t, ok)
}

func TestCachePutLastWriterWinsByTimestamp(t *testing.T) {
	cache := New(time.Minute)
	now := time.Now()

	cache.Put("BTCUSDT", decimal.NewFromInt(50000), now)
	// 更旧的观测不能覆盖更新的
	cache.Put("BTCUSDT", decimal.NewFromInt(49000), now.Add(-time.Second))

	entry, ok := cache.Get("BTCUSDT")
	require.True(t, ok)
	assert.True(t, entry.Price.Equal(decimal.NewFromInt(50000)))

	cache.Put("BTCUSDT", decimal.NewFromInt(51000), now.Add(time.Second))
	entry, ok = cache.Get("BTCUSDT")
	require.True(t, ok)
	assert.True(t, entry.Price.Equal(decimal.NewFromInt(51000)))
}

func TestCacheSweepRemovesStaleEntries(t *testing.T) {
	cache := New(time.Minute)
	current := time.Now()
	cache.nowFunc = func() time.Time { return current }

	cache.Put("BTCUSDT", decimal.NewFromInt(50000), current)
	cache.Put("ETHUSDT", decimal.NewFromInt(3000), current.Add(30*time.Second))

	current = current.Add(time.Minute + time.Second)
	removed := cache.Sweep()

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, cache.Len())
}

func TestCacheConcurrentReadersAndWriters(t *testing.T) {
	cache := New(time.Minute)
	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT"}

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				symbol := symbols[(n+j)%len(symbols)]
				cache.Put(symbol, decimal.NewFromInt(int64(j)), start.Add(time.Duration(j)*time.Millisecond))
			}
		}(i)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				cache.Get(symbols[(n+j)%len(symbols)])
			}
		}(i)
	}
	wg.Wait()

	for _, symbol := range symbols {
		_, ok := cache.Get(symbol)
		assert.True(t, ok, symbol)
	}
}
