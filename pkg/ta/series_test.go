package ta

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrossover(t *testing.T) {
	fast := []float64{1, 2, 3}
	slow := []float64{2, 2, 2}

	assert.True(t, Crossover(fast, slow))
	assert.False(t, Crossunder(fast, slow))

	// 下穿要求前一根严格在上方
	falling := []float64{3, 1}
	flat := []float64{2, 2}
	assert.True(t, Crossunder(falling, flat))
	assert.False(t, Crossover(falling, flat))

	// 前一根持平不算穿越
	assert.False(t, Crossunder(slow, fast))
	assert.False(t, Crossover(slow, fast))
}

func TestLowestHighest(t *testing.T) {
	series := []float64{5, 1, 9, 3, 7}

	assert.Equal(t, 1.0, Lowest(series, 5))
	assert.Equal(t, 9.0, Highest(series, 5))

	// 只看最近两根
	assert.Equal(t, 3.0, Lowest(series, 2))
	assert.Equal(t, 7.0, Highest(series, 2))
}

func TestComputeRequiresEnoughBars(t *testing.T) {
	short := make([]float64, MinBars-1)
	_, ok := Compute(short, short, short)
	assert.False(t, ok)
}

func TestComputeTrendingSeries(t *testing.T) {
	n := 100
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		base := 100 + float64(i)
		highs[i] = base + 1
		lows[i] = base - 1
		closes[i] = base
	}

	set, ok := Compute(highs, lows, closes)
	require.True(t, ok)

	// 持续上涨的序列：短均线在长均线上方，RSI 偏高
	assert.Greater(t, set.SMA20, set.SMA50)
	assert.Greater(t, set.RSI14, 70.0)
	assert.False(t, math.IsNaN(set.MACD))

	// 支撑阻力取最近20根的极值
	assert.Equal(t, lows[n-20], set.Support)
	assert.Equal(t, highs[n-1], set.Resistance)
}
