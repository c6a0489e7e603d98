package ta

import (
	talib "github.com/markcheno/go-talib"
)

// IndicatorSet 单个交易对的一组技术指标快照
type IndicatorSet struct {
	RSI14          float64 `json:"rsi_14"`
	SMA20          float64 `json:"sma_20"`
	SMA50          float64 `json:"sma_50"`
	EMA12          float64 `json:"ema_12"`
	EMA26          float64 `json:"ema_26"`
	MACD           float64 `json:"macd"`
	MACDSignal     float64 `json:"macd_signal"`
	MACDHist       float64 `json:"macd_hist"`
	BollingerUpper float64 `json:"bollinger_upper"`
	BollingerMid   float64 `json:"bollinger_mid"`
	BollingerLower float64 `json:"bollinger_lower"`
	Momentum10     float64 `json:"momentum_10"`
	Support        float64 `json:"support"`
	Resistance     float64 `json:"resistance"`
}

// MinBars 计算完整指标集所需的最少K线数量
const MinBars = 50

// Compute 基于收盘价与高低价序列计算指标集。
// 序列长度不足 MinBars 时返回 false。
func Compute(highs, lows, closes []float64) (IndicatorSet, bool) {
	if len(closes) < MinBars || len(highs) < MinBars || len(lows) < MinBars {
		return IndicatorSet{}, false
	}

	rsi := talib.Rsi(closes, 14)
	sma20 := talib.Sma(closes, 20)
	sma50 := talib.Sma(closes, 50)
	ema12 := talib.Ema(closes, 12)
	ema26 := talib.Ema(closes, 26)
	macd, signal, hist := talib.Macd(closes, 12, 26, 9)
	upper, middle, lower := talib.BBands(closes, 20, 2.0, 2.0, talib.SMA)
	momentum := talib.Mom(closes, 10)

	return IndicatorSet{
		RSI14:          Last(rsi, 0),
		SMA20:          Last(sma20, 0),
		SMA50:          Last(sma50, 0),
		EMA12:          Last(ema12, 0),
		EMA26:          Last(ema26, 0),
		MACD:           Last(macd, 0),
		MACDSignal:     Last(signal, 0),
		MACDHist:       Last(hist, 0),
		BollingerUpper: Last(upper, 0),
		BollingerMid:   Last(middle, 0),
		BollingerLower: Last(lower, 0),
		Momentum10:     Last(momentum, 0),
		Support:        Lowest(lows, 20),
		Resistance:     Highest(highs, 20),
	}, true
}
