package backtest

import (
	"edgeaudit/market"
)

// K线内价格路径模型
// 根据 OHLC 关系确定价格路径：
//   上涨K线 (Close >= Open): Open → High → Low → Close
//   下跌K线 (Close < Open):  Open → Low → High → Close
// 路径时间分配：第一段 25%，第二段 25%，第三段 50%
//
// 延迟窗口内的可成交价格沿该路径求值，因此延迟期间的价格漂移
// 是被真实计量的成本，而非跳过的近似

// priceAt 返回K线内相对位置 frac ∈ [0,1] 处的路径价格
func priceAt(c *market.Candle, frac float64) float64 {
	if frac <= 0 {
		return c.Open
	}
	if frac >= 1 {
		return c.Close
	}

	isUpBar := c.Close >= c.Open

	var p0, p1, p2, p3 float64
	if isUpBar {
		p0, p1, p2, p3 = c.Open, c.High, c.Low, c.Close
	} else {
		p0, p1, p2, p3 = c.Open, c.Low, c.High, c.Close
	}

	switch {
	case frac < 0.25:
		r := frac / 0.25
		return p0 + (p1-p0)*r
	case frac < 0.5:
		r := (frac - 0.25) / 0.25
		return p1 + (p2-p1)*r
	default:
		r := (frac - 0.5) / 0.5
		return p2 + (p3-p2)*r
	}
}

// locateBar 二分查找包含时刻 ts 的K线索引（bar.Timestamp <= ts < bar.Timestamp+interval）
// 找不到（ts 超出数据范围）返回 -1
func locateBar(candles []*market.Candle, ts int64, intervalMs int64) int {
	low, high := 0, len(candles)
	for low < high {
		mid := (low + high) / 2
		if candles[mid].Timestamp+intervalMs <= ts {
			low = mid + 1
		} else {
			high = mid
		}
	}
	if low >= len(candles) || ts < candles[low].Timestamp {
		return -1
	}
	return low
}

// pathPriceAt 返回绝对时刻 ts 的路径价格及所在K线索引
// ts 落在会话缺口中时，使用缺口后第一根K线的开盘价（跳空是真实成本）
func pathPriceAt(candles []*market.Candle, ts int64, intervalMs int64) (float64, int, bool) {
	idx := locateBar(candles, ts, intervalMs)
	if idx >= 0 {
		frac := float64(ts-candles[idx].Timestamp) / float64(intervalMs)
		return priceAt(candles[idx], frac), idx, true
	}

	// 会话缺口：找缺口后的第一根K线
	next := market.FindTriggerIndex(candles, ts)
	if next >= len(candles) {
		return 0, -1, false // 超出数据末尾
	}
	return candles[next].Open, next, true
}
