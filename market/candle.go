package market

import (
	"fmt"
	"time"
)

// Candle K线数据（单根OHLCV）
type Candle struct {
	Symbol    string  `json:"symbol"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Timestamp int64   `json:"timestamp"` // 毫秒时间戳（UTC）
	IsClosed  bool    `json:"is_closed"`
}

// Time 返回K线的UTC时间
func (c *Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}

// Range 返回K线的high-low区间
func (c *Candle) Range() float64 {
	return c.High - c.Low
}

// Touches 判断价格是否落在K线的high/low区间内
func (c *Candle) Touches(price float64) bool {
	return price >= c.Low && price <= c.High
}

// IntegrityError 数据完整性错误
// 只影响单个工作单元（一次回测或一个窗口），不应中止整体扫描
type IntegrityError struct {
	Index  int    // 出错的K线/信号索引
	Reason string // 错误原因
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("数据完整性错误 (index=%d): %s", e.Index, e.Reason)
}

// ValidateSeries 校验K线序列完整性
// 要求：时间戳严格递增、无重复、价格合法（high>=low, 无负价格）
func ValidateSeries(candles []*Candle) error {
	for i, c := range candles {
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			return &IntegrityError{Index: i, Reason: fmt.Sprintf("非法价格 O=%.5f H=%.5f L=%.5f C=%.5f", c.Open, c.High, c.Low, c.Close)}
		}
		if c.High < c.Low {
			return &IntegrityError{Index: i, Reason: fmt.Sprintf("high(%.5f) 小于 low(%.5f)", c.High, c.Low)}
		}
		if c.High < c.Open || c.High < c.Close || c.Low > c.Open || c.Low > c.Close {
			return &IntegrityError{Index: i, Reason: "open/close 超出 high/low 区间"}
		}
		if i > 0 {
			prev := candles[i-1]
			if c.Timestamp == prev.Timestamp {
				return &IntegrityError{Index: i, Reason: fmt.Sprintf("重复时间戳 %d", c.Timestamp)}
			}
			if c.Timestamp < prev.Timestamp {
				return &IntegrityError{Index: i, Reason: fmt.Sprintf("时间戳回退 %d < %d", c.Timestamp, prev.Timestamp)}
			}
		}
	}
	return nil
}

// SessionGap 会话边界（相邻K线之间超过正常间隔的缺口）
type SessionGap struct {
	Index    int     `json:"index"`     // 缺口后第一根K线的索引
	FromTs   int64   `json:"from_ts"`   // 缺口前一根K线时间戳
	ToTs     int64   `json:"to_ts"`     // 缺口后一根K线时间戳
	GapBars  int64   `json:"gap_bars"`  // 缺失的K线数量（估算）
	PriceGap float64 `json:"price_gap"` // Open[t+1] - Close[t]
}

// DetectSessionGaps 检测会话边界
// 缺口必须显式标记为会话边界，绝不允许静默跳过
func DetectSessionGaps(candles []*Candle, intervalMs int64) []SessionGap {
	if intervalMs <= 0 || len(candles) < 2 {
		return nil
	}

	gaps := make([]SessionGap, 0)
	for i := 1; i < len(candles); i++ {
		delta := candles[i].Timestamp - candles[i-1].Timestamp
		if delta > intervalMs {
			gaps = append(gaps, SessionGap{
				Index:    i,
				FromTs:   candles[i-1].Timestamp,
				ToTs:     candles[i].Timestamp,
				GapBars:  delta/intervalMs - 1,
				PriceGap: candles[i].Open - candles[i-1].Close,
			})
		}
	}
	return gaps
}

// BarIntervalMs 从K线序列估算bar间隔（取相邻时间差的中位数，避免受会话缺口影响）
func BarIntervalMs(candles []*Candle) int64 {
	if len(candles) < 2 {
		return 0
	}

	deltas := make([]int64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		deltas = append(deltas, candles[i].Timestamp-candles[i-1].Timestamp)
	}

	// 插入排序取中位数（序列通常已大致有序）
	for i := 1; i < len(deltas); i++ {
		for j := i; j > 0 && deltas[j] < deltas[j-1]; j-- {
			deltas[j], deltas[j-1] = deltas[j-1], deltas[j]
		}
	}
	return deltas[len(deltas)/2]
}
