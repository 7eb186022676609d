package market

import "fmt"

// Direction 信号方向
type Direction int

const (
	Long  Direction = 1
	Short Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "unknown"
	}
}

// Signal 交易信号
// 因果律约束：信号绝不能引用晚于其触发K线的任何信息
type Signal struct {
	TriggerTime int64     `json:"trigger_time"` // 触发时间（毫秒，必须等于某根K线的时间戳）
	Symbol      string    `json:"symbol"`
	Direction   Direction `json:"direction"`
	Strength    float64   `json:"strength"` // 信号强度（如sigma倍数）
	StrategyID  string    `json:"strategy_id"`
}

// ValidateSignals 校验信号序列
// 要求：时间有序、方向合法、触发时间必须落在K线范围内（检测look-ahead）
func ValidateSignals(signals []*Signal, candles []*Candle) error {
	if len(candles) == 0 && len(signals) > 0 {
		return &IntegrityError{Index: 0, Reason: "信号存在但K线为空"}
	}

	var lastBar int64
	if len(candles) > 0 {
		lastBar = candles[len(candles)-1].Timestamp
	}

	for i, s := range signals {
		if s.Direction != Long && s.Direction != Short {
			return &IntegrityError{Index: i, Reason: fmt.Sprintf("非法方向 %d", int(s.Direction))}
		}
		if i > 0 && s.TriggerTime < signals[i-1].TriggerTime {
			return &IntegrityError{Index: i, Reason: fmt.Sprintf("信号时间回退 %d < %d", s.TriggerTime, signals[i-1].TriggerTime)}
		}
		// look-ahead 检测：触发时间晚于最后一根K线即为未来信息
		if s.TriggerTime > lastBar {
			return &IntegrityError{Index: i, Reason: fmt.Sprintf("信号触发时间 %d 晚于最后一根K线 %d（look-ahead）", s.TriggerTime, lastBar)}
		}
	}
	return nil
}

// FindTriggerIndex 二分查找触发K线索引（第一根时间戳 >= ts 的K线）
func FindTriggerIndex(candles []*Candle, ts int64) int {
	low, high := 0, len(candles)
	for low < high {
		mid := (low + high) / 2
		if candles[mid].Timestamp < ts {
			low = mid + 1
		} else {
			high = mid
		}
	}
	return low
}
