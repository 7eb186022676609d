package backtest

import (
	"fmt"
)

// SpreadModel 点差模型
type SpreadModel string

const (
	SpreadFixed   SpreadModel = "fixed"   // 固定点差
	SpreadDynamic SpreadModel = "dynamic" // 历史动态点差（随bar波动幅度缩放）
)

// SlippageModel 滑点模型
type SlippageModel string

const (
	SlippageFixed     SlippageModel = "fixed"     // 固定滑点
	SlippageVolScaled SlippageModel = "volscaled" // 波动率缩放滑点
)

// FillPolicy 成交策略
type FillPolicy string

const (
	FillMarket     FillPolicy = "market"      // 市价立即成交
	FillLimitTouch FillPolicy = "limit_touch" // 限价触碰成交
	FillLimitProb  FillPolicy = "limit_prob"  // 限价 + 成交概率（排队位置不确定性）
)

// EntryTiming 入场时机
type EntryTiming string

const (
	EntryIntrabar EntryTiming = "intrabar" // 触发K线内即时入场
	// EntryClose 触发K线收盘时刻提交。收盘瞬间在K线路径上即是下一根的
	// 开盘，因此零延迟下成交价等于下一根开盘价（含跳空）：收盘价本身
	// 已不可交易，按开盘价计价是刻意保守的选择
	EntryClose    EntryTiming = "close"
	EntryNextOpen EntryTiming = "next_open" // 下一根K线开盘入场
)

// ExecConfig 执行模拟配置
// 所有摩擦参数在模拟开始前经 Validate 校验；非法配置直接拒绝，绝不静默使用默认值
type ExecConfig struct {
	// 延迟模型：订单在 trigger_time + latency 之后才对市场可见
	// 可成交价格必须在延迟后的时刻求值，延迟窗口内的价格漂移是真实成本
	LatencyMs       int64 `yaml:"latency_ms" json:"latency_ms"`
	LatencyJitterMs int64 `yaml:"latency_jitter_ms" json:"latency_jitter_ms"` // 均匀分布抖动上限（0表示固定延迟）

	// 点差：对称不利成本，每次成交承担半个点差
	SpreadModel SpreadModel `yaml:"spread_model" json:"spread_model"`
	SpreadPips  float64     `yaml:"spread_pips" json:"spread_pips"`

	// 滑点：点差之外的额外不利成本，每次成交承担一半
	SlippageModel SlippageModel `yaml:"slippage_model" json:"slippage_model"`
	SlippagePips  float64       `yaml:"slippage_pips" json:"slippage_pips"`
	VolWindow     int           `yaml:"vol_window" json:"vol_window"` // dynamic/volscaled 模型的参考窗口（K线数）

	// 成交策略
	FillPolicy        FillPolicy `yaml:"fill_policy" json:"fill_policy"`
	LimitOffsetPips   float64    `yaml:"limit_offset_pips" json:"limit_offset_pips"`     // 限价距触发价的有利偏移
	FillProbability   float64    `yaml:"fill_probability" json:"fill_probability"`       // limit_prob：每次触碰的成交概率
	MinFillRatio      float64    `yaml:"min_fill_ratio" json:"min_fill_ratio"`           // limit_prob：部分成交比例下限
	GapThroughAtWorse bool       `yaml:"gap_through_at_worse" json:"gap_through_at_worse"` // 跳空穿越限价时按更差的开盘价成交（默认按限价，保守）

	// 订单生命周期
	OrderTTLBars int `yaml:"order_ttl_bars" json:"order_ttl_bars"` // 限价单有效期（K线数）
	HoldingBars  int `yaml:"holding_bars" json:"holding_bars"`     // 持仓周期（K线数）

	EntryTiming EntryTiming `yaml:"entry_timing" json:"entry_timing"`

	// 品种参数
	PipSize            float64 `yaml:"pip_size" json:"pip_size"`                       // 1 pip 的价格单位（EURUSD=0.0001）
	CommissionPerTrade float64 `yaml:"commission_per_trade" json:"commission_per_trade"` // 每笔往返佣金（价格单位）
}

// DefaultExecConfig 默认执行配置（保守的零售ECN假设）
func DefaultExecConfig() ExecConfig {
	return ExecConfig{
		LatencyMs:       250,
		SpreadModel:     SpreadFixed,
		SpreadPips:      1.0,
		SlippageModel:   SlippageFixed,
		SlippagePips:    0.5,
		VolWindow:       60,
		FillPolicy:      FillMarket,
		FillProbability: 0.9,
		MinFillRatio:    0.5,
		OrderTTLBars:    3,
		HoldingBars:     15,
		EntryTiming:     EntryNextOpen,
		PipSize:         0.0001,
	}
}

// Validate 校验配置合法性（配置错误在任何计算开始前中止）
func (c *ExecConfig) Validate() error {
	if c.LatencyMs < 0 {
		return fmt.Errorf("latency_ms 不能为负: %d", c.LatencyMs)
	}
	if c.LatencyJitterMs < 0 {
		return fmt.Errorf("latency_jitter_ms 不能为负: %d", c.LatencyJitterMs)
	}
	switch c.SpreadModel {
	case SpreadFixed, SpreadDynamic:
	default:
		return fmt.Errorf("未知的 spread_model: %q", c.SpreadModel)
	}
	if c.SpreadPips < 0 {
		return fmt.Errorf("spread_pips 不能为负: %.4f", c.SpreadPips)
	}
	switch c.SlippageModel {
	case SlippageFixed, SlippageVolScaled:
	default:
		return fmt.Errorf("未知的 slippage_model: %q", c.SlippageModel)
	}
	if c.SlippagePips < 0 {
		return fmt.Errorf("slippage_pips 不能为负: %.4f", c.SlippagePips)
	}
	if (c.SpreadModel == SpreadDynamic || c.SlippageModel == SlippageVolScaled) && c.VolWindow <= 1 {
		return fmt.Errorf("动态点差/波动率滑点需要 vol_window > 1, 得到 %d", c.VolWindow)
	}
	switch c.FillPolicy {
	case FillMarket:
	case FillLimitTouch, FillLimitProb:
		if c.LimitOffsetPips < 0 {
			return fmt.Errorf("limit_offset_pips 不能为负: %.4f", c.LimitOffsetPips)
		}
		if c.OrderTTLBars <= 0 {
			return fmt.Errorf("限价单需要 order_ttl_bars > 0, 得到 %d", c.OrderTTLBars)
		}
		if c.FillPolicy == FillLimitProb {
			if c.FillProbability <= 0 || c.FillProbability > 1 {
				return fmt.Errorf("fill_probability 必须在 (0,1] 区间: %.4f", c.FillProbability)
			}
			if c.MinFillRatio <= 0 || c.MinFillRatio > 1 {
				return fmt.Errorf("min_fill_ratio 必须在 (0,1] 区间: %.4f", c.MinFillRatio)
			}
		}
	default:
		return fmt.Errorf("未知的 fill_policy: %q", c.FillPolicy)
	}
	switch c.EntryTiming {
	case EntryIntrabar, EntryClose, EntryNextOpen:
	default:
		return fmt.Errorf("未知的 entry_timing: %q", c.EntryTiming)
	}
	if c.HoldingBars <= 0 {
		return fmt.Errorf("holding_bars 必须为正: %d", c.HoldingBars)
	}
	if c.PipSize <= 0 {
		return fmt.Errorf("pip_size 必须为正: %.6f", c.PipSize)
	}
	if c.CommissionPerTrade < 0 {
		return fmt.Errorf("commission_per_trade 不能为负: %.6f", c.CommissionPerTrade)
	}
	return nil
}
