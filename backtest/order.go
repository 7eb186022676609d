package backtest

import (
	"edgeaudit/market"
)

// OrderKind 订单类型
type OrderKind string

const (
	OrderMarket OrderKind = "market"
	OrderLimit  OrderKind = "limit"
)

// OrderStatus 订单状态机：Pending → Filled / Expired / Rejected（终态不可逆）
type OrderStatus string

const (
	StatusPending  OrderStatus = "pending"
	StatusFilled   OrderStatus = "filled"
	StatusExpired  OrderStatus = "expired"
	StatusRejected OrderStatus = "rejected"
)

// Order 由单个信号派生的候选订单
// 不变量：每个 Order 精确对应一个 Signal
type Order struct {
	SignalIndex int              `json:"signal_index"`
	SubmitTime  int64            `json:"submit_time"` // 订单提交时间（毫秒）
	VisibleTime int64            `json:"visible_time"` // 提交时间 + 延迟，市场可见时刻
	Kind        OrderKind        `json:"kind"`
	LimitPrice  float64          `json:"limit_price,omitempty"`
	Direction   market.Direction `json:"direction"`
	Status      OrderStatus      `json:"status"`
}

// FillOutcome 成交结果
type FillOutcome struct {
	Price        float64 `json:"price"`
	Time         int64   `json:"time"`
	Ratio        float64 `json:"ratio"` // 成交比例，<1 表示部分成交
	BarIndex     int     `json:"bar_index"`
	SpreadCost   float64 `json:"spread_cost"`   // 本次成交承担的点差成本（价格单位）
	SlippageCost float64 `json:"slippage_cost"` // 本次成交承担的滑点成本（价格单位）
}

// Trade 一次完整的平仓交易
// 不变量：只由已成交的入场与出场构成；绝不跨越回测时间范围保持未平仓
type Trade struct {
	Symbol     string           `json:"symbol"`
	StrategyID string           `json:"strategy_id"`
	Direction  market.Direction `json:"direction"`

	EntryTime  int64   `json:"entry_time"`
	ExitTime   int64   `json:"exit_time"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	FillRatio  float64 `json:"fill_ratio"`

	GrossPnL float64 `json:"gross_pnl"` // 毛盈亏（价格单位，未扣佣金）
	NetPnL   float64 `json:"net_pnl"`   // 净盈亏（价格单位，点差/滑点已体现在成交价中，再扣佣金）
	NetBps   float64 `json:"net_bps"`   // 净盈亏（基点）

	SpreadCost   float64 `json:"spread_cost"`
	SlippageCost float64 `json:"slippage_cost"`
	Commission   float64 `json:"commission"`

	BarsHeld  int     `json:"bars_held"`
	MAEPips   float64 `json:"mae_pips"` // 最大不利偏移
	MFEPips   float64 `json:"mfe_pips"` // 最大有利偏移
	TimeExit  bool    `json:"time_exit"` // 到达回测边界被强制平仓
	LatencyMs int64   `json:"latency_ms"` // 本笔交易实际使用的入场延迟
}
