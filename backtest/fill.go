package backtest

import (
	"math/rand"

	"edgeaudit/market"
)

// 成交策略：封闭的标签变体，在配置阶段解析完毕
// 每个变体暴露统一的 computeFill 能力，运行期不允许动态替换

// fillResolver 入场成交解析器
type fillResolver interface {
	// computeFill 从订单可见时刻开始解析成交
	// 返回成交结果与订单终态；未成交时 outcome 无意义
	computeFill(s *simState, ord *Order, rng *rand.Rand) (FillOutcome, OrderStatus)
}

// newFillResolver 根据配置解析成交策略（配置错误已在 Validate 阶段拒绝）
func newFillResolver(cfg *ExecConfig) fillResolver {
	switch cfg.FillPolicy {
	case FillLimitTouch:
		return &limitFill{atWorse: cfg.GapThroughAtWorse}
	case FillLimitProb:
		return &limitFill{
			atWorse:       cfg.GapThroughAtWorse,
			probabilistic: true,
			probability:   cfg.FillProbability,
			minRatio:      cfg.MinFillRatio,
		}
	default:
		return &marketFill{}
	}
}

// marketFill 市价立即成交：在可见时刻的路径价格上承担点差+滑点
type marketFill struct{}

func (m *marketFill) computeFill(s *simState, ord *Order, rng *rand.Rand) (FillOutcome, OrderStatus) {
	raw, idx, ok := s.pathPrice(ord.VisibleTime)
	if !ok {
		return FillOutcome{}, StatusRejected // 可见时刻已超出数据范围，无可成交价
	}

	spread := s.halfSpread(idx)
	slip := s.halfSlippage(idx)
	price := raw + float64(ord.Direction)*(spread+slip) // 不利方向调整

	return FillOutcome{
		Price:        price,
		Time:         ord.VisibleTime,
		Ratio:        1.0,
		BarIndex:     idx,
		SpreadCost:   spread,
		SlippageCost: slip,
	}, StatusFilled
}

// limitFill 限价成交：要求K线 high/low 区间在订单有效期内触碰限价
// 被动成交不额外承担点差/滑点（maker），但要承担排队不确定性
type limitFill struct {
	atWorse       bool // 跳空穿越时按更差的缺口后价格成交
	probabilistic bool
	probability   float64
	minRatio      float64
}

func (l *limitFill) computeFill(s *simState, ord *Order, rng *rand.Rand) (FillOutcome, OrderStatus) {
	startIdx := s.locate(ord.VisibleTime)
	if startIdx < 0 {
		startIdx = market.FindTriggerIndex(s.candles, ord.VisibleTime)
	}
	if startIdx >= len(s.candles) {
		return FillOutcome{}, StatusRejected
	}

	limit := ord.LimitPrice
	dir := float64(ord.Direction)
	endIdx := startIdx + s.cfg.OrderTTLBars
	if endIdx > len(s.candles) {
		endIdx = len(s.candles)
	}

	for i := startIdx; i < endIdx; i++ {
		bar := s.candles[i]

		// 跳空穿越：开盘价已越过限价（long 开盘低于限价 / short 开盘高于限价）
		gappedThrough := dir*(limit-bar.Open) > 0

		touched := gappedThrough || bar.Touches(limit)
		if !touched {
			continue
		}

		// 排队位置不确定性：每次触碰是一次独立的成交机会
		ratio := 1.0
		if l.probabilistic {
			if rng.Float64() > l.probability {
				continue
			}
			ratio = l.minRatio + rng.Float64()*(1.0-l.minRatio)
		}

		price := limit
		if gappedThrough && l.atWorse {
			price = bar.Open
		}

		return FillOutcome{
			Price:    price,
			Time:     bar.Timestamp,
			Ratio:    ratio,
			BarIndex: i,
		}, StatusFilled
	}

	return FillOutcome{}, StatusExpired // 有效期内无触碰，订单过期
}

// halfSpread 返回在第 idx 根K线成交需承担的半点差（价格单位）
func (s *simState) halfSpread(idx int) float64 {
	half := s.cfg.SpreadPips * s.cfg.PipSize / 2.0
	if s.cfg.SpreadModel == SpreadDynamic {
		half *= s.rangeScale(idx)
	}
	return half
}

// halfSlippage 返回在第 idx 根K线成交需承担的滑点（价格单位，单边承担一半）
func (s *simState) halfSlippage(idx int) float64 {
	half := s.cfg.SlippagePips * s.cfg.PipSize / 2.0
	if s.cfg.SlippageModel == SlippageVolScaled {
		half *= s.rangeScale(idx)
	}
	return half
}

// rangeScale 当前K线波幅相对参考窗口平均波幅的比例（用于动态点差/波动率滑点）
func (s *simState) rangeScale(idx int) float64 {
	if s.avgRange == nil || idx >= len(s.avgRange) || s.avgRange[idx] <= 0 {
		return 1.0
	}
	return s.candles[idx].Range() / s.avgRange[idx]
}
