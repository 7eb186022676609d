package backtest

import (
	"fmt"
	"math/rand"

	"edgeaudit/logger"
	"edgeaudit/market"
)

// 每个订单使用独立派生的种子，保证成交概率/滑点抖动的随机消耗
// 互不影响，同一 (bars, signals, config, seed) 永远产出相同的交易序列
const orderSeedStride = 1_000_003

// simState 单次模拟的只读状态（不持有任何可变全局）
type simState struct {
	candles    []*market.Candle
	cfg        *ExecConfig
	intervalMs int64
	avgRange   []float64 // VolWindow 滚动平均波幅（仅动态模型需要）
}

func (s *simState) pathPrice(ts int64) (float64, int, bool) {
	return pathPriceAt(s.candles, ts, s.intervalMs)
}

func (s *simState) locate(ts int64) int {
	return locateBar(s.candles, ts, s.intervalMs)
}

// Simulate 执行模拟：signals + bars → 按时间排序的已平仓交易序列
//
// 保证：
//   - 纯函数，不修改输入，结果只由 (candles, signals, cfg, seed) 决定
//   - 可成交价格在 trigger_time + latency 时刻沿K线内路径求值
//   - 有效期内无法成交的订单被拒绝/过期，不产生交易
//   - 持仓绝不跨越数据末尾（到达边界强制平仓）
func Simulate(candles []*market.Candle, signals []*market.Signal, cfg ExecConfig, seed int64) ([]Trade, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("执行配置非法: %w", err)
	}
	if len(candles) < 2 {
		return nil, &market.IntegrityError{Index: 0, Reason: "K线数量不足（至少2根）"}
	}
	if err := market.ValidateSeries(candles); err != nil {
		return nil, err
	}
	if err := market.ValidateSignals(signals, candles); err != nil {
		return nil, err
	}

	s := &simState{
		candles:    candles,
		cfg:        &cfg,
		intervalMs: market.BarIntervalMs(candles),
	}
	if s.intervalMs <= 0 {
		return nil, &market.IntegrityError{Index: 0, Reason: "无法确定K线周期"}
	}
	if cfg.SpreadModel == SpreadDynamic || cfg.SlippageModel == SlippageVolScaled {
		s.avgRange = rollingAvgRange(candles, cfg.VolWindow)
	}

	resolver := newFillResolver(&cfg)
	trades := make([]Trade, 0, len(signals))

	for i, sig := range signals {
		rng := rand.New(rand.NewSource(seed + int64(i)*orderSeedStride))

		trade, ok := s.resolveSignal(i, sig, resolver, rng)
		if ok {
			trades = append(trades, trade)
		}
	}

	logger.Debug("🎯 模拟完成: %d 信号 → %d 笔交易", len(signals), len(trades))
	return trades, nil
}

// resolveSignal 解析单个信号的完整订单生命周期
// 每个订单独立解析，不受其它在途订单影响
func (s *simState) resolveSignal(idx int, sig *market.Signal, resolver fillResolver, rng *rand.Rand) (Trade, bool) {
	triggerIdx := s.locate(sig.TriggerTime)
	if triggerIdx < 0 {
		return Trade{}, false // 触发时刻落在会话缺口内，无对应K线
	}
	triggerBar := s.candles[triggerIdx]

	// 入场时机决定订单提交时刻
	var submitTime int64
	switch s.cfg.EntryTiming {
	case EntryIntrabar:
		submitTime = sig.TriggerTime
	case EntryClose:
		submitTime = triggerBar.Timestamp + s.intervalMs
	case EntryNextOpen:
		if triggerIdx+1 >= len(s.candles) {
			return Trade{}, false
		}
		submitTime = s.candles[triggerIdx+1].Timestamp
	}

	latency := s.cfg.LatencyMs
	if s.cfg.LatencyJitterMs > 0 {
		latency += rng.Int63n(s.cfg.LatencyJitterMs + 1)
	}

	ord := &Order{
		SignalIndex: idx,
		SubmitTime:  submitTime,
		VisibleTime: submitTime + latency,
		Kind:        OrderMarket,
		Direction:   sig.Direction,
		Status:      StatusPending,
	}
	if s.cfg.FillPolicy != FillMarket {
		ord.Kind = OrderLimit
		// 限价锚定触发K线收盘价，向有利方向偏移
		ord.LimitPrice = triggerBar.Close - float64(sig.Direction)*s.cfg.LimitOffsetPips*s.cfg.PipSize
	}

	entry, status := resolver.computeFill(s, ord, rng)
	ord.Status = status
	if status != StatusFilled {
		return Trade{}, false // Rejected / Expired：无成交则无交易
	}

	exit, timeExit := s.resolveExit(entry.BarIndex, sig.Direction, latency, rng)

	dir := float64(sig.Direction)
	gross := (exit.Price - entry.Price) * dir * entry.Ratio
	spreadCost := (entry.SpreadCost + exit.SpreadCost) * entry.Ratio
	slipCost := (entry.SlippageCost + exit.SlippageCost) * entry.Ratio
	net := gross - s.cfg.CommissionPerTrade

	mae, mfe := s.excursion(entry.BarIndex, exit.BarIndex, entry.Price, sig.Direction)

	return Trade{
		Symbol:       sig.Symbol,
		StrategyID:   sig.StrategyID,
		Direction:    sig.Direction,
		EntryTime:    entry.Time,
		ExitTime:     exit.Time,
		EntryPrice:   entry.Price,
		ExitPrice:    exit.Price,
		FillRatio:    entry.Ratio,
		GrossPnL:     gross + spreadCost + slipCost,
		NetPnL:       net,
		NetBps:       net / entry.Price * 10_000,
		SpreadCost:   spreadCost,
		SlippageCost: slipCost,
		Commission:   s.cfg.CommissionPerTrade,
		BarsHeld:     exit.BarIndex - entry.BarIndex,
		MAEPips:      mae,
		MFEPips:      mfe,
		TimeExit:     timeExit,
		LatencyMs:    latency,
	}, true
}

// resolveExit 出场：持仓周期结束后按与入场相同的延迟/点差/滑点纪律平仓
// 超出数据末尾时按最后一根K线收盘强制平仓（时间出场）
func (s *simState) resolveExit(entryIdx int, dir market.Direction, latency int64, rng *rand.Rand) (FillOutcome, bool) {
	last := len(s.candles) - 1
	exitBarIdx := entryIdx + s.cfg.HoldingBars

	if exitBarIdx <= last {
		submit := s.candles[exitBarIdx].Timestamp + s.intervalMs // 持仓期末K线收盘
		visible := submit + latency                              // 平仓沿用同一订单延迟

		if raw, idx, ok := s.pathPrice(visible); ok {
			spread := s.halfSpread(idx)
			slip := s.halfSlippage(idx)
			return FillOutcome{
				Price:        raw - float64(dir)*(spread+slip), // 平仓方向的不利调整
				Time:         visible,
				Ratio:        1.0,
				BarIndex:     idx,
				SpreadCost:   spread,
				SlippageCost: slip,
			}, false
		}
	}

	// 强制平仓：最后一根K线收盘价，摩擦纪律不变
	spread := s.halfSpread(last)
	slip := s.halfSlippage(last)
	return FillOutcome{
		Price:        s.candles[last].Close - float64(dir)*(spread+slip),
		Time:         s.candles[last].Timestamp + s.intervalMs,
		Ratio:        1.0,
		BarIndex:     last,
		SpreadCost:   spread,
		SlippageCost: slip,
	}, true
}

// excursion 计算持仓期间的最大不利/有利偏移（pip）
func (s *simState) excursion(entryIdx, exitIdx int, entryPrice float64, dir market.Direction) (mae, mfe float64) {
	for i := entryIdx; i <= exitIdx && i < len(s.candles); i++ {
		bar := s.candles[i]
		var fav, adv float64
		if dir == market.Long {
			fav = (bar.High - entryPrice) / s.cfg.PipSize
			adv = (entryPrice - bar.Low) / s.cfg.PipSize
		} else {
			fav = (entryPrice - bar.Low) / s.cfg.PipSize
			adv = (bar.High - entryPrice) / s.cfg.PipSize
		}
		if fav > mfe {
			mfe = fav
		}
		if adv > mae {
			mae = adv
		}
	}
	return mae, mfe
}

// rollingAvgRange 计算每根K线前 window 根的平均波幅
func rollingAvgRange(candles []*market.Candle, window int) []float64 {
	out := make([]float64, len(candles))
	var sum float64
	for i, c := range candles {
		sum += c.Range()
		if i >= window {
			sum -= candles[i-window].Range()
			out[i] = sum / float64(window)
		} else {
			out[i] = sum / float64(i+1)
		}
	}
	return out
}
