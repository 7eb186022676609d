package backtest

import (
	"math"
	"reflect"
	"testing"

	"edgeaudit/market"
)

const hourMs = int64(60 * 60 * 1000)

// flatCandles 生成价格恒定的小时K线
func flatCandles(n int, price float64) []*market.Candle {
	start := int64(1_600_000_000_000)
	out := make([]*market.Candle, n)
	for i := 0; i < n; i++ {
		out[i] = &market.Candle{
			Symbol:    "EURUSD",
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    100,
			Timestamp: start + int64(i)*hourMs,
			IsClosed:  true,
		}
	}
	return out
}

// trendCandles 生成每根收盘上移 step 的小时K线
func trendCandles(n int, base, step float64) []*market.Candle {
	start := int64(1_600_000_000_000)
	out := make([]*market.Candle, n)
	price := base
	for i := 0; i < n; i++ {
		open := price
		close := open + step
		out[i] = &market.Candle{
			Symbol:    "EURUSD",
			Open:      open,
			High:      math.Max(open, close) + 0.0001,
			Low:       math.Min(open, close) - 0.0001,
			Close:     close,
			Volume:    100,
			Timestamp: start + int64(i)*hourMs,
			IsClosed:  true,
		}
		price = close
	}
	return out
}

func longSignalAt(candles []*market.Candle, idx int) *market.Signal {
	return &market.Signal{
		TriggerTime: candles[idx].Timestamp,
		Symbol:      "EURUSD",
		Direction:   market.Long,
		Strength:    2.0,
		StrategyID:  "test",
	}
}

func baseTestConfig() ExecConfig {
	cfg := DefaultExecConfig()
	cfg.LatencyMs = 0
	cfg.SpreadPips = 1.0
	cfg.SlippagePips = 0.5
	cfg.HoldingBars = 1
	cfg.EntryTiming = EntryNextOpen
	cfg.CommissionPerTrade = 0.00002
	return cfg
}

func TestSimulateCostArithmetic(t *testing.T) {
	candles := flatCandles(6, 1.0)
	signals := []*market.Signal{longSignalAt(candles, 0)}
	cfg := baseTestConfig()

	trades, err := Simulate(candles, signals, cfg, 1)
	if err != nil {
		t.Fatalf("模拟失败: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("期望1笔交易，得到 %d", len(trades))
	}

	tr := trades[0]
	halfSpread := 1.0 * cfg.PipSize / 2
	halfSlip := 0.5 * cfg.PipSize / 2
	wantEntry := 1.0 + halfSpread + halfSlip
	wantExit := 1.0 - halfSpread - halfSlip

	if math.Abs(tr.EntryPrice-wantEntry) > 1e-12 {
		t.Errorf("入场价 = %.8f, 期望 %.8f", tr.EntryPrice, wantEntry)
	}
	if math.Abs(tr.ExitPrice-wantExit) > 1e-12 {
		t.Errorf("出场价 = %.8f, 期望 %.8f", tr.ExitPrice, wantExit)
	}

	// 恒定价格下毛盈亏应为零，净盈亏 = -往返摩擦 - 佣金
	wantNet := -(2*halfSpread + 2*halfSlip) - cfg.CommissionPerTrade
	if math.Abs(tr.NetPnL-wantNet) > 1e-12 {
		t.Errorf("净盈亏 = %.8f, 期望 %.8f", tr.NetPnL, wantNet)
	}
	if math.Abs(tr.GrossPnL) > 1e-12 {
		t.Errorf("恒定价格下毛盈亏应为零, 得到 %.8f", tr.GrossPnL)
	}
	if tr.TimeExit {
		t.Error("持仓期未越过数据末尾，不应是时间出场")
	}
}

func TestSimulateDeterministic(t *testing.T) {
	candles := trendCandles(300, 1.0, 0.0002)
	var signals []*market.Signal
	for i := 5; i < 280; i += 7 {
		signals = append(signals, longSignalAt(candles, i))
	}

	cfg := baseTestConfig()
	cfg.LatencyMs = 250
	cfg.LatencyJitterMs = 200
	cfg.FillPolicy = FillLimitProb
	cfg.LimitOffsetPips = 1.0
	cfg.FillProbability = 0.7
	cfg.MinFillRatio = 0.5
	cfg.OrderTTLBars = 3
	cfg.HoldingBars = 5

	first, err := Simulate(candles, signals, cfg, 42)
	if err != nil {
		t.Fatalf("模拟失败: %v", err)
	}
	second, err := Simulate(candles, signals, cfg, 42)
	if err != nil {
		t.Fatalf("重放失败: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("同一种子的两次模拟必须产出完全相同的交易序列")
	}
}

func TestSimulateLatencyCausality(t *testing.T) {
	// 上涨K线路径: Open → High → Low → Close，50% 位置恰为 Low
	candles := flatCandles(4, 1.0)
	candles[0].Open = 1.0
	candles[0].High = 2.0
	candles[0].Low = 0.5
	candles[0].Close = 1.5
	for _, c := range candles[1:] {
		c.Open, c.High, c.Low, c.Close = 1.5, 1.5, 1.5, 1.5
	}

	cfg := baseTestConfig()
	cfg.SpreadPips = 0
	cfg.SlippagePips = 0
	cfg.CommissionPerTrade = 0
	cfg.EntryTiming = EntryIntrabar
	cfg.LatencyMs = hourMs / 2

	signals := []*market.Signal{longSignalAt(candles, 0)}
	trades, err := Simulate(candles, signals, cfg, 1)
	if err != nil {
		t.Fatalf("模拟失败: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("期望1笔交易，得到 %d", len(trades))
	}
	if math.Abs(trades[0].EntryPrice-0.5) > 1e-12 {
		t.Errorf("延迟后的入场价应沿K线内路径求值 = 0.5, 得到 %.6f", trades[0].EntryPrice)
	}
	if trades[0].EntryTime != candles[0].Timestamp+cfg.LatencyMs {
		t.Errorf("入场时刻 = %d, 期望触发+延迟 = %d", trades[0].EntryTime, candles[0].Timestamp+cfg.LatencyMs)
	}
}

func TestSimulateForcedTimeExit(t *testing.T) {
	candles := flatCandles(4, 1.2)
	cfg := baseTestConfig()
	cfg.HoldingBars = 100 // 远超数据长度

	signals := []*market.Signal{longSignalAt(candles, 0)}
	trades, err := Simulate(candles, signals, cfg, 1)
	if err != nil {
		t.Fatalf("模拟失败: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("期望1笔交易，得到 %d", len(trades))
	}

	tr := trades[0]
	if !tr.TimeExit {
		t.Error("越过数据末尾的持仓必须标记时间出场")
	}
	last := candles[len(candles)-1]
	if tr.ExitTime != last.Timestamp+hourMs {
		t.Errorf("强制平仓时刻 = %d, 期望最后一根K线收盘 %d", tr.ExitTime, last.Timestamp+hourMs)
	}
	wantExit := last.Close - (1.0*cfg.PipSize/2 + 0.5*cfg.PipSize/2)
	if math.Abs(tr.ExitPrice-wantExit) > 1e-12 {
		t.Errorf("强制平仓价 = %.8f, 期望 %.8f（摩擦纪律不变）", tr.ExitPrice, wantExit)
	}
}

func TestSimulateRejectsInvalidConfig(t *testing.T) {
	candles := flatCandles(10, 1.0)
	cfg := baseTestConfig()
	cfg.SpreadPips = -1

	if _, err := Simulate(candles, nil, cfg, 1); err == nil {
		t.Error("负点差配置必须被拒绝")
	}

	cfg = baseTestConfig()
	cfg.HoldingBars = 0
	if _, err := Simulate(candles, nil, cfg, 1); err == nil {
		t.Error("holding_bars=0 必须被拒绝")
	}
}

func TestSimulateRejectsLookAheadSignal(t *testing.T) {
	candles := flatCandles(10, 1.0)
	future := &market.Signal{
		TriggerTime: candles[9].Timestamp + 10*hourMs,
		Symbol:      "EURUSD",
		Direction:   market.Long,
		StrategyID:  "test",
	}
	if _, err := Simulate(candles, []*market.Signal{future}, baseTestConfig(), 1); err == nil {
		t.Error("晚于最后一根K线的信号必须被拒绝")
	}
}

func TestSimulateNextOpenAtSeriesEnd(t *testing.T) {
	candles := flatCandles(5, 1.0)
	// 触发在最后一根K线，next_open 无下一根可入场
	signals := []*market.Signal{longSignalAt(candles, 4)}
	trades, err := Simulate(candles, signals, baseTestConfig(), 1)
	if err != nil {
		t.Fatalf("模拟失败: %v", err)
	}
	if len(trades) != 0 {
		t.Errorf("数据末尾的 next_open 信号应被跳过，得到 %d 笔交易", len(trades))
	}
}

func TestSimulateEntryCloseFillsAtGapOpen(t *testing.T) {
	// 触发K线收盘 1.0000，下一根跳空高开 1.0010
	// 收盘入场在路径上落在下一根开盘：成交价必须吃进跳空，而非已不可交易的收盘价
	candles := flatCandles(5, 1.0)
	for i := 1; i < 5; i++ {
		candles[i] = &market.Candle{
			Symbol:    "EURUSD",
			Open:      1.0010,
			High:      1.0012,
			Low:       1.0008,
			Close:     1.0010,
			Volume:    100,
			Timestamp: candles[i].Timestamp,
			IsClosed:  true,
		}
	}

	cfg := baseTestConfig()
	cfg.EntryTiming = EntryClose
	signals := []*market.Signal{longSignalAt(candles, 0)}

	trades, err := Simulate(candles, signals, cfg, 1)
	if err != nil {
		t.Fatalf("模拟失败: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("交易数 = %d, 期望 1", len(trades))
	}

	// halfSpread 0.00005 + halfSlip 0.000025
	wantEntry := 1.0010 + 0.000075
	if math.Abs(trades[0].EntryPrice-wantEntry) > 1e-12 {
		t.Errorf("收盘入场价 = %.6f, 期望跳空后开盘价加摩擦 %.6f", trades[0].EntryPrice, wantEntry)
	}
}
