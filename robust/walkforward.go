package robust

import (
	"context"
	"fmt"

	"edgeaudit/backtest"
	"edgeaudit/logger"
	"edgeaudit/market"
)

const dayMs = 24 * 60 * 60 * 1000

// window 半开时间区间 [Start, End) 对应的K线下标范围 [lo, hi)
type window struct {
	lo, hi int
	start  int64
	end    int64
}

// splitWindows 将K线序列切成顺序窗口
// Windows 模式按等量K线切分，WindowDays 模式按日历天数切分
func splitWindows(candles []*market.Candle, cfg WalkForwardConfig) ([]window, error) {
	n := len(candles)
	if cfg.Windows > 0 {
		if cfg.Windows > n/2 {
			return nil, fmt.Errorf("窗口数 %d 过大，每个窗口不足2根K线（共 %d 根）", cfg.Windows, n)
		}
		size := n / cfg.Windows
		out := make([]window, 0, cfg.Windows)
		for i := 0; i < cfg.Windows; i++ {
			lo := i * size
			hi := lo + size
			if i == cfg.Windows-1 {
				hi = n // 余数并入最后一个窗口
			}
			out = append(out, window{
				lo:    lo,
				hi:    hi,
				start: candles[lo].Timestamp,
				end:   candles[hi-1].Timestamp + 1,
			})
		}
		return out, nil
	}

	span := candles[n-1].Timestamp - candles[0].Timestamp
	winMs := int64(cfg.WindowDays) * dayMs
	if winMs > span {
		return nil, fmt.Errorf("窗口长度 %d 天超过数据范围（约 %d 天）", cfg.WindowDays, span/dayMs+1)
	}

	var out []window
	lo := 0
	for lo < n {
		start := candles[lo].Timestamp
		end := start + winMs
		// 二分定位第一根时间戳 >= end 的K线
		hi := market.FindTriggerIndex(candles, end)
		if hi <= lo {
			hi = n
		}
		if hi-lo >= 2 {
			out = append(out, window{lo: lo, hi: hi, start: start, end: end})
		}
		lo = hi
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("按 %d 天切分未得到任何有效窗口", cfg.WindowDays)
	}
	return out, nil
}

// runWalkForward 时间外窗口扫描：每个窗口独立重放模拟
// 优势若只存在于个别窗口而非贯穿时间轴，多为过拟合假象
func (v *Validator) runWalkForward(ctx context.Context) (SweepResult, error) {
	wins, err := splitWindows(v.Candles, v.Cfg.WalkForward)
	if err != nil {
		return SweepResult{}, fmt.Errorf("walk_forward 切窗失败: %w", err)
	}
	logger.Info("📅 时间外窗口扫描: %d 个窗口", len(wins))

	results := make([]PerturbationResult, 0, len(wins))
	partial := false

	for i, w := range wins {
		select {
		case <-ctx.Done():
			partial = true
		default:
		}
		if partial {
			break
		}

		res := PerturbationResult{
			Mode: ModeWalkForward,
			Name: fmt.Sprintf("window_%d", i+1),
			Params: map[string]float64{
				"start_ms": float64(w.start),
				"end_ms":   float64(w.end),
			},
		}

		winCandles := v.Candles[w.lo:w.hi]
		winSignals := signalsWithin(v.Signals, w.start, winCandles[len(winCandles)-1].Timestamp)

		trades, err := backtest.Simulate(winCandles, winSignals, v.BaseConfig, v.Seed)
		if err != nil {
			res.Excluded = true
			res.Warnings = append(res.Warnings, fmt.Sprintf("模拟失败: %v", err))
			results = append(results, res)
			continue
		}
		res.Trades = len(trades)
		if len(trades) < v.Cfg.WalkForward.MinTrades {
			res.Excluded = true
			res.Warnings = append(res.Warnings, fmt.Sprintf("交易数 %d 低于下限 %d", len(trades), v.Cfg.WalkForward.MinTrades))
			results = append(results, res)
			continue
		}

		metrics, err := backtest.Analyze(trades, v.Analyzer)
		if err != nil {
			res.Excluded = true
			res.Warnings = append(res.Warnings, fmt.Sprintf("分析失败: %v", err))
			results = append(results, res)
			continue
		}
		res.Metrics = metrics
		results = append(results, res)
	}

	return summarize(ModeWalkForward, results, partial), nil
}

// signalsWithin 取触发时间落在 [start, last] 内的信号（保持原顺序）
func signalsWithin(signals []*market.Signal, start, last int64) []*market.Signal {
	out := make([]*market.Signal, 0)
	for _, s := range signals {
		if s.TriggerTime >= start && s.TriggerTime <= last {
			out = append(out, s)
		}
	}
	return out
}
