package robust

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"edgeaudit/backtest"
	"edgeaudit/logger"
)

// 可通过网格覆盖的执行参数
// 覆盖发生在配置副本上，基准配置永不被修改
func isOverridableParam(name string) bool {
	switch name {
	case "spread_pips", "slippage_pips", "latency_ms", "latency_jitter_ms",
		"holding_bars", "commission_per_trade", "limit_offset_pips",
		"fill_probability", "order_ttl_bars":
		return true
	}
	return false
}

// applyOverride 将命名参数覆盖写入配置副本
func applyOverride(cfg *backtest.ExecConfig, name string, v float64) {
	switch name {
	case "spread_pips":
		cfg.SpreadPips = v
	case "slippage_pips":
		cfg.SlippagePips = v
	case "latency_ms":
		cfg.LatencyMs = int64(v)
	case "latency_jitter_ms":
		cfg.LatencyJitterMs = int64(v)
	case "holding_bars":
		cfg.HoldingBars = int(v)
	case "commission_per_trade":
		cfg.CommissionPerTrade = v
	case "limit_offset_pips":
		cfg.LimitOffsetPips = v
	case "fill_probability":
		cfg.FillProbability = v
	case "order_ttl_bars":
		cfg.OrderTTLBars = int(v)
	}
}

// enumerateGrid 按参数名字典序展开笛卡尔积，保证格点顺序稳定可复现
func enumerateGrid(grid map[string][]float64) []map[string]float64 {
	names := make([]string, 0, len(grid))
	for name := range grid {
		names = append(names, name)
	}
	sort.Strings(names)

	cells := []map[string]float64{{}}
	for _, name := range names {
		next := make([]map[string]float64, 0, len(cells)*len(grid[name]))
		for _, cell := range cells {
			for _, v := range grid[name] {
				c := make(map[string]float64, len(cell)+1)
				for k, val := range cell {
					c[k] = val
				}
				c[name] = v
				next = append(next, c)
			}
		}
		cells = next
	}
	return cells
}

// cellName 格点的稳定可读名称，如 latency_ms=500/spread_pips=1.5
func cellName(params map[string]float64) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%g", name, params[name]))
	}
	return strings.Join(parts, "/")
}

// runSensitivity 执行参数网格扫描：每个格点在覆盖后的配置上全量重放模拟
// 扫描可被 ctx 取消，已完成的格点仍构成有效的部分结果
func (v *Validator) runSensitivity(ctx context.Context) SweepResult {
	cells := enumerateGrid(v.Cfg.Sensitivity.Grid)
	logger.Info("🔬 参数敏感性扫描: %d 个格点, %d 个工作协程", len(cells), v.Cfg.Sensitivity.Workers)

	minTrades := v.Cfg.Sensitivity.MinTrades

	results, partial := runPool(ctx, v.Cfg.Sensitivity.Workers, len(cells), func(i int) PerturbationResult {
		params := cells[i]
		cfg := v.BaseConfig
		for name, val := range params {
			applyOverride(&cfg, name, val)
		}

		res := PerturbationResult{
			Mode:   ModeSensitivity,
			Name:   cellName(params),
			Params: params,
		}

		trades, err := backtest.Simulate(v.Candles, v.Signals, cfg, v.Seed)
		if err != nil {
			res.Excluded = true
			res.Warnings = append(res.Warnings, fmt.Sprintf("模拟失败: %v", err))
			return res
		}
		res.Trades = len(trades)
		if len(trades) < minTrades {
			// 样本不足的格点不计入存活率，避免稀疏格点污染结论
			res.Excluded = true
			res.Warnings = append(res.Warnings, fmt.Sprintf("交易数 %d 低于下限 %d", len(trades), minTrades))
			return res
		}

		metrics, err := backtest.Analyze(trades, v.Analyzer)
		if err != nil {
			res.Excluded = true
			res.Warnings = append(res.Warnings, fmt.Sprintf("分析失败: %v", err))
			return res
		}
		res.Metrics = metrics
		return res
	})

	return summarize(ModeSensitivity, results, partial)
}
