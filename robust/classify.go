package robust

import (
	"fmt"

	"edgeaudit/backtest"
)

// classify 将基准绩效与各扰动维度的存活情况归入结论分级
//
// 判定顺序从最坏到最好，命中即止：
//  1. 样本不足 → 不下结论
//  2. 成本后无优势，或时间外窗口大面积失效，或期望区间无法排除零 → 统计假象
//  3. 单笔净期望薄于地板值 → 微优势，零售执行无法兑现
//  4. 对执行参数敏感 / 破产概率过高 / 盈利集中于单一状态 → 需要高级执行
//  5. 以上全部通过 → 稳健的真实优势
//
// 检出的统计异常不改变分级，但逐条追加进判定依据：读者必须知道结论
// 建立在怎样分布的样本上
func classify(base backtest.Metrics, sweeps map[Mode]SweepResult, ci *BootstrapCI, regimeConc float64, anomalies []AnomalyWarning, th Thresholds) (Label, []string) {
	label, reasons := classifyLabel(base, sweeps, ci, regimeConc, th)
	for _, a := range anomalies {
		reasons = append(reasons, fmt.Sprintf("注意: %s，结论建立在异常分布的样本上", a))
	}
	return label, reasons
}

func classifyLabel(base backtest.Metrics, sweeps map[Mode]SweepResult, ci *BootstrapCI, regimeConc float64, th Thresholds) (Label, []string) {
	var reasons []string

	if base.Inconclusive {
		reasons = append(reasons, fmt.Sprintf("基准交易数 %d 不足以支撑统计结论", base.TotalTrades))
		return LabelInconclusive, reasons
	}

	illusion := false
	if base.NetExpectancy <= 0 {
		illusion = true
		reasons = append(reasons, fmt.Sprintf("成本后单笔期望 %.6f ≤ 0", base.NetExpectancy))
	}
	if wf, ok := sweeps[ModeWalkForward]; ok && wf.Counted > 0 && wf.SurvivalRate < th.MinWalkForwardSurvival {
		illusion = true
		reasons = append(reasons, fmt.Sprintf("时间外窗口存活率 %.0f%% 低于阈值 %.0f%%", wf.SurvivalRate*100, th.MinWalkForwardSurvival*100))
	}
	if ci != nil && !ci.ExcludesZero {
		illusion = true
		reasons = append(reasons, fmt.Sprintf("期望置信区间 [%.6f, %.6f] 包含零", ci.Low, ci.High))
	}
	if illusion {
		return LabelStatisticalIllusion, reasons
	}

	if base.NetExpectBps <= th.MicroEdgeFloorBps {
		reasons = append(reasons, fmt.Sprintf("单笔净期望 %.2f bps 不高于地板值 %.2f bps", base.NetExpectBps, th.MicroEdgeFloorBps))
		return LabelMicroEdge, reasons
	}

	advanced := false
	if grid, ok := sweeps[ModeSensitivity]; ok && grid.Counted > 0 && grid.SurvivalRate < th.MinGridSurvival {
		advanced = true
		reasons = append(reasons, fmt.Sprintf("参数网格存活率 %.0f%% 低于阈值 %.0f%%", grid.SurvivalRate*100, th.MinGridSurvival*100))
	}
	if base.ResampledRuin > th.MaxRuin {
		advanced = true
		reasons = append(reasons, fmt.Sprintf("重排破产频率 %.1f%% 超过上限 %.1f%%", base.ResampledRuin*100, th.MaxRuin*100))
	}
	if regimeConc > th.MaxRegimeConcentration {
		advanced = true
		reasons = append(reasons, fmt.Sprintf("盈利集中度 %.0f%% 超过上限 %.0f%%", regimeConc*100, th.MaxRegimeConcentration*100))
	}
	if advanced {
		return LabelExecutableAdvanced, reasons
	}

	reasons = append(reasons, "全部扰动维度存活，成本后优势成立")
	return LabelRobustRealEdge, reasons
}
