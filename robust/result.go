package robust

import (
	"edgeaudit/backtest"
)

// Label 稳健性结论分级
type Label string

const (
	// LabelRobustRealEdge 扰动下存活，成本后期望显著为正
	LabelRobustRealEdge Label = "robust_real_edge"
	// LabelExecutableAdvanced 有真实优势但对执行质量敏感，普通零售通道难以兑现
	LabelExecutableAdvanced Label = "executable_with_advanced_execution"
	// LabelMicroEdge 优势存在但单笔净期望过薄，被摩擦吞噬
	LabelMicroEdge Label = "micro_edge_not_retail_executable"
	// LabelStatisticalIllusion 无法在时间外/扰动下复现，大概率是过拟合
	LabelStatisticalIllusion Label = "statistical_illusion"
	// LabelInconclusive 样本量不足，不下结论
	LabelInconclusive Label = "inconclusive"
)

// Mode 扰动维度
type Mode string

const (
	ModeWalkForward Mode = "walk_forward"
	ModeMonteCarlo  Mode = "monte_carlo"
	ModeSensitivity Mode = "sensitivity"
	ModeRegime      Mode = "regime"
)

// PerturbationResult 单个扰动单元（一个窗口/一次试验/一个参数格点/一个市场状态）的结果
type PerturbationResult struct {
	Mode     Mode               `json:"mode"`
	Name     string             `json:"name"`             // 如 "window_3"、"spread_pips=1.5/latency_ms=500"
	Params   map[string]float64 `json:"params,omitempty"` // 该单元生效的参数覆盖
	Trades   int                `json:"trades"`
	Metrics  backtest.Metrics   `json:"metrics"`
	Excluded bool               `json:"excluded"` // 样本不足等原因被排除出统计
	Warnings []string           `json:"warnings,omitempty"`
}

// Survived 该单元是否存活（成本后期望为正且样本充分）
func (r *PerturbationResult) Survived() bool {
	return !r.Excluded && !r.Metrics.Inconclusive && r.Metrics.NetExpectancy > 0
}

// SweepResult 一个扰动维度的汇总
type SweepResult struct {
	Mode         Mode                 `json:"mode"`
	Results      []PerturbationResult `json:"results"`
	Total        int                  `json:"total"`
	Counted      int                  `json:"counted"` // 未被排除的单元数
	Survivors    int                  `json:"survivors"`
	SurvivalRate float64              `json:"survival_rate"`
	Partial      bool                 `json:"partial"`     // 扫描被取消，结果只覆盖部分单元
	DurationMs   int64                `json:"duration_ms"` // 该维度扫描耗时
}

// summarize 汇总存活统计（排除的单元不参与分母）
func summarize(mode Mode, results []PerturbationResult, partial bool) SweepResult {
	s := SweepResult{Mode: mode, Results: results, Total: len(results), Partial: partial}
	for i := range results {
		if results[i].Excluded {
			continue
		}
		s.Counted++
		if results[i].Survived() {
			s.Survivors++
		}
	}
	if s.Counted > 0 {
		s.SurvivalRate = float64(s.Survivors) / float64(s.Counted)
	}
	return s
}
