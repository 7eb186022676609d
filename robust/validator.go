package robust

import (
	"context"
	"fmt"
	"sort"
	"time"

	"edgeaudit/backtest"
	"edgeaudit/logger"
	"edgeaudit/market"
)

// Validator 稳健性验证流水线
// 输入固定的信号序列与基准执行配置，在多个扰动维度上重放模拟，
// 检验回测优势是否经得起时间外窗口、随机重排与执行参数恶化
type Validator struct {
	Candles      []*market.Candle
	Signals      []*market.Signal
	BaseConfig   backtest.ExecConfig
	Analyzer     backtest.AnalyzerConfig
	Cfg          Config
	Seed         int64
	RegimeLabels []RegimeLabel // 仅 regime 模式使用
}

// Verdict 验证结论
type Verdict struct {
	BaseMetrics         backtest.Metrics     `json:"base_metrics"`
	Sweeps              map[Mode]SweepResult `json:"sweeps"`
	MonteCarloCI        *BootstrapCI         `json:"monte_carlo_ci,omitempty"`
	RegimeConcentration float64              `json:"regime_concentration"`
	Anomalies           []AnomalyWarning     `json:"anomalies,omitempty"` // 统计异常标注，随结论一起呈现
	Label               Label                `json:"label"`
	Reasons             []string             `json:"reasons"`
	Partial             bool                 `json:"partial"` // 任一扫描被取消
	ConfigHash          string               `json:"config_hash"`
	SeriesHash          string               `json:"series_hash"`
	Seed                int64                `json:"seed"`
}

// SweepModes 按固定顺序返回已执行的扰动维度
// map 遍历顺序随机，报告输出必须与扫描完成顺序无关
func (v *Verdict) SweepModes() []Mode {
	modes := make([]Mode, 0, len(v.Sweeps))
	for m := range v.Sweeps {
		modes = append(modes, m)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
	return modes
}

// Run 执行完整验证：基准模拟 → 各扰动维度 → 结论分级
// ctx 取消时立即停止后续扫描，已完成的维度保留并标记 Partial
func (v *Validator) Run(ctx context.Context) (*Verdict, error) {
	if err := v.Cfg.Validate(); err != nil {
		return nil, fmt.Errorf("验证配置非法: %w", err)
	}

	logger.Info("🚀 开始稳健性验证: %d 根K线, %d 个信号, 模式 %v", len(v.Candles), len(v.Signals), v.Cfg.Modes)

	baseTrades, err := backtest.Simulate(v.Candles, v.Signals, v.BaseConfig, v.Seed)
	if err != nil {
		return nil, fmt.Errorf("基准模拟失败: %w", err)
	}
	baseMetrics, err := backtest.Analyze(baseTrades, v.Analyzer)
	if err != nil {
		return nil, fmt.Errorf("基准分析失败: %w", err)
	}
	logger.Info("📊 基准: %d 笔交易, 胜率 %.1f%%, 净期望 %.6f",
		baseMetrics.TotalTrades, baseMetrics.WinRate*100, baseMetrics.NetExpectancy)

	verdict := &Verdict{
		BaseMetrics: baseMetrics,
		Sweeps:      make(map[Mode]SweepResult),
		ConfigHash:  backtest.ConfigHash(v.BaseConfig),
		SeriesHash:  backtest.SeriesHash(v.Candles),
		Seed:        v.Seed,
	}

	verdict.Anomalies = detectYearlyDominance(baseMetrics)

	if v.Cfg.Enabled(ModeWalkForward) {
		start := time.Now()
		sweep, err := v.runWalkForward(ctx)
		if err != nil {
			return nil, err
		}
		sweep.DurationMs = time.Since(start).Milliseconds()
		verdict.Sweeps[ModeWalkForward] = sweep
		verdict.Partial = verdict.Partial || sweep.Partial
	}

	if v.Cfg.Enabled(ModeMonteCarlo) && ctx.Err() == nil {
		start := time.Now()
		sweep, ci := v.runMonteCarlo(ctx, baseTrades)
		sweep.DurationMs = time.Since(start).Milliseconds()
		verdict.Sweeps[ModeMonteCarlo] = sweep
		verdict.MonteCarloCI = ci
		verdict.Partial = verdict.Partial || sweep.Partial
	}

	if v.Cfg.Enabled(ModeSensitivity) && ctx.Err() == nil {
		start := time.Now()
		sweep := v.runSensitivity(ctx)
		sweep.DurationMs = time.Since(start).Milliseconds()
		verdict.Sweeps[ModeSensitivity] = sweep
		verdict.Partial = verdict.Partial || sweep.Partial
	}

	if v.Cfg.Enabled(ModeRegime) {
		start := time.Now()
		sweep, conc, anomaly := v.runRegime(v.RegimeLabels, baseTrades)
		sweep.DurationMs = time.Since(start).Milliseconds()
		verdict.Sweeps[ModeRegime] = sweep
		verdict.RegimeConcentration = conc
		if anomaly != nil {
			verdict.Anomalies = append(verdict.Anomalies, *anomaly)
		}
	}

	verdict.Label, verdict.Reasons = classify(baseMetrics, verdict.Sweeps, verdict.MonteCarloCI, verdict.RegimeConcentration, verdict.Anomalies, v.Cfg.Thresholds)
	logger.Info("🏁 验证完成: %s", verdict.Label)
	for _, r := range verdict.Reasons {
		logger.Info("   · %s", r)
	}
	return verdict, nil
}
