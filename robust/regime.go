package robust

import (
	"fmt"

	"edgeaudit/backtest"
	"edgeaudit/logger"
)

// RegimeLabel 外部提供的市场状态标注（趋势/震荡/高波动等），半开区间 [Start, End)
type RegimeLabel struct {
	Name  string `yaml:"name" json:"name"`
	Start int64  `yaml:"start" json:"start"` // 毫秒时间戳
	End   int64  `yaml:"end" json:"end"`
}

// runRegime 按市场状态分区重算指标
// 盈利高度集中于单一状态的策略在状态切换后即失效，标记为脆弱
func (v *Validator) runRegime(labels []RegimeLabel, baseTrades []backtest.Trade) (SweepResult, float64, *AnomalyWarning) {
	if len(labels) == 0 {
		logger.Warn("⚠️ 未提供状态标注，跳过状态分区")
		return SweepResult{Mode: ModeRegime}, 0, nil
	}
	logger.Info("🗂️ 市场状态分区: %d 个状态", len(labels))

	results := make([]PerturbationResult, 0, len(labels))
	var totalPositive, topPositive float64
	topIdx := -1

	for _, lb := range labels {
		var trades []backtest.Trade
		for _, t := range baseTrades {
			if t.EntryTime >= lb.Start && t.EntryTime < lb.End {
				trades = append(trades, t)
			}
		}

		res := PerturbationResult{
			Mode:   ModeRegime,
			Name:   lb.Name,
			Trades: len(trades),
			Params: map[string]float64{
				"start_ms": float64(lb.Start),
				"end_ms":   float64(lb.End),
			},
		}
		if len(trades) < v.Cfg.Regime.MinTrades {
			res.Excluded = true
			res.Warnings = append(res.Warnings, fmt.Sprintf("交易数 %d 低于下限 %d", len(trades), v.Cfg.Regime.MinTrades))
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

		if metrics.TotalNetPnL > 0 {
			totalPositive += metrics.TotalNetPnL
			if metrics.TotalNetPnL > topPositive {
				topPositive = metrics.TotalNetPnL
				topIdx = len(results) - 1
			}
		}
	}

	// 集中度 = 盈利最大的状态占全部正盈利状态的份额
	concentration := 0.0
	if totalPositive > 0 {
		concentration = topPositive / totalPositive
	}

	// 单一状态支配聚合盈利属于统计异常：标注到该状态单元并上报，不允许被平均掉
	var anomaly *AnomalyWarning
	if topIdx >= 0 && concentration > dominanceShare {
		anomaly = &AnomalyWarning{
			Kind:  "regime_dominance",
			Name:  results[topIdx].Name,
			Share: concentration,
		}
		results[topIdx].Warnings = append(results[topIdx].Warnings, anomaly.String())
	}
	return summarize(ModeRegime, results, false), concentration, anomaly
}
