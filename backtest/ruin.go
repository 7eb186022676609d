package backtest

import (
	"math"
	"math/rand"
)

// binomialRuin 经典二项近似破产概率
//
//	p = ((1-wr)/wr)^(ruin_dd / risk_per_trade)
//
// 胜率不高于 50% 时没有统计优势，破产概率按 1 处理
func binomialRuin(winRate float64, cfg AnalyzerConfig) float64 {
	if winRate <= 0.5 {
		return 1.0
	}
	if winRate >= 1.0 {
		return 0.0
	}
	units := cfg.RuinDrawdownLimit / cfg.RiskPerTradePct
	return math.Pow((1-winRate)/winRate, units)
}

// resampledRuin 路径重排破产频率：打乱交易顺序重放权益曲线，
// 统计回撤超过阈值的路径占比（顺序风险的经验估计）
func resampledRuin(trades []Trade, cfg AnalyzerConfig) float64 {
	if cfg.RuinResamplePaths <= 0 || len(trades) < 2 {
		return 0
	}

	pnls := make([]float64, len(trades))
	var total float64
	for i, t := range trades {
		pnls[i] = t.NetPnL
		if t.NetPnL > 0 {
			total += t.NetPnL
		}
	}
	if total <= 0 {
		return 1.0 // 毛盈利为零的序列任何排列都视为破产
	}
	// 回撤阈值按毛盈利规模折算到盈亏单位
	limit := cfg.RuinDrawdownLimit * total

	rng := rand.New(rand.NewSource(cfg.RuinSeed))
	shuffled := make([]float64, len(pnls))
	copy(shuffled, pnls)

	ruined := 0
	for p := 0; p < cfg.RuinResamplePaths; p++ {
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		var equity, peak float64
		for _, v := range shuffled {
			equity += v
			if equity > peak {
				peak = equity
			}
			if peak-equity > limit {
				ruined++
				break
			}
		}
	}
	return float64(ruined) / float64(cfg.RuinResamplePaths)
}
