package robust

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"edgeaudit/backtest"
	"edgeaudit/logger"
)

// BootstrapCI 自助法期望置信区间
type BootstrapCI struct {
	Level        float64 `json:"level"`
	Low          float64 `json:"low"`
	High         float64 `json:"high"`
	ExcludesZero bool    `json:"excludes_zero"` // 区间不含零 ⇒ 期望显著偏离零
}

// runMonteCarlo 蒙特卡洛重采样：对基准交易序列做有放回自助抽样，
// 重建等长交易序列并重算指标，观察期望与回撤的分布
//
// BlockSize > 0 时按连续块抽样，保留交易间的短程相关性
func (v *Validator) runMonteCarlo(ctx context.Context, baseTrades []backtest.Trade) (SweepResult, *BootstrapCI) {
	cfg := v.Cfg.MonteCarlo
	n := len(baseTrades)
	if n < 2 {
		logger.Warn("⚠️ 基准交易不足，跳过蒙特卡洛重采样")
		return SweepResult{Mode: ModeMonteCarlo}, nil
	}
	logger.Info("🎲 蒙特卡洛重采样: %d 次试验, 块长度 %d", cfg.Trials, cfg.BlockSize)

	results := make([]PerturbationResult, 0, cfg.Trials)
	expectancies := make([]float64, 0, cfg.Trials)
	partial := false

	sample := make([]backtest.Trade, n)
	for trial := 0; trial < cfg.Trials; trial++ {
		select {
		case <-ctx.Done():
			partial = true
		default:
		}
		if partial {
			break
		}

		// 每次试验独立派生种子，任意单次试验可单独复现
		rng := rand.New(rand.NewSource(cfg.BaseSeed + int64(trial)))
		resample(baseTrades, sample, cfg.BlockSize, rng)

		res := PerturbationResult{
			Mode:   ModeMonteCarlo,
			Name:   fmt.Sprintf("trial_%d", trial+1),
			Trades: n,
		}
		metrics, err := backtest.Analyze(sample, v.Analyzer)
		if err != nil {
			res.Excluded = true
			res.Warnings = append(res.Warnings, fmt.Sprintf("分析失败: %v", err))
			results = append(results, res)
			continue
		}
		res.Metrics = metrics
		results = append(results, res)
		expectancies = append(expectancies, metrics.NetExpectancy)
	}

	sweep := summarize(ModeMonteCarlo, results, partial)
	return sweep, bootstrapCI(expectancies, cfg.CILevel)
}

// resample 将 src 重采样进 dst（等长，有放回）
func resample(src, dst []backtest.Trade, blockSize int, rng *rand.Rand) {
	n := len(src)
	if blockSize <= 1 {
		for i := range dst {
			dst[i] = src[rng.Intn(n)]
		}
		return
	}

	// 块自助法：随机起点的连续块拼接，末尾截断对齐
	for filled := 0; filled < n; {
		start := rng.Intn(n)
		for j := 0; j < blockSize && filled < n; j++ {
			dst[filled] = src[(start+j)%n]
			filled++
		}
	}
}

// bootstrapCI 从试验期望分布取分位数区间
func bootstrapCI(expectancies []float64, level float64) *BootstrapCI {
	if len(expectancies) < 10 {
		return nil
	}
	sorted := make([]float64, len(expectancies))
	copy(sorted, expectancies)
	sort.Float64s(sorted)

	alpha := (1 - level) / 2
	lo := sorted[quantileIndex(len(sorted), alpha)]
	hi := sorted[quantileIndex(len(sorted), 1-alpha)]

	return &BootstrapCI{
		Level:        level,
		Low:          lo,
		High:         hi,
		ExcludesZero: lo > 0 || hi < 0,
	}
}

func quantileIndex(n int, q float64) int {
	idx := int(q * float64(n))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}
