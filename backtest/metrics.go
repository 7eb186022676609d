package backtest

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// AnalyzerConfig 绩效分析参数
type AnalyzerConfig struct {
	MinTrades           int     `yaml:"min_trades" json:"min_trades"`                     // 低于此数量结论标记为不充分
	BarIntervalMs       int64   `yaml:"bar_interval_ms" json:"bar_interval_ms"`           // 用于推导年化因子
	AnnualizationFactor float64 `yaml:"annualization_factor" json:"annualization_factor"` // 每年K线数（0=自动推导）
	RiskPerTradePct     float64 `yaml:"risk_per_trade_pct" json:"risk_per_trade_pct"`     // 单笔风险占比（破产概率用）
	RuinDrawdownLimit   float64 `yaml:"ruin_drawdown_limit" json:"ruin_drawdown_limit"`   // 视为破产的回撤阈值
	RuinResamplePaths   int     `yaml:"ruin_resample_paths" json:"ruin_resample_paths"`   // 重排路径数
	RuinSeed            int64   `yaml:"ruin_seed" json:"ruin_seed"`                       // 重排随机种子
}

// DefaultAnalyzerConfig 默认分析参数
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		MinTrades:         30,
		BarIntervalMs:     60 * 60 * 1000, // 1h
		RiskPerTradePct:   0.01,
		RuinDrawdownLimit: 0.20,
		RuinResamplePaths: 1000,
		RuinSeed:          42,
	}
}

// Validate 校验分析参数并推导年化因子
func (c *AnalyzerConfig) Validate() error {
	if c.MinTrades < 0 {
		return fmt.Errorf("min_trades 不能为负: %d", c.MinTrades)
	}
	if c.BarIntervalMs <= 0 && c.AnnualizationFactor <= 0 {
		return fmt.Errorf("bar_interval_ms 与 annualization_factor 必须至少提供一个")
	}
	if c.RiskPerTradePct <= 0 || c.RiskPerTradePct >= 1 {
		return fmt.Errorf("risk_per_trade_pct 必须在 (0,1) 内: %f", c.RiskPerTradePct)
	}
	if c.RuinDrawdownLimit <= 0 || c.RuinDrawdownLimit >= 1 {
		return fmt.Errorf("ruin_drawdown_limit 必须在 (0,1) 内: %f", c.RuinDrawdownLimit)
	}
	if c.RuinResamplePaths < 0 {
		return fmt.Errorf("ruin_resample_paths 不能为负: %d", c.RuinResamplePaths)
	}
	if c.AnnualizationFactor <= 0 {
		// 年化因子 = 每年K线数，由K线周期显式推导
		c.AnnualizationFactor = float64(365*24*60*60*1000) / float64(c.BarIntervalMs)
	}
	return nil
}

// YearStats 单个日历年的绩效切片
type YearStats struct {
	Year     int     `json:"year"`
	Trades   int     `json:"trades"`
	NetPnL   float64 `json:"net_pnl"`
	WinRate  float64 `json:"win_rate"`
	IsLosing bool    `json:"is_losing"`
}

// Metrics 绩效指标汇总
type Metrics struct {
	TotalTrades      int         `json:"total_trades"`
	WinRate          float64     `json:"win_rate"`
	GrossExpectancy  float64     `json:"gross_expectancy"` // 摩擦前单笔期望（价格单位）
	NetExpectancy    float64     `json:"net_expectancy"`   // 摩擦后单笔期望
	NetExpectBps     float64     `json:"net_expect_bps"`   // 单笔净期望（基点）
	TotalNetPnL      float64     `json:"total_net_pnl"`
	ProfitFactor     float64     `json:"profit_factor"`
	MaxDrawdown      float64     `json:"max_drawdown"`     // 累计净盈亏曲线的最大回撤
	MaxDrawdownPct   float64     `json:"max_drawdown_pct"` // 相对峰值的回撤比例
	SharpeRatio      float64     `json:"sharpe_ratio"`     // 年化
	SortinoRatio     float64     `json:"sortino_ratio"`
	PayoffRatio      float64     `json:"payoff_ratio"` // 平均盈利/平均亏损
	AvgBarsHeld      float64     `json:"avg_bars_held"`
	AvgMAEPips       float64     `json:"avg_mae_pips"`
	AvgMFEPips       float64     `json:"avg_mfe_pips"`
	TotalSpreadCost  float64     `json:"total_spread_cost"`
	TotalSlipCost    float64     `json:"total_slip_cost"`
	TotalCommission  float64     `json:"total_commission"`
	CostShareOfGross float64     `json:"cost_share_of_gross"` // 摩擦成本占毛盈利比例
	RiskOfRuin       float64     `json:"risk_of_ruin"`        // 二项近似
	ResampledRuin    float64     `json:"resampled_ruin"`      // 路径重排破产频率
	Yearly           []YearStats `json:"yearly,omitempty"`
	LosingYears      int         `json:"losing_years"`
	Inconclusive     bool        `json:"inconclusive"` // 样本量不足，结论不可靠
}

// Analyze 从已平仓交易序列计算绩效指标
// 交易先按出场时间排序，回撤与破产概率都在时间序上求值
func Analyze(trades []Trade, cfg AnalyzerConfig) (Metrics, error) {
	if err := cfg.Validate(); err != nil {
		return Metrics{}, err
	}

	m := Metrics{TotalTrades: len(trades)}
	if len(trades) == 0 {
		m.Inconclusive = true
		return m, nil
	}
	if len(trades) < cfg.MinTrades {
		m.Inconclusive = true
	}

	ordered := make([]Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExitTime < ordered[j].ExitTime
	})

	var (
		wins, grossSum, netSum          float64
		winSum, lossSum                 float64
		barsSum, maeSum, mfeSum, bpsSum float64
	)
	for _, t := range ordered {
		grossSum += t.GrossPnL
		netSum += t.NetPnL
		bpsSum += t.NetBps
		barsSum += float64(t.BarsHeld)
		maeSum += t.MAEPips
		mfeSum += t.MFEPips
		m.TotalSpreadCost += t.SpreadCost
		m.TotalSlipCost += t.SlippageCost
		m.TotalCommission += t.Commission
		if t.NetPnL > 0 {
			wins++
			winSum += t.NetPnL
		} else {
			lossSum += -t.NetPnL
		}
	}

	n := float64(len(ordered))
	m.WinRate = wins / n
	m.GrossExpectancy = grossSum / n
	m.NetExpectancy = netSum / n
	m.NetExpectBps = bpsSum / n
	m.TotalNetPnL = netSum
	m.AvgBarsHeld = barsSum / n
	m.AvgMAEPips = maeSum / n
	m.AvgMFEPips = mfeSum / n

	if winSum > 0 {
		m.CostShareOfGross = (m.TotalSpreadCost + m.TotalSlipCost + m.TotalCommission) / winSum
	}

	// 样本不足时比率与风险指标保持零值：一个由2笔交易算出的 Sharpe
	// 或回撤数值上成立但毫无统计意义，宁可不给也不给误导值
	if !m.Inconclusive {
		if lossSum > 0 {
			m.ProfitFactor = winSum / lossSum
		} else if winSum > 0 {
			m.ProfitFactor = math.Inf(1)
		}
		if wins > 0 && wins < n {
			avgWin := winSum / wins
			avgLoss := lossSum / (n - wins)
			if avgLoss > 0 {
				m.PayoffRatio = avgWin / avgLoss
			}
		}
		m.MaxDrawdown, m.MaxDrawdownPct = calculateMaxDrawdown(ordered)
		m.SharpeRatio, m.SortinoRatio = calculateRiskAdjusted(ordered, cfg, m.AvgBarsHeld)
		m.RiskOfRuin = binomialRuin(m.WinRate, cfg)
		m.ResampledRuin = resampledRuin(ordered, cfg)
	}
	m.Yearly, m.LosingYears = calculateYearly(ordered)

	return m, nil
}

// calculateMaxDrawdown 在累计净盈亏曲线上计算最大回撤
func calculateMaxDrawdown(trades []Trade) (dd float64, ddPct float64) {
	var equity, peak float64
	for _, t := range trades {
		equity += t.NetPnL
		if equity > peak {
			peak = equity
		}
		if d := peak - equity; d > dd {
			dd = d
			if peak > 0 {
				ddPct = d / peak
			}
		}
	}
	return dd, ddPct
}

// calculateRiskAdjusted 从单笔净收益序列计算年化夏普/索提诺
// 年化按平均持仓K线数折算：sqrt(每年K线数 / 平均持仓K线数)
func calculateRiskAdjusted(trades []Trade, cfg AnalyzerConfig, avgBarsHeld float64) (sharpe, sortino float64) {
	n := float64(len(trades))
	if n < 2 {
		return 0, 0
	}

	var mean float64
	for _, t := range trades {
		mean += t.NetBps
	}
	mean /= n

	var variance, downVar float64
	var downN float64
	for _, t := range trades {
		d := t.NetBps - mean
		variance += d * d
		if t.NetBps < 0 {
			downVar += t.NetBps * t.NetBps
			downN++
		}
	}
	variance /= n - 1

	if avgBarsHeld <= 0 {
		avgBarsHeld = 1
	}
	scale := math.Sqrt(cfg.AnnualizationFactor / avgBarsHeld)

	if sd := math.Sqrt(variance); sd > 0 {
		sharpe = mean / sd * scale
	}
	if downN > 0 {
		if dsd := math.Sqrt(downVar / downN); dsd > 0 {
			sortino = mean / dsd * scale
		}
	} else if mean > 0 {
		sortino = math.Inf(1)
	}
	return sharpe, sortino
}

// calculateYearly 按出场时间的日历年切片统计
func calculateYearly(trades []Trade) ([]YearStats, int) {
	byYear := make(map[int]*YearStats)
	var years []int
	for _, t := range trades {
		y := time.UnixMilli(t.ExitTime).UTC().Year()
		ys, ok := byYear[y]
		if !ok {
			ys = &YearStats{Year: y}
			byYear[y] = ys
			years = append(years, y)
		}
		ys.Trades++
		ys.NetPnL += t.NetPnL
		if t.NetPnL > 0 {
			ys.WinRate++
		}
	}
	sort.Ints(years)

	out := make([]YearStats, 0, len(years))
	losing := 0
	for _, y := range years {
		ys := byYear[y]
		ys.WinRate /= float64(ys.Trades)
		ys.IsLosing = ys.NetPnL < 0
		if ys.IsLosing {
			losing++
		}
		out = append(out, *ys)
	}
	return out, losing
}
