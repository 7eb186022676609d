package backtest

import (
	"math"
	"testing"
	"time"
)

// tradeWithPnL 构造一笔净盈亏已知的交易
func tradeWithPnL(net float64, exit time.Time) Trade {
	return Trade{
		Symbol:     "EURUSD",
		Direction:  1,
		EntryTime:  exit.Add(-time.Hour).UnixMilli(),
		ExitTime:   exit.UnixMilli(),
		EntryPrice: 1.0,
		ExitPrice:  1.0 + net,
		FillRatio:  1.0,
		GrossPnL:   net,
		NetPnL:     net,
		NetBps:     net * 10_000,
		BarsHeld:   1,
	}
}

func analyzerForTest() AnalyzerConfig {
	cfg := DefaultAnalyzerConfig()
	cfg.MinTrades = 3
	cfg.RuinResamplePaths = 100
	return cfg
}

func TestAnalyzeEmptyIsInconclusive(t *testing.T) {
	m, err := Analyze(nil, analyzerForTest())
	if err != nil {
		t.Fatalf("分析失败: %v", err)
	}
	if !m.Inconclusive {
		t.Error("空交易序列必须标记为不充分")
	}
	if m.TotalTrades != 0 {
		t.Errorf("交易数 = %d, 期望 0", m.TotalTrades)
	}
}

func TestAnalyzeBelowMinTrades(t *testing.T) {
	base := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	trades := []Trade{
		tradeWithPnL(0.001, base),
		tradeWithPnL(-0.0005, base.Add(time.Hour)),
	}
	cfg := analyzerForTest()
	cfg.MinTrades = 30

	m, err := Analyze(trades, cfg)
	if err != nil {
		t.Fatalf("分析失败: %v", err)
	}
	if !m.Inconclusive {
		t.Error("样本量低于下限必须标记为不充分")
	}
	// 计数类指标照常给出
	if m.TotalTrades != 2 || m.WinRate != 0.5 {
		t.Errorf("计数指标应照常计算: trades=%d winRate=%.2f", m.TotalTrades, m.WinRate)
	}
	// 比率与风险指标必须归零：2笔交易的 Sharpe/回撤没有统计意义
	if m.SharpeRatio != 0 || m.SortinoRatio != 0 {
		t.Errorf("样本不足时夏普/索提诺应为零: %.4f / %.4f", m.SharpeRatio, m.SortinoRatio)
	}
	if m.MaxDrawdown != 0 || m.MaxDrawdownPct != 0 {
		t.Errorf("样本不足时回撤应为零: %.6f / %.4f", m.MaxDrawdown, m.MaxDrawdownPct)
	}
	if m.ProfitFactor != 0 || m.PayoffRatio != 0 {
		t.Errorf("样本不足时盈亏比指标应为零: %.4f / %.4f", m.ProfitFactor, m.PayoffRatio)
	}
	if m.RiskOfRuin != 0 || m.ResampledRuin != 0 {
		t.Errorf("样本不足时破产概率应为零: %.4f / %.4f", m.RiskOfRuin, m.ResampledRuin)
	}
}

func TestMaxDrawdownReplay(t *testing.T) {
	base := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	pnls := []float64{10, -4, -3, 5}
	trades := make([]Trade, len(pnls))
	for i, p := range pnls {
		trades[i] = tradeWithPnL(p, base.Add(time.Duration(i)*time.Hour))
	}

	dd, ddPct := calculateMaxDrawdown(trades)
	if math.Abs(dd-7) > 1e-12 {
		t.Errorf("最大回撤 = %.2f, 期望 7（峰值10回落到3）", dd)
	}
	if math.Abs(ddPct-0.7) > 1e-12 {
		t.Errorf("回撤比例 = %.2f, 期望 0.7", ddPct)
	}
}

func TestAnalyzeOrdersByExitTime(t *testing.T) {
	base := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	// 故意乱序传入：回撤必须在时间序上求值
	trades := []Trade{
		tradeWithPnL(5, base.Add(3*time.Hour)),
		tradeWithPnL(10, base),
		tradeWithPnL(-3, base.Add(2*time.Hour)),
		tradeWithPnL(-4, base.Add(time.Hour)),
	}

	m, err := Analyze(trades, analyzerForTest())
	if err != nil {
		t.Fatalf("分析失败: %v", err)
	}
	if math.Abs(m.MaxDrawdown-7) > 1e-12 {
		t.Errorf("乱序输入下最大回撤 = %.2f, 期望 7", m.MaxDrawdown)
	}
}

func TestAnnualizationFactorDerived(t *testing.T) {
	cfg := AnalyzerConfig{
		MinTrades:         30,
		BarIntervalMs:     60 * 60 * 1000,
		RiskPerTradePct:   0.01,
		RuinDrawdownLimit: 0.20,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("校验失败: %v", err)
	}
	if math.Abs(cfg.AnnualizationFactor-8760) > 1e-9 {
		t.Errorf("1小时K线的年化因子 = %.1f, 期望 8760", cfg.AnnualizationFactor)
	}
}

func TestYearlySlices(t *testing.T) {
	trades := []Trade{
		tradeWithPnL(3, time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)),
		tradeWithPnL(2, time.Date(2021, 8, 1, 0, 0, 0, 0, time.UTC)),
		tradeWithPnL(-4, time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC)),
		tradeWithPnL(1, time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC)),
	}
	yearly, losing := calculateYearly(trades)
	if len(yearly) != 2 {
		t.Fatalf("年度切片数 = %d, 期望 2", len(yearly))
	}
	if yearly[0].Year != 2021 || yearly[0].NetPnL != 5 || yearly[0].IsLosing {
		t.Errorf("2021 切片错误: %+v", yearly[0])
	}
	if yearly[1].Year != 2022 || yearly[1].NetPnL != -3 || !yearly[1].IsLosing {
		t.Errorf("2022 切片错误: %+v", yearly[1])
	}
	if losing != 1 {
		t.Errorf("亏损年数 = %d, 期望 1", losing)
	}
}

func TestBinomialRuin(t *testing.T) {
	cfg := analyzerForTest()

	if got := binomialRuin(0.45, cfg); got != 1.0 {
		t.Errorf("胜率不高于50%%时破产概率应为1, 得到 %.4f", got)
	}
	if got := binomialRuin(1.0, cfg); got != 0.0 {
		t.Errorf("全胜时破产概率应为0, 得到 %.4f", got)
	}

	// ((1-0.6)/0.6)^(0.20/0.01) = (2/3)^20
	want := math.Pow(2.0/3.0, 20)
	if got := binomialRuin(0.6, cfg); math.Abs(got-want) > 1e-12 {
		t.Errorf("二项破产概率 = %.8f, 期望 %.8f", got, want)
	}
}

func TestResampledRuinDeterministic(t *testing.T) {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := make([]Trade, 40)
	for i := range trades {
		pnl := 2.0
		if i%3 == 0 {
			pnl = -3.0
		}
		trades[i] = tradeWithPnL(pnl, base.Add(time.Duration(i)*time.Hour))
	}

	cfg := analyzerForTest()
	first := resampledRuin(trades, cfg)
	second := resampledRuin(trades, cfg)
	if first != second {
		t.Errorf("同一种子的重排破产频率必须可复现: %.4f != %.4f", first, second)
	}
	if first < 0 || first > 1 {
		t.Errorf("破产频率越界: %.4f", first)
	}
}

func TestResampledRuinAllLosing(t *testing.T) {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []Trade{
		tradeWithPnL(-1, base),
		tradeWithPnL(-2, base.Add(time.Hour)),
		tradeWithPnL(-1, base.Add(2*time.Hour)),
	}
	if got := resampledRuin(trades, analyzerForTest()); got != 1.0 {
		t.Errorf("无正盈利的序列任何排列都应视为破产, 得到 %.4f", got)
	}
}
