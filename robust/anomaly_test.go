package robust

import (
	"math"
	"strings"
	"testing"

	"edgeaudit/backtest"
)

func TestDetectYearlyDominance(t *testing.T) {
	// 95% 的正盈利来自单一年份
	m := backtest.Metrics{
		Yearly: []backtest.YearStats{
			{Year: 2021, Trades: 80, NetPnL: 0.095},
			{Year: 2022, Trades: 40, NetPnL: 0.005},
		},
	}
	anomalies := detectYearlyDominance(m)
	if len(anomalies) != 1 {
		t.Fatalf("应检出 1 个年度支配异常, 得到 %d", len(anomalies))
	}
	a := anomalies[0]
	if a.Kind != "yearly_dominance" || a.Name != "2021" {
		t.Errorf("异常标注错误: %+v", a)
	}
	if math.Abs(a.Share-0.95) > 1e-9 {
		t.Errorf("支配份额 = %.4f, 期望 0.95", a.Share)
	}
}

func TestDetectYearlyDominanceBalanced(t *testing.T) {
	m := backtest.Metrics{
		Yearly: []backtest.YearStats{
			{Year: 2021, NetPnL: 0.05},
			{Year: 2022, NetPnL: 0.04},
			{Year: 2023, NetPnL: 0.06},
		},
	}
	if got := detectYearlyDominance(m); got != nil {
		t.Errorf("盈利分布均衡时不应标注异常: %+v", got)
	}
}

func TestDetectYearlyDominanceSingleYear(t *testing.T) {
	// 只有一个年份时无从判断集中度
	m := backtest.Metrics{
		Yearly: []backtest.YearStats{{Year: 2023, NetPnL: 0.1}},
	}
	if got := detectYearlyDominance(m); got != nil {
		t.Errorf("单一年份不应标注异常: %+v", got)
	}
}

func TestRunRegimeDominanceAnnotation(t *testing.T) {
	base := int64(1_600_000_000_000)
	labels := []RegimeLabel{
		{Name: "trend", Start: base, End: base + 30*hourMs},
		{Name: "chop", Start: base + 30*hourMs, End: base + 60*hourMs},
	}

	v := &Validator{
		Analyzer: analyzerForTest(),
		Cfg:      DefaultConfig(),
	}
	// trend 贡献 0.09 / 0.105 ≈ 85.7% 的正盈利，超过支配阈值
	sweep, conc, anomaly := v.runRegime(labels, regimeTrades())

	if conc <= dominanceShare {
		t.Fatalf("集中度 %.4f 应超过支配阈值 %.2f", conc, dominanceShare)
	}
	if anomaly == nil {
		t.Fatal("单一状态支配盈利时必须上报异常")
	}
	if anomaly.Kind != "regime_dominance" || anomaly.Name != "trend" {
		t.Errorf("异常标注错误: %+v", anomaly)
	}

	var annotated bool
	for _, r := range sweep.Results {
		if r.Name == "trend" && len(r.Warnings) > 0 {
			annotated = true
		}
	}
	if !annotated {
		t.Error("支配状态的扰动单元必须附带异常标注")
	}
}

func TestClassifyCarriesAnomalyCaveat(t *testing.T) {
	sweeps := map[Mode]SweepResult{
		ModeWalkForward: sweepWithSurvival(ModeWalkForward, 9, 10),
	}
	ci := &BootstrapCI{Level: 0.95, Low: 0.0002, High: 0.0012, ExcludesZero: true}
	anomalies := []AnomalyWarning{
		{Kind: "yearly_dominance", Name: "2021", Share: 0.95},
	}

	label, reasons := classify(healthyBase(), sweeps, ci, 0, anomalies, defaultThresholds())
	if label != LabelRobustRealEdge {
		t.Fatalf("异常不应改变分级, 得到 %s", label)
	}
	var found bool
	for _, r := range reasons {
		if strings.Contains(r, "2021") && strings.Contains(r, "异常分布") {
			found = true
		}
	}
	if !found {
		t.Errorf("判定依据必须声明结论建立在异常样本上: %v", reasons)
	}
}
