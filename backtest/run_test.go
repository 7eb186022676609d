package backtest

import (
	"testing"

	"edgeaudit/market"
)

func TestRunFingerprint(t *testing.T) {
	candles := trendCandles(200, 1.0, 0.0002)
	var signals []*market.Signal
	for i := 5; i < 180; i += 6 {
		signals = append(signals, longSignalAt(candles, i))
	}

	run := &Run{
		Candles:  candles,
		Signals:  signals,
		Config:   baseTestConfig(),
		Analyzer: analyzerForTest(),
		Seed:     42,
	}

	first, err := run.Execute()
	if err != nil {
		t.Fatalf("执行失败: %v", err)
	}
	second, err := run.Execute()
	if err != nil {
		t.Fatalf("重放失败: %v", err)
	}

	if first.ConfigHash != second.ConfigHash || first.SeriesHash != second.SeriesHash {
		t.Error("同一输入的两次执行必须产出相同指纹")
	}
	if len(first.ConfigHash) != 64 || len(first.SeriesHash) != 64 {
		t.Errorf("指纹应为 sha256 十六进制: config=%d series=%d", len(first.ConfigHash), len(first.SeriesHash))
	}
	if first.Seed != 42 {
		t.Errorf("种子 = %d, 期望 42", first.Seed)
	}
}

func TestConfigHashSensitivity(t *testing.T) {
	a := baseTestConfig()
	b := baseTestConfig()
	b.SpreadPips = 2.0

	if ConfigHash(a) == ConfigHash(b) {
		t.Error("不同配置必须产出不同指纹")
	}
	if ConfigHash(a) != ConfigHash(baseTestConfig()) {
		t.Error("相同配置必须产出相同指纹")
	}
}

func TestSeriesHashSensitivity(t *testing.T) {
	a := flatCandles(50, 1.0)
	b := flatCandles(50, 1.0)
	if SeriesHash(a) != SeriesHash(b) {
		t.Error("相同序列必须产出相同指纹")
	}

	b[25].Close = 1.0001
	if SeriesHash(a) == SeriesHash(b) {
		t.Error("单根K线收盘价变化必须改变序列指纹")
	}
}
