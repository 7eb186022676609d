package backtest

import (
	"math"
	"testing"

	"edgeaudit/market"
)

func TestPriceAtUpBarPath(t *testing.T) {
	// 上涨K线: Open → High → Low → Close
	c := &market.Candle{Open: 1.0, High: 2.0, Low: 0.5, Close: 1.5}

	cases := []struct {
		frac float64
		want float64
	}{
		{0.0, 1.0},   // Open
		{0.125, 1.5}, // Open→High 中点
		{0.25, 2.0},  // High
		{0.375, 1.25}, // High→Low 中点
		{0.5, 0.5},   // Low
		{0.75, 1.0},  // Low→Close 中点
		{1.0, 1.5},   // Close
	}
	for _, tc := range cases {
		if got := priceAt(c, tc.frac); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("priceAt(%.3f) = %.4f, 期望 %.4f", tc.frac, got, tc.want)
		}
	}
}

func TestPriceAtDownBarPath(t *testing.T) {
	// 下跌K线: Open → Low → High → Close
	c := &market.Candle{Open: 1.5, High: 2.0, Low: 0.5, Close: 1.0}

	if got := priceAt(c, 0.25); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("下跌K线 25%% 处应为 Low, 得到 %.4f", got)
	}
	if got := priceAt(c, 0.5); math.Abs(got-2.0) > 1e-12 {
		t.Errorf("下跌K线 50%% 处应为 High, 得到 %.4f", got)
	}
}

func TestLocateBar(t *testing.T) {
	candles := flatCandles(5, 1.0)

	if idx := locateBar(candles, candles[2].Timestamp, hourMs); idx != 2 {
		t.Errorf("K线起点应定位到该K线, 得到 %d", idx)
	}
	if idx := locateBar(candles, candles[2].Timestamp+hourMs-1, hourMs); idx != 2 {
		t.Errorf("K线末尾仍属于该K线, 得到 %d", idx)
	}
	if idx := locateBar(candles, candles[0].Timestamp-1, hourMs); idx != -1 {
		t.Errorf("数据起点之前应返回 -1, 得到 %d", idx)
	}
	if idx := locateBar(candles, candles[4].Timestamp+hourMs, hourMs); idx != -1 {
		t.Errorf("数据末尾之后应返回 -1, 得到 %d", idx)
	}
}

func TestPathPriceAcrossSessionGap(t *testing.T) {
	candles := flatCandles(6, 1.0)
	// 删去第3、4根制造周末缺口
	gapped := append(append([]*market.Candle{}, candles[:3]...), candles[5])
	gapped[3].Open = 1.2 // 缺口后跳空高开

	ts := candles[3].Timestamp + hourMs/2 // 落在缺口内
	price, idx, ok := pathPriceAt(gapped, ts, hourMs)
	if !ok {
		t.Fatal("缺口内的时刻应解析到缺口后第一根K线")
	}
	if idx != 3 || math.Abs(price-1.2) > 1e-12 {
		t.Errorf("缺口内应使用缺口后开盘价 1.2 (idx=3), 得到 %.4f (idx=%d)", price, idx)
	}

	// 超出数据末尾
	if _, _, ok := pathPriceAt(gapped, gapped[3].Timestamp+2*hourMs, hourMs); ok {
		t.Error("超出数据末尾的时刻不应有可成交价")
	}
}
