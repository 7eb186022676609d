package market

import (
	"math"
	"testing"
)

func TestAuditEntryGaps(t *testing.T) {
	candles := hourlyCandles(6, 1.0)
	// 第2根跳空高开 2 pip：多头信号在第1根触发，入场缺口不利
	candles[2].Open = 1.0002
	candles[2].High = 1.0012

	signals := []*Signal{{
		TriggerTime: candles[1].Timestamp,
		Symbol:      "EURUSD",
		Direction:   Long,
	}}

	stats := AuditEntryGaps(candles, signals, 0.0001)
	if stats.Signals != 1 {
		t.Fatalf("统计信号数 = %d, 期望 1", stats.Signals)
	}
	if math.Abs(stats.MeanGapPips-2.0) > 1e-9 {
		t.Errorf("平均不利缺口 = %.4f pip, 期望 2.0", stats.MeanGapPips)
	}
	if stats.AdverseRate != 1.0 {
		t.Errorf("不利比例 = %.2f, 期望 1.0", stats.AdverseRate)
	}
}

func TestAuditEntryGapsFavourableForShort(t *testing.T) {
	candles := hourlyCandles(6, 1.0)
	candles[2].Open = 1.0002
	candles[2].High = 1.0012

	// 空头在跳空高开处入场反而有利，缺口为负
	signals := []*Signal{{
		TriggerTime: candles[1].Timestamp,
		Symbol:      "EURUSD",
		Direction:   Short,
	}}

	stats := AuditEntryGaps(candles, signals, 0.0001)
	if stats.MeanGapPips >= 0 {
		t.Errorf("空头的有利缺口应为负, 得到 %.4f", stats.MeanGapPips)
	}
	if stats.AdverseRate != 0 {
		t.Errorf("不利比例 = %.2f, 期望 0", stats.AdverseRate)
	}
}

func TestAuditEntryGapsSkipsBoundary(t *testing.T) {
	candles := hourlyCandles(4, 1.0)
	// 触发在最后一根K线，没有下一根开盘可入场
	signals := []*Signal{{
		TriggerTime: candles[3].Timestamp,
		Symbol:      "EURUSD",
		Direction:   Long,
	}}

	stats := AuditEntryGaps(candles, signals, 0.0001)
	if stats.Signals != 0 {
		t.Errorf("数据边界的信号不应参与统计, 得到 %d", stats.Signals)
	}
}
