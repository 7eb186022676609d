package robust

import (
	"testing"
)

func TestSplitWindowsByCount(t *testing.T) {
	candles := trendCandles(103, 1.0, 0.0001)
	wins, err := splitWindows(candles, WalkForwardConfig{Windows: 10})
	if err != nil {
		t.Fatalf("切窗失败: %v", err)
	}
	if len(wins) != 10 {
		t.Fatalf("窗口数 = %d, 期望 10", len(wins))
	}

	// 窗口连续覆盖全部K线，余数并入最后一个窗口
	if wins[0].lo != 0 {
		t.Errorf("首窗口起点 = %d, 期望 0", wins[0].lo)
	}
	for i := 1; i < len(wins); i++ {
		if wins[i].lo != wins[i-1].hi {
			t.Errorf("窗口 %d 与前一窗口不连续: lo=%d, prev hi=%d", i, wins[i].lo, wins[i-1].hi)
		}
	}
	if wins[9].hi != 103 {
		t.Errorf("末窗口终点 = %d, 期望 103", wins[9].hi)
	}
	if wins[9].hi-wins[9].lo != 13 {
		t.Errorf("末窗口大小 = %d, 期望 13（10 + 余数3）", wins[9].hi-wins[9].lo)
	}
}

func TestSplitWindowsTooMany(t *testing.T) {
	candles := trendCandles(100, 1.0, 0.0001)
	if _, err := splitWindows(candles, WalkForwardConfig{Windows: 60}); err == nil {
		t.Error("每窗口不足2根K线的切分必须报错")
	}
}

func TestSplitWindowsByDays(t *testing.T) {
	candles := trendCandles(240, 1.0, 0.0001) // 10天小时K线
	wins, err := splitWindows(candles, WalkForwardConfig{WindowDays: 3})
	if err != nil {
		t.Fatalf("切窗失败: %v", err)
	}
	if len(wins) != 4 {
		t.Fatalf("10天按3天切分应得4个窗口, 得到 %d", len(wins))
	}
	for i, w := range wins {
		if w.hi-w.lo < 2 {
			t.Errorf("窗口 %d 不足2根K线: [%d, %d)", i, w.lo, w.hi)
		}
	}
	// 前3个窗口各72根（3天），最后一个窗口覆盖剩余24根
	for i := 0; i < 3; i++ {
		if wins[i].hi-wins[i].lo != 72 {
			t.Errorf("窗口 %d 大小 = %d, 期望 72", i, wins[i].hi-wins[i].lo)
		}
	}
}

func TestSplitWindowsDaysTooLarge(t *testing.T) {
	candles := trendCandles(48, 1.0, 0.0001) // 2天
	if _, err := splitWindows(candles, WalkForwardConfig{WindowDays: 30}); err == nil {
		t.Error("窗口长度超过数据范围必须报错")
	}
}

func TestSignalsWithin(t *testing.T) {
	candles := trendCandles(50, 1.0, 0.0001)
	signals := longSignalsEvery(candles, 5, 0)

	start := candles[10].Timestamp
	last := candles[20].Timestamp
	subset := signalsWithin(signals, start, last)
	for _, s := range subset {
		if s.TriggerTime < start || s.TriggerTime > last {
			t.Errorf("信号 %d 超出窗口 [%d, %d]", s.TriggerTime, start, last)
		}
	}
	if len(subset) == 0 {
		t.Error("窗口内应有信号")
	}
}
