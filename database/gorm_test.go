package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) Database {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDatabase(&Config{Type: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("创建数据库失败: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRun() *RunRecord {
	return &RunRecord{
		Symbol:        "EURUSD",
		StrategyID:    "breakout_v1",
		ConfigHash:    "abc123",
		SeriesHash:    "def456",
		Seed:          42,
		Label:         "robust_real_edge",
		TotalTrades:   120,
		WinRate:       0.58,
		NetExpectancy: 0.0008,
		NetExpectBps:  8.0,
		MaxDrawdown:   0.012,
		SharpeRatio:   1.9,
		MetricsJSON:   "{}",
		VerdictJSON:   "{}",
		CreatedAt:     time.Now(),
	}
}

func TestSaveRunAndFingerprint(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	run := sampleRun()
	if err := db.SaveRun(ctx, run); err != nil {
		t.Fatalf("保存运行记录失败: %v", err)
	}
	if run.ID == 0 {
		t.Fatal("保存后应回填自增ID")
	}

	found, err := db.FindRunByFingerprint(ctx, "abc123", "def456", 42)
	if err != nil {
		t.Fatalf("指纹查询失败: %v", err)
	}
	if found == nil || found.ID != run.ID {
		t.Errorf("指纹查询结果错误: %+v", found)
	}

	// 不存在的指纹返回 nil 而非错误
	missing, err := db.FindRunByFingerprint(ctx, "zzz", "def456", 42)
	if err != nil {
		t.Fatalf("不存在的指纹不应报错: %v", err)
	}
	if missing != nil {
		t.Errorf("不存在的指纹应返回 nil: %+v", missing)
	}
}

func TestGetRunsFiltered(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for _, label := range []string{"robust_real_edge", "statistical_illusion", "robust_real_edge"} {
		run := sampleRun()
		run.Label = label
		run.ConfigHash = label // 避免指纹冲突
		if err := db.SaveRun(ctx, run); err != nil {
			t.Fatalf("保存失败: %v", err)
		}
	}

	runs, err := db.GetRuns(ctx, &RunFilter{Label: "robust_real_edge"})
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("按标签过滤结果数 = %d, 期望 2", len(runs))
	}
}

func TestBatchSaveTrades(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	run := sampleRun()
	if err := db.SaveRun(ctx, run); err != nil {
		t.Fatalf("保存运行记录失败: %v", err)
	}

	base := int64(1_600_000_000_000)
	trades := make([]*TradeRecord, 250)
	for i := range trades {
		trades[i] = &TradeRecord{
			RunID:     run.ID,
			Symbol:    "EURUSD",
			Direction: 1,
			EntryTime: base + int64(i)*1000,
			ExitTime:  base + int64(i+1)*1000,
			NetPnL:    0.001,
			CreatedAt: time.Now(),
		}
	}
	if err := db.BatchSaveTrades(ctx, trades); err != nil {
		t.Fatalf("批量保存交易失败: %v", err)
	}

	loaded, err := db.GetTrades(ctx, &TradeFilter{RunID: run.ID})
	if err != nil {
		t.Fatalf("查询交易失败: %v", err)
	}
	if len(loaded) != 250 {
		t.Fatalf("交易数 = %d, 期望 250", len(loaded))
	}
	// 按入场时间升序返回
	for i := 1; i < len(loaded); i++ {
		if loaded[i].EntryTime < loaded[i-1].EntryTime {
			t.Fatal("交易应按入场时间升序返回")
		}
	}
}

func TestBatchSaveSweepCells(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	run := sampleRun()
	if err := db.SaveRun(ctx, run); err != nil {
		t.Fatalf("保存运行记录失败: %v", err)
	}

	cells := []*SweepCellRecord{
		{RunID: run.ID, Mode: "sensitivity", Name: "spread_pips=1", Survived: true, CreatedAt: time.Now()},
		{RunID: run.ID, Mode: "sensitivity", Name: "spread_pips=2", Survived: false, CreatedAt: time.Now()},
		{RunID: run.ID, Mode: "walk_forward", Name: "window_1", Survived: true, CreatedAt: time.Now()},
	}
	if err := db.BatchSaveSweepCells(ctx, cells); err != nil {
		t.Fatalf("批量保存扫描单元失败: %v", err)
	}

	loaded, err := db.GetSweepCells(ctx, &SweepFilter{RunID: run.ID, Mode: "sensitivity"})
	if err != nil {
		t.Fatalf("查询扫描单元失败: %v", err)
	}
	if len(loaded) != 2 {
		t.Errorf("sensitivity 单元数 = %d, 期望 2", len(loaded))
	}
}
