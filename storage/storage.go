package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"edgeaudit/backtest"
	"edgeaudit/database"
	"edgeaudit/logger"
	"edgeaudit/robust"
)

// Service 验证结果持久化服务
// 以 (config_hash, series_hash, seed) 指纹保证每条记录可精确复现
type Service struct {
	db         database.Database
	saveTrades bool
}

// NewService 创建持久化服务
func NewService(db database.Database, saveTrades bool) *Service {
	return &Service{db: db, saveTrades: saveTrades}
}

// SaveVerdict 保存一次完整验证：运行记录 + 逐笔交易 + 扰动单元
func (s *Service) SaveVerdict(ctx context.Context, symbol, strategyID string, result *backtest.RunResult, verdict *robust.Verdict) (int64, error) {
	metricsJSON, err := json.Marshal(verdict.BaseMetrics)
	if err != nil {
		return 0, fmt.Errorf("序列化指标失败: %w", err)
	}
	verdictJSON, err := json.Marshal(verdict)
	if err != nil {
		return 0, fmt.Errorf("序列化结论失败: %w", err)
	}

	run := &database.RunRecord{
		Symbol:        symbol,
		StrategyID:    strategyID,
		ConfigHash:    verdict.ConfigHash,
		SeriesHash:    verdict.SeriesHash,
		Seed:          verdict.Seed,
		Label:         string(verdict.Label),
		TotalTrades:   verdict.BaseMetrics.TotalTrades,
		WinRate:       verdict.BaseMetrics.WinRate,
		NetExpectancy: verdict.BaseMetrics.NetExpectancy,
		NetExpectBps:  verdict.BaseMetrics.NetExpectBps,
		MaxDrawdown:   verdict.BaseMetrics.MaxDrawdown,
		SharpeRatio:   verdict.BaseMetrics.SharpeRatio,
		MetricsJSON:   string(metricsJSON),
		VerdictJSON:   string(verdictJSON),
		CreatedAt:     time.Now(),
	}
	if err := s.db.SaveRun(ctx, run); err != nil {
		return 0, fmt.Errorf("保存运行记录失败: %w", err)
	}

	if s.saveTrades && result != nil {
		records := make([]*database.TradeRecord, 0, len(result.Trades))
		for _, t := range result.Trades {
			records = append(records, &database.TradeRecord{
				RunID:        run.ID,
				Symbol:       t.Symbol,
				Direction:    int(t.Direction),
				EntryTime:    t.EntryTime,
				ExitTime:     t.ExitTime,
				EntryPrice:   t.EntryPrice,
				ExitPrice:    t.ExitPrice,
				FillRatio:    t.FillRatio,
				NetPnL:       t.NetPnL,
				SpreadCost:   t.SpreadCost,
				SlippageCost: t.SlippageCost,
				Commission:   t.Commission,
				BarsHeld:     t.BarsHeld,
				TimeExit:     t.TimeExit,
				CreatedAt:    time.Now(),
			})
		}
		if err := s.db.BatchSaveTrades(ctx, records); err != nil {
			return run.ID, fmt.Errorf("保存交易记录失败: %w", err)
		}
	}

	cells := make([]*database.SweepCellRecord, 0)
	for mode, sweep := range verdict.Sweeps {
		for i := range sweep.Results {
			r := &sweep.Results[i]
			paramsJSON, _ := json.Marshal(r.Params)
			cellMetricsJSON, _ := json.Marshal(r.Metrics)
			cells = append(cells, &database.SweepCellRecord{
				RunID:         run.ID,
				Mode:          string(mode),
				Name:          r.Name,
				ParamsJSON:    string(paramsJSON),
				Trades:        r.Trades,
				Survived:      r.Survived(),
				Excluded:      r.Excluded,
				NetExpectancy: r.Metrics.NetExpectancy,
				MaxDrawdown:   r.Metrics.MaxDrawdown,
				MetricsJSON:   string(cellMetricsJSON),
				CreatedAt:     time.Now(),
			})
		}
	}
	if err := s.db.BatchSaveSweepCells(ctx, cells); err != nil {
		return run.ID, fmt.Errorf("保存扫描记录失败: %w", err)
	}

	logger.Info("💾 验证结果已持久化: run_id=%d, label=%s, 扰动单元=%d", run.ID, verdict.Label, len(cells))
	return run.ID, nil
}

// FindPrevious 查找相同指纹的历史运行
func (s *Service) FindPrevious(ctx context.Context, configHash, seriesHash string, seed int64) (*database.RunRecord, error) {
	return s.db.FindRunByFingerprint(ctx, configHash, seriesHash, seed)
}

// History 查询历史运行记录
func (s *Service) History(ctx context.Context, filter *database.RunFilter) ([]*database.RunRecord, error) {
	return s.db.GetRuns(ctx, filter)
}

// SweepCells 查询某次运行的扰动单元
func (s *Service) SweepCells(ctx context.Context, runID int64, mode string) ([]*database.SweepCellRecord, error) {
	return s.db.GetSweepCells(ctx, &database.SweepFilter{RunID: runID, Mode: mode})
}

// Trades 查询某次运行的逐笔交易
func (s *Service) Trades(ctx context.Context, runID int64) ([]*database.TradeRecord, error) {
	return s.db.GetTrades(ctx, &database.TradeFilter{RunID: runID})
}
