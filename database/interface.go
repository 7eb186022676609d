package database

import (
	"context"
	"time"
)

// Database 数据库接口
type Database interface {
	// 模拟运行记录
	SaveRun(ctx context.Context, run *RunRecord) error
	GetRuns(ctx context.Context, filter *RunFilter) ([]*RunRecord, error)
	FindRunByFingerprint(ctx context.Context, configHash, seriesHash string, seed int64) (*RunRecord, error)

	// 逐笔交易记录
	BatchSaveTrades(ctx context.Context, trades []*TradeRecord) error
	GetTrades(ctx context.Context, filter *TradeFilter) ([]*TradeRecord, error)

	// 扰动扫描记录
	BatchSaveSweepCells(ctx context.Context, cells []*SweepCellRecord) error
	GetSweepCells(ctx context.Context, filter *SweepFilter) ([]*SweepCellRecord, error)

	// 事务支持
	BeginTx(ctx context.Context) (Tx, error)

	// 健康检查
	Ping(ctx context.Context) error

	// 关闭连接
	Close() error
}

// Tx 事务接口
type Tx interface {
	Commit() error
	Rollback() error
	Database // 继承所有数据库操作
}

// 数据模型

// RunRecord 一次完整验证运行的记录
// (ConfigHash, SeriesHash, Seed) 三元组唯一确定一次可复现的运行
type RunRecord struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol        string    `gorm:"index:idx_symbol_time;size:50" json:"symbol"`
	StrategyID    string    `gorm:"index;size:100" json:"strategy_id"`
	ConfigHash    string    `gorm:"index:idx_fingerprint;size:64" json:"config_hash"`
	SeriesHash    string    `gorm:"index:idx_fingerprint;size:64" json:"series_hash"`
	Seed          int64     `gorm:"index:idx_fingerprint" json:"seed"`
	Label         string    `gorm:"index;size:50" json:"label"`
	TotalTrades   int       `json:"total_trades"`
	WinRate       float64   `json:"win_rate"`
	NetExpectancy float64   `json:"net_expectancy"`
	NetExpectBps  float64   `json:"net_expect_bps"`
	MaxDrawdown   float64   `json:"max_drawdown"`
	SharpeRatio   float64   `json:"sharpe_ratio"`
	MetricsJSON   string    `gorm:"type:text" json:"metrics_json"`  // 完整指标序列化
	VerdictJSON   string    `gorm:"type:text" json:"verdict_json"`  // 完整结论序列化
	CreatedAt     time.Time `gorm:"index:idx_symbol_time" json:"created_at"`
}

// TradeRecord 模拟产生的单笔交易
type TradeRecord struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID        int64     `gorm:"index" json:"run_id"`
	Symbol       string    `gorm:"index;size:50" json:"symbol"`
	Direction    int       `json:"direction"` // 1 多 / -1 空
	EntryTime    int64     `gorm:"index" json:"entry_time"`
	ExitTime     int64     `json:"exit_time"`
	EntryPrice   float64   `json:"entry_price"`
	ExitPrice    float64   `json:"exit_price"`
	FillRatio    float64   `json:"fill_ratio"`
	NetPnL       float64   `json:"net_pnl"`
	SpreadCost   float64   `json:"spread_cost"`
	SlippageCost float64   `json:"slippage_cost"`
	Commission   float64   `json:"commission"`
	BarsHeld     int       `json:"bars_held"`
	TimeExit     bool      `json:"time_exit"`
	CreatedAt    time.Time `json:"created_at"`
}

// SweepCellRecord 单个扰动单元的结果
type SweepCellRecord struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID         int64     `gorm:"index:idx_run_mode" json:"run_id"`
	Mode          string    `gorm:"index:idx_run_mode;size:30" json:"mode"`
	Name          string    `gorm:"size:200" json:"name"`
	ParamsJSON    string    `gorm:"type:text" json:"params_json"`
	Trades        int       `json:"trades"`
	Survived      bool      `gorm:"index" json:"survived"`
	Excluded      bool      `json:"excluded"`
	NetExpectancy float64   `json:"net_expectancy"`
	MaxDrawdown   float64   `json:"max_drawdown"`
	MetricsJSON   string    `gorm:"type:text" json:"metrics_json"`
	CreatedAt     time.Time `json:"created_at"`
}

// 过滤器

// RunFilter 运行记录过滤器
type RunFilter struct {
	Symbol     string
	StrategyID string
	Label      string
	StartTime  *time.Time
	EndTime    *time.Time
	Limit      int
	Offset     int
}

// TradeFilter 交易记录过滤器
type TradeFilter struct {
	RunID     int64
	Symbol    string
	StartTime *int64 // 入场毫秒时间戳下界
	EndTime   *int64
	Limit     int
	Offset    int
}

// SweepFilter 扫描记录过滤器
type SweepFilter struct {
	RunID    int64
	Mode     string
	Survived *bool
	Limit    int
	Offset   int
}
