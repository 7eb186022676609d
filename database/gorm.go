package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormDatabase GORM 数据库实现
type GormDatabase struct {
	db *gorm.DB
}

// DBConfig 数据库配置
type DBConfig struct {
	Type            string        // sqlite, postgres, mysql
	DSN             string        // 数据源名称
	MaxOpenConns    int           // 最大打开连接数
	MaxIdleConns    int           // 最大空闲连接数
	ConnMaxLifetime time.Duration // 连接最大生命周期
	LogLevel        string        // 日志级别: silent, error, warn, info
}

// NewGormDatabase 创建 GORM 数据库实例
func NewGormDatabase(config *DBConfig) (*GormDatabase, error) {
	var dialector gorm.Dialector

	switch config.Type {
	case "sqlite":
		dialector = sqlite.Open(config.DSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(config.DSN)
	case "mysql":
		dialector = mysql.Open(config.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	// 日志级别
	logLevel := logger.Silent
	switch config.LogLevel {
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	}

	// 打开数据库
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 获取底层 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 配置连接池
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	// 自动迁移
	if err := db.AutoMigrate(
		&RunRecord{},
		&TradeRecord{},
		&SweepCellRecord{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return &GormDatabase{db: db}, nil
}

// SaveRun 保存运行记录
func (g *GormDatabase) SaveRun(ctx context.Context, run *RunRecord) error {
	return g.db.WithContext(ctx).Create(run).Error
}

// GetRuns 获取运行记录
func (g *GormDatabase) GetRuns(ctx context.Context, filter *RunFilter) ([]*RunRecord, error) {
	query := g.db.WithContext(ctx).Model(&RunRecord{})

	if filter.Symbol != "" {
		query = query.Where("symbol = ?", filter.Symbol)
	}
	if filter.StrategyID != "" {
		query = query.Where("strategy_id = ?", filter.StrategyID)
	}
	if filter.Label != "" {
		query = query.Where("label = ?", filter.Label)
	}
	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("created_at <= ?", filter.EndTime)
	}

	query = query.Order("created_at DESC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var runs []*RunRecord
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}

	return runs, nil
}

// FindRunByFingerprint 按复现指纹查找已有运行
func (g *GormDatabase) FindRunByFingerprint(ctx context.Context, configHash, seriesHash string, seed int64) (*RunRecord, error) {
	var run RunRecord
	err := g.db.WithContext(ctx).
		Where("config_hash = ? AND series_hash = ? AND seed = ?", configHash, seriesHash, seed).
		Order("created_at DESC").
		First(&run).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// BatchSaveTrades 批量保存交易记录
func (g *GormDatabase) BatchSaveTrades(ctx context.Context, trades []*TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).CreateInBatches(trades, 100).Error
}

// GetTrades 获取交易记录
func (g *GormDatabase) GetTrades(ctx context.Context, filter *TradeFilter) ([]*TradeRecord, error) {
	query := g.db.WithContext(ctx).Model(&TradeRecord{})

	if filter.RunID > 0 {
		query = query.Where("run_id = ?", filter.RunID)
	}
	if filter.Symbol != "" {
		query = query.Where("symbol = ?", filter.Symbol)
	}
	if filter.StartTime != nil {
		query = query.Where("entry_time >= ?", *filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("entry_time <= ?", *filter.EndTime)
	}

	query = query.Order("entry_time ASC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var trades []*TradeRecord
	if err := query.Find(&trades).Error; err != nil {
		return nil, err
	}

	return trades, nil
}

// BatchSaveSweepCells 批量保存扫描记录
func (g *GormDatabase) BatchSaveSweepCells(ctx context.Context, cells []*SweepCellRecord) error {
	if len(cells) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).CreateInBatches(cells, 100).Error
}

// GetSweepCells 获取扫描记录
func (g *GormDatabase) GetSweepCells(ctx context.Context, filter *SweepFilter) ([]*SweepCellRecord, error) {
	query := g.db.WithContext(ctx).Model(&SweepCellRecord{})

	if filter.RunID > 0 {
		query = query.Where("run_id = ?", filter.RunID)
	}
	if filter.Mode != "" {
		query = query.Where("mode = ?", filter.Mode)
	}
	if filter.Survived != nil {
		query = query.Where("survived = ?", *filter.Survived)
	}

	query = query.Order("id ASC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var cells []*SweepCellRecord
	if err := query.Find(&cells).Error; err != nil {
		return nil, err
	}

	return cells, nil
}

// BeginTx 开始事务
func (g *GormDatabase) BeginTx(ctx context.Context) (Tx, error) {
	tx := g.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &GormTx{tx: tx}, nil
}

// Ping 健康检查
func (g *GormDatabase) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭连接
func (g *GormDatabase) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GormTx GORM 事务实现
type GormTx struct {
	tx *gorm.DB
}

func (t *GormTx) Commit() error {
	return t.tx.Commit().Error
}

func (t *GormTx) Rollback() error {
	return t.tx.Rollback().Error
}

func (t *GormTx) SaveRun(ctx context.Context, run *RunRecord) error {
	return t.tx.WithContext(ctx).Create(run).Error
}

func (t *GormTx) GetRuns(ctx context.Context, filter *RunFilter) ([]*RunRecord, error) {
	return nil, fmt.Errorf("not implemented in transaction")
}

func (t *GormTx) FindRunByFingerprint(ctx context.Context, configHash, seriesHash string, seed int64) (*RunRecord, error) {
	return nil, fmt.Errorf("not implemented in transaction")
}

func (t *GormTx) BatchSaveTrades(ctx context.Context, trades []*TradeRecord) error {
	return t.tx.WithContext(ctx).CreateInBatches(trades, 100).Error
}

func (t *GormTx) GetTrades(ctx context.Context, filter *TradeFilter) ([]*TradeRecord, error) {
	return nil, fmt.Errorf("not implemented in transaction")
}

func (t *GormTx) BatchSaveSweepCells(ctx context.Context, cells []*SweepCellRecord) error {
	return t.tx.WithContext(ctx).CreateInBatches(cells, 100).Error
}

func (t *GormTx) GetSweepCells(ctx context.Context, filter *SweepFilter) ([]*SweepCellRecord, error) {
	return nil, fmt.Errorf("not implemented in transaction")
}

func (t *GormTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *GormTx) Ping(ctx context.Context) error {
	return nil
}

func (t *GormTx) Close() error {
	return nil
}
