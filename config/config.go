package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"edgeaudit/backtest"
	"edgeaudit/robust"
)

// Config 边际审计系统配置
type Config struct {
	// 数据源配置
	Data struct {
		Source      string `yaml:"source"`       // 数据来源: csv, binance
		Symbol      string `yaml:"symbol"`       // 交易对，如 BTCUSDT
		Interval    string `yaml:"interval"`     // K线周期，如 "1h"
		CSVPath     string `yaml:"csv_path"`     // source=csv 时的K线文件路径
		CacheDir    string `yaml:"cache_dir"`    // 下载数据的本地缓存目录
		StartTime   string `yaml:"start_time"`   // 开始时间（格式：2006-01-02 15:04:05）
		EndTime     string `yaml:"end_time"`     // 结束时间
		SignalsPath string `yaml:"signals_path"` // 信号文件路径（CSV）
		RegimesPath string `yaml:"regimes_path"` // 市场状态标注文件路径（YAML，可选）
	} `yaml:"data"`

	// 执行模拟配置
	Execution backtest.ExecConfig `yaml:"execution"`

	// 绩效分析配置
	Analyzer backtest.AnalyzerConfig `yaml:"analyzer"`

	// 稳健性验证配置
	Validation robust.Config `yaml:"validation"`

	// 随机种子：同一 (数据, 信号, 配置, 种子) 的结果可精确复现
	Seed int64 `yaml:"seed"`

	System struct {
		LogLevel         string `yaml:"log_level"`
		Timezone         string `yaml:"timezone"`           // 时区，如 "Asia/Shanghai"
		LogRetentionDays int    `yaml:"log_retention_days"` // 日志保留天数（默认30天，0表示不清理）
		WatchConfig      bool   `yaml:"watch_config"`       // 监听配置文件变更并自动重跑验证
	} `yaml:"system"`

	// 数据库配置（支持 SQLite、PostgreSQL、MySQL）
	Database struct {
		Type            string `yaml:"type"`              // 数据库类型: sqlite, postgres, mysql，默认 sqlite
		DSN             string `yaml:"dsn"`               // 数据源名称，默认 ./data/edgeaudit.db
		MaxOpenConns    int    `yaml:"max_open_conns"`    // 最大打开连接数，默认100
		MaxIdleConns    int    `yaml:"max_idle_conns"`    // 最大空闲连接数，默认10
		ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // 连接最大生命周期（秒），默认3600
		LogLevel        string `yaml:"log_level"`         // 日志级别: silent, error, warn, info，默认 error
	} `yaml:"database"`

	// 结果存储配置
	Storage struct {
		Enabled    bool `yaml:"enabled"`
		SaveTrades bool `yaml:"save_trades"` // 是否持久化逐笔交易（数据量大）
	} `yaml:"storage"`

	// 监控配置
	Metrics struct {
		Enabled         bool   `yaml:"enabled"`
		Listen          string `yaml:"listen"`           // Prometheus 暴露地址，默认 :9090
		CollectInterval int    `yaml:"collect_interval"` // 系统指标收集间隔（秒，默认60）
	} `yaml:"metrics"`
}

// LoadConfig 从文件加载配置
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes 从字节加载配置
func LoadConfigFromBytes(data []byte) (*Config, error) {
	cfg := CreateMinimalConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return cfg, nil
}

// SaveConfig 保存配置到文件
func SaveConfig(cfg *Config, configPath string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}
	return SaveConfigWithoutValidation(cfg, configPath)
}

// SaveConfigWithoutValidation 保存配置（跳过验证，供热更新回滚使用）
func SaveConfigWithoutValidation(cfg *Config, configPath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}

// CreateMinimalConfig 创建带默认值的最小配置
func CreateMinimalConfig() *Config {
	cfg := &Config{
		Execution:  backtest.DefaultExecConfig(),
		Analyzer:   backtest.DefaultAnalyzerConfig(),
		Validation: robust.DefaultConfig(),
		Seed:       42,
	}

	cfg.Data.Source = "csv"
	cfg.Data.Interval = "1h"
	cfg.Data.CacheDir = "./data/cache"

	cfg.System.LogLevel = "info"
	cfg.System.Timezone = "Asia/Shanghai"
	cfg.System.LogRetentionDays = 30

	cfg.Database.Type = "sqlite"
	cfg.Database.DSN = "./data/edgeaudit.db"
	cfg.Database.MaxOpenConns = 100
	cfg.Database.MaxIdleConns = 10
	cfg.Database.ConnMaxLifetime = 3600
	cfg.Database.LogLevel = "error"

	cfg.Storage.Enabled = true

	cfg.Metrics.Listen = ":9090"
	cfg.Metrics.CollectInterval = 60

	return cfg
}

// Validate 验证配置合法性
func (c *Config) Validate() error {
	switch c.Data.Source {
	case "csv":
		if c.Data.CSVPath == "" {
			return fmt.Errorf("data.source=csv 时必须提供 data.csv_path")
		}
	case "binance":
		if c.Data.Symbol == "" {
			return fmt.Errorf("data.source=binance 时必须提供 data.symbol")
		}
		if c.Data.StartTime == "" || c.Data.EndTime == "" {
			return fmt.Errorf("data.source=binance 时必须提供 start_time 与 end_time")
		}
	default:
		return fmt.Errorf("未知数据来源: %s（支持 csv, binance）", c.Data.Source)
	}
	if c.Data.SignalsPath == "" {
		return fmt.Errorf("必须提供 data.signals_path")
	}

	if err := c.Execution.Validate(); err != nil {
		return fmt.Errorf("execution: %w", err)
	}
	if err := c.Analyzer.Validate(); err != nil {
		return fmt.Errorf("analyzer: %w", err)
	}
	if err := c.Validation.Validate(); err != nil {
		return fmt.Errorf("validation: %w", err)
	}

	switch c.Database.Type {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("未知数据库类型: %s（支持 sqlite, postgres, mysql）", c.Database.Type)
	}

	switch c.System.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("未知日志级别: %s", c.System.LogLevel)
	}

	return nil
}
