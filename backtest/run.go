package backtest

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"edgeaudit/market"
)

// Run 一次可复现的模拟：同一 (数据, 信号, 配置, 种子) 永远得到相同结果
type Run struct {
	Candles  []*market.Candle `json:"-"`
	Signals  []*market.Signal `json:"-"`
	Config   ExecConfig       `json:"config"`
	Analyzer AnalyzerConfig   `json:"analyzer"`
	Seed     int64            `json:"seed"`
}

// RunResult 模拟与分析的完整产出，附带复现指纹
type RunResult struct {
	Trades     []Trade `json:"trades"`
	Metrics    Metrics `json:"metrics"`
	ConfigHash string  `json:"config_hash"`
	SeriesHash string  `json:"series_hash"`
	Seed       int64   `json:"seed"`
}

// Execute 执行模拟并分析绩效
func (r *Run) Execute() (*RunResult, error) {
	trades, err := Simulate(r.Candles, r.Signals, r.Config, r.Seed)
	if err != nil {
		return nil, err
	}
	metrics, err := Analyze(trades, r.Analyzer)
	if err != nil {
		return nil, err
	}
	return &RunResult{
		Trades:     trades,
		Metrics:    metrics,
		ConfigHash: ConfigHash(r.Config),
		SeriesHash: SeriesHash(r.Candles),
		Seed:       r.Seed,
	}, nil
}

// ConfigHash 执行配置的 SHA-256 指纹（JSON 规范序列化）
func ConfigHash(cfg ExecConfig) string {
	data, err := json.Marshal(cfg)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// SeriesHash K线序列的 SHA-256 指纹，用于标识输入数据版本
func SeriesHash(candles []*market.Candle) string {
	h := sha256.New()
	buf := make([]byte, 8)
	for _, c := range candles {
		binary.LittleEndian.PutUint64(buf, uint64(c.Timestamp))
		h.Write(buf)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(c.Close))
		h.Write(buf)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
