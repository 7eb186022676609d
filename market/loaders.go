package market

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadSignalsCSV 从 CSV 文件加载信号（表头: trigger_time,symbol,direction,strength,strategy_id）
// direction 接受 long/short 或 1/-1
func LoadSignalsCSV(path string) ([]*Signal, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("信号文件为空或格式错误: %s", path)
	}

	signals := make([]*Signal, 0, len(records)-1)
	for i := 1; i < len(records); i++ {
		sig, err := parseSignalRecord(records[i])
		if err != nil {
			return nil, fmt.Errorf("解析第 %d 行失败: %w", i, err)
		}
		signals = append(signals, sig)
	}
	return signals, nil
}

func parseSignalRecord(record []string) (*Signal, error) {
	if len(record) != 5 {
		return nil, fmt.Errorf("记录字段数量错误: 期望5个，实际%d个", len(record))
	}

	triggerTime, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("解析 trigger_time 失败: %w", err)
	}

	var dir Direction
	switch strings.ToLower(strings.TrimSpace(record[2])) {
	case "long", "1":
		dir = Long
	case "short", "-1":
		dir = Short
	default:
		return nil, fmt.Errorf("非法方向: %s", record[2])
	}

	strength, err := strconv.ParseFloat(record[3], 64)
	if err != nil {
		return nil, fmt.Errorf("解析 strength 失败: %w", err)
	}

	return &Signal{
		TriggerTime: triggerTime,
		Symbol:      record[1],
		Direction:   dir,
		Strength:    strength,
		StrategyID:  record[4],
	}, nil
}
