package market

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// 缓存目录：CSV格式，每个 (symbol, interval, 日期范围) 一个文件
var cacheDir = filepath.Join("data", "cache")

// SetCacheDir 设置缓存目录（测试用）
func SetCacheDir(dir string) {
	cacheDir = dir
}

// LoadFromCache 从 CSV 缓存加载K线
func LoadFromCache(cacheKey string) ([]*Candle, error) {
	filename := filepath.Join(cacheDir, cacheKey+".csv")

	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return readCSV(file.Name())
}

// SaveToCache 保存K线到 CSV 缓存
func SaveToCache(cacheKey string, candles []*Candle) error {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return fmt.Errorf("创建缓存目录失败: %w", err)
	}

	filename := filepath.Join(cacheDir, cacheKey+".csv")
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("创建缓存文件失败: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"timestamp", "open", "high", "low", "close", "volume", "symbol"}); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}

	for _, c := range candles {
		record := []string{
			strconv.FormatInt(c.Timestamp, 10),
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
			strconv.FormatFloat(c.Volume, 'f', -1, 64),
			c.Symbol,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("写入K线失败: %w", err)
		}
	}
	return nil
}

// LoadCSV 从任意 CSV 文件加载K线（表头: timestamp,open,high,low,close,volume,symbol）
func LoadCSV(path string) ([]*Candle, error) {
	return readCSV(path)
}

func readCSV(path string) ([]*Candle, error) {
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
		return nil, fmt.Errorf("CSV 文件为空或格式错误: %s", path)
	}

	// 跳过表头
	candles := make([]*Candle, 0, len(records)-1)
	for i := 1; i < len(records); i++ {
		candle, err := parseCSVRecord(records[i])
		if err != nil {
			return nil, fmt.Errorf("解析第 %d 行失败: %w", i, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// parseCSVRecord 解析 CSV 记录
func parseCSVRecord(record []string) (*Candle, error) {
	if len(record) != 7 {
		return nil, fmt.Errorf("记录字段数量错误: 期望7个，实际%d个", len(record))
	}

	timestamp, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("解析 timestamp 失败: %w", err)
	}
	open, err := strconv.ParseFloat(record[1], 64)
	if err != nil {
		return nil, fmt.Errorf("解析 open 失败: %w", err)
	}
	high, err := strconv.ParseFloat(record[2], 64)
	if err != nil {
		return nil, fmt.Errorf("解析 high 失败: %w", err)
	}
	low, err := strconv.ParseFloat(record[3], 64)
	if err != nil {
		return nil, fmt.Errorf("解析 low 失败: %w", err)
	}
	close, err := strconv.ParseFloat(record[4], 64)
	if err != nil {
		return nil, fmt.Errorf("解析 close 失败: %w", err)
	}
	volume, err := strconv.ParseFloat(record[5], 64)
	if err != nil {
		return nil, fmt.Errorf("解析 volume 失败: %w", err)
	}

	return &Candle{
		Timestamp: timestamp,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
		Symbol:    record[6],
		IsClosed:  true,
	}, nil
}
