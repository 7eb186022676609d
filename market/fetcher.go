package market

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"

	"edgeaudit/logger"
)

// Fetcher 历史K线下载器（Market Data Feed 协作方实现）
// 模拟核心本身不做任何阻塞I/O，所有K线必须在回测开始前完整物化
type Fetcher struct {
	client  *binance.Client
	limiter *rate.Limiter
}

// NewFetcher 创建下载器
// Binance 公开K线接口无需鉴权，限速保守设置避免触发封禁
func NewFetcher() *Fetcher {
	return &Fetcher{
		client:  binance.NewClient("", ""),
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
}

// FetchRange 分批下载 [startTime, endTime) 的历史K线
// Binance 单次最多 1000 根，需要分批
func (f *Fetcher) FetchRange(ctx context.Context, symbol, interval string, startTime, endTime time.Time) ([]*Candle, error) {
	intervalMs, err := parseIntervalMs(interval)
	if err != nil {
		return nil, err
	}

	allCandles := make([]*Candle, 0)
	currentStart := startTime.UnixMilli()
	endMs := endTime.UnixMilli()
	batchNum := 0

	for currentStart < endMs {
		batchNum++
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("限速等待被取消: %w", err)
		}

		klines, err := f.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(currentStart).
			EndTime(endMs).
			Limit(1000).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("获取第 %d 批K线失败: %w", batchNum, err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			open, _ := strconv.ParseFloat(k.Open, 64)
			high, _ := strconv.ParseFloat(k.High, 64)
			low, _ := strconv.ParseFloat(k.Low, 64)
			close, _ := strconv.ParseFloat(k.Close, 64)
			volume, _ := strconv.ParseFloat(k.Volume, 64)

			allCandles = append(allCandles, &Candle{
				Symbol:    symbol,
				Open:      open,
				High:      high,
				Low:       low,
				Close:     close,
				Volume:    volume,
				Timestamp: k.OpenTime,
				IsClosed:  true, // 历史K线都是已完结的
			})
		}

		last := klines[len(klines)-1].OpenTime
		if last+intervalMs <= currentStart {
			break
		}
		currentStart = last + intervalMs
	}

	logger.Info("⬇️ 下载完成: %s %s 共 %d 根K线 (%d 批)", symbol, interval, len(allCandles), batchNum)
	return allCandles, nil
}

// GetHistoricalData 智能获取历史数据（优先缓存）
func GetHistoricalData(ctx context.Context, symbol, interval string, startTime, endTime time.Time) ([]*Candle, error) {
	cacheKey := fmt.Sprintf("%s_%s_%s_%s",
		symbol, interval,
		startTime.Format("2006-01-02"),
		endTime.Format("2006-01-02"),
	)

	if candles, err := LoadFromCache(cacheKey); err == nil {
		logger.Info("✅ 从缓存加载: %s (%d 根K线)", cacheKey, len(candles))
		return candles, nil
	}

	logger.Info("⬇️ 从 Binance 下载: %s %s (%s 至 %s)",
		symbol, interval,
		startTime.Format("2006-01-02"),
		endTime.Format("2006-01-02"))

	candles, err := NewFetcher().FetchRange(ctx, symbol, interval, startTime, endTime)
	if err != nil {
		return nil, err
	}

	if err := SaveToCache(cacheKey, candles); err != nil {
		logger.Warn("⚠️ 缓存保存失败: %v", err)
	}

	return candles, nil
}

// parseIntervalMs 解析K线周期字符串为毫秒
func parseIntervalMs(interval string) (int64, error) {
	switch interval {
	case "1m":
		return 60_000, nil
	case "3m":
		return 180_000, nil
	case "5m":
		return 300_000, nil
	case "15m":
		return 900_000, nil
	case "30m":
		return 1_800_000, nil
	case "1h":
		return 3_600_000, nil
	case "4h":
		return 14_400_000, nil
	case "1d":
		return 86_400_000, nil
	default:
		return 0, fmt.Errorf("不支持的K线周期: %s", interval)
	}
}
