package metrics

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"edgeaudit/logger"
)

// SystemMetricsCollector 系统指标采集器
// 定期采集 Go 运行时与进程级资源占用，写入 Prometheus 指标
type SystemMetricsCollector struct {
	pm       *PrometheusMetrics
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewSystemMetricsCollector 创建系统指标采集器
func NewSystemMetricsCollector(interval time.Duration) *SystemMetricsCollector {
	ctx, cancel := context.WithCancel(context.Background())
	return &SystemMetricsCollector{
		pm:       GetPrometheusMetrics(),
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start 启动采集
func (smc *SystemMetricsCollector) Start() {
	go smc.collectLoop()
}

// Stop 停止采集
func (smc *SystemMetricsCollector) Stop() {
	if smc.cancel != nil {
		smc.cancel()
	}
}

// collectLoop 采集循环
func (smc *SystemMetricsCollector) collectLoop() {
	ticker := time.NewTicker(smc.interval)
	defer ticker.Stop()

	// 立即采集一次
	smc.collect()

	for {
		select {
		case <-smc.ctx.Done():
			return
		case <-ticker.C:
			smc.collect()
		}
	}
}

// collect 采集系统指标
func (smc *SystemMetricsCollector) collect() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	smc.pm.SetGoroutineCount(runtime.NumGoroutine())
	smc.pm.SetMemoryAlloc(m.Alloc)

	cpuPercent, memoryMB, err := collectProcessUsage()
	if err != nil {
		logger.Debug("采集进程资源占用失败: %v", err)
		return
	}
	smc.pm.SetProcessUsage(cpuPercent, memoryMB)
}

// collectProcessUsage 采集当前进程的CPU占用与常驻内存
func collectProcessUsage() (cpuPercent float64, memoryMB float64, err error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, 0, fmt.Errorf("获取进程失败: %w", err)
	}

	cpuPercent, err = p.CPUPercent()
	if err != nil {
		// 进程级获取失败时退回到系统CPU使用率
		cpuPercent, err = getSystemCPUPercent()
		if err != nil {
			return 0, 0, fmt.Errorf("获取CPU占用率失败: %w", err)
		}
	}

	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, fmt.Errorf("获取内存信息失败: %w", err)
	}
	memoryMB = float64(memInfo.RSS) / 1024 / 1024

	return cpuPercent, memoryMB, nil
}

// getSystemCPUPercent 获取系统CPU使用率（备用方法）
func getSystemCPUPercent() (float64, error) {
	percentages, err := cpu.Percent(time.Second, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, fmt.Errorf("无法获取CPU使用率")
	}
	return percentages[0], nil
}

// SystemSnapshot 即时系统资源快照（供运行结束时记录）
type SystemSnapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryMB      float64   `json:"memory_mb"`
	MemoryPercent float64   `json:"memory_percent"`
	Goroutines    int       `json:"goroutines"`
}

// CollectSnapshot 采集一次即时快照
func CollectSnapshot() (*SystemSnapshot, error) {
	cpuPercent, memoryMB, err := collectProcessUsage()
	if err != nil {
		return nil, err
	}

	var memoryPercent float64
	if memStat, err := mem.VirtualMemory(); err == nil && memStat.Total > 0 {
		memoryPercent = memoryMB * 1024 * 1024 / float64(memStat.Total) * 100
	}

	return &SystemSnapshot{
		Timestamp:     time.Now(),
		CPUPercent:    cpuPercent,
		MemoryMB:      memoryMB,
		MemoryPercent: memoryPercent,
		Goroutines:    runtime.NumGoroutine(),
	}, nil
}
