package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 模拟指标
	simulationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeaudit_simulation_total",
			Help: "Total number of simulation runs",
		},
		[]string{"symbol", "status"},
	)

	simulationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edgeaudit_simulation_duration_seconds",
			Help:    "Simulation run duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0, 60.0},
		},
		[]string{"symbol"},
	)

	tradesProduced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeaudit_trades_produced_total",
			Help: "Total number of simulated trades produced",
		},
		[]string{"symbol"},
	)

	// 扫描指标
	sweepCellTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeaudit_sweep_cell_total",
			Help: "Total number of perturbation cells evaluated",
		},
		[]string{"mode", "status"},
	)

	sweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edgeaudit_sweep_duration_seconds",
			Help:    "Full sweep duration per perturbation mode in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 5.0, 15.0, 60.0, 300.0},
		},
		[]string{"mode"},
	)

	sweepSurvivalRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "edgeaudit_sweep_survival_rate",
			Help: "Fraction of surviving perturbation cells per mode",
		},
		[]string{"mode"},
	)

	// 结论指标
	verdictTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeaudit_verdict_total",
			Help: "Total number of robustness verdicts by label",
		},
		[]string{"label"},
	)

	baseNetExpectancy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "edgeaudit_base_net_expectancy_bps",
			Help: "Base run net expectancy per trade in basis points",
		},
		[]string{"symbol"},
	)

	// 数据指标
	dataIntegrityErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeaudit_data_integrity_errors_total",
			Help: "Total number of data integrity errors detected",
		},
		[]string{"symbol", "reason"},
	)

	sessionGaps = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "edgeaudit_session_gaps",
			Help: "Number of session gaps detected in the loaded series",
		},
		[]string{"symbol"},
	)

	// 系统指标
	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "edgeaudit_goroutines",
			Help: "Current number of goroutines",
		},
	)

	memoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "edgeaudit_memory_alloc_bytes",
			Help: "Currently allocated heap bytes",
		},
	)

	processCPUPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "edgeaudit_process_cpu_percent",
			Help: "Process CPU usage percent",
		},
	)

	processMemoryMB = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "edgeaudit_process_memory_mb",
			Help: "Process resident memory in MB",
		},
	)
)

// PrometheusMetrics Prometheus 指标收集器
type PrometheusMetrics struct{}

var (
	instance *PrometheusMetrics
	once     sync.Once
)

// GetPrometheusMetrics 获取全局指标实例
func GetPrometheusMetrics() *PrometheusMetrics {
	once.Do(func() {
		instance = &PrometheusMetrics{}
	})
	return instance
}

// RecordSimulation 记录一次模拟
func (pm *PrometheusMetrics) RecordSimulation(symbol, status string, trades int, duration time.Duration) {
	simulationTotal.WithLabelValues(symbol, status).Inc()
	simulationDuration.WithLabelValues(symbol).Observe(duration.Seconds())
	if trades > 0 {
		tradesProduced.WithLabelValues(symbol).Add(float64(trades))
	}
}

// RecordSweepCell 记录一个扰动单元
func (pm *PrometheusMetrics) RecordSweepCell(mode, status string) {
	sweepCellTotal.WithLabelValues(mode, status).Inc()
}

// RecordSweep 记录一个扰动维度的完整扫描
func (pm *PrometheusMetrics) RecordSweep(mode string, survivalRate float64, duration time.Duration) {
	sweepDuration.WithLabelValues(mode).Observe(duration.Seconds())
	sweepSurvivalRate.WithLabelValues(mode).Set(survivalRate)
}

// RecordVerdict 记录结论分级
func (pm *PrometheusMetrics) RecordVerdict(label string) {
	verdictTotal.WithLabelValues(label).Inc()
}

// SetBaseNetExpectancy 设置基准净期望
func (pm *PrometheusMetrics) SetBaseNetExpectancy(symbol string, bps float64) {
	baseNetExpectancy.WithLabelValues(symbol).Set(bps)
}

// RecordIntegrityError 记录数据完整性错误
func (pm *PrometheusMetrics) RecordIntegrityError(symbol, reason string) {
	dataIntegrityErrors.WithLabelValues(symbol, reason).Inc()
}

// SetSessionGaps 设置检测到的会话缺口数量
func (pm *PrometheusMetrics) SetSessionGaps(symbol string, count int) {
	sessionGaps.WithLabelValues(symbol).Set(float64(count))
}

// SetGoroutineCount 设置 Goroutine 数量
func (pm *PrometheusMetrics) SetGoroutineCount(count int) {
	goroutineCount.Set(float64(count))
}

// SetMemoryAlloc 设置堆内存占用
func (pm *PrometheusMetrics) SetMemoryAlloc(bytes uint64) {
	memoryAllocBytes.Set(float64(bytes))
}

// SetProcessUsage 设置进程 CPU 与内存占用
func (pm *PrometheusMetrics) SetProcessUsage(cpuPercent, memoryMB float64) {
	processCPUPercent.Set(cpuPercent)
	processMemoryMB.Set(memoryMB)
}
