package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edgeaudit/backtest"
	"edgeaudit/config"
	"edgeaudit/database"
	"edgeaudit/logger"
	"edgeaudit/market"
	"edgeaudit/metrics"
	"edgeaudit/robust"
	"edgeaudit/storage"
	"edgeaudit/utils"
)

// Version 版本号
var Version = "1.2.0"

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-version" || os.Args[1] == "--version") {
		fmt.Printf("EdgeAudit Strategy Validator\n")
		fmt.Printf("Version: %s\n", Version)
		os.Exit(0)
	}

	// 解析调试参数（-debug / --debug）
	debugMode := false
	filteredArgs := []string{os.Args[0]}
	for _, arg := range os.Args[1:] {
		switch arg {
		case "-debug", "--debug":
			debugMode = true
		default:
			filteredArgs = append(filteredArgs, arg)
		}
	}
	os.Args = filteredArgs

	// 最早初始化日志存储（在配置加载之前，使用默认路径）
	logStoragePath := "./logs.db"
	if len(os.Args) > 2 && os.Args[1] == "--log-db" {
		logStoragePath = os.Args[2]
		os.Args = append(os.Args[:1], os.Args[3:]...)
	}

	logStorage, err := storage.NewLogStorage(logStoragePath)
	if err != nil {
		log.Printf("[WARN] 初始化日志存储失败: %v，将继续运行但不保存日志到数据库", err)
		logStorage = nil
	} else {
		logger.InitLogStorage(func(level, message string) {
			logStorage.WriteLog(level, message)
		})
		defer logStorage.Close()
	}

	logger.Info("🚀 EdgeAudit 策略验证器启动...")
	logger.Info("📦 版本号: %s", Version)

	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// 配置文件不存在时生成模板后退出，验证是批处理任务，缺配置无法继续
		cfg := config.CreateMinimalConfig()
		if err := config.SaveConfigWithoutValidation(cfg, configPath); err != nil {
			logger.Fatalf("❌ 生成配置模板失败: %v", err)
		}
		logger.Info("✅ 已生成配置模板: %s，请填写数据源与信号路径后重新运行", configPath)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatalf("❌ 加载配置失败: %v", err)
	}

	if err := utils.SetLocation(cfg.System.Timezone); err != nil {
		logger.Warn("⚠️ 加载时区 %s 失败: %v，将使用默认时区 UTC", cfg.System.Timezone, err)
		utils.SetLocation("UTC")
	}
	logger.SetLocation(utils.GlobalLocation)

	if debugMode {
		cfg.System.LogLevel = "debug"
	}
	logger.SetLevel(logger.ParseLogLevel(cfg.System.LogLevel))

	// 定期清理日志库
	if logStorage != nil && cfg.System.LogRetentionDays > 0 {
		go func() {
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()
			for range ticker.C {
				if err := logStorage.CleanOldLogs(cfg.System.LogRetentionDays); err != nil {
					logger.Warn("⚠️ 清理日志失败: %v", err)
					continue
				}
				if err := logStorage.Vacuum(); err != nil {
					logger.Warn("⚠️ 日志数据库优化失败: %v", err)
				}
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 信号处理：第一次中断取消扫描（保留已完成结果），第二次直接退出
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("⚠️ 收到中断信号，正在取消剩余扫描...")
		cancel()
		<-sigCh
		logger.Error("❌ 再次收到中断信号，强制退出")
		os.Exit(1)
	}()

	// Prometheus 监控
	pm := metrics.GetPrometheusMetrics()
	var metricsServer *metrics.Server
	var collector *metrics.SystemMetricsCollector
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Listen)
		metricsServer.Start()
		collector = metrics.NewSystemMetricsCollector(time.Duration(cfg.Metrics.CollectInterval) * time.Second)
		collector.Start()
		defer collector.Stop()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			metricsServer.Stop(shutdownCtx)
		}()
	}

	if err := run(ctx, cfg, pm); err != nil {
		logger.Fatalf("❌ 验证失败: %v", err)
	}

	if cfg.System.WatchConfig {
		watchAndRerun(ctx, configPath, cfg, pm)
	}
	logger.Info("👋 验证完成，退出")
}

// watchAndRerun 监听配置文件，每次热更新后用新配置重跑完整验证
// 含重启项的变更只热应用其余部分，并提示需要重启
func watchAndRerun(ctx context.Context, configPath string, cfg *config.Config, pm *metrics.PrometheusMetrics) {
	reloader := config.NewHotReloader(cfg)
	rerun := make(chan struct{}, 1)
	reloader.RegisterCallback(func(old, new *config.Config, changes []config.ConfigChange) error {
		for _, c := range changes {
			logger.Info("🔧 配置变更: %s = %v → %v", c.Path, c.OldValue, c.NewValue)
		}
		if len(changes) > 0 {
			select {
			case rerun <- struct{}{}:
			default:
			}
		}
		return nil
	})

	watcher, err := config.NewConfigWatcher(configPath, reloader, config.NewBackupManager())
	if err != nil {
		logger.Warn("⚠️ 创建配置监听器失败: %v", err)
		return
	}
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("⚠️ 启动配置监听失败: %v", err)
		return
	}
	defer watcher.Stop()
	logger.Info("👁️ 监听模式：修改 %s 后将自动重跑验证（Ctrl+C 退出）", configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case <-watcher.RestartCh():
			logger.Warn("⚠️ 本次变更包含需要重启才能生效的配置项，请重启进程")
		case err := <-watcher.ErrCh():
			logger.Warn("⚠️ 配置监听: %v", err)
		case <-rerun:
			if err := run(ctx, reloader.GetCurrentConfig(), pm); err != nil {
				logger.Error("❌ 重跑验证失败: %v", err)
			}
		}
	}
}

// run 执行完整验证流水线：数据加载 → 完整性审计 → 基准模拟 → 稳健性扫描 → 持久化
func run(ctx context.Context, cfg *config.Config, pm *metrics.PrometheusMetrics) error {
	candles, err := loadCandles(ctx, cfg)
	if err != nil {
		return fmt.Errorf("加载K线失败: %w", err)
	}
	logger.Info("📊 已加载 %d 根K线: %s %s", len(candles), cfg.Data.Symbol, cfg.Data.Interval)

	if err := market.ValidateSeries(candles); err != nil {
		pm.RecordIntegrityError(cfg.Data.Symbol, "series")
		return fmt.Errorf("K线序列完整性校验失败: %w", err)
	}

	intervalMs := market.BarIntervalMs(candles)
	gaps := market.DetectSessionGaps(candles, intervalMs)
	pm.SetSessionGaps(cfg.Data.Symbol, len(gaps))
	if len(gaps) > 0 {
		logger.Warn("⚠️ 检测到 %d 个停盘缺口（时间推进按真实时间戳，不跨缺口插值）", len(gaps))
		for i, g := range gaps {
			if i >= 5 {
				logger.Warn("   ... 其余 %d 个缺口省略", len(gaps)-5)
				break
			}
			logger.Warn("   缺口 #%d: %s → %s (约 %d 根K线)", i+1,
				time.UnixMilli(g.FromTs).UTC().Format("2006-01-02 15:04"),
				time.UnixMilli(g.ToTs).UTC().Format("2006-01-02 15:04"), g.GapBars)
		}
	}

	signals, err := market.LoadSignalsCSV(cfg.Data.SignalsPath)
	if err != nil {
		return fmt.Errorf("加载信号失败: %w", err)
	}
	if err := market.ValidateSignals(signals, candles); err != nil {
		pm.RecordIntegrityError(cfg.Data.Symbol, "signals")
		return fmt.Errorf("信号校验失败: %w", err)
	}
	logger.Info("📶 已加载 %d 个信号: %s", len(signals), cfg.Data.SignalsPath)

	gapStats := market.AuditEntryGaps(candles, signals, cfg.Execution.PipSize)
	if gapStats.Signals > 0 {
		logger.Info("🔍 入场缺口审计: 平均 %.2f pip, 最差 %.2f pip, 不利比例 %.1f%%",
			gapStats.MeanGapPips, gapStats.WorstGapPips, gapStats.AdverseRate*100)
	}

	var regimeLabels []robust.RegimeLabel
	if cfg.Data.RegimesPath != "" {
		regimeLabels, err = robust.LoadRegimeLabels(cfg.Data.RegimesPath)
		if err != nil {
			return fmt.Errorf("加载状态标注失败: %w", err)
		}
		logger.Info("🗂️ 已加载 %d 个市场状态标注", len(regimeLabels))
	}

	// 基准模拟（验证器内部会以相同种子复现同一结果）
	simStart := time.Now()
	base := &backtest.Run{
		Candles:  candles,
		Signals:  signals,
		Config:   cfg.Execution,
		Analyzer: cfg.Analyzer,
		Seed:     cfg.Seed,
	}
	baseResult, err := base.Execute()
	if err != nil {
		pm.RecordSimulation(cfg.Data.Symbol, "error", 0, time.Since(simStart))
		return fmt.Errorf("基准模拟失败: %w", err)
	}
	pm.RecordSimulation(cfg.Data.Symbol, "ok", len(baseResult.Trades), time.Since(simStart))
	pm.SetBaseNetExpectancy(cfg.Data.Symbol, baseResult.Metrics.NetExpectBps)

	validator := &robust.Validator{
		Candles:      candles,
		Signals:      signals,
		BaseConfig:   cfg.Execution,
		Analyzer:     cfg.Analyzer,
		Cfg:          cfg.Validation,
		Seed:         cfg.Seed,
		RegimeLabels: regimeLabels,
	}
	verdict, err := validator.Run(ctx)
	if err != nil {
		return fmt.Errorf("稳健性验证失败: %w", err)
	}
	pm.RecordVerdict(string(verdict.Label))
	for _, mode := range verdict.SweepModes() {
		sweep := verdict.Sweeps[mode]
		pm.RecordSweep(string(mode), sweep.SurvivalRate, time.Duration(sweep.DurationMs)*time.Millisecond)
		for i := range sweep.Results {
			status := "dead"
			if sweep.Results[i].Excluded {
				status = "excluded"
			} else if sweep.Results[i].Survived() {
				status = "alive"
			}
			pm.RecordSweepCell(string(mode), status)
		}
	}

	printVerdict(verdict)

	if cfg.Storage.Enabled {
		db, err := database.NewDatabase(&database.Config{
			Type:            cfg.Database.Type,
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
			LogLevel:        cfg.Database.LogLevel,
		})
		if err != nil {
			logger.Warn("⚠️ 初始化数据库失败: %v（结果不会持久化）", err)
			return nil
		}
		defer db.Close()

		svc := storage.NewService(db, cfg.Storage.SaveTrades)
		strategyID := ""
		if len(signals) > 0 {
			strategyID = signals[0].StrategyID
		}
		if prev, err := svc.FindPrevious(ctx, verdict.ConfigHash, verdict.SeriesHash, verdict.Seed); err == nil && prev != nil {
			logger.Info("ℹ️ 相同指纹的历史运行已存在: run_id=%d (%s)", prev.ID, prev.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		if _, err := svc.SaveVerdict(ctx, cfg.Data.Symbol, strategyID, baseResult, verdict); err != nil {
			logger.Warn("⚠️ 持久化结果失败: %v", err)
		}
	}
	return nil
}

// loadCandles 按配置的数据源加载K线
func loadCandles(ctx context.Context, cfg *config.Config) ([]*market.Candle, error) {
	switch cfg.Data.Source {
	case "csv":
		return market.LoadCSV(cfg.Data.CSVPath)
	case "binance":
		if cfg.Data.CacheDir != "" {
			market.SetCacheDir(cfg.Data.CacheDir)
		}
		startTime, err := time.ParseInLocation("2006-01-02 15:04:05", cfg.Data.StartTime, utils.GlobalLocation)
		if err != nil {
			return nil, fmt.Errorf("解析 start_time 失败: %w", err)
		}
		endTime, err := time.ParseInLocation("2006-01-02 15:04:05", cfg.Data.EndTime, utils.GlobalLocation)
		if err != nil {
			return nil, fmt.Errorf("解析 end_time 失败: %w", err)
		}
		return market.GetHistoricalData(ctx, cfg.Data.Symbol, cfg.Data.Interval, startTime, endTime)
	default:
		return nil, fmt.Errorf("不支持的数据源: %s", cfg.Data.Source)
	}
}

// printVerdict 输出验证结论
func printVerdict(v *robust.Verdict) {
	logger.Info("==================================================")
	logger.Info("🏷️ 结论: %s", v.Label)
	for _, r := range v.Reasons {
		logger.Info("   依据: %s", r)
	}
	logger.Info("📈 基准指标: 交易数=%d, 胜率=%.1f%%, 净期望=%.2f bps, 最大回撤=%.4f, Sharpe=%.2f",
		v.BaseMetrics.TotalTrades, v.BaseMetrics.WinRate*100, v.BaseMetrics.NetExpectBps,
		v.BaseMetrics.MaxDrawdown, v.BaseMetrics.SharpeRatio)
	for _, mode := range v.SweepModes() {
		sweep := v.Sweeps[mode]
		logger.Info("🔬 %s: %d/%d 存活 (%.1f%%)", mode, sweep.Survivors, sweep.Counted, sweep.SurvivalRate*100)
	}
	for _, a := range v.Anomalies {
		logger.Warn("⚠️ 统计异常: %s", a.String())
	}
	if v.MonteCarloCI != nil {
		logger.Info("🎲 自助法置信区间 (%.0f%%): [%.4f, %.4f], 排除零=%v",
			v.MonteCarloCI.Level*100, v.MonteCarloCI.Low, v.MonteCarloCI.High, v.MonteCarloCI.ExcludesZero)
	}
	if v.RegimeConcentration > 0 {
		logger.Info("🗂️ 状态盈利集中度: %.1f%%", v.RegimeConcentration*100)
	}
	if v.Partial {
		logger.Warn("⚠️ 部分扫描被取消，结论基于已完成的维度")
	}
	logger.Info("🔑 复现指纹: config=%s series=%s seed=%d", v.ConfigHash[:12], v.SeriesHash[:12], v.Seed)
	logger.Info("==================================================")

	if data, err := json.MarshalIndent(v, "", "  "); err == nil {
		if err := os.WriteFile("verdict.json", data, 0644); err != nil {
			logger.Warn("⚠️ 写出 verdict.json 失败: %v", err)
		} else {
			logger.Info("📄 完整结论已写出: verdict.json")
		}
	}
}
