package config

import (
	"os"
	"path/filepath"
	"testing"
)

func createValidConfig() *Config {
	cfg := CreateMinimalConfig()
	cfg.Data.Source = "csv"
	cfg.Data.CSVPath = "./test_data/BTCUSDT_1h.csv"
	cfg.Data.SignalsPath = "./test_data/signals.csv"
	cfg.Data.Symbol = "BTCUSDT"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	// 测试有效配置
	cfg := createValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("有效配置验证失败: %v", err)
	}

	// 测试缺失K线文件路径
	invalidCfg1 := createValidConfig()
	invalidCfg1.Data.CSVPath = ""
	if err := invalidCfg1.Validate(); err == nil {
		t.Error("csv 数据源缺少 csv_path 应该报错")
	}

	// 测试非法点差
	invalidCfg2 := createValidConfig()
	invalidCfg2.Execution.SpreadPips = -1.0
	if err := invalidCfg2.Validate(); err == nil {
		t.Error("负数点差应该报错")
	}

	// 测试未知数据库类型
	invalidCfg3 := createValidConfig()
	invalidCfg3.Database.Type = "oracle"
	if err := invalidCfg3.Validate(); err == nil {
		t.Error("未知数据库类型应该报错")
	}
}

func TestConfigDiff(t *testing.T) {
	oldCfg := createValidConfig()
	newCfg := createValidConfig()

	// 1. 无变更
	diff := DiffConfig(oldCfg, newCfg)
	if len(diff.Changes) != 0 {
		t.Errorf("预期无变更，得到 %d 个", len(diff.Changes))
	}

	// 2. 修改热更新项 (spread_pips)
	newCfg.Execution.SpreadPips = 2.0
	diff = DiffConfig(oldCfg, newCfg)
	if len(diff.Changes) != 1 {
		t.Errorf("预期1个变更，得到 %d 个", len(diff.Changes))
	}
	if diff.RequiresRestart {
		t.Error("修改 spread_pips 不应需要重启")
	}

	// 3. 修改需要重启的项 (database.dsn)
	newCfg.Database.DSN = "./other.db"
	diff = DiffConfig(oldCfg, newCfg)
	foundRestart := false
	for _, c := range diff.Changes {
		if c.Path == "database.dsn" && c.RequiresRestart {
			foundRestart = true
		}
	}
	if !foundRestart {
		t.Error("修改 database.dsn 应该标记为需要重启")
	}
}

func TestHotReloader(t *testing.T) {
	initialCfg := createValidConfig()
	reloader := NewHotReloader(initialCfg)

	callbackCalled := false
	reloader.RegisterCallback(func(old, new *Config, changes []ConfigChange) error {
		callbackCalled = true
		return nil
	})

	newCfg := createValidConfig()
	newCfg.Execution.LatencyMs = 500

	_, err := reloader.UpdateConfig(newCfg)
	if err != nil {
		t.Fatalf("更新配置失败: %v", err)
	}

	if !callbackCalled {
		t.Error("热更新回调未被触发")
	}

	if reloader.GetCurrentConfig().Execution.LatencyMs != 500 {
		t.Errorf("配置未更新: %d", reloader.GetCurrentConfig().Execution.LatencyMs)
	}
}

func TestConfigBackup(t *testing.T) {
	tempDir := t.TempDir()
	backupDir := filepath.Join(tempDir, "backups")

	bm := &BackupManager{
		backupDir:  backupDir,
		maxBackups: 5,
	}

	testConfigPath := filepath.Join(tempDir, "test_config.yaml")
	testConfigContent := "data:\n  source: \"csv\"\n"
	err := os.WriteFile(testConfigPath, []byte(testConfigContent), 0644)
	if err != nil {
		t.Fatal(err)
	}

	backupInfo, err := bm.CreateBackup(testConfigPath, "测试备份")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(backupInfo.FilePath); os.IsNotExist(err) {
		t.Fatal("备份文件不存在")
	}

	backups, err := bm.ListBackups()
	if err != nil {
		t.Fatalf("列出备份失败: %v", err)
	}

	if len(backups) != 1 {
		t.Errorf("备份列表数量不正确: 期望1个，实际%d个", len(backups))
		entries, _ := os.ReadDir(backupDir)
		for _, entry := range entries {
			t.Logf("备份目录中的文件: %s (isDir: %v)", entry.Name(), entry.IsDir())
		}
	}
}

// watcherForTest 直接构造监听器测 reload 逻辑，不依赖 fsnotify 事件时序
func watcherForTest(t *testing.T, path string, reloader *HotReloader, backupDir string) *ConfigWatcher {
	t.Helper()
	return &ConfigWatcher{
		configPath: path,
		reloader:   reloader,
		backups:    &BackupManager{backupDir: backupDir, maxBackups: 5},
		restartCh:  make(chan *Config, 1),
		errCh:      make(chan error, 8),
	}
}

func TestWatcherReloadHotChange(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "config.yaml")

	cfg := createValidConfig()
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatal(err)
	}

	reloader := NewHotReloader(cfg)
	cw := watcherForTest(t, path, reloader, filepath.Join(tempDir, "backups"))

	// 修改可热更新项后写回文件
	updated := createValidConfig()
	updated.Execution.SpreadPips = 2.5
	if err := SaveConfig(updated, path); err != nil {
		t.Fatal(err)
	}
	cw.reload()

	if got := reloader.GetCurrentConfig().Execution.SpreadPips; got != 2.5 {
		t.Errorf("热更新未生效: spread_pips=%f", got)
	}
	select {
	case <-cw.restartCh:
		t.Error("纯热更新变更不应发出重启通知")
	default:
	}

	backups, err := cw.backups.ListBackups()
	if err != nil {
		t.Fatalf("列出备份失败: %v", err)
	}
	if len(backups) != 1 {
		t.Errorf("重载前应自动备份一次，实际 %d 个", len(backups))
	}

	// 文件未再变更时重复 reload 不应重复触发
	calls := 0
	reloader.RegisterCallback(func(old, new *Config, changes []ConfigChange) error {
		calls++
		return nil
	})
	cw.reload()
	if calls != 0 {
		t.Errorf("文件未变更不应触发更新，回调执行了 %d 次", calls)
	}
}

func TestWatcherReloadRestartChange(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "config.yaml")

	cfg := createValidConfig()
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatal(err)
	}
	oldDSN := cfg.Database.DSN

	reloader := NewHotReloader(cfg)
	cw := watcherForTest(t, path, reloader, filepath.Join(tempDir, "backups"))

	// 同时修改热更新项与重启项
	updated := createValidConfig()
	updated.Execution.SpreadPips = 3.0
	updated.Database.DSN = "./other.db"
	if err := SaveConfig(updated, path); err != nil {
		t.Fatal(err)
	}
	cw.reload()

	current := reloader.GetCurrentConfig()
	if current.Execution.SpreadPips != 3.0 {
		t.Errorf("可热更新的部分应已应用: spread_pips=%f", current.Execution.SpreadPips)
	}
	if current.Database.DSN != oldDSN {
		t.Errorf("重启项不应热应用: dsn=%s", current.Database.DSN)
	}

	select {
	case newCfg := <-cw.restartCh:
		if newCfg.Database.DSN != "./other.db" {
			t.Errorf("重启通知应携带新配置: dsn=%s", newCfg.Database.DSN)
		}
	default:
		t.Error("包含重启项的变更应发出重启通知")
	}
}

func TestCloneConfigIndependent(t *testing.T) {
	cfg := createValidConfig()
	clone, err := cloneConfig(cfg)
	if err != nil {
		t.Fatalf("复制配置失败: %v", err)
	}
	clone.Execution.SpreadPips = 99
	if cfg.Execution.SpreadPips == 99 {
		t.Error("深拷贝后修改副本不应影响原配置")
	}
}

func TestLoadConfigRoundTrip(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "config.yaml")

	cfg := createValidConfig()
	cfg.Seed = 7
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("保存配置失败: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if loaded.Seed != 7 {
		t.Errorf("种子未保留: %d", loaded.Seed)
	}
	if loaded.Execution.SpreadPips != cfg.Execution.SpreadPips {
		t.Errorf("执行配置未保留: %f", loaded.Execution.SpreadPips)
	}
}
