package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"edgeaudit/logger"
)

// ConfigWatcher 监听配置文件变更，自动备份并热更新
// fsnotify 事件为主，1秒修改时间轮询兜底（NFS 等场景事件可能丢失）
type ConfigWatcher struct {
	configPath string
	reloader   *HotReloader
	backups    *BackupManager

	fsw *fsnotify.Watcher

	mu          sync.Mutex
	running     bool
	lastModTime time.Time

	restartCh chan *Config
	errCh     chan error
}

// NewConfigWatcher 创建配置监听器
func NewConfigWatcher(configPath string, reloader *HotReloader, backups *BackupManager) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("解析配置文件路径失败: %w", err)
	}
	return &ConfigWatcher{
		configPath: abs,
		reloader:   reloader,
		backups:    backups,
		restartCh:  make(chan *Config, 1),
		errCh:      make(chan error, 8),
	}, nil
}

// Start 开始监听，ctx 取消时退出
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.running {
		return fmt.Errorf("配置监听器已在运行")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听器失败: %w", err)
	}
	// 监听目录而非文件：编辑器原子写入会替换 inode，直接监听文件会失效
	if err := fsw.Add(filepath.Dir(cw.configPath)); err != nil {
		fsw.Close()
		return fmt.Errorf("监听配置目录失败: %w", err)
	}

	if info, err := os.Stat(cw.configPath); err == nil {
		cw.lastModTime = info.ModTime()
	}

	cw.fsw = fsw
	cw.running = true
	go cw.loop(ctx)

	logger.Info("👁️ 配置监听已启动: %s", cw.configPath)
	return nil
}

// Stop 停止监听
func (cw *ConfigWatcher) Stop() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if !cw.running {
		return
	}
	cw.fsw.Close()
	cw.running = false
}

// RestartCh 返回重启通知通道：变更包含重启项时送出新配置
func (cw *ConfigWatcher) RestartCh() <-chan *Config {
	return cw.restartCh
}

// ErrCh 返回监听过程中的错误通道
func (cw *ConfigWatcher) ErrCh() <-chan error {
	return cw.errCh
}

func (cw *ConfigWatcher) loop(ctx context.Context) {
	poll := time.NewTicker(time.Second)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			cw.Stop()
			return

		case ev, ok := <-cw.fsw.Events:
			if !ok {
				return
			}
			if ev.Name != cw.configPath || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// 等写入落定，避免读到半个文件
			time.Sleep(100 * time.Millisecond)
			cw.reload()

		case err, ok := <-cw.fsw.Errors:
			if !ok {
				return
			}
			cw.report(fmt.Errorf("文件监听错误: %w", err))

		case <-poll.C:
			info, err := os.Stat(cw.configPath)
			if err != nil {
				continue
			}
			cw.mu.Lock()
			changed := info.ModTime().After(cw.lastModTime)
			cw.mu.Unlock()
			if changed {
				cw.reload()
			}
		}
	}
}

// reload 备份当前文件、重新加载并应用到热更新器
// 新配置非法时保持旧配置不动，只上报错误
func (cw *ConfigWatcher) reload() {
	info, err := os.Stat(cw.configPath)
	if err != nil {
		cw.report(fmt.Errorf("读取配置文件信息失败: %w", err))
		return
	}

	cw.mu.Lock()
	if !info.ModTime().After(cw.lastModTime) {
		cw.mu.Unlock()
		return
	}
	cw.lastModTime = info.ModTime()
	cw.mu.Unlock()

	if _, err := cw.backups.CreateBackup(cw.configPath, "热更新前自动备份"); err != nil {
		logger.Warn("⚠️ 自动备份失败: %v", err)
	}

	newCfg, err := LoadConfig(cw.configPath)
	if err != nil {
		cw.report(fmt.Errorf("重新加载配置失败: %w", err))
		return
	}

	diff, err := cw.reloader.UpdateConfig(newCfg)
	if err != nil {
		cw.report(fmt.Errorf("应用配置更新失败: %w", err))
		return
	}

	if len(diff.Changes) == 0 {
		return
	}
	logger.Info("🔄 配置已更新: %d 项变更", len(diff.Changes))

	if diff.RequiresRestart {
		select {
		case cw.restartCh <- newCfg:
		default:
		}
	}
}

func (cw *ConfigWatcher) report(err error) {
	select {
	case cw.errCh <- err:
	default:
		logger.Warn("⚠️ %v", err)
	}
}
