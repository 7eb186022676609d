package config

import (
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ConfigUpdateCallback 配置更新回调，返回错误则本次更新中止
type ConfigUpdateCallback func(oldConfig, newConfig *Config, changes []ConfigChange) error

// HotReloader 配置热更新器
// 可热更新的字段直接落地，需要重启的字段保持旧值，由调用方根据
// ConfigDiff.RequiresRestart 决定是否提示重启
type HotReloader struct {
	mu        sync.RWMutex
	current   *Config
	callbacks []ConfigUpdateCallback
}

// NewHotReloader 创建热更新器
func NewHotReloader(initial *Config) *HotReloader {
	return &HotReloader{current: initial}
}

// RegisterCallback 注册配置更新回调
func (hr *HotReloader) RegisterCallback(cb ConfigUpdateCallback) {
	hr.mu.Lock()
	defer hr.mu.Unlock()
	hr.callbacks = append(hr.callbacks, cb)
}

// GetCurrentConfig 获取当前生效的配置
func (hr *HotReloader) GetCurrentConfig() *Config {
	hr.mu.RLock()
	defer hr.mu.RUnlock()
	return hr.current
}

// UpdateConfig 应用新配置
// 混合变更时只应用可热更新的部分，重启项留在返回的 diff 里
func (hr *HotReloader) UpdateConfig(newConfig *Config) (*ConfigDiff, error) {
	hr.mu.Lock()
	defer hr.mu.Unlock()

	diff := DiffConfig(hr.current, newConfig)
	if len(diff.Changes) == 0 {
		return diff, nil
	}

	var hot []ConfigChange
	for _, c := range diff.Changes {
		if !c.RequiresRestart {
			hot = append(hot, c)
		}
	}

	applied := newConfig
	if diff.RequiresRestart {
		// 部分应用：旧配置的深拷贝上只覆盖可热更新的字段
		clone, err := cloneConfig(hr.current)
		if err != nil {
			return nil, fmt.Errorf("复制配置失败: %w", err)
		}
		for _, c := range hot {
			copyConfigField(clone, newConfig, c.Path)
		}
		applied = clone
	}

	for _, cb := range hr.callbacks {
		if err := cb(hr.current, applied, hot); err != nil {
			return nil, fmt.Errorf("配置更新回调执行失败: %w", err)
		}
	}

	hr.current = applied
	return diff, nil
}

// copyConfigField 按路径前缀把新配置的字段覆盖到目标配置
func copyConfigField(dest, src *Config, path string) {
	switch {
	case strings.HasPrefix(path, "execution."):
		dest.Execution = src.Execution
	case strings.HasPrefix(path, "analyzer."):
		dest.Analyzer = src.Analyzer
	case strings.HasPrefix(path, "validation."):
		dest.Validation = src.Validation
	case path == "seed":
		dest.Seed = src.Seed
	case strings.HasPrefix(path, "storage."):
		dest.Storage = src.Storage
	case path == "system.log_level":
		dest.System.LogLevel = src.System.LogLevel
	case path == "system.log_retention_days":
		dest.System.LogRetentionDays = src.System.LogRetentionDays
	}
}

// cloneConfig 通过序列化往返实现深拷贝
func cloneConfig(cfg *Config) (*Config, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var clone Config
	if err := yaml.Unmarshal(data, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}
