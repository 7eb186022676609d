package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"edgeaudit/logger"
)

const (
	backupPrefix = "config.yaml.backup."
	backupSuffix = ".yaml"
	backupStamp  = "20060102150405"
)

// BackupInfo 单个配置备份
type BackupInfo struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	FilePath    string    `json:"file_path"`
	Size        int64     `json:"size"`
	Description string    `json:"description"`
}

// BackupManager 配置备份管理器
// 热更新落地前留档，更新失败时可用 RestoreBackup 回滚
type BackupManager struct {
	backupDir  string
	maxBackups int
}

// NewBackupManager 创建备份管理器
func NewBackupManager() *BackupManager {
	return &BackupManager{
		backupDir:  "./config_backups",
		maxBackups: 50,
	}
}

// CreateBackup 备份当前配置文件
func (bm *BackupManager) CreateBackup(configPath, description string) (*BackupInfo, error) {
	if err := os.MkdirAll(bm.backupDir, 0755); err != nil {
		return nil, fmt.Errorf("创建备份目录失败: %w", err)
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	now := time.Now()
	id := backupPrefix + now.Format(backupStamp) + backupSuffix
	backupPath := filepath.Join(bm.backupDir, id)
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return nil, fmt.Errorf("写入备份文件失败: %w", err)
	}

	// 清理失败不影响本次备份
	if err := bm.CleanOldBackups(); err != nil {
		logger.Warn("⚠️ 清理旧备份失败: %v", err)
	}

	return &BackupInfo{
		ID:          id,
		Timestamp:   now.Truncate(time.Second),
		FilePath:    backupPath,
		Size:        int64(len(data)),
		Description: description,
	}, nil
}

// ListBackups 按时间倒序列出现有备份
func (bm *BackupManager) ListBackups() ([]*BackupInfo, error) {
	entries, err := os.ReadDir(bm.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取备份目录失败: %w", err)
	}

	var backups []*BackupInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ts, ok := parseBackupID(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, &BackupInfo{
			ID:        entry.Name(),
			Timestamp: ts,
			FilePath:  filepath.Join(bm.backupDir, entry.Name()),
			Size:      info.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// RestoreBackup 将指定备份恢复到目标路径
// 恢复前完整校验备份内容，损坏或非法的备份绝不落地
func (bm *BackupManager) RestoreBackup(backupID, targetPath string) error {
	data, err := os.ReadFile(filepath.Join(bm.backupDir, backupID))
	if err != nil {
		return fmt.Errorf("读取备份文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("备份文件格式无效: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("备份配置验证失败: %w", err)
	}

	if err := os.WriteFile(targetPath, data, 0644); err != nil {
		return fmt.Errorf("恢复配置文件失败: %w", err)
	}
	return nil
}

// DeleteBackup 删除指定备份
func (bm *BackupManager) DeleteBackup(backupID string) error {
	if err := os.Remove(filepath.Join(bm.backupDir, backupID)); err != nil {
		return fmt.Errorf("删除备份文件失败: %w", err)
	}
	return nil
}

// CleanOldBackups 删除超出保留数量的最旧备份
func (bm *BackupManager) CleanOldBackups() error {
	backups, err := bm.ListBackups()
	if err != nil {
		return err
	}
	for _, b := range backups[min(bm.maxBackups, len(backups)):] {
		if err := bm.DeleteBackup(b.ID); err != nil {
			logger.Warn("⚠️ 删除旧备份失败 %s: %v", b.ID, err)
		}
	}
	return nil
}

// parseBackupID 从备份文件名解析时间戳，格式: config.yaml.backup.20060102150405.yaml
func parseBackupID(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupSuffix)
	ts, err := time.Parse(backupStamp, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
