package config

import (
	"reflect"
	"strings"
)

// ChangeType 变更类型
type ChangeType string

const (
	ChangeTypeAdded    ChangeType = "added"
	ChangeTypeModified ChangeType = "modified"
	ChangeTypeDeleted  ChangeType = "deleted"
)

// ConfigChange 单项配置变更，Path 为 yaml 路径（如 "execution.spread_pips"）
type ConfigChange struct {
	Path            string      `json:"path"`
	Type            ChangeType  `json:"type"`
	OldValue        interface{} `json:"old_value"`
	NewValue        interface{} `json:"new_value"`
	RequiresRestart bool        `json:"requires_restart"`
}

// ConfigDiff 两份配置的差异
type ConfigDiff struct {
	Changes         []ConfigChange `json:"changes"`
	RequiresRestart bool           `json:"requires_restart"`
}

// restartPaths 改动后必须重启进程的配置路径
// 这些项在启动阶段决定数据加载、数据库连接与监听端口，热改无意义
var restartPaths = map[string]bool{
	"data.source":         true, // 数据来源切换需要重新加载K线与信号
	"data.symbol":         true,
	"data.csv_path":       true,
	"data.signals_path":   true,
	"database.type":       true, // 数据库连接在启动时建立
	"database.dsn":        true,
	"metrics.listen":      true, // Prometheus 监听地址
	"system.timezone":     true,
	"system.watch_config": true, // 监听开关本身只在启动时读取
}

// DiffConfig 对比两份配置，按 yaml 标签生成字段级差异
func DiffConfig(oldConfig, newConfig *Config) *ConfigDiff {
	diff := &ConfigDiff{Changes: []ConfigChange{}}
	walkFields(reflect.ValueOf(*oldConfig), reflect.ValueOf(*newConfig), "", diff)
	for _, c := range diff.Changes {
		if c.RequiresRestart {
			diff.RequiresRestart = true
			break
		}
	}
	return diff
}

// walkFields 递归遍历结构体字段，叶子节点用 DeepEqual 判定
func walkFields(oldVal, newVal reflect.Value, base string, diff *ConfigDiff) {
	if oldVal.Kind() != reflect.Struct {
		if !reflect.DeepEqual(oldVal.Interface(), newVal.Interface()) {
			diff.record(base, oldVal.Interface(), newVal.Interface())
		}
		return
	}

	typ := oldVal.Type()
	for i := 0; i < typ.NumField(); i++ {
		name := yamlFieldName(typ.Field(i))
		if name == "" {
			continue
		}
		path := name
		if base != "" {
			path = base + "." + name
		}
		walkFields(oldVal.Field(i), newVal.Field(i), path, diff)
	}
}

func (d *ConfigDiff) record(path string, oldValue, newValue interface{}) {
	d.Changes = append(d.Changes, ConfigChange{
		Path:            path,
		Type:            ChangeTypeModified,
		OldValue:        oldValue,
		NewValue:        newValue,
		RequiresRestart: needsRestart(path),
	})
}

func needsRestart(path string) bool {
	if restartPaths[path] {
		return true
	}
	for p := range restartPaths {
		if strings.HasPrefix(path, p+".") {
			return true
		}
	}
	return false
}

// yamlFieldName 取字段的 yaml 标签名，无标签或标为 "-" 的字段不参与对比
func yamlFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("yaml")
	if tag == "" || tag == "-" {
		return ""
	}
	name := strings.Split(tag, ",")[0]
	if name == "" {
		name = strings.ToLower(f.Name)
	}
	return name
}
