package robust

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadRegimeLabels 从 YAML 文件加载市场状态标注
// 文件格式:
//
//	regimes:
//	  - name: trend_up
//	    start: 1609459200000
//	    end: 1617235200000
func LoadRegimeLabels(path string) ([]RegimeLabel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取状态标注文件失败: %w", err)
	}

	var doc struct {
		Regimes []RegimeLabel `yaml:"regimes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("解析状态标注文件失败: %w", err)
	}

	for i, lb := range doc.Regimes {
		if lb.Name == "" {
			return nil, fmt.Errorf("第 %d 个状态缺少名称", i+1)
		}
		if lb.End <= lb.Start {
			return nil, fmt.Errorf("状态 %s 区间非法: [%d, %d)", lb.Name, lb.Start, lb.End)
		}
	}
	return doc.Regimes, nil
}
