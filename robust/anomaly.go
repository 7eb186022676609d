package robust

import (
	"fmt"

	"edgeaudit/backtest"
)

// 单一年份或单一市场状态贡献的正盈利份额超过此值时，聚合指标视为被异常支配
const dominanceShare = 0.8

// AnomalyWarning 统计异常标注
// 异常不改变分级，但必须随结论一起呈现，不允许被聚合平均稀释掉
type AnomalyWarning struct {
	Kind  string  `json:"kind"`  // yearly_dominance / regime_dominance
	Name  string  `json:"name"`  // 支配聚合结果的年份或状态名
	Share float64 `json:"share"` // 占全部正盈利的份额
}

func (w AnomalyWarning) String() string {
	switch w.Kind {
	case "yearly_dominance":
		return fmt.Sprintf("%s 年贡献了 %.0f%% 的正盈利，总体期望由单一年份支配", w.Name, w.Share*100)
	case "regime_dominance":
		return fmt.Sprintf("状态 %s 贡献了 %.0f%% 的正盈利，总体期望由单一状态支配", w.Name, w.Share*100)
	}
	return fmt.Sprintf("%s: %s (%.0f%%)", w.Kind, w.Name, w.Share*100)
}

// detectYearlyDominance 检查年度切片中是否有单一年份支配全部正盈利
// 仅一个年份有数据时不可能判定集中，返回空
func detectYearlyDominance(m backtest.Metrics) []AnomalyWarning {
	if len(m.Yearly) < 2 {
		return nil
	}
	var totalPositive, top float64
	var topYear int
	for _, ys := range m.Yearly {
		if ys.NetPnL <= 0 {
			continue
		}
		totalPositive += ys.NetPnL
		if ys.NetPnL > top {
			top = ys.NetPnL
			topYear = ys.Year
		}
	}
	if totalPositive <= 0 {
		return nil
	}
	if share := top / totalPositive; share > dominanceShare {
		return []AnomalyWarning{{
			Kind:  "yearly_dominance",
			Name:  fmt.Sprintf("%d", topYear),
			Share: share,
		}}
	}
	return nil
}
