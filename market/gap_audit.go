package market

// GapStats 入场缺口审计统计
// 缺口 = Open[t+1] - Close[t]：对 long 正缺口是成本，对 short 负缺口是成本
type GapStats struct {
	Signals        int     `json:"signals"`          // 参与统计的信号数
	MeanGapPips    float64 `json:"mean_gap_pips"`    // 平均不利缺口（pip，正为成本）
	WorstGapPips   float64 `json:"worst_gap_pips"`   // 最差不利缺口（pip）
	AdverseRate    float64 `json:"adverse_rate"`     // 缺口方向不利的比例
	MeanAbsGapPips float64 `json:"mean_abs_gap_pips"`
}

// AuditEntryGaps 审计信号触发后的入场缺口成本
// 触发发生在 close[t]，入场在 open[t+1]，中间的缺口是真实成本而非近似
func AuditEntryGaps(candles []*Candle, signals []*Signal, pip float64) GapStats {
	if pip <= 0 || len(candles) < 2 {
		return GapStats{}
	}

	var stats GapStats
	var sumAdverse, sumAbs float64
	adverseCount := 0

	for _, s := range signals {
		idx := FindTriggerIndex(candles, s.TriggerTime)
		if idx >= len(candles)-1 || candles[idx].Timestamp != s.TriggerTime {
			continue
		}

		gap := candles[idx+1].Open - candles[idx].Close
		// 换算为对该方向的不利成本
		adverse := gap / pip * float64(s.Direction)

		stats.Signals++
		sumAdverse += adverse
		if adverse > 0 {
			adverseCount++
			if adverse > stats.WorstGapPips {
				stats.WorstGapPips = adverse
			}
		}
		if adverse < 0 {
			sumAbs -= adverse
		} else {
			sumAbs += adverse
		}
	}

	if stats.Signals > 0 {
		stats.MeanGapPips = sumAdverse / float64(stats.Signals)
		stats.MeanAbsGapPips = sumAbs / float64(stats.Signals)
		stats.AdverseRate = float64(adverseCount) / float64(stats.Signals)
	}
	return stats
}
