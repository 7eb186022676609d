package robust

import (
	"fmt"
)

// WalkForwardConfig 时间外窗口扫描参数
// Windows 与 WindowDays 二选一：按等量K线切窗，或按日历天数切窗
type WalkForwardConfig struct {
	Windows    int `yaml:"windows" json:"windows"`
	WindowDays int `yaml:"window_days" json:"window_days"`
	MinTrades  int `yaml:"min_trades" json:"min_trades"` // 窗口内低于此交易数则排除
}

// MonteCarloConfig 蒙特卡洛重采样参数
type MonteCarloConfig struct {
	Trials    int     `yaml:"trials" json:"trials"`
	BlockSize int     `yaml:"block_size" json:"block_size"` // 0 = 独立重采样，>0 = 块自助法
	BaseSeed  int64   `yaml:"base_seed" json:"base_seed"`
	CILevel   float64 `yaml:"ci_level" json:"ci_level"` // 期望置信区间水平，如 0.95
}

// SensitivityConfig 执行参数网格扫描
// Grid 的每个键是可覆盖的执行参数名，值是该参数的取值列表
type SensitivityConfig struct {
	Grid      map[string][]float64 `yaml:"grid" json:"grid"`
	MinTrades int                  `yaml:"min_trades" json:"min_trades"`
	Workers   int                  `yaml:"workers" json:"workers"`
}

// RegimeConfig 市场状态分区参数
type RegimeConfig struct {
	MinTrades int `yaml:"min_trades" json:"min_trades"`
}

// Thresholds 结论分级阈值
type Thresholds struct {
	MinWalkForwardSurvival float64 `yaml:"min_walk_forward_survival" json:"min_walk_forward_survival"`
	MinGridSurvival        float64 `yaml:"min_grid_survival" json:"min_grid_survival"`
	MaxRuin                float64 `yaml:"max_ruin" json:"max_ruin"`
	MaxRegimeConcentration float64 `yaml:"max_regime_concentration" json:"max_regime_concentration"`
	MicroEdgeFloorBps      float64 `yaml:"micro_edge_floor_bps" json:"micro_edge_floor_bps"`
}

// Config 稳健性验证总配置
type Config struct {
	Modes       []Mode            `yaml:"modes" json:"modes"`
	WalkForward WalkForwardConfig `yaml:"walk_forward" json:"walk_forward"`
	MonteCarlo  MonteCarloConfig  `yaml:"monte_carlo" json:"monte_carlo"`
	Sensitivity SensitivityConfig `yaml:"sensitivity" json:"sensitivity"`
	Regime      RegimeConfig      `yaml:"regime" json:"regime"`
	Thresholds  Thresholds        `yaml:"thresholds" json:"thresholds"`
}

// DefaultConfig 默认验证配置
func DefaultConfig() Config {
	return Config{
		Modes: []Mode{ModeWalkForward, ModeMonteCarlo, ModeSensitivity},
		WalkForward: WalkForwardConfig{
			Windows:   10,
			MinTrades: 5,
		},
		MonteCarlo: MonteCarloConfig{
			Trials:   1000,
			BaseSeed: 42,
			CILevel:  0.95,
		},
		Sensitivity: SensitivityConfig{
			Grid: map[string][]float64{
				"spread_pips":   {0.5, 1.0, 2.0},
				"slippage_pips": {0.25, 0.5, 1.0},
				"latency_ms":    {100, 250, 500, 1000},
			},
			MinTrades: 50,
			Workers:   4,
		},
		Regime: RegimeConfig{MinTrades: 10},
		Thresholds: Thresholds{
			MinWalkForwardSurvival: 0.6,
			MinGridSurvival:        0.7,
			MaxRuin:                0.10,
			MaxRegimeConcentration: 0.6,
			MicroEdgeFloorBps:      1.0,
		},
	}
}

// Validate 校验验证配置
func (c *Config) Validate() error {
	if len(c.Modes) == 0 {
		return fmt.Errorf("至少启用一个验证模式")
	}
	for _, m := range c.Modes {
		switch m {
		case ModeWalkForward:
			if c.WalkForward.Windows <= 0 && c.WalkForward.WindowDays <= 0 {
				return fmt.Errorf("walk_forward 需要 windows 或 window_days")
			}
			if c.WalkForward.Windows > 0 && c.WalkForward.WindowDays > 0 {
				return fmt.Errorf("walk_forward 的 windows 与 window_days 互斥")
			}
		case ModeMonteCarlo:
			if c.MonteCarlo.Trials <= 0 {
				return fmt.Errorf("monte_carlo.trials 必须为正: %d", c.MonteCarlo.Trials)
			}
			if c.MonteCarlo.BlockSize < 0 {
				return fmt.Errorf("monte_carlo.block_size 不能为负: %d", c.MonteCarlo.BlockSize)
			}
			if c.MonteCarlo.CILevel <= 0 || c.MonteCarlo.CILevel >= 1 {
				return fmt.Errorf("monte_carlo.ci_level 必须在 (0,1) 内: %f", c.MonteCarlo.CILevel)
			}
		case ModeSensitivity:
			if len(c.Sensitivity.Grid) == 0 {
				return fmt.Errorf("sensitivity.grid 不能为空")
			}
			for name, values := range c.Sensitivity.Grid {
				if !isOverridableParam(name) {
					return fmt.Errorf("sensitivity.grid 包含未知参数: %s", name)
				}
				if len(values) == 0 {
					return fmt.Errorf("sensitivity.grid[%s] 取值列表为空", name)
				}
			}
			if c.Sensitivity.Workers < 0 {
				return fmt.Errorf("sensitivity.workers 不能为负: %d", c.Sensitivity.Workers)
			}
		case ModeRegime:
			// 状态标签在运行时提供，此处无静态参数需要校验
		default:
			return fmt.Errorf("未知验证模式: %s", m)
		}
	}
	return nil
}

// Enabled 指定模式是否启用
func (c *Config) Enabled(m Mode) bool {
	for _, mode := range c.Modes {
		if mode == m {
			return true
		}
	}
	return false
}
