// File: internal/config/humanoid_config.go
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// HumanoidConfig tunes the timing of simulated pointer and keyboard input.
type HumanoidConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Press-to-release duration of a click.
	ClickHoldMinMs int `mapstructure:"click_hold_min_ms" yaml:"click_hold_min_ms"`
	ClickHoldMaxMs int `mapstructure:"click_hold_max_ms" yaml:"click_hold_max_ms"`

	// Pause between reaching a target and pressing it.
	PauseMeanMs   float64 `mapstructure:"pause_mean_ms" yaml:"pause_mean_ms"`
	PauseStdDevMs float64 `mapstructure:"pause_stddev_ms" yaml:"pause_stddev_ms"`

	// Gap between typed characters.
	KeyDelayMeanMs   float64 `mapstructure:"key_delay_mean_ms" yaml:"key_delay_mean_ms"`
	KeyDelayStdDevMs float64 `mapstructure:"key_delay_stddev_ms" yaml:"key_delay_stddev_ms"`

	// Number of intermediate pointer positions on the way to a target.
	MoveSteps int `mapstructure:"move_steps" yaml:"move_steps"`
}

func setHumanoidDefaults(v *viper.Viper) {
	v.SetDefault("browser.humanoid.enabled", true)
	v.SetDefault("browser.humanoid.click_hold_min_ms", 50)
	v.SetDefault("browser.humanoid.click_hold_max_ms", 150)
	v.SetDefault("browser.humanoid.pause_mean_ms", 180.0)
	v.SetDefault("browser.humanoid.pause_stddev_ms", 60.0)
	v.SetDefault("browser.humanoid.key_delay_mean_ms", 70.0)
	v.SetDefault("browser.humanoid.key_delay_stddev_ms", 25.0)
	v.SetDefault("browser.humanoid.move_steps", 12)
}

// Validate checks the humanoid timing parameters.
func (h *HumanoidConfig) Validate() error {
	if !h.Enabled {
		return nil
	}
	if h.ClickHoldMinMs < 0 || h.ClickHoldMinMs > h.ClickHoldMaxMs {
		return fmt.Errorf("click_hold_min_ms must be non-negative and not exceed click_hold_max_ms")
	}
	if h.PauseMeanMs < 0 || h.PauseStdDevMs < 0 || h.KeyDelayMeanMs < 0 || h.KeyDelayStdDevMs < 0 {
		return fmt.Errorf("pause and key delay parameters cannot be negative")
	}
	if h.MoveSteps < 1 {
		return fmt.Errorf("move_steps must be at least 1")
	}
	return nil
}
