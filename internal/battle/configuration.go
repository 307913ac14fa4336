package battle

import (
	"time"

	"github.com/spf13/viper"
)

// configuration :
// Scheduler tuning knobs, read with the same
// `configuration`/`parseConfiguration()` idiom used across the
// rest of the code base.
type configuration struct {
	tickInterval                    time.Duration
	worldWidth                      float64
	worldHeight                     float64
	teleportMinDistance             float64
	battleMaxIterationsForResolution int
}

// parseConfiguration :
// Reads the scheduler's options, falling back to the defaults
// named in the data model's configuration section.
// `teleportMinDistance` is always derived from `worldWidth / 3`,
// never read directly, so the two can never drift apart.
func parseConfiguration() configuration {
	config := configuration{
		tickInterval:                     time.Second,
		worldWidth:                       5000,
		worldHeight:                      5000,
		battleMaxIterationsForResolution: 100,
	}

	if viper.IsSet("Scheduler.TickIntervalMs") {
		config.tickInterval = time.Duration(viper.GetInt("Scheduler.TickIntervalMs")) * time.Millisecond
	}
	if viper.IsSet("World.Width") {
		config.worldWidth = viper.GetFloat64("World.Width")
	}
	if viper.IsSet("World.Height") {
		config.worldHeight = viper.GetFloat64("World.Height")
	}
	if viper.IsSet("Scheduler.BattleMaxIterationsForResolution") {
		config.battleMaxIterationsForResolution = viper.GetInt("Scheduler.BattleMaxIterationsForResolution")
	}

	config.teleportMinDistance = config.worldWidth / 3

	return config
}
