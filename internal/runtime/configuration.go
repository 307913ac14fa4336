package runtime

import (
	"time"

	"github.com/spf13/viper"

	"spacecombat/internal/model"
)

// configuration :
// World dimensions and the server-level background refresh
// rate, read with the same `configuration`/`parseConfiguration()`
// idiom used throughout the rest of the code base.
type configuration struct {
	worldSize        model.WorldSize
	backgroundUpdate time.Duration
}

// parseConfiguration :
// Reads the runtime's options, falling back to the defaults
// named in the data model's configuration section.
func parseConfiguration() configuration {
	config := configuration{
		worldSize:        model.WorldSize{Width: 5000, Height: 5000},
		backgroundUpdate: 60 * time.Minute,
	}

	if viper.IsSet("World.Width") {
		config.worldSize.Width = viper.GetFloat64("World.Width")
	}
	if viper.IsSet("World.Height") {
		config.worldSize.Height = viper.GetFloat64("World.Height")
	}
	if viper.IsSet("Server.BackgroundUpdate") {
		min := viper.GetInt("Server.BackgroundUpdate")
		config.backgroundUpdate = time.Duration(min) * time.Minute
	}

	return config
}
