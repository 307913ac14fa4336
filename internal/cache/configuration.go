package cache

import (
	"time"

	"github.com/spf13/viper"
)

// configuration :
// Defines the persistence knobs shared by every write-back
// cache in this package, grounded on the `configuration`/
// `parseConfiguration()` idiom used throughout the teacher
// (`pkg/db`, `internal/locker`, `pkg/background`).
//
// The `persistenceInterval` is how often the background flush
// timer runs.
//
// The `enableAutoPersistence` disables the background timer
// entirely when `false`. `UserCache` and `MessageCache` then
// flush every mutation synchronously, and `BattleCache.Create`
// flushes the new battle synchronously (`BattleCache.End` always
// does). The other `BattleCache` mutations (`AddEvent`,
// `SetWeaponCooldown`, `UpdateTotalDamage`, `UpdateStats`) and
// the `WorldCache` mutations (`GetWorld`'s physics step,
// `UpdateWorld`, `Teleport`) only mark state dirty; it reaches
// the store on an explicit `FlushDirty`/`Flush` or on `Stop`.
// `WorldCache.Collected` writes its row delete and insert
// straight to the store either way.
type configuration struct {
	persistenceInterval   time.Duration
	enableAutoPersistence bool
}

// parseConfiguration :
// Reads the cache persistence options from the runtime
// configuration, falling back to the defaults named in the data
// model's configuration section.
func parseConfiguration() configuration {
	config := configuration{
		persistenceInterval:   30 * time.Second,
		enableAutoPersistence: true,
	}

	if viper.IsSet("Cache.PersistenceIntervalMs") {
		config.persistenceInterval = time.Duration(viper.GetInt("Cache.PersistenceIntervalMs")) * time.Millisecond
	}
	if viper.IsSet("Cache.EnableAutoPersistence") {
		config.enableAutoPersistence = viper.GetBool("Cache.EnableAutoPersistence")
	}

	return config
}
