package cache

import (
	"fmt"

	"spacecombat/internal/model"
)

// ErrUserAlreadyInBattle :
// Returned by `BattleCache.Create` when either participant
// already has an active battle.
var ErrUserAlreadyInBattle = fmt.Errorf("participant already has an active battle: %w", model.ErrConflict)

// ErrBattleAlreadyEnded :
// Returned by `BattleCache.End` when the battle's end time is
// already set.
var ErrBattleAlreadyEnded = fmt.Errorf("battle already ended: %w", model.ErrConflict)

// ErrEndStatsAlreadySet :
// Returned by `BattleCache.UpdateStats` when asked to overwrite
// an end-stats snapshot that was already written, enforcing the
// write-once invariant.
var ErrEndStatsAlreadySet = fmt.Errorf("end stats already set: %w", model.ErrConflict)
