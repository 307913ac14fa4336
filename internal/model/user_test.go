package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelThresholds(t *testing.T) {
	assert.Equal(t, 1, Level(999))
	assert.Equal(t, 2, Level(1000))
	assert.Equal(t, 3, Level(4000))
}

func TestAddXPLevelUp(t *testing.T) {
	u := User{XP: 500}

	change := u.AddXP(1500)

	assert.Equal(t, 1, change.OldLevel)
	assert.Equal(t, 2, change.NewLevel)
	assert.Equal(t, 2000, u.XP)
}

func TestDefenseMaxIsPureFunctionOfTechCounts(t *testing.T) {
	u := User{
		TechCounts: map[string]int{
			"ship_hull":     5,
			"kinetic_armor": 3,
			"energy_shield": 1,
		},
	}

	assert.Equal(t, 500, u.HullMax())
	assert.Equal(t, 300, u.ArmorMax())
	assert.Equal(t, 100, u.ShieldMax())
}

func TestUpdateStatsAccruesIronOverElapsedTime(t *testing.T) {
	u := User{LastUpdated: 100}

	u.UpdateStats(110)

	assert.Equal(t, 10, u.Iron)
	assert.Equal(t, int64(110), u.LastUpdated)
}

func TestUpdateStatsDoesNotRegenWhileInBattle(t *testing.T) {
	u := User{
		LastUpdated:      100,
		DefenseLastRegen: 100,
		InBattle:         true,
		TechCounts:       map[string]int{"ship_hull": 5},
		HullCurrent:      0,
	}

	u.UpdateStats(200)

	assert.Equal(t, 0, u.HullCurrent)
}

func TestUpdateStatsRegeneratesDefensesWhenIdle(t *testing.T) {
	u := User{
		LastUpdated:      0,
		DefenseLastRegen: 0,
		TechCounts:       map[string]int{"ship_hull": 5},
		HullCurrent:      0,
	}
	u.UpdateStats(1)

	u.UpdateStats(101)

	assert.Greater(t, u.HullCurrent, 0)
	assert.LessOrEqual(t, u.HullCurrent, u.HullMax())
}
