package battle

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"spacecombat/internal/cache"
	"spacecombat/internal/locker"
	"spacecombat/internal/model"
	"spacecombat/internal/store"
)

func newTestEngine(nowFn cache.TimeProvider) (*Engine, *cache.UserCache, *cache.BattleCache, *cache.WorldCache, store.Store) {
	st := store.NewMemStore()
	locks := locker.NewManager(nil)
	users := cache.NewUserCache(st, locks, nil, nowFn)
	battles := cache.NewBattleCache(st, locks, nil, nowFn)
	world := cache.NewWorldCache(model.WorldSize{Width: 1000, Height: 1000}, st, locks, nil, nowFn)
	return NewEngine(users, battles, nil), users, battles, world, st
}

func fullHealthUser(username string, hullTech, armorTech, shieldTech int) model.User {
	return model.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: "x",
		TechCounts: map[string]int{
			"ship_hull":     hullTech,
			"kinetic_armor": armorTech,
			"energy_shield": shieldTech,
		},
		HullCurrent:   hullTech * model.DefensePerTechCount,
		ArmorCurrent:  armorTech * model.DefensePerTechCount,
		ShieldCurrent: shieldTech * model.DefensePerTechCount,
		LastUpdated:   1,
	}
}

func TestCalculateDamageLayersShieldThenArmorThenHull(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(func() int64 { return 1 })

	attacker := model.User{}
	defender := model.User{HullCurrent: 500, ArmorCurrent: 500, ShieldCurrent: 500}

	result, err := engine.CalculateDamage("rocket_launcher", 1, attacker, defender, nil)
	require.NoError(t, err)
	spec := model.Weapons["rocket_launcher"]
	require.Equal(t, spec.Damage, result.Total())
	require.Equal(t, spec.Damage, result.ShieldDamage)
	require.Zero(t, result.ArmorDamage)
	require.Zero(t, result.HullDamage)

	defender.ShieldCurrent = 0
	result, err = engine.CalculateDamage("rocket_launcher", 1, attacker, defender, nil)
	require.NoError(t, err)
	require.Zero(t, result.ShieldDamage)
	require.Equal(t, spec.Damage, result.ArmorDamage)
	require.Zero(t, result.HullDamage)
}

func TestCalculateDamageScenarioOneFromSpec(t *testing.T) {
	// Defender {hull:500/500, armor:500/500, shield:500/500}. A
	// single shot dealing 750 damage drains shield fully, spills
	// 250 into armor, and leaves hull untouched.
	engine, _, _, _, _ := newTestEngine(func() int64 { return 1 })

	attacker := model.User{}
	defender := model.User{HullCurrent: 500, ArmorCurrent: 500, ShieldCurrent: 500}

	// 30 gauss_rifle hits at 25 damage apiece total exactly 750.
	result, err := engine.CalculateDamage("gauss_rifle", 30, attacker, defender, nil)
	require.NoError(t, err)

	require.Equal(t, 500, result.ShieldDamage)
	require.Equal(t, 250, result.ArmorDamage)
	require.Equal(t, 0, result.HullDamage)
}

func TestNextShotPrefersAttackerOnSimultaneousReady(t *testing.T) {
	engine, users, battles, world, st := newTestEngine(func() int64 { return 0 })
	ctx := locker.WithHeld(context.Background())

	attacker := fullHealthUser("attacker", 5, 5, 5)
	attacker.TechCounts["rocket_launcher"] = 1
	require.NoError(t, st.InsertUser(ctx, attacker))
	require.NoError(t, users.SetUser(ctx, attacker))

	attackee := fullHealthUser("attackee", 5, 5, 5)
	attackee.TechCounts["pulse_laser"] = 1
	require.NoError(t, st.InsertUser(ctx, attackee))
	require.NoError(t, users.SetUser(ctx, attackee))

	b, err := battles.Create(ctx, attacker.ID, attackee.ID, users, world)
	require.NoError(t, err)

	side, weapon, wait, ok := engine.NextShot(&b, 0)
	require.True(t, ok)
	require.Equal(t, model.Attacker, side)
	require.Equal(t, "rocket_launcher", weapon)
	require.Zero(t, wait)
}

func TestExecuteTurnCooldownScenarioFromSpec(t *testing.T) {
	// Attacker weapon cooldown=10 (rocket_launcher), count=1.
	// Defender has no weapons. After a tick at t=0 the attacker's
	// cooldown table should read `now + cooldown`. No new shot at
	// an intermediate time; a shot fires once that time elapses.
	engine, users, battles, world, st := newTestEngine(func() int64 { return 0 })
	ctx := locker.WithHeld(context.Background())

	attacker := fullHealthUser("attacker", 5, 5, 5)
	attacker.TechCounts["rocket_launcher"] = 1
	require.NoError(t, st.InsertUser(ctx, attacker))
	require.NoError(t, users.SetUser(ctx, attacker))

	attackee := fullHealthUser("attackee", 5, 5, 5)
	require.NoError(t, st.InsertUser(ctx, attackee))
	require.NoError(t, users.SetUser(ctx, attackee))

	b, err := battles.Create(ctx, attacker.ID, attackee.ID, users, world)
	require.NoError(t, err)

	cooldown := model.Weapons["rocket_launcher"].Cooldown

	outcome, err := engine.ExecuteTurn(ctx, &b, 0)
	require.NoError(t, err)
	require.NotNil(t, outcome)

	refreshed, err := battles.LoadIfNeeded(ctx, b.ID)
	require.NoError(t, err)
	next, ok := refreshed.AttackerWeaponCooldowns.Get("rocket_launcher")
	require.True(t, ok)
	require.Equal(t, int64(cooldown), next)

	midway := int64(cooldown) - 1
	if midway < 0 {
		midway = 0
	}
	outcome, err = engine.ExecuteTurn(ctx, &refreshed, midway)
	require.NoError(t, err)
	require.Nil(t, outcome)

	outcome, err = engine.ExecuteTurn(ctx, &refreshed, int64(cooldown))
	require.NoError(t, err)
	require.NotNil(t, outcome)
}

func TestIsOverAndOutcomeAttackerLosesOnSimultaneousZero(t *testing.T) {
	engine, users, battles, world, st := newTestEngine(func() int64 { return 0 })
	ctx := locker.WithHeld(context.Background())

	attacker := fullHealthUser("attacker", 1, 1, 1)
	require.NoError(t, st.InsertUser(ctx, attacker))
	require.NoError(t, users.SetUser(ctx, attacker))

	attackee := fullHealthUser("attackee", 1, 1, 1)
	require.NoError(t, st.InsertUser(ctx, attackee))
	require.NoError(t, users.SetUser(ctx, attackee))

	b, err := battles.Create(ctx, attacker.ID, attackee.ID, users, world)
	require.NoError(t, err)

	attacker.HullCurrent = 0
	attacker.ArmorCurrent = 0
	attacker.ShieldCurrent = 0
	require.NoError(t, users.UpdateUser(ctx, attacker))
	attackee.HullCurrent = 0
	attackee.ArmorCurrent = 0
	attackee.ShieldCurrent = 0
	require.NoError(t, users.UpdateUser(ctx, attackee))

	over, err := engine.IsOver(ctx, &b)
	require.NoError(t, err)
	require.True(t, over)

	winnerID, loserID, err := engine.Outcome(ctx, &b)
	require.NoError(t, err)
	require.Equal(t, attackee.ID, winnerID)
	require.Equal(t, attacker.ID, loserID)
}
