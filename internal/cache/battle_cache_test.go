package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"spacecombat/internal/locker"
	"spacecombat/internal/model"
	"spacecombat/internal/store"
)

func newTestBattleCache(nowFn TimeProvider) (*BattleCache, *UserCache, *WorldCache, store.Store) {
	st := store.NewMemStore()
	locks := locker.NewManager(nil)
	bc := NewBattleCache(st, locks, nil, nowFn)
	bc.config.enableAutoPersistence = false
	uc := NewUserCache(st, locks, nil, nowFn)
	uc.config.enableAutoPersistence = false
	wc := NewWorldCache(model.WorldSize{Width: 1000, Height: 1000}, st, locks, nil, nowFn)
	return bc, uc, wc, st
}

// seedShipFor inserts a `PlayerShip` owned by `u` directly in the
// store and points `u.ShipID` at it, the shape the World Cache's
// load join expects to resolve `Username`/`OwnerInBattle`.
func seedShipFor(t *testing.T, ctx context.Context, st store.Store, uc *UserCache, u model.User) model.User {
	shipID, err := st.InsertSpaceObject(ctx, model.SpaceObject{Type: model.PlayerShip, Speed: 3})
	require.NoError(t, err)
	u.ShipID = &shipID
	require.NoError(t, st.UpdateUser(ctx, u))
	require.NoError(t, uc.SetUser(ctx, u))
	return u
}

func seedCombatant(t *testing.T, ctx context.Context, uc *UserCache, st store.Store, username string) model.User {
	u := newCacheUser(username)
	require.NoError(t, st.InsertUser(ctx, u))
	require.NoError(t, uc.SetUser(ctx, u))
	return u
}

func TestBattleCacheCreateSnapshotsStatsAndMarksUsersInBattle(t *testing.T) {
	bc, uc, wc, st := newTestBattleCache(func() int64 { return 500 })
	ctx := locker.WithHeld(context.Background())

	attacker := seedCombatant(t, ctx, uc, st, "attacker")
	attackee := seedCombatant(t, ctx, uc, st, "attackee")
	attacker = seedShipFor(t, ctx, st, uc, attacker)

	battle, err := bc.Create(ctx, attacker.ID, attackee.ID, uc, wc)
	require.NoError(t, err)
	require.True(t, battle.IsActive())
	require.Equal(t, int64(500), battle.BattleStartTime)
	require.Equal(t, attacker.HullCurrent, battle.AttackerStartStats.Hull.Current)
	require.Equal(t, attackee.ArmorCurrent, battle.AttackeeStartStats.Armor.Current)

	gotAttacker, err := uc.GetByID(ctx, attacker.ID)
	require.NoError(t, err)
	require.True(t, gotAttacker.InBattle)
	require.NotNil(t, gotAttacker.CurrentBattleID)
	require.Equal(t, battle.ID, *gotAttacker.CurrentBattleID)

	ship, err := wc.GetObjectByUsername(ctx, "attacker")
	require.NoError(t, err)
	require.True(t, ship.OwnerInBattle)
}

func TestBattleCacheCreateRejectsWhenAlreadyInBattle(t *testing.T) {
	bc, uc, wc, st := newTestBattleCache(func() int64 { return 1 })
	ctx := locker.WithHeld(context.Background())

	attacker := seedCombatant(t, ctx, uc, st, "a")
	attackee := seedCombatant(t, ctx, uc, st, "b")
	bystander := seedCombatant(t, ctx, uc, st, "c")

	_, err := bc.Create(ctx, attacker.ID, attackee.ID, uc, wc)
	require.NoError(t, err)

	_, err = bc.Create(ctx, attacker.ID, bystander.ID, uc, wc)
	require.ErrorIs(t, err, ErrUserAlreadyInBattle)
}

func TestBattleCacheEndClearsInBattleAndIsWriteOnce(t *testing.T) {
	bc, uc, wc, st := newTestBattleCache(func() int64 { return 1 })
	ctx := locker.WithHeld(context.Background())

	attacker := seedCombatant(t, ctx, uc, st, "x")
	attackee := seedCombatant(t, ctx, uc, st, "y")
	attacker = seedShipFor(t, ctx, st, uc, attacker)

	battle, err := bc.Create(ctx, attacker.ID, attackee.ID, uc, wc)
	require.NoError(t, err)

	ship, err := wc.GetObjectByUsername(ctx, "x")
	require.NoError(t, err)
	require.True(t, ship.OwnerInBattle)

	require.NoError(t, bc.End(ctx, battle.ID, attacker.ID, attackee.ID, uc, wc))

	gotAttacker, err := uc.GetByID(ctx, attacker.ID)
	require.NoError(t, err)
	require.False(t, gotAttacker.InBattle)
	require.Nil(t, gotAttacker.CurrentBattleID)

	ship, err = wc.GetObjectByUsername(ctx, "x")
	require.NoError(t, err)
	require.False(t, ship.OwnerInBattle)

	_, err = bc.GetOngoingForUser(ctx, attacker.ID)
	require.ErrorIs(t, err, model.ErrNotFound)

	err = bc.End(ctx, battle.ID, attacker.ID, attackee.ID, uc, wc)
	require.ErrorIs(t, err, ErrBattleAlreadyEnded)
}

func TestBattleCacheUpdateStatsIsWriteOnce(t *testing.T) {
	bc, uc, wc, st := newTestBattleCache(func() int64 { return 1 })
	ctx := locker.WithHeld(context.Background())

	attacker := seedCombatant(t, ctx, uc, st, "m")
	attackee := seedCombatant(t, ctx, uc, st, "n")

	battle, err := bc.Create(ctx, attacker.ID, attackee.ID, uc, wc)
	require.NoError(t, err)

	stats := model.BattleStats{}
	require.NoError(t, bc.UpdateStats(ctx, battle.ID, stats, stats))
	require.ErrorIs(t, bc.UpdateStats(ctx, battle.ID, stats, stats), ErrEndStatsAlreadySet)
}

func TestBattleCacheSetWeaponCooldownAndDamage(t *testing.T) {
	bc, uc, wc, st := newTestBattleCache(func() int64 { return 1 })
	ctx := locker.WithHeld(context.Background())

	attacker := seedCombatant(t, ctx, uc, st, "p")
	attackee := seedCombatant(t, ctx, uc, st, "q")

	battle, err := bc.Create(ctx, attacker.ID, attackee.ID, uc, wc)
	require.NoError(t, err)

	require.NoError(t, bc.SetWeaponCooldown(ctx, battle.ID, model.Attacker, "laser", 42))
	require.NoError(t, bc.UpdateTotalDamage(ctx, battle.ID, model.Attacker, 15))

	active, err := bc.GetActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, 15, active[0].AttackerTotalDamage)

	next, ok := active[0].AttackerWeaponCooldowns.Get("laser")
	require.True(t, ok)
	require.Equal(t, int64(42), next)
}
