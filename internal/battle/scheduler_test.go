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

func newTestScheduler(nowFn cache.TimeProvider) (*Scheduler, *cache.UserCache, *cache.BattleCache, *cache.MessageCache, *cache.WorldCache, store.Store) {
	st := store.NewMemStore()
	locks := locker.NewManager(nil)
	users := cache.NewUserCache(st, locks, nil, nowFn)
	battles := cache.NewBattleCache(st, locks, nil, nowFn)
	messages := cache.NewMessageCache(st, locks, nil, nowFn)
	world := cache.NewWorldCache(model.WorldSize{Width: 3000, Height: 3000}, st, locks, nil, nowFn)
	engine := NewEngine(users, battles, nil)
	sched := NewScheduler(engine, battles, users, messages, world, locks, nil, nowFn)
	return sched, users, battles, messages, world, st
}

func seedShip(t *testing.T, ctx context.Context, st store.Store, username string, x, y float64) model.SpaceObject {
	obj := model.SpaceObject{Type: model.PlayerShip, Username: username, X: x, Y: y, Speed: 0}
	id, err := st.InsertSpaceObject(ctx, obj)
	require.NoError(t, err)
	obj.ID = id
	return obj
}

func TestSchedulerTickIsIdempotentAgainstEmptyActiveSet(t *testing.T) {
	sched, _, _, _, _, _ := newTestScheduler(func() int64 { return 0 })
	ctx := locker.WithHeld(context.Background())

	require.NoError(t, sched.Tick(ctx))
	require.NoError(t, sched.Tick(ctx))
}

func TestSchedulerDrivesBattleToResolutionAndTeleportsLoser(t *testing.T) {
	now := int64(0)
	sched, users, battles, messages, world, st := newTestScheduler(func() int64 { return now })
	ctx := locker.WithHeld(context.Background())

	attacker := fullHealthUser("winner", 1, 1, 50)
	attacker.TechCounts["photon_torpedo"] = 5
	require.NoError(t, st.InsertUser(ctx, attacker))
	require.NoError(t, users.SetUser(ctx, attacker))

	attackee := fullHealthUser("loser", 1, 1, 1)
	require.NoError(t, st.InsertUser(ctx, attackee))
	require.NoError(t, users.SetUser(ctx, attackee))

	winnerShip := seedShip(t, ctx, st, "winner", 0, 0)
	loserShip := seedShip(t, ctx, st, "loser", 10, 10)
	_, err := world.GetWorld(ctx)
	require.NoError(t, err)

	b, err := battles.Create(ctx, attacker.ID, attackee.ID, users, world)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		require.NoError(t, sched.Tick(ctx))
		active, err := battles.GetActive(ctx)
		require.NoError(t, err)
		if len(active) == 0 {
			break
		}
		now += 100
	}

	active, err := battles.GetActive(ctx)
	require.NoError(t, err)
	require.Empty(t, active)

	_, err = battles.GetOngoingForUser(ctx, attacker.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
	_, err = battles.GetOngoingForUser(ctx, attackee.ID)
	require.ErrorIs(t, err, model.ErrNotFound)

	gotAttacker, err := users.GetByID(ctx, attacker.ID)
	require.NoError(t, err)
	require.False(t, gotAttacker.InBattle)

	gotAttackee, err := users.GetByID(ctx, attackee.ID)
	require.NoError(t, err)
	require.False(t, gotAttackee.InBattle)
	require.Zero(t, gotAttackee.HullCurrent)

	ended, err := battles.LoadIfNeeded(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, ended.BattleEndTime)
	require.NotNil(t, ended.WinnerID)
	require.Equal(t, attacker.ID, *ended.WinnerID)

	relocated, err := world.GetObjectByUsername(ctx, "loser")
	require.NoError(t, err)
	require.Zero(t, relocated.Speed)
	require.NotEqual(t, loserShip.ID, uuid.Nil)
	dist := model.ToroidalDistance(relocated.X, relocated.Y, winnerShip.X, winnerShip.Y, 3000, 3000)
	require.GreaterOrEqual(t, dist, 1000.0)

	unread, err := messages.GetUnreadCount(ctx, attacker.ID)
	require.NoError(t, err)
	require.Greater(t, unread, 0)
}

func TestSchedulerTickIsANoOpForAnUnarmedStandoff(t *testing.T) {
	// Neither combatant owns a weapon: every tick should resolve
	// zero shots and leave the battle active rather than erroring.
	sched, users, battles, _, world, st := newTestScheduler(func() int64 { return 0 })
	ctx := locker.WithHeld(context.Background())

	attacker := fullHealthUser("a1", 1, 1, 1)
	require.NoError(t, st.InsertUser(ctx, attacker))
	require.NoError(t, users.SetUser(ctx, attacker))
	attackee := fullHealthUser("a2", 1, 1, 1)
	require.NoError(t, st.InsertUser(ctx, attackee))
	require.NoError(t, users.SetUser(ctx, attackee))

	_, err := battles.Create(ctx, attacker.ID, attackee.ID, users, world)
	require.NoError(t, err)

	require.NoError(t, sched.Tick(ctx))

	active, err := battles.GetActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
}
