package cache

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"spacecombat/internal/locker"
	"spacecombat/internal/model"
	"spacecombat/internal/store"
)

func newTestWorldCache(nowFn TimeProvider) (*WorldCache, store.Store) {
	st := store.NewMemStore()
	locks := locker.NewManager(nil)
	c := NewWorldCache(model.WorldSize{Width: 1000, Height: 1000}, st, locks, nil, nowFn)
	c.config.enableAutoPersistence = false
	return c, st
}

func TestWorldCacheLoadsFromStore(t *testing.T) {
	c, st := newTestWorldCache(func() int64 { return 0 })
	ctx := locker.WithHeld(context.Background())

	obj := model.SpaceObject{ID: uuid.New(), Type: model.Asteroid, X: 5, Y: 5, Speed: 1, Angle: 0}
	id, err := st.InsertSpaceObject(ctx, obj)
	require.NoError(t, err)
	obj.ID = id

	w, err := c.GetWorld(ctx)
	require.NoError(t, err)
	require.Len(t, w.SpaceObjects, 1)
	require.Equal(t, id, w.SpaceObjects[0].ID)
}

func TestWorldCacheAdvancesPositionAndMarksDirty(t *testing.T) {
	nowMs := int64(0)
	c, st := newTestWorldCache(func() int64 { return nowMs / 1000 })
	ctx := locker.WithHeld(context.Background())

	obj := model.SpaceObject{ID: uuid.New(), Type: model.PlayerShip, X: 0, Y: 0, Speed: 10, Angle: 0}
	id, err := st.InsertSpaceObject(ctx, obj)
	require.NoError(t, err)
	obj.ID = id

	_, err = c.GetWorld(ctx)
	require.NoError(t, err)

	nowMs = 2000

	w, err := c.GetWorld(ctx)
	require.NoError(t, err)
	require.Greater(t, w.SpaceObjects[0].X, 0.0)

	require.NoError(t, c.Flush(ctx))
	stored, err := st.GetAllSpaceObjects(ctx)
	require.NoError(t, err)
	require.Greater(t, stored[0].X, 0.0)
}

func TestWorldCacheCollectedSpawnsReplacement(t *testing.T) {
	c, st := newTestWorldCache(func() int64 { return 0 })
	ctx := locker.WithHeld(context.Background())

	obj := model.SpaceObject{ID: uuid.New(), Type: model.Asteroid, X: 5, Y: 5, Speed: 1, Angle: 0}
	id, err := st.InsertSpaceObject(ctx, obj)
	require.NoError(t, err)

	_, err = c.GetWorld(ctx)
	require.NoError(t, err)

	replacement, err := c.Collected(ctx, id)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, replacement.ID)
	require.NotEqual(t, id, replacement.ID)

	w, err := c.GetWorld(ctx)
	require.NoError(t, err)
	require.Len(t, w.SpaceObjects, 1)

	_, err = st.GetAllSpaceObjects(ctx)
	require.NoError(t, err)
}

func TestWorldCacheCollectedNotFound(t *testing.T) {
	c, _ := newTestWorldCache(func() int64 { return 0 })
	ctx := locker.WithHeld(context.Background())

	_, err := c.Collected(ctx, uuid.New())
	require.Error(t, err)
}
