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

func newTestUserCache() (*UserCache, store.Store) {
	st := store.NewMemStore()
	locks := locker.NewManager(nil)
	c := NewUserCache(st, locks, nil, func() int64 { return 1000 })
	c.config.enableAutoPersistence = false
	return c, st
}

func newCacheUser(username string) model.User {
	return model.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: "hash",
		Iron:         100,
		HullCurrent:  10,
		ArmorCurrent: 10,
		LastUpdated:  1000,
	}
}

func TestUserCacheLoadsFromStoreOnMiss(t *testing.T) {
	c, st := newTestUserCache()
	ctx := locker.WithHeld(context.Background())

	u := newCacheUser("alice")
	require.NoError(t, st.InsertUser(ctx, u))

	got, err := c.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Username, got.Username)
}

func TestUserCacheGetByUsername(t *testing.T) {
	c, st := newTestUserCache()
	ctx := locker.WithHeld(context.Background())

	u := newCacheUser("bob")
	require.NoError(t, st.InsertUser(ctx, u))

	got, err := c.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
}

func TestUserCacheUpdateFlushesSynchronouslyWhenAutoPersistenceDisabled(t *testing.T) {
	c, st := newTestUserCache()
	ctx := locker.WithHeld(context.Background())

	u := newCacheUser("carol")
	require.NoError(t, st.InsertUser(ctx, u))

	u.Iron = 500
	require.NoError(t, c.UpdateUser(ctx, u))

	stored, err := st.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 500, stored.Iron)
}

func TestUserCacheFlushDirtyIsIdempotent(t *testing.T) {
	c, st := newTestUserCache()
	c.config.enableAutoPersistence = true
	ctx := locker.WithHeld(context.Background())

	u := newCacheUser("dave")
	require.NoError(t, st.InsertUser(ctx, u))

	u.Iron = 42
	require.NoError(t, c.UpdateUser(ctx, u))

	require.NoError(t, c.FlushDirty(ctx))
	require.NoError(t, c.FlushDirty(ctx))

	stored, err := st.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 42, stored.Iron)
}
