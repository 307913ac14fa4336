package cache

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"spacecombat/internal/locker"
	"spacecombat/internal/store"
)

func newTestMessageCache(nowFn TimeProvider) *MessageCache {
	st := store.NewMemStore()
	locks := locker.NewManager(nil)
	c := NewMessageCache(st, locks, nil, nowFn)
	c.config.enableAutoPersistence = false
	return c
}

func TestMessageCacheCreateOrdersByCreationEvenWithinTheSameSecond(t *testing.T) {
	c := newTestMessageCache(func() int64 { return 100 })
	ctx := locker.WithHeld(context.Background())

	recipient := uuid.New()

	first, err := c.CreateMessage(ctx, recipient, "P:first")
	require.NoError(t, err)
	second, err := c.CreateMessage(ctx, recipient, "P:second")
	require.NoError(t, err)
	third, err := c.CreateMessage(ctx, recipient, "P:third")
	require.NoError(t, err)

	require.Less(t, first.CreatedAt, second.CreatedAt)
	require.Less(t, second.CreatedAt, third.CreatedAt)

	all, err := c.GetAllMessages(ctx, recipient, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, third.ID, all[0].ID)
	require.Equal(t, second.ID, all[1].ID)
	require.Equal(t, first.ID, all[2].ID)
}

func TestMessageCacheUnreadCountAndMarkRead(t *testing.T) {
	c := newTestMessageCache(func() int64 { return 1 })
	ctx := locker.WithHeld(context.Background())

	recipient := uuid.New()
	m1, err := c.CreateMessage(ctx, recipient, "A:one")
	require.NoError(t, err)
	_, err = c.CreateMessage(ctx, recipient, "A:two")
	require.NoError(t, err)

	count, err := c.GetUnreadCount(ctx, recipient)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.NoError(t, c.MarkRead(ctx, m1.ID, true))

	count, err = c.GetUnreadCount(ctx, recipient)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestMessageCacheMarkAllRead(t *testing.T) {
	c := newTestMessageCache(func() int64 { return 1 })
	ctx := locker.WithHeld(context.Background())

	recipient := uuid.New()
	for i := 0; i < 3; i++ {
		_, err := c.CreateMessage(ctx, recipient, "N:x")
		require.NoError(t, err)
	}

	require.NoError(t, c.MarkAllRead(ctx, recipient))

	count, err := c.GetUnreadCount(ctx, recipient)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestMessageCacheDeleteOldRead(t *testing.T) {
	c := newTestMessageCache(func() int64 { return 1 })
	ctx := locker.WithHeld(context.Background())

	recipient := uuid.New()
	m, err := c.CreateMessage(ctx, recipient, "A:old")
	require.NoError(t, err)
	require.NoError(t, c.MarkRead(ctx, m.ID, true))

	removed, err := c.DeleteOldRead(ctx, 1000)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	all, err := c.GetAllMessages(ctx, recipient, 0)
	require.NoError(t, err)
	require.Len(t, all, 0)
}
