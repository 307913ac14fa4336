package locker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(nil)
}

func TestAcquireRelease(t *testing.T) {
	m := newTestManager()
	ctx := WithHeld(context.Background())

	r, err := m.Acquire(ctx, User)
	require.NoError(t, err)
	require.NotNil(t, r)

	levels := HeldLevels(ctx)
	require.Len(t, levels, 1)
	assert.Equal(t, User, levels[0])

	r.Release()
	assert.Len(t, HeldLevels(ctx), 0)
}

func TestAscendingOrderSucceeds(t *testing.T) {
	m := newTestManager()
	ctx := WithHeld(context.Background())

	rBattle, err := m.Acquire(ctx, Battle)
	require.NoError(t, err)

	rUser, err := m.Acquire(ctx, User)
	require.NoError(t, err)

	rWorld, err := m.Acquire(ctx, World)
	require.NoError(t, err)

	assert.ElementsMatch(t, []Level{Battle, User, World}, HeldLevels(ctx))

	rWorld.Release()
	rUser.Release()
	rBattle.Release()
}

func TestDescendingOrderFails(t *testing.T) {
	m := newTestManager()
	ctx := WithHeld(context.Background())

	r, err := m.Acquire(ctx, World)
	require.NoError(t, err)
	defer r.Release()

	_, err = m.Acquire(ctx, User)
	assert.True(t, errors.Is(err, ErrLockOrderViolation))
}

func TestEqualLevelFails(t *testing.T) {
	m := newTestManager()
	ctx := WithHeld(context.Background())

	r, err := m.Acquire(ctx, User)
	require.NoError(t, err)
	defer r.Release()

	_, err = m.Acquire(ctx, User)
	assert.True(t, errors.Is(err, ErrReentrantLock))
}

func TestReacquireAfterReleaseSucceeds(t *testing.T) {
	m := newTestManager()
	ctx := WithHeld(context.Background())

	r1, err := m.Acquire(ctx, User)
	require.NoError(t, err)
	r1.Release()

	r2, err := m.Acquire(ctx, User)
	require.NoError(t, err)
	r2.Release()
}

func TestMissingWithHeldIsLockOrderViolation(t *testing.T) {
	m := newTestManager()

	_, err := m.Acquire(context.Background(), User)
	assert.True(t, errors.Is(err, ErrLockOrderViolation))
}

func TestCancelledWhileWaitingFails(t *testing.T) {
	m := newTestManager()

	holderCtx := WithHeld(context.Background())
	holder, err := m.Acquire(holderCtx, User)
	require.NoError(t, err)

	waiterCtx, cancel := context.WithCancel(WithHeld(context.Background()))

	var waitErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, waitErr = m.Acquire(waiterCtx, User)
	}()

	// Give the waiter a chance to block on the held lock before
	// cancelling its context.
	time.Sleep(20 * time.Millisecond)
	cancel()
	wg.Wait()

	assert.True(t, errors.Is(waitErr, ErrCancelled))
	assert.Len(t, HeldLevels(waiterCtx), 0)

	holder.Release()
}

func TestDifferentTasksSerializeOnSameLevel(t *testing.T) {
	m := newTestManager()

	var order []int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ctx := WithHeld(context.Background())
			r, err := m.Acquire(ctx, Battle)
			require.NoError(t, err)
			defer r.Release()

			mu.Lock()
			order = append(order, id)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Len(t, order, 5)
}
