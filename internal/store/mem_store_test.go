package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacecombat/internal/model"
)

func newTestUser(username string) model.User {
	return model.User{
		ID:         uuid.New(),
		Username:   username,
		TechCounts: map[string]int{"ship_hull": 1},
	}
}

func TestMemStoreUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	u := newTestUser("pilot-one")

	require.NoError(t, s.InsertUser(ctx, u))

	fetched, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Username, fetched.Username)

	byName, err := s.GetUserByUsername(ctx, "pilot-one")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	fetched.Iron = 42
	require.NoError(t, s.UpdateUser(ctx, fetched))

	again, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, again.Iron)
}

func TestMemStoreGetUserNotFound(t *testing.T) {
	s := NewMemStore()

	_, err := s.GetUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemStoreUpdateUserNotFound(t *testing.T) {
	s := NewMemStore()

	err := s.UpdateUser(context.Background(), newTestUser("ghost"))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemStoreSpaceObjectsJoinWithOwner(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	shipID, err := s.InsertSpaceObject(ctx, model.SpaceObject{Type: model.PlayerShip, X: 1, Y: 1})
	require.NoError(t, err)

	u := newTestUser("owner")
	u.ShipID = &shipID
	require.NoError(t, s.InsertUser(ctx, u))

	objs, err := s.GetAllSpaceObjects(ctx)
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "owner", objs[0].Username)
}

func TestMemStoreDeleteSpaceObject(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	id, err := s.InsertSpaceObject(ctx, model.SpaceObject{Type: model.Asteroid, X: 0, Y: 0})
	require.NoError(t, err)

	require.NoError(t, s.DeleteSpaceObject(ctx, id))

	objs, err := s.GetAllSpaceObjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, objs)
}

func TestMemStoreBattlesForUserOrderedByStartTime(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	attacker := uuid.New()
	attackee := uuid.New()

	later := model.Battle{ID: uuid.New(), AttackerID: attacker, AttackeeID: attackee, BattleStartTime: 200}
	earlier := model.Battle{ID: uuid.New(), AttackerID: attacker, AttackeeID: attackee, BattleStartTime: 100}

	require.NoError(t, s.InsertBattle(ctx, later))
	require.NoError(t, s.InsertBattle(ctx, earlier))

	battles, err := s.GetBattlesForUser(ctx, attacker)
	require.NoError(t, err)
	require.Len(t, battles, 2)
	assert.Equal(t, earlier.ID, battles[0].ID)
	assert.Equal(t, later.ID, battles[1].ID)
}

func TestMemStoreMessagesNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	recipient := uuid.New()

	for i, ts := range []int64{10, 30, 20} {
		require.NoError(t, s.InsertMessage(ctx, model.Message{
			ID:          uuid.New(),
			RecipientID: recipient,
			Text:        "msg",
			CreatedAt:   ts,
			IsRead:      i == 0,
		}))
	}

	all, err := s.GetAllMessages(ctx, recipient, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(30), all[0].CreatedAt)
	assert.Equal(t, int64(20), all[1].CreatedAt)
	assert.Equal(t, int64(10), all[2].CreatedAt)

	limited, err := s.GetAllMessages(ctx, recipient, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemStoreDeleteOldRead(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	recipient := uuid.New()

	require.NoError(t, s.InsertMessage(ctx, model.Message{ID: uuid.New(), RecipientID: recipient, CreatedAt: 10, IsRead: true}))
	require.NoError(t, s.InsertMessage(ctx, model.Message{ID: uuid.New(), RecipientID: recipient, CreatedAt: 50, IsRead: true}))
	require.NoError(t, s.InsertMessage(ctx, model.Message{ID: uuid.New(), RecipientID: recipient, CreatedAt: 5, IsRead: false}))

	removed, err := s.DeleteOldRead(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	remaining, err := s.GetAllMessages(ctx, recipient, 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}
