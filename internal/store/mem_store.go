package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"spacecombat/internal/model"
)

// MemStore :
// In-memory `Store` implementation. Used by tests and by
// production runs started with `enableAutoPersistence=false`
// (spec §5), where every cache mutation must flush
// synchronously rather than wait on a background timer, so
// that nothing escapes an enclosing test transaction.
//
// Every map is guarded by a single mutex: the store is not on
// any hot path that needs per-table granularity (that
// granularity belongs to the DB_* locks guarding `PGStore`'s
// actual table-level writes), so one lock keeps this
// implementation simple.
type MemStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]model.User
	objects  map[uuid.UUID]model.SpaceObject
	battles  map[uuid.UUID]model.Battle
	messages map[uuid.UUID]model.Message
}

// NewMemStore :
// Creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:    make(map[uuid.UUID]model.User),
		objects:  make(map[uuid.UUID]model.SpaceObject),
		battles:  make(map[uuid.UUID]model.Battle),
		messages: make(map[uuid.UUID]model.Message),
	}
}

// GetUser :
// Implementation of the `Store` interface.
func (s *MemStore) GetUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}

	return u, nil
}

// GetUserByUsername :
// Implementation of the `Store` interface.
func (s *MemStore) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}

	return model.User{}, fmt.Errorf("user %q: %w", username, model.ErrNotFound)
}

// InsertUser :
// Implementation of the `Store` interface.
func (s *MemStore) InsertUser(ctx context.Context, user model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[user.ID] = user
	return nil
}

// UpdateUser :
// Implementation of the `Store` interface.
func (s *MemStore) UpdateUser(ctx context.Context, user model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return fmt.Errorf("user %s: %w", user.ID, model.ErrNotFound)
	}

	s.users[user.ID] = user
	return nil
}

// GetAllSpaceObjects :
// Implementation of the `Store` interface. The join with
// `users` (to populate `Username` and `OwnerInBattle` on
// player-ship rows) is trivial here since both tables live in
// the same process.
func (s *MemStore) GetAllSpaceObjects(ctx context.Context) ([]model.SpaceObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.SpaceObject, 0, len(s.objects))
	for _, o := range s.objects {
		if o.Type == model.PlayerShip {
			for _, u := range s.users {
				if u.ShipID != nil && *u.ShipID == o.ID {
					o.Username = u.Username
					o.OwnerInBattle = u.InBattle
					break
				}
			}
		}
		out = append(out, o)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })

	return out, nil
}

// InsertSpaceObject :
// Implementation of the `Store` interface.
func (s *MemStore) InsertSpaceObject(ctx context.Context, obj model.SpaceObject) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if obj.ID == uuid.Nil {
		obj.ID = uuid.New()
	}

	s.objects[obj.ID] = obj
	return obj.ID, nil
}

// UpdateSpaceObject :
// Implementation of the `Store` interface.
func (s *MemStore) UpdateSpaceObject(ctx context.Context, obj model.SpaceObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[obj.ID]; !ok {
		return fmt.Errorf("space object %s: %w", obj.ID, model.ErrNotFound)
	}

	s.objects[obj.ID] = obj
	return nil
}

// DeleteSpaceObject :
// Implementation of the `Store` interface.
func (s *MemStore) DeleteSpaceObject(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, id)
	return nil
}

// GetBattle :
// Implementation of the `Store` interface.
func (s *MemStore) GetBattle(ctx context.Context, id uuid.UUID) (model.Battle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.battles[id]
	if !ok {
		return model.Battle{}, fmt.Errorf("battle %s: %w", id, model.ErrNotFound)
	}

	return b, nil
}

// GetBattlesForUser :
// Implementation of the `Store` interface.
func (s *MemStore) GetBattlesForUser(ctx context.Context, userID uuid.UUID) ([]model.Battle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Battle, 0)
	for _, b := range s.battles {
		if b.AttackerID == userID || b.AttackeeID == userID {
			out = append(out, b)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].BattleStartTime < out[j].BattleStartTime })

	return out, nil
}

// InsertBattle :
// Implementation of the `Store` interface.
func (s *MemStore) InsertBattle(ctx context.Context, battle model.Battle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.battles[battle.ID] = battle
	return nil
}

// UpdateBattle :
// Implementation of the `Store` interface.
func (s *MemStore) UpdateBattle(ctx context.Context, battle model.Battle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.battles[battle.ID]; !ok {
		return fmt.Errorf("battle %s: %w", battle.ID, model.ErrNotFound)
	}

	s.battles[battle.ID] = battle
	return nil
}

// GetMessage :
// Implementation of the `Store` interface.
func (s *MemStore) GetMessage(ctx context.Context, id uuid.UUID) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return model.Message{}, fmt.Errorf("message %s: %w", id, model.ErrNotFound)
	}

	return m, nil
}

// GetAllMessages :
// Implementation of the `Store` interface.
func (s *MemStore) GetAllMessages(ctx context.Context, recipientID uuid.UUID, limit int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Message, 0)
	for _, m := range s.messages {
		if m.RecipientID == recipientID {
			out = append(out, m)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// InsertMessage :
// Implementation of the `Store` interface.
func (s *MemStore) InsertMessage(ctx context.Context, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[msg.ID] = msg
	return nil
}

// UpdateMessage :
// Implementation of the `Store` interface.
func (s *MemStore) UpdateMessage(ctx context.Context, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[msg.ID]; !ok {
		return fmt.Errorf("message %s: %w", msg.ID, model.ErrNotFound)
	}

	s.messages[msg.ID] = msg
	return nil
}

// DeleteOldRead :
// Implementation of the `Store` interface.
func (s *MemStore) DeleteOldRead(ctx context.Context, cutoff int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, m := range s.messages {
		if m.IsRead && m.CreatedAt < cutoff {
			delete(s.messages, id)
			removed++
		}
	}

	return removed, nil
}
