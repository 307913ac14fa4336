package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"spacecombat/internal/locker"
	"spacecombat/internal/model"
	"spacecombat/internal/store"
	"spacecombat/pkg/background"
	"spacecombat/pkg/logger"
)

// UserCache :
// Write-back cache fronting the `users` table. Holds a primary
// `userId → User` map, a secondary `username → userId` index,
// and a dirty set of user ids pending a flush. Grounded on the
// dirty-set-owned-by-the-cache design note: unlike the teacher
// (which reads `internal/data/player_proxy.go` straight from the
// DB on every request), every mutation here lands in memory
// first and is written back either by the periodic timer or
// synchronously when auto-persistence is disabled.
type UserCache struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]model.User
	byName map[string]uuid.UUID
	dirty  map[uuid.UUID]bool

	store store.Store
	locks *locker.Manager
	log   logger.Logger
	now   TimeProvider

	config  configuration
	process *background.Process
}

// NewUserCache :
// Creates an empty user cache backed by `st`, using `locks` for
// the hierarchical locking discipline and `now` to advance
// per-user stats on every read.
func NewUserCache(st store.Store, locks *locker.Manager, log logger.Logger, now TimeProvider) *UserCache {
	return &UserCache{
		byID:   make(map[uuid.UUID]model.User),
		byName: make(map[string]uuid.UUID),
		dirty:  make(map[uuid.UUID]bool),
		store:  st,
		locks:  locks,
		log:    log,
		now:    now,
		config: parseConfiguration(),
	}
}

// GetByID :
// Returns the user with the given id, hydrating from the store
// on a cache miss and applying `UpdateStats` before returning.
func (c *UserCache) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	rel, err := c.locks.Acquire(ctx, locker.User)
	if err != nil {
		return model.User{}, err
	}
	defer rel.Release()

	c.mu.Lock()
	u, ok := c.byID[id]
	c.mu.Unlock()

	if !ok {
		loaded, err := c.loadByID(ctx, id)
		if err != nil {
			return model.User{}, err
		}
		u = loaded
	}

	return c.touch(u), nil
}

// GetByUsername :
// Returns the user with the given username, hydrating from the
// store on a cache miss.
func (c *UserCache) GetByUsername(ctx context.Context, username string) (model.User, error) {
	rel, err := c.locks.Acquire(ctx, locker.User)
	if err != nil {
		return model.User{}, err
	}
	defer rel.Release()

	c.mu.Lock()
	id, ok := c.byName[username]
	var u model.User
	if ok {
		u = c.byID[id]
	}
	c.mu.Unlock()

	if !ok {
		loaded, err := c.loadByUsername(ctx, username)
		if err != nil {
			return model.User{}, err
		}
		u = loaded
	}

	return c.touch(u), nil
}

// loadByID fetches a row from the store under DB_USERS and
// populates both maps.
func (c *UserCache) loadByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	dbRel, err := c.locks.Acquire(ctx, locker.DBUsers)
	if err != nil {
		return model.User{}, err
	}
	u, err := c.store.GetUser(ctx, id)
	dbRel.Release()
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, err
		}
		return model.User{}, fmt.Errorf("loading user %s: %w", id, model.ErrStorageError)
	}

	c.insert(u)
	return u, nil
}

// loadByUsername is the username-indexed counterpart of
// `loadByID`.
func (c *UserCache) loadByUsername(ctx context.Context, username string) (model.User, error) {
	dbRel, err := c.locks.Acquire(ctx, locker.DBUsers)
	if err != nil {
		return model.User{}, err
	}
	u, err := c.store.GetUserByUsername(ctx, username)
	dbRel.Release()
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, err
		}
		return model.User{}, fmt.Errorf("loading user %q: %w", username, model.ErrStorageError)
	}

	c.insert(u)
	return u, nil
}

// insert writes `u` into both maps.
func (c *UserCache) insert(u model.User) {
	c.mu.Lock()
	c.byID[u.ID] = u
	c.byName[u.Username] = u.ID
	c.mu.Unlock()
}

// touch applies `UpdateStats` up to the cache's current time and
// writes the result back into the cache before returning it.
func (c *UserCache) touch(u model.User) model.User {
	u.UpdateStats(c.now())
	c.insert(u)
	return u
}

// SetUser :
// Inserts or updates both maps after a direct DB write performed
// by the caller, clearing the dirty bit since the store already
// reflects this value.
func (c *UserCache) SetUser(ctx context.Context, user model.User) error {
	rel, err := c.locks.Acquire(ctx, locker.User)
	if err != nil {
		return err
	}
	defer rel.Release()

	c.insert(user)
	c.mu.Lock()
	delete(c.dirty, user.ID)
	c.mu.Unlock()

	return nil
}

// UpdateUser :
// Writes `user` into the cache and marks it dirty for the next
// flush.
func (c *UserCache) UpdateUser(ctx context.Context, user model.User) error {
	rel, err := c.locks.Acquire(ctx, locker.User)
	if err != nil {
		return err
	}
	defer rel.Release()

	c.insert(user)
	c.mu.Lock()
	c.dirty[user.ID] = true
	c.mu.Unlock()

	if !c.config.enableAutoPersistence {
		return c.flushDirtyLocked(ctx)
	}

	return nil
}

// FlushDirty :
// Serializes each dirty user and issues an UPDATE under
// DB_USERS.
func (c *UserCache) FlushDirty(ctx context.Context) error {
	rel, err := c.locks.Acquire(ctx, locker.User)
	if err != nil {
		return err
	}
	defer rel.Release()

	return c.flushDirtyLocked(ctx)
}

// flushDirtyLocked performs the actual flush; the caller must
// already hold the USER lock.
func (c *UserCache) flushDirtyLocked(ctx context.Context) error {
	c.mu.Lock()
	ids := make([]uuid.UUID, 0, len(c.dirty))
	for id := range c.dirty {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}

	dbRel, err := c.locks.Acquire(ctx, locker.DBUsers)
	if err != nil {
		return err
	}
	defer dbRel.Release()

	for _, id := range ids {
		c.mu.Lock()
		u := c.byID[id]
		c.mu.Unlock()

		if err := c.store.UpdateUser(ctx, u); err != nil {
			return fmt.Errorf("flushing user %s: %w", id, model.ErrStorageError)
		}

		c.mu.Lock()
		delete(c.dirty, id)
		c.mu.Unlock()
	}

	return nil
}

// Start :
// Starts the background flush timer, unless auto-persistence is
// disabled in the runtime configuration.
func (c *UserCache) Start() error {
	if !c.config.enableAutoPersistence {
		return nil
	}

	c.process = background.NewProcess(c.config.persistenceInterval, c.log).
		WithModule("user-cache").
		WithJitter(c.config.persistenceInterval / 4).
		WithOperation(func() (bool, error) {
			err := c.FlushDirty(locker.WithHeld(context.Background()))
			return err == nil, err
		})

	return c.process.Start()
}

// Stop :
// Stops the background flush timer, if running, and performs a
// final synchronous flush.
func (c *UserCache) Stop() {
	if c.process != nil {
		c.process.Stop()
	}

	_ = c.FlushDirty(locker.WithHeld(context.Background()))
}
