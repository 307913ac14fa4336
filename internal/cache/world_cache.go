package cache

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"spacecombat/internal/locker"
	"spacecombat/internal/model"
	"spacecombat/internal/store"
	"spacecombat/pkg/background"
	"spacecombat/pkg/logger"
)

// spawnWeights names the cumulative probability thresholds and
// base speed used by `spawnReplacement` to pick a collectible's
// type, drawn from the data model's {asteroid: 0.6, shipwreck:
// 0.3, escape_pod: 0.1} distribution.
type spawnWeights struct {
	cumulative float64
	kind       model.SpaceObjectType
	baseSpeed  float64
}

var spawnTable = []spawnWeights{
	{cumulative: 0.6, kind: model.Asteroid, baseSpeed: 5},
	{cumulative: 0.9, kind: model.Shipwreck, baseSpeed: 10},
	{cumulative: 1.0, kind: model.EscapePod, baseSpeed: 25},
}

// WorldCache :
// Holds the single `World` value for the process. Grounded on
// the write-back cache design note; unlike the rest of the
// caches there is only ever one live value rather than a map
// keyed by entity id.
type WorldCache struct {
	mu     sync.Mutex
	world  model.World
	loaded bool
	dirty  bool

	store store.Store
	locks *locker.Manager
	log   logger.Logger
	now   TimeProvider
	rng   *rand.Rand

	config  configuration
	process *background.Process
}

// NewWorldCache :
// Creates a world cache of the given dimensions, backed by `st`.
// The world is lazily loaded from the store on first use.
func NewWorldCache(size model.WorldSize, st store.Store, locks *locker.Manager, log logger.Logger, now TimeProvider) *WorldCache {
	return &WorldCache{
		world:  model.World{Size: size},
		store:  st,
		locks:  locks,
		log:    log,
		now:    now,
		rng:    rand.New(rand.NewSource(1)),
		config: parseConfiguration(),
	}
}

// ensureLoaded loads every space object from the store exactly
// once, joined with users by the store's own `GetAllSpaceObjects`
// implementation.
func (c *WorldCache) ensureLoaded(ctx context.Context) error {
	c.mu.Lock()
	loaded := c.loaded
	c.mu.Unlock()
	if loaded {
		return nil
	}

	dbRel, err := c.locks.Acquire(ctx, locker.DBWorld)
	if err != nil {
		return err
	}
	objs, err := c.store.GetAllSpaceObjects(ctx)
	dbRel.Release()
	if err != nil {
		return fmt.Errorf("loading space objects: %w", model.ErrStorageError)
	}

	ptrs := make([]*model.SpaceObject, len(objs))
	for i := range objs {
		obj := objs[i]
		ptrs[i] = &obj
	}

	c.mu.Lock()
	if !c.loaded {
		c.world.SpaceObjects = ptrs
		c.loaded = true
	}
	c.mu.Unlock()

	return nil
}

// GetWorld :
// Returns the live world after applying one physics step: every
// object advances along its heading at its current speed,
// wrapping toroidally within the world's size. Marks the cache
// dirty only if at least one object moved beyond a small
// numerical tolerance.
func (c *WorldCache) GetWorld(ctx context.Context) (model.World, error) {
	rel, err := c.locks.Acquire(ctx, locker.World)
	if err != nil {
		return model.World{}, err
	}
	defer rel.Release()

	if err := c.ensureLoaded(ctx); err != nil {
		return model.World{}, err
	}

	nowMs := c.now() * 1000

	c.mu.Lock()
	defer c.mu.Unlock()

	moved := false
	for _, obj := range c.world.SpaceObjects {
		if obj.Type == model.PlayerShip && obj.OwnerInBattle {
			obj.LastPositionUpdateMs = nowMs
			continue
		}
		dt := float64(nowMs-obj.LastPositionUpdateMs) / 1000.0
		if obj.AdvancePosition(dt, c.world.Size.Width, c.world.Size.Height, nowMs) {
			moved = true
		}
	}
	if moved {
		c.dirty = true
	}

	return c.world, nil
}

// UpdateWorld :
// Replaces the cached world wholesale and marks it dirty.
func (c *WorldCache) UpdateWorld(ctx context.Context, world model.World) error {
	rel, err := c.locks.Acquire(ctx, locker.World)
	if err != nil {
		return err
	}
	defer rel.Release()

	c.mu.Lock()
	c.world = world
	c.loaded = true
	c.dirty = true
	c.mu.Unlock()

	return nil
}

// Collected :
// Removes the object with the given id, deletes its row under
// DB_WORLD, and spawns a replacement collectible at a random
// position, appending it to the world and returning it.
func (c *WorldCache) Collected(ctx context.Context, objectID uuid.UUID) (model.SpaceObject, error) {
	rel, err := c.locks.Acquire(ctx, locker.World)
	if err != nil {
		return model.SpaceObject{}, err
	}
	defer rel.Release()

	if err := c.ensureLoaded(ctx); err != nil {
		return model.SpaceObject{}, err
	}

	c.mu.Lock()
	idx := -1
	for i, o := range c.world.SpaceObjects {
		if o.ID == objectID {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return model.SpaceObject{}, fmt.Errorf("space object %s: %w", objectID, model.ErrNotFound)
	}
	c.world.SpaceObjects = append(c.world.SpaceObjects[:idx], c.world.SpaceObjects[idx+1:]...)
	width, height := c.world.Size.Width, c.world.Size.Height
	c.mu.Unlock()

	dbRel, err := c.locks.Acquire(ctx, locker.DBWorld)
	if err != nil {
		return model.SpaceObject{}, err
	}
	err = c.store.DeleteSpaceObject(ctx, objectID)
	dbRel.Release()
	if err != nil {
		return model.SpaceObject{}, fmt.Errorf("deleting space object %s: %w", objectID, model.ErrStorageError)
	}

	replacement := c.spawnReplacement(width, height)

	dbRel, err = c.locks.Acquire(ctx, locker.DBWorld)
	if err != nil {
		return model.SpaceObject{}, err
	}
	newID, err := c.store.InsertSpaceObject(ctx, replacement)
	dbRel.Release()
	if err != nil {
		return model.SpaceObject{}, fmt.Errorf("inserting replacement space object: %w", model.ErrStorageError)
	}
	replacement.ID = newID

	c.mu.Lock()
	c.world.SpaceObjects = append(c.world.SpaceObjects, &replacement)
	c.dirty = true
	c.mu.Unlock()

	return replacement, nil
}

// GetObjectByUsername :
// Returns the `PlayerShip` object owned by `username`, used by
// the Battle Scheduler to resolve a participant's ship position
// for the post-battle teleport.
func (c *WorldCache) GetObjectByUsername(ctx context.Context, username string) (model.SpaceObject, error) {
	rel, err := c.locks.Acquire(ctx, locker.World)
	if err != nil {
		return model.SpaceObject{}, err
	}
	defer rel.Release()

	if err := c.ensureLoaded(ctx); err != nil {
		return model.SpaceObject{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, o := range c.world.SpaceObjects {
		if o.Type == model.PlayerShip && o.Username == username {
			return *o, nil
		}
	}

	return model.SpaceObject{}, fmt.Errorf("ship for user %q: %w", username, model.ErrNotFound)
}

// Teleport :
// Moves the object with the given id to `(x, y)` and sets its
// speed, used by the Battle Scheduler to relocate the loser's
// ship after a battle resolves.
func (c *WorldCache) Teleport(ctx context.Context, objectID uuid.UUID, x, y, speed float64) error {
	rel, err := c.locks.Acquire(ctx, locker.World)
	if err != nil {
		return err
	}
	defer rel.Release()

	if err := c.ensureLoaded(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, o := range c.world.SpaceObjects {
		if o.ID == objectID {
			o.X = x
			o.Y = y
			o.Speed = speed
			o.LastPositionUpdateMs = c.now() * 1000
			c.dirty = true
			return nil
		}
	}

	return fmt.Errorf("space object %s: %w", objectID, model.ErrNotFound)
}

// SetOwnerInBattle :
// Marks the `PlayerShip` owned by `username` as fighting (or not),
// so `GetWorld` holds its position for the duration of the fight.
// A no-op if the user owns no ship yet. Called by the Battle Cache
// from `Create`/`End` while BATTLE (2) is held; the USER (4) lock
// taken by their preceding `users` calls has already been
// released, so acquiring WORLD (6) here keeps the held set
// ascending.
func (c *WorldCache) SetOwnerInBattle(ctx context.Context, username string, inBattle bool) error {
	rel, err := c.locks.Acquire(ctx, locker.World)
	if err != nil {
		return err
	}
	defer rel.Release()

	if err := c.ensureLoaded(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, o := range c.world.SpaceObjects {
		if o.Type == model.PlayerShip && o.Username == username {
			// Derived from `users.in_battle` on every load; not
			// itself a persisted column, so no dirty flag here.
			o.OwnerInBattle = inBattle
			return nil
		}
	}

	return nil
}

// spawnReplacement picks a collectible type by the data model's
// weighted distribution, a base speed with ±25% uniform
// variation, a random position uniform over the world, and a
// random heading uniform over [0°, 360°).
func (c *WorldCache) spawnReplacement(width, height float64) model.SpaceObject {
	roll := c.rng.Float64()

	kind := spawnTable[len(spawnTable)-1].kind
	baseSpeed := spawnTable[len(spawnTable)-1].baseSpeed
	for _, w := range spawnTable {
		if roll < w.cumulative {
			kind = w.kind
			baseSpeed = w.baseSpeed
			break
		}
	}

	variation := 1 + (c.rng.Float64()*0.5 - 0.25)

	return model.SpaceObject{
		Type:  kind,
		X:     c.rng.Float64() * width,
		Y:     c.rng.Float64() * height,
		Speed: baseSpeed * variation,
		Angle: c.rng.Float64() * 360,
	}
}

// Flush :
// Persists all mutated positions under DB_WORLD.
func (c *WorldCache) Flush(ctx context.Context) error {
	rel, err := c.locks.Acquire(ctx, locker.World)
	if err != nil {
		return err
	}
	defer rel.Release()

	return c.flushLocked(ctx)
}

func (c *WorldCache) flushLocked(ctx context.Context) error {
	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	objs := make([]model.SpaceObject, len(c.world.SpaceObjects))
	for i, o := range c.world.SpaceObjects {
		objs[i] = *o
	}
	c.mu.Unlock()

	dbRel, err := c.locks.Acquire(ctx, locker.DBWorld)
	if err != nil {
		return err
	}
	defer dbRel.Release()

	for _, o := range objs {
		if err := c.store.UpdateSpaceObject(ctx, o); err != nil {
			return fmt.Errorf("flushing space object %s: %w", o.ID, model.ErrStorageError)
		}
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()

	return nil
}

// Start :
// Starts the background flush timer, unless auto-persistence is
// disabled.
func (c *WorldCache) Start() error {
	if !c.config.enableAutoPersistence {
		return nil
	}

	c.process = background.NewProcess(c.config.persistenceInterval, c.log).
		WithModule("world-cache").
		WithJitter(c.config.persistenceInterval / 4).
		WithOperation(func() (bool, error) {
			err := c.Flush(locker.WithHeld(context.Background()))
			return err == nil, err
		})

	return c.process.Start()
}

// Stop :
// Stops the background flush timer, if running, and performs a
// final synchronous flush.
func (c *WorldCache) Stop() {
	if c.process != nil {
		c.process.Stop()
	}

	_ = c.Flush(locker.WithHeld(context.Background()))
}
