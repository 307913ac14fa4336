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

// BattleCache :
// Write-back cache fronting the `battles` table and the sole
// writer of `Battle` values; the Battle Engine and Scheduler
// request mutations through it rather than touching a `Battle`
// directly. Holds every battle the process has touched keyed
// by id, an index from a participant's user id to their single
// active battle (enforcing the one-active-battle-per-user
// invariant), and a dirty set of battle ids pending a flush.
type BattleCache struct {
	mu        sync.Mutex
	battles   map[uuid.UUID]*model.Battle
	userIndex map[uuid.UUID]uuid.UUID
	dirty     map[uuid.UUID]bool
	persisted map[uuid.UUID]bool

	store store.Store
	locks *locker.Manager
	log   logger.Logger
	now   TimeProvider

	config  configuration
	process *background.Process
}

// NewBattleCache :
// Creates an empty battle cache backed by `st`.
func NewBattleCache(st store.Store, locks *locker.Manager, log logger.Logger, now TimeProvider) *BattleCache {
	return &BattleCache{
		battles:   make(map[uuid.UUID]*model.Battle),
		userIndex: make(map[uuid.UUID]uuid.UUID),
		dirty:     make(map[uuid.UUID]bool),
		persisted: make(map[uuid.UUID]bool),
		store:     st,
		locks:     locks,
		log:       log,
		now:       now,
		config:    parseConfiguration(),
	}
}

// Create :
// Starts a new battle between `attackerID` and `attackeeID`,
// snapshotting each participant's current stats via `users` and
// marking both as `InBattle`. Acquires BATTLE before touching
// USER through `users` and, in turn, WORLD through `world` (to
// freeze both ships for the duration of the fight), honoring the
// ascending lock-order contract (BATTLE=2, USER=4, WORLD=6).
func (c *BattleCache) Create(ctx context.Context, attackerID, attackeeID uuid.UUID, users *UserCache, world *WorldCache) (model.Battle, error) {
	rel, err := c.locks.Acquire(ctx, locker.Battle)
	if err != nil {
		return model.Battle{}, err
	}
	defer rel.Release()

	c.mu.Lock()
	_, attackerBusy := c.userIndex[attackerID]
	_, attackeeBusy := c.userIndex[attackeeID]
	c.mu.Unlock()
	if attackerBusy || attackeeBusy {
		return model.Battle{}, ErrUserAlreadyInBattle
	}

	attacker, err := users.GetByID(ctx, attackerID)
	if err != nil {
		return model.Battle{}, err
	}
	attackee, err := users.GetByID(ctx, attackeeID)
	if err != nil {
		return model.Battle{}, err
	}
	if attacker.InBattle || attackee.InBattle {
		return model.Battle{}, ErrUserAlreadyInBattle
	}

	now := c.now()
	battle := &model.Battle{
		ID:                      uuid.New(),
		AttackerID:              attackerID,
		AttackeeID:              attackeeID,
		BattleStartTime:         now,
		AttackerWeaponCooldowns: model.NewCooldownTable(),
		AttackeeWeaponCooldowns: model.NewCooldownTable(),
		AttackerStartStats:      model.SnapshotStats(&attacker),
		AttackeeStartStats:      model.SnapshotStats(&attackee),
	}
	battle.AppendEvent(model.BattleEvent{Timestamp: now, Type: model.EventBattleStarted, Actor: model.Attacker})

	// Every owned weapon starts ready; populating the cooldown
	// tables in the fixed catalog order (rather than leaving
	// them to be lazily inserted by the first `Set` call from
	// the engine) fixes the attacker-first/insertion-order
	// tie-break from the very first tick.
	for _, key := range model.WeaponKeys {
		if _, ok := battle.AttackerStartStats.Weapons[key]; ok {
			battle.AttackerWeaponCooldowns.Set(key, now)
		}
		if _, ok := battle.AttackeeStartStats.Weapons[key]; ok {
			battle.AttackeeWeaponCooldowns.Set(key, now)
		}
	}

	c.mu.Lock()
	c.battles[battle.ID] = battle
	c.userIndex[attackerID] = battle.ID
	c.userIndex[attackeeID] = battle.ID
	c.dirty[battle.ID] = true
	c.mu.Unlock()

	battleID := battle.ID
	attacker.InBattle = true
	attacker.CurrentBattleID = &battleID
	if err := users.UpdateUser(ctx, attacker); err != nil {
		return model.Battle{}, err
	}
	attackee.InBattle = true
	attackee.CurrentBattleID = &battleID
	if err := users.UpdateUser(ctx, attackee); err != nil {
		return model.Battle{}, err
	}

	if world != nil {
		if err := world.SetOwnerInBattle(ctx, attacker.Username, true); err != nil {
			return model.Battle{}, err
		}
		if err := world.SetOwnerInBattle(ctx, attackee.Username, true); err != nil {
			return model.Battle{}, err
		}
	}

	if !c.config.enableAutoPersistence {
		if err := c.flushOneLocked(ctx, battle.ID); err != nil {
			return model.Battle{}, err
		}
	}

	return *battle, nil
}

// LoadIfNeeded :
// Hydrates a battle (active or already ended) from the store if
// the cache does not already hold it, used for historical
// lookups of battles this process has not touched since start.
func (c *BattleCache) LoadIfNeeded(ctx context.Context, battleID uuid.UUID) (model.Battle, error) {
	rel, err := c.locks.Acquire(ctx, locker.Battle)
	if err != nil {
		return model.Battle{}, err
	}
	defer rel.Release()

	c.mu.Lock()
	b, ok := c.battles[battleID]
	c.mu.Unlock()
	if ok {
		return *b, nil
	}

	dbRel, err := c.locks.Acquire(ctx, locker.DBBattles)
	if err != nil {
		return model.Battle{}, err
	}
	loaded, err := c.store.GetBattle(ctx, battleID)
	dbRel.Release()
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Battle{}, err
		}
		return model.Battle{}, fmt.Errorf("loading battle %s: %w", battleID, model.ErrStorageError)
	}

	c.mu.Lock()
	c.battles[battleID] = &loaded
	c.persisted[battleID] = true
	if loaded.IsActive() {
		c.userIndex[loaded.AttackerID] = battleID
		c.userIndex[loaded.AttackeeID] = battleID
	}
	c.mu.Unlock()

	return loaded, nil
}

// GetActive :
// Returns every battle currently in progress.
func (c *BattleCache) GetActive(ctx context.Context) ([]model.Battle, error) {
	rel, err := c.locks.Acquire(ctx, locker.Battle)
	if err != nil {
		return nil, err
	}
	defer rel.Release()

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.Battle, 0, len(c.battles))
	for _, b := range c.battles {
		if b.IsActive() {
			out = append(out, *b)
		}
	}
	return out, nil
}

// GetOngoingForUser :
// Returns the active battle a user is a participant in, or
// `model.ErrNotFound` if they are not currently in one.
func (c *BattleCache) GetOngoingForUser(ctx context.Context, userID uuid.UUID) (model.Battle, error) {
	rel, err := c.locks.Acquire(ctx, locker.Battle)
	if err != nil {
		return model.Battle{}, err
	}
	defer rel.Release()

	c.mu.Lock()
	defer c.mu.Unlock()

	battleID, ok := c.userIndex[userID]
	if !ok {
		return model.Battle{}, fmt.Errorf("active battle for user %s: %w", userID, model.ErrNotFound)
	}
	b := c.battles[battleID]
	return *b, nil
}

// AddEvent :
// Appends an event to the named battle's log and marks it
// dirty.
func (c *BattleCache) AddEvent(ctx context.Context, battleID uuid.UUID, event model.BattleEvent) error {
	rel, err := c.locks.Acquire(ctx, locker.Battle)
	if err != nil {
		return err
	}
	defer rel.Release()

	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.battles[battleID]
	if !ok {
		return fmt.Errorf("battle %s: %w", battleID, model.ErrNotFound)
	}
	b.AppendEvent(event)
	c.dirty[battleID] = true

	return nil
}

// SetWeaponCooldown :
// Records a weapon's next-ready time for one side of a battle.
func (c *BattleCache) SetWeaponCooldown(ctx context.Context, battleID uuid.UUID, side model.Actor, weaponKey string, nextReadyTime int64) error {
	rel, err := c.locks.Acquire(ctx, locker.Battle)
	if err != nil {
		return err
	}
	defer rel.Release()

	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.battles[battleID]
	if !ok {
		return fmt.Errorf("battle %s: %w", battleID, model.ErrNotFound)
	}
	b.CooldownsFor(side).Set(weaponKey, nextReadyTime)
	c.dirty[battleID] = true

	return nil
}

// UpdateTotalDamage :
// Adds `delta` to the running total-damage counter for one side
// of a battle.
func (c *BattleCache) UpdateTotalDamage(ctx context.Context, battleID uuid.UUID, side model.Actor, delta int) error {
	rel, err := c.locks.Acquire(ctx, locker.Battle)
	if err != nil {
		return err
	}
	defer rel.Release()

	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.battles[battleID]
	if !ok {
		return fmt.Errorf("battle %s: %w", battleID, model.ErrNotFound)
	}
	b.AddTotalDamage(side, delta)
	c.dirty[battleID] = true

	return nil
}

// UpdateStats :
// Writes the end-stats snapshot for both sides, enforcing the
// write-once invariant.
func (c *BattleCache) UpdateStats(ctx context.Context, battleID uuid.UUID, attackerEnd, attackeeEnd model.BattleStats) error {
	rel, err := c.locks.Acquire(ctx, locker.Battle)
	if err != nil {
		return err
	}
	defer rel.Release()

	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.battles[battleID]
	if !ok {
		return fmt.Errorf("battle %s: %w", battleID, model.ErrNotFound)
	}
	if b.AttackerEndStats != nil || b.AttackeeEndStats != nil {
		return ErrEndStatsAlreadySet
	}

	b.AttackerEndStats = &attackerEnd
	b.AttackeeEndStats = &attackeeEnd
	c.dirty[battleID] = true

	return nil
}

// End :
// Resolves a battle: sets its end time, winner and loser,
// appends the closing event, clears both participants'
// `InBattle` flag through `users` (and, through `world`, the
// corresponding ships' held-position flag), removes the pair
// from the active-user index, and flushes the battle
// synchronously so a concluded battle is never silently lost to
// a crash before the next timer tick.
func (c *BattleCache) End(ctx context.Context, battleID, winnerID, loserID uuid.UUID, users *UserCache, world *WorldCache) error {
	rel, err := c.locks.Acquire(ctx, locker.Battle)
	if err != nil {
		return err
	}
	defer rel.Release()

	c.mu.Lock()
	b, ok := c.battles[battleID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("battle %s: %w", battleID, model.ErrNotFound)
	}
	if b.BattleEndTime != nil {
		c.mu.Unlock()
		return ErrBattleAlreadyEnded
	}

	now := c.now()
	b.BattleEndTime = &now
	winner, loser := winnerID, loserID
	b.WinnerID = &winner
	b.LoserID = &loser
	b.AppendEvent(model.BattleEvent{Timestamp: now, Type: model.EventBattleEnded, Actor: model.Attacker})

	delete(c.userIndex, b.AttackerID)
	delete(c.userIndex, b.AttackeeID)
	c.dirty[battleID] = true
	c.mu.Unlock()

	attacker, err := users.GetByID(ctx, b.AttackerID)
	if err != nil {
		return err
	}
	attacker.InBattle = false
	attacker.CurrentBattleID = nil
	if err := users.UpdateUser(ctx, attacker); err != nil {
		return err
	}

	attackee, err := users.GetByID(ctx, b.AttackeeID)
	if err != nil {
		return err
	}
	attackee.InBattle = false
	attackee.CurrentBattleID = nil
	if err := users.UpdateUser(ctx, attackee); err != nil {
		return err
	}

	if world != nil {
		if err := world.SetOwnerInBattle(ctx, attacker.Username, false); err != nil {
			return err
		}
		if err := world.SetOwnerInBattle(ctx, attackee.Username, false); err != nil {
			return err
		}
	}

	return c.flushOneLocked(ctx, battleID)
}

// flushOneLocked flushes a single battle, used both by `End`
// (which always flushes synchronously) and by `Create` when
// auto-persistence is disabled.
func (c *BattleCache) flushOneLocked(ctx context.Context, battleID uuid.UUID) error {
	dbRel, err := c.locks.Acquire(ctx, locker.DBBattles)
	if err != nil {
		return err
	}
	defer dbRel.Release()

	c.mu.Lock()
	b := *c.battles[battleID]
	alreadyPersisted := c.persisted[battleID]
	c.mu.Unlock()

	var flushErr error
	if alreadyPersisted {
		flushErr = c.store.UpdateBattle(ctx, b)
	} else {
		flushErr = c.store.InsertBattle(ctx, b)
	}
	if flushErr != nil {
		return fmt.Errorf("flushing battle %s: %w", battleID, model.ErrStorageError)
	}

	c.mu.Lock()
	c.persisted[battleID] = true
	delete(c.dirty, battleID)
	c.mu.Unlock()

	return nil
}

// FlushDirty :
// Persists every dirty battle.
func (c *BattleCache) FlushDirty(ctx context.Context) error {
	rel, err := c.locks.Acquire(ctx, locker.Battle)
	if err != nil {
		return err
	}
	defer rel.Release()

	c.mu.Lock()
	ids := make([]uuid.UUID, 0, len(c.dirty))
	for id := range c.dirty {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		if err := c.flushOneLocked(ctx, id); err != nil {
			return err
		}
	}

	return nil
}

// Start :
// Starts the background flush timer, unless auto-persistence is
// disabled.
func (c *BattleCache) Start() error {
	if !c.config.enableAutoPersistence {
		return nil
	}

	c.process = background.NewProcess(c.config.persistenceInterval, c.log).
		WithModule("battle-cache").
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
func (c *BattleCache) Stop() {
	if c.process != nil {
		c.process.Stop()
	}

	_ = c.FlushDirty(locker.WithHeld(context.Background()))
}
