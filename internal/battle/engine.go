package battle

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"spacecombat/internal/cache"
	"spacecombat/internal/model"
	"spacecombat/pkg/logger"
)

// DamageResult :
// Describes the effect of one shot, per the Battle Engine's
// `calculateDamage` contract: how many of the `weaponCount`
// copies of a weapon actually hit, and how that damage split
// across the defender's three layers (shield first, then
// armor, then hull).
type DamageResult struct {
	Hits         int
	ShieldDamage int
	ArmorDamage  int
	HullDamage   int
}

// Total returns the sum of damage applied across every layer.
func (d DamageResult) Total() int {
	return d.ShieldDamage + d.ArmorDamage + d.HullDamage
}

// ShotOutcome :
// Describes what happened when `ExecuteTurn` resolved a single
// shot: which side fired, with which weapon, and the resulting
// layer transitions (for synthesizing `shield_broken` etc.
// events).
type ShotOutcome struct {
	Shooter        model.Actor
	WeaponKey      string
	Damage         DamageResult
	ShieldBroke    bool
	ArmorBroke     bool
	HullDestroyed  bool
	DefenderHull   int
	DefenderArmor  int
	DefenderShield int
}

// Engine :
// Stateless combat mechanics over a single `Battle`. All
// durable state lives in the `Battle` value (owned by the
// Battle Cache) and in the participants' `User` values (owned
// by the User Cache); the engine itself holds nothing between
// calls beyond references to those two caches.
type Engine struct {
	users   *cache.UserCache
	battles *cache.BattleCache
	log     logger.Logger
}

// NewEngine :
// Creates an engine operating against `users` and `battles`.
func NewEngine(users *cache.UserCache, battles *cache.BattleCache, log logger.Logger) *Engine {
	return &Engine{users: users, battles: battles, log: log}
}

// ReadyWeapons :
// Returns, in insertion (catalog) order, the weapon keys owned
// by `side` that are ready to fire at `now`.
func (e *Engine) ReadyWeapons(b *model.Battle, side model.Actor, now int64) []string {
	stats := b.StartStatsFor(side)
	cooldowns := b.CooldownsFor(side)

	ready := make([]string, 0, cooldowns.Len())
	for _, key := range cooldowns.Keys() {
		spec, ok := stats.Weapons[key]
		if !ok || spec.Count <= 0 {
			continue
		}
		nextReady, ok := cooldowns.Get(key)
		if ok && nextReady <= now {
			ready = append(ready, key)
		}
	}
	return ready
}

// NextShot :
// Chooses the next weapon to fire, implementing the
// attacker-first/first-in-iteration-order tie-break: if either
// side has a weapon ready at `now`, the attacker's first ready
// weapon wins; only if the attacker has none does the
// attackee's first ready weapon fire. If neither side has a
// ready weapon, returns the side/weapon with the smallest
// positive `timeUntilReady` across both sides.
//
// Returns `ok=false` if the battle has no weapons on either
// side at all.
func (e *Engine) NextShot(b *model.Battle, now int64) (side model.Actor, weaponKey string, timeUntilReady int64, ok bool) {
	if ready := e.ReadyWeapons(b, model.Attacker, now); len(ready) > 0 {
		return model.Attacker, ready[0], 0, true
	}
	if ready := e.ReadyWeapons(b, model.Attackee, now); len(ready) > 0 {
		return model.Attackee, ready[0], 0, true
	}

	bestSide := model.Attacker
	bestKey := ""
	var bestWait int64 = -1

	for _, s := range []model.Actor{model.Attacker, model.Attackee} {
		stats := b.StartStatsFor(s)
		cooldowns := b.CooldownsFor(s)
		for _, key := range cooldowns.Keys() {
			spec, ok := stats.Weapons[key]
			if !ok || spec.Count <= 0 {
				continue
			}
			nextReady, ok := cooldowns.Get(key)
			if !ok {
				continue
			}
			wait := nextReady - now
			if wait <= 0 {
				continue
			}
			if bestWait < 0 || wait < bestWait {
				bestWait = wait
				bestSide = s
				bestKey = key
			}
		}
	}

	if bestKey == "" {
		return "", "", 0, false
	}
	return bestSide, bestKey, bestWait, true
}

// CalculateDamage :
// Computes the effect of firing `weaponKey` `weaponCount` times
// by `attacker` against `defender`. `attacker` and
// `techModifiers` are reserved for future tuning (accuracy,
// ECM, spread); today every shot hits and deals its full
// static damage regardless of either. Damage layers absorb
// shield first, then armor, then hull, each layer absorbing at
// most what it has remaining.
func (e *Engine) CalculateDamage(weaponKey string, weaponCount int, attacker model.User, defender model.User, techModifiers map[string]float64) (DamageResult, error) {
	spec, ok := model.WeaponSpecFor(weaponKey)
	if !ok {
		return DamageResult{}, fmt.Errorf("unknown weapon %q: %w", weaponKey, model.ErrNotFound)
	}

	total := spec.Damage * weaponCount
	result := DamageResult{Hits: weaponCount}

	remaining := total

	shieldAbsorb := min(remaining, defender.ShieldCurrent)
	result.ShieldDamage = shieldAbsorb
	remaining -= shieldAbsorb

	armorAbsorb := min(remaining, defender.ArmorCurrent)
	result.ArmorDamage = armorAbsorb
	remaining -= armorAbsorb

	hullAbsorb := min(remaining, defender.HullCurrent)
	result.HullDamage = hullAbsorb

	return result, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ApplyDamage :
// Mutates the defender's live stats in the User Cache,
// decrementing shield then armor then hull, never below zero.
// Does not touch the battle's start/end stats snapshots.
func (e *Engine) ApplyDamage(ctx context.Context, defenderID uuid.UUID, dmg DamageResult) (model.User, error) {
	defender, err := e.users.GetByID(ctx, defenderID)
	if err != nil {
		return model.User{}, err
	}

	defender.ShieldCurrent -= dmg.ShieldDamage
	if defender.ShieldCurrent < 0 {
		defender.ShieldCurrent = 0
	}
	defender.ArmorCurrent -= dmg.ArmorDamage
	if defender.ArmorCurrent < 0 {
		defender.ArmorCurrent = 0
	}
	defender.HullCurrent -= dmg.HullDamage
	if defender.HullCurrent < 0 {
		defender.HullCurrent = 0
	}

	if err := e.users.UpdateUser(ctx, defender); err != nil {
		return model.User{}, err
	}

	return defender, nil
}

// UpdateCooldown :
// Sets the next-ready time for a weapon to `now + cooldown`.
func (e *Engine) UpdateCooldown(ctx context.Context, battleID uuid.UUID, side model.Actor, weaponKey string, now int64, cooldown int) error {
	return e.battles.SetWeaponCooldown(ctx, battleID, side, weaponKey, now+int64(cooldown))
}

// ExecuteTurn :
// Resolves exactly one shot: picks `NextShot`, and if it is
// ready now, applies damage, updates cooldowns, appends
// `shot_fired`/`damage_dealt` events plus any layer-break events
// this shot caused. Returns `nil` if no weapon is ready yet.
func (e *Engine) ExecuteTurn(ctx context.Context, b *model.Battle, now int64) (*ShotOutcome, error) {
	side, weaponKey, timeUntilReady, ok := e.NextShot(b, now)
	if !ok || timeUntilReady > 0 {
		return nil, nil
	}

	stats := b.StartStatsFor(side)
	spec := stats.Weapons[weaponKey]
	defenderSide := side.Opponent()
	defenderID := b.UserIDFor(defenderSide)

	defenderBefore, err := e.users.GetByID(ctx, defenderID)
	if err != nil {
		return nil, err
	}

	attackerBefore, err := e.users.GetByID(ctx, b.UserIDFor(side))
	if err != nil {
		return nil, err
	}

	dmg, err := e.CalculateDamage(weaponKey, spec.Count, attackerBefore, defenderBefore, nil)
	if err != nil {
		e.logSkip(weaponKey, err)
		return nil, nil
	}

	hadShield := defenderBefore.ShieldCurrent > 0
	hadArmor := defenderBefore.ArmorCurrent > 0

	defenderAfter, err := e.ApplyDamage(ctx, defenderID, dmg)
	if err != nil {
		return nil, err
	}

	if err := e.battles.UpdateTotalDamage(ctx, b.ID, side, dmg.Total()); err != nil {
		return nil, err
	}
	if err := e.UpdateCooldown(ctx, b.ID, side, weaponKey, now, spec.Cooldown); err != nil {
		return nil, err
	}

	outcome := &ShotOutcome{
		Shooter:        side,
		WeaponKey:      weaponKey,
		Damage:         dmg,
		DefenderHull:   defenderAfter.HullCurrent,
		DefenderArmor:  defenderAfter.ArmorCurrent,
		DefenderShield: defenderAfter.ShieldCurrent,
		ShieldBroke:    hadShield && defenderAfter.ShieldCurrent == 0,
		ArmorBroke:     hadArmor && defenderAfter.ArmorCurrent == 0,
		HullDestroyed:  defenderAfter.HullCurrent == 0,
	}

	if err := e.appendShotEvents(ctx, b.ID, side, outcome, now); err != nil {
		return nil, err
	}

	return outcome, nil
}

// appendShotEvents records the shot and any layer-break
// transitions it caused, in the fixed order the spec names
// them: shot fired, damage dealt, then shield/armor/hull
// breaks.
func (e *Engine) appendShotEvents(ctx context.Context, battleID uuid.UUID, side model.Actor, outcome *ShotOutcome, now int64) error {
	events := []model.BattleEvent{
		{
			Timestamp: now,
			Type:      model.EventShotFired,
			Actor:     side,
			Data: map[string]interface{}{
				"weapon": outcome.WeaponKey,
				"hits":   outcome.Damage.Hits,
			},
		},
		{
			Timestamp: now,
			Type:      model.EventDamageDealt,
			Actor:     side,
			Data: map[string]interface{}{
				"shield": outcome.Damage.ShieldDamage,
				"armor":  outcome.Damage.ArmorDamage,
				"hull":   outcome.Damage.HullDamage,
			},
		},
	}

	if outcome.ShieldBroke {
		events = append(events, model.BattleEvent{Timestamp: now, Type: model.EventShieldBroken, Actor: side.Opponent()})
	}
	if outcome.ArmorBroke {
		events = append(events, model.BattleEvent{Timestamp: now, Type: model.EventArmorBroken, Actor: side.Opponent()})
	}
	if outcome.HullDestroyed {
		events = append(events, model.BattleEvent{Timestamp: now, Type: model.EventHullDestroyed, Actor: side.Opponent()})
	}

	for _, ev := range events {
		if err := e.battles.AddEvent(ctx, battleID, ev); err != nil {
			return err
		}
	}

	return nil
}

// logSkip reports a non-fatal per-weapon error, per the
// propagation policy: engine and scheduler log and skip rather
// than aborting the tick.
func (e *Engine) logSkip(weaponKey string, err error) {
	if e.log == nil {
		return
	}
	e.log.Trace(logger.Warning, "battle-engine", fmt.Sprintf("skipping weapon %q: %v", weaponKey, err))
}

// IsOver :
// Returns `true` iff either participant's hull has reached
// zero.
func (e *Engine) IsOver(ctx context.Context, b *model.Battle) (bool, error) {
	attacker, err := e.users.GetByID(ctx, b.AttackerID)
	if err != nil {
		return false, err
	}
	attackee, err := e.users.GetByID(ctx, b.AttackeeID)
	if err != nil {
		return false, err
	}

	return attacker.HullCurrent <= 0 || attackee.HullCurrent <= 0, nil
}

// Outcome :
// Returns the winner and loser once the battle is over. If
// both hulls reached zero simultaneously, the attacker loses
// per the defender's-last-shot-priority rule.
func (e *Engine) Outcome(ctx context.Context, b *model.Battle) (winnerID, loserID uuid.UUID, err error) {
	attacker, err := e.users.GetByID(ctx, b.AttackerID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	attackee, err := e.users.GetByID(ctx, b.AttackeeID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	attackerDown := attacker.HullCurrent <= 0
	attackeeDown := attackee.HullCurrent <= 0

	if attackerDown {
		return b.AttackeeID, b.AttackerID, nil
	}
	if attackeeDown {
		return b.AttackerID, b.AttackeeID, nil
	}

	return uuid.Nil, uuid.Nil, fmt.Errorf("battle %s is not over", b.ID)
}
