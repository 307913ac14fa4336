package model

import (
	"fmt"

	"github.com/google/uuid"
)

// EventType :
// Enumerates the recognized kinds of `BattleEvent`.
type EventType string

// Defines the recognized battle event types.
const (
	EventShotFired     EventType = "shot_fired"
	EventDamageDealt   EventType = "damage_dealt"
	EventShieldBroken  EventType = "shield_broken"
	EventArmorBroken   EventType = "armor_broken"
	EventHullDestroyed EventType = "hull_destroyed"
	EventBattleStarted EventType = "battle_started"
	EventBattleEnded   EventType = "battle_ended"
)

// Actor :
// Distinguishes which side of a battle an event or operation
// refers to, avoiding an inheritance-style "attacker"/
// "defender" type pair in favor of a tagged role.
type Actor string

// Defines the two battle roles.
const (
	Attacker Actor = "attacker"
	Attackee Actor = "attackee"
)

// Opponent :
// Returns the other role.
func (a Actor) Opponent() Actor {
	if a == Attacker {
		return Attackee
	}
	return Attacker
}

// BattleEvent :
// A single, append-only entry in a battle's log.
//
// The `Timestamp` is the epoch second the event was recorded.
//
// The `Type` identifies the kind of event.
//
// The `Actor` identifies which side the event pertains to.
//
// The `Data` carries event-specific details (e.g. weapon key,
// damage amount) as a free-form map, mirrored into JSON as-is
// when persisted.
type BattleEvent struct {
	Timestamp int64                  `json:"timestamp"`
	Type      EventType              `json:"type"`
	Actor     Actor                  `json:"actor"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// DefenseLayerStats :
// A `{current, max}` snapshot of one defense layer.
type DefenseLayerStats struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// WeaponStats :
// A snapshot of one weapon's count and static spec, frozen at
// battle creation time so that later tech changes do not alter
// an in-progress battle's weapon availability.
type WeaponStats struct {
	Count    int `json:"count"`
	Damage   int `json:"damage"`
	Cooldown int `json:"cooldown"`
}

// BattleStats :
// An immutable snapshot of one participant's combat-relevant
// state, taken either at battle creation (`*StartStats`) or at
// battle resolution (`*EndStats`).
//
// The `Hull`, `Armor`, `Shield` are each a `{current, max}`
// pair.
//
// The `Weapons` maps weapon key to the owned count and its
// static spec at snapshot time.
type BattleStats struct {
	Hull    DefenseLayerStats     `json:"hull"`
	Armor   DefenseLayerStats     `json:"armor"`
	Shield  DefenseLayerStats     `json:"shield"`
	Weapons map[string]WeaponStats `json:"weapons"`
}

// SnapshotStats :
// Builds a `BattleStats` snapshot from a user's current live
// state, per the Open Question resolution that start-stats
// reflect the user's *current* values rather than their
// tech-derived max.
func SnapshotStats(u *User) BattleStats {
	weapons := make(map[string]WeaponStats)
	for _, key := range WeaponKeys {
		count := u.TechCounts[key]
		if count <= 0 {
			continue
		}
		spec := Weapons[key]
		weapons[key] = WeaponStats{Count: count, Damage: spec.Damage, Cooldown: spec.Cooldown}
	}

	return BattleStats{
		Hull:    DefenseLayerStats{Current: u.HullCurrent, Max: u.HullMax()},
		Armor:   DefenseLayerStats{Current: u.ArmorCurrent, Max: u.ArmorMax()},
		Shield:  DefenseLayerStats{Current: u.ShieldCurrent, Max: u.ShieldMax()},
		Weapons: weapons,
	}
}

// Battle :
// Represents one combat engagement between two users. The
// **only** writer of a `Battle`'s fields is the Battle Cache;
// the Battle Engine and Scheduler read and request mutations
// through it rather than mutating a `Battle` value directly
// once it has been handed to the cache.
//
// The `ID` is the stable identifier for this battle.
//
// The `AttackerID`, `AttackeeID` identify the two participants.
//
// The `BattleStartTime` is the epoch second the battle was
// created.
//
// The `BattleEndTime` is `nil` while the battle is active; once
// set it never changes (write-once).
//
// The `WinnerID`, `LoserID` are `nil` while active.
//
// The `AttackerWeaponCooldowns`, `AttackeeWeaponCooldowns` map
// weapon key to the next epoch second the weapon may fire.
//
// The `AttackerStartStats`, `AttackeeStartStats` are immutable
// snapshots taken at creation; they never change afterwards.
//
// The `AttackerEndStats`, `AttackeeEndStats` are `nil` until the
// battle ends; once set (write-once) they never change again.
//
// The `BattleLog` is an append-only sequence of events.
//
// The `AttackerTotalDamage`, `AttackeeTotalDamage` are monotonic
// counters of damage dealt by each side.
type Battle struct {
	ID                      uuid.UUID
	AttackerID              uuid.UUID
	AttackeeID              uuid.UUID
	BattleStartTime         int64
	BattleEndTime           *int64
	WinnerID                *uuid.UUID
	LoserID                 *uuid.UUID
	AttackerWeaponCooldowns *CooldownTable
	AttackeeWeaponCooldowns *CooldownTable
	AttackerStartStats      BattleStats
	AttackeeStartStats      BattleStats
	AttackerEndStats        *BattleStats
	AttackeeEndStats        *BattleStats
	BattleLog               []BattleEvent
	AttackerTotalDamage     int
	AttackeeTotalDamage     int
}

// Valid :
// Used to determine whether this battle satisfies its basic
// validity constraints.
func (b *Battle) Valid() bool {
	if b.ID == uuid.Nil || b.AttackerID == uuid.Nil || b.AttackeeID == uuid.Nil {
		return false
	}
	if b.AttackerID == b.AttackeeID {
		return false
	}

	return true
}

// String :
// Implementation of the `Stringer` interface.
func (b Battle) String() string {
	status := "active"
	if b.BattleEndTime != nil {
		status = "ended"
	}
	return fmt.Sprintf("[id: %s, attacker: %s, attackee: %s, %s]", b.ID, b.AttackerID, b.AttackeeID, status)
}

// IsActive :
// Returns `true` iff `BattleEndTime` has not been set yet.
func (b *Battle) IsActive() bool {
	return b.BattleEndTime == nil
}

// CooldownsFor :
// Returns the cooldown table for the given side.
func (b *Battle) CooldownsFor(side Actor) *CooldownTable {
	if side == Attacker {
		return b.AttackerWeaponCooldowns
	}
	return b.AttackeeWeaponCooldowns
}

// StartStatsFor :
// Returns the start-stats snapshot for the given side.
func (b *Battle) StartStatsFor(side Actor) BattleStats {
	if side == Attacker {
		return b.AttackerStartStats
	}
	return b.AttackeeStartStats
}

// UserIDFor :
// Returns the participant id for the given side.
func (b *Battle) UserIDFor(side Actor) uuid.UUID {
	if side == Attacker {
		return b.AttackerID
	}
	return b.AttackeeID
}

// AddTotalDamage :
// Adds `delta` to the running total-damage counter for the
// given side.
func (b *Battle) AddTotalDamage(side Actor, delta int) {
	if side == Attacker {
		b.AttackerTotalDamage += delta
	} else {
		b.AttackeeTotalDamage += delta
	}
}

// AppendEvent :
// Appends an event to the battle log.
func (b *Battle) AppendEvent(e BattleEvent) {
	b.BattleLog = append(b.BattleLog, e)
}
