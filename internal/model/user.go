package model

import (
	"fmt"

	"github.com/google/uuid"
)

// BuildQueueEntry :
// Describes a single pending item in a user's build queue.
//
// The `ItemKey` identifies the tech or ship item being built,
// drawn from the static catalog.
//
// The `ItemType` distinguishes what kind of item this is
// (e.g. "weapon", "defense", "ship") for display purposes.
//
// The `CompletionTime` is the epoch second at which the item
// finishes building.
type BuildQueueEntry struct {
	ItemKey        string `json:"itemKey"`
	ItemType       string `json:"itemType"`
	CompletionTime int64  `json:"completionTime"`
}

// InventoryItem :
// Describes a single item reference stored in one cell of a
// user's inventory grid.
type InventoryItem struct {
	ItemKey  string `json:"itemKey"`
	Quantity int    `json:"quantity"`
}

// User :
// Represents a registered player account. The `User` owns the
// authoritative in-memory state for resources, defenses and
// battle membership; it is mutated exclusively through the
// User Cache (never directly by callers) to keep the cache's
// dirty-set bookkeeping correct.
//
// The `ID` is the stable, unique identifier for this user.
//
// The `Username` is unique and indexed by the User Cache's
// secondary map.
//
// The `Iron` is a non-negative resource accrued over time by
// `UpdateStats`.
//
// The `XP` is monotonically non-decreasing; `Level` is a pure
// function of it (see `Level`).
//
// The `LastUpdated` is the epoch second of the last call to
// `UpdateStats` for this user, used to compute elapsed time for
// resource accrual and defense regeneration.
//
// The `TechTree` is an opaque research graph, passed through
// to the store unchanged; nothing in this package interprets
// its content.
//
// The `TechCounts` maps a tech key (weapon or defense, see
// `catalog.go`) to the number of units the user owns. Owned
// weapon count gates `Engine.ReadyWeapons`; owned defense tech counts
// derive `HullMax`/`ArmorMax`/`ShieldMax`.
//
// The `ShipID` optionally references the user's ship in the
// World, if one has been assigned.
//
// The `HullCurrent`, `ArmorCurrent`, `ShieldCurrent` are
// non-negative and each bounded above by its derived max.
//
// The `DefenseLastRegen` is the epoch second of the last
// defense regeneration tick applied by `UpdateStats`.
//
// The `InBattle` and `CurrentBattleID` track whether this user
// is presently a participant in an active battle; both are
// mutated only by the Battle Cache's `create`/`end` operations.
//
// The `BuildQueue` is an ordered sequence of pending build
// items.
//
// The `Inventory` is a 2D grid of optional item references; a
// `nil` entry denotes an empty cell.
type User struct {
	ID               uuid.UUID
	Username         string
	PasswordHash     string
	Iron             int
	XP               int
	LastUpdated      int64
	TechTree         map[string]interface{}
	TechCounts       map[string]int
	ShipID           *uuid.UUID
	HullCurrent      int
	ArmorCurrent     int
	ShieldCurrent    int
	DefenseLastRegen int64
	InBattle         bool
	CurrentBattleID  *uuid.UUID
	BuildQueue       []BuildQueueEntry
	Inventory        [][]*InventoryItem
}

// Valid :
// Used to determine whether this user satisfies its basic
// validity constraints. Does not check whether the user
// actually exists in the cache or store.
//
// Returns `true` if this user is valid.
func (u *User) Valid() bool {
	if u.ID == uuid.Nil || len(u.Username) == 0 {
		return false
	}
	if u.Iron < 0 || u.XP < 0 {
		return false
	}
	if u.HullCurrent < 0 || u.ArmorCurrent < 0 || u.ShieldCurrent < 0 {
		return false
	}
	if u.HullCurrent > u.HullMax() || u.ArmorCurrent > u.ArmorMax() || u.ShieldCurrent > u.ShieldMax() {
		return false
	}

	return true
}

// String :
// Implementation of the `Stringer` interface.
//
// Returns a string representation of this user.
func (u User) String() string {
	return fmt.Sprintf("[id: %s, username: %q, level: %d, xp: %d]", u.ID, u.Username, Level(u.XP), u.XP)
}

// HullMax :
// Returns the derived maximum hull value for this user, a pure
// function of the `ship_hull` tech count.
func (u *User) HullMax() int {
	return u.TechCounts["ship_hull"] * DefensePerTechCount
}

// ArmorMax :
// Returns the derived maximum armor value for this user, a
// pure function of the `kinetic_armor` tech count.
func (u *User) ArmorMax() int {
	return u.TechCounts["kinetic_armor"] * DefensePerTechCount
}

// ShieldMax :
// Returns the derived maximum shield value for this user, a
// pure function of the `energy_shield` tech count.
func (u *User) ShieldMax() int {
	return u.TechCounts["energy_shield"] * DefensePerTechCount
}

// Resource accrual and defense regeneration rates. Neither rate
// is specified by the row shapes or invariants in the data
// model; the values below are a deliberate, documented design
// decision (see DESIGN.md) rather than a value carried over
// from any example, chosen to be easy to reason about in tests.
const (
	// ironPerSecond is the flat rate at which a user's iron
	// stockpile grows, independent of tech counts.
	ironPerSecond = 1

	// defenseRegenPercentPerSecond is the fraction (in percent) of each
	// defense layer's max value restored per elapsed second,
	// while the user is not engaged in an active battle.
	defenseRegenPercentPerSecond = 1
)

// UpdateStats :
// Advances this user's derived state up to `now`: accrues iron,
// regenerates defenses (only while not in battle), and lets XP
// gains or losses take effect (the level itself is always
// derived on demand by `Level`, so there is nothing to mutate
// for it here beyond bumping `LastUpdated`). Called by the User
// Cache on every read so that values observed by callers are
// always current as of `now`.
//
// The `now` is the epoch second to advance state to. Calling
// `UpdateStats` with a `now` not after `LastUpdated` is a no-op.
func (u *User) UpdateStats(now int64) {
	if u.LastUpdated == 0 {
		u.LastUpdated = now
		u.DefenseLastRegen = now
		return
	}

	elapsed := now - u.LastUpdated
	if elapsed <= 0 {
		return
	}

	u.Iron += int(elapsed) * ironPerSecond

	if !u.InBattle {
		regenElapsed := now - u.DefenseLastRegen
		if regenElapsed > 0 {
			u.HullCurrent = regenLayer(u.HullCurrent, u.HullMax(), regenElapsed)
			u.ArmorCurrent = regenLayer(u.ArmorCurrent, u.ArmorMax(), regenElapsed)
			u.ShieldCurrent = regenLayer(u.ShieldCurrent, u.ShieldMax(), regenElapsed)
			u.DefenseLastRegen = now
		}
	}

	u.LastUpdated = now
}

// regenLayer :
// Restores a single defense layer towards its max value given
// elapsed seconds, never exceeding the max.
func regenLayer(current, max int, elapsedSeconds int64) int {
	if current >= max {
		return current
	}

	gain := int(elapsedSeconds) * max * defenseRegenPercentPerSecond / 100
	current += gain
	if current > max {
		current = max
	}

	return current
}

// Level :
// Returns the level derived from an XP value: the largest L
// such that `sum_{k=1..L-1} (k(k+1)/2)*1000 <= xp`.
func Level(xp int) int {
	level := 1
	total := 0

	for {
		increment := level * (level + 1) / 2 * 1000
		if total+increment > xp {
			return level
		}
		total += increment
		level++
	}
}

// LevelChange :
// Describes the result of `AddXP`: the level before and after
// the addition, so callers can detect a level-up.
type LevelChange struct {
	OldLevel int
	NewLevel int
}

// AddXP :
// Adds `amount` to this user's XP and returns the resulting
// level change. `amount` may be negative only if the caller
// has already validated that XP will not go below zero; this
// function does not clamp it (XP is specified as monotonically
// non-decreasing by normal play, but is not defended against
// misuse here).
func (u *User) AddXP(amount int) LevelChange {
	oldLevel := Level(u.XP)
	u.XP += amount
	newLevel := Level(u.XP)

	return LevelChange{OldLevel: oldLevel, NewLevel: newLevel}
}
