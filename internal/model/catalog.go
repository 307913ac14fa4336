package model

// WeaponSpec :
// Describes the static, read-only characteristics of a weapon
// tech: how much damage a single shot deals and how long the
// weapon must wait before it can fire again.
//
// The `Damage` is the amount subtracted from the defender's
// current defense layer per hit, before any modifier.
//
// The `Cooldown` is expressed in seconds and is the delay the
// engine waits after a shot before the weapon becomes ready
// again (see `Engine.UpdateCooldown`).
type WeaponSpec struct {
	Damage   int
	Cooldown int
}

// WeaponKeys lists, in a fixed order, every weapon tech key
// recognized by the engine. The order only matters for
// deterministic iteration where a map would otherwise be used;
// actual tie-break iteration order for a given user's owned
// weapons is governed by `CooldownTable`, not by this slice.
var WeaponKeys = []string{
	"pulse_laser",
	"auto_turret",
	"plasma_lance",
	"gauss_rifle",
	"photon_torpedo",
	"rocket_launcher",
}

// Weapons is the static weapon catalog. The tech tree and item
// catalog content is explicitly out of scope to persist or
// edit; this in-memory table gives the engine concrete numbers
// to compute damage and cooldowns with. Values are chosen to be
// easy to reason about in tests (round numbers, clearly
// distinguishable cooldowns) rather than balanced for play.
var Weapons = map[string]WeaponSpec{
	"pulse_laser":     {Damage: 10, Cooldown: 2},
	"auto_turret":     {Damage: 15, Cooldown: 3},
	"plasma_lance":    {Damage: 40, Cooldown: 8},
	"gauss_rifle":     {Damage: 25, Cooldown: 5},
	"photon_torpedo":  {Damage: 80, Cooldown: 15},
	"rocket_launcher": {Damage: 50, Cooldown: 10},
}

// DefenseKeys lists, in a fixed order, the three defense tech
// keys that determine the derived max value of each of a
// user's defense layers.
var DefenseKeys = []string{
	"ship_hull",
	"kinetic_armor",
	"energy_shield",
}

// DefensePerTechCount is the number of defense points granted
// per owned unit of the corresponding tech, e.g.
// `hullMax = techCounts["ship_hull"] * DefensePerTechCount`.
const DefensePerTechCount = 100

// ECMModifierKey is the tech key reserved for the accuracy/ECM
// modifier referenced by `Engine.CalculateDamage`'s `techModifiers`
// parameter. Not yet wired to any concrete effect: `hits`
// always equals `weaponCount` today (neutral modifiers), but
// the key is reserved so a future tuning pass has a home.
const ECMModifierKey = "missile_jammer"

// WeaponSpecFor :
// Looks up the static spec for a weapon key.
//
// Returns the weapon spec and `true` if `key` is recognized,
// or the zero value and `false` otherwise.
func WeaponSpecFor(key string) (WeaponSpec, bool) {
	spec, ok := Weapons[key]
	return spec, ok
}
