package model

// CooldownTable :
// Maps a weapon key to the epoch time (in seconds) at which it
// becomes ready to fire again, while remembering the order in
// which keys were first inserted. A bare Go map would satisfy
// the same lookups but its iteration order is explicitly
// unspecified by the language, which would make the
// attacker-first/first-in-iteration-order tie-break rule for
// simultaneous ready weapons non-reproducible and untestable.
// This type keeps that iteration order stable instead.
type CooldownTable struct {
	order []string
	index map[string]int
	times map[string]int64
}

// NewCooldownTable :
// Creates an empty cooldown table.
func NewCooldownTable() *CooldownTable {
	return &CooldownTable{
		index: make(map[string]int),
		times: make(map[string]int64),
	}
}

// Set :
// Records the next-ready time for a weapon key. The first call
// for a given key fixes its position in the iteration order;
// subsequent calls only update the stored time.
//
// The `key` identifies the weapon.
//
// The `nextReadyTime` is the epoch second at which the weapon
// becomes ready again.
func (c *CooldownTable) Set(key string, nextReadyTime int64) {
	if _, ok := c.index[key]; !ok {
		c.index[key] = len(c.order)
		c.order = append(c.order, key)
	}
	c.times[key] = nextReadyTime
}

// Get :
// Retrieves the next-ready time for a weapon key.
//
// Returns the stored time and `true` if `key` was previously
// set, or `0` and `false` otherwise.
func (c *CooldownTable) Get(key string) (int64, bool) {
	t, ok := c.times[key]
	return t, ok
}

// Keys :
// Returns the weapon keys in insertion order.
func (c *CooldownTable) Keys() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len :
// Returns the number of weapon keys currently tracked.
func (c *CooldownTable) Len() int {
	return len(c.order)
}

// Clone :
// Returns a deep copy of this table, keeping its insertion
// order.
func (c *CooldownTable) Clone() *CooldownTable {
	clone := NewCooldownTable()
	for _, k := range c.order {
		clone.Set(k, c.times[k])
	}
	return clone
}

// ToMap :
// Exports this table as a plain `map[string]int64`, suitable
// for JSON marshalling into the `*_weapon_cooldowns` columns.
// Insertion order is lost in the process, matching the store's
// row shape which defines cooldowns as a literal JSON mapping.
func (c *CooldownTable) ToMap() map[string]int64 {
	out := make(map[string]int64, len(c.order))
	for _, k := range c.order {
		out[k] = c.times[k]
	}
	return out
}

// CooldownTableFromMap :
// Builds a `CooldownTable` from a plain map, e.g. when
// hydrating a `Battle` from a store row. Since a Go map has no
// defined iteration order, the keys are sorted to at least
// produce a deterministic (if arbitrary) order across repeated
// loads of the same row.
func CooldownTableFromMap(m map[string]int64) *CooldownTable {
	t := NewCooldownTable()
	for _, k := range sortedKeys(m) {
		t.Set(k, m[k])
	}
	return t
}

// sortedKeys :
// Small helper returning the keys of a `map[string]int64` in
// lexicographic order.
func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}

	return keys
}
