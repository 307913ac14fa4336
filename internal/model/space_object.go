package model

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// SpaceObjectType :
// Enumerates the recognized kinds of objects living in the
// World.
type SpaceObjectType string

// Defines the recognized space object types.
const (
	PlayerShip SpaceObjectType = "player_ship"
	Asteroid   SpaceObjectType = "asteroid"
	Shipwreck  SpaceObjectType = "shipwreck"
	EscapePod  SpaceObjectType = "escape_pod"
)

// SpaceObject :
// Represents a single object living in the shared toroidal
// World: a player's ship, or one of the collectible types
// spawned by `collected`.
//
// The `ID` is the stable identifier for this object.
//
// The `Type` distinguishes a player ship from a collectible.
//
// The `X`, `Y` are world coordinates, always kept within
// `[0, width)`/`[0, height)` by toroidal wrapping.
//
// The `Speed` is expressed in world units per second.
//
// The `Angle` is expressed in degrees, `[0, 360)`.
//
// The `LastPositionUpdateMs` is the epoch millisecond of the
// last physics step applied to this object (the only
// timestamp in the data model expressed in milliseconds rather
// than seconds, per its column name).
//
// The `PictureID` is an opaque reference to client-side art,
// passed through unchanged.
//
// The `Username` is only set for `PlayerShip` objects and
// names the owning user.
//
// The `OwnerInBattle` mirrors the owning user's `InBattle` flag
// at load time for `PlayerShip` objects, populated by the same
// `space_objects`/`users` join that fills in `Username`. A ship
// whose owner is fighting holds position rather than drifting.
type SpaceObject struct {
	ID                   uuid.UUID
	Type                 SpaceObjectType
	X                    float64
	Y                    float64
	Speed                float64
	Angle                float64
	LastPositionUpdateMs int64
	PictureID            string
	Username             string
	OwnerInBattle        bool
}

// Valid :
// Used to determine whether this space object satisfies its
// basic validity constraints.
//
// Returns `true` if this object is valid.
func (s *SpaceObject) Valid() bool {
	if s.ID == uuid.Nil {
		return false
	}

	switch s.Type {
	case PlayerShip, Asteroid, Shipwreck, EscapePod:
	default:
		return false
	}

	if s.Type != PlayerShip && len(s.Username) > 0 {
		return false
	}

	return s.Speed >= 0
}

// String :
// Implementation of the `Stringer` interface.
func (s SpaceObject) String() string {
	return fmt.Sprintf("[id: %s, type: %s, x: %.2f, y: %.2f]", s.ID, s.Type, s.X, s.Y)
}

// AdvancePosition :
// Advances this object's position by `dtSeconds` along its
// current `Angle` at its current `Speed`, wrapping the result
// toroidally within a `width x height` world. Updates
// `LastPositionUpdateMs` to `nowMs`.
//
// Returns `true` if the object moved beyond a small numerical
// tolerance, which callers use to decide whether to mark the
// World dirty.
func (s *SpaceObject) AdvancePosition(dtSeconds float64, width float64, height float64, nowMs int64) bool {
	if dtSeconds <= 0 || s.Speed == 0 {
		s.LastPositionUpdateMs = nowMs
		return false
	}

	rad := s.Angle * math.Pi / 180
	dx := s.Speed * dtSeconds * math.Cos(rad)
	dy := s.Speed * dtSeconds * math.Sin(rad)

	const tolerance = 1e-9
	moved := math.Abs(dx) > tolerance || math.Abs(dy) > tolerance

	s.X = wrap(s.X+dx, width)
	s.Y = wrap(s.Y+dy, height)
	s.LastPositionUpdateMs = nowMs

	return moved
}

// wrap :
// Wraps a coordinate into `[0, extent)`, handling both
// negative and overflowing values.
func wrap(v float64, extent float64) float64 {
	if extent <= 0 {
		return 0
	}

	v = math.Mod(v, extent)
	if v < 0 {
		v += extent
	}

	return v
}

// ToroidalDistance :
// Computes the minimum Euclidean distance between two points
// in a toroidal `width x height` world, considering the four
// wrapped offsets along each axis.
func ToroidalDistance(x1, y1, x2, y2, width, height float64) float64 {
	dx := math.Abs(x1 - x2)
	if width-dx < dx {
		dx = width - dx
	}

	dy := math.Abs(y1 - y2)
	if height-dy < dy {
		dy = height - dy
	}

	return math.Sqrt(dx*dx + dy*dy)
}
