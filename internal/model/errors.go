package model

import "fmt"

// ErrNotFound :
// Used to indicate that an entity could not be located
// neither in the owning cache nor in the persistent store.
var ErrNotFound = fmt.Errorf("entity not found")

// ErrConflict :
// Used to indicate that an operation would violate a
// business invariant (e.g. a user is already engaged in
// an active battle, or a battle has already ended).
var ErrConflict = fmt.Errorf("conflicting state")

// ErrStorageError :
// Used to indicate that the underlying persistent store
// failed to serve a request. Wraps the original error from
// the store so the cause is not lost.
var ErrStorageError = fmt.Errorf("storage error")

// ErrInvalidUser :
// Used to indicate that a `User` does not satisfy its basic
// validity constraints (missing identifier, negative resource
// counts, etc).
var ErrInvalidUser = fmt.Errorf("invalid user")

// ErrInvalidSpaceObject :
// Used to indicate that a `SpaceObject` does not satisfy its
// basic validity constraints.
var ErrInvalidSpaceObject = fmt.Errorf("invalid space object")

// ErrInvalidBattle :
// Used to indicate that a `Battle` does not satisfy its basic
// validity constraints.
var ErrInvalidBattle = fmt.Errorf("invalid battle")

// ErrInvalidMessage :
// Used to indicate that a `Message` does not satisfy its
// basic validity constraints.
var ErrInvalidMessage = fmt.Errorf("invalid message")

// ErrUnknownWeapon :
// Used to indicate that a weapon key does not match any entry
// of the static weapon catalog.
var ErrUnknownWeapon = fmt.Errorf("unknown weapon")
