package model

import (
	"fmt"

	"github.com/google/uuid"
)

// WorldSize :
// Describes the dimensions of the toroidal world.
type WorldSize struct {
	Width  float64
	Height float64
}

// World :
// Represents the single, process-wide shared space. Created at
// startup by loading persisted rows, mutated by physics ticks
// and collection events; owned exclusively by the World Cache.
//
// The `Size` defaults to 5000x5000 per configuration.
//
// The `SpaceObjects` lists every object currently in the world.
type World struct {
	Size         WorldSize
	SpaceObjects []*SpaceObject
}

// String :
// Implementation of the `Stringer` interface.
func (w World) String() string {
	return fmt.Sprintf("[size: %.0fx%.0f, objects: %d]", w.Size.Width, w.Size.Height, len(w.SpaceObjects))
}

// FindObject :
// Looks up a space object by id.
//
// Returns the object and `true` if found, or `nil` and `false`
// otherwise.
func (w *World) FindObject(id uuid.UUID) (*SpaceObject, bool) {
	for _, o := range w.SpaceObjects {
		if o.ID == id {
			return o, true
		}
	}

	return nil, false
}
