package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAdvancePositionWrapsToroidally(t *testing.T) {
	obj := SpaceObject{
		ID:    uuid.New(),
		Type:  PlayerShip,
		X:     4998,
		Y:     0,
		Speed: 4,
		Angle: 0,
	}

	obj.AdvancePosition(1, 5000, 5000, 1000)

	assert.InDelta(t, 2, obj.X, 1e-6)
	assert.InDelta(t, 0, obj.Y, 1e-6)
	assert.Equal(t, int64(1000), obj.LastPositionUpdateMs)
}

func TestToroidalDistanceWrapsAroundEdges(t *testing.T) {
	d := ToroidalDistance(10, 0, 4990, 0, 5000, 5000)

	assert.InDelta(t, 20, d, 1e-6)
}

func TestToroidalDistanceStraightLine(t *testing.T) {
	d := ToroidalDistance(0, 0, 3, 4, 5000, 5000)

	assert.InDelta(t, 5, d, 1e-6)
}
