package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCooldownTablePreservesInsertionOrder(t *testing.T) {
	c := NewCooldownTable()

	c.Set("gauss_rifle", 10)
	c.Set("pulse_laser", 5)
	c.Set("auto_turret", 20)

	assert.Equal(t, []string{"gauss_rifle", "pulse_laser", "auto_turret"}, c.Keys())
}

func TestCooldownTableUpdateKeepsOriginalPosition(t *testing.T) {
	c := NewCooldownTable()

	c.Set("gauss_rifle", 10)
	c.Set("pulse_laser", 5)
	c.Set("gauss_rifle", 99)

	assert.Equal(t, []string{"gauss_rifle", "pulse_laser"}, c.Keys())

	v, ok := c.Get("gauss_rifle")
	require.True(t, ok)
	assert.EqualValues(t, 99, v)
}

func TestCooldownTableCloneIsIndependent(t *testing.T) {
	c := NewCooldownTable()
	c.Set("pulse_laser", 1)

	clone := c.Clone()
	clone.Set("pulse_laser", 2)

	orig, _ := c.Get("pulse_laser")
	cloned, _ := clone.Get("pulse_laser")

	assert.EqualValues(t, 1, orig)
	assert.EqualValues(t, 2, cloned)
}
