package entity

import (
	"testing"

	"arxcore/core/address"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEquipment(t *testing.T, path string) *Entity {
	t.Helper()
	e := New(address.MustParse(path), KindEquipment)
	e.Status = StatusNormal
	e.Position = &Point3D{X: 1, Y: 2, Z: 0}
	return e
}

func TestEntity_Validate(t *testing.T) {
	e := newEquipment(t, "/hq-tower/floor-3/room-301/electrical/outlet-2b")
	require.NoError(t, e.Validate())

	// Equipment without a position is malformed.
	e.Position = nil
	assert.Error(t, e.Validate())

	// Unknown status is malformed.
	e = newEquipment(t, "/hq-tower/floor-3/room-301/electrical/outlet-2b")
	e.Status = "on-fire"
	assert.Error(t, e.Validate())

	// Rooms do not require a position.
	room := New(address.MustParse("/hq-tower/floor-3/room-301"), KindRoom)
	assert.NoError(t, room.Validate())
}

func TestEntity_Clone(t *testing.T) {
	e := newEquipment(t, "/hq-tower/floor-3/room-301/electrical/outlet-2b")
	e.Properties["amperage"] = "15"

	cp := e.Clone()
	cp.Properties["amperage"] = "20"
	cp.Position.X = 99

	assert.Equal(t, "15", e.Properties["amperage"])
	assert.Equal(t, 1.0, e.Position.X)
}
