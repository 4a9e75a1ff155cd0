package layout

import (
	"testing"

	"github.com/annel0/cavegen/internal/sublevel"
	"github.com/annel0/cavegen/internal/vec"
	"github.com/stretchr/testify/assert"
)

func TestRotatedDoor(t *testing.T) {
	cases := []struct {
		name       string
		door       sublevel.Door
		w, h, rot  int
		wantDir    sublevel.Dir
		wantAnchor vec.Vec2[int]
	}{
		{"North unrotated", door(sublevel.North, 0), 1, 1, 0, sublevel.North, vec.V2(0, 0)},
		{"North to East", door(sublevel.North, 0), 1, 1, 1, sublevel.East, vec.V2(1, 0)},
		{"West unrotated", door(sublevel.West, 2), 2, 3, 0, sublevel.West, vec.V2(0, 2)},
		{"South unrotated", door(sublevel.South, 1), 3, 2, 0, sublevel.South, vec.V2(1, 2)},
		{"East to South", door(sublevel.East, 1), 3, 2, 1, sublevel.South, vec.V2(0, 3)},
		{"East to West", door(sublevel.East, 1), 3, 2, 2, sublevel.West, vec.V2(0, 0)},
		{"East to North", door(sublevel.East, 1), 3, 2, 3, sublevel.North, vec.V2(1, 0)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir, anchor := rotatedDoor(tc.door, tc.w, tc.h, tc.rot)
			assert.Equal(t, tc.wantDir, dir)
			assert.Equal(t, tc.wantAnchor, anchor)
		})
	}
}

func TestRotatedDoor_FullTurn(t *testing.T) {
	d := door(sublevel.South, 2)
	dir0, a0 := rotatedDoor(d, 4, 3, 0)
	dir4, a4 := rotatedDoor(d, 4, 3, 4)
	assert.Equal(t, dir0, dir4)
	assert.Equal(t, a0, a4, "четыре поворота возвращают дверь на место")
}

func TestRotatedSpawn(t *testing.T) {
	pos := vec.V3[float32](300, 12, 50)

	assert.Equal(t, pos, rotatedSpawn(pos, 2, 1, 0))
	assert.Equal(t, vec.V3[float32](120, 12, 300), rotatedSpawn(pos, 2, 1, 1))
	assert.Equal(t, vec.V3[float32](40, 12, 120), rotatedSpawn(pos, 2, 1, 2))
}

func TestOutsideCell(t *testing.T) {
	anchor := vec.V2(3, 4)
	assert.Equal(t, vec.V2(3, 3), PlacedDoor{Dir: sublevel.North, Anchor: anchor}.OutsideCell())
	assert.Equal(t, vec.V2(3, 4), PlacedDoor{Dir: sublevel.East, Anchor: anchor}.OutsideCell())
	assert.Equal(t, vec.V2(3, 4), PlacedDoor{Dir: sublevel.South, Anchor: anchor}.OutsideCell())
	assert.Equal(t, vec.V2(2, 4), PlacedDoor{Dir: sublevel.West, Anchor: anchor}.OutsideCell())
}

func TestPlace(t *testing.T) {
	tmpl := &sublevel.UnitTemplate{
		Name: "bend", Kind: sublevel.KindHallway, Width: 3, Height: 2,
		Doors: []sublevel.Door{door(sublevel.North, 0), door(sublevel.East, 1)},
	}

	u := place(tmpl, 1, vec.V2(10, -5))
	assert.Equal(t, 2, u.Width)
	assert.Equal(t, 3, u.Height)
	assert.Equal(t, sublevel.East, u.Doors[0].Dir)
	assert.Equal(t, vec.V2(12, -5), u.Doors[0].Anchor)
	assert.Equal(t, sublevel.South, u.Doors[1].Dir)
	assert.Equal(t, vec.V2(10, -2), u.Doors[1].Anchor)
	assert.True(t, u.Doors[0].Open())
}

func TestWorldMidpoint(t *testing.T) {
	n := PlacedDoor{Dir: sublevel.North, Anchor: vec.V2(1, 2)}
	w := PlacedDoor{Dir: sublevel.West, Anchor: vec.V2(1, 2)}
	assert.Equal(t, vec.V3[float32](255, 0, 340), n.WorldMidpoint())
	assert.Equal(t, vec.V3[float32](170, 0, 425), w.WorldMidpoint())
}
