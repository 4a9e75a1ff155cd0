package layout

import (
	"github.com/annel0/cavegen/internal/sublevel"
	"github.com/annel0/cavegen/internal/vec"
)

func sp(group sublevel.Group, x, z, radius float32) sublevel.SpawnPoint {
	return sublevel.SpawnPoint{Group: group, Pos: vec.V3(x, 0, z), Radius: radius}
}

func door(dir sublevel.Dir, offset int) sublevel.Door {
	return sublevel.Door{Dir: dir, Offset: offset}
}

var allRotations = []int{0, 1, 2, 3}

// specA небольшой подуровень с выходом, врагами, сокровищами и воротами
func specA() *sublevel.Spec {
	return &sublevel.Spec{
		Name:             "test-1",
		MaxUnits:         10,
		StartUnit:        "start_3x3",
		RequiredUnits:    []string{"exit_2x2"},
		Exit:             true,
		MinEnemyDistance: 300,
		MaxEnemies:       6,
		Enemies: []sublevel.EnemyEntry{
			{Name: "bulborb", Group: sublevel.GroupEasy, Fill: 4, Min: 1, Max: 2},
			{Name: "spider", Group: sublevel.GroupHard, Fill: 1, Min: 1, Max: 1},
		},
		Treasures: []sublevel.TreasureEntry{{Name: "bottle_cap", Fill: 2}},
		Gates:     []sublevel.GateEntry{{Name: "gate", Life: 1500, Fill: 1}},
		Units: []sublevel.UnitTemplate{
			{
				Name: "start_3x3", Kind: sublevel.KindRoom, Width: 3, Height: 3,
				Rotations: allRotations,
				Doors:     []sublevel.Door{door(sublevel.North, 1), door(sublevel.East, 1), door(sublevel.South, 1), door(sublevel.West, 1)},
				Spawns:    []sublevel.SpawnPoint{sp(sublevel.GroupStart, 255, 255, 0), sp(sublevel.GroupTreasure, 85, 85, 0)},
			},
			{
				Name: "hall_1x2", Kind: sublevel.KindHallway, Width: 1, Height: 2, Weight: 30,
				Rotations: allRotations,
				Doors:     []sublevel.Door{door(sublevel.North, 0), door(sublevel.South, 0)},
			},
			{
				Name: "bend_2x2", Kind: sublevel.KindHallway, Width: 2, Height: 2, Weight: 15,
				Rotations: allRotations,
				Doors:     []sublevel.Door{door(sublevel.North, 0), door(sublevel.East, 1)},
			},
			{
				Name: "room_4x4", Kind: sublevel.KindRoom, Width: 4, Height: 4, Weight: 12, Limit: 3,
				Rotations: allRotations,
				Doors:     []sublevel.Door{door(sublevel.North, 1), door(sublevel.East, 2), door(sublevel.South, 2), door(sublevel.West, 1)},
				Spawns: []sublevel.SpawnPoint{
					sp(sublevel.GroupEasy, 170, 170, 40),
					sp(sublevel.GroupEasy, 510, 510, 40),
					sp(sublevel.GroupHard, 340, 340, 0),
					sp(sublevel.GroupTreasure, 600, 100, 0),
				},
			},
			{
				Name: "exit_2x2", Kind: sublevel.KindRoom, Width: 2, Height: 2, Weight: 6, Limit: 1,
				Rotations: allRotations,
				Doors:     []sublevel.Door{door(sublevel.South, 0)},
				Spawns:    []sublevel.SpawnPoint{sp(sublevel.GroupExit, 170, 170, 0), sp(sublevel.GroupEasy, 60, 60, 20)},
			},
			{
				Name: "cap_1x1", Kind: sublevel.KindCap, Width: 1, Height: 1, Weight: 4,
				Rotations: allRotations,
				Doors:     []sublevel.Door{door(sublevel.South, 0)},
				Spawns:    []sublevel.SpawnPoint{sp(sublevel.GroupTreasure, 85, 85, 10)},
			},
		},
	}
}

// singleUnitSpec бюджет в один юнит без дверей и спавнов
func singleUnitSpec() *sublevel.Spec {
	return &sublevel.Spec{
		Name:      "single",
		MaxUnits:  1,
		StartUnit: "lonely",
		Units: []sublevel.UnitTemplate{
			{Name: "lonely", Kind: sublevel.KindRoom, Width: 2, Height: 2, Rotations: []int{0}},
		},
	}
}

// impossibleSpec требует юнит с нулевым весом: его никогда не выбрать
func impossibleSpec() *sublevel.Spec {
	return &sublevel.Spec{
		Name:          "impossible",
		MaxUnits:      2,
		StartUnit:     "start",
		RequiredUnits: []string{"boss"},
		Units: []sublevel.UnitTemplate{
			{Name: "start", Kind: sublevel.KindRoom, Width: 1, Height: 1, Rotations: allRotations,
				Doors: []sublevel.Door{door(sublevel.North, 0)}},
			{Name: "filler", Kind: sublevel.KindHallway, Width: 1, Height: 1, Weight: 10, Rotations: allRotations,
				Doors: []sublevel.Door{door(sublevel.North, 0), door(sublevel.South, 0)}},
			{Name: "boss", Kind: sublevel.KindRoom, Width: 2, Height: 2, Weight: 0, Rotations: allRotations,
				Doors: []sublevel.Door{door(sublevel.South, 0)}},
		},
	}
}
