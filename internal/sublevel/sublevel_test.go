package sublevel

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/annel0/cavegen/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalSpec() *Spec {
	return &Spec{
		Name:      "mini",
		MaxUnits:  3,
		StartUnit: "start",
		Units: []UnitTemplate{
			{Name: "start", Kind: KindRoom, Width: 2, Height: 2, Rotations: []int{0},
				Doors: []Door{{Dir: North, Offset: 0}}},
			{Name: "hall", Kind: KindHallway, Width: 1, Height: 2, Weight: 5, Rotations: []int{0, 1, 2, 3},
				Doors: []Door{{Dir: North, Offset: 0}, {Dir: South, Offset: 0}}},
		},
	}
}

func TestDir(t *testing.T) {
	assert.Equal(t, South, North.Opposite())
	assert.Equal(t, West, East.Opposite())
	assert.Equal(t, East, North.Rotate(1))
	assert.Equal(t, North, West.Rotate(1))
	assert.Equal(t, South, West.Rotate(3))
	assert.Equal(t, West, North.Rotate(-1))
	assert.Equal(t, "E", East.String())
}

func TestLimits_Resolved(t *testing.T) {
	l := Limits{UnitAttempts: 4}.Resolved()
	assert.Equal(t, Limits{DoorAttempts: DefaultDoorAttempts, UnitAttempts: 4, LayoutAttempts: DefaultLayoutAttempts}, l)
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, Validate(minimalSpec()))
}

func TestValidate_WeightAtCap(t *testing.T) {
	s := minimalSpec()
	s.Units[1].Weight = MaxTotalWeight
	assert.NoError(t, Validate(s))
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(s *Spec)
		field  string
	}{
		{"Empty name", func(s *Spec) { s.Name = "" }, "name"},
		{"Zero budget", func(s *Spec) { s.MaxUnits = 0 }, "max_units"},
		{"Unknown start", func(s *Spec) { s.StartUnit = "nope" }, "start_unit"},
		{"Doorless start", func(s *Spec) { s.Units[0].Doors = nil }, "start_unit"},
		{"Unknown required", func(s *Spec) { s.RequiredUnits = []string{"boss"} }, "required_units[0]"},
		{"Doorless required", func(s *Spec) {
			s.Units = append(s.Units, UnitTemplate{Name: "boss", Kind: KindRoom, Width: 1, Height: 1, Rotations: []int{0}})
			s.RequiredUnits = []string{"boss"}
		}, "required_units[0]"},
		{"Too many required", func(s *Spec) {
			s.MaxUnits = 1
			s.Units[0].Doors = nil
			s.RequiredUnits = []string{"hall"}
		}, "required_units"},
		{"Duplicate unit", func(s *Spec) { s.Units[1].Name = "start" }, "units[1].name"},
		{"Bad size", func(s *Spec) { s.Units[1].Width = 0 }, "units[1]"},
		{"Bad kind", func(s *Spec) { s.Units[1].Kind = "cave" }, "units[1]"},
		{"Bad rotation", func(s *Spec) { s.Units[1].Rotations = []int{4} }, "units[1]"},
		{"Door offset out of side", func(s *Spec) { s.Units[1].Doors[0].Offset = 1 }, "units[1]"},
		{"Duplicate door", func(s *Spec) { s.Units[1].Doors[1] = s.Units[1].Doors[0] }, "units[1]"},
		{"Spawn outside", func(s *Spec) {
			s.Units[1].Spawns = []SpawnPoint{{Group: GroupEasy, Pos: vec.V3[float32](500, 0, 10)}}
		}, "units[1]"},
		{"Exit without exit points", func(s *Spec) { s.Exit = true }, "exit"},
		{"Enemy in start group", func(s *Spec) {
			s.Enemies = []EnemyEntry{{Name: "x", Group: GroupStart, Fill: 1, Min: 1, Max: 1}}
		}, "enemies[0]"},
		{"Enemy bad range", func(s *Spec) {
			s.Enemies = []EnemyEntry{{Name: "x", Group: GroupEasy, Fill: 1, Min: 3, Max: 2}}
		}, "enemies[0]"},
		{"Gate without life", func(s *Spec) { s.Gates = []GateEntry{{Name: "gate", Fill: 1}} }, "gates[0]"},
		{"Negative limits", func(s *Spec) { s.Limits.DoorAttempts = -1 }, "limits"},
		// сумма 2^32 переполнила бы uint32 в IndexWeight и дала ноль
		{"Total weight overflow", func(s *Spec) {
			s.Units[0].Weight = 1 << 31
			s.Units[1].Weight = 1 << 31
		}, "units"},
		{"Total weight over cap", func(s *Spec) {
			s.Units[0].Weight = MaxTotalWeight
			s.Units[1].Weight = 1
		}, "units"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := minimalSpec()
			tc.mutate(s)

			err := Validate(s)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSpec))

			var specErr *SpecError
			require.True(t, errors.As(err, &specErr))
			assert.Equal(t, tc.field, specErr.Field)
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	assert.ErrorIs(t, Validate(nil), ErrInvalidSpec)
}

func TestLoadFile(t *testing.T) {
	spec, err := LoadFile(filepath.Join("testdata", "valid.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "hole-1", spec.Name)
	assert.Equal(t, 10, spec.MaxUnits)
	assert.True(t, spec.Exit)
	assert.Equal(t, float32(300), spec.MinEnemyDistance)
	require.Len(t, spec.Units, 6)

	start, ok := spec.Unit("start_3x3")
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2, 3}, start.Rotations, "повороты по умолчанию")
	assert.Equal(t, vec.V3[float32](255, 0, 255), start.Spawns[0].Pos)

	room, _ := spec.Unit("room_4x4")
	assert.Equal(t, float32(40), room.Spawns[0].Radius)
	assert.Equal(t, 3, room.Limit)

	// min/max не заданы: один враг
	assert.Equal(t, 1, spec.Enemies[1].Min)
	assert.Equal(t, 1, spec.Enemies[1].Max)
	assert.Equal(t, Limits{}, spec.Limits)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join("testdata", "missing.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = LoadFile(filepath.Join("testdata", "unknown_field.yaml"))
	assert.Error(t, err, "неизвестные поля отвергаются")

	_, err = LoadFile(filepath.Join("testdata", "bad_door.yaml"))
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestLoadDir(t *testing.T) {
	catalog, err := LoadDir(filepath.Join("testdata", "dir"))
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha", "beta"}, catalog.Names())
	beta, ok := catalog.Get("beta")
	require.True(t, ok)
	assert.Equal(t, KindRoom, beta.Units[0].Kind, "тип по умолчанию")

	_, ok = catalog.Get("gamma")
	assert.False(t, ok)
}

func TestCatalog_Add(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Add(minimalSpec()))
	assert.Error(t, c.Add(minimalSpec()), "повторное имя")

	bad := minimalSpec()
	bad.Name = "other"
	bad.MaxUnits = 0
	assert.ErrorIs(t, c.Add(bad), ErrInvalidSpec)
	assert.Equal(t, 1, c.Len())
}
