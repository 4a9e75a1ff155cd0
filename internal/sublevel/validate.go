package sublevel

import (
	"errors"
	"fmt"
)

// MaxTotalWeight верхняя граница суммы весов шаблонов. Выше неё сумма в
// rng.IndexWeight может переполнить uint32, а бросок через float32 перестает
// различать соседние значения.
const MaxTotalWeight = 1 << 24

// ErrInvalidSpec: общая ошибка структурно некорректного описания подуровня
var ErrInvalidSpec = errors.New("invalid sublevel spec")

// SpecError указывает поле, из-за которого описание отвергнуто
type SpecError struct {
	Sublevel string
	Field    string
	Reason   string
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("sublevel %q: %s: %s", e.Sublevel, e.Field, e.Reason)
}

// Unwrap позволяет проверять errors.Is(err, ErrInvalidSpec)
func (e *SpecError) Unwrap() error {
	return ErrInvalidSpec
}

// Validate проверяет описание до начала генерации. Возвращает первую
// найденную ошибку как *SpecError.
func Validate(s *Spec) error {
	if s == nil {
		return &SpecError{Field: "spec", Reason: "nil"}
	}

	fail := func(field, format string, args ...interface{}) error {
		return &SpecError{Sublevel: s.Name, Field: field, Reason: fmt.Sprintf(format, args...)}
	}

	if s.Name == "" {
		return fail("name", "empty")
	}
	if s.MaxUnits < 1 {
		return fail("max_units", "must be at least 1, got %d", s.MaxUnits)
	}
	if s.MaxEnemies < 0 {
		return fail("max_enemies", "negative")
	}
	if s.MinEnemyDistance < 0 {
		return fail("min_enemy_distance", "negative")
	}
	if s.Limits.DoorAttempts < 0 || s.Limits.UnitAttempts < 0 || s.Limits.LayoutAttempts < 0 {
		return fail("limits", "negative retry budget")
	}
	if len(s.Units) == 0 {
		return fail("units", "no unit templates")
	}

	seen := make(map[string]bool, len(s.Units))
	var total uint64
	for i := range s.Units {
		u := &s.Units[i]
		if err := validateUnit(u); err != "" {
			return fail(fmt.Sprintf("units[%d]", i), "%s", err)
		}
		if seen[u.Name] {
			return fail(fmt.Sprintf("units[%d].name", i), "duplicate %q", u.Name)
		}
		seen[u.Name] = true
		total += uint64(u.Weight)
	}
	if total > MaxTotalWeight {
		return fail("units", "total weight %d exceeds %d", total, MaxTotalWeight)
	}

	start, ok := s.Unit(s.StartUnit)
	if !ok {
		return fail("start_unit", "unknown unit %q", s.StartUnit)
	}
	if s.MaxUnits > 1 && len(start.Doors) == 0 {
		return fail("start_unit", "%q has no doors but max_units is %d", start.Name, s.MaxUnits)
	}

	required := make(map[string]bool, len(s.RequiredUnits))
	for i, name := range s.RequiredUnits {
		u, ok := s.Unit(name)
		if !ok {
			return fail(fmt.Sprintf("required_units[%d]", i), "unknown unit %q", name)
		}
		if required[name] {
			return fail(fmt.Sprintf("required_units[%d]", i), "duplicate %q", name)
		}
		required[name] = true
		if name != s.StartUnit && len(u.Doors) == 0 {
			return fail(fmt.Sprintf("required_units[%d]", i), "%q has no doors", name)
		}
	}
	missing := len(required)
	if required[s.StartUnit] {
		missing--
	}
	if missing > s.MaxUnits-1 {
		return fail("required_units", "%d required units do not fit into max_units %d", missing, s.MaxUnits)
	}

	if s.Exit {
		hasExit := false
		for i := range s.Units {
			if s.Units[i].HasGroup(GroupExit) {
				hasExit = true
				break
			}
		}
		if !hasExit {
			return fail("exit", "no unit has an exit spawn point")
		}
	}

	for i, e := range s.Enemies {
		field := fmt.Sprintf("enemies[%d]", i)
		switch {
		case e.Name == "":
			return fail(field, "empty name")
		case !e.Group.Valid() || e.Group == GroupStart || e.Group == GroupExit:
			return fail(field, "group %q cannot hold enemies", e.Group)
		case e.Fill < 0:
			return fail(field, "negative fill")
		case e.Min < 1 || e.Max < e.Min:
			return fail(field, "bad count range [%d, %d]", e.Min, e.Max)
		}
	}
	for i, t := range s.Treasures {
		if t.Name == "" || t.Fill < 0 {
			return fail(fmt.Sprintf("treasures[%d]", i), "empty name or negative fill")
		}
	}
	for i, g := range s.Gates {
		if g.Name == "" || g.Fill < 0 || g.Life <= 0 {
			return fail(fmt.Sprintf("gates[%d]", i), "empty name, negative fill or non-positive life")
		}
	}

	return nil
}

// validateUnit возвращает описание первой проблемы шаблона или пустую строку
func validateUnit(u *UnitTemplate) string {
	if u.Name == "" {
		return "empty name"
	}
	if !u.Kind.Valid() {
		return fmt.Sprintf("%s: unknown kind %q", u.Name, u.Kind)
	}
	if u.Width <= 0 || u.Height <= 0 {
		return fmt.Sprintf("%s: non-positive size %dx%d", u.Name, u.Width, u.Height)
	}
	if u.Limit < 0 {
		return fmt.Sprintf("%s: negative limit", u.Name)
	}
	if len(u.Rotations) == 0 {
		return fmt.Sprintf("%s: no allowed rotations", u.Name)
	}
	var rotSeen [4]bool
	for _, r := range u.Rotations {
		if r < 0 || r > 3 {
			return fmt.Sprintf("%s: rotation %d out of range", u.Name, r)
		}
		if rotSeen[r] {
			return fmt.Sprintf("%s: duplicate rotation %d", u.Name, r)
		}
		rotSeen[r] = true
	}

	doorSeen := make(map[Door]bool, len(u.Doors))
	for _, d := range u.Doors {
		if d.Dir > West {
			return fmt.Sprintf("%s: door direction %d out of range", u.Name, d.Dir)
		}
		side := u.Width
		if d.Dir == East || d.Dir == West {
			side = u.Height
		}
		if d.Offset < 0 || d.Offset >= side {
			return fmt.Sprintf("%s: door offset %d outside side of %d", u.Name, d.Offset, side)
		}
		if doorSeen[d] {
			return fmt.Sprintf("%s: duplicate door %s%d", u.Name, d.Dir, d.Offset)
		}
		doorSeen[d] = true
	}

	maxX := float32(u.Width * CellSize)
	maxZ := float32(u.Height * CellSize)
	for _, sp := range u.Spawns {
		if !sp.Group.Valid() {
			return fmt.Sprintf("%s: unknown spawn group %q", u.Name, sp.Group)
		}
		if sp.Radius < 0 {
			return fmt.Sprintf("%s: negative spawn radius", u.Name)
		}
		if sp.Pos[0] < 0 || sp.Pos[0] > maxX || sp.Pos[2] < 0 || sp.Pos[2] > maxZ {
			return fmt.Sprintf("%s: spawn point %v outside the unit", u.Name, sp.Pos)
		}
	}
	return ""
}
