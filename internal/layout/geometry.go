package layout

import (
	"github.com/annel0/cavegen/internal/sublevel"
	"github.com/annel0/cavegen/internal/vec"
)

// rotateCW поворачивает точку рамки w×h на четверть по часовой стрелке
// (x вправо, z вниз). Возвращает точку в рамке h×w.
func rotateCW[T vec.Number](p vec.Vec2[T], h T) vec.Vec2[T] {
	return vec.V2(h-p[1], p[0])
}

// doorSegment возвращает концы отрезка двери в неповёрнутой рамке w×h
func doorSegment(d sublevel.Door, w, h int) (vec.Vec2[int], vec.Vec2[int]) {
	o := d.Offset
	switch d.Dir {
	case sublevel.North:
		return vec.V2(o, 0), vec.V2(o+1, 0)
	case sublevel.East:
		return vec.V2(w, o), vec.V2(w, o+1)
	case sublevel.South:
		return vec.V2(o, h), vec.V2(o+1, h)
	default:
		return vec.V2(0, o), vec.V2(0, o+1)
	}
}

// rotatedDoor возвращает направление и локальный якорь двери юнита w×h,
// повёрнутого rot раз
func rotatedDoor(d sublevel.Door, w, h, rot int) (sublevel.Dir, vec.Vec2[int]) {
	a, b := doorSegment(d, w, h)
	for i := 0; i < rot; i++ {
		a = rotateCW(a, h)
		b = rotateCW(b, h)
		w, h = h, w
	}
	anchor := vec.V2(min(a[0], b[0]), min(a[1], b[1]))
	return d.Dir.Rotate(rot), anchor
}

// rotatedSize возвращает размеры после поворота
func rotatedSize(w, h, rot int) (int, int) {
	if rot%2 == 1 {
		return h, w
	}
	return w, h
}

// rotatedSpawn переводит локальную точку спавна в повёрнутую рамку юнита
func rotatedSpawn(pos vec.Vec3[float32], w, h, rot int) vec.Vec3[float32] {
	p := pos.XZ()
	hw := float32(h * sublevel.CellSize)
	ww := float32(w * sublevel.CellSize)
	for i := 0; i < rot; i++ {
		p = rotateCW(p, hw)
		ww, hw = hw, ww
	}
	return vec.V3(p[0], pos[1], p[1])
}

// place собирает юнит из шаблона, повёрнутого rot раз, в позиции pos
func place(t *sublevel.UnitTemplate, rot int, pos vec.Vec2[int]) PlacedUnit {
	w, h := rotatedSize(t.Width, t.Height, rot)
	unit := PlacedUnit{
		Name:     t.Name,
		Kind:     t.Kind,
		Rotation: rot,
		Pos:      pos,
		Width:    w,
		Height:   h,
		Doors:    make([]PlacedDoor, len(t.Doors)),
		template: t,
	}
	for i, d := range t.Doors {
		dir, anchor := rotatedDoor(d, t.Width, t.Height, rot)
		unit.Doors[i] = PlacedDoor{Dir: dir, Anchor: anchor.Add(pos)}
	}
	return unit
}

// spawnWorldPos возвращает мировую позицию i-й точки спавна юнита
func spawnWorldPos(u *PlacedUnit, i int) vec.Vec3[float32] {
	sp := u.template.Spawns[i]
	local := rotatedSpawn(sp.Pos, u.template.Width, u.template.Height, u.Rotation)
	origin := vec.V3(float32(float32(u.Pos[0])*sublevel.CellSize), 0, float32(float32(u.Pos[1])*sublevel.CellSize))
	return origin.Add(local)
}
