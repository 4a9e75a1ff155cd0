package physics

import (
	"github.com/annel0/cavegen/internal/vec"
)

// BoxesOverlap проверяет пересечение двух осевых прямоугольников, заданных
// минимальным углом и размерами. Касание по ребру или углу пересечением
// не считается. Прямоугольник с нулевой или отрицательной шириной/высотой
// не имеет площади и ни с чем не пересекается.
func BoxesOverlap[T vec.Number](x1, z1, w1, h1, x2, z2, w2, h2 T) bool {
	if w1 <= 0 || h1 <= 0 || w2 <= 0 || h2 <= 0 {
		return false
	}

	return x1 < x2+w2 &&
		x2 < x1+w1 &&
		z1 < z2+h2 &&
		z2 < z1+h1
}

// Rect прямоугольник в клетках карты: Pos — минимальный угол, Size — размеры
type Rect struct {
	Pos  vec.Vec2[int]
	Size vec.Vec2[int]
}

// NewRect создаёт прямоугольник с углом (x, z) и размерами w×h
func NewRect(x, z, w, h int) Rect {
	return Rect{Pos: vec.V2(x, z), Size: vec.V2(w, h)}
}

// Max возвращает противоположный угол
func (r Rect) Max() vec.Vec2[int] {
	return r.Pos.Add(r.Size)
}

// Overlaps проверяет строгое пересечение с другим прямоугольником
func (r Rect) Overlaps(other Rect) bool {
	return BoxesOverlap(r.Pos[0], r.Pos[1], r.Size[0], r.Size[1],
		other.Pos[0], other.Pos[1], other.Size[0], other.Size[1])
}

// Contains проверяет, лежит ли клетка внутри прямоугольника
func (r Rect) Contains(cell vec.Vec2[int]) bool {
	return cell[0] >= r.Pos[0] && cell[0] < r.Pos[0]+r.Size[0] &&
		cell[1] >= r.Pos[1] && cell[1] < r.Pos[1]+r.Size[1]
}
