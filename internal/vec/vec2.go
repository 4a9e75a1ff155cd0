package vec

import (
	"fmt"
	"math"

	"github.com/annel0/cavegen/internal/pmath"
)

// Vec2 представляет 2D координаты. Ось Y игрового мира здесь отсутствует:
// первая компонента: X, вторая: Z горизонтальной плоскости.
type Vec2[T Number] [2]T

// V2 короткий конструктор.
func V2[T Number](x, z T) Vec2[T] {
	return Vec2[T]{x, z}
}

// X возвращает первую компоненту
func (v Vec2[T]) X() T { return v[0] }

// Z возвращает вторую компоненту
func (v Vec2[T]) Z() T { return v[1] }

// Add складывает два вектора
func (v Vec2[T]) Add(other Vec2[T]) Vec2[T] {
	return Vec2[T]{v[0] + other[0], v[1] + other[1]}
}

// Sub вычитает вектор
func (v Vec2[T]) Sub(other Vec2[T]) Vec2[T] {
	return Vec2[T]{v[0] - other[0], v[1] - other[1]}
}

// Mul умножает покомпонентно
func (v Vec2[T]) Mul(other Vec2[T]) Vec2[T] {
	return Vec2[T]{v[0] * other[0], v[1] * other[1]}
}

// Div делит покомпонентно. Нулевая компонента делителя: ошибка вызывающего.
func (v Vec2[T]) Div(other Vec2[T]) Vec2[T] {
	return Vec2[T]{v[0] / other[0], v[1] / other[1]}
}

// AddScalar прибавляет скаляр к каждой компоненте
func (v Vec2[T]) AddScalar(s T) Vec2[T] {
	return Vec2[T]{v[0] + s, v[1] + s}
}

// SubScalar вычитает скаляр из каждой компоненты
func (v Vec2[T]) SubScalar(s T) Vec2[T] {
	return Vec2[T]{v[0] - s, v[1] - s}
}

// MulScalar умножает вектор на скаляр
func (v Vec2[T]) MulScalar(s T) Vec2[T] {
	return Vec2[T]{v[0] * s, v[1] * s}
}

// DivScalar делит вектор на скаляр
func (v Vec2[T]) DivScalar(s T) Vec2[T] {
	return Vec2[T]{v[0] / s, v[1] / s}
}

// Dist вычисляет точное евклидово расстояние до другой точки.
// Для целых координат результат тоже точный: квадраты считаются в T.
func (v Vec2[T]) Dist(other Vec2[T]) float64 {
	return math.Sqrt(float64(sumSquares(v[:], other[:])))
}

// FastDist вычисляет расстояние через движковый sqrt (pmath.Sqrt).
// Результат намеренно отличается от Dist в последних битах.
func (v Vec2[T]) FastDist(other Vec2[T]) float32 {
	return pmath.Sqrt(float32(sumSquares(v[:], other[:])))
}

// Normal2 возвращает вектор единичной длины. Делит на точное расстояние,
// а не на FastDist, чтобы направление оставалось точным.
func Normal2[F Float](v Vec2[F]) Vec2[F] {
	factor := F(Vec2[F]{}.Dist(v))
	return v.DivScalar(factor)
}

// Perpendicular возвращает вектор с перпендикулярным наклоном (поворот на 90°).
func (v Vec2[T]) Perpendicular() Vec2[T] {
	return Vec2[T]{-v[1], v[0]}
}

// Swap меняет местами две компоненты
func (v Vec2[T]) Swap(i, j int) Vec2[T] {
	v[i], v[j] = v[j], v[i]
	return v
}

// Elements возвращает компоненты в каноническом порядке
func (v Vec2[T]) Elements() []T {
	return []T{v[0], v[1]}
}

func (v Vec2[T]) String() string {
	return fmt.Sprintf("(%v, %v)", v[0], v[1])
}
