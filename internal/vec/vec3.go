package vec

import (
	"fmt"
	"math"

	"github.com/annel0/cavegen/internal/pmath"
)

// Vec3 представляет трехмерный вектор: X, Y (высота), Z
type Vec3[T Number] [3]T

// V3 короткий конструктор.
func V3[T Number](x, y, z T) Vec3[T] {
	return Vec3[T]{x, y, z}
}

func (v Vec3[T]) X() T { return v[0] }
func (v Vec3[T]) Y() T { return v[1] }
func (v Vec3[T]) Z() T { return v[2] }

// XZ проецирует вектор на горизонтальную плоскость, отбрасывая высоту.
// Геометрия пещеры определена в плоскости XZ.
func (v Vec3[T]) XZ() Vec2[T] {
	return Vec2[T]{v[0], v[2]}
}

// Add складывает два вектора
func (v Vec3[T]) Add(other Vec3[T]) Vec3[T] {
	return Vec3[T]{v[0] + other[0], v[1] + other[1], v[2] + other[2]}
}

// Sub вычитает вектор
func (v Vec3[T]) Sub(other Vec3[T]) Vec3[T] {
	return Vec3[T]{v[0] - other[0], v[1] - other[1], v[2] - other[2]}
}

// Mul умножает покомпонентно
func (v Vec3[T]) Mul(other Vec3[T]) Vec3[T] {
	return Vec3[T]{v[0] * other[0], v[1] * other[1], v[2] * other[2]}
}

// Div делит покомпонентно
func (v Vec3[T]) Div(other Vec3[T]) Vec3[T] {
	return Vec3[T]{v[0] / other[0], v[1] / other[1], v[2] / other[2]}
}

func (v Vec3[T]) AddScalar(s T) Vec3[T] {
	return Vec3[T]{v[0] + s, v[1] + s, v[2] + s}
}

func (v Vec3[T]) SubScalar(s T) Vec3[T] {
	return Vec3[T]{v[0] - s, v[1] - s, v[2] - s}
}

func (v Vec3[T]) MulScalar(s T) Vec3[T] {
	return Vec3[T]{v[0] * s, v[1] * s, v[2] * s}
}

func (v Vec3[T]) DivScalar(s T) Vec3[T] {
	return Vec3[T]{v[0] / s, v[1] / s, v[2] / s}
}

// Dist возвращает точное расстояние до другого вектора
func (v Vec3[T]) Dist(other Vec3[T]) float64 {
	return math.Sqrt(float64(sumSquares(v[:], other[:])))
}

// FastDist возвращает расстояние через движковый sqrt
func (v Vec3[T]) FastDist(other Vec3[T]) float32 {
	return pmath.Sqrt(float32(sumSquares(v[:], other[:])))
}

// Normal3 возвращает вектор единичной длины (делит на точное расстояние)
func Normal3[F Float](v Vec3[F]) Vec3[F] {
	factor := F(Vec3[F]{}.Dist(v))
	return v.DivScalar(factor)
}

// Swap меняет местами две компоненты
func (v Vec3[T]) Swap(i, j int) Vec3[T] {
	v[i], v[j] = v[j], v[i]
	return v
}

// Elements возвращает компоненты в каноническом порядке
func (v Vec3[T]) Elements() []T {
	return []T{v[0], v[1], v[2]}
}

func (v Vec3[T]) String() string {
	return fmt.Sprintf("(%v, %v, %v)", v[0], v[1], v[2])
}
