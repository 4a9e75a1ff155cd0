package pmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrsqrte_KnownEstimates(t *testing.T) {
	assert.Equal(t, 0.99981689453125, Frsqrte(1.0))
	assert.Equal(t, 0.7069854736328125, Frsqrte(2.0))
	assert.Equal(t, 0.499908447265625, Frsqrte(4.0))
	assert.Equal(t, 1.9996337890625, Frsqrte(0.25))
}

func TestFrsqrte_SpecialCases(t *testing.T) {
	assert.True(t, math.IsInf(Frsqrte(0), 1), "+0 даёт +Inf")
	assert.True(t, math.IsInf(Frsqrte(math.Copysign(0, -1)), -1), "-0 даёт -Inf")
	assert.Equal(t, 0.0, Frsqrte(math.Inf(1)))
	assert.True(t, math.IsNaN(Frsqrte(math.Inf(-1))))
	assert.True(t, math.IsNaN(Frsqrte(-4)))
	assert.True(t, math.IsNaN(Frsqrte(math.NaN())))

	// Денормализованное число должно дать конечную положительную оценку
	denormal := math.Float64frombits(1)
	est := Frsqrte(denormal)
	assert.False(t, math.IsInf(est, 0))
	assert.Greater(t, est, 0.0)
}

// Эталонные биты сняты с эмуляции движка; расхождение означает,
// что сломана таблица оценки или порядок округлений.
func TestSqrt_GoldenBits(t *testing.T) {
	cases := []struct {
		in   float32
		bits uint32
	}{
		{1, 0x3f7fffff},
		{2, 0x3fb504f3},
		{3, 0x3fddb3d8},
		{4, 0x3fffffff},
		{9, 0x40400000},
		{0.25, 0x3effffff},
		{100, 0x41200000},
		{28900, 0x4329ffff},
		{57800, 0x43706a93},
		{12345.678, 0x42de38e3},
		{1e6, 0x447a0000},
	}

	for _, tc := range cases {
		got := Sqrt(tc.in)
		assert.Equalf(t, tc.bits, math.Float32bits(got), "Sqrt(%v) = %v", tc.in, got)
	}
}

func TestSqrt_DiffersFromLibrarySqrt(t *testing.T) {
	// 170²: размер клетки в квадрате: движок не попадает ровно в 170
	engine := Sqrt(28900)
	exact := float32(math.Sqrt(28900))

	assert.Equal(t, float32(170), exact)
	assert.NotEqual(t, exact, engine)
	assert.InDelta(t, 170, engine, 0.001)
}

func TestSqrt_NonPositivePassthrough(t *testing.T) {
	assert.Equal(t, float32(0), Sqrt(0))
	assert.Equal(t, float32(-1), Sqrt(-1))
	assert.True(t, math.IsNaN(float64(Sqrt(float32(math.NaN())))))
}
