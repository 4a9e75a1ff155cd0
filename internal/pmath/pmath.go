// Package pmath воспроизводит арифметику игрового движка с точностью до бита.
//
// Движок считает корни не библиотечной функцией, а через аппаратную оценку
// обратного корня (инструкция frsqrte у PowerPC) и один шаг уточнения
// Ньютона. Погрешность этой схемы: часть результата: решения о размещении
// юнитов и спавне чувствительны к последним битам расстояний.
package pmath

import "math"

// baseAndDec строка таблицы оценки frsqrte: база мантиссы и её шаг.
type baseAndDec struct {
	base int64
	dec  int64
}

// Первые 16 строк: для чётной экспоненты, остальные: для нечётной.
var frsqrteTable = [32]baseAndDec{
	{0x3ffa000, 0x7a4}, {0x3c29000, 0x700}, {0x38aa000, 0x670}, {0x3572000, 0x5f2},
	{0x3279000, 0x584}, {0x2fb7000, 0x524}, {0x2d26000, 0x4cc}, {0x2ac0000, 0x47e},
	{0x2881000, 0x43a}, {0x2665000, 0x3fa}, {0x2468000, 0x3c2}, {0x2287000, 0x38e},
	{0x20c1000, 0x35e}, {0x1f12000, 0x332}, {0x1d79000, 0x30a}, {0x1bf4000, 0x2e6},
	{0x1a7e800, 0x568}, {0x17cb800, 0x4f3}, {0x1552800, 0x48d}, {0x130c000, 0x435},
	{0x10f2000, 0x3e7}, {0x0eff000, 0x3a2}, {0x0d2e000, 0x365}, {0x0b7c000, 0x32e},
	{0x09e5000, 0x2fc}, {0x0867000, 0x2d0}, {0x06ff000, 0x2a8}, {0x05ab800, 0x283},
	{0x046a000, 0x261}, {0x0339800, 0x243}, {0x0218800, 0x226}, {0x0105800, 0x20b},
}

const (
	mantissaMask = int64(1)<<52 - 1
	exponentMask = int64(0x7ff) << 52
	signBit      = uint64(1) << 63
)

// Frsqrte возвращает оценку 1/sqrt(x) с той же точностью и теми же
// особыми случаями, что у инструкции frsqrte.
func Frsqrte(x float64) float64 {
	bits := math.Float64bits(x)
	negative := bits&signBit != 0
	mantissa := int64(bits) & mantissaMask
	exponent := int64(bits) & exponentMask

	if mantissa == 0 && exponent == 0 {
		if negative {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}

	if exponent == exponentMask {
		if mantissa == 0 {
			if negative {
				return math.NaN()
			}
			return 0
		}
		return x
	}

	if negative {
		return math.NaN()
	}

	// Денормализованные числа приводим к нормальной форме
	if exponent == 0 {
		for {
			exponent -= 1 << 52
			mantissa <<= 1
			if mantissa&(1<<52) != 0 {
				break
			}
		}
		mantissa &= mantissaMask
		exponent += 1 << 52
	}

	oddExponent := exponent&(1<<52) == 0
	exponent = ((0x3ff << 52) - (exponent-(0x3fe<<52))/2) & exponentMask

	i := mantissa >> 37
	index := i / 2048
	if oddExponent {
		index += 16
	}
	entry := frsqrteTable[index]
	result := uint64(exponent) | uint64(entry.base-entry.dec*(i%2048))<<26

	return math.Float64frombits(result)
}

// Sqrt квадратный корень движка: оценка frsqrte и один шаг Ньютона.
// Каждая операция явно округляется до float32, иначе компилятор вправе
// слить умножение и сложение в FMA и результат разойдётся с эталоном.
func Sqrt(x float32) float32 {
	if !(x > 0) {
		return x
	}
	r := float32(Frsqrte(float64(x)))
	t := float32(r * x)
	u := float32(t * r)
	v := float32(u - 3)
	w := float32(-v * t)
	return float32(w * 0.5)
}
