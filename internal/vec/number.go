package vec

// Number описывает скалярные типы, над которыми определены векторы.
// Беззнаковые типы исключены: Perpendicular и разности координат
// должны уметь уходить в минус.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// Float вещественные скаляры. Нормировка определена только для них:
// на целых координатах деление на длину теряет дробную часть.
type Float interface {
	~float32 | ~float64
}

// sumSquares возвращает сумму квадратов покомпонентных разностей a и b.
// Сумма копится в типе T: для float32 это даёт то же округление,
// что и у игрового движка.
func sumSquares[T Number](a, b []T) T {
	var sum T
	for i := range a {
		d := a[i] - b[i]
		sq := T(d * d) // явное приведение запрещает FMA
		sum += sq
	}
	return sum
}
