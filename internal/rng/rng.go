// Package rng реализует генератор псевдослучайных чисел игры.
//
// Это линейный конгруэнтный генератор со стандартными для библиотеки C
// константами: состояние: uint32 с переполнением по модулю 2^32, на выход
// идут биты 16..30 состояния. Любой лишний или пропущенный вызов меняет
// всю дальнейшую генерацию, поэтому порядок вызовов: часть контракта
// вызывающего кода.
package rng

const (
	multiplier = 0x41C64E6D
	increment  = 0x3039

	// RawMax количество различных значений Raw
	RawMax = 0x8000
)

// Rng генератор, принадлежащий ровно одному прогону генерации.
// Не потокобезопасен и не должен разделяться между горутинами.
type Rng struct {
	state uint32
	draws uint64
}

// New создает генератор из сида
func New(seed uint32) *Rng {
	return &Rng{state: seed}
}

// State возвращает текущее состояние
func (r *Rng) State() uint32 {
	return r.state
}

// Draws возвращает число сырых вызовов с момента создания.
// Полезно при поиске расхождений порядка потребления.
func (r *Rng) Draws() uint64 {
	return r.draws
}

// Raw продвигает состояние и возвращает 15-битное значение [0, 0x7FFF]
func (r *Rng) Raw() uint16 {
	r.state = r.state*multiplier + increment
	r.draws++
	return uint16((r.state >> 16) & 0x7FFF)
}

// F32 возвращает число в [0, 1)
func (r *Rng) F32() float32 {
	return float32(r.Raw()) / RawMax
}

// Int возвращает число в [0, max). Результат получается умножением F32
// на max в float32 с отбрасыванием дробной части, как в движке.
// Для max == 0 вызов всё равно расходует одно значение и возвращает 0.
func (r *Rng) Int(max uint32) uint32 {
	return uint32(float32(r.F32() * float32(max)))
}

// IntN удобная обертка над Int для длин срезов
func (r *Rng) IntN(n int) int {
	return int(r.Int(uint32(n)))
}

// IndexWeight выбирает индекс пропорционально весам.
// Возвращает -1 без расхода генератора, если сумма весов равна нулю.
// Сумма должна помещаться в uint32; описания подуровней ограничивают её
// сверху при валидации.
func (r *Rng) IndexWeight(weights []uint32) int {
	var sum uint32
	for _, w := range weights {
		sum += w
	}
	if sum == 0 {
		return -1
	}

	roll := r.Int(sum)
	var cumulative uint32
	for i, w := range weights {
		cumulative += w
		if cumulative > roll {
			return i
		}
	}
	return len(weights) - 1
}
