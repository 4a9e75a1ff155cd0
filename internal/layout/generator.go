package layout

import (
	"github.com/annel0/cavegen/internal/rng"
	"github.com/annel0/cavegen/internal/sublevel"
	"github.com/annel0/cavegen/internal/vec"
)

type options struct {
	limits   sublevel.Limits
	entities bool
}

// Option настраивает Generate
type Option func(*options)

// WithLimits переопределяет бюджеты повторов описания. Нулевые поля
// берутся из описания, затем из значений по умолчанию.
func WithLimits(l sublevel.Limits) Option {
	return func(o *options) {
		if l.DoorAttempts > 0 {
			o.limits.DoorAttempts = l.DoorAttempts
		}
		if l.UnitAttempts > 0 {
			o.limits.UnitAttempts = l.UnitAttempts
		}
		if l.LayoutAttempts > 0 {
			o.limits.LayoutAttempts = l.LayoutAttempts
		}
	}
}

// WithoutEntities пропускает проход расстановки сущностей. Структура
// раскладки от этого не меняется: сущности расставляются после неё.
func WithoutEntities() Option {
	return func(o *options) {
		o.entities = false
	}
}

// Generate строит раскладку подуровня для сида. Описание только читается,
// поэтому один spec можно передавать в параллельные вызовы.
// Ошибки: *sublevel.SpecError (ErrInvalidSpec) до начала генерации,
// *GenerationFailure (ErrGenerationFailed) при исчерпании попыток.
func Generate(seed uint32, spec *sublevel.Spec, opts ...Option) (*Layout, error) {
	if err := sublevel.Validate(spec); err != nil {
		return nil, err
	}

	o := options{limits: spec.Limits.Resolved(), entities: true}
	for _, opt := range opts {
		opt(&o)
	}

	r := rng.New(seed)
	failure := &GenerationFailure{
		Sublevel: spec.Name,
		Seed:     seed,
		Reasons:  make(map[FailureReason]int),
	}

	for attempt := 0; attempt < o.limits.LayoutAttempts; attempt++ {
		b := newBuilder(spec, r, o.limits)
		reason, ok := b.build()
		if !ok {
			failure.Attempts++
			failure.Reason = reason
			failure.Reasons[reason]++
			continue
		}

		layout := &Layout{
			Sublevel: spec.Name,
			Seed:     seed,
			Units:    b.units,
			Entities: []Entity{},
		}
		if o.entities {
			layout.Entities = spawnEntities(layout, spec, r)
		}
		return layout, nil
	}

	return nil, failure
}

// builder состояние одной попытки. При провале выбрасывается целиком.
type builder struct {
	spec   *sublevel.Spec
	rng    *rng.Rng
	limits sublevel.Limits

	units     []PlacedUnit
	open      []DoorRef
	counts    []int
	required  []bool
	missing   int
	remaining int
	weights   []uint32
}

func newBuilder(spec *sublevel.Spec, r *rng.Rng, limits sublevel.Limits) *builder {
	b := &builder{
		spec:      spec,
		rng:       r,
		limits:    limits,
		units:     make([]PlacedUnit, 0, spec.MaxUnits),
		counts:    make([]int, len(spec.Units)),
		required:  make([]bool, len(spec.Units)),
		remaining: spec.MaxUnits - 1,
		weights:   make([]uint32, len(spec.Units)),
	}
	for _, name := range spec.RequiredUnits {
		if name == spec.StartUnit {
			continue
		}
		b.required[spec.UnitIndex(name)] = true
		b.missing++
	}
	return b
}

func (b *builder) build() (FailureReason, bool) {
	b.placeStart()

	for b.remaining > 0 {
		if len(b.open) == 0 {
			return ReasonDeadEnd, false
		}
		reason, ok := b.extend()
		if !ok {
			return reason, false
		}
	}

	if b.missing > 0 {
		return ReasonRequirementUnmet, false
	}
	if b.spec.Exit && !b.hasExitPoint() {
		return ReasonRequirementUnmet, false
	}
	return "", true
}

// placeStart кладёт стартовый юнит в начало координат. Поворот
// выбирается из разрешённых одним вызовом генератора.
func (b *builder) placeStart() {
	idx := b.spec.UnitIndex(b.spec.StartUnit)
	t := &b.spec.Units[idx]
	rot := t.Rotations[b.rng.IntN(len(t.Rotations))]

	b.accept(idx, place(t, rot, vec.V2(0, 0)), -1, DoorRef{})
}

// extend добавляет один юнит к открытой двери
func (b *builder) extend() (FailureReason, bool) {
	for unitTry := 0; unitTry < b.limits.UnitAttempts; unitTry++ {
		b.fillWeights()
		idx := b.rng.IndexWeight(b.weights)
		if idx < 0 {
			return ReasonNoCandidates, false
		}
		t := &b.spec.Units[idx]

		for doorTry := 0; doorTry < b.limits.DoorAttempts; doorTry++ {
			openIdx := b.rng.IntN(len(b.open))
			doorIdx := b.rng.IntN(len(t.Doors))

			target := b.open[openIdx]
			targetDoor := b.units[target.Unit].Doors[target.Door]

			// Поворот однозначно задаётся направлениями двух дверей
			rot := (int(targetDoor.Dir.Opposite()) - int(t.Doors[doorIdx].Dir) + 4) % 4
			if !t.AllowsRotation(rot) {
				continue
			}

			_, localAnchor := rotatedDoor(t.Doors[doorIdx], t.Width, t.Height, rot)
			candidate := place(t, rot, targetDoor.Anchor.Sub(localAnchor))
			if b.collides(&candidate, openIdx, doorIdx) {
				continue
			}

			b.accept(idx, candidate, doorIdx, target)
			return "", true
		}
	}
	return ReasonRetriesExhausted, false
}

// fillWeights пересчитывает веса шаблонов под текущее состояние попытки
func (b *builder) fillWeights() {
	for i := range b.spec.Units {
		t := &b.spec.Units[i]
		w := t.Weight

		switch {
		case len(t.Doors) == 0:
			w = 0
		case t.Limit > 0 && b.counts[i] >= t.Limit:
			w = 0
		case len(t.Doors) == 1 && len(b.open) == 1 && b.remaining > 1:
			// тупик закрыл бы последнюю дверь раньше времени
			w = 0
		case b.remaining == b.missing && !(b.required[i] && b.counts[i] == 0):
			w = 0
		}
		b.weights[i] = w
	}
}

// collides проверяет кандидата против уже размещённых юнитов.
// openIdx и doorIdx: пара дверей, по которой кандидат пристыкован.
func (b *builder) collides(c *PlacedUnit, openIdx, doorIdx int) bool {
	rect := c.Rect()

	for i := range b.units {
		if rect.Overlaps(b.units[i].Rect()) {
			return true
		}
	}

	// Дверь кандидата не должна упираться в стену соседа
	for di, d := range c.Doors {
		if di == doorIdx {
			continue
		}
		outside := d.OutsideCell()
		for ui := range b.units {
			u := &b.units[ui]
			if !u.Rect().Contains(outside) {
				continue
			}
			if !hasFacingOpenDoor(u, d) {
				return true
			}
		}
	}

	// Открытая дверь раскладки не должна упираться в стену кандидата
	for oi, ref := range b.open {
		if oi == openIdx {
			continue
		}
		d := b.units[ref.Unit].Doors[ref.Door]
		if !rect.Contains(d.OutsideCell()) {
			continue
		}
		if !hasFacingOpenDoor(c, d) {
			return true
		}
	}
	return false
}

func hasFacingOpenDoor(u *PlacedUnit, d PlacedDoor) bool {
	for _, other := range u.Doors {
		if other.Open() && other.Faces(d) {
			return true
		}
	}
	return false
}

// accept добавляет юнит, соединяет стыковочную пару и все остальные
// совпавшие встречные двери, остальные двери становятся открытыми.
// Для стартового юнита doorIdx == -1.
func (b *builder) accept(templateIdx int, u PlacedUnit, doorIdx int, target DoorRef) {
	ui := len(b.units)
	b.units = append(b.units, u)
	placed := &b.units[ui]

	if doorIdx >= 0 {
		b.link(DoorRef{Unit: ui, Door: doorIdx}, target)
		b.removeOpen(target)
	}

	for di := range placed.Doors {
		if di == doorIdx {
			continue
		}
		ref := DoorRef{Unit: ui, Door: di}
		if match, ok := b.findFacingOpen(placed.Doors[di]); ok {
			b.link(ref, match)
			b.removeOpen(match)
			continue
		}
		b.open = append(b.open, ref)
	}

	if b.required[templateIdx] && b.counts[templateIdx] == 0 {
		b.missing--
	}
	b.counts[templateIdx]++
	if doorIdx >= 0 {
		b.remaining--
	}
}

func (b *builder) link(a, c DoorRef) {
	aa, cc := a, c
	b.units[a.Unit].Doors[a.Door].Link = &cc
	b.units[c.Unit].Doors[c.Door].Link = &aa
}

func (b *builder) findFacingOpen(d PlacedDoor) (DoorRef, bool) {
	for _, ref := range b.open {
		if b.units[ref.Unit].Doors[ref.Door].Faces(d) {
			return ref, true
		}
	}
	return DoorRef{}, false
}

func (b *builder) removeOpen(ref DoorRef) {
	for i, r := range b.open {
		if r == ref {
			b.open = append(b.open[:i], b.open[i+1:]...)
			return
		}
	}
}

// hasExitPoint проверяет наличие точки выхода вне стартового юнита
func (b *builder) hasExitPoint() bool {
	for i := 1; i < len(b.units); i++ {
		if b.units[i].template.HasGroup(sublevel.GroupExit) {
			return true
		}
	}
	return false
}
