// Package layout строит раскладку подуровня по сиду и описанию.
//
// Генерация детерминирована: один и тот же сид и описание дают
// посимвольно одинаковый слаг. Любое изменение порядка вызовов
// генератора случайных чисел меняет результат.
package layout

import (
	"github.com/annel0/cavegen/internal/physics"
	"github.com/annel0/cavegen/internal/sublevel"
	"github.com/annel0/cavegen/internal/vec"
)

// DoorRef адресует дверь: индекс юнита в раскладке и индекс двери в юните
type DoorRef struct {
	Unit int `json:"unit"`
	Door int `json:"door"`
}

// PlacedDoor дверь после поворота и переноса. Anchor — минимальная
// вершина отрезка двери в клетках мира.
type PlacedDoor struct {
	Dir    sublevel.Dir  `json:"dir"`
	Anchor vec.Vec2[int] `json:"anchor"`
	Link   *DoorRef      `json:"link,omitempty"` // nil: дверь открыта
}

// Open сообщает, что дверь ни с чем не соединена
func (d PlacedDoor) Open() bool {
	return d.Link == nil
}

// OutsideCell возвращает клетку сразу за дверью снаружи юнита
func (d PlacedDoor) OutsideCell() vec.Vec2[int] {
	switch d.Dir {
	case sublevel.North:
		return vec.V2(d.Anchor[0], d.Anchor[1]-1)
	case sublevel.West:
		return vec.V2(d.Anchor[0]-1, d.Anchor[1])
	default:
		return d.Anchor
	}
}

// Faces проверяет, что две двери совпадают по положению и смотрят навстречу
func (d PlacedDoor) Faces(other PlacedDoor) bool {
	return d.Anchor == other.Anchor && d.Dir == other.Dir.Opposite()
}

// WorldMidpoint возвращает середину отрезка двери в мировых единицах
func (d PlacedDoor) WorldMidpoint() vec.Vec3[float32] {
	x := float32(float32(d.Anchor[0]) * sublevel.CellSize)
	z := float32(float32(d.Anchor[1]) * sublevel.CellSize)
	if d.Dir == sublevel.North || d.Dir == sublevel.South {
		x += sublevel.CellSize / 2
	} else {
		z += sublevel.CellSize / 2
	}
	return vec.V3(x, 0, z)
}

// PlacedUnit шаблон, привязанный к позиции и повороту
type PlacedUnit struct {
	Name     string        `json:"name"`
	Kind     sublevel.Kind `json:"kind"`
	Rotation int           `json:"rotation"`
	Pos      vec.Vec2[int] `json:"pos"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Doors    []PlacedDoor  `json:"doors"`

	template *sublevel.UnitTemplate
}

// Rect возвращает занимаемый прямоугольник в клетках
func (u *PlacedUnit) Rect() physics.Rect {
	return physics.NewRect(u.Pos[0], u.Pos[1], u.Width, u.Height)
}

// Center возвращает центр юнита в мировых координатах
func (u *PlacedUnit) Center() vec.Vec3[float32] {
	x := (float32(u.Pos[0]) + float32(u.Width)/2) * sublevel.CellSize
	z := (float32(u.Pos[1]) + float32(u.Height)/2) * sublevel.CellSize
	return vec.V3(x, 0, z)
}

// EntityKind вид сущности раскладки
type EntityKind string

const (
	EntityStart    EntityKind = "start"
	EntityExit     EntityKind = "exit"
	EntityEnemy    EntityKind = "enemy"
	EntityTreasure EntityKind = "treasure"
	EntityGate     EntityKind = "gate"
)

// Entity размещённая сущность
type Entity struct {
	Kind  EntityKind        `json:"kind"`
	Name  string            `json:"name"`
	Pos   vec.Vec3[float32] `json:"pos"`
	Unit  int               `json:"unit"`
	Count int               `json:"count"`
	Life  float32           `json:"life,omitempty"`
}

// Layout готовая раскладка. После возврата из Generate не изменяется.
type Layout struct {
	Sublevel string       `json:"sublevel"`
	Seed     uint32       `json:"seed"`
	Units    []PlacedUnit `json:"units"`
	Entities []Entity     `json:"entities"`
}

// OpenDoors перечисляет открытые двери в порядке юнитов и дверей
func (l *Layout) OpenDoors() []DoorRef {
	var refs []DoorRef
	for ui := range l.Units {
		for di, d := range l.Units[ui].Doors {
			if d.Open() {
				refs = append(refs, DoorRef{Unit: ui, Door: di})
			}
		}
	}
	return refs
}

// MatchedPairs перечисляет соединённые пары дверей, каждую один раз:
// первой идёт дверь юнита с меньшим индексом
func (l *Layout) MatchedPairs() [][2]DoorRef {
	var pairs [][2]DoorRef
	for ui := range l.Units {
		for di, d := range l.Units[ui].Doors {
			if d.Link == nil || d.Link.Unit < ui {
				continue
			}
			pairs = append(pairs, [2]DoorRef{{Unit: ui, Door: di}, *d.Link})
		}
	}
	return pairs
}

// Door возвращает дверь по ссылке
func (l *Layout) Door(ref DoorRef) PlacedDoor {
	return l.Units[ref.Unit].Doors[ref.Door]
}

// CountEntities считает сущности вида kind с учётом Count
func (l *Layout) CountEntities(kind EntityKind) int {
	total := 0
	for _, e := range l.Entities {
		if e.Kind == kind {
			total += e.Count
		}
	}
	return total
}

// HasUnit проверяет, что шаблон с таким именем размещён
func (l *Layout) HasUnit(name string) bool {
	for i := range l.Units {
		if l.Units[i].Name == name {
			return true
		}
	}
	return false
}
