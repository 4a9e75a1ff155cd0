// Package sublevel описывает подуровень пещеры: шаблоны юнитов, двери,
// точки спавна, таблицы сущностей и параметры генерации.
//
// Описание загружается один раз и дальше только читается, поэтому один
// *Spec можно безопасно использовать из многих горутин генерации.
package sublevel

import (
	"github.com/annel0/cavegen/internal/vec"
)

// CellSize размер клетки карты в мировых единицах
const CellSize = 170

// Лимиты повторов по умолчанию
const (
	DefaultDoorAttempts   = 8
	DefaultUnitAttempts   = 16
	DefaultLayoutAttempts = 32
)

// Kind тип юнита
type Kind string

const (
	KindRoom    Kind = "room"
	KindHallway Kind = "hallway"
	KindCap     Kind = "cap"
)

// Valid проверяет, что тип известен
func (k Kind) Valid() bool {
	switch k {
	case KindRoom, KindHallway, KindCap:
		return true
	}
	return false
}

// Group группа точки спавна
type Group string

const (
	GroupStart    Group = "start"
	GroupExit     Group = "exit"
	GroupEasy     Group = "easy"
	GroupHard     Group = "hard"
	GroupTreasure Group = "treasure"
	GroupPlant    Group = "plant"
)

// Valid проверяет, что группа известна
func (g Group) Valid() bool {
	switch g {
	case GroupStart, GroupExit, GroupEasy, GroupHard, GroupTreasure, GroupPlant:
		return true
	}
	return false
}

// Dir направление двери: 0=N (-z), 1=E (+x), 2=S (+z), 3=W (-x)
type Dir uint8

const (
	North Dir = iota
	East
	South
	West
)

// Opposite возвращает противоположное направление
func (d Dir) Opposite() Dir {
	return (d + 2) % 4
}

// Rotate поворачивает направление на r четвертей по часовой стрелке
func (d Dir) Rotate(r int) Dir {
	return Dir((int(d) + r%4 + 4) % 4)
}

func (d Dir) String() string {
	switch d {
	case North:
		return "N"
	case East:
		return "E"
	case South:
		return "S"
	case West:
		return "W"
	default:
		return "?"
	}
}

// Door дверь на периметре юнита. Offset — номер клетки вдоль стороны.
type Door struct {
	Dir    Dir `yaml:"dir" json:"dir"`
	Offset int `yaml:"offset" json:"offset"`
}

// SpawnPoint точка спавна в локальных мировых координатах
// неповёрнутого юнита (от минимального угла)
type SpawnPoint struct {
	Group  Group             `yaml:"group" json:"group"`
	Pos    vec.Vec3[float32] `yaml:"pos" json:"pos"`
	Radius float32           `yaml:"radius" json:"radius"`
}

// UnitTemplate шаблон комнаты, коридора или заглушки
type UnitTemplate struct {
	Name      string       `yaml:"name" json:"name"`
	Kind      Kind         `yaml:"kind" json:"kind"`
	Width     int          `yaml:"width" json:"width"`
	Height    int          `yaml:"height" json:"height"`
	Weight    uint32       `yaml:"weight" json:"weight"`
	Limit     int          `yaml:"limit" json:"limit"` // 0: без ограничения
	Rotations []int        `yaml:"rotations" json:"rotations"`
	Doors     []Door       `yaml:"doors" json:"doors"`
	Spawns    []SpawnPoint `yaml:"spawns" json:"spawns"`
}

// AllowsRotation проверяет, разрешён ли поворот
func (u *UnitTemplate) AllowsRotation(r int) bool {
	for _, allowed := range u.Rotations {
		if allowed == r {
			return true
		}
	}
	return false
}

// HasGroup проверяет наличие хотя бы одной точки спавна группы
func (u *UnitTemplate) HasGroup(g Group) bool {
	for _, sp := range u.Spawns {
		if sp.Group == g {
			return true
		}
	}
	return false
}

// EnemyEntry строка таблицы врагов
type EnemyEntry struct {
	Name  string `yaml:"name" json:"name"`
	Group Group  `yaml:"group" json:"group"`
	Fill  int    `yaml:"fill" json:"fill"`
	Min   int    `yaml:"min" json:"min"`
	Max   int    `yaml:"max" json:"max"`
}

// TreasureEntry строка таблицы сокровищ
type TreasureEntry struct {
	Name string `yaml:"name" json:"name"`
	Fill int    `yaml:"fill" json:"fill"`
}

// GateEntry строка таблицы ворот
type GateEntry struct {
	Name string  `yaml:"name" json:"name"`
	Life float32 `yaml:"life" json:"life"`
	Fill int     `yaml:"fill" json:"fill"`
}

// Limits бюджеты повторов. Нулевое значение означает значение по умолчанию.
type Limits struct {
	DoorAttempts   int `yaml:"door_attempts" json:"door_attempts"`
	UnitAttempts   int `yaml:"unit_attempts" json:"unit_attempts"`
	LayoutAttempts int `yaml:"layout_attempts" json:"layout_attempts"`
}

// Resolved подставляет значения по умолчанию вместо нулей
func (l Limits) Resolved() Limits {
	if l.DoorAttempts == 0 {
		l.DoorAttempts = DefaultDoorAttempts
	}
	if l.UnitAttempts == 0 {
		l.UnitAttempts = DefaultUnitAttempts
	}
	if l.LayoutAttempts == 0 {
		l.LayoutAttempts = DefaultLayoutAttempts
	}
	return l
}

// Spec описание подуровня
type Spec struct {
	Name             string          `yaml:"name" json:"name"`
	MaxUnits         int             `yaml:"max_units" json:"max_units"`
	StartUnit        string          `yaml:"start_unit" json:"start_unit"`
	RequiredUnits    []string        `yaml:"required_units" json:"required_units"`
	Exit             bool            `yaml:"exit" json:"exit"`
	MinEnemyDistance float32         `yaml:"min_enemy_distance" json:"min_enemy_distance"`
	MaxEnemies       int             `yaml:"max_enemies" json:"max_enemies"`
	Enemies          []EnemyEntry    `yaml:"enemies" json:"enemies"`
	Treasures        []TreasureEntry `yaml:"treasures" json:"treasures"`
	Gates            []GateEntry     `yaml:"gates" json:"gates"`
	Limits           Limits          `yaml:"limits" json:"limits"`
	Units            []UnitTemplate  `yaml:"units" json:"units"`
}

// UnitIndex возвращает индекс шаблона по имени или -1
func (s *Spec) UnitIndex(name string) int {
	for i := range s.Units {
		if s.Units[i].Name == name {
			return i
		}
	}
	return -1
}

// Unit возвращает шаблон по имени
func (s *Spec) Unit(name string) (*UnitTemplate, bool) {
	idx := s.UnitIndex(name)
	if idx < 0 {
		return nil, false
	}
	return &s.Units[idx], true
}

// applyDefaults заполняет необязательные поля, которые загрузчик
// разрешает опускать в YAML
func (s *Spec) applyDefaults() {
	for i := range s.Enemies {
		e := &s.Enemies[i]
		if e.Min == 0 && e.Max == 0 {
			e.Min, e.Max = 1, 1
		}
	}
	for i := range s.Units {
		u := &s.Units[i]
		if u.Kind == "" {
			u.Kind = KindRoom
		}
		if len(u.Rotations) == 0 {
			u.Rotations = []int{0, 1, 2, 3}
		}
	}
}
