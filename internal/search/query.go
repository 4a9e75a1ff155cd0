package search

import (
	"fmt"

	"github.com/annel0/cavegen/internal/layout"
)

// DefaultCount: сколько сидов проверять, если Count не задан
const DefaultCount = 1000

// MaxCount ограничивает размер одного задания
const MaxCount = 1 << 24

// Query описывает диапазон сидов и условия отбора раскладок
type Query struct {
	Sublevel string `json:"sublevel" binding:"required"`
	From     uint32 `json:"from"`
	Count    uint32 `json:"count"`

	// Раскладка должна содержать все эти юниты
	RequireUnits []string `json:"require_units,omitempty"`
	// Раскладка должна содержать сущности с такими именами (враги, сокровища, ворота)
	RequireEntities []string `json:"require_entities,omitempty"`
	// Ни одной сущности с такими именами
	ExcludeEntities []string `json:"exclude_entities,omitempty"`
	// Суммарное число врагов (с учётом count) в пределах [MinEnemies, MaxEnemies]; 0: без ограничения
	MinEnemies int `json:"min_enemies,omitempty"`
	MaxEnemies int `json:"max_enemies,omitempty"`
	// Не больше стольких открытых дверей; nil: без ограничения
	MaxOpenDoors *int `json:"max_open_doors,omitempty"`

	// Остановиться после стольких совпадений; 0: проверить весь диапазон
	Limit   int `json:"limit,omitempty"`
	Workers int `json:"workers,omitempty"`
}

// Normalize подставляет значения по умолчанию и проверяет запрос
func (q *Query) Normalize() error {
	if q.Sublevel == "" {
		return fmt.Errorf("не указан подуровень")
	}
	if q.Count == 0 {
		q.Count = DefaultCount
	}
	if q.Count > MaxCount {
		return fmt.Errorf("слишком большой диапазон: %d (максимум %d)", q.Count, MaxCount)
	}
	if q.MinEnemies < 0 || q.MaxEnemies < 0 || q.Limit < 0 || q.Workers < 0 {
		return fmt.Errorf("отрицательные ограничения недопустимы")
	}
	if q.MaxEnemies > 0 && q.MinEnemies > q.MaxEnemies {
		return fmt.Errorf("min_enemies (%d) больше max_enemies (%d)", q.MinEnemies, q.MaxEnemies)
	}
	if q.MaxOpenDoors != nil && *q.MaxOpenDoors < 0 {
		return fmt.Errorf("max_open_doors не может быть отрицательным")
	}
	return nil
}

// Match проверяет раскладку на соответствие условиям
func (q *Query) Match(l *layout.Layout) bool {
	for _, name := range q.RequireUnits {
		if !l.HasUnit(name) {
			return false
		}
	}

	names := make(map[string]bool, len(l.Entities))
	for _, e := range l.Entities {
		names[e.Name] = true
	}
	for _, name := range q.RequireEntities {
		if !names[name] {
			return false
		}
	}
	for _, name := range q.ExcludeEntities {
		if names[name] {
			return false
		}
	}

	enemies := l.CountEntities(layout.EntityEnemy)
	if q.MinEnemies > 0 && enemies < q.MinEnemies {
		return false
	}
	if q.MaxEnemies > 0 && enemies > q.MaxEnemies {
		return false
	}
	if q.MaxOpenDoors != nil && len(l.OpenDoors()) > *q.MaxOpenDoors {
		return false
	}
	return true
}
