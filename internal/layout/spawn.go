package layout

import (
	"github.com/annel0/cavegen/internal/rng"
	"github.com/annel0/cavegen/internal/sublevel"
	"github.com/annel0/cavegen/internal/vec"
)

// spawnSlot точка спавна, развернутая в мировые координаты
type spawnSlot struct {
	unit   int
	group  sublevel.Group
	pos    vec.Vec3[float32]
	radius float32
	used   bool
}

// spawnEntities расставляет сущности тем же потоком генератора, что и
// структуру. Порядок: старт, выход, враги, сокровища, ворота.
func spawnEntities(l *Layout, spec *sublevel.Spec, r *rng.Rng) []Entity {
	slots := collectSlots(l)
	entities := make([]Entity, 0)

	// Старт: первая стартовая точка первого юнита, без вызова генератора
	startPos := l.Units[0].Center()
	for i := range slots {
		s := &slots[i]
		if s.unit == 0 && s.group == sublevel.GroupStart {
			s.used = true
			startPos = s.pos
			entities = append(entities, Entity{Kind: EntityStart, Name: string(EntityStart), Pos: s.pos, Unit: 0, Count: 1})
			break
		}
	}
	origin := startPos.XZ()

	// Выход: самая дальняя от старта точка вне стартового юнита.
	// При равенстве выигрывает первая.
	if spec.Exit {
		best := -1
		var bestDist float32
		for i := range slots {
			s := &slots[i]
			if s.used || s.unit == 0 || s.group != sublevel.GroupExit {
				continue
			}
			d := s.pos.XZ().FastDist(origin)
			if best < 0 || d > bestDist {
				best, bestDist = i, d
			}
		}
		if best >= 0 {
			slots[best].used = true
			entities = append(entities, Entity{Kind: EntityExit, Name: string(EntityExit), Pos: slots[best].pos, Unit: slots[best].unit, Count: 1})
		}
	}

	placedEnemies := 0
enemies:
	for _, e := range spec.Enemies {
		for f := 0; f < e.Fill; f++ {
			if spec.MaxEnemies > 0 && placedEnemies >= spec.MaxEnemies {
				break enemies
			}
			eligible := freeSlots(slots, e.Group, func(s *spawnSlot) bool {
				return s.pos.XZ().FastDist(origin) >= spec.MinEnemyDistance
			})
			if len(eligible) == 0 {
				break
			}

			slot := &slots[eligible[r.IntN(len(eligible))]]
			count := e.Min
			if e.Max > e.Min {
				count = e.Min + r.IntN(e.Max-e.Min+1)
			}
			slot.used = true
			entities = append(entities, Entity{
				Kind:  EntityEnemy,
				Name:  e.Name,
				Pos:   jitter(slot.pos, slot.radius, r),
				Unit:  slot.unit,
				Count: count,
			})
			placedEnemies++
		}
	}

	for _, t := range spec.Treasures {
		for f := 0; f < t.Fill; f++ {
			eligible := freeSlots(slots, sublevel.GroupTreasure, nil)
			if len(eligible) == 0 {
				break
			}
			slot := &slots[eligible[r.IntN(len(eligible))]]
			slot.used = true
			entities = append(entities, Entity{
				Kind:  EntityTreasure,
				Name:  t.Name,
				Pos:   jitter(slot.pos, slot.radius, r),
				Unit:  slot.unit,
				Count: 1,
			})
		}
	}

	if len(spec.Gates) > 0 {
		pairs := l.MatchedPairs()
		usedPairs := make([]bool, len(pairs))
		for _, g := range spec.Gates {
			for f := 0; f < g.Fill; f++ {
				var eligible []int
				for i := range pairs {
					if !usedPairs[i] {
						eligible = append(eligible, i)
					}
				}
				if len(eligible) == 0 {
					break
				}
				pi := eligible[r.IntN(len(eligible))]
				usedPairs[pi] = true
				first := pairs[pi][0]
				entities = append(entities, Entity{
					Kind:  EntityGate,
					Name:  g.Name,
					Pos:   l.Door(first).WorldMidpoint(),
					Unit:  first.Unit,
					Count: 1,
					Life:  g.Life,
				})
			}
		}
	}

	return entities
}

func collectSlots(l *Layout) []spawnSlot {
	var slots []spawnSlot
	for ui := range l.Units {
		u := &l.Units[ui]
		for si, sp := range u.template.Spawns {
			slots = append(slots, spawnSlot{
				unit:   ui,
				group:  sp.Group,
				pos:    spawnWorldPos(u, si),
				radius: sp.Radius,
			})
		}
	}
	return slots
}

// freeSlots возвращает индексы свободных точек группы, прошедших фильтр
func freeSlots(slots []spawnSlot, group sublevel.Group, keep func(*spawnSlot) bool) []int {
	var idx []int
	for i := range slots {
		s := &slots[i]
		if s.used || s.group != group {
			continue
		}
		if keep != nil && !keep(s) {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

// jitter смещает позицию в пределах радиуса: сначала x, затем z
func jitter(pos vec.Vec3[float32], radius float32, r *rng.Rng) vec.Vec3[float32] {
	if radius <= 0 {
		return pos
	}
	dx := float32((r.F32()*2 - 1) * radius)
	dz := float32((r.F32()*2 - 1) * radius)
	return vec.V3(float32(pos[0]+dx), pos[1], float32(pos[2]+dz))
}
