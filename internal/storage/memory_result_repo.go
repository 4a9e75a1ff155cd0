package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryResultRepo реализует ResultRepo в памяти.
// Используется по умолчанию и в тестах.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryResultRepo struct {
	mu   sync.RWMutex
	data map[string]*Record
}

// NewMemoryResultRepo создает новый репозиторий в памяти
func NewMemoryResultRepo() *MemoryResultRepo {
	return &MemoryResultRepo{
		data: make(map[string]*Record),
	}
}

// Save сохраняет копию записи
func (r *MemoryResultRepo) Save(ctx context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if err := checkContext(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *rec
	r.data[rec.Key()] = &cp
	return nil
}

// Load возвращает копию записи
func (r *MemoryResultRepo) Load(ctx context.Context, sublevel string, seed uint32) (*Record, bool, error) {
	if err := checkContext(ctx); err != nil {
		return nil, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.data[RecordKey(sublevel, seed)]
	if !exists {
		return nil, false, nil
	}
	cp := *rec
	return &cp, true, nil
}

// Delete удаляет запись
func (r *MemoryResultRepo) Delete(ctx context.Context, sublevel string, seed uint32) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := RecordKey(sublevel, seed)
	if _, exists := r.data[key]; !exists {
		return fmt.Errorf("запись %s не найдена", key)
	}
	delete(r.data, key)
	return nil
}

// BatchSave сохраняет записи атомарно: при ошибке валидации ничего не пишется
func (r *MemoryResultRepo) BatchSave(ctx context.Context, recs []*Record) error {
	if len(recs) == 0 {
		return nil
	}
	if err := checkContext(ctx); err != nil {
		return err
	}
	for _, rec := range recs {
		if err := validateRecord(rec); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range recs {
		cp := *rec
		r.data[rec.Key()] = &cp
	}
	return nil
}

// List возвращает записи подуровня по возрастанию сида
func (r *MemoryResultRepo) List(ctx context.Context, sublevel string, limit int) ([]*Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	result := make([]*Record, 0)
	for _, rec := range r.data {
		if rec.Sublevel == sublevel {
			cp := *rec
			result = append(result, &cp)
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Seed < result[j].Seed })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Count возвращает количество записей (для отладки)
func (r *MemoryResultRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// Close ничего не делает
func (r *MemoryResultRepo) Close() error {
	return nil
}
