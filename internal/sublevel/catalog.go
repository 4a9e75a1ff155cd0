package sublevel

import (
	"fmt"
	"sort"
	"sync"
)

// Catalog хранит загруженные подуровни по имени. Передаётся явно в
// генератор, API и поиск; глобального экземпляра нет.
type Catalog struct {
	mu    sync.RWMutex
	specs map[string]*Spec
}

// NewCatalog создает пустой каталог
func NewCatalog() *Catalog {
	return &Catalog{specs: make(map[string]*Spec)}
}

// Add проверяет описание и регистрирует его. Повторное имя: ошибка.
func (c *Catalog) Add(spec *Spec) error {
	if err := Validate(spec); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.specs[spec.Name]; exists {
		return fmt.Errorf("подуровень %s уже зарегистрирован", spec.Name)
	}
	c.specs[spec.Name] = spec
	return nil
}

// Get возвращает подуровень по имени
func (c *Catalog) Get(name string) (*Spec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	spec, ok := c.specs[name]
	return spec, ok
}

// Names возвращает отсортированные имена подуровней
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.specs))
	for name := range c.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len возвращает количество подуровней
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.specs)
}
