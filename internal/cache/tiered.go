package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/annel0/cavegen/internal/logging"
	"github.com/annel0/cavegen/internal/storage"
)

// Tiered storage.ResultRepo из горячего и холодного уровней.
// Холодный уровень: источник истины; ошибки горячего только логируются.
type Tiered struct {
	hot    storage.ResultRepo
	cold   storage.ResultRepo
	inv    Invalidator
	logger *logging.Logger

	requests      atomic.Int64
	hits          atomic.Int64
	invalidations atomic.Int64
}

var _ storage.ResultRepo = (*Tiered)(nil)

// NewTiered собирает двухуровневое хранилище. inv может быть nil.
func NewTiered(hot, cold storage.ResultRepo, inv Invalidator, logger *logging.Logger) (*Tiered, error) {
	if hot == nil || cold == nil {
		return nil, errors.New("нужны оба уровня хранилища")
	}
	if logger == nil {
		logger = logging.GetComponentLogger("cache")
	}
	t := &Tiered{hot: hot, cold: cold, inv: inv, logger: logger}

	if inv != nil {
		if err := inv.SubscribeInvalidations(context.Background(), t.dropHot); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Open собирает Tiered по конфигурации поверх уже открытого cold.
func Open(ctx context.Context, cfg Config, cold storage.ResultRepo) (*Tiered, error) {
	hot, err := storage.Open(ctx, cfg.Hot)
	if err != nil {
		return nil, fmt.Errorf("горячий уровень: %w", err)
	}

	var inv Invalidator
	if cfg.NATSURL != "" {
		n, err := NewNATSInvalidator(cfg)
		if err != nil {
			_ = hot.Close()
			return nil, err
		}
		inv = n
	}

	t, err := NewTiered(hot, cold, inv, nil)
	if err != nil {
		_ = hot.Close()
		if inv != nil {
			_ = inv.Close()
		}
		return nil, err
	}
	return t, nil
}

// dropHot убирает ключ, удалённый на другом узле
func (t *Tiered) dropHot(key string) error {
	sublevel, seed, err := storage.ParseRecordKey(key)
	if err != nil {
		return err
	}
	t.invalidations.Add(1)
	if err := t.hot.Delete(context.Background(), sublevel, seed); err != nil {
		t.logger.Debug("Инвалидация %s: в горячем уровне не было (%v)", key, err)
	}
	return nil
}

func (t *Tiered) Save(ctx context.Context, rec *storage.Record) error {
	if err := t.cold.Save(ctx, rec); err != nil {
		return err
	}
	if err := t.hot.Save(ctx, rec); err != nil {
		t.logger.Warn("⚠️ Горячий уровень: сохранение %s: %v", rec.Key(), err)
	}
	return nil
}

func (t *Tiered) BatchSave(ctx context.Context, recs []*storage.Record) error {
	if err := t.cold.BatchSave(ctx, recs); err != nil {
		return err
	}
	if err := t.hot.BatchSave(ctx, recs); err != nil {
		t.logger.Warn("⚠️ Горячий уровень: пакетное сохранение: %v", err)
	}
	return nil
}

// Load читает горячий уровень, при промахе: холодный с заполнением горячего.
func (t *Tiered) Load(ctx context.Context, sublevel string, seed uint32) (*storage.Record, bool, error) {
	t.requests.Add(1)

	rec, found, err := t.hot.Load(ctx, sublevel, seed)
	if err != nil {
		t.logger.Warn("⚠️ Горячий уровень недоступен: %v", err)
	}
	if found {
		t.hits.Add(1)
		return rec, true, nil
	}

	rec, found, err = t.cold.Load(ctx, sublevel, seed)
	if err != nil || !found {
		return nil, false, err
	}
	if err := t.hot.Save(ctx, rec); err != nil {
		t.logger.Warn("⚠️ Горячий уровень: заполнение %s: %v", rec.Key(), err)
	}
	return rec, true, nil
}

// Delete удаляет запись на обоих уровнях и оповещает другие узлы.
func (t *Tiered) Delete(ctx context.Context, sublevel string, seed uint32) error {
	if err := t.cold.Delete(ctx, sublevel, seed); err != nil {
		return err
	}
	_ = t.hot.Delete(ctx, sublevel, seed)

	if t.inv != nil {
		if err := t.inv.PublishInvalidation(ctx, storage.RecordKey(sublevel, seed)); err != nil {
			t.logger.Warn("⚠️ Рассылка инвалидации: %v", err)
		}
	}
	return nil
}

// List всегда читает холодный уровень: горячий может быть неполным.
func (t *Tiered) List(ctx context.Context, sublevel string, limit int) ([]*storage.Record, error) {
	return t.cold.List(ctx, sublevel, limit)
}

func (t *Tiered) Close() error {
	var errs []error
	if t.inv != nil {
		errs = append(errs, t.inv.Close())
	}
	errs = append(errs, t.hot.Close(), t.cold.Close())
	return errors.Join(errs...)
}

// Metrics возвращает снимок метрик горячего уровня
func (t *Tiered) Metrics() Metrics {
	req, hits := t.requests.Load(), t.hits.Load()
	m := Metrics{
		TotalRequests: req,
		CacheHits:     hits,
		CacheMisses:   req - hits,
		Invalidations: t.invalidations.Load(),
	}
	if req > 0 {
		m.HitRatio = float64(hits) / float64(req)
	}
	return m
}
