package cache

import (
	"context"
	"time"

	"github.com/annel0/cavegen/internal/storage"
)

// Двухуровневое хранилище раскладок: Hot (память узла или Redis) +
// Cold (Badger, MariaDB, MongoDB). Удаление на одном узле рассылается
// остальным через Invalidator, чтобы они сбросили свои горячие копии.
//
// Использование:
//
//	hot := storage.NewMemoryResultRepo()
//	repo, err := cache.NewTiered(hot, cold, inv, nil)
//	rec, found, err := repo.Load(ctx, "hole-1", 42)

// Invalidator рассылает и принимает уведомления об инвалидации ключей.
type Invalidator interface {
	// PublishInvalidation отправляет уведомление остальным узлам.
	PublishInvalidation(ctx context.Context, key string) error

	// SubscribeInvalidations подписывается на уведомления других узлов.
	SubscribeInvalidations(ctx context.Context, handler InvalidationHandler) error

	// Close закрывает соединение.
	Close() error
}

// InvalidationHandler обрабатывает уведомления об инвалидации.
type InvalidationHandler func(key string) error

// Metrics содержит метрики горячего уровня.
type Metrics struct {
	TotalRequests int64   `json:"total_requests"`
	CacheHits     int64   `json:"cache_hits"`
	CacheMisses   int64   `json:"cache_misses"`
	HitRatio      float64 `json:"hit_ratio"`
	Invalidations int64   `json:"invalidations"`
}

// Config содержит конфигурацию кеша.
type Config struct {
	Enabled bool           `yaml:"enabled"`
	Hot     storage.Config `yaml:"hot"` // горячий уровень; по умолчанию память

	// Инвалидация между узлами; пустой URL: только локально
	NATSURL      string        `yaml:"nats_url"`
	Subject      string        `yaml:"subject"`
	DedupeWindow time.Duration `yaml:"dedupe_window"`
	NodeID       string        `yaml:"node_id"`
}
