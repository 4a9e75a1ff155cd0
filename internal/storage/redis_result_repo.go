package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisResultRepo хранит раскладки в Redis. Записи живут TTL,
// для каждого подуровня ведётся sorted set с сидом в качестве score.
type RedisResultRepo struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string        // Адрес Redis сервера
	Password  string        // Пароль (пустой если не требуется)
	DB        int           // Номер базы данных
	KeyPrefix string        // Префикс для ключей
	TTL       time.Duration // Время жизни записей, 0: без срока
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "cavegen:",
		TTL:       24 * time.Hour,
	}
}

// NewRedisResultRepo подключается к Redis и проверяет соединение
func NewRedisResultRepo(ctx context.Context, cfg *RedisConfig) (*RedisResultRepo, error) {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	log.Printf("✅ Подключено к Redis: %s (DB: %d)", cfg.Addr, cfg.DB)

	return &RedisResultRepo{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
	}, nil
}

func (r *RedisResultRepo) recordKey(sublevel string, seed uint32) string {
	return r.keyPrefix + RecordKey(sublevel, seed)
}

func (r *RedisResultRepo) indexKey(sublevel string) string {
	return r.keyPrefix + "index:" + sublevel
}

// Save сохраняет запись и добавляет сид в индекс подуровня
func (r *RedisResultRepo) Save(ctx context.Context, rec *Record) error {
	return r.BatchSave(ctx, []*Record{rec})
}

// BatchSave пишет записи одним pipeline
func (r *RedisResultRepo) BatchSave(ctx context.Context, recs []*Record) error {
	if len(recs) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, rec := range recs {
		if err := validateRecord(rec); err != nil {
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("ошибка сериализации записи: %w", err)
		}
		pipe.Set(ctx, r.recordKey(rec.Sublevel, rec.Seed), data, r.ttl)
		pipe.ZAdd(ctx, r.indexKey(rec.Sublevel), &redis.Z{
			Score:  float64(rec.Seed),
			Member: rec.Seed,
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ошибка выполнения pipeline: %w", err)
	}
	return nil
}

// Load загружает запись
func (r *RedisResultRepo) Load(ctx context.Context, sublevel string, seed uint32) (*Record, bool, error) {
	data, err := r.client.Get(ctx, r.recordKey(sublevel, seed)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка загрузки из Redis: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("ошибка десериализации записи: %w", err)
	}
	return &rec, true, nil
}

// Delete удаляет запись и сид из индекса
func (r *RedisResultRepo) Delete(ctx context.Context, sublevel string, seed uint32) error {
	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, r.recordKey(sublevel, seed))
	pipe.ZRem(ctx, r.indexKey(sublevel), seed)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ошибка удаления из Redis: %w", err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("запись %s не найдена", RecordKey(sublevel, seed))
	}
	return nil
}

// List читает сиды из индекса и загружает записи через MGET.
// Истёкшие по TTL записи удаляются из индекса.
func (r *RedisResultRepo) List(ctx context.Context, sublevel string, limit int) ([]*Record, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	seeds, err := r.client.ZRange(ctx, r.indexKey(sublevel), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения индекса: %w", err)
	}
	if len(seeds) == 0 {
		return []*Record{}, nil
	}

	keys := make([]string, len(seeds))
	for i, s := range seeds {
		var seed uint32
		if _, err := fmt.Sscan(s, &seed); err != nil {
			return nil, fmt.Errorf("повреждённый индекс %s: %w", sublevel, err)
		}
		keys[i] = r.recordKey(sublevel, seed)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка MGET: %w", err)
	}

	result := make([]*Record, 0, len(values))
	stale := make([]interface{}, 0)
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, seeds[i])
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			log.Printf("⚠️ Пропускаю повреждённую запись %s: %v", keys[i], err)
			continue
		}
		result = append(result, &rec)
	}

	if len(stale) > 0 {
		if err := r.client.ZRem(ctx, r.indexKey(sublevel), stale...).Err(); err != nil {
			log.Printf("⚠️ Не удалось очистить индекс %s: %v", sublevel, err)
		}
	}

	return result, nil
}

// Close закрывает соединение с Redis
func (r *RedisResultRepo) Close() error {
	return r.client.Close()
}
