package storage

import (
	"context"
	"fmt"
	"time"
)

// Config выбирает бэкенд хранилища результатов
type Config struct {
	Driver   string        `yaml:"driver"` // memory | badger | redis | maria | mongo
	Path     string        `yaml:"path"`   // каталог для badger
	DSN      string        `yaml:"dsn"`    // строка подключения maria
	RedisURL string        `yaml:"redis_addr"`
	RedisTTL time.Duration `yaml:"redis_ttl"`
	MongoURI string        `yaml:"mongo_uri"`
	Database string        `yaml:"database"`
}

// Open создает репозиторий по конфигурации. Пустой драйвер: память.
func Open(ctx context.Context, cfg Config) (ResultRepo, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryResultRepo(), nil
	case "badger":
		if cfg.Path == "" {
			return nil, fmt.Errorf("для badger нужен path")
		}
		return NewBadgerResultRepo(cfg.Path)
	case "redis":
		rc := DefaultRedisConfig()
		if cfg.RedisURL != "" {
			rc.Addr = cfg.RedisURL
		}
		if cfg.RedisTTL > 0 {
			rc.TTL = cfg.RedisTTL
		}
		return NewRedisResultRepo(ctx, rc)
	case "maria", "mysql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("для maria нужен dsn")
		}
		return NewMariaResultRepo(cfg.DSN)
	case "mongo":
		return NewMongoResultRepo(MongoConfig{URI: cfg.MongoURI, Database: cfg.Database})
	default:
		return nil, fmt.Errorf("неизвестный драйвер хранилища: %q", cfg.Driver)
	}
}
