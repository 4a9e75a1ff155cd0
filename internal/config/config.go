package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/annel0/cavegen/internal/cache"
	"github.com/annel0/cavegen/internal/observability"
	"github.com/annel0/cavegen/internal/storage"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации cavegen.
type Config struct {
	Server    ServerConfig         `yaml:"server"`
	Sublevels string               `yaml:"sublevels_dir"` // каталог YAML описаний подуровней
	Log       LogConfig            `yaml:"log"`
	Auth      AuthConfig           `yaml:"auth"`
	Search    SearchConfig         `yaml:"search"`
	Storage   storage.Config       `yaml:"storage"`
	Cache     cache.Config         `yaml:"cache"`
	EventBus  EventBusConfig       `yaml:"eventbus"`
	Telemetry observability.Config `yaml:"telemetry"`
}

type ServerConfig struct {
	HTTPPort int `yaml:"http_port"`
}

type LogConfig struct {
	Level string `yaml:"level"` // trace | debug | info | warn | error
	Dir   string `yaml:"dir"`
}

type AuthConfig struct {
	Secret   string `yaml:"jwt_secret"` // base64, не короче 32 байт после декодирования
	TTLHours int    `yaml:"token_ttl_hours"`
}

type SearchConfig struct {
	Workers       int `yaml:"workers"`         // 0: GOMAXPROCS
	JobTTLMinutes int `yaml:"job_ttl_minutes"` // хранение завершённых заданий, 0: час
	KeepJobs      int `yaml:"keep_jobs"`       // 0: 256
}

// JobTTL переводит минуты в time.Duration
func (s SearchConfig) JobTTL() time.Duration {
	return time.Duration(s.JobTTLMinutes) * time.Minute
}

// EventBusConfig настройки шины событий. Пустой URL означает шину в памяти.
type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

// RetentionDuration переводит часы в time.Duration
func (e EventBusConfig) RetentionDuration() time.Duration {
	return time.Duration(e.Retention) * time.Hour
}

// TokenTTL возвращает срок жизни токенов
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TTLHours) * time.Hour
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Sublevels: "assets/sublevels",
		Log:       LogConfig{Level: "info", Dir: "logs"},
		Auth:      AuthConfig{TTLHours: 24},
		Storage:   storage.Config{Driver: "memory"},
		Cache:     cache.Config{Hot: storage.Config{Driver: "memory"}},
		EventBus:  EventBusConfig{Stream: "CAVEGEN", Retention: 24},
		Telemetry: observability.Config{ServiceName: "cavegen", SampleRatio: 1},
	}
}

// GetHTTPPort возвращает порт REST API с поддержкой fallback значений
func (s *ServerConfig) GetHTTPPort() int {
	return getPortWithEnvFallback(s.HTTPPort, "CAVEGEN_HTTP_PORT", 8080)
}

// Addr возвращает адрес для http.Server
func (s *ServerConfig) Addr() string {
	return ":" + strconv.Itoa(s.GetHTTPPort())
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", берётся ENV CAVEGEN_CONFIG; если и он пуст, возвращаются дефолты.
// Секреты и адреса можно переопределить переменными окружения.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CAVEGEN_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"CAVEGEN_JWT_SECRET", &c.Auth.Secret},
		{"CAVEGEN_SUBLEVELS_DIR", &c.Sublevels},
		{"CAVEGEN_LOG_LEVEL", &c.Log.Level},
		{"CAVEGEN_STORAGE_DRIVER", &c.Storage.Driver},
		{"CAVEGEN_STORAGE_DSN", &c.Storage.DSN},
		{"CAVEGEN_NATS_URL", &c.EventBus.URL},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}
