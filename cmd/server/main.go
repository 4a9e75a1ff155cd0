package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/cavegen/internal/api"
	"github.com/annel0/cavegen/internal/auth"
	"github.com/annel0/cavegen/internal/cache"
	"github.com/annel0/cavegen/internal/config"
	"github.com/annel0/cavegen/internal/eventbus"
	"github.com/annel0/cavegen/internal/logging"
	"github.com/annel0/cavegen/internal/observability"
	"github.com/annel0/cavegen/internal/search"
	"github.com/annel0/cavegen/internal/storage"
	"github.com/annel0/cavegen/internal/sublevel"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $CAVEGEN_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализируем систему логирования
	logging.SetLogDir(cfg.Log.Dir)
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		logging.Warn("⚠️ %v, используется INFO", err)
	}
	logging.SetDefaultLevel(level)

	logging.Info("🕳️ Запуск cavegen %s...", api.Version)

	ctx := context.Background()

	// === ТРАССИРОВКА ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatalf("❌ Ошибка инициализации трассировки: %v", err)
	}

	// === ПОДУРОВНИ ===
	catalog, err := sublevel.LoadDir(cfg.Sublevels)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки подуровней из %s: %v", cfg.Sublevels, err)
	}
	logging.Info("📚 Загружено подуровней: %d (%v)", catalog.Len(), catalog.Names())

	// === ХРАНИЛИЩЕ ===
	repo, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("❌ Ошибка открытия хранилища %q: %v", cfg.Storage.Driver, err)
	}
	logging.Info("💾 Хранилище раскладок: %s", driverName(cfg.Storage.Driver))

	if cfg.Cache.Enabled {
		tiered, err := cache.Open(ctx, cfg.Cache, repo)
		if err != nil {
			log.Fatalf("❌ Ошибка настройки кеша: %v", err)
		}
		repo = tiered
		logging.Info("🔥 Горячий кеш раскладок: %s", driverName(cfg.Cache.Hot.Driver))
	}

	// === ШИНА СОБЫТИЙ ===
	bus, err := openBus(cfg.EventBus)
	if err != nil {
		log.Fatalf("❌ Ошибка подключения к шине событий: %v", err)
	}
	eventbus.Init(bus)

	if _, err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("⚠️ Логирование событий недоступно: %v", err)
	}
	exporter := eventbus.NewMetricsExporter(bus, prometheus.DefaultRegisterer)
	exporter.Start()

	// === АВТОРИЗАЦИЯ ===
	signer, err := newSigner(cfg.Auth)
	if err != nil {
		log.Fatalf("❌ Ошибка настройки JWT: %v", err)
	}

	// === ПОИСК ===
	searcher := search.New(
		search.WithBus(bus),
		search.WithRepo(repo),
		search.WithMetrics(search.NewMetrics(prometheus.DefaultRegisterer)),
		search.WithWorkers(cfg.Search.Workers),
	)

	jobs := search.NewJobManager(searcher,
		search.WithJobTTL(cfg.Search.JobTTL()),
		search.WithKeepFinished(cfg.Search.KeepJobs),
	)

	restServer, err := api.NewRestServer(api.Config{
		Port:    cfg.Server.Addr(),
		Catalog: catalog,
		Repo:    repo,
		Jobs:    jobs,
		Signer:  signer,
		Bus:     bus,
	})
	if err != nil {
		log.Fatalf("❌ Ошибка создания REST API: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- restServer.Start()
	}()

	logging.Info("✅ cavegen готов")
	logging.Info("   🌐 REST API: http://localhost%s", cfg.Server.Addr())
	logging.Info("   ❤️  Health check: http://localhost%s/health", cfg.Server.Addr())
	logging.Info("   📈 Метрики: http://localhost%s/metrics", cfg.Server.Addr())

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info("📡 Получен сигнал %v, завершение работы...", sig)
	case err := <-errCh:
		if err != nil {
			logging.Error("❌ REST API остановился: %v", err)
		}
	}

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logging.Debug("Остановка REST API...")
	if err := restServer.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}

	exporter.Stop()
	if err := bus.Close(); err != nil {
		logging.Error("❌ Ошибка закрытия шины: %v", err)
	}
	if err := repo.Close(); err != nil {
		logging.Error("❌ Ошибка закрытия хранилища: %v", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка сброса трассировки: %v", err)
	}

	if err := logging.CloseComponentLoggers(); err != nil {
		logging.Error("❌ Ошибка закрытия логов компонентов: %v", err)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

func driverName(d string) string {
	if d == "" {
		return "memory"
	}
	return d
}

// openBus выбирает JetStream при заданном URL, иначе шину в памяти
func openBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logging.Info("📨 Шина событий: память")
		return eventbus.NewMemoryBus(1024), nil
	}
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, cfg.RetentionDuration())
	if err != nil {
		return nil, err
	}
	logging.Info("📨 Шина событий: NATS JetStream %s (stream %s)", cfg.URL, cfg.Stream)
	return bus, nil
}

// newSigner использует секрет из конфигурации. Без секрета генерирует
// временный и печатает admin-токен для первого входа.
func newSigner(cfg config.AuthConfig) (*auth.Signer, error) {
	secret := cfg.Secret
	ephemeral := secret == ""
	if ephemeral {
		var err error
		if secret, err = auth.GenerateSecureSecret(); err != nil {
			return nil, err
		}
	}

	signer, err := auth.NewSignerFromBase64(secret, cfg.TokenTTL())
	if err != nil {
		return nil, err
	}

	if ephemeral {
		token, err := signer.Issue("admin", auth.ScopeAdmin)
		if err != nil {
			return nil, err
		}
		logging.Warn("⚠️ auth.jwt_secret не задан, секрет сгенерирован до перезапуска")
		logging.Info("🔐 Временный admin-токен: %s", token)
	}
	return signer, nil
}
