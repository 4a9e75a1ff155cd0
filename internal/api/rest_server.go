package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/cavegen/internal/auth"
	"github.com/annel0/cavegen/internal/eventbus"
	"github.com/annel0/cavegen/internal/logging"
	"github.com/annel0/cavegen/internal/middleware"
	"github.com/annel0/cavegen/internal/search"
	"github.com/annel0/cavegen/internal/storage"
	"github.com/annel0/cavegen/internal/sublevel"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Version версия API в /api/server
const Version = "v0.3.0"

// RestServer представляет REST API сервер
type RestServer struct {
	router   *gin.Engine
	http     *http.Server
	catalog  *sublevel.Catalog
	repo     storage.ResultRepo
	jobs     *search.JobManager
	signer   *auth.Signer
	webhooks *OutboundWebhookManager
	metrics  *ServerMetrics
	logger   *logging.Logger
	port     string
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port     string               // порт для запуска сервера
	Catalog  *sublevel.Catalog    // загруженные подуровни
	Repo     storage.ResultRepo   // кэш раскладок; nil: память
	Jobs     *search.JobManager   // задания поиска; nil: без хранилища и шины
	Signer   *auth.Signer         // проверка токенов операторов
	Bus      eventbus.EventBus    // источник событий для webhook'ов; nil: без них
	Registry *prometheus.Registry // nil: глобальный регистр
	Logger   *logging.Logger      // nil: логгер компонента api
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) (*RestServer, error) {
	if config.Catalog == nil {
		return nil, errors.New("не передан каталог подуровней")
	}
	if config.Signer == nil {
		return nil, errors.New("не передан Signer")
	}
	if config.Port == "" {
		config.Port = ":8080"
	}
	if config.Repo == nil {
		config.Repo = storage.NewMemoryResultRepo()
	}
	if config.Jobs == nil {
		config.Jobs = search.NewJobManager(search.New())
	}
	if config.Logger == nil {
		config.Logger = logging.GetAPILogger()
	}

	var (
		reg      prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if config.Registry != nil {
		reg, gatherer = config.Registry, config.Registry
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("cavegen-api"))
	router.Use(middleware.NewRequestLogger(config.Logger).Handler())

	promMw := middleware.NewPrometheusMiddleware("cavegen", reg)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, gatherer)

	server := &RestServer{
		router:   router,
		catalog:  config.Catalog,
		repo:     config.Repo,
		jobs:     config.Jobs,
		signer:   config.Signer,
		webhooks: NewOutboundWebhookManager(config.Logger),
		metrics:  NewServerMetrics(),
		logger:   config.Logger,
		port:     config.Port,
	}
	server.http = &http.Server{
		Addr:              config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if config.Bus != nil {
		if err := server.webhooks.Attach(config.Bus); err != nil {
			return nil, err
		}
	}

	server.setupRoutes()
	return server, nil
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.Use(corsMiddleware())

	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	{
		api.GET("/sublevels", rs.handleSublevels)
		api.GET("/sublevels/:sublevel", rs.handleSublevel)
		api.GET("/layouts/:sublevel", rs.handleListLayouts)
		api.GET("/layouts/:sublevel/:seed", rs.handleLayout)
		api.GET("/share/:code", rs.handleShare)
		api.GET("/server", rs.handleServerInfo)
	}

	// Защищенные эндпоинты (требуют JWT)
	protected := api.Group("/")
	protected.Use(rs.jwtMiddleware())
	{
		protected.POST("/search", rs.requireScope(auth.ScopeSearch), rs.handleSearchSubmit)
		protected.GET("/search/:id", rs.handleSearchGet)
		protected.DELETE("/search/:id", rs.handleSearchCancel)

		admin := protected.Group("/admin")
		admin.Use(rs.requireScope(auth.ScopeAdmin))
		{
			admin.GET("/webhooks", rs.handleGetOutboundWebhooks)
			admin.POST("/webhooks", rs.handleCreateOutboundWebhook)
			admin.DELETE("/webhooks/:id", rs.handleDeleteOutboundWebhook)
		}
	}
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respondOK(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, GenericResponse{Success: true, Message: message, Data: data})
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, GenericResponse{Success: false, Message: message})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"time":      time.Now().Unix(),
		"sublevels": rs.catalog.Len(),
	})
}

// handleServerInfo возвращает информацию о сервере
func (rs *RestServer) handleServerInfo(c *gin.Context) {
	respondOK(c, http.StatusOK, "Информация о сервере", rs.metrics.Snapshot(Version, rs.catalog.Len()))
}

// Handler возвращает http.Handler (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// Start запускает REST сервер и блокируется до Stop
func (rs *RestServer) Start() error {
	rs.logger.Info("🌐 REST API слушает %s", rs.port)
	if err := rs.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop останавливает сервер, отменяет задания поиска и webhook'и
func (rs *RestServer) Stop(ctx context.Context) error {
	err := rs.http.Shutdown(ctx)
	rs.jobs.Shutdown()
	rs.webhooks.Close()
	return err
}
