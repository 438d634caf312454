package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/burrow/internal/authority"
	"github.com/annel0/burrow/internal/field"
	"github.com/annel0/burrow/internal/logging"
	"github.com/annel0/burrow/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RelayStatus то, что API показывает о ретрансляторе сессии
type RelayStatus interface {
	NodeID() string
	Pending() int
}

// GenericResponse общий формат ответа API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// SessionInfo ответ /api/session
type SessionInfo struct {
	Mode          string       `json:"mode"`
	NodeID        string       `json:"node_id,omitempty"`
	Online        bool         `json:"online"`
	Host          bool         `json:"host"`
	PendingGrants int          `json:"pending_grants"`
	RelayPending  int          `json:"relay_pending"`
	ClockMS       int64        `json:"clock_ms"`
	Scheduled     int          `json:"scheduled"`
	Process       ProcessStats `json:"process"`
}

// RestServer read-only REST API над реестром полей
type RestServer struct {
	router   *gin.Engine
	registry *field.Registry
	gate     *authority.Gate
	relay    RelayStatus
	port     string
	metrics  *ServerMetrics
	srv      *http.Server
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port     string              // адрес вида ":8088"
	Registry *field.Registry     // реестр сессии
	Relay    RelayStatus         // nil вне сети
	Metrics  prometheus.Registerer
	Gatherer prometheus.Gatherer // источник для /metrics
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("burrow_api"))

	loggerMw := middleware.NewRequestLogger()
	router.Use(loggerMw.Handler())

	promMw := middleware.NewPrometheusMiddleware("burrow_api", config.Metrics)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Gatherer)

	server := &RestServer{
		router:   router,
		registry: config.Registry,
		gate:     config.Registry.Env().Gate,
		relay:    config.Relay,
		port:     config.Port,
		metrics:  NewServerMetrics(),
	}
	server.srv = &http.Server{
		Addr:              config.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	server.setupRoutes()
	return server
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	api := rs.router.Group("/api")
	{
		api.GET("/session", rs.handleSession)
		api.GET("/fields", rs.handleFields)
		api.GET("/fields/:id", rs.handleField)
		api.GET("/storages", rs.handleStorages)
	}

	rs.router.GET("/health", rs.handleHealth)
}

// Handler отдаёт http.Handler роутера (тесты, встраивание)
func (rs *RestServer) Handler() http.Handler { return rs.router }

// handleSession режим сессии и состояние очередей
func (rs *RestServer) handleSession(c *gin.Context) {
	sched := rs.registry.Env().Scheduler
	info := SessionInfo{
		Mode:          rs.gate.Mode().String(),
		Online:        rs.gate.Online(),
		Host:          rs.gate.IsHost(),
		PendingGrants: rs.gate.PendingGrants(),
		ClockMS:       sched.Now().Milliseconds(),
		Scheduled:     sched.Pending(),
		Process:       rs.metrics.Stats(),
	}
	if rs.relay != nil {
		info.NodeID = rs.relay.NodeID()
		info.RelayPending = rs.relay.Pending()
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Состояние сессии",
		Data:    info,
	})
}

// handleFields активные поля по убыванию приоритета. ?kind= сужает выборку.
func (rs *RestServer) handleFields(c *gin.Context) {
	rows := rs.registry.Ranked()
	if kind := c.Query("kind"); kind != "" {
		filtered := rows[:0]
		for _, row := range rows {
			if row.Kind == kind {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: fmt.Sprintf("Полей: %d", len(rows)),
		Data:    rows,
	})
}

// handleField одна строка снимка по ID (поле или хранилище)
func (rs *RestServer) handleField(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный ID",
		})
		return
	}

	for _, row := range rs.registry.Snapshot() {
		if row.ID == id {
			c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "OK", Data: row})
			return
		}
	}

	c.JSON(http.StatusNotFound, GenericResponse{
		Success: false,
		Message: fmt.Sprintf("Объект %d не найден", id),
	})
}

// handleStorages снимок хранилищ
func (rs *RestServer) handleStorages(c *gin.Context) {
	rows := make([]field.Snapshot, 0)
	for _, row := range rs.registry.Snapshot() {
		if row.Kind == field.KindStorage {
			rows = append(rows, row)
		}
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "OK", Data: rows})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"mode":   rs.gate.Mode().String(),
		"time":   time.Now().Unix(),
	})
}

// Start запускает REST сервер; блокирует до Stop
func (rs *RestServer) Start() error {
	logging.Info("🌐 REST API слушает %s", rs.port)
	if err := rs.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop останавливает сервер, дожидаясь текущих запросов
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.srv.Shutdown(ctx)
}
