package server

import (
	"github.com/gin-gonic/gin"

	"github.com/xpanvictor/quil-bridge/internal/auth"
	"github.com/xpanvictor/quil-bridge/internal/config"
	"github.com/xpanvictor/quil-bridge/internal/handlers"
	"github.com/xpanvictor/quil-bridge/internal/handlers/websocket"
	"github.com/xpanvictor/quil-bridge/internal/repository/memory"
	"github.com/xpanvictor/quil-bridge/internal/upstream"
	"github.com/xpanvictor/quil-bridge/pkg/Logger"
	"github.com/xpanvictor/quil-bridge/pkg/io/registry"
)

type Dependencies struct {
	Registry   registry.SessionRegistry
	Backends   upstream.Factory
	Memory     memory.Store
	DeviceAuth *auth.DeviceAuth
	Logger     *Logger.Logger
	Configs    *config.Settings
}

func NewServerDependencies(
	reg registry.SessionRegistry,
	backends upstream.Factory,
	store memory.Store,
	deviceAuth *auth.DeviceAuth,
	logger *Logger.Logger,
	cfg *config.Settings,
) Dependencies {
	return Dependencies{
		Registry:   reg,
		Backends:   backends,
		Memory:     store,
		DeviceAuth: deviceAuth,
		Logger:     logger,
		Configs:    cfg,
	}
}

// InitializeRoutes mounts health, memory and the device gateway. The returned
// handler owns the live sessions and must be closed on shutdown.
func InitializeRoutes(r *gin.Engine, dep Dependencies) *websocket.WebSocketHandler {
	cfg := dep.Configs

	r.Use(handlers.ErrorHandlerMiddleware(dep.Logger))
	r.Use(handlers.CORSMiddleware())
	if cfg.Debug {
		r.Use(handlers.RequestLoggerMiddleware(dep.Logger))
	}

	handlers.NewHealthHandler(dep.Registry, cfg.Bridge.Mode, cfg.Debug, dep.Logger).RegisterRoutes(r)
	handlers.NewMemoryHandler(dep.Memory, dep.Logger).RegisterRoutes(r)

	ws := websocket.NewWebSocketHandler(
		dep.Logger.Named("gateway"),
		dep.Registry,
		dep.Backends,
		dep.Memory,
		websocket.OptionsFromSettings(cfg),
		cfg.Bridge.WriteTimeout,
	)
	r.GET("/ws/stats", ws.HandleStats)
	ws.RegisterRoutes(r, handlers.DeviceAuthMiddleware(dep.DeviceAuth, dep.Logger))

	return ws
}
