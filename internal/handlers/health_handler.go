package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xpanvictor/quil-bridge/pkg/Logger"
	"github.com/xpanvictor/quil-bridge/pkg/io/registry"
	"github.com/xpanvictor/quil-bridge/pkg/system"
)

const serviceName = "Quil Voice Server"

type HealthHandler struct {
	registry    registry.SessionRegistry
	mode        string
	systemStats bool
	logger      *Logger.Logger
}

// NewHealthHandler reports the active-session count; host stats are added
// when systemStats is set.
func NewHealthHandler(reg registry.SessionRegistry, mode string, systemStats bool, logger *Logger.Logger) *HealthHandler {
	return &HealthHandler{registry: reg, mode: mode, systemStats: systemStats, logger: logger}
}

func (h *HealthHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/", h.Health)
	router.GET("/health", h.Health)
}

func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:         "ok",
		Service:        serviceName,
		Mode:           h.mode,
		ActiveSessions: h.registry.Count(),
		Timestamp:      time.Now().UTC(),
	}
	if h.systemStats {
		stats, err := system.Snapshot()
		if err != nil {
			h.logger.Debugf("partial host stats: %v", err)
		}
		resp.System = &stats
	}
	c.JSON(http.StatusOK, resp)
}
