package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xpanvictor/quil-bridge/internal/repository/memory"
	"github.com/xpanvictor/quil-bridge/pkg/Logger"
)

type MemoryHandler struct {
	store  memory.Store
	logger *Logger.Logger
}

func NewMemoryHandler(store memory.Store, logger *Logger.Logger) *MemoryHandler {
	return &MemoryHandler{store: store, logger: logger}
}

func (h *MemoryHandler) RegisterRoutes(router gin.IRouter) {
	mem := router.Group("/api/memory")
	{
		mem.GET("/get", h.Get)
		mem.POST("/save", h.Save)
	}
}

// Get returns the stored summary for ?sessionId=, or null.
func (h *MemoryHandler) Get(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing sessionId"})
		return
	}

	summary, err := h.store.Load(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Errorf("failed to load memory for %s: %v", sessionID, err)
		c.JSON(http.StatusOK, MemoryGetResponse{})
		return
	}
	if summary == nil {
		c.JSON(http.StatusOK, MemoryGetResponse{})
		return
	}
	c.JSON(http.StatusOK, MemoryGetResponse{Summary: &summary.Summary})
}

func (h *MemoryHandler) Save(c *gin.Context) {
	var req MemorySaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing sessionId or summary", Details: err.Error()})
		return
	}

	if err := h.store.Save(c.Request.Context(), req.SessionID, req.Summary); err != nil {
		h.logger.Errorf("failed to save memory for %s: %v", req.SessionID, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal Server Error"})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}
