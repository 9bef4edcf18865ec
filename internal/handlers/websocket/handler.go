package websocket

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xpanvictor/quil-bridge/internal/handlers"
	"github.com/xpanvictor/quil-bridge/internal/repository/memory"
	"github.com/xpanvictor/quil-bridge/internal/upstream"
	"github.com/xpanvictor/quil-bridge/pkg/Logger"
	wsdevice "github.com/xpanvictor/quil-bridge/pkg/io/device/websocket"
	"github.com/xpanvictor/quil-bridge/pkg/io/registry"
)

const maxInboundMessage = 1 << 20

// WebSocketHandler is the device gateway: it upgrades connections, mints a
// session id, registers the session and runs its read loop.
type WebSocketHandler struct {
	logger       *Logger.Logger
	registry     registry.SessionRegistry
	backends     upstream.Factory
	memory       memory.Store
	opts         Options
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
}

func NewWebSocketHandler(
	logger *Logger.Logger,
	reg registry.SessionRegistry,
	backends upstream.Factory,
	store memory.Store,
	opts Options,
	writeTimeout time.Duration,
) *WebSocketHandler {
	if logger == nil {
		logger = Logger.NewNop()
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &WebSocketHandler{
		logger:       logger,
		registry:     reg,
		backends:     backends,
		memory:       store,
		opts:         opts,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			// devices do not send an Origin header
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterRoutes mounts the device endpoint on both paths devices use.
func (h *WebSocketHandler) RegisterRoutes(router gin.IRouter, middleware ...gin.HandlerFunc) {
	chain := append(append([]gin.HandlerFunc{}, middleware...), h.HandleDevice)
	router.GET("/ws", chain...)
	router.GET("/esp32", chain...)
}

func (h *WebSocketHandler) HandleDevice(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		c.String(http.StatusUpgradeRequired, "WebSocket upgrade required")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(maxInboundMessage)

	id := uuid.New()
	endpoint := wsdevice.New(id, conn, h.writeTimeout)
	session := NewSession(
		id,
		memoryKey(c),
		endpoint,
		h.backends(),
		h.memory,
		h.registry,
		h.opts,
		h.logger,
	)

	if err := h.registry.Insert(session); err != nil {
		h.logger.Errorf("failed to register session %s: %v", id, err)
		session.Close()
		endpoint.Close()
		return
	}
	h.logger.Infof("device connected: session %s (%d active)", id, h.registry.Count())

	session.Start()
	session.SendReady()
	h.readLoop(conn, session)

	session.Close()
	session.Wait()
	h.logger.Infof("device disconnected: session %s (%d active)", id, h.registry.Count())
}

// memoryKey is the authenticated device id, else the device's own ?deviceId=.
// An empty key makes the session use its minted id.
func memoryKey(c *gin.Context) string {
	if deviceID := c.GetString(handlers.ContextDeviceID); deviceID != "" {
		return deviceID
	}
	return c.Query("deviceId")
}

func (h *WebSocketHandler) readLoop(conn *websocket.Conn, session *Session) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warnf("device read error on session %s: %v", session.ID(), err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			session.HandleBinary(data)
		case websocket.TextMessage:
			session.HandleText(data)
		}
	}
}

// HandleStats reports the live sessions.
func (h *WebSocketHandler) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, handlers.StatsResponse{Status: "ok", Data: h.registry.Stats()})
}

// Close ends every session.
func (h *WebSocketHandler) Close() error {
	return h.registry.CloseAll()
}
