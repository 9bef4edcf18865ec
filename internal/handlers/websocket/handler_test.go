package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpanvictor/quil-bridge/internal/handlers"
	"github.com/xpanvictor/quil-bridge/internal/repository/memory"
	"github.com/xpanvictor/quil-bridge/internal/upstream"
	"github.com/xpanvictor/quil-bridge/pkg/io/registry"
	memoryregistry "github.com/xpanvictor/quil-bridge/pkg/io/registry/memoryRegistry"
)

func newGateway(t *testing.T) (*httptest.Server, registry.SessionRegistry) {
	t.Helper()
	return newGatewayWith(t, func() upstream.Backend { return newFakeBackend() }, nil)
}

func newGatewayWith(t *testing.T, backends upstream.Factory, store memory.Store, middleware ...gin.HandlerFunc) (*httptest.Server, registry.SessionRegistry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := memoryregistry.New()
	h := NewWebSocketHandler(nil, reg, backends, store, Options{}, time.Second)
	router := gin.New()
	h.RegisterRoutes(router, middleware...)
	router.GET("/ws/stats", h.HandleStats)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		_ = h.Close()
		srv.Close()
	})
	return srv, reg
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestPlainRequestNeedsUpgrade(t *testing.T) {
	srv, _ := newGateway(t)

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestDeviceReceivesReadyThenAuth(t *testing.T) {
	srv, reg := newGateway(t)
	conn := dial(t, srv, "/esp32")

	ready := readJSON(t, conn)
	assert.Equal(t, "ready", ready["type"])
	assert.Equal(t, "Send config to start session", ready["message"])
	assert.Equal(t, "alloy", ready["defaultVoice"])
	assert.Len(t, ready["voices"], 5)
	assert.Equal(t, 1, reg.Count())

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "config", "voice": "shimmer", "language": "de"}))
	auth := readJSON(t, conn)
	assert.Equal(t, map[string]any{"type": "auth", "status": "connected", "voice": "shimmer", "language": "de"}, auth)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "instruction", "msg": "ping"}))
	assert.Equal(t, "pong", readJSON(t, conn)["type"])
}

func TestStatsListsSessions(t *testing.T) {
	srv, reg := newGateway(t)
	conn := dial(t, srv, "/ws")
	readJSON(t, conn)
	require.Eventually(t, func() bool { return reg.Count() == 1 }, time.Second, 5*time.Millisecond)

	resp, err := http.Get(srv.URL + "/ws/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, reg.Stats().ActiveSessions)
}

func TestConcurrentDevicesAreIsolated(t *testing.T) {
	srv, reg := newGateway(t)
	const devices = 8

	var wg sync.WaitGroup
	for i := 0; i < devices; i++ {
		conn := dial(t, srv, "/ws")
		readJSON(t, conn)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return reg.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

type keyedStore map[string]string

func (k keyedStore) Load(_ context.Context, key string) (*memory.Summary, error) {
	summary, ok := k[key]
	if !ok {
		return nil, nil
	}
	return &memory.Summary{SessionID: key, Summary: summary}, nil
}

func (k keyedStore) Save(context.Context, string, string) error { return nil }

func configuredInstructions(t *testing.T, path string, middleware ...gin.HandlerFunc) string {
	t.Helper()
	backends := make(chan *fakeBackend, 1)
	factory := func() upstream.Backend {
		b := newFakeBackend()
		backends <- b
		return b
	}
	store := keyedStore{"kitchen": "Likes jazz.", "hall": "Has two cats."}
	srv, _ := newGatewayWith(t, factory, store, middleware...)

	conn := dial(t, srv, path)
	readJSON(t, conn)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "config", "voice": "nova", "language": "en"}))
	require.Equal(t, "auth", readJSON(t, conn)["type"])

	return (<-backends).config().Instructions
}

func TestDeviceSuppliedIDSelectsMemory(t *testing.T) {
	instructions := configuredInstructions(t, "/ws?deviceId=kitchen")

	assert.Contains(t, instructions, "Likes jazz.")
}

func TestAuthenticatedDeviceIDWinsOverQuery(t *testing.T) {
	authenticated := func(c *gin.Context) {
		c.Set(handlers.ContextDeviceID, "hall")
		c.Next()
	}

	instructions := configuredInstructions(t, "/ws?deviceId=kitchen", authenticated)

	assert.Contains(t, instructions, "Has two cats.")
	assert.NotContains(t, instructions, "Likes jazz.")
}

func TestAnonymousDeviceHasNoMemory(t *testing.T) {
	instructions := configuredInstructions(t, "/esp32")

	assert.NotContains(t, instructions, "Context from previous conversations")
}
