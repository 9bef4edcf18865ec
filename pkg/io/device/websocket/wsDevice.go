package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/xpanvictor/quil-bridge/pkg/io/device"
)

var ErrEndpointClosed = errors.New("endpoint closed")

type wsEndpoint struct {
	id           uuid.UUID
	client       *websocket.Conn
	writeTimeout time.Duration

	mu         sync.Mutex
	closed     bool
	lastActive time.Time
}

// Close implements device.Endpoint. Safe to call more than once.
func (w *wsEndpoint) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	_ = w.client.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return w.client.Close()
}

// ID implements device.Endpoint.
func (w *wsEndpoint) ID() device.EndpointID {
	return device.EndpointID(w.id)
}

func (w *wsEndpoint) Touch() {
	w.mu.Lock()
	w.lastActive = time.Now()
	w.mu.Unlock()
}

// IsAlive implements device.Endpoint.
func (w *wsEndpoint) IsAlive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed
}

// LastActive implements device.Endpoint.
func (w *wsEndpoint) LastActive() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActive
}

// SendAudioFrame implements device.Endpoint.
func (w *wsEndpoint) SendAudioFrame(frame []byte) error {
	return w.write(websocket.BinaryMessage, frame)
}

// SendText implements device.Endpoint.
func (w *wsEndpoint) SendText(payload []byte) error {
	return w.write(websocket.TextMessage, payload)
}

// gorilla allows one concurrent writer per connection
func (w *wsEndpoint) write(messageType int, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrEndpointClosed
	}
	if w.writeTimeout > 0 {
		_ = w.client.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	}
	return w.client.WriteMessage(messageType, data)
}

// Transport implements device.Endpoint.
func (w *wsEndpoint) Transport() device.Transport {
	return device.TransportWS
}

func New(id uuid.UUID, client *websocket.Conn, writeTimeout time.Duration) device.Endpoint {
	return &wsEndpoint{
		id:           id,
		client:       client,
		writeTimeout: writeTimeout,
		lastActive:   time.Now(),
	}
}
