// Package realtime implements the streaming upstream backend: one persistent
// websocket to the realtime speech API per device session.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xpanvictor/quil-bridge/internal/upstream"
	"github.com/xpanvictor/quil-bridge/pkg/Logger"
	"github.com/xpanvictor/quil-bridge/pkg/io/audio"
)

const (
	DefaultURL   = "wss://api.openai.com/v1/realtime"
	DefaultModel = "gpt-4o-mini-realtime-preview-2024-12-17"

	abnormalClosure = websocket.CloseAbnormalClosure
)

type Config struct {
	URL              string
	APIKey           string
	Model            string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// Client is a single-use streaming connection. Once the transport closes the
// client is dead; callers build a new one to reconnect.
type Client struct {
	cfg      Config
	dialer   *websocket.Dialer
	handlers *upstream.HandlerSet
	logger   *Logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	dialing   bool
	closed    bool
	queue     [][]byte
}

var _ upstream.Backend = (*Client)(nil)

func New(cfg Config, logger *Logger.Logger) *Client {
	if logger == nil {
		logger = Logger.NewNop()
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Client{
		cfg:      cfg,
		dialer:   &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		handlers: upstream.NewHandlerSet(logger),
		logger:   logger,
	}
}

func (c *Client) Mode() upstream.Mode { return upstream.ModeRealtime }

func (c *Client) On(kind upstream.EventKind, handler upstream.Handler) {
	c.handlers.On(kind, handler)
}

func (c *Client) Observe(handler upstream.Handler) {
	c.handlers.Observe(handler)
}

func (c *Client) endpoint(model string) (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	if model == "" {
		model = c.cfg.Model
	}
	q := u.Query()
	q.Set("model", model)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the backend, sends the session configuration and flushes any
// actions queued so far. It returns once all of that has been written.
func (c *Client) Connect(ctx context.Context, cfg upstream.SessionConfig) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return upstream.ErrClosed
	}
	if c.connected || c.dialing {
		c.mu.Unlock()
		return errors.New("realtime: connect already called")
	}
	c.dialing = true
	c.mu.Unlock()

	target, err := c.endpoint(cfg.Model)
	if err != nil {
		c.fail()
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := c.dialer.DialContext(ctx, target, header)
	if err != nil {
		c.fail()
		if resp != nil {
			return fmt.Errorf("realtime dial: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("realtime dial: %w", err)
	}

	update, err := json.Marshal(newSessionUpdate(cfg))
	if err != nil {
		conn.Close()
		c.fail()
		return fmt.Errorf("encode session.update: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return upstream.ErrClosed
	}
	c.conn = conn
	if err := c.writeLocked(update); err != nil {
		c.mu.Unlock()
		c.Close()
		return fmt.Errorf("send session.update: %w", err)
	}
	queued := c.queue
	c.queue = nil
	for _, msg := range queued {
		if err := c.writeLocked(msg); err != nil {
			c.mu.Unlock()
			c.Close()
			return fmt.Errorf("flush queued event: %w", err)
		}
	}
	c.connected = true
	c.dialing = false
	c.mu.Unlock()

	c.logger.Infow("realtime backend connected", "flushed", len(queued))
	go c.readLoop(conn)
	return nil
}

func (c *Client) fail() {
	c.mu.Lock()
	c.dialing = false
	c.closed = true
	c.queue = nil
	c.mu.Unlock()
}

func (c *Client) writeLocked(msg []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// send writes now when connected, queues while connecting.
func (c *Client) send(event any) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return upstream.ErrClosed
	}
	if !c.connected {
		c.queue = append(c.queue, msg)
		return nil
	}
	if err := c.writeLocked(msg); err != nil {
		return fmt.Errorf("realtime write: %w", err)
	}
	return nil
}

func (c *Client) SendAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	return c.send(audioAppend{Type: "input_audio_buffer.append", Audio: audio.Encode(pcm)})
}

func (c *Client) CommitInput() error {
	return c.send(bareEvent{Type: "input_audio_buffer.commit"})
}

func (c *Client) ClearInput() error {
	return c.send(bareEvent{Type: "input_audio_buffer.clear"})
}

func (c *Client) CreateResponse() error {
	return c.send(bareEvent{Type: "response.create"})
}

func (c *Client) CancelResponse() error {
	return c.send(bareEvent{Type: "response.cancel"})
}

func (c *Client) Truncate(itemID string, contentIndex int, audioEndMs int) error {
	return c.send(truncateEvent{
		Type:         "conversation.item.truncate",
		ItemID:       itemID,
		ContentIndex: contentIndex,
		AudioEndMs:   audioEndMs,
	})
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			c.terminate(err)
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		ev, err := decodeEvent(data)
		if err != nil {
			c.logger.Warnw("dropping undecodable backend event", "error", err)
			continue
		}
		if ev.Kind == upstream.EventError {
			c.logger.Warnw("backend error event", "error", ev.Err)
		}
		c.handlers.Emit(ev)
	}
}

// terminate handles the end of the read loop. A locally initiated Close is
// silent; anything else surfaces as error (if not a clean close) then close.
func (c *Client) terminate(err error) {
	c.mu.Lock()
	local := c.closed
	c.closed = true
	c.connected = false
	c.queue = nil
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if local {
		return
	}
	if conn != nil {
		conn.Close()
	}

	code, reason := abnormalClosure, err.Error()
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		code, reason = ce.Code, ce.Text
	} else {
		c.logger.Errorw("realtime transport error", "error", err)
		c.handlers.Emit(upstream.Event{
			Kind: upstream.EventError,
			Type: upstream.EventError.String(),
			Err:  &upstream.APIError{Type: "transport_error", Message: err.Error()},
		})
	}
	c.logger.Infow("realtime backend closed", "code", code, "reason", reason)
	c.handlers.Emit(upstream.Event{
		Kind:        upstream.EventClose,
		Type:        upstream.EventClose.String(),
		CloseCode:   code,
		CloseReason: reason,
	})
}

// Close tears the connection down without waiting on the read loop and drops
// every handler.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed && c.conn == nil {
		c.mu.Unlock()
		c.handlers.Clear()
		return nil
	}
	c.closed = true
	c.connected = false
	c.queue = nil
	conn := c.conn
	c.conn = nil
	var err error
	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = conn.Close()
	}
	c.mu.Unlock()
	c.handlers.Clear()
	return err
}
