package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpanvictor/quil-bridge/internal/upstream"
	"github.com/xpanvictor/quil-bridge/pkg/io/audio"
)

type fakeBackend struct {
	server   *httptest.Server
	received chan map[string]any
	conns    chan *websocket.Conn
	headers  chan http.Header
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{
		received: make(chan map[string]any, 64),
		conns:    make(chan *websocket.Conn, 1),
		headers:  make(chan http.Header, 1),
	}
	upgrader := websocket.Upgrader{}
	fb.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.headers <- r.Header.Clone()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fb.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg map[string]any
			if json.Unmarshal(data, &msg) == nil {
				fb.received <- msg
			}
		}
	}))
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBackend) url() string {
	return "ws" + strings.TrimPrefix(fb.server.URL, "http")
}

func (fb *fakeBackend) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case msg := <-fb.received:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client event")
		return nil
	}
}

func (fb *fakeBackend) conn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-fb.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client connection")
		return nil
	}
}

func newTestClient(fb *fakeBackend) *Client {
	return New(Config{URL: fb.url(), APIKey: "sk-test", Model: "test-model"}, nil)
}

func TestConnectSendsSessionUpdateThenQueuedEventsInOrder(t *testing.T) {
	fb := newFakeBackend(t)
	client := newTestClient(fb)
	defer client.Close()

	require.NoError(t, client.SendAudio([]byte{1, 2, 3, 4}))
	require.NoError(t, client.CommitInput())
	require.NoError(t, client.CreateResponse())

	err := client.Connect(context.Background(), upstream.SessionConfig{
		Voice:        "nova",
		Instructions: "be brief",
		TurnDetection: &upstream.TurnDetection{
			Threshold: 0.5, PrefixPaddingMs: 300, SilenceDurationMs: 800,
		},
	})
	require.NoError(t, err)

	h := <-fb.headers
	assert.Equal(t, "Bearer sk-test", h.Get("Authorization"))
	assert.Equal(t, "realtime=v1", h.Get("OpenAI-Beta"))

	update := fb.next(t)
	assert.Equal(t, "session.update", update["type"])
	session := update["session"].(map[string]any)
	assert.Equal(t, "nova", session["voice"])
	assert.Equal(t, "be brief", session["instructions"])
	assert.Equal(t, "pcm16", session["input_audio_format"])
	td := session["turn_detection"].(map[string]any)
	assert.Equal(t, "server_vad", td["type"])
	assert.EqualValues(t, 800, td["silence_duration_ms"])

	appendMsg := fb.next(t)
	assert.Equal(t, "input_audio_buffer.append", appendMsg["type"])
	assert.Equal(t, audio.Encode([]byte{1, 2, 3, 4}), appendMsg["audio"])
	assert.Equal(t, "input_audio_buffer.commit", fb.next(t)["type"])
	assert.Equal(t, "response.create", fb.next(t)["type"])

	require.NoError(t, client.Truncate("item_1", 0, 1500))
	trunc := fb.next(t)
	assert.Equal(t, "conversation.item.truncate", trunc["type"])
	assert.Equal(t, "item_1", trunc["item_id"])
	assert.EqualValues(t, 1500, trunc["audio_end_ms"])
}

func TestEventsAreDecodedAndDispatched(t *testing.T) {
	fb := newFakeBackend(t)
	client := newTestClient(fb)
	defer client.Close()

	got := make(chan upstream.Event, 8)
	client.On(upstream.EventOutputItemAdded, func(ev upstream.Event) { got <- ev })
	client.On(upstream.EventAudioDelta, func(ev upstream.Event) { got <- ev })
	client.On(upstream.EventResponseDone, func(ev upstream.Event) { got <- ev })

	require.NoError(t, client.Connect(context.Background(), upstream.SessionConfig{}))
	server := fb.conn(t)
	fb.next(t) // session.update

	pcm := []byte{9, 8, 7, 6, 5, 4}
	for _, msg := range []string{
		`{"type":"response.output_item.added","item":{"id":"item_42"}}`,
		`{"type":"response.audio.delta","item_id":"item_42","delta":"` + audio.Encode(pcm) + `"}`,
		`{"type":"response.done"}`,
	} {
		require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte(msg)))
	}

	want := []upstream.EventKind{upstream.EventOutputItemAdded, upstream.EventAudioDelta, upstream.EventResponseDone}
	for i, kind := range want {
		select {
		case ev := <-got:
			assert.Equal(t, kind, ev.Kind)
			if i == 0 {
				assert.Equal(t, "item_42", ev.ItemID)
			}
			if i == 1 {
				assert.Equal(t, pcm, ev.Audio)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func TestRemoteCloseEmitsCloseAndKillsClient(t *testing.T) {
	fb := newFakeBackend(t)
	client := newTestClient(fb)
	defer client.Close()

	closed := make(chan upstream.Event, 1)
	client.On(upstream.EventClose, func(ev upstream.Event) { closed <- ev })

	require.NoError(t, client.Connect(context.Background(), upstream.SessionConfig{}))
	server := fb.conn(t)
	fb.next(t)

	msg := websocket.FormatCloseMessage(4000, "session expired")
	require.NoError(t, server.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

	select {
	case ev := <-closed:
		assert.Equal(t, 4000, ev.CloseCode)
		assert.Equal(t, "session expired", ev.CloseReason)
	case <-time.After(2 * time.Second):
		t.Fatal("close event not emitted")
	}

	assert.ErrorIs(t, client.SendAudio([]byte{1, 2}), upstream.ErrClosed)
}

func TestConnectFailureReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := New(Config{URL: "ws" + strings.TrimPrefix(srv.URL, "http")}, nil)
	err := client.Connect(context.Background(), upstream.SessionConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.ErrorIs(t, client.CommitInput(), upstream.ErrClosed)
}

func TestCloseIsIdempotent(t *testing.T) {
	fb := newFakeBackend(t)
	client := newTestClient(fb)
	require.NoError(t, client.Connect(context.Background(), upstream.SessionConfig{}))

	closeEvents := 0
	client.On(upstream.EventClose, func(upstream.Event) { closeEvents++ })

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())
	assert.ErrorIs(t, client.ClearInput(), upstream.ErrClosed)
	assert.Equal(t, 0, closeEvents)
}
