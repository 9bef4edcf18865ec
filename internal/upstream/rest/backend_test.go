package rest

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpanvictor/quil-bridge/internal/upstream"
	"github.com/xpanvictor/quil-bridge/pkg/io/stt/vad"
)

type fakeResponder struct {
	mu      sync.Mutex
	calls   [][]byte
	voices  []string
	reply   []byte
	release chan struct{}
}

func (f *fakeResponder) Respond(ctx context.Context, utterance []byte, voice, _ string) []byte {
	f.mu.Lock()
	f.calls = append(f.calls, utterance)
	f.voices = append(f.voices, voice)
	f.mu.Unlock()
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil
		}
	}
	return f.reply
}

func (f *fakeResponder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// 20ms at 24kHz
func tone(amplitude int16) []byte {
	buf := make([]byte, 960)
	for i := 0; i < 480; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(amplitude))
	}
	return buf
}

var testVAD = vad.VADConfig{SampleRate: 24000, Threshold: 0.1, SilenceDurationMs: 100}

func speak(t *testing.T, b *Backend) {
	t.Helper()
	for i := 0; i < 5; i++ {
		require.NoError(t, b.SendAudio(tone(8000)))
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, b.SendAudio(tone(0)))
	}
}

func collect(b *Backend) chan upstream.Event {
	events := make(chan upstream.Event, 16)
	b.Observe(func(ev upstream.Event) { events <- ev })
	return events
}

func nextKind(t *testing.T, events chan upstream.Event) upstream.Event {
	t.Helper()
	for {
		select {
		case ev := <-events:
			if ev.Kind == upstream.EventSpeechStarted {
				continue
			}
			return ev
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for backend event")
			return upstream.Event{}
		}
	}
}

func TestUtteranceProducesAudioThenDone(t *testing.T) {
	responder := &fakeResponder{reply: []byte{7, 7, 7, 7}}
	b := NewBackend(responder, testVAD, nil)
	defer b.Close()
	events := collect(b)

	require.NoError(t, b.Connect(context.Background(), upstream.SessionConfig{Voice: "echo"}))
	speak(t, b)

	assert.Equal(t, upstream.EventInputCommitted, nextKind(t, events).Kind)
	delta := nextKind(t, events)
	assert.Equal(t, upstream.EventAudioDelta, delta.Kind)
	assert.Equal(t, []byte{7, 7, 7, 7}, delta.Audio)
	assert.Equal(t, upstream.EventResponseDone, nextKind(t, events).Kind)

	require.Equal(t, 1, responder.callCount())
	assert.Len(t, responder.calls[0], 5*960)
	assert.Equal(t, "echo", responder.voices[0])
}

func TestNoAudioStillCompletes(t *testing.T) {
	b := NewBackend(&fakeResponder{}, testVAD, nil)
	defer b.Close()
	events := collect(b)

	require.NoError(t, b.Connect(context.Background(), upstream.SessionConfig{}))
	speak(t, b)

	assert.Equal(t, upstream.EventInputCommitted, nextKind(t, events).Kind)
	assert.Equal(t, upstream.EventResponseDone, nextKind(t, events).Kind)
}

func TestSecondUtteranceDroppedWhileInFlight(t *testing.T) {
	responder := &fakeResponder{reply: []byte{1, 1}, release: make(chan struct{})}
	b := NewBackend(responder, testVAD, nil)
	defer b.Close()
	events := collect(b)

	require.NoError(t, b.Connect(context.Background(), upstream.SessionConfig{}))
	speak(t, b)
	assert.Equal(t, upstream.EventInputCommitted, nextKind(t, events).Kind)

	speak(t, b)
	close(responder.release)
	assert.Equal(t, upstream.EventAudioDelta, nextKind(t, events).Kind)
	assert.Equal(t, upstream.EventResponseDone, nextKind(t, events).Kind)
	assert.Equal(t, 1, responder.callCount())
}

func TestUnsupportedActions(t *testing.T) {
	b := NewBackend(&fakeResponder{}, testVAD, nil)
	defer b.Close()
	assert.ErrorIs(t, b.CommitInput(), upstream.ErrUnsupported)
	assert.ErrorIs(t, b.CreateResponse(), upstream.ErrUnsupported)
	assert.ErrorIs(t, b.CancelResponse(), upstream.ErrUnsupported)
	assert.ErrorIs(t, b.Truncate("item", 0, 10), upstream.ErrUnsupported)
	assert.NoError(t, b.ClearInput())
}

func TestCloseCancelsPendingCall(t *testing.T) {
	responder := &fakeResponder{reply: []byte{1}, release: make(chan struct{})}
	b := NewBackend(responder, testVAD, nil)
	events := collect(b)

	require.NoError(t, b.Connect(context.Background(), upstream.SessionConfig{}))
	speak(t, b)
	assert.Equal(t, upstream.EventInputCommitted, nextKind(t, events).Kind)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.SendAudio(tone(8000)), upstream.ErrClosed)

	select {
	case ev := <-events:
		t.Fatalf("unexpected event after close: %s", ev.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}
