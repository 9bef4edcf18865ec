package upstream

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/xpanvictor/quil-bridge/pkg/Logger"
)

// EventKind enumerates the backend events the bridge reacts to.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventSessionCreated
	EventSessionUpdated
	EventAudioDelta
	EventOutputItemAdded
	EventResponseDone
	EventInputCommitted
	EventInputTranscript
	EventResponseTranscript
	EventSpeechStarted
	EventSpeechStopped
	EventError
	EventClose
)

var eventKindNames = map[EventKind]string{
	EventUnknown:            "unknown",
	EventSessionCreated:     "session.created",
	EventSessionUpdated:     "session.updated",
	EventAudioDelta:         "response.audio.delta",
	EventOutputItemAdded:    "response.output_item.added",
	EventResponseDone:       "response.done",
	EventInputCommitted:     "input_audio_buffer.committed",
	EventInputTranscript:    "conversation.item.input_audio_transcription.completed",
	EventResponseTranscript: "response.audio_transcript.done",
	EventSpeechStarted:      "input_audio_buffer.speech_started",
	EventSpeechStopped:      "input_audio_buffer.speech_stopped",
	EventError:              "error",
	EventClose:              "close",
}

var eventKindsByName = func() map[string]EventKind {
	m := make(map[string]EventKind, len(eventKindNames))
	for k, name := range eventKindNames {
		m[name] = k
	}
	return m
}()

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// KindOf maps a backend wire type to its kind.
func KindOf(wireType string) EventKind {
	if k, ok := eventKindsByName[wireType]; ok {
		return k
	}
	return EventUnknown
}

// Event is the decoded form of one backend event. Only the fields relevant to
// Kind are populated.
type Event struct {
	Kind EventKind
	// Type is the wire type as sent by the backend.
	Type string

	Audio      []byte // EventAudioDelta, decoded PCM16
	ItemID     string // EventOutputItemAdded
	Transcript string // transcript events
	Err        *APIError

	CloseCode   int
	CloseReason string

	Raw json.RawMessage
}

// APIError carries a backend error payload. It is logged, never relayed.
type APIError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
}

type Handler func(Event)

// HandlerSet fans events out to per-kind handlers, in registration order,
// then to observers that see every event. A panicking handler is logged and
// does not stop the others.
type HandlerSet struct {
	mu        sync.RWMutex
	handlers  map[EventKind][]Handler
	observers []Handler
	logger    *Logger.Logger
}

func NewHandlerSet(logger *Logger.Logger) *HandlerSet {
	if logger == nil {
		logger = Logger.NewNop()
	}
	return &HandlerSet{
		handlers: make(map[EventKind][]Handler),
		logger:   logger,
	}
}

func (h *HandlerSet) On(kind EventKind, handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[kind] = append(h.handlers[kind], handler)
}

func (h *HandlerSet) Observe(handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, handler)
}

// Clear drops every subscription.
func (h *HandlerSet) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = make(map[EventKind][]Handler)
	h.observers = nil
}

func (h *HandlerSet) Emit(ev Event) {
	h.mu.RLock()
	specific := append([]Handler(nil), h.handlers[ev.Kind]...)
	observers := append([]Handler(nil), h.observers...)
	h.mu.RUnlock()

	for _, handler := range specific {
		h.invoke(handler, ev)
	}
	for _, handler := range observers {
		h.invoke(handler, ev)
	}
}

func (h *HandlerSet) invoke(handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Errorf("handler for %s panicked: %v\n%s", ev.Kind, r, debug.Stack())
		}
	}()
	handler(ev)
}
