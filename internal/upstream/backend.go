// Package upstream defines the capability a device session needs from a
// speech-to-speech backend. Two variants implement it: a persistent streaming
// connection (realtime) and a per-utterance request/response call paired with
// a local endpoint detector (rest).
package upstream

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned once the backend connection is gone for good.
	ErrClosed = errors.New("upstream: client closed")
	// ErrUnsupported is returned for actions the active variant does not offer.
	ErrUnsupported = errors.New("upstream: action not supported by backend")
)

type Mode string

const (
	ModeRealtime Mode = "realtime"
	ModeRest     Mode = "rest"
)

// TurnDetection configures backend-side voice activity detection.
type TurnDetection struct {
	Threshold         float64
	PrefixPaddingMs   int
	SilenceDurationMs int
}

// SessionConfig is what a device session hands the backend on connect.
type SessionConfig struct {
	Model              string
	Voice              string
	Instructions       string
	TranscriptionModel string
	TurnDetection      *TurnDetection
}

// Backend is one session's upstream voice client. Events are delivered on a
// goroutine owned by the backend.
type Backend interface {
	Mode() Mode
	// Connect opens the backend and applies cfg. Actions issued before it
	// returns are queued and flushed in order once connected.
	Connect(ctx context.Context, cfg SessionConfig) error

	On(kind EventKind, handler Handler)
	Observe(handler Handler)

	SendAudio(pcm []byte) error
	CommitInput() error
	ClearInput() error
	CreateResponse() error
	CancelResponse() error
	Truncate(itemID string, contentIndex int, audioEndMs int) error

	// Close releases the backend. It does not wait for in-flight calls.
	Close() error
}

// Factory builds a fresh backend for one session.
type Factory func() Backend
