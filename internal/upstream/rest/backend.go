package rest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/xpanvictor/quil-bridge/internal/upstream"
	"github.com/xpanvictor/quil-bridge/pkg/Logger"
	"github.com/xpanvictor/quil-bridge/pkg/io/stt/vad"
)

// Responder performs one utterance round trip. *Client satisfies it.
type Responder interface {
	Respond(ctx context.Context, utterance []byte, voice, instructions string) []byte
}

// Backend adapts a Responder to the upstream capability by segmenting device
// audio with a local endpoint detector. At most one call is in flight; an
// utterance that completes during a call is dropped.
type Backend struct {
	responder Responder
	handlers  *upstream.HandlerSet
	logger    *Logger.Logger

	mu       sync.Mutex // guards detector, cfg, closed
	detector *vad.EnergyDetector
	cfg      upstream.SessionConfig
	closed   bool

	inFlight atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
}

var _ upstream.Backend = (*Backend)(nil)

func NewBackend(responder Responder, vadConfig vad.VADConfig, logger *Logger.Logger) *Backend {
	if logger == nil {
		logger = Logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Backend{
		responder: responder,
		handlers:  upstream.NewHandlerSet(logger),
		logger:    logger,
		detector:  vad.NewEnergyDetector(vadConfig, logger),
		ctx:       ctx,
		cancel:    cancel,
	}
	b.detector.OnSpeechStart = func() {
		b.handlers.Emit(upstream.Event{Kind: upstream.EventSpeechStarted, Type: upstream.EventSpeechStarted.String()})
	}
	b.detector.OnSpeechEnd = b.onUtterance
	return b
}

func (b *Backend) Mode() upstream.Mode { return upstream.ModeRest }

// Connect records the session parameters. There is no persistent connection.
func (b *Backend) Connect(ctx context.Context, cfg upstream.SessionConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return upstream.ErrClosed
	}
	b.cfg = cfg
	return nil
}

func (b *Backend) On(kind upstream.EventKind, handler upstream.Handler) {
	b.handlers.On(kind, handler)
}

func (b *Backend) Observe(handler upstream.Handler) {
	b.handlers.Observe(handler)
}

func (b *Backend) SendAudio(pcm []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return upstream.ErrClosed
	}
	b.detector.Process(pcm)
	return nil
}

// ClearInput drops a partially detected utterance.
func (b *Backend) ClearInput() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return upstream.ErrClosed
	}
	b.detector.Reset()
	return nil
}

func (b *Backend) CommitInput() error    { return upstream.ErrUnsupported }
func (b *Backend) CreateResponse() error { return upstream.ErrUnsupported }
func (b *Backend) CancelResponse() error { return upstream.ErrUnsupported }

func (b *Backend) Truncate(string, int, int) error { return upstream.ErrUnsupported }

// onUtterance runs inside Process, with b.mu held.
func (b *Backend) onUtterance(utterance []byte) {
	if !b.inFlight.CompareAndSwap(false, true) {
		b.logger.Warnw("dropping utterance, previous response still pending", "bytes", len(utterance))
		return
	}
	cfg := b.cfg
	b.handlers.Emit(upstream.Event{Kind: upstream.EventInputCommitted, Type: upstream.EventInputCommitted.String()})
	go b.respond(utterance, cfg)
}

func (b *Backend) respond(utterance []byte, cfg upstream.SessionConfig) {
	defer b.inFlight.Store(false)

	reply := b.responder.Respond(b.ctx, utterance, cfg.Voice, cfg.Instructions)
	if b.ctx.Err() != nil {
		return
	}
	if len(reply) == 0 {
		b.logger.Infow("no audio produced for utterance", "bytes", len(utterance))
	} else {
		b.handlers.Emit(upstream.Event{Kind: upstream.EventAudioDelta, Type: upstream.EventAudioDelta.String(), Audio: reply})
	}
	b.handlers.Emit(upstream.Event{Kind: upstream.EventResponseDone, Type: upstream.EventResponseDone.String()})
}

// Close cancels any in-flight call without waiting for it.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.detector.Reset()
	b.mu.Unlock()

	b.cancel()
	b.handlers.Clear()
	return nil
}
