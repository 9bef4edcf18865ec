package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/xpanvictor/quil-bridge/internal/config"
	"github.com/xpanvictor/quil-bridge/internal/constants"
	"github.com/xpanvictor/quil-bridge/internal/constants/prompts"
	"github.com/xpanvictor/quil-bridge/internal/repository/memory"
	"github.com/xpanvictor/quil-bridge/internal/upstream"
	"github.com/xpanvictor/quil-bridge/pkg/Logger"
	"github.com/xpanvictor/quil-bridge/pkg/io/audio"
	"github.com/xpanvictor/quil-bridge/pkg/io/device"
	"github.com/xpanvictor/quil-bridge/pkg/io/playback"
	"github.com/xpanvictor/quil-bridge/pkg/io/registry"
)

// Session states.
const (
	StateHandshaking = "handshaking"
	StateConfigured  = "configured"
	StateClosed      = "closed"

	eventConfigure = "configure"
	eventClose     = "close"
)

// Options are the per-deployment knobs every session shares.
type Options struct {
	DefaultVoice       string
	DefaultLanguage    string
	FrameSize          int
	OutboundBuffer     int
	ConnectTimeout     time.Duration
	Model              string
	TranscriptionModel string
	TurnDetection      *upstream.TurnDetection
	LogTranscripts     bool
}

func OptionsFromSettings(cfg *config.Settings) Options {
	model := cfg.OpenAI.RealtimeModel
	if cfg.Bridge.Mode == string(upstream.ModeRest) {
		model = cfg.OpenAI.ChatModel
	}
	return Options{
		DefaultVoice:       cfg.Bridge.DefaultVoice,
		DefaultLanguage:    cfg.Bridge.DefaultLanguage,
		FrameSize:          cfg.Bridge.FrameSize,
		OutboundBuffer:     cfg.Bridge.OutboundBuffer,
		ConnectTimeout:     cfg.OpenAI.HandshakeTimeout,
		Model:              model,
		TranscriptionModel: cfg.OpenAI.TranscriptionModel,
		TurnDetection: &upstream.TurnDetection{
			Threshold:         cfg.VAD.Threshold,
			PrefixPaddingMs:   cfg.VAD.PrefixPaddingMs,
			SilenceDurationMs: cfg.VAD.SilenceDurationMs,
		},
		LogTranscripts: cfg.Debug,
	}
}

func (o Options) withDefaults() Options {
	if _, ok := constants.LookupVoice(o.DefaultVoice); !ok {
		o.DefaultVoice = constants.DefaultVoice
	}
	if _, ok := constants.LookupLanguage(o.DefaultLanguage); !ok {
		o.DefaultLanguage = constants.DefaultLanguage
	}
	if o.FrameSize <= 0 {
		o.FrameSize = audio.DeviceFrameSize
	}
	if o.OutboundBuffer <= 0 {
		o.OutboundBuffer = 1 << 20
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	return o
}

// Session bridges one device endpoint to one upstream backend. Inbound
// messages arrive from the gateway's read loop; outbound frames go through a
// ring drained by a single writer so audio and control messages keep the
// order the backend produced them in.
type Session struct {
	id          uuid.UUID
	memoryKey   string
	connectedAt time.Time
	opts        Options

	endpoint device.Endpoint
	backend  upstream.Backend
	memory   memory.Store
	registry registry.SessionRegistry
	logger   *Logger.Logger

	fsm *fsm.FSM

	mu            sync.Mutex
	voice         string
	language      string
	currentItemID string

	ring     playback.FrameRing
	notify   chan struct{}
	done     chan struct{}
	pumpDone chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

var _ registry.Entry = (*Session)(nil)

// NewSession wires a session; call Start to begin writing to the device.
// memoryKey selects the stored conversation summary, usually the device id.
func NewSession(
	id uuid.UUID,
	memoryKey string,
	endpoint device.Endpoint,
	backend upstream.Backend,
	store memory.Store,
	reg registry.SessionRegistry,
	opts Options,
	logger *Logger.Logger,
) *Session {
	if logger == nil {
		logger = Logger.NewNop()
	}
	if store == nil {
		store = memory.NewNoop()
	}
	if memoryKey == "" {
		memoryKey = id.String()
	}
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:          id,
		memoryKey:   memoryKey,
		connectedAt: time.Now(),
		opts:        opts,
		endpoint:    endpoint,
		backend:     backend,
		memory:      store,
		registry:    reg,
		logger:      logger.Session(id.String()),
		voice:       opts.DefaultVoice,
		language:    opts.DefaultLanguage,
		ring:        playback.New(opts.OutboundBuffer),
		notify:      make(chan struct{}, 1),
		done:        make(chan struct{}),
		pumpDone:    make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
	s.fsm = fsm.NewFSM(
		StateHandshaking,
		fsm.Events{
			{Name: eventConfigure, Src: []string{StateHandshaking}, Dst: StateConfigured},
			{Name: eventClose, Src: []string{StateHandshaking, StateConfigured}, Dst: StateClosed},
		},
		fsm.Callbacks{},
	)
	s.subscribe()
	return s
}

func (s *Session) ID() uuid.UUID          { return s.id }
func (s *Session) ConnectedAt() time.Time { return s.connectedAt }
func (s *Session) LastActive() time.Time  { return s.endpoint.LastActive() }
func (s *Session) State() string          { return s.fsm.Current() }

func (s *Session) Voice() (voice, language string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voice, s.language
}

// Start launches the outbound writer.
func (s *Session) Start() {
	go s.pump()
}

// Wait blocks until the outbound writer has flushed and closed the endpoint.
func (s *Session) Wait() {
	<-s.pumpDone
}

func (s *Session) SendReady() {
	s.sendJSON(ReadyMessage{
		Type:            MessageTypeReady,
		Message:         readyPrompt,
		DefaultVoice:    s.opts.DefaultVoice,
		DefaultLanguage: s.opts.DefaultLanguage,
		Voices:          constants.Voices,
	})
}

// HandleBinary forwards microphone audio. Audio before config is dropped.
func (s *Session) HandleBinary(pcm []byte) {
	if !s.fsm.Is(StateConfigured) {
		return
	}
	s.endpoint.Touch()
	if err := s.backend.SendAudio(pcm); err != nil && !errors.Is(err, upstream.ErrClosed) {
		s.logger.Warnw("forwarding audio failed", "error", err)
	}
}

// HandleText routes one device control message. Malformed or unknown
// messages are logged and ignored.
func (s *Session) HandleText(data []byte) {
	if s.fsm.Is(StateClosed) {
		return
	}
	s.endpoint.Touch()

	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warnw("invalid device message", "error", err, "raw", string(data))
		return
	}

	switch msg.Type {
	case MessageTypeConfig:
		s.handleConfig(msg)
	case MessageTypeInstruction:
		s.handleInstruction(msg)
	default:
		s.logger.Debugw("ignoring unknown device message", "type", msg.Type)
	}
}

func (s *Session) handleConfig(msg InboundMessage) {
	if err := s.fsm.Event(s.ctx, eventConfigure); err != nil {
		s.logger.Debugw("config ignored", "state", s.fsm.Current())
		return
	}

	voice := constants.ResolveVoice(msg.Voice, s.opts.DefaultVoice)
	lang := constants.ResolveLanguage(msg.Language, s.opts.DefaultLanguage)

	s.mu.Lock()
	s.voice, s.language = voice, lang.Code
	s.mu.Unlock()

	s.logger.Infow("device configured", "voice", voice, "language", lang.Code, "mode", s.backend.Mode())
	go s.connect(voice, lang)
}

func (s *Session) connect(voice string, lang constants.LanguageOption) {
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.ConnectTimeout)
	defer cancel()

	err := s.backend.Connect(ctx, upstream.SessionConfig{
		Model:              s.opts.Model,
		Voice:              voice,
		Instructions:       prompts.Persona(lang.Name, s.loadMemory(ctx)),
		TranscriptionModel: s.opts.TranscriptionModel,
		TurnDetection:      s.opts.TurnDetection,
	})
	if err != nil {
		s.logger.Errorw("failed to connect upstream", "error", err)
		s.sendJSON(ErrorMessage{Type: MessageTypeError, Message: errConnectFailed})
		s.Close()
		return
	}

	s.logger.Infow("upstream connected", "voice", voice, "language", lang.Code)
	s.sendJSON(AuthMessage{Type: MessageTypeAuth, Status: "connected", Voice: voice, Language: lang.Code})
}

func (s *Session) loadMemory(ctx context.Context) string {
	summary, err := s.memory.Load(ctx, s.memoryKey)
	if err != nil {
		s.logger.Warnw("memory unavailable", "error", err)
		return ""
	}
	if summary == nil {
		return ""
	}
	return summary.Summary
}

func (s *Session) handleInstruction(msg InboundMessage) {
	if msg.Msg == InstructionPing {
		s.sendJSON(PongMessage{Type: MessageTypePong})
		return
	}
	if !s.fsm.Is(StateConfigured) {
		s.logger.Debugw("instruction before config", "msg", msg.Msg)
		return
	}

	switch msg.Msg {
	case InstructionEndOfSpeech:
		if err := s.backend.CommitInput(); err != nil {
			s.logBackendErr("commit", err)
			return
		}
		if err := s.backend.CreateResponse(); err != nil {
			s.logBackendErr("create response", err)
		}
		if err := s.backend.ClearInput(); err != nil {
			s.logBackendErr("clear input", err)
		}

	case InstructionInterrupt:
		s.interrupt(int(msg.AudioEndMs))

	default:
		s.logger.Debugw("ignoring unknown instruction", "msg", msg.Msg)
	}
}

// interrupt truncates the response being played at the device's offset and
// drops audio not yet written to the device.
func (s *Session) interrupt(audioEndMs int) {
	s.mu.Lock()
	itemID := s.currentItemID
	s.mu.Unlock()

	if itemID != "" {
		if err := s.backend.Truncate(itemID, 0, audioEndMs); err != nil {
			s.logBackendErr("truncate", err)
		}
	}
	if err := s.backend.ClearInput(); err != nil {
		s.logBackendErr("clear input", err)
	}
	if dropped := s.ring.DropAudio(); dropped > 0 {
		s.logger.Debugw("interrupt dropped queued audio", "frames", dropped)
	}
}

func (s *Session) logBackendErr(action string, err error) {
	if errors.Is(err, upstream.ErrUnsupported) {
		s.logger.Debugw("backend does not support action", "action", action)
		return
	}
	s.logger.Warnw("backend action failed", "action", action, "error", err)
}

func (s *Session) subscribe() {
	s.backend.On(upstream.EventSessionCreated, func(upstream.Event) {
		s.logger.Info("upstream session created")
	})
	s.backend.On(upstream.EventAudioDelta, func(ev upstream.Event) {
		for _, chunk := range audio.Chunk(ev.Audio, s.opts.FrameSize) {
			s.enqueue(playback.FrameAudio, chunk)
		}
	})
	s.backend.On(upstream.EventOutputItemAdded, func(ev upstream.Event) {
		if ev.ItemID == "" {
			return
		}
		s.mu.Lock()
		s.currentItemID = ev.ItemID
		s.mu.Unlock()
	})
	s.backend.On(upstream.EventResponseDone, func(upstream.Event) {
		s.sendJSON(ServerMessage{Type: MessageTypeServer, Msg: ServerResponseComplete})
	})
	s.backend.On(upstream.EventInputCommitted, func(upstream.Event) {
		s.sendJSON(ServerMessage{Type: MessageTypeServer, Msg: ServerAudioCommitted})
	})
	s.backend.On(upstream.EventInputTranscript, func(ev upstream.Event) {
		if s.opts.LogTranscripts && ev.Transcript != "" {
			s.logger.Debugw("user said", "transcript", ev.Transcript)
		}
	})
	s.backend.On(upstream.EventResponseTranscript, func(ev upstream.Event) {
		if s.opts.LogTranscripts && ev.Transcript != "" {
			s.logger.Debugw("quil said", "transcript", ev.Transcript)
		}
	})
	s.backend.On(upstream.EventError, func(ev upstream.Event) {
		s.logger.Errorw("upstream error", "error", ev.Err)
		s.sendJSON(ErrorMessage{Type: MessageTypeError, Message: errProcessingError})
	})
	s.backend.On(upstream.EventClose, func(ev upstream.Event) {
		s.logger.Infow("upstream closed", "code", ev.CloseCode, "reason", ev.CloseReason)
		s.Close()
	})
	if s.opts.LogTranscripts {
		s.backend.Observe(func(ev upstream.Event) {
			if ev.Kind == upstream.EventAudioDelta {
				return
			}
			s.logger.Debugw("upstream event", "kind", ev.Kind.String(), "item", ev.ItemID)
		})
	}
}

func (s *Session) sendJSON(msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Errorw("encoding device message", "error", err)
		return
	}
	s.enqueue(playback.FrameControl, payload)
}

func (s *Session) enqueue(kind playback.FrameKind, payload []byte) {
	select {
	case <-s.done:
		return
	default:
	}
	if err := s.ring.Enqueue(playback.Frame{Kind: kind, Payload: payload}); err != nil {
		s.logger.Warnw("outbound frame dropped", "error", err, "bytes", len(payload))
		return
	}
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Session) pump() {
	defer close(s.pumpDone)
	defer s.endpoint.Close()

	for {
		if !s.flush() {
			return
		}
		select {
		case <-s.notify:
		case <-s.done:
			s.flush()
			return
		}
	}
}

// flush writes every queued frame, stopping at the first write error.
func (s *Session) flush() bool {
	for {
		if !s.endpoint.IsAlive() {
			return false
		}
		frame, ok := s.ring.Dequeue()
		if !ok {
			return true
		}
		var err error
		if frame.Kind == playback.FrameAudio {
			err = s.endpoint.SendAudioFrame(frame.Payload)
		} else {
			err = s.endpoint.SendText(frame.Payload)
		}
		if err != nil {
			s.logger.Infow("device write failed", "error", err)
			return false
		}
	}
}

// Close tears the session down once: the backend is released, the session
// leaves the registry, and the writer flushes what is queued before closing
// the device endpoint. Safe to call from any goroutine, any number of times.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		_ = s.fsm.Event(context.Background(), eventClose)
		s.cancel()
		if err := s.backend.Close(); err != nil {
			s.logger.Debugw("closing backend", "error", err)
		}
		if s.registry != nil {
			s.registry.Remove(s.id)
		}
		close(s.done)
		s.logger.Info("session cleaned up")
	})
	return nil
}
