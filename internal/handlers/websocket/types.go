package websocket

import "github.com/xpanvictor/quil-bridge/internal/constants"

// MessageType is the "type" discriminator of device JSON messages.
type MessageType string

const (
	// device -> bridge
	MessageTypeConfig      MessageType = "config"
	MessageTypeInstruction MessageType = "instruction"

	// bridge -> device
	MessageTypeReady  MessageType = "ready"
	MessageTypeAuth   MessageType = "auth"
	MessageTypeError  MessageType = "error"
	MessageTypeServer MessageType = "server"
	MessageTypePong   MessageType = "pong"
)

const (
	InstructionEndOfSpeech = "end_of_speech"
	InstructionInterrupt   = "INTERRUPT"
	InstructionPing        = "ping"
)

const (
	ServerResponseComplete = "RESPONSE.COMPLETE"
	ServerAudioCommitted   = "AUDIO.COMMITTED"

	errConnectFailed   = "Failed to connect to AI"
	errProcessingError = "AI processing error"
	readyPrompt        = "Send config to start session"
)

// InboundMessage covers every device control message; fields not used by a
// given type are left empty.
type InboundMessage struct {
	Type       MessageType `json:"type"`
	Msg        string      `json:"msg,omitempty"`
	Voice      string      `json:"voice,omitempty"`
	Language   string      `json:"language,omitempty"`
	AudioEndMs float64     `json:"audio_end_ms,omitempty"`
}

type ReadyMessage struct {
	Type            MessageType             `json:"type"`
	Message         string                  `json:"message"`
	DefaultVoice    string                  `json:"defaultVoice"`
	DefaultLanguage string                  `json:"defaultLanguage"`
	Voices          []constants.VoiceOption `json:"voices"`
}

type AuthMessage struct {
	Type     MessageType `json:"type"`
	Status   string      `json:"status"`
	Voice    string      `json:"voice"`
	Language string      `json:"language"`
}

type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

type ServerMessage struct {
	Type MessageType `json:"type"`
	Msg  string      `json:"msg"`
}

type PongMessage struct {
	Type MessageType `json:"type"`
}
