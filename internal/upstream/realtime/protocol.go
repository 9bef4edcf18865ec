package realtime

import (
	"encoding/json"

	"github.com/xpanvictor/quil-bridge/internal/upstream"
	"github.com/xpanvictor/quil-bridge/pkg/io/audio"
)

// Client -> backend events.
type sessionUpdate struct {
	Type    string        `json:"type"`
	Session sessionParams `json:"session"`
}

type sessionParams struct {
	Modalities              []string            `json:"modalities"`
	Voice                   string              `json:"voice"`
	Instructions            string              `json:"instructions"`
	InputAudioFormat        string              `json:"input_audio_format"`
	OutputAudioFormat       string              `json:"output_audio_format"`
	InputAudioTranscription *transcriptionParam `json:"input_audio_transcription,omitempty"`
	TurnDetection           turnDetectionParam  `json:"turn_detection"`
}

type transcriptionParam struct {
	Model string `json:"model"`
}

type turnDetectionParam struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

type audioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type bareEvent struct {
	Type string `json:"type"`
}

type truncateEvent struct {
	Type         string `json:"type"`
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	AudioEndMs   int    `json:"audio_end_ms"`
}

// Backend -> client envelope. Fields not used by the bridge are left in Raw.
type serverEvent struct {
	Type       string             `json:"type"`
	Delta      string             `json:"delta"`
	ItemID     string             `json:"item_id"`
	Transcript string             `json:"transcript"`
	Item       *itemRef           `json:"item"`
	Error      *upstream.APIError `json:"error"`
}

type itemRef struct {
	ID string `json:"id"`
}

var defaultTurnDetection = upstream.TurnDetection{
	Threshold:         0.4,
	PrefixPaddingMs:   400,
	SilenceDurationMs: 1000,
}

const defaultVoice = "alloy"

func newSessionUpdate(cfg upstream.SessionConfig) sessionUpdate {
	td := defaultTurnDetection
	if cfg.TurnDetection != nil {
		td = *cfg.TurnDetection
	}
	voice := cfg.Voice
	if voice == "" {
		voice = defaultVoice
	}
	params := sessionParams{
		Modalities:        []string{"audio", "text"},
		Voice:             voice,
		Instructions:      cfg.Instructions,
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
		TurnDetection: turnDetectionParam{
			Type:              "server_vad",
			Threshold:         td.Threshold,
			PrefixPaddingMs:   td.PrefixPaddingMs,
			SilenceDurationMs: td.SilenceDurationMs,
		},
	}
	if cfg.TranscriptionModel != "" {
		params.InputAudioTranscription = &transcriptionParam{Model: cfg.TranscriptionModel}
	}
	return sessionUpdate{Type: "session.update", Session: params}
}

func decodeEvent(data []byte) (upstream.Event, error) {
	var se serverEvent
	if err := json.Unmarshal(data, &se); err != nil {
		return upstream.Event{}, err
	}
	ev := upstream.Event{
		Kind: upstream.KindOf(se.Type),
		Type: se.Type,
		Raw:  json.RawMessage(data),
	}
	switch ev.Kind {
	case upstream.EventAudioDelta:
		pcm, err := audio.Decode(se.Delta)
		if err != nil {
			return upstream.Event{}, err
		}
		ev.Audio = pcm
		ev.ItemID = se.ItemID
	case upstream.EventOutputItemAdded:
		if se.Item != nil {
			ev.ItemID = se.Item.ID
		}
	case upstream.EventInputTranscript, upstream.EventResponseTranscript:
		ev.Transcript = se.Transcript
		ev.ItemID = se.ItemID
	case upstream.EventError:
		ev.Err = se.Error
	}
	return ev, nil
}
