package vad

// Mode is the detector's view of the current audio.
type Mode int

const (
	ModeSilence Mode = iota
	ModeSpeech
)

func (m Mode) String() string {
	switch m {
	case ModeSilence:
		return "silence"
	case ModeSpeech:
		return "speech"
	default:
		return "unknown"
	}
}

// EndpointDetector segments a stream of PCM16 chunks into utterances.
type EndpointDetector interface {
	// Process feeds one chunk, in arrival order.
	Process(chunk []byte)
	// Mode reports the current state.
	Mode() Mode
	// Reset drops any partial utterance without emitting it.
	Reset()
}

// VADConfig contains configuration for VAD
type VADConfig struct {
	SampleRate        int     `mapstructure:"sample_rate" json:"sampleRate"`                // PCM16 mono sample rate
	Threshold         float64 `mapstructure:"threshold" json:"threshold"`                   // RMS threshold (0.0-1.0)
	SilenceDurationMs int     `mapstructure:"silence_duration_ms" json:"silenceDurationMs"` // silence needed to end an utterance
	// PrefixPaddingMs is forwarded to server-side turn detection only. The
	// local detector keeps no pre-roll, so the start of an utterance can be
	// clipped by up to one chunk.
	PrefixPaddingMs int `mapstructure:"prefix_padding_ms" json:"prefixPaddingMs"`
}

// DefaultVADConfig returns default configuration tuned for 24kHz device audio.
func DefaultVADConfig() VADConfig {
	return VADConfig{
		SampleRate:        24000,
		Threshold:         0.02,
		SilenceDurationMs: 1000,
		PrefixPaddingMs:   400,
	}
}
