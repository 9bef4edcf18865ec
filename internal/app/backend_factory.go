package app

import (
	"github.com/xpanvictor/quil-bridge/internal/config"
	"github.com/xpanvictor/quil-bridge/internal/upstream"
	"github.com/xpanvictor/quil-bridge/internal/upstream/realtime"
	"github.com/xpanvictor/quil-bridge/internal/upstream/rest"
	"github.com/xpanvictor/quil-bridge/pkg/Logger"
	"github.com/xpanvictor/quil-bridge/pkg/io/stt/vad"
)

// NewBackendFactory returns a constructor for the configured upstream mode.
// Every device session gets its own backend.
func NewBackendFactory(cfg *config.Settings, logger *Logger.Logger) upstream.Factory {
	logger = logger.Named("upstream")

	if cfg.Bridge.Mode == string(upstream.ModeRest) {
		// the chat client is stateless and shared; detectors are per session
		client := rest.NewClient(rest.Config{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.ChatModel,
			SampleRate: cfg.Bridge.SampleRate,
			Timeout:    cfg.OpenAI.RequestTimeout,
			MaxRetries: cfg.OpenAI.MaxRetries,
		}, logger)
		vadConfig := LocalVADConfig(cfg)
		return func() upstream.Backend {
			return rest.NewBackend(client, vadConfig, logger)
		}
	}

	rtConfig := realtime.Config{
		URL:              cfg.OpenAI.RealtimeURL,
		APIKey:           cfg.OpenAI.APIKey,
		Model:            cfg.OpenAI.RealtimeModel,
		HandshakeTimeout: cfg.OpenAI.HandshakeTimeout,
		WriteTimeout:     cfg.Bridge.WriteTimeout,
	}
	return func() upstream.Backend {
		return realtime.New(rtConfig, logger)
	}
}

// LocalVADConfig maps settings onto the rest-mode energy detector.
func LocalVADConfig(cfg *config.Settings) vad.VADConfig {
	vc := vad.DefaultVADConfig()
	if cfg.Bridge.SampleRate > 0 {
		vc.SampleRate = cfg.Bridge.SampleRate
	}
	if cfg.VAD.LocalThreshold > 0 {
		vc.Threshold = cfg.VAD.LocalThreshold
	}
	if cfg.VAD.SilenceDurationMs > 0 {
		vc.SilenceDurationMs = cfg.VAD.SilenceDurationMs
	}
	vc.PrefixPaddingMs = cfg.VAD.PrefixPaddingMs
	return vc
}
