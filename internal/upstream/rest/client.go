// Package rest implements the request/response upstream variant: one
// chat-completions call with audio in and audio out per utterance.
package rest

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/xpanvictor/quil-bridge/pkg/Logger"
	"github.com/xpanvictor/quil-bridge/pkg/io/audio"
)

const (
	DefaultModel = "gpt-4o-audio-preview"

	userPrompt = "Listen to this audio and respond."
)

type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL    string
	Model      string
	SampleRate int
	Timeout    time.Duration
	MaxRetries int
}

type Client struct {
	client openai.Client
	cfg    Config
	logger *Logger.Logger
}

func NewClient(cfg Config, logger *Logger.Logger) *Client {
	if logger == nil {
		logger = Logger.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		client: openai.NewClient(opts...),
		cfg:    cfg,
		logger: logger,
	}
}

// Respond sends one utterance and returns the spoken reply as PCM16. Every
// failure, including an empty reply, yields nil.
func (c *Client) Respond(ctx context.Context, utterance []byte, voice, instructions string) []byte {
	if len(utterance) == 0 {
		return nil
	}
	if voice == "" {
		voice = "alloy"
	}

	params := openai.ChatCompletionNewParams{
		Model:      openai.ChatModel(c.cfg.Model),
		Modalities: []string{"text", "audio"},
		Audio: openai.ChatCompletionAudioParam{
			Voice:  openai.ChatCompletionAudioParamVoice(voice),
			Format: openai.ChatCompletionAudioParamFormatPcm16,
		},
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instructions),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(userPrompt),
				openai.InputAudioContentPart(openai.ChatCompletionContentPartInputAudioInputAudioParam{
					Data:   audio.Encode(audio.PCMToWAV(utterance, c.cfg.SampleRate)),
					Format: "wav",
				}),
			}),
		},
	}

	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			c.logger.Errorw("audio completion rejected", "status", apiErr.StatusCode, "error", apiErr.Message)
		} else {
			c.logger.Errorw("audio completion failed", "error", err)
		}
		return nil
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Audio.Data == "" {
		c.logger.Warnw("no audio data in completion", "id", completion.ID)
		return nil
	}

	reply, err := audio.Decode(completion.Choices[0].Message.Audio.Data)
	if err != nil {
		c.logger.Errorw("undecodable audio in completion", "error", err)
		return nil
	}
	c.logger.Infow("audio completion received",
		"audio_id", completion.Choices[0].Message.Audio.ID,
		"bytes", len(reply),
		"took", time.Since(start).Round(time.Millisecond))
	return reply
}
