package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type OpenAIConfig struct {
	APIKey             string        `mapstructure:"api_key"`
	RealtimeURL        string        `mapstructure:"realtime_url"`
	RealtimeModel      string        `mapstructure:"realtime_model"`
	BaseURL            string        `mapstructure:"base_url"`
	ChatModel          string        `mapstructure:"chat_model"`
	TranscriptionModel string        `mapstructure:"transcription_model"`
	HandshakeTimeout   time.Duration `mapstructure:"handshake_timeout"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
}

type BridgeConfig struct {
	Mode            string        `mapstructure:"mode"` // realtime | rest
	FrameSize       int           `mapstructure:"frame_size"`
	OutboundBuffer  int           `mapstructure:"outbound_buffer"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	SampleRate      int           `mapstructure:"sample_rate"`
	DefaultVoice    string        `mapstructure:"default_voice"`
	DefaultLanguage string        `mapstructure:"default_language"`
}

type VADConfig struct {
	// Threshold, PrefixPaddingMs and SilenceDurationMs configure server-side
	// turn detection in realtime mode.
	Threshold         float64 `mapstructure:"threshold"`
	PrefixPaddingMs   int     `mapstructure:"prefix_padding_ms"`
	SilenceDurationMs int     `mapstructure:"silence_duration_ms"`
	// LocalThreshold is the RMS threshold of the local detector in rest mode.
	LocalThreshold float64 `mapstructure:"local_threshold"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type RedisConfig struct {
	Addr string `mapstructure:"addr"`
	Pass string `mapstructure:"pass"`
	DB   int    `mapstructure:"db"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
}

func (d DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Name)
}

type MemoryConfig struct {
	Backend string        `mapstructure:"backend"` // none | redis | mysql | cached
	TTL     time.Duration `mapstructure:"ttl"`
}

type Settings struct {
	Server ServerConfig `mapstructure:"server"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
	Bridge BridgeConfig `mapstructure:"bridge"`
	VAD    VADConfig    `mapstructure:"vad"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Redis  RedisConfig  `mapstructure:"redis"`
	DB     DBConfig     `mapstructure:"database"`
	Memory MemoryConfig `mapstructure:"memory"`
	Env    string       `mapstructure:"env"`
	Debug  bool         `mapstructure:"debug"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("openai.realtime_url", "wss://api.openai.com/v1/realtime")
	v.SetDefault("openai.realtime_model", "gpt-4o-mini-realtime-preview-2024-12-17")
	v.SetDefault("openai.chat_model", "gpt-4o-audio-preview")
	v.SetDefault("openai.transcription_model", "whisper-1")
	v.SetDefault("openai.handshake_timeout", 10*time.Second)
	v.SetDefault("openai.request_timeout", 60*time.Second)
	v.SetDefault("openai.max_retries", 2)

	v.SetDefault("bridge.mode", "realtime")
	v.SetDefault("bridge.frame_size", 1024)
	v.SetDefault("bridge.outbound_buffer", 1<<20)
	v.SetDefault("bridge.write_timeout", 5*time.Second)
	v.SetDefault("bridge.sample_rate", 24000)
	v.SetDefault("bridge.default_voice", "alloy")
	v.SetDefault("bridge.default_language", "en")

	v.SetDefault("vad.threshold", 0.4)
	v.SetDefault("vad.prefix_padding_ms", 400)
	v.SetDefault("vad.silence_duration_ms", 1000)
	v.SetDefault("vad.local_threshold", 0.02)

	// keys without a real default are still declared so env overrides unmarshal
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pass", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.username", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "quil")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("memory.backend", "none")
	v.SetDefault("memory.ttl", 24*time.Hour)

	v.SetDefault("env", "dev")
	v.SetDefault("debug", false)
}

// Load reads config_<ENV>.yaml from the working directory when present and
// overlays environment variables (QUIL_SERVER_PORT, OPENAI_API_KEY, ...).
func Load() (*Settings, error) {
	return load(viper.New(), ".")
}

func load(v *viper.Viper, paths ...string) (*Settings, error) {
	setDefaults(v)

	v.SetEnvPrefix("quil")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	v.SetConfigName("config_" + genEnv(v))
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &settings, nil
}

// bindLegacyEnv keeps the plain variable names deployments already use.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("openai.api_key", "QUIL_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("server.host", "QUIL_SERVER_HOST", "HOST")
	_ = v.BindEnv("server.port", "QUIL_SERVER_PORT", "PORT")
	_ = v.BindEnv("debug", "QUIL_DEBUG", "DEV_MODE")
	_ = v.BindEnv("env", "QUIL_ENV", "ENV")
}

func genEnv(v *viper.Viper) string {
	env := v.GetString("env")
	if env == "" {
		return "dev"
	}
	return env
}

// Validate reports settings the server cannot start without.
func (s *Settings) Validate() error {
	if s.OpenAI.APIKey == "" {
		return errors.New("openai api key is not set (OPENAI_API_KEY)")
	}
	switch s.Bridge.Mode {
	case "realtime", "rest":
	default:
		return fmt.Errorf("unknown bridge mode %q", s.Bridge.Mode)
	}
	switch s.Memory.Backend {
	case "", "none", "redis", "mysql", "cached":
	default:
		return fmt.Errorf("unknown memory backend %q", s.Memory.Backend)
	}
	if s.Bridge.FrameSize <= 0 {
		return errors.New("bridge frame size must be positive")
	}
	return nil
}
