package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Stereo handling modes.
const (
	StereoAuto     = "auto"
	StereoSeparate = "separate_channels"
	StereoMerge    = "merge"
)

type Config struct {
	// External transcription server (operator-owned GPU machine)
	ExternalServerURL    string        `env:"EXTERNAL_SERVER_URL"`
	ExternalServerAPIKey string        `env:"EXTERNAL_SERVER_API_KEY"`
	ExternalTimeout      time.Duration `env:"EXTERNAL_TIMEOUT" envDefault:"1h"`

	// Managed serverless GPU platform
	ManagedTokenID     string        `env:"MANAGED_TOKEN_ID"`
	ManagedTokenSecret string        `env:"MANAGED_TOKEN_SECRET"`
	ManagedInvokeURL   string        `env:"MANAGED_INVOKE_URL"`
	ManagedEndpointURL string        `env:"MANAGED_ENDPOINT_URL"`
	ManagedTimeout     time.Duration `env:"MANAGED_TIMEOUT" envDefault:"10m"`

	// Local CPU fallback
	LocalModel  string `env:"LOCAL_MODEL" envDefault:"base"`
	LocalBinary string `env:"LOCAL_WHISPER_BINARY" envDefault:"python3"`

	// Router
	PreferredBackend string `env:"TRANSCRIPTION_BACKEND"`
	EnableFailover   bool   `env:"ENABLE_FAILOVER" envDefault:"true"`

	// Default language hint (ISO-639), empty = auto-detect. Per-request
	// hints override it.
	Language string `env:"LANGUAGE"`

	// Diarization + speaker attribution
	EnableDiarization  bool    `env:"ENABLE_DIARIZATION" envDefault:"true"`
	StereoMode         string  `env:"STEREO_MODE" envDefault:"auto"`
	LeftSpeaker        string  `env:"LEFT_SPEAKER" envDefault:"Aaron"`
	RightSpeaker       string  `env:"RIGHT_SPEAKER" envDefault:"Guest"`
	RMSNoiseFloor      float64 `env:"RMS_NOISE_FLOOR" envDefault:"3"`
	ProfilesDir        string  `env:"VOICE_PROFILES_DIR" envDefault:"data/voice_profiles"`
	MatchThreshold     float64 `env:"MATCH_CONFIDENCE_THRESHOLD" envDefault:"0.75"`
	PrimarySpeaker     string  `env:"PRIMARY_SPEAKER" envDefault:"Aaron"`
	AssumeFirstSpeaker bool    `env:"ASSUME_FIRST_SPEAKER" envDefault:"true"`
	EmbedderBinary     string  `env:"EMBEDDER_PYTHON" envDefault:"python3"`

	// External tools
	FFmpegBinary  string `env:"FFMPEG_BINARY" envDefault:"ffmpeg"`
	FFprobeBinary string `env:"FFPROBE_BINARY" envDefault:"ffprobe"`
	WorkDir       string `env:"WORK_DIR"`

	// Status API
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	// The transcribe endpoint blocks for the whole inference, so the write
	// timeout must cover the slowest backend.
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"2h"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	AuthToken    string        `env:"AUTH_TOKEN"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile          string
	HTTPAddr         string
	LogLevel         string
	PreferredBackend string
	ProfilesDir      string
	StereoMode       string
	Language         string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	// Parse environment variables into config struct
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.PreferredBackend != "" {
		cfg.PreferredBackend = overrides.PreferredBackend
	}
	if overrides.ProfilesDir != "" {
		cfg.ProfilesDir = overrides.ProfilesDir
	}
	if overrides.StereoMode != "" {
		cfg.StereoMode = overrides.StereoMode
	}
	if overrides.Language != "" {
		cfg.Language = overrides.Language
	}

	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StereoMode {
	case StereoAuto, StereoSeparate, StereoMerge:
	default:
		return fmt.Errorf("invalid STEREO_MODE %q (want %s, %s or %s)",
			c.StereoMode, StereoAuto, StereoSeparate, StereoMerge)
	}

	switch c.PreferredBackend {
	case "", "external-server", "managed-service", "local":
	default:
		return fmt.Errorf("invalid TRANSCRIPTION_BACKEND %q (want external-server, managed-service or local)",
			c.PreferredBackend)
	}

	if c.MatchThreshold < 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("MATCH_CONFIDENCE_THRESHOLD %v out of range [0,1]", c.MatchThreshold)
	}
	if c.RMSNoiseFloor < 0 {
		return fmt.Errorf("RMS_NOISE_FLOOR must not be negative, got %v", c.RMSNoiseFloor)
	}

	return nil
}
