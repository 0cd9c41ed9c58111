// Package config loads the server configuration from the environment
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret is only acceptable outside production
const DefaultJWTSecret = "business-boom-dev-secret"

// Storage drivers
const (
	StorageMemory   = "memory"
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"
)

// Provider names
const (
	ProviderGemini = "gemini"
	ProviderGoogle = "google"
	ProviderTavus  = "tavus"
	ProviderDemo   = "demo"
	ProviderMock   = "mock"
	ProviderNone   = "none"
)

// Config aggregates every setting of the server
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	LLM       LLMConfig
	Speech    SpeechConfig
	Video     VideoConfig
	Audio     AudioConfig
	Session   SessionConfig
	JWTSecret string
}

type ServerConfig struct {
	Addr         string
	Env          string
	LogFilePath  string
	AllowOrigins []string
}

// Production reports whether the server runs with APP_ENV=production
func (s ServerConfig) Production() bool {
	return s.Env == "production"
}

type StorageConfig struct {
	Driver        string
	MongoURI      string
	MongoDatabase string
	PostgresDSN   string
}

type LLMConfig struct {
	Provider        string
	APIKey          string
	Model           string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int
	TimeoutSeconds  int
}

type SpeechConfig struct {
	Provider   string
	Language   string
	SampleRate int
	Encoding   string
}

type VideoConfig struct {
	Provider  string
	APIKey    string
	ReplicaID string
	BaseURL   string
}

type AudioConfig struct {
	CaptureDir  string
	UploadDir   string
	FallbackDir string
	MaxBytes    int64
}

type SessionConfig struct {
	MaxDuration   time.Duration
	SweepInterval time.Duration
	ContextTTL    time.Duration
	PromptTimeout time.Duration
}

// Load reads .env when present and then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv parses and validates the configuration from environment variables
func FromEnv() (*Config, error) {
	var errs []error
	p := parser{errs: &errs}

	cfg := &Config{
		Server: ServerConfig{
			Addr:         listenAddr(getEnvOrDefault("PORT", "8080")),
			Env:          getEnvOrDefault("APP_ENV", "development"),
			LogFilePath:  strings.TrimSpace(os.Getenv("LOG_FILE_PATH")),
			AllowOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		},
		Storage: StorageConfig{
			Driver:        strings.ToLower(getEnvOrDefault("STORAGE_DRIVER", StorageMemory)),
			MongoURI:      getEnvOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
			MongoDatabase: getEnvOrDefault("MONGODB_DATABASE", "business_boom"),
			PostgresDSN:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		},
		LLM: LLMConfig{
			Provider:        strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderGemini)),
			APIKey:          strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			Model:           strings.TrimSpace(os.Getenv("GEMINI_MODEL")),
			Temperature:     p.floatVal("GEMINI_TEMPERATURE", 0),
			TopP:            p.floatVal("GEMINI_TOP_P", 0),
			TopK:            p.floatVal("GEMINI_TOP_K", 0),
			MaxOutputTokens: p.intVal("GEMINI_MAX_OUTPUT_TOKENS", 0),
			TimeoutSeconds:  p.intVal("GEMINI_TIMEOUT_SECONDS", 0),
		},
		Speech: SpeechConfig{
			Provider:   strings.ToLower(getEnvOrDefault("TRANSCRIPTION_PROVIDER", ProviderGoogle)),
			Language:   getEnvOrDefault("STT_LANGUAGE", "en-US"),
			SampleRate: p.intVal("STT_SAMPLE_RATE", 48000),
			Encoding:   getEnvOrDefault("STT_ENCODING", "WEBM_OPUS"),
		},
		Video: VideoConfig{
			Provider:  strings.ToLower(getEnvOrDefault("VIDEO_PROVIDER", ProviderTavus)),
			APIKey:    strings.TrimSpace(os.Getenv("TAVUS_API_KEY")),
			ReplicaID: strings.TrimSpace(os.Getenv("TAVUS_REPLICA_ID")),
			BaseURL:   strings.TrimSpace(os.Getenv("TAVUS_BASE_URL")),
		},
		Audio: AudioConfig{
			CaptureDir:  getEnvOrDefault("AUDIO_CAPTURE_DIR", os.TempDir()),
			UploadDir:   getEnvOrDefault("AUDIO_UPLOAD_DIR", "uploads/audio"),
			FallbackDir: getEnvOrDefault("AUDIO_FALLBACK_DIR", "recordings"),
			MaxBytes:    int64(p.intVal("AUDIO_MAX_BYTES", 10<<20)), // inline recognition limit
		},
		Session: SessionConfig{
			MaxDuration:   p.durationVal("SESSION_MAX_DURATION", 2*time.Hour),
			SweepInterval: p.durationVal("SESSION_SWEEP_INTERVAL", 5*time.Minute),
			ContextTTL:    p.durationVal("BUSINESS_CONTEXT_TTL", 24*time.Hour),
			PromptTimeout: p.durationVal("CONTEXT_PROMPT_TIMEOUT", 5*time.Minute),
		},
		JWTSecret: getEnvOrDefault("JWT_SECRET", DefaultJWTSecret),
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross field constraints
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Production() && c.JWTSecret == DefaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StorageMongo:
		if c.Storage.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required for the mongo driver"))
		}
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver))
	}

	switch c.LLM.Provider {
	case ProviderGemini:
		if c.LLM.APIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	case ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLM.Provider))
	}

	switch c.Speech.Provider {
	case ProviderGoogle, ProviderMock, ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("unknown TRANSCRIPTION_PROVIDER %q", c.Speech.Provider))
	}

	switch c.Video.Provider {
	case ProviderTavus:
		if c.Video.APIKey == "" || c.Video.ReplicaID == "" {
			errs = append(errs, errors.New("TAVUS_API_KEY and TAVUS_REPLICA_ID are required for the tavus provider"))
		}
	case ProviderDemo, ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("unknown VIDEO_PROVIDER %q", c.Video.Provider))
	}

	if c.Session.MaxDuration <= 0 || c.Session.SweepInterval <= 0 {
		errs = append(errs, errors.New("session durations must be positive"))
	}

	return errors.Join(errs...)
}

// parser collects parse errors so every bad key is reported at once
type parser struct {
	errs *[]error
}

func (p parser) intVal(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("invalid %s value %q: %w", key, raw, err))
		return def
	}
	return v
}

func (p parser) floatVal(key string, def float32) float32 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("invalid %s value %q: %w", key, raw, err))
		return def
	}
	return float32(v)
}

func (p parser) durationVal(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("invalid %s value %q: %w", key, raw, err))
		return def
	}
	return v
}

func getEnvOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// listenAddr accepts "8080", ":8080" or "host:8080"
func listenAddr(port string) string {
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
