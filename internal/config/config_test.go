package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setMinimalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("VIDEO_PROVIDER", "demo")
	t.Setenv("TRANSCRIPTION_PROVIDER", "none")
}

func TestFromEnvDefaults(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, 48000, cfg.Speech.SampleRate)
	assert.Equal(t, "WEBM_OPUS", cfg.Speech.Encoding)
	assert.Equal(t, 2*time.Hour, cfg.Session.MaxDuration)
	assert.Equal(t, 5*time.Minute, cfg.Session.PromptTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowOrigins)
	assert.Equal(t, DefaultJWTSecret, cfg.JWTSecret)
	assert.Equal(t, int64(10<<20), cfg.Audio.MaxBytes)
}

func TestFromEnvOverrides(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("GEMINI_TEMPERATURE", "0.4")
	t.Setenv("SESSION_MAX_DURATION", "30m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, float32(0.4), cfg.LLM.Temperature)
	assert.Equal(t, 30*time.Minute, cfg.Session.MaxDuration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowOrigins)
}

func TestFromEnvReportsEveryBadValue(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("STT_SAMPLE_RATE", "fast")
	t.Setenv("SESSION_SWEEP_INTERVAL", "soon")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STT_SAMPLE_RATE")
	assert.Contains(t, err.Error(), "SESSION_SWEEP_INTERVAL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"production requires secret", map[string]string{"APP_ENV": "production"}, "JWT_SECRET"},
		{"production with secret", map[string]string{"APP_ENV": "production", "JWT_SECRET": "s3cret"}, ""},
		{"postgres requires dsn", map[string]string{"STORAGE_DRIVER": "postgres"}, "DATABASE_URL"},
		{"unknown driver", map[string]string{"STORAGE_DRIVER": "sqlite"}, "STORAGE_DRIVER"},
		{"gemini requires key", map[string]string{"LLM_PROVIDER": "gemini"}, "GEMINI_API_KEY"},
		{"tavus requires replica", map[string]string{"VIDEO_PROVIDER": "tavus", "TAVUS_API_KEY": "k"}, "TAVUS_REPLICA_ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setMinimalEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := FromEnv()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
