package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/businessboom/server/domain/entities"
	"github.com/businessboom/server/domain/repositories"
)

// Transcriber converts a finished recording to text. It never fails: an
// unavailable or failing service yields ok == false.
type Transcriber interface {
	Transcribe(ctx context.Context, audio entities.AudioArtifact) (text string, ok bool)
}

// SpeechTranscriber adapts a SpeechToText provider to Transcriber
type SpeechTranscriber struct {
	stt    repositories.SpeechToText
	config repositories.AudioConfig
	logger *zap.Logger
}

var _ Transcriber = (*SpeechTranscriber)(nil)

// NewSpeechTranscriber creates a transcriber backed by a speech-to-text provider
func NewSpeechTranscriber(stt repositories.SpeechToText, config repositories.AudioConfig, logger *zap.Logger) *SpeechTranscriber {
	return &SpeechTranscriber{stt: stt, config: config, logger: logger}
}

func (t *SpeechTranscriber) Transcribe(ctx context.Context, audio entities.AudioArtifact) (string, bool) {
	if len(audio.Data) == 0 {
		return "", false
	}

	text, err := t.stt.TranscribeAudio(ctx, audio.Data, t.config)
	if err != nil {
		t.logger.Warn("Transcription failed, continuing without audio text",
			zap.Int("audioBytes", len(audio.Data)),
			zap.Error(err))
		return "", false
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	return text, true
}
