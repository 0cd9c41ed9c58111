package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/businessboom/server/domain/repositories"
)

// MockSpeechToText returns canned transcriptions sized by the recording
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{logger: logger}
}

// TranscribeAudio implements repositories.SpeechToText
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	s.logger.Info("Processing speech-to-text",
		zap.Int("audioSize", len(audioData)),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding))

	switch {
	case len(audioData) == 0:
		return "", fmt.Errorf("no audio data received")
	case len(audioData) > 10000:
		return "I want to open a coffee shop near the university and I need help with the budget.", nil
	case len(audioData) > 1000:
		return "Thanks, that was helpful.", nil
	default:
		return "Hello", nil
	}
}
