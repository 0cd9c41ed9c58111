package stt

import (
	"context"
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/businessboom/server/domain/repositories"
)

var (
	_ repositories.SpeechToText = (*GoogleSpeechToText)(nil)
	_ repositories.SpeechToText = (*MockSpeechToText)(nil)
)

func TestGetAudioEncoding(t *testing.T) {
	tests := []struct {
		in      string
		want    speechpb.RecognitionConfig_AudioEncoding
		wantErr bool
	}{
		{"WEBM_OPUS", speechpb.RecognitionConfig_WEBM_OPUS, false},
		{"", speechpb.RecognitionConfig_WEBM_OPUS, false},
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16, false},
		{"WAV", speechpb.RecognitionConfig_LINEAR16, false},
		{"MP3", speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := getAudioEncoding(tt.in)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJoinResults(t *testing.T) {
	results := []*speechpb.SpeechRecognitionResult{
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " first part "}, {Transcript: "ignored"}}},
		{},
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "second part"}}},
	}
	assert.Equal(t, "first part second part", joinResults(results))
	assert.Empty(t, joinResults(nil))
}

func TestMockSpeechToText(t *testing.T) {
	s := NewMockSpeechToText(zap.NewNop())

	_, err := s.TranscribeAudio(context.Background(), nil, repositories.AudioConfig{})
	assert.Error(t, err)

	text, err := s.TranscribeAudio(context.Background(), make([]byte, 20000), repositories.AudioConfig{})
	require.NoError(t, err)
	assert.NotEmpty(t, text)
}

func TestOversizedRecordingRejected(t *testing.T) {
	g := &GoogleSpeechToText{logger: zap.NewNop()}

	_, err := g.TranscribeAudio(context.Background(), make([]byte, MaxInlineAudioBytes+1), repositories.AudioConfig{Encoding: "WEBM_OPUS"})
	assert.ErrorIs(t, err, ErrAudioTooLarge)
}
