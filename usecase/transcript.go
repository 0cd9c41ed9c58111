package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/businessboom/server/domain/entities"
)

const (
	ChatSectionHeader  = "=== CHAT MESSAGES ==="
	AudioSectionHeader = "=== AUDIO TRANSCRIPTION ==="
)

// AssembleTranscript renders the final transcript of a session. The chat
// section always comes first; the audio section is present only when the
// transcription produced text.
func AssembleTranscript(turns []entities.ChatTurn, audioText string) string {
	var b strings.Builder
	b.WriteString(ChatSectionHeader)
	for _, turn := range turns {
		b.WriteString("\n")
		b.WriteString(formatTurn(turn))
	}

	if text := strings.TrimSpace(audioText); text != "" {
		b.WriteString("\n\n")
		b.WriteString(AudioSectionHeader)
		b.WriteString("\n")
		b.WriteString(text)
	}

	return b.String()
}

func formatTurn(turn entities.ChatTurn) string {
	return fmt.Sprintf("[%s] %s: %s",
		turn.Timestamp.UTC().Format(time.RFC3339),
		speakerLabel(turn.Speaker),
		turn.Text)
}

func speakerLabel(s entities.Speaker) string {
	switch s {
	case entities.SpeakerAI:
		return "AI"
	default:
		return "USER"
	}
}
