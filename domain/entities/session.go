package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SessionMode is the interaction channel chosen when a session starts
type SessionMode string

const (
	SessionModeVideo SessionMode = "video"
	SessionModeChat  SessionMode = "chat"
)

// SessionStatus represents the lifecycle position of a consultation session
type SessionStatus string

const (
	SessionStatusIdle   SessionStatus = "idle"
	SessionStatusActive SessionStatus = "active"
	SessionStatusEnding SessionStatus = "ending"
	SessionStatusClosed SessionStatus = "closed"
)

// Speaker identifies who produced a chat turn
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerAI   Speaker = "ai"
)

var (
	ErrSessionClosed     = errors.New("session is closed")
	ErrSessionNotActive  = errors.New("session is not active")
	ErrInvalidTransition = errors.New("invalid session status transition")
	ErrInvalidMode       = errors.New("invalid session mode")
)

// ChatTurn is one utterance of a chat-mode exchange. Turns are never edited
// after they are appended.
type ChatTurn struct {
	Speaker   Speaker   `json:"speaker" bson:"speaker"`
	Text      string    `json:"text" bson:"text"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// AudioArtifact is the recording produced by stopping an audio capture
type AudioArtifact struct {
	Data     []byte `json:"-" bson:"-"`
	MimeType string `json:"mime_type" bson:"mime_type"`
}

// Size returns the number of recorded bytes
func (a *AudioArtifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Data)
}

// Session is a single consultation from start to end
type Session struct {
	ID             string         `json:"id"`
	Mode           SessionMode    `json:"mode"`
	UserID         string         `json:"user_id"`
	BusinessID     string         `json:"business_id"`
	ConversationID string         `json:"conversation_id,omitempty"`
	VideoSessionID string         `json:"video_session_id,omitempty"`
	EmbedURL       string         `json:"embed_url,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	EndedAt        *time.Time     `json:"ended_at,omitempty"`
	Status         SessionStatus  `json:"status"`
	Turns          []ChatTurn     `json:"turns"`
	Audio          *AudioArtifact `json:"audio,omitempty"`
	Transcription  *string        `json:"transcription,omitempty"`
	Transcript     string         `json:"transcript,omitempty"`
}

// NewSession creates an idle session for a user and business
func NewSession(mode SessionMode, userID, businessID string, now time.Time) *Session {
	return &Session{
		ID:         uuid.NewString(),
		Mode:       mode,
		UserID:     userID,
		BusinessID: businessID,
		StartedAt:  now,
		Status:     SessionStatusIdle,
		Turns:      make([]ChatTurn, 0),
	}
}

// Activate moves an idle session to active and stamps its start time
func (s *Session) Activate(now time.Time) error {
	if s.Status != SessionStatusIdle {
		return s.transitionError(SessionStatusActive)
	}
	s.Status = SessionStatusActive
	s.StartedAt = now
	return nil
}

// AppendTurn records a chat turn. Timestamps never go backwards: a clock
// reading earlier than the previous turn is clamped to it.
func (s *Session) AppendTurn(speaker Speaker, text string, now time.Time) (ChatTurn, error) {
	switch s.Status {
	case SessionStatusActive:
	case SessionStatusEnding, SessionStatusClosed:
		return ChatTurn{}, ErrSessionClosed
	default:
		return ChatTurn{}, ErrSessionNotActive
	}

	if n := len(s.Turns); n > 0 && now.Before(s.Turns[n-1].Timestamp) {
		now = s.Turns[n-1].Timestamp
	}

	turn := ChatTurn{Speaker: speaker, Text: text, Timestamp: now}
	s.Turns = append(s.Turns, turn)
	return turn, nil
}

// BeginEnding marks an active session as ending. No turns are accepted afterwards.
func (s *Session) BeginEnding() error {
	if s.Status == SessionStatusClosed {
		return ErrSessionClosed
	}
	if s.Status != SessionStatusActive {
		return s.transitionError(SessionStatusEnding)
	}
	s.Status = SessionStatusEnding
	return nil
}

// Close finalizes an ending session. It succeeds exactly once.
func (s *Session) Close(now time.Time, transcript string, audio *AudioArtifact, transcription *string) error {
	if s.Status == SessionStatusClosed {
		return ErrSessionClosed
	}
	if s.Status != SessionStatusEnding {
		return s.transitionError(SessionStatusClosed)
	}

	s.Status = SessionStatusClosed
	s.EndedAt = &now
	s.Transcript = transcript
	s.Audio = audio
	s.Transcription = transcription
	return nil
}

// DurationSeconds returns the whole seconds between start and end, or until now
// for a session that has not ended yet.
func (s *Session) DurationSeconds(now time.Time) int {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	d := end.Sub(s.StartedAt)
	if d < 0 {
		return 0
	}
	return int(d.Seconds())
}

// History returns a copy of the recorded turns
func (s *Session) History() []ChatTurn {
	turns := make([]ChatTurn, len(s.Turns))
	copy(turns, s.Turns)
	return turns
}

// Validate validates the session data
func (s *Session) Validate() error {
	if s.UserID == "" {
		return errors.New("user_id is required")
	}
	if s.BusinessID == "" {
		return errors.New("business_id is required")
	}
	return s.Mode.Validate()
}

// Validate reports whether the mode is one of the supported modes
func (m SessionMode) Validate() error {
	switch m {
	case SessionModeVideo, SessionModeChat:
		return nil
	default:
		return ErrInvalidMode
	}
}

func (s *Session) transitionError(to SessionStatus) error {
	return &TransitionError{From: s.Status, To: to}
}

// TransitionError describes a rejected status change
type TransitionError struct {
	From SessionStatus
	To   SessionStatus
}

func (e *TransitionError) Error() string {
	return "cannot move session from " + string(e.From) + " to " + string(e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
