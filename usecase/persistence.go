package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/businessboom/server/domain/entities"
	"github.com/businessboom/server/domain/repositories"
)

// SessionMeta describes a conversation record created when a session starts
type SessionMeta struct {
	UserID         string
	BusinessID     string
	Mode           entities.SessionMode
	VideoSessionID string
	StartedAt      time.Time
}

// Persistence is the conversation store used by the session controller
type Persistence interface {
	CreateConversation(ctx context.Context, meta SessionMeta) (string, error)
	AppendMessage(ctx context.Context, conversationID string, turn entities.ChatTurn) error
	EndConversation(ctx context.Context, conversationID, transcript string, durationSeconds int) error
	UploadAudio(ctx context.Context, conversationID string, audio entities.AudioArtifact) error
}

// ConversationStore implements Persistence on top of the conversation
// repository and the audio storage
type ConversationStore struct {
	conversations repositories.ConversationRepository
	audio         repositories.AudioStorage
}

var _ Persistence = (*ConversationStore)(nil)

// NewConversationStore creates a new conversation store
func NewConversationStore(conversations repositories.ConversationRepository, audio repositories.AudioStorage) *ConversationStore {
	return &ConversationStore{conversations: conversations, audio: audio}
}

func (s *ConversationStore) CreateConversation(ctx context.Context, meta SessionMeta) (string, error) {
	conversation := &entities.Conversation{
		ID:             uuid.NewString(),
		BusinessID:     meta.BusinessID,
		UserID:         meta.UserID,
		Type:           meta.Mode,
		VideoSessionID: meta.VideoSessionID,
		Status:         entities.ConversationStatusActive,
		CreatedAt:      meta.StartedAt,
	}
	if err := s.conversations.Create(ctx, conversation); err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	return conversation.ID, nil
}

func (s *ConversationStore) AppendMessage(ctx context.Context, conversationID string, turn entities.ChatTurn) error {
	message := &entities.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Sender:         turn.Speaker,
		Content:        turn.Text,
		Timestamp:      turn.Timestamp,
	}
	if err := s.conversations.AppendMessage(ctx, message); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

func (s *ConversationStore) EndConversation(ctx context.Context, conversationID, transcript string, durationSeconds int) error {
	if err := s.conversations.Complete(ctx, conversationID, transcript, durationSeconds); err != nil {
		return fmt.Errorf("failed to end conversation: %w", err)
	}
	return nil
}

func (s *ConversationStore) UploadAudio(ctx context.Context, conversationID string, audio entities.AudioArtifact) error {
	file, err := s.audio.Save(ctx, conversationID, audio)
	if err != nil {
		return fmt.Errorf("failed to store audio: %w", err)
	}
	if err := s.conversations.AttachAudio(ctx, file); err != nil {
		return fmt.Errorf("failed to record audio file: %w", err)
	}
	return nil
}
