package repositories

import (
	"context"
	"errors"

	"github.com/businessboom/server/domain/entities"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// UserRepository defines data access methods for users
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id string) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
}

// BusinessRepository defines data access methods for businesses.
// Every lookup is scoped to the owning user.
type BusinessRepository interface {
	Create(ctx context.Context, business *entities.Business) error
	GetByID(ctx context.Context, userID, id string) (*entities.Business, error)
	ListByUser(ctx context.Context, userID string) ([]*entities.BusinessSummary, error)
	// FindSimilar returns businesses whose name similarity exceeds threshold or
	// whose type and industry both match, best matches first.
	FindSimilar(ctx context.Context, userID string, proposal entities.BusinessContext, threshold float64, limit int) ([]*entities.SimilarBusiness, error)
}

// ConversationRepository defines data access methods for conversations
type ConversationRepository interface {
	Create(ctx context.Context, conversation *entities.Conversation) error
	GetByID(ctx context.Context, id string) (*entities.Conversation, error)
	AppendMessage(ctx context.Context, message *entities.Message) error
	Complete(ctx context.Context, id, transcript string, durationSeconds int) error
	AttachAudio(ctx context.Context, file *entities.AudioFile) error
	ListByBusiness(ctx context.Context, userID, businessID string) ([]*entities.ConversationDetail, error)
}

// AudioStorage stores finished recordings
type AudioStorage interface {
	// Save stores the recording for a conversation and describes the stored file
	Save(ctx context.Context, conversationID string, audio entities.AudioArtifact) (*entities.AudioFile, error)
	// SaveLocal keeps a recording that could not be uploaded and returns its path
	SaveLocal(ctx context.Context, audio entities.AudioArtifact) (string, error)
}
