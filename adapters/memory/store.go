// Package memory keeps users, businesses and conversations in process memory.
// It backs development setups and tests; data does not survive a restart.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/businessboom/server/domain/entities"
	"github.com/businessboom/server/domain/repositories"
	"github.com/businessboom/server/internal/similarity"
)

// Store is the shared state behind the memory repositories
type Store struct {
	mu            sync.RWMutex
	users         map[string]*entities.User         // id -> user
	emails        map[string]string                 // email -> user id
	businesses    map[string]*entities.Business     // id -> business
	conversations map[string]*entities.Conversation // id -> conversation
	messages      map[string][]entities.Message     // conversation id -> messages
	audio         map[string][]entities.AudioFile   // conversation id -> files
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		users:         make(map[string]*entities.User),
		emails:        make(map[string]string),
		businesses:    make(map[string]*entities.Business),
		conversations: make(map[string]*entities.Conversation),
		messages:      make(map[string][]entities.Message),
		audio:         make(map[string][]entities.AudioFile),
	}
}

// UserRepository is the memory implementation of repositories.UserRepository
type UserRepository struct{ *Store }

// BusinessRepository is the memory implementation of repositories.BusinessRepository
type BusinessRepository struct{ *Store }

// ConversationRepository is the memory implementation of repositories.ConversationRepository
type ConversationRepository struct{ *Store }

var (
	_ repositories.UserRepository         = UserRepository{}
	_ repositories.BusinessRepository     = BusinessRepository{}
	_ repositories.ConversationRepository = ConversationRepository{}
)

// Users returns the user repository view of the store
func (s *Store) Users() UserRepository { return UserRepository{s} }

// Businesses returns the business repository view of the store
func (s *Store) Businesses() BusinessRepository { return BusinessRepository{s} }

// Conversations returns the conversation repository view of the store
func (s *Store) Conversations() ConversationRepository { return ConversationRepository{s} }

// Create implements repositories.UserRepository
func (r UserRepository) Create(ctx context.Context, user *entities.User) error {
	if user == nil {
		return errors.New("user cannot be nil")
	}
	if err := user.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := r.emails[email]; exists {
		return repositories.ErrAlreadyExists
	}

	userCopy := *user
	r.users[user.ID] = &userCopy
	r.emails[email] = user.ID
	return nil
}

// GetByID implements repositories.UserRepository
func (r UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	userCopy := *user
	return &userCopy, nil
}

// GetByEmail implements repositories.UserRepository
func (r UserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.emails[strings.ToLower(email)]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	userCopy := *r.users[id]
	return &userCopy, nil
}

// Create implements repositories.BusinessRepository
func (r BusinessRepository) Create(ctx context.Context, business *entities.Business) error {
	if business == nil {
		return errors.New("business cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.businesses[business.ID]; exists {
		return repositories.ErrAlreadyExists
	}
	businessCopy := *business
	r.businesses[business.ID] = &businessCopy
	return nil
}

// GetByID implements repositories.BusinessRepository
func (r BusinessRepository) GetByID(ctx context.Context, userID, id string) (*entities.Business, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	business, exists := r.businesses[id]
	if !exists || business.UserID != userID {
		return nil, repositories.ErrNotFound
	}
	businessCopy := *business
	return &businessCopy, nil
}

// ListByUser implements repositories.BusinessRepository
func (r BusinessRepository) ListByUser(ctx context.Context, userID string) ([]*entities.BusinessSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]*entities.BusinessSummary, 0)
	for _, business := range r.businesses {
		if business.UserID != userID {
			continue
		}
		summary := &entities.BusinessSummary{Business: *business}
		for _, conv := range r.conversations {
			if conv.BusinessID != business.ID {
				continue
			}
			summary.ConversationCount++
			if summary.LastConversationAt == nil || conv.CreatedAt.After(*summary.LastConversationAt) {
				createdAt := conv.CreatedAt
				summary.LastConversationAt = &createdAt
			}
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// FindSimilar implements repositories.BusinessRepository
func (r BusinessRepository) FindSimilar(ctx context.Context, userID string, proposal entities.BusinessContext, threshold float64, limit int) ([]*entities.SimilarBusiness, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := make([]*entities.SimilarBusiness, 0)
	for _, business := range r.businesses {
		if business.UserID != userID {
			continue
		}
		score := similarity.Similarity(business.Name, proposal.Name)
		sameKind := business.Type == proposal.Type && business.Industry == proposal.Industry
		if score > threshold || sameKind {
			matches = append(matches, &entities.SimilarBusiness{Business: *business, Similarity: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Create implements repositories.ConversationRepository
func (r ConversationRepository) Create(ctx context.Context, conversation *entities.Conversation) error {
	if conversation == nil {
		return errors.New("conversation cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.businesses[conversation.BusinessID]; !exists {
		return repositories.ErrNotFound
	}
	if _, exists := r.conversations[conversation.ID]; exists {
		return repositories.ErrAlreadyExists
	}
	conversationCopy := *conversation
	r.conversations[conversation.ID] = &conversationCopy
	return nil
}

// GetByID implements repositories.ConversationRepository
func (r ConversationRepository) GetByID(ctx context.Context, id string) (*entities.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conversation, exists := r.conversations[id]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	conversationCopy := *conversation
	return &conversationCopy, nil
}

// AppendMessage implements repositories.ConversationRepository
func (r ConversationRepository) AppendMessage(ctx context.Context, message *entities.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conversations[message.ConversationID]; !exists {
		return repositories.ErrNotFound
	}
	r.messages[message.ConversationID] = append(r.messages[message.ConversationID], *message)
	return nil
}

// Complete implements repositories.ConversationRepository
func (r ConversationRepository) Complete(ctx context.Context, id, transcript string, durationSeconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, exists := r.conversations[id]
	if !exists {
		return repositories.ErrNotFound
	}

	now := time.Now()
	conversation.Status = entities.ConversationStatusCompleted
	conversation.CompletedAt = &now
	conversation.Transcript = transcript
	conversation.DurationSecs = durationSeconds

	if business, ok := r.businesses[conversation.BusinessID]; ok {
		business.UpdatedAt = now
	}
	return nil
}

// AttachAudio implements repositories.ConversationRepository
func (r ConversationRepository) AttachAudio(ctx context.Context, file *entities.AudioFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conversations[file.ConversationID]; !exists {
		return repositories.ErrNotFound
	}
	r.audio[file.ConversationID] = append(r.audio[file.ConversationID], *file)
	return nil
}

// ListByBusiness implements repositories.ConversationRepository
func (r ConversationRepository) ListByBusiness(ctx context.Context, userID, businessID string) ([]*entities.ConversationDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	details := make([]*entities.ConversationDetail, 0)
	for _, conv := range r.conversations {
		if conv.BusinessID != businessID || conv.UserID != userID {
			continue
		}
		detail := &entities.ConversationDetail{Conversation: *conv, Messages: []entities.Message{}}
		if conv.Type == entities.SessionModeChat {
			detail.Messages = append(detail.Messages, r.messages[conv.ID]...)
			sort.SliceStable(detail.Messages, func(i, j int) bool {
				return detail.Messages[i].Timestamp.Before(detail.Messages[j].Timestamp)
			})
		}
		details = append(details, detail)
	}

	sort.Slice(details, func(i, j int) bool {
		return details[i].CreatedAt.After(details[j].CreatedAt)
	})
	return details, nil
}

// AudioFiles returns the audio recorded for a conversation
func (r ConversationRepository) AudioFiles(conversationID string) []entities.AudioFile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]entities.AudioFile(nil), r.audio[conversationID]...)
}
