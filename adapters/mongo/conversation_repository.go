package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/businessboom/server/domain/entities"
	"github.com/businessboom/server/domain/repositories"
)

// conversationDocument stores messages and audio files inside the conversation
type conversationDocument struct {
	entities.Conversation `bson:",inline"`
	Messages              []entities.Message   `bson:"messages"`
	AudioFiles            []entities.AudioFile `bson:"audio_files"`
}

type ConversationRepository struct {
	conversations *mongo.Collection
	businesses    *mongo.Collection
	logger        *zap.Logger
}

var _ repositories.ConversationRepository = (*ConversationRepository)(nil)

// NewConversationRepository creates a new MongoDB conversation repository
func NewConversationRepository(db *mongo.Database, logger *zap.Logger) *ConversationRepository {
	return &ConversationRepository{
		conversations: db.Collection(conversationsCollection),
		businesses:    db.Collection(businessesCollection),
		logger:        logger,
	}
}

// Create implements repositories.ConversationRepository
func (r *ConversationRepository) Create(ctx context.Context, conversation *entities.Conversation) error {
	if conversation == nil {
		return errors.New("conversation cannot be nil")
	}

	doc := conversationDocument{
		Conversation: *conversation,
		Messages:     []entities.Message{},
		AudioFiles:   []entities.AudioFile{},
	}
	if _, err := r.conversations.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repositories.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// GetByID implements repositories.ConversationRepository
func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*entities.Conversation, error) {
	var doc conversationDocument
	if err := r.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}
	return &doc.Conversation, nil
}

// AppendMessage implements repositories.ConversationRepository
func (r *ConversationRepository) AppendMessage(ctx context.Context, message *entities.Message) error {
	return r.push(ctx, message.ConversationID, "messages", message)
}

// AttachAudio implements repositories.ConversationRepository
func (r *ConversationRepository) AttachAudio(ctx context.Context, file *entities.AudioFile) error {
	return r.push(ctx, file.ConversationID, "audio_files", file)
}

func (r *ConversationRepository) push(ctx context.Context, conversationID, field string, value interface{}) error {
	result, err := r.conversations.UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$push": bson.M{field: value}},
	)
	if err != nil {
		return fmt.Errorf("failed to update %s of conversation %s: %w", field, conversationID, err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// Complete implements repositories.ConversationRepository
func (r *ConversationRepository) Complete(ctx context.Context, id, transcript string, durationSeconds int) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"status":           entities.ConversationStatusCompleted,
			"completed_at":     now,
			"transcript_text":  transcript,
			"duration_seconds": durationSeconds,
		},
	}

	var doc conversationDocument
	err := r.conversations.FindOneAndUpdate(ctx, bson.M{"_id": id}, update).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return repositories.ErrNotFound
		}
		return fmt.Errorf("failed to complete conversation %s: %w", id, err)
	}

	if _, err := r.businesses.UpdateOne(ctx,
		bson.M{"_id": doc.BusinessID},
		bson.M{"$set": bson.M{"updated_at": now}},
	); err != nil {
		r.logger.Warn("Failed to touch business after conversation",
			zap.String("businessID", doc.BusinessID),
			zap.Error(err))
	}
	return nil
}

// ListByBusiness implements repositories.ConversationRepository
func (r *ConversationRepository) ListByBusiness(ctx context.Context, userID, businessID string) ([]*entities.ConversationDetail, error) {
	filter := bson.M{"business_id": businessID, "user_id": userID}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"audio_files": 0})

	cursor, err := r.conversations.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	var docs []conversationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}

	details := make([]*entities.ConversationDetail, 0, len(docs))
	for _, doc := range docs {
		detail := &entities.ConversationDetail{Conversation: doc.Conversation, Messages: []entities.Message{}}
		if doc.Type == entities.SessionModeChat {
			for _, m := range doc.Messages {
				m.ConversationID = doc.ID
				detail.Messages = append(detail.Messages, m)
			}
			sort.SliceStable(detail.Messages, func(i, j int) bool {
				return detail.Messages[i].Timestamp.Before(detail.Messages[j].Timestamp)
			})
		}
		details = append(details, detail)
	}
	return details, nil
}
