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

	"github.com/businessboom/server/domain/entities"
	"github.com/businessboom/server/domain/repositories"
	"github.com/businessboom/server/internal/similarity"
)

type BusinessRepository struct {
	businesses    *mongo.Collection
	conversations *mongo.Collection
}

var _ repositories.BusinessRepository = (*BusinessRepository)(nil)

// NewBusinessRepository creates a new MongoDB business repository
func NewBusinessRepository(db *mongo.Database) *BusinessRepository {
	return &BusinessRepository{
		businesses:    db.Collection(businessesCollection),
		conversations: db.Collection(conversationsCollection),
	}
}

// Create implements repositories.BusinessRepository
func (r *BusinessRepository) Create(ctx context.Context, business *entities.Business) error {
	if business == nil {
		return errors.New("business cannot be nil")
	}
	if _, err := r.businesses.InsertOne(ctx, business); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repositories.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create business: %w", err)
	}
	return nil
}

// GetByID implements repositories.BusinessRepository
func (r *BusinessRepository) GetByID(ctx context.Context, userID, id string) (*entities.Business, error) {
	var business entities.Business
	err := r.businesses.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&business)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get business %s: %w", id, err)
	}
	return &business, nil
}

// conversationStats is the per-business aggregate of the conversations collection
type conversationStats struct {
	BusinessID string    `bson:"_id"`
	Count      int       `bson:"count"`
	Last       time.Time `bson:"last"`
}

// ListByUser implements repositories.BusinessRepository
func (r *BusinessRepository) ListByUser(ctx context.Context, userID string) ([]*entities.BusinessSummary, error) {
	businesses, err := r.listOwned(ctx, userID, options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$business_id",
			"count": bson.M{"$sum": 1},
			"last":  bson.M{"$max": "$created_at"},
		}}},
	}
	cursor, err := r.conversations.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate conversations: %w", err)
	}
	var stats []conversationStats
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode conversation stats: %w", err)
	}

	byBusiness := make(map[string]conversationStats, len(stats))
	for _, s := range stats {
		byBusiness[s.BusinessID] = s
	}

	summaries := make([]*entities.BusinessSummary, 0, len(businesses))
	for _, business := range businesses {
		summary := &entities.BusinessSummary{Business: business}
		if s, ok := byBusiness[business.ID]; ok {
			last := s.Last
			summary.ConversationCount = s.Count
			summary.LastConversationAt = &last
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// FindSimilar implements repositories.BusinessRepository. Name similarity is
// computed in process because MongoDB has no trigram operator.
func (r *BusinessRepository) FindSimilar(ctx context.Context, userID string, proposal entities.BusinessContext, threshold float64, limit int) ([]*entities.SimilarBusiness, error) {
	businesses, err := r.listOwned(ctx, userID, options.Find())
	if err != nil {
		return nil, err
	}

	matches := make([]*entities.SimilarBusiness, 0)
	for _, business := range businesses {
		score := similarity.Similarity(business.Name, proposal.Name)
		if score > threshold || (business.Type == proposal.Type && business.Industry == proposal.Industry) {
			matches = append(matches, &entities.SimilarBusiness{Business: business, Similarity: score})
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

func (r *BusinessRepository) listOwned(ctx context.Context, userID string, opts *options.FindOptions) ([]entities.Business, error) {
	cursor, err := r.businesses.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list businesses: %w", err)
	}
	var businesses []entities.Business
	if err := cursor.All(ctx, &businesses); err != nil {
		return nil, fmt.Errorf("failed to decode businesses: %w", err)
	}
	return businesses, nil
}
