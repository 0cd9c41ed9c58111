package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/businessboom/server/domain/entities"
	"github.com/businessboom/server/domain/repositories"
)

const (
	// SimilarityThreshold is the minimum name similarity for a business to be
	// offered as an existing match
	SimilarityThreshold = 0.3
	// SimilarLimit caps how many existing matches are offered
	SimilarLimit = 5
)

// FindOrCreate outcomes
const (
	ActionConfirm = "confirm"
	ActionCreated = "created"
)

// FindOrCreateResult is the outcome of proposing a business context
type FindOrCreateResult struct {
	Action   string                      `json:"action"`
	Business *entities.Business          `json:"business,omitempty"`
	Similar  []*entities.SimilarBusiness `json:"similarBusinesses,omitempty"`
	Proposed entities.BusinessContext    `json:"proposedBusiness"`
}

// BusinessService manages the businesses a user consults about
type BusinessService struct {
	businesses    repositories.BusinessRepository
	conversations repositories.ConversationRepository
	logger        *zap.Logger
	now           func() time.Time
}

// NewBusinessService creates a new business service
func NewBusinessService(businesses repositories.BusinessRepository, conversations repositories.ConversationRepository, logger *zap.Logger) *BusinessService {
	return &BusinessService{
		businesses:    businesses,
		conversations: conversations,
		logger:        logger,
		now:           time.Now,
	}
}

// List returns the user's businesses with their conversation statistics
func (s *BusinessService) List(ctx context.Context, userID string) ([]*entities.BusinessSummary, error) {
	summaries, err := s.businesses.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list businesses: %w", err)
	}
	return summaries, nil
}

// Get returns one of the user's businesses
func (s *BusinessService) Get(ctx context.Context, userID, businessID string) (*entities.Business, error) {
	business, err := s.businesses.GetByID(ctx, userID, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to get business: %w", err)
	}
	return business, nil
}

// FindOrCreate creates the proposed business unless similar businesses exist,
// in which case the caller has to confirm which one is meant
func (s *BusinessService) FindOrCreate(ctx context.Context, userID string, proposal entities.BusinessContext) (*FindOrCreateResult, error) {
	proposal = proposal.Normalize()
	if err := proposal.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	similar, err := s.businesses.FindSimilar(ctx, userID, proposal, SimilarityThreshold, SimilarLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar businesses: %w", err)
	}

	if len(similar) > 0 {
		s.logger.Info("Similar businesses found",
			zap.String("userID", userID),
			zap.String("businessName", proposal.Name),
			zap.Int("matches", len(similar)))
		return &FindOrCreateResult{Action: ActionConfirm, Similar: similar, Proposed: proposal}, nil
	}

	business, err := s.create(ctx, userID, proposal)
	if err != nil {
		return nil, err
	}
	return &FindOrCreateResult{Action: ActionCreated, Business: business, Proposed: proposal}, nil
}

// CreateConfirmed creates a business after the user rejected the similar matches
func (s *BusinessService) CreateConfirmed(ctx context.Context, userID string, proposal entities.BusinessContext) (*entities.Business, error) {
	proposal = proposal.Normalize()
	if err := proposal.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.create(ctx, userID, proposal)
}

// Conversations lists the conversations held about one of the user's businesses
func (s *BusinessService) Conversations(ctx context.Context, userID, businessID string) ([]*entities.ConversationDetail, error) {
	if _, err := s.Get(ctx, userID, businessID); err != nil {
		return nil, err
	}

	conversations, err := s.conversations.ListByBusiness(ctx, userID, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}

func (s *BusinessService) create(ctx context.Context, userID string, proposal entities.BusinessContext) (*entities.Business, error) {
	now := s.now()
	business := &entities.Business{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        proposal.Name,
		Type:        proposal.Type,
		Industry:    proposal.Industry,
		Description: proposal.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.businesses.Create(ctx, business); err != nil {
		return nil, fmt.Errorf("failed to create business: %w", err)
	}

	s.logger.Info("Business created",
		zap.String("userID", userID),
		zap.String("businessID", business.ID),
		zap.String("businessName", business.Name))
	return business, nil
}
