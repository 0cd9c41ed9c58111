package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/businessboom/server/domain/entities"
)

// ErrPromptCancelled is returned by a prompter when the user dismisses the prompt
var ErrPromptCancelled = errors.New("prompt cancelled")

// BusinessChoice is the user's answer to a similar-business confirmation.
// An empty choice means the user cancelled.
type BusinessChoice struct {
	BusinessID string `json:"business_id,omitempty"`
	CreateNew  bool   `json:"create_new,omitempty"`
}

// BusinessContextPrompter asks the user for business information
type BusinessContextPrompter interface {
	PromptBusinessContext(ctx context.Context) (entities.BusinessContext, error)
	ConfirmBusiness(ctx context.Context, proposed entities.BusinessContext, similar []*entities.SimilarBusiness) (BusinessChoice, error)
}

// ContextResolver keeps the current business of every user and collects it
// when missing. Concurrent resolutions for the same user share one prompt.
type ContextResolver struct {
	businesses    *BusinessService
	current       *cache.Cache
	group         singleflight.Group
	promptTimeout time.Duration
	logger        *zap.Logger
}

// NewContextResolver creates a resolver whose remembered context expires after ttl
func NewContextResolver(businesses *BusinessService, ttl, promptTimeout time.Duration, logger *zap.Logger) *ContextResolver {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if promptTimeout <= 0 {
		promptTimeout = 5 * time.Minute
	}
	return &ContextResolver{
		businesses:    businesses,
		current:       cache.New(ttl, ttl/2),
		promptTimeout: promptTimeout,
		logger:        logger,
	}
}

// Current returns the remembered business of a user
func (r *ContextResolver) Current(userID string) (*entities.Business, bool) {
	v, ok := r.current.Get(userID)
	if !ok {
		return nil, false
	}
	business := v.(entities.Business)
	return &business, true
}

// Select remembers business as the user's current business
func (r *ContextResolver) Select(userID string, business *entities.Business) {
	r.current.SetDefault(userID, *business)
}

// SelectByID looks up one of the user's businesses and makes it current
func (r *ContextResolver) SelectByID(ctx context.Context, userID, businessID string) (*entities.Business, error) {
	business, err := r.businesses.Get(ctx, userID, businessID)
	if err != nil {
		return nil, err
	}
	r.Select(userID, business)
	return business, nil
}

// Clear forgets the user's current business
func (r *ContextResolver) Clear(userID string) {
	r.current.Delete(userID)
}

// Resolve returns the user's current business, prompting for it when none is
// remembered. Callers arriving while a prompt is open wait for its answer.
func (r *ContextResolver) Resolve(ctx context.Context, userID string, prompter BusinessContextPrompter) (*entities.Business, error) {
	if business, ok := r.Current(userID); ok {
		return business, nil
	}
	if prompter == nil {
		return nil, ErrBusinessContextRequired
	}

	ch := r.group.DoChan(userID, func() (interface{}, error) {
		if business, ok := r.Current(userID); ok {
			return business, nil
		}

		promptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.promptTimeout)
		defer cancel()

		business, err := r.collect(promptCtx, userID, prompter)
		if err != nil {
			return nil, err
		}
		r.Select(userID, business)
		return business, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*entities.Business), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *ContextResolver) collect(ctx context.Context, userID string, prompter BusinessContextPrompter) (*entities.Business, error) {
	r.logger.Info("Collecting business context", zap.String("userID", userID))

	proposal, err := prompter.PromptBusinessContext(ctx)
	if err != nil {
		return nil, promptError(err)
	}

	result, err := r.businesses.FindOrCreate(ctx, userID, proposal)
	if err != nil {
		return nil, err
	}
	if result.Action == ActionCreated {
		return result.Business, nil
	}

	choice, err := prompter.ConfirmBusiness(ctx, result.Proposed, result.Similar)
	if err != nil {
		return nil, promptError(err)
	}

	switch {
	case choice.BusinessID != "":
		return r.businesses.Get(ctx, userID, choice.BusinessID)
	case choice.CreateNew:
		return r.businesses.CreateConfirmed(ctx, userID, result.Proposed)
	default:
		return nil, ErrBusinessContextRequired
	}
}

func promptError(err error) error {
	if errors.Is(err, ErrPromptCancelled) {
		return ErrBusinessContextRequired
	}
	return fmt.Errorf("failed to collect business context: %w", err)
}
