package video

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/businessboom/server/domain/repositories"
)

// DemoProvider stands in for a real avatar when no provider key is set.
// Sessions have no embed URL and the client falls back to local speech.
type DemoProvider struct {
	logger *zap.Logger
}

var _ repositories.VideoProvider = (*DemoProvider)(nil)

func NewDemoProvider(logger *zap.Logger) *DemoProvider {
	return &DemoProvider{logger: logger}
}

func (d *DemoProvider) CreateSession(ctx context.Context, config repositories.VideoSessionConfig) (repositories.VideoSession, error) {
	id := "demo-" + uuid.NewString()
	d.logger.Info("Demo video session created", zap.String("sessionID", id))
	return repositories.VideoSession{ID: id}, nil
}

func (d *DemoProvider) DeleteSession(ctx context.Context, sessionID string) error {
	d.logger.Info("Demo video session deleted", zap.String("sessionID", sessionID))
	return nil
}
