// Package audiostore keeps finished session recordings on the local disk
package audiostore

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/businessboom/server/domain/entities"
	"github.com/businessboom/server/domain/repositories"
)

// Local stores uploads under uploadDir and fallback copies under fallbackDir
type Local struct {
	uploadDir   string
	fallbackDir string
	urlPrefix   string
	now         func() time.Time
	logger      *zap.Logger
}

var _ repositories.AudioStorage = (*Local)(nil)

// NewLocal creates both directories when needed. Stored files are addressed
// as urlPrefix + file name.
func NewLocal(uploadDir, fallbackDir, urlPrefix string, logger *zap.Logger) (*Local, error) {
	for _, dir := range []string{uploadDir, fallbackDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audio directory %s: %w", dir, err)
		}
	}
	return &Local{
		uploadDir:   uploadDir,
		fallbackDir: fallbackDir,
		urlPrefix:   urlPrefix,
		now:         time.Now,
		logger:      logger,
	}, nil
}

// Save implements repositories.AudioStorage
func (s *Local) Save(ctx context.Context, conversationID string, audio entities.AudioArtifact) (*entities.AudioFile, error) {
	now := s.now()
	name := fmt.Sprintf("%d-%d%s", now.UnixMilli(), rand.Int63n(1_000_000_000), extension(audio.MimeType))

	if err := os.WriteFile(filepath.Join(s.uploadDir, name), audio.Data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write audio file: %w", err)
	}

	s.logger.Info("Audio stored",
		zap.String("conversationID", conversationID),
		zap.String("file", name),
		zap.Int("bytes", len(audio.Data)))

	return &entities.AudioFile{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		FileName:       name,
		FileSize:       int64(len(audio.Data)),
		MimeType:       mimeType(audio.MimeType),
		StorageURL:     s.urlPrefix + name,
		CreatedAt:      now,
	}, nil
}

// SaveLocal implements repositories.AudioStorage
func (s *Local) SaveLocal(ctx context.Context, audio entities.AudioArtifact) (string, error) {
	name := "consultation-" + s.now().UTC().Format("2006-01-02T15-04-05-000Z") + extension(audio.MimeType)
	path := filepath.Join(s.fallbackDir, name)

	if err := os.WriteFile(path, audio.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write fallback audio: %w", err)
	}

	s.logger.Warn("Audio kept in local fallback", zap.String("path", path), zap.Int("bytes", len(audio.Data)))
	return path, nil
}

func mimeType(m string) string {
	if m == "" {
		return "audio/webm"
	}
	return m
}

func extension(m string) string {
	switch m {
	case "audio/ogg":
		return ".ogg"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/mpeg":
		return ".mp3"
	default:
		return ".webm"
	}
}
