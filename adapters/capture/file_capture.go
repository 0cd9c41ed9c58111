// Package capture buffers the audio a client streams during a session in a
// temporary file until the session ends.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/businessboom/server/domain/entities"
	"github.com/businessboom/server/domain/repositories"
)

// DefaultMimeType is the container produced by browser MediaRecorder
const DefaultMimeType = "audio/webm"

var (
	ErrRecordingStopped  = errors.New("recording already stopped")
	ErrRecordingTooLarge = repositories.ErrRecordingFull
)

// FileCapture opens file backed recordings in a spool directory
type FileCapture struct {
	dir      string
	maxBytes int64
	mimeType string
	logger   *zap.Logger
}

var _ repositories.AudioCapture = (*FileCapture)(nil)

// NewFileCapture creates the spool directory when needed. A non-positive
// maxBytes disables the size limit.
func NewFileCapture(dir string, maxBytes int64, logger *zap.Logger) (*FileCapture, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}
	return &FileCapture{dir: dir, maxBytes: maxBytes, mimeType: DefaultMimeType, logger: logger}, nil
}

// Open implements repositories.AudioCapture
func (c *FileCapture) Open(ctx context.Context, sessionID string) (repositories.Recording, error) {
	file, err := os.CreateTemp(c.dir, "capture-"+sessionID+"-*.webm")
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	c.logger.Debug("Recording opened", zap.String("sessionID", sessionID), zap.String("path", file.Name()))
	return &fileRecording{file: file, maxBytes: c.maxBytes, mimeType: c.mimeType}, nil
}

type fileRecording struct {
	mu       sync.Mutex
	file     *os.File
	size     int64
	maxBytes int64
	mimeType string
	stopped  bool
	closed   bool
	full     bool
}

func (r *fileRecording) Write(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped || r.closed {
		return ErrRecordingStopped
	}
	// Chunks are kept whole. Once one does not fit, later ones are refused too
	// so the recording never has a gap.
	if r.full || (r.maxBytes > 0 && r.size+int64(len(chunk)) > r.maxBytes) {
		r.full = true
		return ErrRecordingTooLarge
	}

	n, err := r.file.Write(chunk)
	r.size += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write audio chunk: %w", err)
	}
	return nil
}

// Stop ends the recording. It returns nil when nothing was recorded.
func (r *fileRecording) Stop() (*entities.AudioArtifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped || r.closed {
		return nil, ErrRecordingStopped
	}
	r.stopped = true

	if r.size == 0 {
		return nil, nil
	}

	data, err := os.ReadFile(r.file.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}
	return &entities.AudioArtifact{Data: data, MimeType: r.mimeType}, nil
}

// Close removes the spool file
func (r *fileRecording) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	closeErr := r.file.Close()
	if err := os.Remove(r.file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove recording: %w", err)
	}
	return closeErr
}
