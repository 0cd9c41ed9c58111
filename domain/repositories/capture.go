package repositories

import (
	"context"
	"errors"

	"github.com/businessboom/server/domain/entities"
)

// ErrRecordingFull is returned by Recording.Write once the recording reached
// its size limit. The audio written before stays available to Stop.
var ErrRecordingFull = errors.New("recording exceeds size limit")

// AudioCapture opens recordings for live sessions
type AudioCapture interface {
	Open(ctx context.Context, sessionID string) (Recording, error)
}

// Recording is an exclusively owned capture handle.
// Stop yields at most one artifact; Close releases the underlying resources
// and may be called any number of times.
type Recording interface {
	Write(chunk []byte) error
	Stop() (*entities.AudioArtifact, error)
	Close() error
}
