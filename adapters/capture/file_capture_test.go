package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/businessboom/server/domain/repositories"
)

func TestRecordingLifecycle(t *testing.T) {
	dir := t.TempDir()
	capture, err := NewFileCapture(dir, 0, zap.NewNop())
	require.NoError(t, err)

	rec, err := capture.Open(context.Background(), "s1")
	require.NoError(t, err)

	require.NoError(t, rec.Write([]byte("abc")))
	require.NoError(t, rec.Write([]byte("def")))

	artifact, err := rec.Stop()
	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Equal(t, []byte("abcdef"), artifact.Data)
	assert.Equal(t, DefaultMimeType, artifact.MimeType)

	assert.ErrorIs(t, rec.Write([]byte("late")), ErrRecordingStopped)
	_, err = rec.Stop()
	assert.ErrorIs(t, err, ErrRecordingStopped)

	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close(), "close is idempotent")

	files, _ := filepath.Glob(filepath.Join(dir, "capture-*"))
	assert.Empty(t, files, "spool file is removed on close")
}

func TestEmptyRecordingYieldsNoArtifact(t *testing.T) {
	capture, err := NewFileCapture(t.TempDir(), 0, zap.NewNop())
	require.NoError(t, err)

	rec, err := capture.Open(context.Background(), "s1")
	require.NoError(t, err)
	defer rec.Close()

	artifact, err := rec.Stop()
	require.NoError(t, err)
	assert.Nil(t, artifact)
}

func TestRecordingSizeLimit(t *testing.T) {
	capture, err := NewFileCapture(t.TempDir(), 4, zap.NewNop())
	require.NoError(t, err)

	rec, err := capture.Open(context.Background(), "s1")
	require.NoError(t, err)
	defer rec.Close()

	require.NoError(t, rec.Write([]byte("ab")))
	assert.ErrorIs(t, rec.Write([]byte("cde")), ErrRecordingTooLarge)
	assert.ErrorIs(t, rec.Write([]byte("f")), repositories.ErrRecordingFull, "later chunks are refused once full")

	artifact, err := rec.Stop()
	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Equal(t, []byte("ab"), artifact.Data)
}

func TestCloseWithoutStop(t *testing.T) {
	dir := t.TempDir()
	capture, err := NewFileCapture(dir, 0, zap.NewNop())
	require.NoError(t, err)

	rec, err := capture.Open(context.Background(), "s1")
	require.NoError(t, err)
	require.NoError(t, rec.Write([]byte("abc")))
	require.NoError(t, rec.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
