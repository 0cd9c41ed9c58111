package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/businessboom/server/adapters/capture"
	"github.com/businessboom/server/domain/entities"
)

type controllerEnv struct {
	ctrl        *SessionController
	persistence *fakePersistence
	chat        *fakeChat
	video       *fakeVideo
	capture     *fakeCapture
	fallback    *fakeFallback
	context     *fakeContext
	notifier    *recordingNotifier
}

func newControllerEnv(t *testing.T, configure func(env *controllerEnv, deps *ControllerDeps)) *controllerEnv {
	t.Helper()
	env := &controllerEnv{
		persistence: &fakePersistence{},
		chat:        &fakeChat{reply: "Assistant: Start with your costs."},
		video:       &fakeVideo{},
		capture:     &fakeCapture{},
		fallback:    &fakeFallback{},
		context:     &fakeContext{business: &entities.Business{ID: "biz-1", Name: "Campus Coffee"}},
		notifier:    &recordingNotifier{},
	}

	deps := ControllerDeps{
		Persistence: env.persistence,
		Chat:        env.chat,
		Video:       env.video,
		Capture:     env.capture,
		Fallback:    env.fallback,
		Context:     env.context,
		Logger:      zaptest.NewLogger(t),
	}
	if configure != nil {
		configure(env, &deps)
	}

	env.ctrl = NewSessionController("user-1", deps)
	env.ctrl.Attach(env.notifier, nil)
	return env
}

func TestChatSessionLifecycle(t *testing.T) {
	env := newControllerEnv(t, nil)
	ctx := context.Background()

	view, err := env.ctrl.Start(ctx, entities.SessionModeChat)
	require.NoError(t, err)
	assert.Equal(t, StateActive, view.State)
	assert.Equal(t, "biz-1", view.BusinessID)
	assert.Equal(t, "conv-1", view.ConversationID)
	assert.True(t, view.Recording, "ambient audio is captured in chat mode too")

	reply, err := env.ctrl.SendChatMessage(ctx, "  How do I price my coffee?  ")
	require.NoError(t, err)
	assert.Equal(t, entities.SpeakerAI, reply.Speaker)
	assert.Equal(t, "Assistant: Start with your costs.", reply.Text)
	assert.Equal(t, 2, env.persistence.messageCount())

	snapshot := env.ctrl.Snapshot()
	require.Len(t, snapshot.Turns, 2)
	assert.Equal(t, "How do I price my coffee?", snapshot.Turns[0].Text)

	result, err := env.ctrl.End(ctx)
	require.NoError(t, err)
	assert.Equal(t, "conv-1", result.ConversationID)
	assert.False(t, result.Transcribed)
	assert.Equal(t, AudioNone, result.Audio.Stored)
	assert.Contains(t, result.Transcript, ChatSectionHeader)
	assert.Contains(t, result.Transcript, "USER: How do I price my coffee?")
	assert.NotContains(t, result.Transcript, AudioSectionHeader)
	assert.Equal(t, result.Transcript, env.persistence.transcript)

	assert.Equal(t, StateIdle, env.ctrl.State())
	assert.Nil(t, env.ctrl.Snapshot())
	assert.Equal(t, []string{StatusCreating, StatusChatActive, StatusEnding, StatusReady}, env.notifier.all())
	assert.Zero(t, env.video.created)
	assert.Equal(t, 1, env.capture.last.closeCount())
}

func TestStartRejectsConcurrentLifecycle(t *testing.T) {
	env := newControllerEnv(t, func(env *controllerEnv, deps *ControllerDeps) {
		env.context.entered = make(chan struct{}, 1)
		env.context.gate = make(chan struct{})
	})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := env.ctrl.Start(ctx, entities.SessionModeChat)
		done <- err
	}()
	<-env.context.entered

	assert.Equal(t, StateStarting, env.ctrl.State())
	_, err := env.ctrl.Start(ctx, entities.SessionModeChat)
	assert.ErrorIs(t, err, ErrSessionBusy)
	_, err = env.ctrl.End(ctx)
	assert.ErrorIs(t, err, ErrSessionBusy)

	close(env.context.gate)
	require.NoError(t, <-done)

	_, err = env.ctrl.Start(ctx, entities.SessionModeChat)
	assert.ErrorIs(t, err, ErrSessionActive)
	assert.Len(t, env.persistence.created, 1)
}

func TestStartValidatesMode(t *testing.T) {
	env := newControllerEnv(t, func(env *controllerEnv, deps *ControllerDeps) {
		deps.Video = nil
	})

	_, err := env.ctrl.Start(context.Background(), "phone")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.ctrl.Start(context.Background(), entities.SessionModeVideo)
	assert.ErrorIs(t, err, ErrVideoUnavailable)
	assert.Equal(t, StateIdle, env.ctrl.State())
}

func TestStartFailureReturnsToIdle(t *testing.T) {
	env := newControllerEnv(t, func(env *controllerEnv, deps *ControllerDeps) {
		env.persistence.createErr = errFake
	})
	ctx := context.Background()

	_, err := env.ctrl.Start(ctx, entities.SessionModeVideo)
	require.ErrorIs(t, err, errFake)
	assert.Equal(t, StateIdle, env.ctrl.State())
	assert.Equal(t, []string{StatusCreating, StatusStartFailed}, env.notifier.all())

	// the video session created before the failure is torn down
	assert.Equal(t, []string{"video-1"}, env.video.deletedIDs())
	require.NotNil(t, env.capture.last)
	assert.Equal(t, 1, env.capture.last.closeCount())

	env.persistence.createErr = nil
	_, err = env.ctrl.Start(ctx, entities.SessionModeVideo)
	require.NoError(t, err)
	assert.Equal(t, StateActive, env.ctrl.State())
}

func TestStartFailsWhenVideoProviderFails(t *testing.T) {
	env := newControllerEnv(t, func(env *controllerEnv, deps *ControllerDeps) {
		env.video.createErr = errFake
	})

	_, err := env.ctrl.Start(context.Background(), entities.SessionModeVideo)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, errFake)
	assert.Empty(t, env.persistence.created)
	assert.Equal(t, 1, env.capture.last.closeCount())
	assert.Equal(t, StateIdle, env.ctrl.State())
}

func TestStartRequiresBusinessContext(t *testing.T) {
	env := newControllerEnv(t, func(env *controllerEnv, deps *ControllerDeps) {
		env.context.err = ErrBusinessContextRequired
	})

	_, err := env.ctrl.Start(context.Background(), entities.SessionModeChat)
	assert.ErrorIs(t, err, ErrBusinessContextRequired)
	assert.Equal(t, StateIdle, env.ctrl.State())
	assert.Equal(t, []string{StatusCreating, StatusStartFailed}, env.notifier.all())
}

func TestSendChatMessagePreconditions(t *testing.T) {
	env := newControllerEnv(t, nil)
	ctx := context.Background()

	_, err := env.ctrl.SendChatMessage(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = env.ctrl.SendChatMessage(ctx, "hello")
	assert.ErrorIs(t, err, ErrNoActiveSession)

	_, err = env.ctrl.Start(ctx, entities.SessionModeVideo)
	require.NoError(t, err)
	_, err = env.ctrl.SendChatMessage(ctx, "hello")
	assert.ErrorIs(t, err, ErrWrongMode)
}

func TestCompletionFailureKeepsUserTurn(t *testing.T) {
	env := newControllerEnv(t, func(env *controllerEnv, deps *ControllerDeps) {
		env.chat.err = errFake
	})
	ctx := context.Background()

	_, err := env.ctrl.Start(ctx, entities.SessionModeChat)
	require.NoError(t, err)

	_, err = env.ctrl.SendChatMessage(ctx, "hello")
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, StateActive, env.ctrl.State())

	turns := env.ctrl.Snapshot().Turns
	require.Len(t, turns, 1)
	assert.Equal(t, entities.SpeakerUser, turns[0].Speaker)
	assert.Equal(t, 1, env.persistence.messageCount())
}

func TestLateReplyIsDropped(t *testing.T) {
	env := newControllerEnv(t, func(env *controllerEnv, deps *ControllerDeps) {
		env.chat.called = make(chan struct{}, 1)
		env.chat.release = make(chan struct{})
	})
	ctx := context.Background()

	_, err := env.ctrl.Start(ctx, entities.SessionModeChat)
	require.NoError(t, err)

	replied := make(chan error, 1)
	go func() {
		_, err := env.ctrl.SendChatMessage(ctx, "are you there?")
		replied <- err
	}()
	<-env.chat.called

	result, err := env.ctrl.End(ctx)
	require.NoError(t, err)
	assert.Contains(t, result.Transcript, "USER: are you there?")

	close(env.chat.release)
	assert.ErrorIs(t, <-replied, entities.ErrSessionClosed)
	assert.NotContains(t, result.Transcript, "AI:")
	assert.Equal(t, 1, env.persistence.messageCount())
}

func TestVideoSessionRecordsAndTranscribes(t *testing.T) {
	env := newControllerEnv(t, func(env *controllerEnv, deps *ControllerDeps) {
		deps.Transcriber = fakeTranscriber{text: "I sell coffee on campus", ok: true}
	})
	ctx := context.Background()

	view, err := env.ctrl.Start(ctx, entities.SessionModeVideo)
	require.NoError(t, err)
	assert.True(t, view.Recording)
	assert.Equal(t, "https://video.example/room", view.EmbedURL)
	assert.Equal(t, "video-1", env.persistence.created[0].VideoSessionID)

	require.NoError(t, env.ctrl.WriteAudio([]byte("chunk-1")))
	require.NoError(t, env.ctrl.WriteAudio([]byte("chunk-2")))

	result, err := env.ctrl.End(ctx)
	require.NoError(t, err)
	assert.True(t, result.Transcribed)
	assert.Contains(t, result.Transcript, AudioSectionHeader+"\nI sell coffee on campus")
	assert.Equal(t, AudioOutcome{Stored: AudioUploaded, Bytes: 14}, result.Audio)
	assert.Equal(t, 14, env.persistence.uploadedSize)
	assert.Equal(t, []string{"video-1"}, env.video.deletedIDs())
	assert.Equal(t, 1, env.capture.last.closeCount())

	assert.Equal(t, []string{StatusCreating, StatusVideoRecording, StatusEnding, StatusReady}, env.notifier.all())
}

func TestFailedTranscriptionKeepsChatSection(t *testing.T) {
	env := newControllerEnv(t, func(env *controllerEnv, deps *ControllerDeps) {
		deps.Transcriber = fakeTranscriber{ok: false}
	})
	ctx := context.Background()

	_, err := env.ctrl.Start(ctx, entities.SessionModeVideo)
	require.NoError(t, err)
	require.NoError(t, env.ctrl.WriteAudio([]byte("noise")))

	result, err := env.ctrl.End(ctx)
	require.NoError(t, err)
	assert.False(t, result.Transcribed)
	assert.Equal(t, ChatSectionHeader, result.Transcript)
	assert.Equal(t, AudioUploaded, result.Audio.Stored)
}

func TestUploadFailureFallsBackToLocalSave(t *testing.T) {
	env := newControllerEnv(t, func(env *controllerEnv, deps *ControllerDeps) {
		env.persistence.uploadErr = errFake
	})
	ctx := context.Background()

	_, err := env.ctrl.Start(ctx, entities.SessionModeVideo)
	require.NoError(t, err)
	require.NoError(t, env.ctrl.WriteAudio([]byte("audio")))

	result, err := env.ctrl.End(ctx)
	require.NoError(t, err)
	assert.Equal(t, AudioLocal, result.Audio.Stored)
	assert.Equal(t, "recordings/consultation.webm", result.Audio.Path)
	assert.Equal(t, 1, env.fallback.saved)
	assert.NotContains(t, env.notifier.all(), StatusEndFailed)
}

func TestAudioLostStillEndsSession(t *testing.T) {
	env := newControllerEnv(t, func(env *controllerEnv, deps *ControllerDeps) {
		env.persistence.uploadErr = errFake
		env.fallback.err = errors.New("disk full")
	})
	ctx := context.Background()

	_, err := env.ctrl.Start(ctx, entities.SessionModeVideo)
	require.NoError(t, err)
	require.NoError(t, env.ctrl.WriteAudio([]byte("audio")))

	result, err := env.ctrl.End(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errFake)
	require.NotNil(t, result)
	assert.Equal(t, AudioLost, result.Audio.Stored)
	assert.Equal(t, StateIdle, env.ctrl.State())

	statuses := env.notifier.all()
	assert.Equal(t, []string{StatusEndFailed, StatusReady}, statuses[len(statuses)-2:])

	_, err = env.ctrl.Start(ctx, entities.SessionModeChat)
	assert.NoError(t, err, "a failed end must not leave the controller busy")
}

func TestPersistenceFailureOnEndClearsBusyState(t *testing.T) {
	env := newControllerEnv(t, func(env *controllerEnv, deps *ControllerDeps) {
		env.persistence.endErr = errFake
	})
	ctx := context.Background()

	_, err := env.ctrl.Start(ctx, entities.SessionModeChat)
	require.NoError(t, err)

	result, err := env.ctrl.End(ctx)
	assert.ErrorIs(t, err, errFake)
	require.NotNil(t, result)
	assert.Equal(t, StateIdle, env.ctrl.State())
}

func TestEndWithoutSession(t *testing.T) {
	env := newControllerEnv(t, nil)
	_, err := env.ctrl.End(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveSession)
	assert.Empty(t, env.notifier.all())
}

func TestAudioCaptureIsBestEffort(t *testing.T) {
	env := newControllerEnv(t, func(env *controllerEnv, deps *ControllerDeps) {
		env.capture.openErr = errors.New("no microphone")
	})
	ctx := context.Background()

	view, err := env.ctrl.Start(ctx, entities.SessionModeVideo)
	require.NoError(t, err)
	assert.False(t, view.Recording)
	assert.Contains(t, env.notifier.all(), StatusVideoActive)
	assert.ErrorIs(t, env.ctrl.WriteAudio([]byte("x")), ErrNoRecording)

	result, err := env.ctrl.End(ctx)
	require.NoError(t, err)
	assert.Equal(t, AudioNone, result.Audio.Stored)
}

func TestWriteFailureReleasesRecording(t *testing.T) {
	env := newControllerEnv(t, func(env *controllerEnv, deps *ControllerDeps) {
		env.capture.writeErr = errors.New("no space left on device")
	})
	ctx := context.Background()

	_, err := env.ctrl.Start(ctx, entities.SessionModeVideo)
	require.NoError(t, err)

	assert.Error(t, env.ctrl.WriteAudio([]byte("x")))
	assert.ErrorIs(t, env.ctrl.WriteAudio([]byte("x")), ErrNoRecording)
	assert.False(t, env.ctrl.Snapshot().Recording)
	assert.Equal(t, 1, env.capture.last.closeCount())
	assert.Equal(t, StateActive, env.ctrl.State())
}

func TestWriteAudioWithoutSession(t *testing.T) {
	env := newControllerEnv(t, nil)
	assert.ErrorIs(t, env.ctrl.WriteAudio([]byte("x")), ErrNoActiveSession)
}

func TestTurnTimestampsUseClock(t *testing.T) {
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	env := newControllerEnv(t, func(env *controllerEnv, deps *ControllerDeps) {
		deps.Now = func() time.Time { return base }
	})
	ctx := context.Background()

	view, err := env.ctrl.Start(ctx, entities.SessionModeChat)
	require.NoError(t, err)
	assert.Equal(t, base, view.StartedAt)

	turn, err := env.ctrl.SendChatMessage(ctx, "hi")
	require.NoError(t, err)
	assert.Equal(t, base, turn.Timestamp)

	result, err := env.ctrl.End(ctx)
	require.NoError(t, err)
	assert.Contains(t, result.Transcript, "[2024-06-01T09:00:00Z] USER: hi")
	assert.Zero(t, result.DurationSeconds)
}

func TestChatTurnsPersistInCallOrder(t *testing.T) {
	tests := []struct {
		name     string
		messages []string
	}{
		{"single exchange", []string{"How do I price my coffee?"}},
		{"several exchanges", []string{"What are my costs?", "Who are my competitors?", "Do I need a permit?", "How much should I charge?"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newControllerEnv(t, nil)
			ctx := context.Background()

			_, err := env.ctrl.Start(ctx, entities.SessionModeChat)
			require.NoError(t, err)

			for _, text := range tt.messages {
				_, err := env.ctrl.SendChatMessage(ctx, text)
				require.NoError(t, err)
			}

			env.persistence.mu.Lock()
			persisted := append([]entities.ChatTurn(nil), env.persistence.messages...)
			env.persistence.mu.Unlock()

			require.Len(t, persisted, 2*len(tt.messages))
			for i, text := range tt.messages {
				user, ai := persisted[2*i], persisted[2*i+1]
				assert.Equal(t, entities.SpeakerUser, user.Speaker)
				assert.Equal(t, text, user.Text)
				assert.Equal(t, entities.SpeakerAI, ai.Speaker)
				assert.False(t, ai.Timestamp.Before(user.Timestamp))
			}
		})
	}
}

type panickingContext struct{}

func (panickingContext) Resolve(ctx context.Context, userID string, prompter BusinessContextPrompter) (*entities.Business, error) {
	panic("business lookup exploded")
}

type panickingPersistence struct {
	*fakePersistence
}

func (panickingPersistence) CreateConversation(ctx context.Context, meta SessionMeta) (string, error) {
	panic("database driver exploded")
}

func TestPanickingStartReturnsToIdle(t *testing.T) {
	tests := []struct {
		name          string
		configure     func(env *controllerEnv, deps *ControllerDeps)
		wantRecording bool
	}{
		{
			name: "business lookup",
			configure: func(env *controllerEnv, deps *ControllerDeps) {
				deps.Context = panickingContext{}
			},
		},
		{
			name: "conversation record",
			configure: func(env *controllerEnv, deps *ControllerDeps) {
				deps.Persistence = panickingPersistence{env.persistence}
			},
			wantRecording: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newControllerEnv(t, tt.configure)
			ctx := context.Background()

			assert.Panics(t, func() {
				_, _ = env.ctrl.Start(ctx, entities.SessionModeChat)
			})

			assert.Equal(t, StateIdle, env.ctrl.State())
			assert.Nil(t, env.ctrl.Snapshot())
			assert.Equal(t, []string{StatusCreating, StatusStartFailed}, env.notifier.all())
			if tt.wantRecording {
				require.NotNil(t, env.capture.last)
				assert.Equal(t, 1, env.capture.last.closeCount(), "recording released")
			}

			_, err := env.ctrl.End(ctx)
			assert.ErrorIs(t, err, ErrNoActiveSession)
		})
	}
}

func TestRecordingLimitKeepsCapturedAudio(t *testing.T) {
	env := newControllerEnv(t, func(env *controllerEnv, deps *ControllerDeps) {
		recorder, err := capture.NewFileCapture(t.TempDir(), 10, zaptest.NewLogger(t))
		require.NoError(t, err)
		deps.Capture = recorder
	})
	ctx := context.Background()

	_, err := env.ctrl.Start(ctx, entities.SessionModeChat)
	require.NoError(t, err)

	require.NoError(t, env.ctrl.WriteAudio([]byte("12345678")))
	assert.ErrorIs(t, env.ctrl.WriteAudio([]byte("abcdefgh")), ErrRecordingLimit)
	assert.ErrorIs(t, env.ctrl.WriteAudio([]byte("z")), ErrNoRecording)
	assert.True(t, env.ctrl.Snapshot().Recording, "the recording is kept")

	result, err := env.ctrl.End(ctx)
	require.NoError(t, err)
	assert.Equal(t, AudioUploaded, result.Audio.Stored)
	assert.Equal(t, 8, result.Audio.Bytes)
	assert.Equal(t, 8, env.persistence.uploadedSize)
}
