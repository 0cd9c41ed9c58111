package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/businessboom/server/domain/entities"
	"github.com/businessboom/server/domain/repositories"
	"github.com/businessboom/server/internal/saga"
)

// ControllerState is the busy state of a session controller
type ControllerState string

const (
	StateIdle     ControllerState = "idle"
	StateStarting ControllerState = "starting"
	StateActive   ControllerState = "active"
	StateEnding   ControllerState = "ending"
)

var (
	// ErrNoRecording is returned when audio arrives for a session without a live capture
	ErrNoRecording = errors.New("no live recording")

	// ErrRecordingLimit is returned once when the recording reaches its size
	// limit. The audio captured so far is kept; later chunks are dropped.
	ErrRecordingLimit = errors.New("recording size limit reached")
)

// Notifier receives human readable status lines
type Notifier interface {
	Notify(status string)
}

// ContextSource yields the business a session is about
type ContextSource interface {
	Resolve(ctx context.Context, userID string, prompter BusinessContextPrompter) (*entities.Business, error)
}

// LocalAudioSaver keeps recordings that could not be uploaded
type LocalAudioSaver interface {
	SaveLocal(ctx context.Context, audio entities.AudioArtifact) (string, error)
}

// ControllerDeps are the collaborators shared by every session controller.
// Video, Transcriber, Capture and Fallback are optional.
type ControllerDeps struct {
	Persistence Persistence
	Chat        repositories.ChatCompletion
	Video       repositories.VideoProvider
	Transcriber Transcriber
	Capture     repositories.AudioCapture
	Fallback    LocalAudioSaver
	Context     ContextSource
	Sagas       *saga.Manager
	Logger      *zap.Logger
	Now         func() time.Time
}

// SessionView is a read-only snapshot of the live session
type SessionView struct {
	ID             string               `json:"id"`
	Mode           entities.SessionMode `json:"mode"`
	State          ControllerState      `json:"state"`
	BusinessID     string               `json:"business_id"`
	ConversationID string               `json:"conversation_id"`
	EmbedURL       string               `json:"embed_url,omitempty"`
	StartedAt      time.Time            `json:"started_at"`
	Recording      bool                 `json:"recording"`
	Turns          []entities.ChatTurn  `json:"turns"`
}

// Audio storage outcomes
const (
	AudioNone     = "none"
	AudioUploaded = "uploaded"
	AudioLocal    = "local"
	AudioLost     = "lost"
)

// AudioOutcome reports where the session recording ended up
type AudioOutcome struct {
	Stored string `json:"stored"`
	Path   string `json:"path,omitempty"`
	Bytes  int    `json:"bytes"`
}

// EndResult summarizes a finished session
type EndResult struct {
	SessionID       string       `json:"session_id"`
	ConversationID  string       `json:"conversation_id"`
	Transcript      string       `json:"transcript"`
	DurationSeconds int          `json:"duration_seconds"`
	Transcribed     bool         `json:"transcribed"`
	Audio           AudioOutcome `json:"audio"`
}

// SessionController drives the consultation session of one user. At most one
// session exists at a time; while it is starting or ending further lifecycle
// requests are rejected.
type SessionController struct {
	userID string
	deps   ControllerDeps
	logger *zap.Logger

	mu        sync.Mutex
	state     ControllerState
	session   *entities.Session
	recording repositories.Recording
	notifier  Notifier
	prompter  BusinessContextPrompter

	// recordingFull is set once the recording refused a chunk for its size
	recordingFull bool

	// chatMu serializes chat exchanges so turns persist in call order
	chatMu sync.Mutex
}

// NewSessionController creates an idle controller for a user
func NewSessionController(userID string, deps ControllerDeps) *SessionController {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Sagas == nil {
		deps.Sagas = saga.NewManager(deps.Logger)
	}
	return &SessionController{
		userID: userID,
		deps:   deps,
		logger: deps.Logger.With(zap.String("userID", userID)),
		state:  StateIdle,
	}
}

// UserID returns the owner of the controller
func (c *SessionController) UserID() string {
	return c.userID
}

// Attach routes status lines and prompts to a connected client
func (c *SessionController) Attach(notifier Notifier, prompter BusinessContextPrompter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifier = notifier
	c.prompter = prompter
}

// Detach removes a client attached earlier. A newer attachment is left untouched.
func (c *SessionController) Detach(notifier Notifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.notifier == notifier {
		c.notifier = nil
		c.prompter = nil
	}
}

// State returns the current busy state
func (c *SessionController) State() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the live session, or nil when none is active
func (c *SessionController) Snapshot() *SessionView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// ActiveSince reports when the live session started
func (c *SessionController) ActiveSince() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive || c.session == nil {
		return time.Time{}, false
	}
	return c.session.StartedAt, true
}

// EnsureBusinessContext resolves the business the next session will be about.
// It shares the resolver with Start, so concurrent callers see one prompt.
func (c *SessionController) EnsureBusinessContext(ctx context.Context) (*entities.Business, error) {
	c.mu.Lock()
	prompter := c.prompter
	c.mu.Unlock()
	return c.deps.Context.Resolve(ctx, c.userID, prompter)
}

// Start begins a session in the given mode
func (c *SessionController) Start(ctx context.Context, mode entities.SessionMode) (view *SessionView, err error) {
	if err := mode.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if mode == entities.SessionModeVideo && c.deps.Video == nil {
		return nil, ErrVideoUnavailable
	}

	c.mu.Lock()
	switch c.state {
	case StateActive:
		c.mu.Unlock()
		return nil, ErrSessionActive
	case StateStarting, StateEnding:
		c.mu.Unlock()
		return nil, ErrSessionBusy
	}
	c.state = StateStarting
	prompter := c.prompter
	c.mu.Unlock()

	c.notify(StatusCreating)

	// started is only set on the success path, so a panicking collaborator
	// also returns the controller to idle.
	started := false
	var recording repositories.Recording
	defer func() {
		if started {
			return
		}
		// A failed saga already compensated; a panic skipped that.
		if err == nil && recording != nil {
			if cerr := recording.Close(); cerr != nil {
				c.logger.Warn("Failed to release recording", zap.Error(cerr))
			}
		}
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		if err != nil {
			c.logger.Warn("Failed to start session", zap.String("mode", string(mode)), zap.Error(err))
		} else {
			c.logger.Error("Session start aborted", zap.String("mode", string(mode)))
		}
		c.notify(StatusStartFailed)
	}()

	business, err := c.deps.Context.Resolve(ctx, c.userID, prompter)
	if err != nil {
		return nil, err
	}

	session := entities.NewSession(mode, c.userID, business.ID, c.deps.Now())

	if _, err := c.deps.Sagas.Run(ctx, c.startDefinition(session, &recording), nil); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.session = session
	c.recording = recording
	c.recordingFull = false
	c.state = StateActive
	view = c.viewLocked()
	started = true
	c.mu.Unlock()

	c.logger.Info("Session started",
		zap.String("sessionID", session.ID),
		zap.String("mode", string(mode)),
		zap.String("conversationID", session.ConversationID),
		zap.Bool("recording", recording != nil))
	c.notify(activeStatus(mode, recording != nil))
	return view, nil
}

// startDefinition builds the start sequence. Audio capture never fails the
// sequence; every other failure unwinds the completed steps.
func (c *SessionController) startDefinition(session *entities.Session, recording *repositories.Recording) saga.Definition {
	steps := []saga.Step{
		saga.StepFunc{
			StepID: "audio_capture",
			Do: func(ctx context.Context, _ saga.SagaData) error {
				*recording = c.openRecording(ctx, session.ID)
				return nil
			},
			Undo: func(ctx context.Context, _ saga.SagaData) error {
				if *recording == nil {
					return nil
				}
				return (*recording).Close()
			},
		},
	}

	if session.Mode == entities.SessionModeVideo {
		steps = append(steps, saga.StepFunc{
			StepID: "video_session",
			Do: func(ctx context.Context, _ saga.SagaData) error {
				remote, err := c.deps.Video.CreateSession(ctx, ConsultationVideoConfig)
				if err != nil {
					return fmt.Errorf("%w: failed to create video session: %w", ErrUpstream, err)
				}
				session.VideoSessionID = remote.ID
				session.EmbedURL = remote.EmbedURL
				return nil
			},
			Undo: func(ctx context.Context, _ saga.SagaData) error {
				return c.deps.Video.DeleteSession(ctx, session.VideoSessionID)
			},
		})
	}

	steps = append(steps,
		saga.StepFunc{
			StepID: "conversation_record",
			Do: func(ctx context.Context, _ saga.SagaData) error {
				id, err := c.deps.Persistence.CreateConversation(ctx, SessionMeta{
					UserID:         session.UserID,
					BusinessID:     session.BusinessID,
					Mode:           session.Mode,
					VideoSessionID: session.VideoSessionID,
					StartedAt:      session.StartedAt,
				})
				if err != nil {
					return err
				}
				session.ConversationID = id
				return nil
			},
		},
		saga.StepFunc{
			StepID: "activate",
			Do: func(ctx context.Context, _ saga.SagaData) error {
				return session.Activate(c.deps.Now())
			},
		},
	)

	return saga.Definition{Name: "session_start", Steps: steps}
}

// SendChatMessage sends one user message in chat mode and returns the AI turn.
// The user turn is kept even when the completion fails. A reply that arrives
// after the session ended is dropped with ErrSessionClosed.
func (c *SessionController) SendChatMessage(ctx context.Context, text string) (entities.ChatTurn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return entities.ChatTurn{}, ErrEmptyMessage
	}

	c.chatMu.Lock()
	defer c.chatMu.Unlock()

	c.mu.Lock()
	session := c.session
	if c.state != StateActive || session == nil {
		c.mu.Unlock()
		return entities.ChatTurn{}, ErrNoActiveSession
	}
	if session.Mode != entities.SessionModeChat {
		c.mu.Unlock()
		return entities.ChatTurn{}, ErrWrongMode
	}
	userTurn, err := session.AppendTurn(entities.SpeakerUser, text, c.deps.Now())
	if err != nil {
		c.mu.Unlock()
		return entities.ChatTurn{}, err
	}
	history := session.History()
	conversationID := session.ConversationID
	c.mu.Unlock()

	c.persistTurn(ctx, conversationID, userTurn)

	started := c.deps.Now()
	reply, err := c.deps.Chat.Complete(ctx, ConsultantSystemPrompt, toChatMessages(history))
	if err != nil {
		c.logger.Error("Chat completion failed", zap.String("sessionID", session.ID), zap.Error(err))
		return entities.ChatTurn{}, fmt.Errorf("%w: chat completion failed: %w", ErrUpstream, err)
	}

	c.mu.Lock()
	aiTurn, err := session.AppendTurn(entities.SpeakerAI, reply, c.deps.Now())
	c.mu.Unlock()
	if err != nil {
		c.logger.Info("Dropping reply for ended session", zap.String("sessionID", session.ID))
		return entities.ChatTurn{}, err
	}

	c.logger.Debug("Chat exchange completed",
		zap.String("sessionID", session.ID),
		zap.Duration("latency", c.deps.Now().Sub(started)))
	c.persistTurn(ctx, conversationID, aiTurn)
	return aiTurn, nil
}

// WriteAudio appends a chunk to the live recording. A failing recording is
// released and the session continues without audio. A recording that reached
// its size limit is kept for End and further chunks are dropped.
func (c *SessionController) WriteAudio(chunk []byte) error {
	c.mu.Lock()
	recording := c.recording
	state := c.state
	full := c.recordingFull
	c.mu.Unlock()

	if state != StateActive {
		return ErrNoActiveSession
	}
	if recording == nil || full {
		return ErrNoRecording
	}

	err := recording.Write(chunk)
	if err == nil {
		return nil
	}

	if errors.Is(err, repositories.ErrRecordingFull) {
		c.mu.Lock()
		first := c.recording == recording && !c.recordingFull
		if first {
			c.recordingFull = true
		}
		c.mu.Unlock()
		if !first {
			return ErrNoRecording
		}
		c.logger.Warn("Recording reached its size limit, later audio is dropped", zap.Int("chunk", len(chunk)))
		return fmt.Errorf("%w: %w", ErrRecordingLimit, err)
	}

	c.mu.Lock()
	if c.recording == recording && c.state == StateActive {
		c.recording = nil
		c.mu.Unlock()
		c.logger.Warn("Audio capture failed, continuing without recording", zap.Error(err))
		if cerr := recording.Close(); cerr != nil {
			c.logger.Warn("Failed to release recording", zap.Error(cerr))
		}
	} else {
		c.mu.Unlock()
	}
	return fmt.Errorf("audio capture stopped: %w", err)
}

// End finishes the live session: the recording is stopped and optionally
// transcribed, the transcript is assembled and persisted, the audio is
// uploaded or saved locally and the video session is released. The controller
// is idle again when End returns, whatever the outcome. The result is returned
// even when err is non-nil.
func (c *SessionController) End(ctx context.Context) (result *EndResult, err error) {
	c.mu.Lock()
	switch c.state {
	case StateIdle:
		c.mu.Unlock()
		return nil, ErrNoActiveSession
	case StateStarting, StateEnding:
		c.mu.Unlock()
		return nil, ErrSessionBusy
	}
	session := c.session
	recording := c.recording
	c.state = StateEnding
	beginErr := session.BeginEnding()
	c.mu.Unlock()

	c.notify(StatusEnding)

	defer func() {
		if recording != nil {
			if cerr := recording.Close(); cerr != nil {
				c.logger.Warn("Failed to release recording", zap.Error(cerr))
			}
		}
		c.mu.Lock()
		c.state = StateIdle
		c.session = nil
		c.recording = nil
		c.recordingFull = false
		c.mu.Unlock()

		if err != nil {
			c.logger.Error("Session ended with errors", zap.String("sessionID", session.ID), zap.Error(err))
			c.notify(StatusEndFailed)
		}
		c.notify(StatusReady)
	}()

	if beginErr != nil {
		return nil, beginErr
	}

	// Teardown outlives the caller.
	ctx = context.WithoutCancel(ctx)

	artifact := c.stopRecording(recording)

	var transcription *string
	if artifact != nil && c.deps.Transcriber != nil {
		if text, ok := c.deps.Transcriber.Transcribe(ctx, *artifact); ok {
			transcription = &text
		}
	}
	audioText := ""
	if transcription != nil {
		audioText = *transcription
	}

	c.mu.Lock()
	transcript := AssembleTranscript(session.Turns, audioText)
	endedAt := c.deps.Now()
	closeErr := session.Close(endedAt, transcript, artifact, transcription)
	duration := session.DurationSeconds(endedAt)
	c.mu.Unlock()
	if closeErr != nil {
		return nil, closeErr
	}

	result = &EndResult{
		SessionID:       session.ID,
		ConversationID:  session.ConversationID,
		Transcript:      transcript,
		DurationSeconds: duration,
		Transcribed:     transcription != nil,
		Audio:           AudioOutcome{Stored: AudioNone},
	}

	var errs []error
	if perr := c.deps.Persistence.EndConversation(ctx, session.ConversationID, transcript, duration); perr != nil {
		errs = append(errs, perr)
	}

	if artifact != nil {
		outcome, aerr := c.storeAudio(ctx, session.ConversationID, *artifact)
		result.Audio = outcome
		if aerr != nil {
			errs = append(errs, aerr)
		}
	}

	if session.VideoSessionID != "" {
		if verr := c.deps.Video.DeleteSession(ctx, session.VideoSessionID); verr != nil {
			c.logger.Warn("Failed to delete video session",
				zap.String("videoSessionID", session.VideoSessionID),
				zap.Error(verr))
		}
	}

	c.logger.Info("Session ended",
		zap.String("sessionID", session.ID),
		zap.Int("durationSeconds", duration),
		zap.Int("turns", len(session.Turns)),
		zap.String("audio", result.Audio.Stored))

	return result, errors.Join(errs...)
}

func (c *SessionController) openRecording(ctx context.Context, sessionID string) repositories.Recording {
	if c.deps.Capture == nil {
		return nil
	}
	recording, err := c.deps.Capture.Open(ctx, sessionID)
	if err != nil {
		c.logger.Warn("Audio capture unavailable, continuing without recording",
			zap.String("sessionID", sessionID),
			zap.Error(err))
		return nil
	}
	return recording
}

func (c *SessionController) stopRecording(recording repositories.Recording) *entities.AudioArtifact {
	if recording == nil {
		return nil
	}
	artifact, err := recording.Stop()
	if err != nil {
		c.logger.Warn("Failed to stop recording", zap.Error(err))
		return nil
	}
	if artifact.Size() == 0 {
		return nil
	}
	return artifact
}

func (c *SessionController) storeAudio(ctx context.Context, conversationID string, artifact entities.AudioArtifact) (AudioOutcome, error) {
	outcome := AudioOutcome{Stored: AudioUploaded, Bytes: artifact.Size()}

	uploadErr := c.deps.Persistence.UploadAudio(ctx, conversationID, artifact)
	if uploadErr == nil {
		return outcome, nil
	}
	c.logger.Warn("Audio upload failed, saving locally", zap.String("conversationID", conversationID), zap.Error(uploadErr))

	if c.deps.Fallback == nil {
		outcome.Stored = AudioLost
		return outcome, uploadErr
	}

	path, err := c.deps.Fallback.SaveLocal(ctx, artifact)
	if err != nil {
		outcome.Stored = AudioLost
		return outcome, errors.Join(uploadErr, fmt.Errorf("failed to save audio locally: %w", err))
	}

	outcome.Stored = AudioLocal
	outcome.Path = path
	return outcome, nil
}

func (c *SessionController) persistTurn(ctx context.Context, conversationID string, turn entities.ChatTurn) {
	if err := c.deps.Persistence.AppendMessage(ctx, conversationID, turn); err != nil {
		c.logger.Warn("Failed to persist chat turn",
			zap.String("conversationID", conversationID),
			zap.String("speaker", string(turn.Speaker)),
			zap.Error(err))
	}
}

func (c *SessionController) notify(status string) {
	c.mu.Lock()
	notifier := c.notifier
	c.mu.Unlock()

	c.logger.Debug("Session status", zap.String("status", status))
	if notifier != nil {
		notifier.Notify(status)
	}
}

func (c *SessionController) viewLocked() *SessionView {
	if c.session == nil || c.state != StateActive {
		return nil
	}
	s := c.session
	return &SessionView{
		ID:             s.ID,
		Mode:           s.Mode,
		State:          c.state,
		BusinessID:     s.BusinessID,
		ConversationID: s.ConversationID,
		EmbedURL:       s.EmbedURL,
		StartedAt:      s.StartedAt,
		Recording:      c.recording != nil,
		Turns:          s.History(),
	}
}

func activeStatus(mode entities.SessionMode, recording bool) string {
	switch {
	case mode == entities.SessionModeChat:
		return StatusChatActive
	case recording:
		return StatusVideoRecording
	default:
		return StatusVideoActive
	}
}

func toChatMessages(turns []entities.ChatTurn) []repositories.ChatMessage {
	messages := make([]repositories.ChatMessage, 0, len(turns))
	for _, turn := range turns {
		role := repositories.UserRole
		if turn.Speaker == entities.SpeakerAI {
			role = repositories.AssistantRole
		}
		messages = append(messages, repositories.ChatMessage{Role: role, Content: turn.Text})
	}
	return messages
}
