package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/businessboom/server/domain/entities"
	"github.com/businessboom/server/domain/repositories"
)

var errFake = errors.New("fake failure")

type fakePersistence struct {
	mu           sync.Mutex
	createErr    error
	uploadErr    error
	endErr       error
	created      []SessionMeta
	messages     []entities.ChatTurn
	transcript   string
	endedWith    int
	uploads      int
	uploadedSize int
}

func (p *fakePersistence) CreateConversation(ctx context.Context, meta SessionMeta) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return "", p.createErr
	}
	p.created = append(p.created, meta)
	return fmt.Sprintf("conv-%d", len(p.created)), nil
}

func (p *fakePersistence) AppendMessage(ctx context.Context, conversationID string, turn entities.ChatTurn) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, turn)
	return nil
}

func (p *fakePersistence) EndConversation(ctx context.Context, conversationID, transcript string, durationSeconds int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.endErr != nil {
		return p.endErr
	}
	p.transcript = transcript
	p.endedWith = durationSeconds
	return nil
}

func (p *fakePersistence) UploadAudio(ctx context.Context, conversationID string, audio entities.AudioArtifact) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.uploadErr != nil {
		return p.uploadErr
	}
	p.uploads++
	p.uploadedSize = audio.Size()
	return nil
}

func (p *fakePersistence) messageCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

// fakeChat answers with reply, or blocks on release when it is set
type fakeChat struct {
	reply   string
	err     error
	called  chan struct{}
	release chan struct{}
}

func (f *fakeChat) Complete(ctx context.Context, systemPrompt string, history []repositories.ChatMessage) (string, error) {
	if f.called != nil {
		f.called <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeVideo struct {
	mu        sync.Mutex
	createErr error
	created   int
	deleted   []string
}

func (v *fakeVideo) CreateSession(ctx context.Context, config repositories.VideoSessionConfig) (repositories.VideoSession, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.createErr != nil {
		return repositories.VideoSession{}, v.createErr
	}
	v.created++
	return repositories.VideoSession{ID: fmt.Sprintf("video-%d", v.created), EmbedURL: "https://video.example/room"}, nil
}

func (v *fakeVideo) DeleteSession(ctx context.Context, sessionID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.deleted = append(v.deleted, sessionID)
	return nil
}

func (v *fakeVideo) deletedIDs() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.deleted...)
}

type fakeCapture struct {
	openErr  error
	writeErr error
	last     *fakeRecording
}

func (c *fakeCapture) Open(ctx context.Context, sessionID string) (repositories.Recording, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	c.last = &fakeRecording{writeErr: c.writeErr}
	return c.last, nil
}

type fakeRecording struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	writeErr error
	closed   int
}

func (r *fakeRecording) Write(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return r.writeErr
	}
	r.buf.Write(chunk)
	return nil
}

func (r *fakeRecording) Stop() (*entities.AudioArtifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &entities.AudioArtifact{Data: append([]byte(nil), r.buf.Bytes()...), MimeType: "audio/webm"}, nil
}

func (r *fakeRecording) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

func (r *fakeRecording) closeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

type fakeTranscriber struct {
	text string
	ok   bool
}

func (t fakeTranscriber) Transcribe(ctx context.Context, audio entities.AudioArtifact) (string, bool) {
	return t.text, t.ok
}

type fakeFallback struct {
	err   error
	saved int
}

func (f *fakeFallback) SaveLocal(ctx context.Context, audio entities.AudioArtifact) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved++
	return "recordings/consultation.webm", nil
}

// fakeContext resolves to business, optionally waiting on gate first
type fakeContext struct {
	business *entities.Business
	err      error
	entered  chan struct{}
	gate     chan struct{}
}

func (f *fakeContext) Resolve(ctx context.Context, userID string, prompter BusinessContextPrompter) (*entities.Business, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.business, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []string
}

func (n *recordingNotifier) Notify(status string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, status)
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.statuses...)
}
