package repositories

import "context"

// VideoProvider creates and tears down remote avatar video sessions
type VideoProvider interface {
	CreateSession(ctx context.Context, config VideoSessionConfig) (VideoSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// VideoSessionConfig carries the conversation setup sent to the provider
type VideoSessionConfig struct {
	Name     string
	Context  string
	Greeting string
}

// VideoSession identifies a remote session and where the client can embed it
type VideoSession struct {
	ID       string `json:"id"`
	EmbedURL string `json:"embed_url"`
}
