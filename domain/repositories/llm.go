package repositories

import "context"

// ChatCompletion abstracts a chat-completion provider. A reply is only returned
// for a successful call; any transport or provider failure is an error.
type ChatCompletion interface {
	Complete(ctx context.Context, systemPrompt string, history []ChatMessage) (string, error)
}

// TextGenerator produces a single completion for a standalone prompt
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ChatMessage represents a single message in a conversation
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role defines the type of message sender
type Role string

const (
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
)
