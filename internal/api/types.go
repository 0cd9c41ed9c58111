package api

import (
	"github.com/businessboom/server/domain/entities"
	"github.com/businessboom/server/usecase"
)

// RegisterRequest represents the request payload for user registration
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest represents the request payload for user login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// BusinessListResponse lists the user's businesses with conversation statistics
type BusinessListResponse struct {
	Businesses []*entities.BusinessSummary `json:"businesses"`
}

type BusinessResponse struct {
	Business *entities.Business `json:"business"`
}

type ConversationListResponse struct {
	Conversations []*entities.ConversationDetail `json:"conversations"`
}

type AnalysisResponse struct {
	Analysis *entities.Analysis `json:"analysis"`
}

// StartSessionRequest selects the mode of the new session
type StartSessionRequest struct {
	Mode entities.SessionMode `json:"mode"`
}

type SessionResponse struct {
	Session *usecase.SessionView `json:"session"`
}

type ChatMessageRequest struct {
	Text string `json:"text"`
}

type ChatMessageResponse struct {
	Reply entities.ChatTurn `json:"reply"`
}

// EndSessionResponse carries the session summary. Warning is set when some
// teardown step failed after the session was closed.
type EndSessionResponse struct {
	*usecase.EndResult
	Warning string `json:"warning,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
