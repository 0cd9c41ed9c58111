package entities

import (
	"errors"
	"strings"
	"time"
)

// User represents a registered entrepreneur account
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Name         string    `json:"name" bson:"name"`
	Tier         string    `json:"tier" bson:"tier"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

const DefaultUserTier = "free"

// BusinessType enumerates the kinds of business offered by the context form
var BusinessTypes = []string{
	"startup", "existing", "franchise", "online", "service",
	"retail", "manufacturing", "consulting", "other",
}

// Industries enumerates the industries offered by the context form
var Industries = []string{
	"technology", "healthcare", "finance", "education", "food_beverage",
	"retail", "real_estate", "fitness", "entertainment", "automotive",
	"construction", "other",
}

// BusinessContext is the business information collected before a consultation
type BusinessContext struct {
	Name        string `json:"business_name"`
	Type        string `json:"business_type"`
	Industry    string `json:"industry"`
	Description string `json:"description"`
}

// Normalize trims surrounding whitespace from every field
func (c BusinessContext) Normalize() BusinessContext {
	return BusinessContext{
		Name:        strings.TrimSpace(c.Name),
		Type:        strings.TrimSpace(c.Type),
		Industry:    strings.TrimSpace(c.Industry),
		Description: strings.TrimSpace(c.Description),
	}
}

// Validate checks the required fields of the business context
func (c BusinessContext) Validate() error {
	if c.Name == "" {
		return errors.New("business_name is required")
	}
	if c.Type == "" {
		return errors.New("business_type is required")
	}
	if c.Industry == "" {
		return errors.New("industry is required")
	}
	return nil
}

// Business is a business idea or company owned by a user
type Business struct {
	ID          string    `json:"id" bson:"_id"`
	UserID      string    `json:"user_id" bson:"user_id"`
	Name        string    `json:"business_name" bson:"business_name"`
	Type        string    `json:"business_type" bson:"business_type"`
	Industry    string    `json:"industry" bson:"industry"`
	Description string    `json:"description" bson:"description"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// Context returns the business fields as a BusinessContext
func (b *Business) Context() BusinessContext {
	return BusinessContext{Name: b.Name, Type: b.Type, Industry: b.Industry, Description: b.Description}
}

// BusinessSummary is a business with its conversation statistics
type BusinessSummary struct {
	Business
	ConversationCount  int        `json:"conversation_count"`
	LastConversationAt *time.Time `json:"last_conversation"`
}

// SimilarBusiness is an existing business that resembles a proposed one
type SimilarBusiness struct {
	Business
	Similarity float64 `json:"similarity"`
}

// ConversationStatus represents the persisted state of a conversation
type ConversationStatus string

const (
	ConversationStatusActive    ConversationStatus = "active"
	ConversationStatusCompleted ConversationStatus = "completed"
)

// Conversation is the persisted record of a consultation session
type Conversation struct {
	ID             string             `json:"id" bson:"_id"`
	BusinessID     string             `json:"business_id" bson:"business_id"`
	UserID         string             `json:"user_id" bson:"user_id"`
	Type           SessionMode        `json:"conversation_type" bson:"conversation_type"`
	VideoSessionID string             `json:"tavus_conversation_id,omitempty" bson:"tavus_conversation_id,omitempty"`
	Status         ConversationStatus `json:"status" bson:"status"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	Transcript     string             `json:"transcript_text,omitempty" bson:"transcript_text,omitempty"`
	DurationSecs   int                `json:"duration_seconds" bson:"duration_seconds"`
}

// Message represents a single chat turn stored against a conversation
type Message struct {
	ID               string    `json:"id" bson:"id"`
	ConversationID   string    `json:"conversation_id" bson:"-"`
	Sender           Speaker   `json:"sender" bson:"sender"`
	Content          string    `json:"content" bson:"content"`
	TokensUsed       int       `json:"tokens_used" bson:"tokens_used"`
	ProcessingTimeMs int64     `json:"processing_time_ms" bson:"processing_time_ms"`
	Timestamp        time.Time `json:"timestamp" bson:"timestamp"`
}

// AudioFile describes an uploaded recording
type AudioFile struct {
	ID             string    `json:"id" bson:"id"`
	ConversationID string    `json:"conversation_id" bson:"-"`
	FileName       string    `json:"file_name" bson:"file_name"`
	FileSize       int64     `json:"file_size" bson:"file_size"`
	MimeType       string    `json:"mime_type" bson:"mime_type"`
	StorageURL     string    `json:"storage_url" bson:"storage_url"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

// ConversationDetail is a conversation with the chat messages recorded for it
type ConversationDetail struct {
	Conversation
	Messages []Message `json:"messages"`
}

// Validate validates the user data
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Name == "" {
		return errors.New("name is required")
	}
	return nil
}
