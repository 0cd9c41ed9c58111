package postgres

import (
	"time"

	"github.com/businessboom/server/domain/entities"
)

type userModel struct {
	ID           string    `gorm:"column:id;primaryKey"`
	Email        string    `gorm:"column:email"`
	PasswordHash string    `gorm:"column:password_hash"`
	Name         string    `gorm:"column:name"`
	Tier         string    `gorm:"column:tier"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (userModel) TableName() string { return "users" }

func (m *userModel) toEntity() *entities.User {
	return &entities.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Name:         m.Name,
		Tier:         m.Tier,
		CreatedAt:    m.CreatedAt,
	}
}

func userFromEntity(u *entities.User) *userModel {
	return &userModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Name:         u.Name,
		Tier:         u.Tier,
		CreatedAt:    u.CreatedAt,
	}
}

type businessModel struct {
	ID           string    `gorm:"column:id;primaryKey"`
	UserID       string    `gorm:"column:user_id"`
	BusinessName string    `gorm:"column:business_name"`
	BusinessType string    `gorm:"column:business_type"`
	Industry     string    `gorm:"column:industry"`
	Description  string    `gorm:"column:description"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (businessModel) TableName() string { return "businesses" }

func (m *businessModel) toEntity() entities.Business {
	return entities.Business{
		ID:          m.ID,
		UserID:      m.UserID,
		Name:        m.BusinessName,
		Type:        m.BusinessType,
		Industry:    m.Industry,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func businessFromEntity(b *entities.Business) *businessModel {
	return &businessModel{
		ID:           b.ID,
		UserID:       b.UserID,
		BusinessName: b.Name,
		BusinessType: b.Type,
		Industry:     b.Industry,
		Description:  b.Description,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

type conversationModel struct {
	ID                  string     `gorm:"column:id;primaryKey"`
	BusinessID          string     `gorm:"column:business_id"`
	UserID              string     `gorm:"column:user_id"`
	ConversationType    string     `gorm:"column:conversation_type"`
	TavusConversationID *string    `gorm:"column:tavus_conversation_id"`
	Status              string     `gorm:"column:status"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	CompletedAt         *time.Time `gorm:"column:completed_at"`
	TranscriptText      *string    `gorm:"column:transcript_text"`
	DurationSeconds     *int       `gorm:"column:duration_seconds"`
}

func (conversationModel) TableName() string { return "conversations" }

func (m *conversationModel) toEntity() entities.Conversation {
	c := entities.Conversation{
		ID:          m.ID,
		BusinessID:  m.BusinessID,
		UserID:      m.UserID,
		Type:        entities.SessionMode(m.ConversationType),
		Status:      entities.ConversationStatus(m.Status),
		CreatedAt:   m.CreatedAt,
		CompletedAt: m.CompletedAt,
	}
	if m.TavusConversationID != nil {
		c.VideoSessionID = *m.TavusConversationID
	}
	if m.TranscriptText != nil {
		c.Transcript = *m.TranscriptText
	}
	if m.DurationSeconds != nil {
		c.DurationSecs = *m.DurationSeconds
	}
	return c
}

func conversationFromEntity(c *entities.Conversation) *conversationModel {
	m := &conversationModel{
		ID:               c.ID,
		BusinessID:       c.BusinessID,
		UserID:           c.UserID,
		ConversationType: string(c.Type),
		Status:           string(c.Status),
		CreatedAt:        c.CreatedAt,
		CompletedAt:      c.CompletedAt,
	}
	if c.VideoSessionID != "" {
		id := c.VideoSessionID
		m.TavusConversationID = &id
	}
	return m
}

type messageModel struct {
	ID               string    `gorm:"column:id;primaryKey"`
	ConversationID   string    `gorm:"column:conversation_id"`
	Sender           string    `gorm:"column:sender"`
	Content          string    `gorm:"column:content"`
	TokensUsed       int       `gorm:"column:tokens_used"`
	ProcessingTimeMs int64     `gorm:"column:processing_time_ms"`
	Timestamp        time.Time `gorm:"column:timestamp"`
}

func (messageModel) TableName() string { return "messages" }

func (m *messageModel) toEntity() entities.Message {
	return entities.Message{
		ID:               m.ID,
		ConversationID:   m.ConversationID,
		Sender:           entities.Speaker(m.Sender),
		Content:          m.Content,
		TokensUsed:       m.TokensUsed,
		ProcessingTimeMs: m.ProcessingTimeMs,
		Timestamp:        m.Timestamp,
	}
}

type audioFileModel struct {
	ID             string    `gorm:"column:id;primaryKey"`
	ConversationID string    `gorm:"column:conversation_id"`
	FileName       string    `gorm:"column:file_name"`
	FileSize       int64     `gorm:"column:file_size"`
	MimeType       string    `gorm:"column:mime_type"`
	StorageURL     string    `gorm:"column:storage_url"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (audioFileModel) TableName() string { return "audio_files" }
