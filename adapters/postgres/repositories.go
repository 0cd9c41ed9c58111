package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/businessboom/server/domain/entities"
	"github.com/businessboom/server/domain/repositories"
)

type UserRepository struct {
	db *gorm.DB
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	return translate(r.db.WithContext(ctx).Create(userFromEntity(user)).Error, "create user")
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err, "get user")
	}
	return m.toEntity(), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&m).Error; err != nil {
		return nil, translate(err, "get user")
	}
	return m.toEntity(), nil
}

type BusinessRepository struct {
	db *gorm.DB
}

var _ repositories.BusinessRepository = (*BusinessRepository)(nil)

// NewBusinessRepository creates a new PostgreSQL business repository
func NewBusinessRepository(db *gorm.DB) *BusinessRepository {
	return &BusinessRepository{db: db}
}

func (r *BusinessRepository) Create(ctx context.Context, business *entities.Business) error {
	return translate(r.db.WithContext(ctx).Create(businessFromEntity(business)).Error, "create business")
}

func (r *BusinessRepository) GetByID(ctx context.Context, userID, id string) (*entities.Business, error) {
	var m businessModel
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&m).Error; err != nil {
		return nil, translate(err, "get business")
	}
	b := m.toEntity()
	return &b, nil
}

type businessSummaryRow struct {
	Business          businessModel `gorm:"embedded"`
	ConversationCount int           `gorm:"column:conversation_count"`
	LastConversation  *time.Time    `gorm:"column:last_conversation"`
}

const listBusinessesQuery = `
SELECT b.*, COUNT(c.id) AS conversation_count, MAX(c.created_at) AS last_conversation
FROM businesses b
LEFT JOIN conversations c ON b.id = c.business_id
WHERE b.user_id = ?
GROUP BY b.id
ORDER BY b.updated_at DESC`

func (r *BusinessRepository) ListByUser(ctx context.Context, userID string) ([]*entities.BusinessSummary, error) {
	var rows []businessSummaryRow
	if err := r.db.WithContext(ctx).Raw(listBusinessesQuery, userID).Scan(&rows).Error; err != nil {
		return nil, translate(err, "list businesses")
	}

	summaries := make([]*entities.BusinessSummary, 0, len(rows))
	for i := range rows {
		summaries = append(summaries, &entities.BusinessSummary{
			Business:           rows[i].Business.toEntity(),
			ConversationCount:  rows[i].ConversationCount,
			LastConversationAt: rows[i].LastConversation,
		})
	}
	return summaries, nil
}

type similarBusinessRow struct {
	Business   businessModel `gorm:"embedded"`
	Similarity float64       `gorm:"column:similarity"`
}

const findSimilarQuery = `
SELECT *, similarity(business_name, @name) AS similarity
FROM businesses
WHERE user_id = @user
  AND (similarity(business_name, @name) > @threshold
       OR (business_type = @type AND industry = @industry))
ORDER BY similarity DESC
LIMIT @limit`

func (r *BusinessRepository) FindSimilar(ctx context.Context, userID string, proposal entities.BusinessContext, threshold float64, limit int) ([]*entities.SimilarBusiness, error) {
	var rows []similarBusinessRow
	err := r.db.WithContext(ctx).Raw(findSimilarQuery, map[string]interface{}{
		"name":      proposal.Name,
		"user":      userID,
		"threshold": threshold,
		"type":      proposal.Type,
		"industry":  proposal.Industry,
		"limit":     limit,
	}).Scan(&rows).Error
	if err != nil {
		return nil, translate(err, "find similar businesses")
	}

	matches := make([]*entities.SimilarBusiness, 0, len(rows))
	for i := range rows {
		matches = append(matches, &entities.SimilarBusiness{
			Business:   rows[i].Business.toEntity(),
			Similarity: rows[i].Similarity,
		})
	}
	return matches, nil
}

type ConversationRepository struct {
	db *gorm.DB
}

var _ repositories.ConversationRepository = (*ConversationRepository)(nil)

// NewConversationRepository creates a new PostgreSQL conversation repository
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(ctx context.Context, conversation *entities.Conversation) error {
	return translate(r.db.WithContext(ctx).Create(conversationFromEntity(conversation)).Error, "create conversation")
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*entities.Conversation, error) {
	var m conversationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err, "get conversation")
	}
	c := m.toEntity()
	return &c, nil
}

func (r *ConversationRepository) AppendMessage(ctx context.Context, message *entities.Message) error {
	m := &messageModel{
		ID:               message.ID,
		ConversationID:   message.ConversationID,
		Sender:           string(message.Sender),
		Content:          message.Content,
		TokensUsed:       message.TokensUsed,
		ProcessingTimeMs: message.ProcessingTimeMs,
		Timestamp:        message.Timestamp,
	}
	return translate(r.db.WithContext(ctx).Create(m).Error, "append message")
}

func (r *ConversationRepository) Complete(ctx context.Context, id, transcript string, durationSeconds int) error {
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv conversationModel
		if err := tx.Where("id = ?", id).First(&conv).Error; err != nil {
			return translate(err, "get conversation")
		}

		err := tx.Model(&conversationModel{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":           string(entities.ConversationStatusCompleted),
			"completed_at":     now,
			"transcript_text":  transcript,
			"duration_seconds": durationSeconds,
		}).Error
		if err != nil {
			return translate(err, "complete conversation")
		}

		err = tx.Model(&businessModel{}).Where("id = ?", conv.BusinessID).Update("updated_at", now).Error
		return translate(err, "touch business")
	})
}

func (r *ConversationRepository) AttachAudio(ctx context.Context, file *entities.AudioFile) error {
	m := &audioFileModel{
		ID:             file.ID,
		ConversationID: file.ConversationID,
		FileName:       file.FileName,
		FileSize:       file.FileSize,
		MimeType:       file.MimeType,
		StorageURL:     file.StorageURL,
		CreatedAt:      file.CreatedAt,
	}
	return translate(r.db.WithContext(ctx).Create(m).Error, "attach audio")
}

func (r *ConversationRepository) ListByBusiness(ctx context.Context, userID, businessID string) ([]*entities.ConversationDetail, error) {
	var convs []conversationModel
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND user_id = ?", businessID, userID).
		Order("created_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, translate(err, "list conversations")
	}

	chatIDs := make([]string, 0)
	for _, c := range convs {
		if c.ConversationType == string(entities.SessionModeChat) {
			chatIDs = append(chatIDs, c.ID)
		}
	}

	byConversation := make(map[string][]entities.Message)
	if len(chatIDs) > 0 {
		var msgs []messageModel
		err := r.db.WithContext(ctx).
			Where("conversation_id IN ?", chatIDs).
			Order("timestamp ASC").
			Find(&msgs).Error
		if err != nil {
			return nil, translate(err, "list messages")
		}
		for i := range msgs {
			byConversation[msgs[i].ConversationID] = append(byConversation[msgs[i].ConversationID], msgs[i].toEntity())
		}
	}

	details := make([]*entities.ConversationDetail, 0, len(convs))
	for i := range convs {
		messages := byConversation[convs[i].ID]
		if messages == nil {
			messages = []entities.Message{}
		}
		details = append(details, &entities.ConversationDetail{
			Conversation: convs[i].toEntity(),
			Messages:     messages,
		})
	}
	return details, nil
}
