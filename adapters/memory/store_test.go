package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/businessboom/server/domain/entities"
	"github.com/businessboom/server/domain/repositories"
)

func seedBusiness(t *testing.T, store *Store, id, userID, name, kind, industry string, updated time.Time) {
	t.Helper()
	require.NoError(t, store.Businesses().Create(context.Background(), &entities.Business{
		ID: id, UserID: userID, Name: name, Type: kind, Industry: industry,
		CreatedAt: updated, UpdatedAt: updated,
	}))
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()

	user := &entities.User{ID: "u1", Email: "Owner@Example.com", Name: "Owner"}
	require.NoError(t, users.Create(ctx, user))

	user.Name = "mutated"
	got, err := users.GetByEmail(ctx, "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Owner", got.Name)

	err = users.Create(ctx, &entities.User{ID: "u2", Email: "owner@example.com", Name: "Dup"})
	assert.ErrorIs(t, err, repositories.ErrAlreadyExists)

	_, err = users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestBusinessOwnershipAndListing(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seedBusiness(t, store, "b1", "u1", "Sunrise Bakery", "startup", "food_beverage", t0)
	seedBusiness(t, store, "b2", "u1", "Peak Fitness", "existing", "fitness", t0.Add(time.Hour))
	seedBusiness(t, store, "b3", "u2", "Other", "startup", "technology", t0)

	_, err := store.Businesses().GetByID(ctx, "u2", "b1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	require.NoError(t, store.Conversations().Create(ctx, &entities.Conversation{
		ID: "c1", BusinessID: "b1", UserID: "u1", Type: entities.SessionModeChat, CreatedAt: t0.Add(2 * time.Hour),
	}))

	summaries, err := store.Businesses().ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "b2", summaries[0].ID)
	assert.Equal(t, 1, summaries[1].ConversationCount)
	require.NotNil(t, summaries[1].LastConversationAt)
}

func TestFindSimilar(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	t0 := time.Now()

	seedBusiness(t, store, "b1", "u1", "Sunrise Bakery", "startup", "food_beverage", t0)
	seedBusiness(t, store, "b2", "u1", "Moonlight Gym", "existing", "fitness", t0)
	seedBusiness(t, store, "b3", "u1", "Corner Shop", "startup", "retail", t0)
	seedBusiness(t, store, "b4", "u2", "Sunrise Bakery", "startup", "food_beverage", t0)

	matches, err := store.Businesses().FindSimilar(ctx, "u1", entities.BusinessContext{
		Name: "Sunrise Bakery & Cafe", Type: "existing", Industry: "fitness",
	}, 0.3, 5)
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, "b1", matches[0].ID, "name match ranks first")
	assert.Equal(t, "b2", matches[1].ID, "type and industry match is included")
}

func TestConversationLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	t0 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	seedBusiness(t, store, "b1", "u1", "Sunrise Bakery", "startup", "food_beverage", t0)
	conversations := store.Conversations()

	err := conversations.Create(ctx, &entities.Conversation{ID: "c0", BusinessID: "missing"})
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	require.NoError(t, conversations.Create(ctx, &entities.Conversation{
		ID: "c1", BusinessID: "b1", UserID: "u1", Type: entities.SessionModeChat,
		Status: entities.ConversationStatusActive, CreatedAt: t0,
	}))
	require.NoError(t, conversations.Create(ctx, &entities.Conversation{
		ID: "c2", BusinessID: "b1", UserID: "u1", Type: entities.SessionModeVideo,
		Status: entities.ConversationStatusActive, CreatedAt: t0.Add(time.Hour),
	}))

	require.NoError(t, conversations.AppendMessage(ctx, &entities.Message{ID: "m2", ConversationID: "c1", Sender: entities.SpeakerAI, Timestamp: t0.Add(2 * time.Second)}))
	require.NoError(t, conversations.AppendMessage(ctx, &entities.Message{ID: "m1", ConversationID: "c1", Sender: entities.SpeakerUser, Timestamp: t0.Add(time.Second)}))
	require.NoError(t, conversations.AppendMessage(ctx, &entities.Message{ID: "m3", ConversationID: "c2", Sender: entities.SpeakerUser, Timestamp: t0}))

	require.NoError(t, conversations.Complete(ctx, "c1", "=== CHAT MESSAGES ===", 42))
	require.NoError(t, conversations.AttachAudio(ctx, &entities.AudioFile{ID: "a1", ConversationID: "c1", FileSize: 10}))

	details, err := conversations.ListByBusiness(ctx, "u1", "b1")
	require.NoError(t, err)
	require.Len(t, details, 2)

	assert.Equal(t, "c2", details[0].ID)
	assert.Empty(t, details[0].Messages, "messages are only listed for chat conversations")

	chat := details[1]
	assert.Equal(t, entities.ConversationStatusCompleted, chat.Status)
	assert.Equal(t, 42, chat.DurationSecs)
	require.Len(t, chat.Messages, 2)
	assert.Equal(t, "m1", chat.Messages[0].ID)
	assert.Len(t, conversations.AudioFiles("c1"), 1)
}
