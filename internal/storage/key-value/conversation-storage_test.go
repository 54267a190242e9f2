package key_value

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/iamvkosarev/notechat/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) (*ConversationStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewConversationStorage(rdb), mr
}

func TestConversationStorage_CreateGet(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStorage(t)

	conv, err := s.CreateConversation(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConversationTitle, conv.Title)
	assert.True(t, mr.Exists(getConversationIDKey(conv.ID)))

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
	assert.True(t, conv.CreatedAt.Equal(got.CreatedAt))
	assert.Empty(t, got.Messages)

	ids, err := s.getConversationIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{conv.ID}, ids.Conversations)

	_, err = s.GetConversation(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrConversationNotFound)
}

func TestConversationStorage_PutKeepsIndexUnique(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)
	conv := model.NewConversation("chat", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, s.PutConversation(ctx, conv))
	conv.Title = "again"
	require.NoError(t, s.PutConversation(ctx, conv))

	ids, err := s.getConversationIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{conv.ID}, ids.Conversations)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "again", got.Title)
}

func TestConversationStorage_MessagesAndDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)
	conv, err := s.CreateConversation(ctx, "chat")
	require.NoError(t, err)

	msgs := []model.ChatMessage{
		model.NewMessage(model.RoleUser, "a", model.Now()),
		model.NewMessage(model.RoleAssistant, "b", model.Now()).
			WithMetadata(model.MessageMetadata{TokenCount: 3}),
		model.NewMessage(model.RoleUser, "c", model.Now()),
	}
	for _, msg := range msgs {
		_, err = s.AddMessage(ctx, conv.ID, msg)
		require.NoError(t, err)
	}

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, msgs[0].ID, got.Messages[0].ID)
	assert.True(t, msgs[0].Timestamp.Equal(got.Messages[0].Timestamp))
	require.NotNil(t, got.Messages[1].Metadata)
	assert.Equal(t, 3, got.Messages[1].Metadata.TokenCount)

	updated, err := s.DeleteMessage(ctx, conv.ID, msgs[1].ID)
	require.NoError(t, err)
	require.Len(t, updated.Messages, 2)
	assert.Equal(t, msgs[2].ID, updated.Messages[1].ID)

	_, err = s.DeleteMessage(ctx, conv.ID, msgs[1].ID)
	assert.ErrorIs(t, err, model.ErrMessageNotFound)
	_, err = s.AddMessage(ctx, "missing", msgs[0])
	assert.ErrorIs(t, err, model.ErrConversationNotFound)
}

func TestConversationStorage_ClearRenameDelete(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStorage(t)
	conv, err := s.CreateConversation(ctx, "chat")
	require.NoError(t, err)
	other, err := s.CreateConversation(ctx, "other")
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, conv.ID, model.NewMessage(model.RoleUser, "a", model.Now()))
	require.NoError(t, err)

	cleared, err := s.ClearConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, cleared.Messages)

	renamed, err := s.RenameConversation(ctx, conv.ID, "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", renamed.Title)

	require.NoError(t, s.DeleteConversation(ctx, conv.ID))
	assert.False(t, mr.Exists(getConversationIDKey(conv.ID)))
	ids, err := s.getConversationIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{other.ID}, ids.Conversations)

	assert.ErrorIs(t, s.DeleteConversation(ctx, conv.ID), model.ErrConversationNotFound)
	_, err = s.RenameConversation(ctx, conv.ID, "x")
	assert.ErrorIs(t, err, model.ErrConversationNotFound)
}

func TestConversationStorage_ListNewestFirstSkipsDangling(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStorage(t)

	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	older := model.NewConversation("older", base)
	newer := model.NewConversation("newer", base.Add(time.Hour))
	gone := model.NewConversation("gone", base.Add(2*time.Hour))
	for _, conv := range []model.Conversation{older, newer, gone} {
		require.NoError(t, s.PutConversation(ctx, conv))
	}
	require.True(t, mr.Del(getConversationIDKey(gone.ID)))

	list, err = s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
}

func TestConversationStorage_RedisError(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStorage(t)
	conv, err := s.CreateConversation(ctx, "chat")
	require.NoError(t, err)

	mr.SetError("ERR injected failure")
	_, err = s.GetConversation(ctx, conv.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrConversationNotFound)
}

func TestInternalConversion_PreservesMessages(t *testing.T) {
	base := time.Date(2024, 3, 10, 8, 0, 0, 250_000_000, time.UTC)
	conv := model.NewConversation("Research", base)
	conv.Messages = append(conv.Messages,
		model.NewMessage(model.RoleUser, "hi", base.Add(time.Second)),
		model.NewMessage(model.RoleAssistant, "hello", base.Add(2*time.Second)).
			WithMetadata(model.MessageMetadata{TokenCount: 4}),
	)
	conv.UpdatedAt = base.Add(2 * time.Second)

	got := fromInternal(toInternal(conv))

	assert.Equal(t, conv, got)
}

func TestInternalConversion_UnknownRole(t *testing.T) {
	convInt := conversationInternal{
		ID:       "c1",
		Messages: []messageInternal{{ID: "m1", Role: "tool", Content: "x"}},
	}
	got := fromInternal(convInt)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, model.RoleUnknown, got.Messages[0].Role)
}

func TestGetConversationIDKey(t *testing.T) {
	assert.Equal(t, "conversation_abc", getConversationIDKey("abc"))
}
