package in_memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iamvkosarev/notechat/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationStorage_CreateGet(t *testing.T) {
	ctx := context.Background()
	s := NewConversationStorage()

	conv, err := s.CreateConversation(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConversationTitle, conv.Title)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv, got)

	_, err = s.GetConversation(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrConversationNotFound)
}

func TestConversationStorage_AppendKeepsEarlierMessages(t *testing.T) {
	ctx := context.Background()
	s := NewConversationStorage()
	conv, err := s.CreateConversation(ctx, "chat")
	require.NoError(t, err)

	first := model.NewMessage(model.RoleUser, "one", model.Now())
	second := model.NewMessage(model.RoleAssistant, "two", model.Now())

	_, err = s.AddMessage(ctx, conv.ID, first)
	require.NoError(t, err)
	updated, err := s.AddMessage(ctx, conv.ID, second)
	require.NoError(t, err)

	require.Len(t, updated.Messages, 2)
	assert.Equal(t, first.ID, updated.Messages[0].ID)
	assert.True(t, first.Timestamp.Equal(updated.Messages[0].Timestamp))
	assert.Equal(t, second.ID, updated.Messages[1].ID)
	assert.False(t, updated.UpdatedAt.Before(conv.UpdatedAt))
}

func TestConversationStorage_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewConversationStorage()
	conv, err := s.CreateConversation(ctx, "chat")
	require.NoError(t, err)
	updated, err := s.AddMessage(ctx, conv.ID, model.NewMessage(model.RoleUser, "original", model.Now()))
	require.NoError(t, err)

	updated.Messages[0].Content = "tampered"

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Messages[0].Content)
}

func TestConversationStorage_DeleteMessage(t *testing.T) {
	ctx := context.Background()
	s := NewConversationStorage()
	conv, err := s.CreateConversation(ctx, "chat")
	require.NoError(t, err)

	msgs := []model.ChatMessage{
		model.NewMessage(model.RoleUser, "a", model.Now()),
		model.NewMessage(model.RoleAssistant, "b", model.Now()),
		model.NewMessage(model.RoleUser, "c", model.Now()),
	}
	for _, msg := range msgs {
		_, err = s.AddMessage(ctx, conv.ID, msg)
		require.NoError(t, err)
	}

	updated, err := s.DeleteMessage(ctx, conv.ID, msgs[1].ID)
	require.NoError(t, err)
	require.Len(t, updated.Messages, 2)
	assert.Equal(t, msgs[0].ID, updated.Messages[0].ID)
	assert.Equal(t, msgs[2].ID, updated.Messages[1].ID)

	_, err = s.DeleteMessage(ctx, conv.ID, msgs[1].ID)
	assert.ErrorIs(t, err, model.ErrMessageNotFound)
}

func TestConversationStorage_ClearRenameDelete(t *testing.T) {
	ctx := context.Background()
	s := NewConversationStorage()
	conv, err := s.CreateConversation(ctx, "chat")
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
	assert.ErrorIs(t, s.DeleteConversation(ctx, conv.ID), model.ErrConversationNotFound)
	_, err = s.ClearConversation(ctx, conv.ID)
	assert.ErrorIs(t, err, model.ErrConversationNotFound)
}

func TestConversationStorage_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewConversationStorage()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	older := model.NewConversation("older", base)
	newer := model.NewConversation("newer", base.Add(time.Hour))
	require.NoError(t, s.PutConversation(ctx, older))
	require.NoError(t, s.PutConversation(ctx, newer))

	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
}

func TestConversationStorage_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := NewConversationStorage()
	conv, err := s.CreateConversation(ctx, "chat")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.AddMessage(ctx, conv.ID, model.NewMessage(model.RoleUser, "x", model.Now()))
		}()
	}
	wg.Wait()

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 50)
}
