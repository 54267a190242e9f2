package in_memory

import (
	"context"
	"sort"
	"sync"

	"github.com/iamvkosarev/notechat/internal/model"
)

type ConversationStorage struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
}

func NewConversationStorage() *ConversationStorage {
	return &ConversationStorage{
		conversations: make(map[string]*model.Conversation),
	}
}

func (s *ConversationStorage) CreateConversation(_ context.Context, title string) (model.Conversation, error) {
	conv := model.NewConversation(title, model.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := conv.Clone()
	s.conversations[conv.ID] = &stored
	return conv, nil
}

func (s *ConversationStorage) PutConversation(_ context.Context, conv model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := conv.Clone()
	s.conversations[conv.ID] = &stored
	return nil
}

func (s *ConversationStorage) GetConversation(_ context.Context, id string) (model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return model.Conversation{}, model.ErrConversationNotFound
	}
	return conv.Clone(), nil
}

func (s *ConversationStorage) ListConversations(_ context.Context) ([]model.Conversation, error) {
	s.mu.RLock()
	conversations := make([]model.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		conversations = append(conversations, conv.Clone())
	}
	s.mu.RUnlock()
	sortByUpdated(conversations)
	return conversations, nil
}

func (s *ConversationStorage) AddMessage(
	_ context.Context,
	id string,
	message model.ChatMessage,
) (model.Conversation, error) {
	return s.update(id, func(conv *model.Conversation) error {
		conv.Messages = append(conv.Messages, message)
		return nil
	})
}

func (s *ConversationStorage) DeleteMessage(_ context.Context, id, messageID string) (model.Conversation, error) {
	return s.update(id, func(conv *model.Conversation) error {
		idx := conv.MessageIndex(messageID)
		if idx < 0 {
			return model.ErrMessageNotFound
		}
		conv.Messages = append(conv.Messages[:idx:idx], conv.Messages[idx+1:]...)
		return nil
	})
}

func (s *ConversationStorage) ClearConversation(_ context.Context, id string) (model.Conversation, error) {
	return s.update(id, func(conv *model.Conversation) error {
		conv.Messages = make([]model.ChatMessage, 0)
		return nil
	})
}

func (s *ConversationStorage) RenameConversation(_ context.Context, id, title string) (model.Conversation, error) {
	return s.update(id, func(conv *model.Conversation) error {
		conv.Title = title
		return nil
	})
}

func (s *ConversationStorage) DeleteConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return model.ErrConversationNotFound
	}
	delete(s.conversations, id)
	return nil
}

func (s *ConversationStorage) update(id string, apply func(conv *model.Conversation) error) (model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.conversations[id]
	if !ok {
		return model.Conversation{}, model.ErrConversationNotFound
	}
	conv := stored.Clone()
	if err := apply(&conv); err != nil {
		return model.Conversation{}, err
	}
	conv.UpdatedAt = model.Now()
	s.conversations[id] = &conv
	return conv.Clone(), nil
}

func sortByUpdated(conversations []model.Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		a, b := conversations[i], conversations[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
}
