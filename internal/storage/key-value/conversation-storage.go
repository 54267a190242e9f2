package key_value

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/iamvkosarev/notechat/internal/model"
	"github.com/redis/go-redis/v9"
)

const conversationIDsKey = "conversations"

var (
	ErrConversationIDsDoNotExist = errors.New("conversation ids does not exist")
)

type metadataInternal struct {
	TokenCount int    `json:"token_count,omitempty"`
	SourceFile string `json:"source_file,omitempty"`
}

type messageInternal struct {
	ID        string            `json:"id"`
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Timestamp int64             `json:"timestamp"`
	Metadata  *metadataInternal `json:"metadata,omitempty"`
}

type conversationInternal struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Messages  []messageInternal `json:"messages"`
	CreatedAt int64             `json:"created_at"`
	UpdatedAt int64             `json:"updated_at"`
}

type conversationIDs struct {
	Conversations []string `json:"conversations"`
}

// ConversationStorage keeps every conversation as one JSON value plus a
// shared index of ids. Timestamps are stored as unix milliseconds.
type ConversationStorage struct {
	rdb *redis.Client
}

func NewConversationStorage(rdb *redis.Client) *ConversationStorage {
	return &ConversationStorage{
		rdb: rdb,
	}
}

func (s *ConversationStorage) CreateConversation(ctx context.Context, title string) (model.Conversation, error) {
	conv := model.NewConversation(title, model.Now())
	if err := s.PutConversation(ctx, conv); err != nil {
		return model.Conversation{}, err
	}
	return conv, nil
}

func (s *ConversationStorage) PutConversation(ctx context.Context, conv model.Conversation) error {
	if err := s.setConversationInt(ctx, conv.ID, toInternal(conv)); err != nil {
		return fmt.Errorf("failed to set conversation internal %s: %w", conv.ID, err)
	}
	ids, err := s.getConversationIDs(ctx)
	if err != nil {
		if !errors.Is(err, ErrConversationIDsDoNotExist) {
			return fmt.Errorf("failed to get conversation ids: %w", err)
		}
		ids = conversationIDs{
			Conversations: make([]string, 0),
		}
	}
	if slices.Contains(ids.Conversations, conv.ID) {
		return nil
	}
	ids.Conversations = append(ids.Conversations, conv.ID)
	if err = s.setConversationIDs(ctx, ids); err != nil {
		return fmt.Errorf("failed to set conversation ids: %w", err)
	}
	return nil
}

func (s *ConversationStorage) GetConversation(ctx context.Context, id string) (model.Conversation, error) {
	convInt, err := s.getConversationInt(ctx, id)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}
	return fromInternal(convInt), nil
}

func (s *ConversationStorage) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	ids, err := s.getConversationIDs(ctx)
	if err != nil {
		if errors.Is(err, ErrConversationIDsDoNotExist) {
			return make([]model.Conversation, 0), nil
		}
		return nil, fmt.Errorf("failed to get conversation ids: %w", err)
	}
	conversations := make([]model.Conversation, 0, len(ids.Conversations))
	for _, id := range ids.Conversations {
		conv, err := s.GetConversation(ctx, id)
		if err != nil {
			if errors.Is(err, model.ErrConversationNotFound) {
				continue
			}
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	return conversations, nil
}

func (s *ConversationStorage) AddMessage(
	ctx context.Context,
	id string,
	message model.ChatMessage,
) (model.Conversation, error) {
	return s.update(ctx, id, func(convInt *conversationInternal) error {
		convInt.Messages = append(convInt.Messages, toMessageInternal(message))
		return nil
	})
}

func (s *ConversationStorage) DeleteMessage(ctx context.Context, id, messageID string) (model.Conversation, error) {
	return s.update(ctx, id, func(convInt *conversationInternal) error {
		idx := slices.IndexFunc(convInt.Messages, func(m messageInternal) bool { return m.ID == messageID })
		if idx < 0 {
			return model.ErrMessageNotFound
		}
		convInt.Messages = slices.Delete(convInt.Messages, idx, idx+1)
		return nil
	})
}

func (s *ConversationStorage) ClearConversation(ctx context.Context, id string) (model.Conversation, error) {
	return s.update(ctx, id, func(convInt *conversationInternal) error {
		convInt.Messages = make([]messageInternal, 0)
		return nil
	})
}

func (s *ConversationStorage) RenameConversation(ctx context.Context, id, title string) (model.Conversation, error) {
	return s.update(ctx, id, func(convInt *conversationInternal) error {
		convInt.Title = title
		return nil
	})
}

func (s *ConversationStorage) DeleteConversation(ctx context.Context, id string) error {
	deleted, err := s.rdb.Del(ctx, getConversationIDKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	if deleted == 0 {
		return model.ErrConversationNotFound
	}
	ids, err := s.getConversationIDs(ctx)
	if err != nil {
		if errors.Is(err, ErrConversationIDsDoNotExist) {
			return nil
		}
		return fmt.Errorf("failed to get conversation ids: %w", err)
	}
	ids.Conversations = slices.DeleteFunc(ids.Conversations, func(v string) bool { return v == id })
	if err = s.setConversationIDs(ctx, ids); err != nil {
		return fmt.Errorf("failed to set conversation ids: %w", err)
	}
	return nil
}

func (s *ConversationStorage) update(
	ctx context.Context,
	id string,
	apply func(convInt *conversationInternal) error,
) (model.Conversation, error) {
	convInt, err := s.getConversationInt(ctx, id)
	if err != nil {
		return model.Conversation{}, err
	}
	if err = apply(&convInt); err != nil {
		return model.Conversation{}, err
	}
	convInt.UpdatedAt = model.Now().UnixMilli()
	if err = s.setConversationInt(ctx, id, convInt); err != nil {
		return model.Conversation{}, fmt.Errorf("failed to set internal conversation %s: %w", id, err)
	}
	return fromInternal(convInt), nil
}

func (s *ConversationStorage) getConversationInt(ctx context.Context, id string) (conversationInternal, error) {
	raw, err := s.rdb.Get(ctx, getConversationIDKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return conversationInternal{}, model.ErrConversationNotFound
		}
		return conversationInternal{}, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}
	var convInt conversationInternal
	if err = json.Unmarshal([]byte(raw), &convInt); err != nil {
		return conversationInternal{}, fmt.Errorf("failed to unmarshal conversation %s: %w", id, err)
	}
	return convInt, nil
}

func (s *ConversationStorage) setConversationInt(ctx context.Context, id string, convInt conversationInternal) error {
	key := getConversationIDKey(id)
	data, err := json.Marshal(convInt)
	if err != nil {
		return fmt.Errorf("failed to marshal internal conversation: %w", err)
	}
	if err = s.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save conversationInternal %s: %w", key, err)
	}
	return nil
}

func (s *ConversationStorage) getConversationIDs(ctx context.Context) (conversationIDs, error) {
	raw, err := s.rdb.Get(ctx, conversationIDsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return conversationIDs{}, ErrConversationIDsDoNotExist
		}
		return conversationIDs{}, fmt.Errorf("failed to get conversation ids: %w", err)
	}
	var ids conversationIDs
	if err = json.Unmarshal([]byte(raw), &ids); err != nil {
		return conversationIDs{}, fmt.Errorf("failed to unmarshal conversation ids: %w", err)
	}
	return ids, nil
}

func (s *ConversationStorage) setConversationIDs(ctx context.Context, ids conversationIDs) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation ids: %w", err)
	}
	if err = s.rdb.Set(ctx, conversationIDsKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save conversation ids: %w", err)
	}
	return nil
}

func toInternal(conv model.Conversation) conversationInternal {
	messages := make([]messageInternal, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		messages = append(messages, toMessageInternal(msg))
	}
	return conversationInternal{
		ID:        conv.ID,
		Title:     conv.Title,
		Messages:  messages,
		CreatedAt: conv.CreatedAt.UnixMilli(),
		UpdatedAt: conv.UpdatedAt.UnixMilli(),
	}
}

func toMessageInternal(msg model.ChatMessage) messageInternal {
	msgInt := messageInternal{
		ID:        msg.ID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		Timestamp: msg.Timestamp.UnixMilli(),
	}
	if msg.Metadata != nil {
		msgInt.Metadata = &metadataInternal{
			TokenCount: msg.Metadata.TokenCount,
			SourceFile: msg.Metadata.SourceFile,
		}
	}
	return msgInt
}

func fromInternal(convInt conversationInternal) model.Conversation {
	messages := make([]model.ChatMessage, 0, len(convInt.Messages))
	for _, msgInt := range convInt.Messages {
		msg := model.ChatMessage{
			ID:        msgInt.ID,
			Role:      model.ParseRole(msgInt.Role),
			Content:   msgInt.Content,
			Timestamp: fromMillis(msgInt.Timestamp),
		}
		if msgInt.Metadata != nil {
			msg = msg.WithMetadata(model.MessageMetadata{
				TokenCount: msgInt.Metadata.TokenCount,
				SourceFile: msgInt.Metadata.SourceFile,
			})
		}
		messages = append(messages, msg)
	}
	return model.Conversation{
		ID:        convInt.ID,
		Title:     convInt.Title,
		Messages:  messages,
		CreatedAt: fromMillis(convInt.CreatedAt),
		UpdatedAt: fromMillis(convInt.UpdatedAt),
	}
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func getConversationIDKey(id string) string {
	return fmt.Sprintf("conversation_%v", id)
}
