package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iamvkosarev/notechat/internal/model"
)

const DefaultChatTitle = "Default Chat"

type ConversationStorage interface {
	CreateConversation(ctx context.Context, title string) (model.Conversation, error)
	PutConversation(ctx context.Context, conv model.Conversation) error
	GetConversation(ctx context.Context, id string) (model.Conversation, error)
	ListConversations(ctx context.Context) ([]model.Conversation, error)
	AddMessage(ctx context.Context, id string, msg model.ChatMessage) (model.Conversation, error)
	DeleteMessage(ctx context.Context, id, messageID string) (model.Conversation, error)
	ClearConversation(ctx context.Context, id string) (model.Conversation, error)
	RenameConversation(ctx context.Context, id, title string) (model.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
}

type HistoryStorage interface {
	SaveConversation(ctx context.Context, conv model.Conversation) error
	DeleteConversation(ctx context.Context, id string) error
	LoadConversations(ctx context.Context) ([]model.Conversation, error)
	Export(ctx context.Context, conv model.Conversation, at time.Time) (string, error)
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return model.Now()
}

type ConversationUsecaseDeps struct {
	Storage  ConversationStorage
	History  HistoryStorage
	Settings SettingsProvider
	Clock    Clock
}

type ConversationUsecase struct {
	ConversationUsecaseDeps
	mu        sync.Mutex
	currentID string
}

func NewConversationUsecase(deps ConversationUsecaseDeps) *ConversationUsecase {
	if deps.Clock == nil {
		deps.Clock = systemClock{}
	}
	return &ConversationUsecase{
		ConversationUsecaseDeps: deps,
	}
}

// Create starts a conversation and makes it the current one.
func (c *ConversationUsecase) Create(ctx context.Context, title string) (model.Conversation, error) {
	conv, err := c.Storage.CreateConversation(ctx, strings.TrimSpace(title))
	if err != nil {
		return model.Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}
	c.setCurrentID(conv.ID)
	c.mirror(ctx, conv)
	return conv, nil
}

func (c *ConversationUsecase) CurrentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentID
}

func (c *ConversationUsecase) setCurrentID(id string) {
	c.mu.Lock()
	c.currentID = id
	c.mu.Unlock()
}

func (c *ConversationUsecase) Current(ctx context.Context) (model.Conversation, error) {
	id := c.CurrentID()
	if id == "" {
		return model.Conversation{}, model.ErrNoActiveConversation
	}
	return c.Get(ctx, id)
}

func (c *ConversationUsecase) SetCurrent(ctx context.Context, id string) (model.Conversation, error) {
	conv, err := c.Get(ctx, id)
	if err != nil {
		return model.Conversation{}, err
	}
	c.setCurrentID(conv.ID)
	return conv, nil
}

// Ensure returns the current conversation. Without one it switches to the
// most recently updated conversation, creating "Default Chat" when the store
// is empty.
func (c *ConversationUsecase) Ensure(ctx context.Context) (model.Conversation, error) {
	conv, err := c.Current(ctx)
	if err == nil {
		return conv, nil
	}
	conversations, err := c.List(ctx)
	if err != nil {
		return model.Conversation{}, err
	}
	if len(conversations) > 0 {
		c.setCurrentID(conversations[0].ID)
		return conversations[0], nil
	}
	return c.Create(ctx, DefaultChatTitle)
}

func (c *ConversationUsecase) Get(ctx context.Context, id string) (model.Conversation, error) {
	conv, err := c.Storage.GetConversation(ctx, id)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}
	return conv, nil
}

func (c *ConversationUsecase) List(ctx context.Context) ([]model.Conversation, error) {
	conversations, err := c.Storage.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}

// ListConversations lets the search use case read conversations through the
// conversation use case.
func (c *ConversationUsecase) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	return c.List(ctx)
}

func (c *ConversationUsecase) Rename(ctx context.Context, id, title string) (model.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = model.DefaultConversationTitle
	}
	conv, err := c.Storage.RenameConversation(ctx, id, title)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("failed to rename conversation %s: %w", id, err)
	}
	c.mirror(ctx, conv)
	return conv, nil
}

// Delete removes the conversation and its history file. Deleting the current
// conversation leaves no current conversation.
func (c *ConversationUsecase) Delete(ctx context.Context, id string) error {
	if err := c.Storage.DeleteConversation(ctx, id); err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	c.mu.Lock()
	if c.currentID == id {
		c.currentID = ""
	}
	c.mu.Unlock()

	if c.History != nil && c.Settings.Settings().SaveChatHistory {
		if err := c.History.DeleteConversation(ctx, id); err != nil {
			log.Printf("failed to delete history of conversation %s: %v\n", id, err)
		}
	}
	return nil
}

// AddMessage appends msg, filling in a missing id or timestamp. Earlier
// messages are never touched.
func (c *ConversationUsecase) AddMessage(ctx context.Context, id string, msg model.ChatMessage) (model.Conversation, error) {
	if !msg.Role.Valid() {
		return model.Conversation{}, fmt.Errorf("%w: %q", model.ErrInvalidRole, msg.Role)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = c.Clock.Now()
	}
	conv, err := c.Storage.AddMessage(ctx, id, msg)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("failed to add message to conversation %s: %w", id, err)
	}
	c.mirror(ctx, conv)
	return conv, nil
}

func (c *ConversationUsecase) DeleteMessage(ctx context.Context, id, messageID string) (model.Conversation, error) {
	conv, err := c.Storage.DeleteMessage(ctx, id, messageID)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("failed to delete message %s: %w", messageID, err)
	}
	c.mirror(ctx, conv)
	return conv, nil
}

func (c *ConversationUsecase) Clear(ctx context.Context, id string) (model.Conversation, error) {
	conv, err := c.Storage.ClearConversation(ctx, id)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("failed to clear conversation %s: %w", id, err)
	}
	c.mirror(ctx, conv)
	return conv, nil
}

// LoadHistory puts every conversation saved in the vault into the store and
// returns how many were loaded.
func (c *ConversationUsecase) LoadHistory(ctx context.Context) (int, error) {
	if c.History == nil || !c.Settings.Settings().LoadChatHistory {
		return 0, nil
	}
	conversations, err := c.History.LoadConversations(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load chat history: %w", err)
	}
	for _, conv := range conversations {
		if err = c.Storage.PutConversation(ctx, conv); err != nil {
			return 0, fmt.Errorf("failed to restore conversation %s: %w", conv.ID, err)
		}
	}
	return len(conversations), nil
}

// Export writes the conversation as Markdown and returns the vault path of
// the export.
func (c *ConversationUsecase) Export(ctx context.Context, id string) (string, error) {
	conv, err := c.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if len(conv.Messages) == 0 {
		return "", model.ErrNothingToExport
	}
	if c.History == nil {
		return "", fmt.Errorf("%w: no history storage", model.ErrIO)
	}
	p, err := c.History.Export(ctx, conv, c.Clock.Now())
	if err != nil {
		return "", fmt.Errorf("failed to export conversation %s: %w", id, err)
	}
	return p, nil
}

func (c *ConversationUsecase) mirror(ctx context.Context, conv model.Conversation) {
	if c.History == nil || !c.Settings.Settings().SaveChatHistory {
		return
	}
	if err := c.History.SaveConversation(ctx, conv); err != nil {
		log.Printf("failed to save chat history of %s: %v\n", conv.ID, err)
	}
}
