package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

const DefaultConversationTitle = "New Chat"

type MessageMetadata struct {
	TokenCount int    `json:"tokenCount,omitempty"`
	SourceFile string `json:"sourceFile,omitempty"`
}

type ChatMessage struct {
	ID        string           `json:"id"`
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

type Conversation struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Now is the timestamp used for new conversations and messages. Values are
// kept in UTC at millisecond precision so that they survive a JSON round trip.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func NewConversation(title string, at time.Time) Conversation {
	if title == "" {
		title = DefaultConversationTitle
	}
	return Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		Messages:  make([]ChatMessage, 0),
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func NewMessage(role Role, content string, at time.Time) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: at,
	}
}

// WithMetadata returns a copy of the message carrying the given metadata.
func (m ChatMessage) WithMetadata(metadata MessageMetadata) ChatMessage {
	m.Metadata = &metadata
	return m
}

// Clone returns a deep copy; stored conversations never share message slices
// or metadata pointers with their callers.
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = make([]ChatMessage, len(c.Messages))
	for i, msg := range c.Messages {
		if msg.Metadata != nil {
			metadata := *msg.Metadata
			msg.Metadata = &metadata
		}
		out.Messages[i] = msg
	}
	return out
}

func (c Conversation) MessageIndex(messageID string) int {
	return slices.IndexFunc(c.Messages, func(m ChatMessage) bool { return m.ID == messageID })
}

func (c Conversation) TokenCount() int {
	total := 0
	for _, msg := range c.Messages {
		if msg.Metadata != nil {
			total += msg.Metadata.TokenCount
		}
	}
	return total
}
