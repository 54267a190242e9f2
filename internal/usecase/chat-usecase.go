package usecase

import (
	"context"
	"fmt"
	"html"
	"log"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iamvkosarev/notechat/config"
	"github.com/iamvkosarev/notechat/internal/model"
	"golang.org/x/time/rate"
)

const (
	MessageContextTrimmed = "Context was trimmed"

	transcriptUserPrefix = "User: "
	transcriptAIPrefix   = "AI: "
)

type NoteReader interface {
	NoteSource
	ReadNote(ctx context.Context, rel string) (model.Note, error)
}

type NoteSummarizer interface {
	SummarizeNotes(ctx context.Context, notes []string) []string
}

type TokenCounter interface {
	Count(text, model string) int
	Truncate(text string, maxTokens int, model string) string
}

type TranscriptWriter interface {
	AppendTranscript(ctx context.Context, lines ...string) error
}

type ChatUsecaseDeps struct {
	Conversations *ConversationUsecase
	Notes         NoteReader
	Relevance     *RelevanceUsecase
	Summarizer    NoteSummarizer
	AI            Completer
	Files         *FileUsecase
	Transcript    TranscriptWriter
	Tokens        TokenCounter
	Settings      SettingsProvider
	Clock         Clock
}

type ChatUsecase struct {
	ChatUsecaseDeps
	tokensUsed atomic.Int64

	limiterMu     sync.Mutex
	limiter       *rate.Limiter
	limiterWindow time.Duration
}

// Reply is the outcome of one chat turn. Conversation is set even when the
// AI call fails, so the stored user message can be shown.
type Reply struct {
	Conversation   model.Conversation
	Message        model.ChatMessage
	Usage          Completion
	ContextTrimmed bool
}

func NewChatUsecase(deps ChatUsecaseDeps) *ChatUsecase {
	if deps.Clock == nil {
		deps.Clock = systemClock{}
	}
	if deps.Relevance == nil {
		deps.Relevance = NewRelevanceUsecase()
	}
	return &ChatUsecase{
		ChatUsecaseDeps: deps,
	}
}

// TokensUsed is the total of tokens reported by the AI since start.
func (c *ChatUsecase) TokensUsed() int64 {
	return c.tokensUsed.Load()
}

// Send runs one chat turn in the conversation: it grounds the query in the
// relevant notes, stores the user message, asks the AI and stores the
// answer. An empty conversationID targets the current conversation.
func (c *ChatUsecase) Send(ctx context.Context, conversationID, query, activeNote string) (Reply, error) {
	settings := c.Settings.Settings()
	query = strings.TrimSpace(query)
	if query == "" {
		return Reply{}, model.ErrEmptyQuery
	}
	if !c.allowSend(settings.SendDebounce) {
		return Reply{}, model.ErrSendDebounced
	}
	query = html.EscapeString(query)

	conv, err := c.conversation(ctx, conversationID)
	if err != nil {
		return Reply{}, err
	}

	notesContext, trimmed, err := c.buildContext(ctx, settings, query, activeNote)
	if err != nil {
		return Reply{}, err
	}

	userMessage := model.NewMessage(model.RoleUser, query, c.Clock.Now()).
		WithMetadata(model.MessageMetadata{TokenCount: c.Tokens.Count(query, settings.ModelName)})
	conv, err = c.Conversations.AddMessage(ctx, conv.ID, userMessage)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to save user message: %w", err)
	}

	completion, err := c.AI.Complete(ctx, CompletionRequest{
		APIKey:       settings.APIKey,
		Model:        settings.ModelName,
		SystemPrompt: settings.SystemPrompt,
		Context:      notesContext,
		Query:        query,
		Temperature:  settings.Temperature,
		MaxTokens:    settings.MaxTokens,
		TopP:         settings.TopP,
	})
	if err != nil {
		return Reply{Conversation: conv, ContextTrimmed: trimmed}, err
	}
	c.tokensUsed.Add(int64(completion.TotalTokens))

	answer := model.NewMessage(model.RoleAssistant, completion.Content, c.Clock.Now()).
		WithMetadata(model.MessageMetadata{TokenCount: completion.CompletionTokens})
	conv, err = c.Conversations.AddMessage(ctx, conv.ID, answer)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to save ai message: %w", err)
	}

	if settings.HistoryFormat == config.HistoryFormatMarkdown && c.Transcript != nil {
		err = c.Transcript.AppendTranscript(ctx, transcriptUserPrefix+query, transcriptAIPrefix+completion.Content)
		if err != nil {
			log.Printf("failed to append transcript: %v\n", err)
		}
	}

	return Reply{
		Conversation:   conv,
		Message:        answer,
		Usage:          completion,
		ContextTrimmed: trimmed,
	}, nil
}

// Attach processes an uploaded file and adds its content to the
// conversation as a system message.
func (c *ChatUsecase) Attach(ctx context.Context, conversationID string, upload Upload) (FileProcessingResult, model.Conversation, error) {
	conv, err := c.conversation(ctx, conversationID)
	if err != nil {
		return FileProcessingResult{}, model.Conversation{}, err
	}
	result, err := c.Files.Process(ctx, upload)
	if err != nil {
		return result, conv, err
	}

	settings := c.Settings.Settings()
	content := fmt.Sprintf("Uploaded file %s:\n\n%s", path.Base(result.FilePath), result.Content)
	msg := model.NewMessage(model.RoleSystem, content, c.Clock.Now()).
		WithMetadata(model.MessageMetadata{
			TokenCount: c.Tokens.Count(content, settings.ModelName),
			SourceFile: result.FilePath,
		})
	conv, err = c.Conversations.AddMessage(ctx, conv.ID, msg)
	if err != nil {
		return result, model.Conversation{}, fmt.Errorf("failed to attach file: %w", err)
	}
	return result, conv, nil
}

func (c *ChatUsecase) conversation(ctx context.Context, id string) (model.Conversation, error) {
	if id == "" {
		return c.Conversations.Ensure(ctx)
	}
	return c.Conversations.Get(ctx, id)
}

func (c *ChatUsecase) buildContext(
	ctx context.Context,
	settings config.Settings,
	query, activeNote string,
) (string, bool, error) {
	notes, err := c.Notes.Notes(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to read notes: %w", err)
	}
	var active *model.Note
	if activeNote = strings.TrimSpace(activeNote); activeNote != "" {
		note, err := c.Notes.ReadNote(ctx, activeNote)
		if err != nil {
			return "", false, fmt.Errorf("failed to read active note: %w", err)
		}
		active = &note
	}
	relevant := c.Relevance.RelevantNotes(notes, html.UnescapeString(query), active, settings.MaxRelevantNotes)
	if settings.ContextIntegrationMethod == config.ContextIntegrationSummary && c.Summarizer != nil && len(relevant) > 0 {
		relevant = c.Summarizer.SummarizeNotes(ctx, relevant)
	}
	full := BuildContext(relevant)
	truncated := c.Tokens.Truncate(full, settings.MaxContextSize, settings.ModelName)
	return truncated, truncated != full, nil
}

// allowSend applies the send debounce. A zero window disables it; a changed
// window starts a fresh limiter.
func (c *ChatUsecase) allowSend(window time.Duration) bool {
	if window <= 0 {
		return true
	}
	c.limiterMu.Lock()
	defer c.limiterMu.Unlock()
	if c.limiter == nil || c.limiterWindow != window {
		c.limiter = rate.NewLimiter(rate.Every(window), 1)
		c.limiterWindow = window
	}
	return c.limiter.AllowN(c.Clock.Now(), 1)
}
