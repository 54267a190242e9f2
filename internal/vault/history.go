package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/iamvkosarev/notechat/internal/model"
)

const (
	TranscriptFile       = "chat-history.md"
	TranscriptBackupFile = "chat-history.backup.md"

	exportTimeLayout = "2006-01-02 15:04:05"
)

// History persists conversations inside the vault: one JSON file per
// conversation under dir, plus the flat Markdown transcript at the root.
type History struct {
	vault *Vault
	dir   string
}

func NewHistory(v *Vault, dir string) *History {
	return &History{vault: v, dir: dir}
}

func (h *History) conversationPath(id string) string {
	return path.Join(h.dir, id+".json")
}

// SaveConversation rewrites the whole conversation file.
func (h *History) SaveConversation(ctx context.Context, conv model.Conversation) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation %s: %w", conv.ID, err)
	}
	return h.vault.WriteFile(ctx, h.conversationPath(conv.ID), data)
}

func (h *History) DeleteConversation(ctx context.Context, id string) error {
	return h.vault.Remove(ctx, h.conversationPath(id))
}

// LoadConversations parses every history file. Unreadable or corrupt files
// are logged and skipped.
func (h *History) LoadConversations(ctx context.Context) ([]model.Conversation, error) {
	files, err := h.vault.ListFiles(ctx, h.dir, ".json")
	if err != nil {
		return nil, err
	}
	conversations := make([]model.Conversation, 0, len(files))
	for _, file := range files {
		data, err := h.vault.ReadFile(ctx, file)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("failed to read history file %s: %v\n", file, err)
			continue
		}
		conv, err := decodeConversation(data)
		if err != nil {
			log.Printf("failed to decode history file %s: %v\n", file, err)
			continue
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

func decodeConversation(data []byte) (model.Conversation, error) {
	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return model.Conversation{}, err
	}
	if conv.ID == "" {
		return model.Conversation{}, errors.New("conversation has no id")
	}
	if conv.Messages == nil {
		conv.Messages = make([]model.ChatMessage, 0)
	}
	conv.CreatedAt = conv.CreatedAt.UTC()
	conv.UpdatedAt = conv.UpdatedAt.UTC()
	for i := range conv.Messages {
		conv.Messages[i].Timestamp = conv.Messages[i].Timestamp.UTC()
	}
	return conv, nil
}

// ExportFileName is the name of the export written on the given day.
func ExportFileName(at time.Time) string {
	return fmt.Sprintf("chat-export-%s.md", at.UTC().Format(time.DateOnly))
}

// RenderMarkdown renders one "## role (time)" block per message.
func RenderMarkdown(conv model.Conversation) string {
	blocks := make([]string, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		blocks = append(blocks, fmt.Sprintf("## %s (%s)\n%s\n", msg.Role, msg.Timestamp.Format(exportTimeLayout), msg.Content))
	}
	return strings.Join(blocks, "\n")
}

// Export writes the conversation as Markdown at the vault root and returns
// the file path. An existing export of the same day is overwritten.
func (h *History) Export(ctx context.Context, conv model.Conversation, at time.Time) (string, error) {
	if len(conv.Messages) == 0 {
		return "", model.ErrNothingToExport
	}
	name := ExportFileName(at)
	if err := h.vault.WriteFile(ctx, name, []byte(RenderMarkdown(conv))); err != nil {
		return "", err
	}
	return name, nil
}

// AppendTranscript adds lines to the flat transcript file.
func (h *History) AppendTranscript(ctx context.Context, lines ...string) error {
	existing, err := h.LoadTranscript(ctx)
	if err != nil {
		return err
	}
	return h.saveTranscript(ctx, append(existing, lines...))
}

// LoadTranscript returns the transcript lines; a missing file has none.
func (h *History) LoadTranscript(ctx context.Context) ([]string, error) {
	if !h.vault.Exists(TranscriptFile) {
		return make([]string, 0), nil
	}
	data, err := h.vault.ReadFile(ctx, TranscriptFile)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return make([]string, 0), nil
	}
	return strings.Split(string(data), "\n"), nil
}

// SearchTranscript keeps the lines containing query.
func (h *History) SearchTranscript(ctx context.Context, query string) ([]string, error) {
	lines, err := h.LoadTranscript(ctx)
	if err != nil {
		return nil, err
	}
	found := make([]string, 0)
	for _, line := range lines {
		if strings.Contains(line, query) {
			found = append(found, line)
		}
	}
	return found, nil
}

// DeleteTranscriptLine drops every line equal to line. Blank input is a no-op.
func (h *History) DeleteTranscriptLine(ctx context.Context, line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	lines, err := h.LoadTranscript(ctx)
	if err != nil {
		return err
	}
	kept := make([]string, 0, len(lines))
	for _, l := range lines {
		if l != line {
			kept = append(kept, l)
		}
	}
	return h.saveTranscript(ctx, kept)
}

// ClearTranscript copies the transcript to the backup file and truncates it.
// A failed backup is logged and does not stop the truncation.
func (h *History) ClearTranscript(ctx context.Context) error {
	if !h.vault.Exists(TranscriptFile) {
		return nil
	}
	data, err := h.vault.ReadFile(ctx, TranscriptFile)
	if err != nil {
		return err
	}
	if err = h.vault.WriteFile(ctx, TranscriptBackupFile, data); err != nil {
		log.Printf("failed to back up transcript: %v\n", err)
	}
	return h.vault.WriteFile(ctx, TranscriptFile, nil)
}

func (h *History) saveTranscript(ctx context.Context, lines []string) error {
	return h.vault.WriteFile(ctx, TranscriptFile, []byte(strings.Join(lines, "\n")))
}
