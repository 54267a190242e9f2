package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iamvkosarev/notechat/config"
	"github.com/iamvkosarev/notechat/internal/app"
	"github.com/iamvkosarev/notechat/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.md"), []byte("goroutines are cheap"), 0o644))
	a, err := app.New(context.Background(), &config.Config{
		Vault: config.Vault{
			Path:         root,
			HistoryDir:   "chat-history",
			UploadsDir:   "uploads",
			SettingsPath: ".notechat/settings.yaml",
		},
		OpenAI:  config.OpenAI{TokenCounter: config.TokenCounterEstimate},
		Storage: config.Storage{Type: config.StorageTypeMemory},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func runCommand(t *testing.T, a *app.App, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := dispatch(context.Background(), a, args, &out)
	return out.String(), err
}

func TestDispatch_Usage(t *testing.T) {
	a := newTestApp(t)
	for _, args := range [][]string{nil, {"fly"}, {"history"}, {"history", "show"}, {"settings", "set", "x"}} {
		_, err := runCommand(t, a, args...)
		assert.ErrorIs(t, err, errUsage, "%v", args)
	}
}

func TestDispatch_History(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	conv, err := a.Conversations.Create(ctx, "first chat")
	require.NoError(t, err)
	_, err = a.Conversations.AddMessage(ctx, conv.ID, model.ChatMessage{Role: model.RoleUser, Content: "hi there"})
	require.NoError(t, err)

	out, err := runCommand(t, a, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, conv.ID)
	assert.Contains(t, out, "first chat")
	assert.Contains(t, out, "1 messages")

	out, err = runCommand(t, a, "history", "show", conv.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# first chat\n\n## user ("))
	assert.Contains(t, out, "hi there")

	out, err = runCommand(t, a, "history", "rename", conv.ID, "new", "name")
	require.NoError(t, err)
	assert.Equal(t, "new name\n", out)

	out, err = runCommand(t, a, "history", "export", conv.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Conversation exported to chat-export-")

	_, err = runCommand(t, a, "history", "clear", conv.ID)
	require.NoError(t, err)
	_, err = runCommand(t, a, "history", "export", conv.ID)
	assert.ErrorIs(t, err, model.ErrNothingToExport)

	_, err = runCommand(t, a, "history", "delete", conv.ID)
	require.NoError(t, err)
	_, err = runCommand(t, a, "history", "show", conv.ID)
	assert.ErrorIs(t, err, model.ErrConversationNotFound)
}

func TestDispatch_Transcript(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.History.AppendTranscript(ctx, "User: hello", "AI: hi", "User: bye"))

	out, err := runCommand(t, a, "history", "transcript", "User")
	require.NoError(t, err)
	assert.Equal(t, "User: hello\nUser: bye\n", out)

	_, err = runCommand(t, a, "history", "clear-transcript")
	require.NoError(t, err)
	out, err = runCommand(t, a, "history", "transcript")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.True(t, a.Vault.Exists("chat-history.backup.md"))
}

func TestDispatch_Search(t *testing.T) {
	a := newTestApp(t)

	out, err := runCommand(t, a, "search", "goroutines")
	require.NoError(t, err)
	assert.Contains(t, out, "[file] go.md")
	assert.Contains(t, out, "goroutines are cheap")

	out, err = runCommand(t, a, "search", "-case", "Goroutines")
	require.NoError(t, err)
	assert.Equal(t, "No results.\n", out)

	_, err = runCommand(t, a, "search")
	assert.ErrorIs(t, err, model.ErrEmptyQuery)
}

func TestDispatch_Settings(t *testing.T) {
	a := newTestApp(t)

	out, err := runCommand(t, a, "settings", "set", "max_relevant_notes", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "max_relevant_notes saved to")
	assert.Equal(t, 3, a.Settings.Settings().MaxRelevantNotes)

	_, err = runCommand(t, a, "settings", "set", "api_key", "sk-secret")
	require.NoError(t, err)
	out, err = runCommand(t, a, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "max_relevant_notes: 3")
	assert.NotContains(t, out, "sk-secret")
}

func TestDispatch_Upload(t *testing.T) {
	a := newTestApp(t)
	file := filepath.Join(t.TempDir(), "todo.txt")
	require.NoError(t, os.WriteFile(file, []byte("buy milk"), 0o644))

	out, err := runCommand(t, a, "upload", file)
	require.NoError(t, err)
	assert.Contains(t, out, "File uploads/todo.txt processed successfully")
	assert.Contains(t, out, "now has 1 messages")

	bad := filepath.Join(t.TempDir(), "tool.exe")
	require.NoError(t, os.WriteFile(bad, []byte("MZ"), 0o644))
	_, err = runCommand(t, a, "upload", bad)
	assert.ErrorIs(t, err, model.ErrUnsupportedFileType)
}
