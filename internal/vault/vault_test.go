package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/iamvkosarev/notechat/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T, files map[string]string, skipDirs ...string) *Vault {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
	v, err := New(root, skipDirs...)
	require.NoError(t, err)
	return v
}

func TestNew_MissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, model.ErrIO)
}

func TestVault_RejectsEscapingPaths(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, nil)

	for _, rel := range []string{"../secret.md", "a/../../secret.md", "/etc/passwd"} {
		_, err := v.ReadFile(ctx, rel)
		assert.ErrorIs(t, err, ErrPathOutsideVault, rel)
		assert.ErrorIs(t, err, model.ErrIO, rel)
		assert.ErrorIs(t, v.WriteFile(ctx, rel, []byte("x")), ErrPathOutsideVault, rel)
	}
}

func TestVault_WriteReadOverwrite(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, nil)

	require.NoError(t, v.WriteFile(ctx, "uploads/deep/a.txt", []byte("first")))
	require.NoError(t, v.WriteFile(ctx, "uploads/deep/a.txt", []byte("second")))

	data, err := v.ReadFile(ctx, "uploads/deep/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	require.NoError(t, v.Remove(ctx, "uploads/deep/a.txt"))
	require.NoError(t, v.Remove(ctx, "uploads/deep/a.txt"))
	assert.False(t, v.Exists("uploads/deep/a.txt"))

	_, err = v.ReadFile(ctx, "uploads/deep/a.txt")
	assert.ErrorIs(t, err, model.ErrIO)
}

func TestVault_ListFiles(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, map[string]string{
		"chat-history/b.json": "{}",
		"chat-history/a.json": "{}",
		"chat-history/c.txt":  "",
	})

	files, err := v.ListFiles(ctx, "chat-history", ".json")
	require.NoError(t, err)
	assert.Equal(t, []string{"chat-history/a.json", "chat-history/b.json"}, files)

	files, err = v.ListFiles(ctx, "missing", ".json")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestVault_NotesSkipsHiddenAndHistory(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, map[string]string{
		"Projects/Go.md":            "# Go\nnotes about #golang",
		"Inbox.md":                  "inbox",
		"readme.txt":                "not a note",
		".obsidian/workspace.md":    "hidden",
		".notechat/settings.md":     "hidden",
		"chat-history/abc.md":       "history",
		"Projects/.drafts/draft.md": "hidden draft",
	}, "chat-history")

	notes, err := v.Notes(ctx)
	require.NoError(t, err)

	paths := make([]string, 0, len(notes))
	for _, note := range notes {
		paths = append(paths, note.Path)
	}
	assert.ElementsMatch(t, []string{"Projects/Go.md", "Inbox.md"}, paths)

	for _, note := range notes {
		if note.Path == "Projects/Go.md" {
			assert.Equal(t, "Go", note.Title)
			assert.Equal(t, []string{"#golang"}, note.Tags)
		}
	}
}

func TestVault_ReadNoteCleansPath(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, map[string]string{
		"notes/a.md":          "alpha #draft",
		".obsidian/hidden.md": "still readable",
	})

	note, err := v.ReadNote(ctx, "./notes/../notes/a.md")
	require.NoError(t, err)
	assert.Equal(t, "notes/a.md", note.Path)
	assert.Equal(t, "a", note.Title)
	assert.Equal(t, []string{"#draft"}, note.Tags)

	abs, err := v.Abs("notes/a.md")
	require.NoError(t, err)
	note, err = v.ReadNote(ctx, abs)
	require.NoError(t, err)
	assert.Equal(t, "notes/a.md", note.Path)

	note, err = v.ReadNote(ctx, ".obsidian/hidden.md")
	require.NoError(t, err)
	assert.Equal(t, "still readable", note.Content)

	_, err = v.ReadNote(ctx, filepath.Join(t.TempDir(), "outside.md"))
	assert.ErrorIs(t, err, ErrPathOutsideVault)
	_, err = v.ReadNote(ctx, "../outside.md")
	assert.ErrorIs(t, err, ErrPathOutsideVault)
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "front matter list",
			in:   "---\ntags:\n  - work\n  - \"#ideas\"\n---\nbody",
			want: []string{"#work", "#ideas"},
		},
		{
			name: "front matter string",
			in:   "---\ntags: work, ideas\n---\nbody #later",
			want: []string{"#work", "#ideas", "#later"},
		},
		{
			name: "inline only",
			in:   "Some text #alpha and #beta/nested\n#alpha again",
			want: []string{"#alpha", "#beta/nested"},
		},
		{
			name: "headings are not tags",
			in:   "# Title\n## Section\nanchor page#part",
			want: []string{},
		},
		{
			name: "unterminated front matter",
			in:   "---\ntags: [a]\nno end #real",
			want: []string{"#real"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTags([]byte(tt.in)))
		})
	}
}
