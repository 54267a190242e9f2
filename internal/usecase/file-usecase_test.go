package usecase

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iamvkosarev/notechat/config"
	"github.com/iamvkosarev/notechat/internal/model"
	"github.com/iamvkosarev/notechat/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingUpload struct {
	opens int
}

func (c *countingUpload) upload(name, content string) Upload {
	return Upload{
		Name: name,
		Size: int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			c.opens++
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func newTestFileUsecase(t *testing.T, mutate func(*config.Settings)) (*FileUsecase, *vault.Vault) {
	t.Helper()
	v, err := vault.New(t.TempDir())
	require.NoError(t, err)
	settings := config.DefaultSettings()
	settings.SupportedFileTypes = append(settings.SupportedFileTypes, ".go", ".png", ".exe")
	if mutate != nil {
		mutate(&settings)
	}
	return NewFileUsecase(FileUsecaseDeps{Vault: v, Settings: staticSettings(settings)}, "uploads"), v
}

func TestFileUsecase_UnsupportedTypeIsNeverRead(t *testing.T) {
	f, _ := newTestFileUsecase(t, nil)
	counter := &countingUpload{}

	result, err := f.Process(context.Background(), counter.upload("archive.zip", "PK"))
	assert.ErrorIs(t, err, model.ErrUnsupportedFileType)
	assert.False(t, result.Success)
	assert.Equal(t, model.CodeUnsupportedFileType, result.Message)
	assert.Zero(t, counter.opens)

	_, err = f.Process(context.Background(), counter.upload("Makefile", "all:"))
	assert.ErrorIs(t, err, model.ErrUnsupportedFileType)
	assert.Zero(t, counter.opens)
}

func TestFileUsecase_AllowedWithoutHandler(t *testing.T) {
	f, _ := newTestFileUsecase(t, nil)
	counter := &countingUpload{}

	_, err := f.Process(context.Background(), counter.upload("tool.exe", "MZ"))
	assert.ErrorIs(t, err, model.ErrUnsupportedFileType)
	assert.Zero(t, counter.opens)
}

func TestFileUsecase_TooLargeIsNeverRead(t *testing.T) {
	f, _ := newTestFileUsecase(t, func(s *config.Settings) { s.FileUploadLimitMB = 1 })
	counter := &countingUpload{}
	upload := counter.upload("big.txt", "x")
	upload.Size = 1024*1024 + 1

	result, err := f.Process(context.Background(), upload)
	assert.ErrorIs(t, err, model.ErrFileTooLarge)
	assert.Equal(t, model.CodeFileTooLarge, result.Message)
	assert.Zero(t, counter.opens)
}

func TestFileUsecase_TextIsSavedToUploads(t *testing.T) {
	f, v := newTestFileUsecase(t, nil)
	counter := &countingUpload{}

	result, err := f.Process(context.Background(), counter.upload("Notes.TXT", "plain text"))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, MessageFileProcessed, result.Message)
	assert.Equal(t, "uploads/Notes.TXT", result.FilePath)
	assert.Equal(t, "plain text", result.Content)

	saved, err := v.ReadFile(context.Background(), "uploads/Notes.TXT")
	require.NoError(t, err)
	assert.Equal(t, "plain text", string(saved))

	_, err = f.Process(context.Background(), counter.upload("Notes.TXT", "replaced"))
	require.NoError(t, err)
	saved, err = v.ReadFile(context.Background(), "uploads/Notes.TXT")
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(saved))
}

func TestFileUsecase_Handlers(t *testing.T) {
	f, _ := newTestFileUsecase(t, nil)
	counter := &countingUpload{}

	tests := []struct {
		name string
		data string
		want string
	}{
		{"main.go", "package main", "```go\npackage main\n```"},
		{"paper.pdf", "%PDF-1.7", "[PDF Content from paper.pdf]"},
		{"report.docx", "PK", "[Word Document Content from report.docx]"},
		{"photo.png", "\x89PNG", "[Image Content from photo.png]"},
		{"data.csv", "a,b\n1,2", "a,b\n1,2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.Process(context.Background(), counter.upload(tt.name, tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Content)
		})
	}
}

func TestFileUsecase_NameCannotEscapeUploads(t *testing.T) {
	f, v := newTestFileUsecase(t, nil)
	counter := &countingUpload{}

	result, err := f.Process(context.Background(), counter.upload("../../evil.md", "x"))
	require.NoError(t, err)
	assert.Equal(t, "uploads/evil.md", result.FilePath)
	assert.True(t, v.Exists("uploads/evil.md"))
}

func TestUploadFromPath(t *testing.T) {
	p := filepath.Join(t.TempDir(), "note.md")
	require.NoError(t, os.WriteFile(p, []byte("# hi"), 0o644))

	upload, err := UploadFromPath(p)
	require.NoError(t, err)
	assert.Equal(t, "note.md", upload.Name)
	assert.Equal(t, int64(4), upload.Size)

	_, err = UploadFromPath(filepath.Join(t.TempDir(), "missing.md"))
	assert.ErrorIs(t, err, model.ErrIO)
}
